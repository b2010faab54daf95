package ports

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryJob is a verification email still owed to a registrant after a
// failed dispatch. Jobs are retried in the background until the code window
// closes.
type DeliveryJob struct {
	ID        string
	Email     string
	Username  string
	Code      string
	Attempt   int
	CreatedAt time.Time
}

// NewDeliveryJob builds a first-attempt job for the given registrant.
func NewDeliveryJob(email, username, code string) DeliveryJob {
	return DeliveryJob{
		ID:        uuid.NewString(),
		Email:     email,
		Username:  username,
		Code:      code,
		Attempt:   1,
		CreatedAt: time.Now().UTC(),
	}
}
