package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// resendTTL matches the verification-code window: once the code has expired a
// resend is pointless and the registrant must register again.
const resendTTL = time.Hour

// ResendMarker records accounts still owed a verification email after a
// failed dispatch. Key format: resend:<username>
type ResendMarker struct {
	client *redis.Client
}

// NewResendMarker creates a ResendMarker wrapping the given Redis client.
func NewResendMarker(client *redis.Client) *ResendMarker {
	return &ResendMarker{client: client}
}

// Mark records that username has not received its verification code yet.
// The marker expires together with the code window.
func (m *ResendMarker) Mark(ctx context.Context, username string) error {
	return m.client.Set(ctx, m.key(username), "1", resendTTL).Err()
}

// Clear removes the marker after a successful delivery.
func (m *ResendMarker) Clear(ctx context.Context, username string) error {
	return m.client.Del(ctx, m.key(username)).Err()
}

func (m *ResendMarker) key(username string) string {
	return fmt.Sprintf("resend:%s", username)
}
