package ports

import (
	"context"
	"time"

	"github.com/truefeedback/feedback-system/internal/core/domain"
)

// Principal is the authenticated identity injected by the session
// collaborator. The core consumes it but never constructs one.
type Principal struct {
	UserID   string
	Username string
}

// ToggleResult reports both sides of an acceptance-flag change so callers can
// render an accurate toggle state.
type ToggleResult struct {
	Previous bool
	Current  bool
}

// MessageView is the read model returned to recipients.
type MessageView struct {
	ID        string
	Content   string
	CreatedAt time.Time
}

// MessagingService covers the anonymous intake gate and message retrieval.
//
// SubmitMessage is not idempotent: a retry after an ambiguous failure may
// append the same content twice. Callers accept that rather than dedupe
// without an idempotency key.
type MessagingService interface {
	// SubmitMessage appends content for the recipient if, at the instant of
	// the write, the recipient exists and is accepting messages.
	SubmitMessage(ctx context.Context, recipientUsername, content string) (*domain.Message, error)
	// SetAcceptingMessages persists the flag for the principal's account.
	SetAcceptingMessages(ctx context.Context, p Principal, enabled bool) (*ToggleResult, error)
	// GetAcceptingMessages reads the flag for the principal's account.
	GetAcceptingMessages(ctx context.Context, p Principal) (bool, error)
	// GetMessages returns the principal's messages, most recent first.
	GetMessages(ctx context.Context, p Principal) ([]MessageView, error)
}
