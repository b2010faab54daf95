package ports

import (
	"context"
	"time"

	"github.com/truefeedback/feedback-system/internal/core/domain"
)

// PendingRefresh carries the fields rewritten in place when a still-pending
// email registers again.
type PendingRefresh struct {
	PasswordHash     string
	VerifyCode       string
	VerifyCodeExpiry time.Time
}

// UserRepository defines persistence for users and their embedded messages.
//
// The unique indexes on username and email are the authoritative uniqueness
// guard: Create and RefreshPending surface index violations as
// domain.ErrUsernameTaken / domain.ErrEmailTaken. All mutations are single
// conditional storage operations, never read-then-write.
type UserRepository interface {
	// FindVerifiedByUsername returns the verified account holding username,
	// or domain.ErrUserNotFound.
	FindVerifiedByUsername(ctx context.Context, username string) (*domain.User, error)
	// FindByUsername returns the account holding username in any
	// verification state, or domain.ErrUserNotFound.
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	// FindByEmail returns the account holding email in any verification
	// state, or domain.ErrUserNotFound.
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	// Create inserts a new account and returns it with its assigned id.
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	// RefreshPending rewrites the password hash and verification code of a
	// still-pending account identified by email. Returns
	// domain.ErrUserNotFound when no pending account holds the email.
	RefreshPending(ctx context.Context, email string, refresh PendingRefresh) error
	// ConsumeVerification flips the account to verified and clears the code
	// and expiry in one conditional update keyed on the still-pending state.
	// Returns domain.ErrUserNotFound when no pending account matched, so two
	// racing verify calls cannot both consume the same code.
	ConsumeVerification(ctx context.Context, username string) error
	// AppendMessage atomically appends msg while is_accepting_messages is
	// true. Returns domain.ErrRecipientNotFound when no account holds
	// username and domain.ErrMessagesDisabled when the flag was off at the
	// instant of the write.
	AppendMessage(ctx context.Context, username string, msg domain.Message) error
	// SetAcceptingMessages persists the flag for the account with id and
	// returns the previous value, or domain.ErrUserNotFound.
	SetAcceptingMessages(ctx context.Context, id string, enabled bool) (previous bool, err error)
	// GetAcceptingMessages reads the flag for the account with id.
	GetAcceptingMessages(ctx context.Context, id string) (bool, error)
	// ListMessages returns the account's messages ordered by created_at
	// descending, ties broken by insertion order. The sort is performed by
	// the storage layer, not in process memory. A user with no messages
	// yields an empty slice; a missing user yields domain.ErrUserNotFound.
	ListMessages(ctx context.Context, id string) ([]domain.Message, error)
}
