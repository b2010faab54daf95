package ports

import (
	"context"

	"github.com/truefeedback/feedback-system/internal/core/domain"
)

// RegisterResult is returned after a successful registration. It echoes no
// sensitive data; the verification code travels only by email.
type RegisterResult struct {
	Username string
	Email    string
}

// RegistrarService owns account creation and the email-verification lifecycle.
type RegistrarService interface {
	// Register creates a pending account, or refreshes a still-pending one
	// sharing the email, and dispatches the verification code.
	Register(ctx context.Context, username, email, rawPassword string) (*RegisterResult, error)
	// VerifyAccount consumes a verification code. Verifying an already
	// verified account is a no-op success.
	VerifyAccount(ctx context.Context, username, code string) error
	// Login authenticates a verified account by username or email and
	// returns a signed session token.
	Login(ctx context.Context, identifier, password string) (string, *domain.User, error)
}
