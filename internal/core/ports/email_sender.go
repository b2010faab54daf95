package ports

import "context"

// EmailSender delivers a verification code to a registrant. Implementations
// report failure instead of swallowing it: an account that never receives its
// code is unusable.
type EmailSender interface {
	SendVerificationEmail(ctx context.Context, email, username, code string) error
}
