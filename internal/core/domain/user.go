package domain

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrUsernameTaken = errors.New("username is already taken")
var ErrEmailTaken = errors.New("email is already registered")
var ErrUserNotFound = errors.New("user not found")
var ErrRecipientNotFound = errors.New("recipient not found")
var ErrMessagesDisabled = errors.New("recipient is not accepting messages")
var ErrInvalidCode = errors.New("verification code is incorrect")
var ErrCodeExpired = errors.New("verification code has expired")
var ErrInvalidCredentials = errors.New("invalid credentials")
var ErrNotVerified = errors.New("account is not verified")
var ErrDeliveryFailed = errors.New("verification email could not be delivered")
var ErrInvalidMessage = errors.New("message content is invalid")
var ErrInvalidUser = errors.New("invalid user data")

// Message is an anonymous note embedded in its recipient's document.
// It is written once at append time and never mutated afterwards.
type Message struct {
	ID        primitive.ObjectID `json:"id" bson:"_id"`
	Content   string             `json:"content" bson:"content"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
}

// NewMessage stamps a message at append time.
func NewMessage(content string) Message {
	return Message{
		ID:        primitive.NewObjectID(),
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

// User is the root entity. Messages are owned exclusively by their recipient;
// username and email are unique across all records regardless of
// verification state (enforced by the storage indexes).
type User struct {
	ID                  string     `json:"id"`
	Username            string     `json:"username"`
	Email               string     `json:"email"`
	PasswordHash        string     `json:"-"`
	VerifyCode          string     `json:"-"`
	VerifyCodeExpiry    *time.Time `json:"-"`
	IsVerified          bool       `json:"is_verified"`
	IsAcceptingMessages bool       `json:"is_accepting_messages"`
	Messages            []Message  `json:"messages,omitempty"`
}

// NewPendingUser constructs an unverified account. A pending account always
// carries a password hash, a verification code, and the code's expiry; the
// invariant is checked here so callers cannot build a half-initialised record.
func NewPendingUser(username, email, passwordHash, verifyCode string, codeExpiry time.Time) (*User, error) {
	if username == "" || email == "" {
		return nil, ErrInvalidUser
	}
	if passwordHash == "" || verifyCode == "" || codeExpiry.IsZero() {
		return nil, ErrInvalidUser
	}
	expiry := codeExpiry.UTC()
	return &User{
		Username:            username,
		Email:               email,
		PasswordHash:        passwordHash,
		VerifyCode:          verifyCode,
		VerifyCodeExpiry:    &expiry,
		IsVerified:          false,
		IsAcceptingMessages: true,
		Messages:            []Message{},
	}, nil
}

// NewSocialUser constructs an account that arrives already verified through an
// external identity provider. It carries no password and no verification code.
func NewSocialUser(username, email string) (*User, error) {
	if username == "" || email == "" {
		return nil, ErrInvalidUser
	}
	return &User{
		Username:            username,
		Email:               email,
		IsVerified:          true,
		IsAcceptingMessages: true,
		Messages:            []Message{},
	}, nil
}

// CodeExpired reports whether the verification code is past its window at the
// given instant. A verified account has no window and never expires.
func (u *User) CodeExpired(now time.Time) bool {
	if u.IsVerified || u.VerifyCodeExpiry == nil {
		return false
	}
	return now.After(*u.VerifyCodeExpiry)
}
