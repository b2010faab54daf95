package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/truefeedback/feedback-system/internal/api/metrics"
	"github.com/truefeedback/feedback-system/internal/core/domain"
	"github.com/truefeedback/feedback-system/internal/core/ports"
)

// emailPattern is deliberately loose; the real gate is the unique index and
// the verification round-trip itself.
var emailPattern = regexp.MustCompile(`^.+@.+\..+$`)

// DeliveryRetrier schedules a verification email whose synchronous dispatch
// failed for background retry, so a pending account is never stranded without
// a way to receive its code.
type DeliveryRetrier interface {
	Schedule(ctx context.Context, job ports.DeliveryJob) error
}

// RegistrarService implements registration, verification, and login.
type RegistrarService struct {
	repo      ports.UserRepository
	sender    ports.EmailSender
	retrier   DeliveryRetrier
	jwtSecret string
	tokenTTL  time.Duration
	codeTTL   time.Duration
	log       zerolog.Logger
}

func NewRegistrarService(
	repo ports.UserRepository,
	sender ports.EmailSender,
	retrier DeliveryRetrier,
	jwtSecret string,
	tokenTTL time.Duration,
	codeTTL time.Duration,
	log zerolog.Logger,
) *RegistrarService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	if codeTTL <= 0 {
		codeTTL = time.Hour
	}
	return &RegistrarService{
		repo:      repo,
		sender:    sender,
		retrier:   retrier,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
		codeTTL:   codeTTL,
		log:       log,
	}
}

// Register creates a pending account or refreshes a still-pending one sharing
// the email, then dispatches the verification code. The username/email
// existence checks here race with concurrent registrations; the unique
// indexes are the real correctness guarantee and their violations come back
// from the repository as the same conflict errors.
func (s *RegistrarService) Register(ctx context.Context, username, email, rawPassword string) (*ports.RegisterResult, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || rawPassword == "" || !emailPattern.MatchString(email) {
		metrics.RegistrationsTotal.WithLabelValues("error").Inc()
		return nil, domain.ErrInvalidUser
	}

	if _, err := s.repo.FindVerifiedByUsername(ctx, username); err == nil {
		metrics.RegistrationsTotal.WithLabelValues("username_taken").Inc()
		return nil, domain.ErrUsernameTaken
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(rawPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	code, err := generateVerifyCode()
	if err != nil {
		return nil, err
	}
	expiry := time.Now().UTC().Add(s.codeTTL)

	existing, err := s.repo.FindByEmail(ctx, email)
	switch {
	case err == nil && existing.IsVerified:
		metrics.RegistrationsTotal.WithLabelValues("email_taken").Inc()
		return nil, domain.ErrEmailTaken

	case err == nil:
		// A pending account registered again: rewrite its credentials and
		// issue a fresh code. The old code is dead from this point on.
		refresh := ports.PendingRefresh{
			PasswordHash:     string(hash),
			VerifyCode:       code,
			VerifyCodeExpiry: expiry,
		}
		if err := s.repo.RefreshPending(ctx, email, refresh); err != nil {
			return nil, err
		}
		username = existing.Username
		metrics.RegistrationsTotal.WithLabelValues("refreshed").Inc()

	case errors.Is(err, domain.ErrUserNotFound):
		user, err := domain.NewPendingUser(username, email, string(hash), code, expiry)
		if err != nil {
			return nil, err
		}
		if _, err := s.repo.Create(ctx, user); err != nil {
			if errors.Is(err, domain.ErrUsernameTaken) {
				metrics.RegistrationsTotal.WithLabelValues("username_taken").Inc()
			} else if errors.Is(err, domain.ErrEmailTaken) {
				metrics.RegistrationsTotal.WithLabelValues("email_taken").Inc()
			}
			return nil, err
		}
		metrics.RegistrationsTotal.WithLabelValues("created").Inc()

	default:
		return nil, err
	}

	if err := s.sender.SendVerificationEmail(ctx, email, username, code); err != nil {
		metrics.EmailDeliveriesTotal.WithLabelValues("failed", "first").Inc()
		metrics.RegistrationsTotal.WithLabelValues("delivery_failed").Inc()
		s.log.Error().Err(err).Str("username", username).Msg("verification email dispatch failed")
		s.scheduleResend(ctx, email, username, code)
		return nil, fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)
	}
	metrics.EmailDeliveriesTotal.WithLabelValues("sent", "first").Inc()

	s.log.Info().Str("username", username).Msg("registration accepted, verification pending")
	return &ports.RegisterResult{Username: username, Email: email}, nil
}

// scheduleResend hands the undelivered code to the background retrier. The
// pending record stays valid for the code window, so a later retry can still
// complete the signup.
func (s *RegistrarService) scheduleResend(ctx context.Context, email, username, code string) {
	if s.retrier == nil {
		return
	}
	job := ports.NewDeliveryJob(email, username, code)
	if err := s.retrier.Schedule(ctx, job); err != nil {
		s.log.Error().Err(err).Str("username", username).Msg("failed to schedule verification resend")
	}
}

// VerifyAccount consumes a verification code. Consumption is a conditional
// update keyed on the still-pending state, so a concurrent verify that loses
// the race observes the account already verified and succeeds idempotently.
func (s *RegistrarService) VerifyAccount(ctx context.Context, username, code string) error {
	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			metrics.VerificationsTotal.WithLabelValues("not_found").Inc()
		}
		return err
	}

	if user.IsVerified {
		metrics.VerificationsTotal.WithLabelValues("already_verified").Inc()
		return nil
	}
	if code != user.VerifyCode {
		metrics.VerificationsTotal.WithLabelValues("invalid_code").Inc()
		return domain.ErrInvalidCode
	}
	if user.CodeExpired(time.Now().UTC()) {
		metrics.VerificationsTotal.WithLabelValues("expired").Inc()
		return domain.ErrCodeExpired
	}

	if err := s.repo.ConsumeVerification(ctx, username); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			// Lost the race against another verify call. If the account is
			// verified now, the outcome the caller wanted already holds.
			if current, ferr := s.repo.FindByUsername(ctx, username); ferr == nil && current.IsVerified {
				metrics.VerificationsTotal.WithLabelValues("already_verified").Inc()
				return nil
			}
		}
		return err
	}

	metrics.VerificationsTotal.WithLabelValues("verified").Inc()
	s.log.Info().Str("username", username).Msg("account verified")
	return nil
}

// Login authenticates a verified account by username or email.
func (s *RegistrarService) Login(ctx context.Context, identifier, password string) (string, *domain.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return "", nil, domain.ErrInvalidCredentials
	}

	user, err := s.repo.FindByUsername(ctx, identifier)
	if errors.Is(err, domain.ErrUserNotFound) && strings.Contains(identifier, "@") {
		user, err = s.repo.FindByEmail(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return "", nil, domain.ErrInvalidCredentials
		}
		return "", nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", nil, domain.ErrInvalidCredentials
	}
	if !user.IsVerified {
		return "", nil, domain.ErrNotVerified
	}

	token, err := s.generateToken(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (s *RegistrarService) generateToken(user *domain.User) (string, error) {
	claims := jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"exp":      time.Now().Add(s.tokenTTL).Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(s.jwtSecret))
}

// generateVerifyCode returns a 6-digit numeric code in [100000, 999999].
func generateVerifyCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate verification code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
