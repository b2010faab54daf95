package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/truefeedback/feedback-system/internal/api/metrics"
	"github.com/truefeedback/feedback-system/internal/core/domain"
	"github.com/truefeedback/feedback-system/internal/core/ports"
)

// ContentPolicy bounds the length of an anonymous message. Limits are
// configuration, not constants.
type ContentPolicy struct {
	MinLength int
	MaxLength int
}

// MessagingService implements the anonymous intake gate, the acceptance
// toggle, and ordered retrieval.
type MessagingService struct {
	repo   ports.UserRepository
	policy ContentPolicy
	log    zerolog.Logger
}

func NewMessagingService(repo ports.UserRepository, policy ContentPolicy, log zerolog.Logger) *MessagingService {
	if policy.MinLength <= 0 {
		policy.MinLength = 1
	}
	if policy.MaxLength <= 0 {
		policy.MaxLength = 300
	}
	return &MessagingService{repo: repo, policy: policy, log: log}
}

// SubmitMessage validates the content and performs a single atomic
// push-if-accepting against the recipient. There is no read-then-write: the
// acceptance flag is checked by the same storage operation that appends, so a
// toggle racing with an anonymous sender cannot slip a message through.
func (s *MessagingService) SubmitMessage(ctx context.Context, recipientUsername, content string) (*domain.Message, error) {
	content = strings.TrimSpace(content)
	length := utf8.RuneCountInString(content)
	if recipientUsername == "" || length < s.policy.MinLength || length > s.policy.MaxLength {
		metrics.MessagesReceivedTotal.WithLabelValues("invalid").Inc()
		return nil, domain.ErrInvalidMessage
	}

	msg := domain.NewMessage(content)
	if err := s.repo.AppendMessage(ctx, recipientUsername, msg); err != nil {
		switch {
		case errors.Is(err, domain.ErrRecipientNotFound):
			metrics.MessagesReceivedTotal.WithLabelValues("not_found").Inc()
		case errors.Is(err, domain.ErrMessagesDisabled):
			metrics.MessagesReceivedTotal.WithLabelValues("disabled").Inc()
		default:
			metrics.MessagesReceivedTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	metrics.MessagesReceivedTotal.WithLabelValues("accepted").Inc()
	s.log.Info().Str("recipient", recipientUsername).Msg("message accepted")
	return &msg, nil
}

// SetAcceptingMessages persists the flag for the principal's account and
// reports the value it replaced. Idempotent.
func (s *MessagingService) SetAcceptingMessages(ctx context.Context, p ports.Principal, enabled bool) (*ports.ToggleResult, error) {
	previous, err := s.repo.SetAcceptingMessages(ctx, p.UserID, enabled)
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("user_id", p.UserID).Bool("accepting", enabled).Msg("acceptance flag updated")
	return &ports.ToggleResult{Previous: previous, Current: enabled}, nil
}

// GetAcceptingMessages reads the flag for the principal's account.
func (s *MessagingService) GetAcceptingMessages(ctx context.Context, p ports.Principal) (bool, error) {
	return s.repo.GetAcceptingMessages(ctx, p.UserID)
}

// GetMessages returns the principal's messages, most recent first. Ordering
// comes from the storage layer's aggregation, so an unbounded collection is
// never loaded and re-sorted in process memory.
func (s *MessagingService) GetMessages(ctx context.Context, p ports.Principal) ([]ports.MessageView, error) {
	msgs, err := s.repo.ListMessages(ctx, p.UserID)
	if err != nil {
		return nil, err
	}

	views := make([]ports.MessageView, len(msgs))
	for i, m := range msgs {
		views[i] = ports.MessageView{
			ID:        m.ID.Hex(),
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		}
	}
	return views, nil
}
