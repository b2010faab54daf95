package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/truefeedback/feedback-system/internal/core/domain"
	"github.com/truefeedback/feedback-system/internal/core/ports"
)

type stubMessaging struct {
	submitFn func(ctx context.Context, recipient, content string) (*domain.Message, error)
	setFn    func(ctx context.Context, p ports.Principal, enabled bool) (*ports.ToggleResult, error)
	getFn    func(ctx context.Context, p ports.Principal) (bool, error)
	listFn   func(ctx context.Context, p ports.Principal) ([]ports.MessageView, error)
}

func (s *stubMessaging) SubmitMessage(ctx context.Context, recipient, content string) (*domain.Message, error) {
	return s.submitFn(ctx, recipient, content)
}

func (s *stubMessaging) SetAcceptingMessages(ctx context.Context, p ports.Principal, enabled bool) (*ports.ToggleResult, error) {
	return s.setFn(ctx, p, enabled)
}

func (s *stubMessaging) GetAcceptingMessages(ctx context.Context, p ports.Principal) (bool, error) {
	return s.getFn(ctx, p)
}

func (s *stubMessaging) GetMessages(ctx context.Context, p ports.Principal) ([]ports.MessageView, error) {
	return s.listFn(ctx, p)
}

func asPrincipal(c echo.Context, userID, username string) {
	c.Set("user_id", userID)
	c.Set("username", username)
}

func TestMessageHandler_Send_Success(t *testing.T) {
	stub := &stubMessaging{
		submitFn: func(ctx context.Context, recipient, content string) (*domain.Message, error) {
			if recipient != "bob" || content != "hello there" {
				t.Fatalf("unexpected args: %s %s", recipient, content)
			}
			msg := domain.NewMessage(content)
			return &msg, nil
		},
	}
	h := NewMessageHandler(stub)

	c, rec := newTestContext(t, http.MethodPost, "/api/send-message",
		`{"username":"bob","content":"hello there"}`)

	if err := h.Send(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	resp := decodeEnvelope(t, rec)
	if resp["success"] != true {
		t.Fatalf("expected success envelope, got %+v", resp)
	}
	// The confirmation must not echo the stored message back to the sender.
	if _, present := resp["data"]; present {
		t.Fatalf("send response must not carry data, got %+v", resp)
	}
}

func TestMessageHandler_Send_MissingContent(t *testing.T) {
	stub := &stubMessaging{
		submitFn: func(ctx context.Context, recipient, content string) (*domain.Message, error) {
			t.Fatalf("should not be called")
			return nil, nil
		},
	}
	h := NewMessageHandler(stub)

	c, _ := newTestContext(t, http.MethodPost, "/api/send-message",
		`{"username":"bob"}`)

	err := h.Send(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 HTTP error, got %v", err)
	}
}

func TestMessageHandler_Send_ErrorPassthrough(t *testing.T) {
	for _, want := range []error{domain.ErrMessagesDisabled, domain.ErrRecipientNotFound} {
		stub := &stubMessaging{
			submitFn: func(ctx context.Context, recipient, content string) (*domain.Message, error) {
				return nil, want
			},
		}
		h := NewMessageHandler(stub)

		c, _ := newTestContext(t, http.MethodPost, "/api/send-message",
			`{"username":"bob","content":"hello"}`)

		if err := h.Send(c); !errors.Is(err, want) {
			t.Fatalf("expected %v passthrough, got %v", want, err)
		}
	}
}

func TestMessageHandler_GetAcceptingMessages(t *testing.T) {
	stub := &stubMessaging{
		getFn: func(ctx context.Context, p ports.Principal) (bool, error) {
			if p.UserID != "id1" || p.Username != "alice" {
				t.Fatalf("unexpected principal: %+v", p)
			}
			return true, nil
		},
	}
	h := NewMessageHandler(stub)

	c, rec := newTestContext(t, http.MethodGet, "/api/accept-messages", "")
	asPrincipal(c, "id1", "alice")

	if err := h.GetAcceptingMessages(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	resp := decodeEnvelope(t, rec)
	data, ok := resp["data"].(map[string]any)
	if !ok || data["isAcceptingMessages"] != true {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestMessageHandler_MissingPrincipal(t *testing.T) {
	h := NewMessageHandler(&stubMessaging{})

	calls := []func(echo.Context) error{
		h.GetAcceptingMessages,
		h.SetAcceptingMessages,
		h.GetMessages,
	}
	for _, call := range calls {
		c, _ := newTestContext(t, http.MethodGet, "/", "")

		err := call(c)
		var he *echo.HTTPError
		if !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 HTTP error, got %v", err)
		}
	}
}

func TestMessageHandler_SetAcceptingMessages(t *testing.T) {
	stub := &stubMessaging{
		setFn: func(ctx context.Context, p ports.Principal, enabled bool) (*ports.ToggleResult, error) {
			if enabled {
				t.Fatalf("expected disable request")
			}
			return &ports.ToggleResult{Previous: true, Current: false}, nil
		},
	}
	h := NewMessageHandler(stub)

	c, rec := newTestContext(t, http.MethodPost, "/api/accept-messages",
		`{"acceptMessages":false}`)
	asPrincipal(c, "id1", "alice")

	if err := h.SetAcceptingMessages(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	resp := decodeEnvelope(t, rec)
	data, ok := resp["data"].(map[string]any)
	if !ok {
		t.Fatalf("missing data payload: %+v", resp)
	}
	if data["isAcceptingMessages"] != false || data["previous"] != true {
		t.Fatalf("unexpected toggle payload: %+v", data)
	}
}

func TestMessageHandler_SetAcceptingMessages_MissingFlag(t *testing.T) {
	h := NewMessageHandler(&stubMessaging{})

	c, _ := newTestContext(t, http.MethodPost, "/api/accept-messages", `{}`)
	asPrincipal(c, "id1", "alice")

	err := h.SetAcceptingMessages(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 HTTP error, got %v", err)
	}
}

func TestMessageHandler_GetMessages(t *testing.T) {
	newest := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	stub := &stubMessaging{
		listFn: func(ctx context.Context, p ports.Principal) ([]ports.MessageView, error) {
			return []ports.MessageView{
				{ID: "m2", Content: "second", CreatedAt: newest},
				{ID: "m1", Content: "first", CreatedAt: newest.Add(-time.Hour)},
			}, nil
		},
	}
	h := NewMessageHandler(stub)

	c, rec := newTestContext(t, http.MethodGet, "/api/messages", "")
	asPrincipal(c, "id1", "alice")

	if err := h.GetMessages(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	resp := decodeEnvelope(t, rec)
	data, ok := resp["data"].(map[string]any)
	if !ok {
		t.Fatalf("missing data payload: %+v", resp)
	}
	msgs, ok := data["messages"].([]any)
	if !ok || len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %+v", data)
	}
	first, _ := msgs[0].(map[string]any)
	if first["id"] != "m2" || first["content"] != "second" {
		t.Fatalf("order not preserved: %+v", msgs)
	}
}

func TestMessageHandler_GetMessages_Empty(t *testing.T) {
	stub := &stubMessaging{
		listFn: func(ctx context.Context, p ports.Principal) ([]ports.MessageView, error) {
			return []ports.MessageView{}, nil
		},
	}
	h := NewMessageHandler(stub)

	c, rec := newTestContext(t, http.MethodGet, "/api/messages", "")
	asPrincipal(c, "id1", "alice")

	if err := h.GetMessages(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for empty inbox, got %d", rec.Code)
	}

	resp := decodeEnvelope(t, rec)
	data, ok := resp["data"].(map[string]any)
	if !ok {
		t.Fatalf("missing data payload: %+v", resp)
	}
	msgs, ok := data["messages"].([]any)
	if !ok || len(msgs) != 0 {
		t.Fatalf("expected empty list, got %+v", data)
	}
}
