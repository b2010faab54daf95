package email

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
)

func TestSMTPSender_SendsCodeToRecipient(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte

	s := NewSMTPSender(Config{
		Host: "mail.example.com",
		Port: 587,
		From: "no-reply@example.com",
	})
	s.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		if a != nil {
			t.Fatalf("expected no auth without credentials")
		}
		return nil
	}

	if err := s.SendVerificationEmail(context.Background(), "alice@example.com", "alice", "123456"); err != nil {
		t.Fatalf("send: %v", err)
	}

	if gotAddr != "mail.example.com:587" {
		t.Fatalf("unexpected addr: %s", gotAddr)
	}
	if gotFrom != "no-reply@example.com" {
		t.Fatalf("unexpected from: %s", gotFrom)
	}
	if len(gotTo) != 1 || gotTo[0] != "alice@example.com" {
		t.Fatalf("unexpected recipients: %v", gotTo)
	}

	body := string(gotMsg)
	if !strings.Contains(body, "123456") {
		t.Fatalf("code missing from message body")
	}
	if !strings.Contains(body, "alice") {
		t.Fatalf("username missing from message body")
	}
	if !strings.Contains(body, "Subject: Your verification code") {
		t.Fatalf("subject header missing: %q", body)
	}
}

func TestSMTPSender_UsesPlainAuthWhenConfigured(t *testing.T) {
	s := NewSMTPSender(Config{
		Host:     "mail.example.com",
		Port:     587,
		Username: "relay-user",
		Password: "relay-pass",
		From:     "no-reply@example.com",
	})

	var sawAuth bool
	s.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		sawAuth = a != nil
		return nil
	}

	if err := s.SendVerificationEmail(context.Background(), "bob@example.com", "bob", "654321"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if !sawAuth {
		t.Fatalf("expected PlainAuth when credentials are set")
	}
}

func TestSMTPSender_WrapsRelayError(t *testing.T) {
	s := NewSMTPSender(Config{Host: "mail.example.com", Port: 587})

	relayErr := errors.New("connection refused")
	s.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		return relayErr
	}

	err := s.SendVerificationEmail(context.Background(), "x@example.com", "x", "000000")
	if !errors.Is(err, relayErr) {
		t.Fatalf("expected wrapped relay error, got %v", err)
	}
}

func TestSMTPSender_HonoursCancelledContext(t *testing.T) {
	s := NewSMTPSender(Config{Host: "mail.example.com", Port: 587})
	s.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		t.Fatalf("send must not be called after cancellation")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.SendVerificationEmail(ctx, "x@example.com", "x", "000000"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
