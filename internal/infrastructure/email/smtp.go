// Package email delivers verification codes over SMTP. It is the only
// implementation of the EmailSender port; everything upstream treats delivery
// as an opaque collaborator that either succeeds or fails.
package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// Config captures the SMTP settings for outbound verification email.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender sends verification codes through a plain SMTP relay.
type SMTPSender struct {
	cfg Config
	// send is swappable in tests; defaults to smtp.SendMail.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(cfg Config) *SMTPSender {
	return &SMTPSender{cfg: cfg, send: smtp.SendMail}
}

// SendVerificationEmail delivers the 6-digit code to the registrant. The
// message body never appears in logs.
func (s *SMTPSender) SendVerificationEmail(ctx context.Context, to, username, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	msg := buildMessage(s.cfg.From, to, username, code)
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	if err := s.send(addr, auth, s.cfg.From, []string{to}, msg); err != nil {
		return fmt.Errorf("send verification email: %w", err)
	}
	return nil
}

func buildMessage(from, to, username, code string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: Your verification code\r\n")
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&b, "Hi %s,\r\n\r\n", username)
	fmt.Fprintf(&b, "Your verification code is %s. It expires in one hour.\r\n\r\n", code)
	b.WriteString("If you did not sign up, you can ignore this email.\r\n")
	return []byte(b.String())
}
