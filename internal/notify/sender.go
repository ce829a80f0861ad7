package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
)

// LogSender writes due notifications to the structured log. Default
// channel when no SMTP delivery is configured.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, n Notification) error {
	slog.InfoContext(ctx, "🔔 "+n.Title,
		"instance_id", n.ID,
		"body", n.Body,
		"trigger_at", n.TriggerAt)
	return nil
}

// EmailSender delivers notifications over SMTP.
type EmailSender struct {
	Addr     string // host:port
	Username string
	Password string
	From     string
	To       string
}

func (s EmailSender) Send(_ context.Context, n Notification) error {
	e := email.NewEmail()
	e.From = s.From
	e.To = []string{s.To}
	e.Subject = n.Title
	e.Text = []byte(n.Body)

	var auth smtp.Auth
	if s.Username != "" {
		host := s.Addr
		if i := strings.IndexByte(host, ':'); i >= 0 {
			host = host[:i]
		}
		auth = smtp.PlainAuth("", s.Username, s.Password, host)
	}

	if err := e.Send(s.Addr, auth); err != nil {
		return fmt.Errorf("send notification email %s: %w", n.ID, err)
	}
	return nil
}
