// Package notify renders notification events into mail and hands them to
// an outbound transport.  Delivery itself belongs to the mail provider;
// this package only builds the message and reports the provider's error.
package notify

import (
	"context"
	"fmt"
	"log"
	"net/smtp"

	"github.com/iliyamo/project-portal/internal/queue"
)

// Mailer sends one message.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPConfig holds the relay settings for SMTPMailer.
type SMTPConfig struct {
	Host string
	Port string
	User string
	Pass string
	From string
}

// SMTPMailer sends plain-text mail through an SMTP relay.
type SMTPMailer struct{ Cfg SMTPConfig }

func (m SMTPMailer) Send(_ context.Context, to, subject, body string) error {
	addr := m.Cfg.Host + ":" + m.Cfg.Port
	msg := "From: " + m.Cfg.From + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/plain; charset=\"UTF-8\"\r\n" +
		"\r\n" +
		body

	var auth smtp.Auth
	if m.Cfg.User != "" {
		auth = smtp.PlainAuth("", m.Cfg.User, m.Cfg.Pass, m.Cfg.Host)
	}
	if err := smtp.SendMail(addr, auth, m.Cfg.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// LogMailer logs messages instead of sending them.  The body is left out
// since it can hold a live token.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, to, subject, body string) error {
	log.Printf("mail: to=%s subject=%q body=%d bytes", to, subject, len(body))
	return nil
}

// Deliverer is the consumer-side handler: render, then send.
type Deliverer struct{ Mailer Mailer }

// Handle satisfies queue.HandlerFunc.  A subject set on the event wins over
// the rendered one.
func (d Deliverer) Handle(ctx context.Context, ev queue.NotificationEvent) error {
	subject, body, err := Render(ev)
	if err != nil {
		return err
	}
	if ev.Subject != "" {
		subject = ev.Subject
	}
	return d.Mailer.Send(ctx, ev.To, subject, body)
}
