// Package notify delivers per-attempt outcome messages to users.
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Outcome summarizes a finished check-in attempt for delivery.
type Outcome struct {
	User      string
	Email     string
	Succeeded bool
	Answer    string
	Retries   int
	When      time.Time
	Detail    string
}

// Notifier delivers an outcome. Implementations must tolerate being called
// with an empty Email and do nothing.
type Notifier interface {
	Notify(ctx context.Context, o Outcome) error
}

// Nop discards every outcome.
type Nop struct{}

func (Nop) Notify(context.Context, Outcome) error { return nil }

// Mailer delivers outcomes over SMTP.
type Mailer struct {
	Host     string
	Port     int
	Account  string
	Password string
	From     string
	Log      *zap.Logger
}

// NewMailer builds a mailer; From falls back to Account.
func NewMailer(host string, port int, account, password, from string, log *zap.Logger) *Mailer {
	if from == "" {
		from = account
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Mailer{Host: host, Port: port, Account: account, Password: password, From: from, Log: log}
}

// Notify sends a plain-text report. Delivery failures are returned but the
// orchestrator treats them as non-fatal.
func (m *Mailer) Notify(_ context.Context, o Outcome) error {
	if o.Email == "" {
		return nil
	}
	subject, body := render(o)
	msg := strings.Join([]string{
		"From: " + m.From,
		"To: " + o.Email,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", m.Host, m.Port)
	auth := smtp.PlainAuth("", m.Account, m.Password, m.Host)
	if err := smtp.SendMail(addr, auth, m.From, []string{o.Email}, []byte(msg)); err != nil {
		return fmt.Errorf("notify: send to %s: %w", o.Email, err)
	}
	m.Log.Info("outcome mailed", zap.String("user", o.User), zap.Bool("succeeded", o.Succeeded))
	return nil
}

func render(o Outcome) (subject, body string) {
	when := o.When.Format("2006-01-02 15:04:05")
	if o.Succeeded {
		subject = fmt.Sprintf("check-in succeeded for %s", o.User)
		body = fmt.Sprintf("User %s checked in at %s.\nAnswer: %s\nRetries used: %d\n",
			o.User, when, o.Answer, o.Retries)
		return
	}
	subject = fmt.Sprintf("check-in FAILED for %s", o.User)
	body = fmt.Sprintf("User %s failed to check in at %s after %d retries.\n\n%s\n",
		o.User, when, o.Retries, o.Detail)
	return
}
