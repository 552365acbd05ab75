// Package email delivers alerts over SMTP.
package email

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payflow_billing/internal/domain/notifier"
	"payflow_billing/internal/infra/config"

	"gopkg.in/gomail.v2"
)

var ErrNoAddress = errors.New("recipient has no email address")

// Sender is satisfied by *gomail.Dialer.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type Notifier struct {
	sender Sender
	from   string
}

var _ notifier.Notifier = (*Notifier)(nil)

func NewNotifier(cfg config.SMTPConfig) *Notifier {
	return NewNotifierWithSender(gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password), cfg.From)
}

func NewNotifierWithSender(sender Sender, from string) *Notifier {
	return &Notifier{sender: sender, from: from}
}

func (n *Notifier) SendReminder(ctx context.Context, r notifier.Reminder) error {
	subject := fmt.Sprintf("[PayFlow] %s is due on %s", r.SubscriptionName, r.DueDate.Format(time.DateOnly))
	return n.send(ctx, r.Recipient, subject, r.Message)
}

func (n *Notifier) SendOverdue(ctx context.Context, o notifier.Overdue) error {
	subject := fmt.Sprintf("[PayFlow] %s payment is overdue", o.SubscriptionName)
	return n.send(ctx, o.Recipient, subject, o.Message)
}

func (n *Notifier) send(ctx context.Context, to notifier.Recipient, subject, body string) error {
	if to.Email == "" {
		return fmt.Errorf("%w: %s", ErrNoAddress, to.Name)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetAddressHeader("To", to.Email, to.Name)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	// gomail has no context support; give up waiting when ctx ends.
	done := make(chan error, 1)
	go func() { done <- n.sender.DialAndSend(m) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send email to %s: %w", to.Email, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
