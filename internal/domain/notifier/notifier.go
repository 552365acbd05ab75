package notifier

import (
	"context"
	"time"
)

// Recipient carries every contact address known for a user; each channel
// picks the one it needs.
type Recipient struct {
	Name       string
	Email      string
	TelegramID int64
}

// Reminder is a D-n reminder about an upcoming payment.
type Reminder struct {
	CycleID          int64
	Recipient        Recipient
	SubscriptionName string
	DueDate          time.Time
	DaysAhead        int
	Amount           int64
	Currency         string
	Message          string
}

// Overdue tells the user a due date passed without payment.
type Overdue struct {
	CycleID          int64
	Recipient        Recipient
	SubscriptionName string
	DueDate          time.Time
	Amount           int64
	Currency         string
	Message          string
}

// Notifier delivers alerts over one channel. A nil error means confirmed delivery.
// This decouples the dispatcher from the concrete transport.
type Notifier interface {
	SendReminder(ctx context.Context, r Reminder) error
	SendOverdue(ctx context.Context, o Overdue) error
}
