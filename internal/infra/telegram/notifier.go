package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"payflow_billing/internal/domain/notifier"
	domaintelegram "payflow_billing/internal/domain/telegram"

	"gopkg.in/telebot.v3"
)

var ErrNoTelegramChat = errors.New("recipient has no linked telegram chat")

// PaidButton is the inline button attached to reminders and overdue alerts.
// Its callback payload is the cycle ID.
var PaidButton = telebot.Btn{Unique: "paid"}

// Notifier delivers alerts as Telegram messages.
type Notifier struct {
	client domaintelegram.Client
}

var _ notifier.Notifier = (*Notifier)(nil)

func NewNotifier(client domaintelegram.Client) *Notifier {
	return &Notifier{client: client}
}

func (n *Notifier) SendReminder(ctx context.Context, r notifier.Reminder) error {
	return n.send(ctx, r.Recipient, "⏰ "+r.Message, r.CycleID)
}

func (n *Notifier) SendOverdue(ctx context.Context, o notifier.Overdue) error {
	return n.send(ctx, o.Recipient, "⚠️ "+o.Message, o.CycleID)
}

func (n *Notifier) send(ctx context.Context, to notifier.Recipient, text string, cycleID int64) error {
	if to.TelegramID == 0 {
		return fmt.Errorf("%w: %s", ErrNoTelegramChat, to.Name)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	markup := &telebot.ReplyMarkup{}
	markup.Inline(markup.Row(markup.Data("Mark as paid", PaidButton.Unique, strconv.FormatInt(cycleID, 10))))

	if err := n.client.SendMessage(to.TelegramID, text, &telebot.SendOptions{ReplyMarkup: markup}); err != nil {
		return fmt.Errorf("failed to send telegram message to %d: %w", to.TelegramID, err)
	}
	return nil
}
