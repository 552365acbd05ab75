package telegram

import (
	"context"
	"testing"
	"time"

	"payflow_billing/internal/domain/notifier"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/telebot.v3"
)

type sentMessage struct {
	chatID int64
	text   string
	opts   *telebot.SendOptions
}

type stubClient struct {
	sent []sentMessage
	err  error
}

func (s *stubClient) SendMessage(chatID int64, text string, opts *telebot.SendOptions) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentMessage{chatID, text, opts})
	return nil
}

func TestNotifier_SendReminderAttachesPaidButton(t *testing.T) {
	client := &stubClient{}
	n := NewNotifier(client)

	err := n.SendReminder(context.Background(), notifier.Reminder{
		CycleID:   15,
		Recipient: notifier.Recipient{Name: "Kim", TelegramID: 42},
		DueDate:   time.Date(2025, 6, 4, 0, 0, 0, 0, time.UTC),
		DaysAhead: 3,
		Message:   "Netflix payment is due.",
	})
	require.NoError(t, err)
	require.Len(t, client.sent, 1)

	msg := client.sent[0]
	assert.Equal(t, int64(42), msg.chatID)
	assert.Contains(t, msg.text, "Netflix payment is due.")
	require.NotNil(t, msg.opts.ReplyMarkup)
	require.Len(t, msg.opts.ReplyMarkup.InlineKeyboard, 1)
	btn := msg.opts.ReplyMarkup.InlineKeyboard[0][0]
	assert.Equal(t, "Mark as paid", btn.Text)
	assert.Equal(t, "paid", btn.Unique)
	assert.Equal(t, "15", btn.Data)
}

func TestNotifier_RequiresLinkedChat(t *testing.T) {
	client := &stubClient{}
	n := NewNotifier(client)

	err := n.SendOverdue(context.Background(), notifier.Overdue{CycleID: 1, Recipient: notifier.Recipient{Name: "Lee"}})
	assert.ErrorIs(t, err, ErrNoTelegramChat)
	assert.Empty(t, client.sent)
}
