package telegram

import "gopkg.in/telebot.v3"

// Client defines an interface for sending messages via a Telegram bot.
// The notifier depends on this rather than on *telebot.Bot so it can be tested.
type Client interface {
	SendMessage(recipientChatID int64, text string, options *telebot.SendOptions) error
}
