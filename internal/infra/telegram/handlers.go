package telegram

import (
	"context"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// RegisterHandlers wires every bot command and the "Mark as paid" button.
func RegisterHandlers(ctx context.Context, b *telebot.Bot, cmds *Commands, baseLogger *logrus.Entry) {
	logged := func(command string, fn func(c telebot.Context) string) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			baseLogger.WithFields(logrus.Fields{
				"command":   command,
				"sender_id": c.Sender().ID,
			}).Info("Command received")
			return c.Send(fn(c))
		}
	}

	b.Handle("/start", logged("/start", func(c telebot.Context) string {
		return cmds.Start(ctx, c.Sender().ID, c.Sender().FirstName)
	}))
	b.Handle("/help", logged("/help", func(telebot.Context) string {
		return cmds.Help()
	}))
	b.Handle("/add", logged("/add", func(c telebot.Context) string {
		return cmds.Add(ctx, c.Sender().ID, c.Args())
	}))
	b.Handle("/subs", logged("/subs", func(c telebot.Context) string {
		return cmds.Subscriptions(ctx, c.Sender().ID)
	}))
	b.Handle("/cycles", logged("/cycles", func(c telebot.Context) string {
		return cmds.Cycles(ctx, c.Sender().ID, c.Args())
	}))
	b.Handle("/remind", logged("/remind", func(c telebot.Context) string {
		return cmds.Remind(ctx, c.Sender().ID, c.Args())
	}))
	b.Handle("/delete", logged("/delete", func(c telebot.Context) string {
		return cmds.Delete(ctx, c.Sender().ID, c.Args())
	}))
	b.Handle("/upcoming", logged("/upcoming", func(c telebot.Context) string {
		return cmds.Upcoming(ctx, c.Sender().ID, c.Args())
	}))
	b.Handle("/history", logged("/history", func(c telebot.Context) string {
		return cmds.History(ctx, c.Sender().ID, c.Args())
	}))
	b.Handle("/paid", logged("/paid", func(c telebot.Context) string {
		return cmds.Paid(ctx, c.Sender().ID, c.Args())
	}))

	b.Handle("/cancel", logged("/cancel", func(c telebot.Context) string {
		return cmds.Cancel(ctx, c.Sender().ID, c.Args())
	}))
	b.Handle("/notifications", logged("/notifications", func(c telebot.Context) string {
		return cmds.Notifications(ctx, c.Sender().ID)
	}))

	b.Handle(&PaidButton, func(c telebot.Context) error {
		baseLogger.WithFields(logrus.Fields{
			"callback":  PaidButton.Unique,
			"sender_id": c.Sender().ID,
			"data":      c.Callback().Data,
		}).Info("Callback received")
		return c.Respond(&telebot.CallbackResponse{Text: cmds.PaidCallback(ctx, c.Sender().ID, c.Callback().Data)})
	})
}
