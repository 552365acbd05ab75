package app

import (
	"fmt"
	"time"

	"payflow_billing/internal/domain/subscription"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var amountPrinter = message.NewPrinter(language.English)

// FormatAmount renders an amount in minor units with thousands separators, e.g. "17,000 KRW".
func FormatAmount(amount int64, currency string) string {
	return amountPrinter.Sprintf("%d %s", amount, currency)
}

func reminderMessage(sub *subscription.Subscription, dueDate time.Time, daysAhead int) string {
	unit := "days"
	if daysAhead == 1 {
		unit = "day"
	}
	return fmt.Sprintf("%s payment of %s is due on %s (in %d %s).",
		sub.Name, FormatAmount(sub.Amount, sub.Currency), dueDate.Format(time.DateOnly), daysAhead, unit)
}

func overdueMessage(sub *subscription.Subscription, dueDate time.Time) string {
	return fmt.Sprintf("%s payment of %s was due on %s and has not been recorded as paid. Late fees may apply.",
		sub.Name, FormatAmount(sub.Amount, sub.Currency), dueDate.Format(time.DateOnly))
}
