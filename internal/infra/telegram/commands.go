package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"payflow_billing/internal/app"
	"payflow_billing/internal/domain/notification"
	"payflow_billing/internal/domain/payment"
	"payflow_billing/internal/domain/subscription"
	"payflow_billing/internal/domain/user"

	"github.com/sirupsen/logrus"
)

const (
	defaultUpcomingDays   = 30
	recentNotificationCap = 10
)

// CycleQueries is the part of app.CycleService the bot talks to.
type CycleQueries interface {
	Upcoming(ctx context.Context, userID int64, days int) ([]*payment.Cycle, error)
	History(ctx context.Context, userID int64, start, end time.Time) ([]*payment.Cycle, error)
	ForSubscription(ctx context.Context, userID, subscriptionID int64) ([]*payment.Cycle, error)
	MarkPaidByOwner(ctx context.Context, userID, cycleID int64, paidAmount *int64) (*payment.Cycle, error)
	MarkCancelledByOwner(ctx context.Context, userID, cycleID int64) (*payment.Cycle, error)
}

// SubscriptionManager is the part of app.SubscriptionService the bot talks to.
type SubscriptionManager interface {
	Create(ctx context.Context, userID int64, in app.CreateSubscriptionInput) (*subscription.Subscription, error)
	List(ctx context.Context, userID int64) ([]*subscription.Subscription, error)
	Update(ctx context.Context, userID, subscriptionID int64, patch subscription.Patch) (*subscription.Subscription, error)
	Delete(ctx context.Context, userID, subscriptionID int64) error
}

// NotificationLister reads the user's notification ledger.
type NotificationLister interface {
	ListByUser(ctx context.Context, userID int64) ([]*notification.Notification, error)
}

// Commands turns bot commands into reply text. It holds no telebot state so
// each command can be exercised without a live bot.
type Commands struct {
	users         user.Repository
	cycles        CycleQueries
	subs          SubscriptionManager
	notifications NotificationLister
	logger        *logrus.Entry
}

func NewCommands(users user.Repository, cycles CycleQueries, subs SubscriptionManager, notifications NotificationLister, logger *logrus.Entry) *Commands {
	return &Commands{users: users, cycles: cycles, subs: subs, notifications: notifications, logger: logger}
}

const helpText = `Available commands:

/add <name> <amount> monthly <day> - add a subscription billed monthly
/add <name> <amount> weekly <1-7> - billed weekly, 1 is Monday
/add <name> <amount> yearly <month> <day> - billed yearly
/subs - list your subscriptions
/cycles <subscriptionID> - every payment of one subscription
/remind <subscriptionID> <d3|d1> <on|off> - toggle a reminder
/delete <subscriptionID> - delete a subscription and its payments
/upcoming [days] - pending payments due in the next days (default 30)
/history <from> <to> - payments due between two dates (YYYY-MM-DD)
/paid <cycleID> [amount] - record a payment
/cancel <cycleID> - cancel a pending payment
/notifications - recent reminders and alerts
/help - show this message`

const somethingWrong = "Something went wrong. Please try again later."

func (c *Commands) Start(ctx context.Context, senderID int64, firstName string) string {
	u, err := c.users.GetByTelegramID(ctx, senderID)
	if err != nil {
		return c.unknownOrError(err, senderID, "/start")
	}
	return fmt.Sprintf("Hello, %s! I will remind you 3 days and 1 day before each payment and tell you when one is overdue.\n\n%s", nameOr(u.Name, firstName), helpText)
}

func (c *Commands) Help() string {
	return helpText
}

func (c *Commands) Upcoming(ctx context.Context, senderID int64, args []string) string {
	u, err := c.users.GetByTelegramID(ctx, senderID)
	if err != nil {
		return c.unknownOrError(err, senderID, "/upcoming")
	}

	days := defaultUpcomingDays
	if len(args) > 0 {
		days, err = strconv.Atoi(args[0])
		if err != nil || days < 0 {
			return "Usage: /upcoming [days], where days is a non-negative number."
		}
	}

	cycles, err := c.cycles.Upcoming(ctx, u.ID, days)
	if err != nil {
		c.logger.WithError(err).WithField("user_id", u.ID).Error("Failed to list upcoming payments")
		return somethingWrong
	}
	if len(cycles) == 0 {
		return fmt.Sprintf("No payments due in the next %d days.", days)
	}
	return c.render(ctx, u.ID, fmt.Sprintf("Payments due in the next %d days:", days), cycles)
}

func (c *Commands) History(ctx context.Context, senderID int64, args []string) string {
	u, err := c.users.GetByTelegramID(ctx, senderID)
	if err != nil {
		return c.unknownOrError(err, senderID, "/history")
	}

	const usage = "Usage: /history <from> <to>, dates as YYYY-MM-DD."
	if len(args) != 2 {
		return usage
	}
	from, err1 := time.Parse(time.DateOnly, args[0])
	to, err2 := time.Parse(time.DateOnly, args[1])
	if err1 != nil || err2 != nil {
		return usage
	}

	cycles, err := c.cycles.History(ctx, u.ID, from, to)
	if errors.Is(err, payment.ErrInvalidRange) {
		return "The start date must not be after the end date."
	}
	if err != nil {
		c.logger.WithError(err).WithField("user_id", u.ID).Error("Failed to list payment history")
		return somethingWrong
	}
	if len(cycles) == 0 {
		return "No payments in that period."
	}
	return c.render(ctx, u.ID, fmt.Sprintf("Payments from %s to %s:", args[0], args[1]), cycles)
}

func (c *Commands) Paid(ctx context.Context, senderID int64, args []string) string {
	if len(args) < 1 || len(args) > 2 {
		return "Usage: /paid <cycleID> [amount]"
	}
	cycleID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return "Cycle ID must be a number."
	}
	var amount *int64
	if len(args) == 2 {
		v, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil || v < 0 {
			return "Amount must be a non-negative number."
		}
		amount = &v
	}
	return c.markPaid(ctx, senderID, cycleID, amount)
}

// PaidCallback handles the inline button; data is the cycle ID.
func (c *Commands) PaidCallback(ctx context.Context, senderID int64, data string) string {
	cycleID, err := strconv.ParseInt(data, 10, 64)
	if err != nil {
		return "Unknown payment."
	}
	return c.markPaid(ctx, senderID, cycleID, nil)
}

func (c *Commands) markPaid(ctx context.Context, senderID, cycleID int64, amount *int64) string {
	u, err := c.users.GetByTelegramID(ctx, senderID)
	if err != nil {
		return c.unknownOrError(err, senderID, "/paid")
	}

	cycle, err := c.cycles.MarkPaidByOwner(ctx, u.ID, cycleID, amount)
	switch {
	case errors.Is(err, payment.ErrCycleNotFound):
		return fmt.Sprintf("Payment #%d not found.", cycleID)
	case errors.Is(err, payment.ErrConflict):
		return fmt.Sprintf("Payment #%d is already settled.", cycleID)
	case err != nil:
		c.logger.WithError(err).WithFields(logrus.Fields{"user_id": u.ID, "cycle_id": cycleID}).Error("Failed to mark payment paid")
		return somethingWrong
	}
	return fmt.Sprintf("Payment #%d due %s marked as paid.", cycle.ID, cycle.DueDate.Format(time.DateOnly))
}

// Add creates a subscription and reports the payments scheduled for it.
func (c *Commands) Add(ctx context.Context, senderID int64, args []string) string {
	u, err := c.users.GetByTelegramID(ctx, senderID)
	if err != nil {
		return c.unknownOrError(err, senderID, "/add")
	}

	in, ok := parseAddArgs(args)
	if !ok {
		return "Usage: /add <name> <amount> monthly <day> | weekly <1-7> | yearly <month> <day>"
	}

	sub, err := c.subs.Create(ctx, u.ID, in)
	if errors.Is(err, payment.ErrInvalidConfiguration) {
		return "Invalid subscription: " + err.Error()
	}
	if err != nil {
		c.logger.WithError(err).WithField("user_id", u.ID).Error("Failed to create subscription")
		return somethingWrong
	}

	reply := fmt.Sprintf("Added #%d %s, %s %s.", sub.ID, sub.Name, app.FormatAmount(sub.Amount, sub.Currency), billingLabel(sub.Billing))
	cycles, err := c.cycles.ForSubscription(ctx, u.ID, sub.ID)
	if err != nil || len(cycles) == 0 {
		return reply + " No payments scheduled yet."
	}
	return fmt.Sprintf("%s %d payments scheduled, next due %s.", reply, len(cycles), cycles[0].DueDate.Format(time.DateOnly))
}

func (c *Commands) Subscriptions(ctx context.Context, senderID int64) string {
	u, err := c.users.GetByTelegramID(ctx, senderID)
	if err != nil {
		return c.unknownOrError(err, senderID, "/subs")
	}

	subs, err := c.subs.List(ctx, u.ID)
	if err != nil {
		c.logger.WithError(err).WithField("user_id", u.ID).Error("Failed to list subscriptions")
		return somethingWrong
	}
	if len(subs) == 0 {
		return "You have no subscriptions. Add one with /add."
	}

	var b strings.Builder
	b.WriteString("Your subscriptions:")
	for _, s := range subs {
		fmt.Fprintf(&b, "\n#%d %s %s %s [%s]", s.ID, s.Name, app.FormatAmount(s.Amount, s.Currency), billingLabel(s.Billing), s.Status)
	}
	return b.String()
}

func (c *Commands) Cycles(ctx context.Context, senderID int64, args []string) string {
	u, err := c.users.GetByTelegramID(ctx, senderID)
	if err != nil {
		return c.unknownOrError(err, senderID, "/cycles")
	}
	subID, ok := singleID(args)
	if !ok {
		return "Usage: /cycles <subscriptionID>"
	}

	cycles, err := c.cycles.ForSubscription(ctx, u.ID, subID)
	switch {
	case errors.Is(err, subscription.ErrSubscriptionNotFound):
		return fmt.Sprintf("Subscription #%d not found.", subID)
	case err != nil:
		c.logger.WithError(err).WithFields(logrus.Fields{"user_id": u.ID, "subscription_id": subID}).Error("Failed to list cycles")
		return somethingWrong
	case len(cycles) == 0:
		return fmt.Sprintf("Subscription #%d has no payments.", subID)
	}
	return c.render(ctx, u.ID, fmt.Sprintf("Payments of subscription #%d:", subID), cycles)
}

// Remind toggles the D-3 or D-1 reminder of a subscription.
func (c *Commands) Remind(ctx context.Context, senderID int64, args []string) string {
	u, err := c.users.GetByTelegramID(ctx, senderID)
	if err != nil {
		return c.unknownOrError(err, senderID, "/remind")
	}

	const usage = "Usage: /remind <subscriptionID> <d3|d1> <on|off>"
	if len(args) != 3 {
		return usage
	}
	subID, ok := singleID(args[:1])
	if !ok {
		return usage
	}
	var on bool
	switch strings.ToLower(args[2]) {
	case "on":
		on = true
	case "off":
	default:
		return usage
	}
	var patch subscription.Patch
	switch strings.ToLower(args[1]) {
	case "d3":
		patch.ReminderD3 = &on
	case "d1":
		patch.ReminderD1 = &on
	default:
		return usage
	}

	sub, err := c.subs.Update(ctx, u.ID, subID, patch)
	switch {
	case errors.Is(err, subscription.ErrSubscriptionNotFound):
		return fmt.Sprintf("Subscription #%d not found.", subID)
	case err != nil:
		c.logger.WithError(err).WithFields(logrus.Fields{"user_id": u.ID, "subscription_id": subID}).Error("Failed to update subscription")
		return somethingWrong
	}
	return fmt.Sprintf("Reminders for #%d %s: D-3 %s, D-1 %s.", sub.ID, sub.Name,
		onOff(sub.Billing.ReminderD3), onOff(sub.Billing.ReminderD1))
}

func (c *Commands) Delete(ctx context.Context, senderID int64, args []string) string {
	u, err := c.users.GetByTelegramID(ctx, senderID)
	if err != nil {
		return c.unknownOrError(err, senderID, "/delete")
	}
	subID, ok := singleID(args)
	if !ok {
		return "Usage: /delete <subscriptionID>"
	}

	err = c.subs.Delete(ctx, u.ID, subID)
	switch {
	case errors.Is(err, subscription.ErrSubscriptionNotFound):
		return fmt.Sprintf("Subscription #%d not found.", subID)
	case err != nil:
		c.logger.WithError(err).WithFields(logrus.Fields{"user_id": u.ID, "subscription_id": subID}).Error("Failed to delete subscription")
		return somethingWrong
	}
	return fmt.Sprintf("Subscription #%d and its payments were deleted.", subID)
}

// Cancel marks one PENDING payment as CANCELLED.
func (c *Commands) Cancel(ctx context.Context, senderID int64, args []string) string {
	u, err := c.users.GetByTelegramID(ctx, senderID)
	if err != nil {
		return c.unknownOrError(err, senderID, "/cancel")
	}
	cycleID, ok := singleID(args)
	if !ok {
		return "Usage: /cancel <cycleID>"
	}

	cycle, err := c.cycles.MarkCancelledByOwner(ctx, u.ID, cycleID)
	switch {
	case errors.Is(err, payment.ErrCycleNotFound):
		return fmt.Sprintf("Payment #%d not found.", cycleID)
	case errors.Is(err, payment.ErrConflict):
		return fmt.Sprintf("Payment #%d is already settled.", cycleID)
	case err != nil:
		c.logger.WithError(err).WithFields(logrus.Fields{"user_id": u.ID, "cycle_id": cycleID}).Error("Failed to cancel payment")
		return somethingWrong
	}
	return fmt.Sprintf("Payment #%d due %s cancelled.", cycle.ID, cycle.DueDate.Format(time.DateOnly))
}

// Notifications lists the user's most recent reminders and alerts, newest first.
func (c *Commands) Notifications(ctx context.Context, senderID int64) string {
	u, err := c.users.GetByTelegramID(ctx, senderID)
	if err != nil {
		return c.unknownOrError(err, senderID, "/notifications")
	}

	rows, err := c.notifications.ListByUser(ctx, u.ID)
	if err != nil {
		c.logger.WithError(err).WithField("user_id", u.ID).Error("Failed to list notifications")
		return somethingWrong
	}
	if len(rows) == 0 {
		return "No notifications yet."
	}
	if len(rows) > recentNotificationCap {
		rows = rows[len(rows)-recentNotificationCap:]
	}

	var b strings.Builder
	b.WriteString("Recent notifications:")
	for i := len(rows) - 1; i >= 0; i-- {
		n := rows[i]
		state := "not delivered"
		if n.Sent {
			state = "sent " + n.SentAt.Time.Format(time.DateOnly)
		}
		fmt.Fprintf(&b, "\n%s payment #%d [%s]: %s", n.Kind, n.CycleID, state, n.Message)
	}
	return b.String()
}

func (c *Commands) render(ctx context.Context, userID int64, title string, cycles []*payment.Cycle) string {
	subs := map[int64]*subscription.Subscription{}
	if list, err := c.subs.List(ctx, userID); err == nil {
		for _, s := range list {
			subs[s.ID] = s
		}
	} else {
		c.logger.WithError(err).WithField("user_id", userID).Warn("Failed to load subscription names")
	}

	var b strings.Builder
	b.WriteString(title)
	for _, cy := range cycles {
		name, amount := "subscription", ""
		if s, ok := subs[cy.SubscriptionID]; ok {
			name = s.Name
			amount = " " + app.FormatAmount(s.Amount, s.Currency)
		}
		fmt.Fprintf(&b, "\n#%d %s %s%s [%s]", cy.ID, cy.DueDate.Format(time.DateOnly), name, amount, cy.Status)
	}
	return b.String()
}

func (c *Commands) unknownOrError(err error, senderID int64, command string) string {
	if errors.Is(err, user.ErrUserNotFound) {
		return "Your Telegram account is not linked to a PayFlow user."
	}
	c.logger.WithError(err).WithFields(logrus.Fields{"sender_id": senderID, "command": command}).Error("Failed to look up user")
	return somethingWrong
}

func nameOr(name, fallback string) string {
	if name != "" {
		return name
	}
	return fallback
}

// parseAddArgs reads "<name> <amount> monthly <day>", "... weekly <1-7>" or
// "... yearly <month> <day>". Range checks are left to Validate.
func parseAddArgs(args []string) (app.CreateSubscriptionInput, bool) {
	if len(args) < 4 {
		return app.CreateSubscriptionInput{}, false
	}
	amount, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return app.CreateSubscriptionInput{}, false
	}
	nums := make([]int, 0, 2)
	for _, a := range args[3:] {
		v, err := strconv.Atoi(a)
		if err != nil {
			return app.CreateSubscriptionInput{}, false
		}
		nums = append(nums, v)
	}

	in := app.CreateSubscriptionInput{Name: args[0], Amount: amount}
	switch kind := payment.CycleKind(strings.ToUpper(args[2])); {
	case kind == payment.CycleMonthly && len(nums) == 1:
		in.Billing = payment.BillingConfig{Kind: kind, BillingDay: payment.Int(nums[0])}
	case kind == payment.CycleWeekly && len(nums) == 1:
		in.Billing = payment.BillingConfig{Kind: kind, BillingWeekday: payment.Int(nums[0])}
	case kind == payment.CycleYearly && len(nums) == 2:
		in.Billing = payment.BillingConfig{Kind: kind, BillingMonth: payment.Int(nums[0]), BillingDate: payment.Int(nums[1])}
	default:
		return app.CreateSubscriptionInput{}, false
	}
	return in, true
}

func billingLabel(b payment.BillingConfig) string {
	switch {
	case b.Kind == payment.CycleMonthly && b.BillingDay != nil:
		return fmt.Sprintf("monthly on day %d", *b.BillingDay)
	case b.Kind == payment.CycleWeekly && b.BillingWeekday != nil:
		return "weekly on " + time.Weekday(*b.BillingWeekday%7).String()
	case b.Kind == payment.CycleYearly && b.BillingMonth != nil && b.BillingDate != nil:
		return fmt.Sprintf("yearly on %s %d", time.Month(*b.BillingMonth), *b.BillingDate)
	}
	return strings.ToLower(string(b.Kind))
}

func singleID(args []string) (int64, bool) {
	if len(args) != 1 {
		return 0, false
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	return id, err == nil && id > 0
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
