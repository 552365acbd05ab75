// internal/domain/subscription/merge.go
package subscription

import "payflow_billing/internal/domain/payment"

// Patch is a sparse update: nil fields keep the current value.
type Patch struct {
	Name     *string
	Category *string
	Amount   *int64
	Currency *string

	Kind           *payment.CycleKind
	BillingDay     *int
	BillingWeekday *int
	BillingMonth   *int
	BillingDate    *int
	ReminderD3     *bool
	ReminderD1     *bool

	Status   *Status
	BankName *string
	Memo     *string
}

// Merge returns cur with every non-nil field of p applied. cur is not modified.
func Merge(cur Subscription, p Patch) Subscription {
	next := cur

	if p.Name != nil {
		next.Name = *p.Name
	}
	if p.Category != nil {
		next.Category = *p.Category
	}
	if p.Amount != nil {
		next.Amount = *p.Amount
	}
	if p.Currency != nil {
		next.Currency = *p.Currency
	}
	if p.Kind != nil {
		next.Billing.Kind = *p.Kind
	}
	if p.BillingDay != nil {
		next.Billing.BillingDay = payment.Int(*p.BillingDay)
	}
	if p.BillingWeekday != nil {
		next.Billing.BillingWeekday = payment.Int(*p.BillingWeekday)
	}
	if p.BillingMonth != nil {
		next.Billing.BillingMonth = payment.Int(*p.BillingMonth)
	}
	if p.BillingDate != nil {
		next.Billing.BillingDate = payment.Int(*p.BillingDate)
	}
	if p.ReminderD3 != nil {
		next.Billing.ReminderD3 = *p.ReminderD3
	}
	if p.ReminderD1 != nil {
		next.Billing.ReminderD1 = *p.ReminderD1
	}
	if p.Status != nil {
		next.Status = *p.Status
	}
	if p.BankName != nil {
		next.BankName = *p.BankName
	}
	if p.Memo != nil {
		next.Memo = *p.Memo
	}
	return next
}
