// internal/domain/notification/kind.go
package notification

// Kind identifies which alert a notification row stands for.
type Kind string

const (
	KindD3Reminder Kind = "D3_REMINDER"
	KindD1Reminder Kind = "D1_REMINDER"
	KindOverdue    Kind = "OVERDUE"
)

// ReminderKind maps a days-ahead offset to its reminder kind.
func ReminderKind(daysAhead int) (Kind, bool) {
	switch daysAhead {
	case 3:
		return KindD3Reminder, true
	case 1:
		return KindD1Reminder, true
	default:
		return "", false
	}
}
