package payment

import "errors"

var (
	ErrCycleNotFound         = errors.New("payment cycle not found")
	ErrInvalidConfiguration  = errors.New("invalid billing configuration")
	ErrConflict              = errors.New("payment cycle is not in the expected state")
	ErrDuplicatePendingCycle = errors.New("duplicate pending payment cycle (subscription_id, due_date)")
	ErrInvalidRange          = errors.New("start date is after end date")
)
