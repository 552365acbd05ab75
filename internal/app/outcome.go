package app

import (
	"fmt"
	"time"

	"payflow_billing/internal/domain/notification"
)

// Outcome is what happened to one cycle within a batch job.
type Outcome string

const (
	OutcomeSent             Outcome = "sent"
	OutcomeSentUnrecorded   Outcome = "sent_unrecorded" // delivered, but sent=true could not be stored
	OutcomeSendFailed       Outcome = "send_failed"
	OutcomeSkippedDisabled  Outcome = "skipped_disabled"
	OutcomeSkippedDuplicate Outcome = "skipped_duplicate"
	OutcomeTransitionFailed Outcome = "transition_failed"
	OutcomeFailed           Outcome = "failed"
)

// IsFailure reports outcomes that callers should count as errors.
func (o Outcome) IsFailure() bool {
	switch o {
	case OutcomeSendFailed, OutcomeTransitionFailed, OutcomeFailed, OutcomeSentUnrecorded:
		return true
	default:
		return false
	}
}

// Result is the per-cycle record of a batch job.
type Result struct {
	CycleID int64
	Kind    notification.Kind
	Outcome Outcome
	// Overdue is set by the sweeper once the cycle was moved to OVERDUE,
	// whatever happened to the notification afterwards.
	Overdue bool
	Err     error
}

// Report collects the results of one job run.
type Report struct {
	Job     string
	Date    time.Time
	Results []Result
}

func (r *Report) add(res Result) {
	r.Results = append(r.Results, res)
}

func (r Report) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

func (r Report) Failures() int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome.IsFailure() {
			n++
		}
	}
	return n
}

// isolate runs fn as its own failure boundary: a panic becomes an
// OutcomeFailed result instead of ending the batch.
func isolate(cycleID int64, kind notification.Kind, fn func() Result) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{CycleID: cycleID, Kind: kind, Outcome: OutcomeFailed, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	return fn()
}
