package dispatch

import (
	"time"

	"github.com/nhle/audit-mailer/internal/model"
)

// Outcome is the final state of one item.
type Outcome string

// Item outcomes. Only OutcomeSent produces an audit record.
const (
	OutcomeSent            Outcome = "sent"
	OutcomeDryRun          Outcome = "dry_run"
	OutcomeValidationError Outcome = "validation_error"
	OutcomeTransportError  Outcome = "transport_error"
	OutcomeStoreError      Outcome = "store_error"
	OutcomeInternalError   Outcome = "internal_error"
)

// ItemResult is what happened to one item.
type ItemResult struct {
	Item    model.DispatchItem
	Outcome Outcome
	Subject string
	Token   string

	// Identifiers are the ids written to the record, possibly empty.
	Identifiers model.Identifiers

	// Err is the failure behind a non-success outcome. For OutcomeSent it
	// may hold a correlation failure that left the identifiers empty.
	Err error
}

// Failed reports whether the item counts as a failure.
func (r ItemResult) Failed() bool {
	return r.Outcome != OutcomeSent && r.Outcome != OutcomeDryRun
}

// RunResult aggregates every item of a run.
type RunResult struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	DryRun     bool

	Processed int
	Succeeded int
	Failed    int
	Previewed int

	Items []ItemResult
}

func (r *RunResult) add(res ItemResult) {
	r.Items = append(r.Items, res)
	r.Processed++
	switch {
	case res.Outcome == OutcomeSent:
		r.Succeeded++
	case res.Outcome == OutcomeDryRun:
		r.Previewed++
	default:
		r.Failed++
	}
}

// Summary converts r into the row kept by run-aware history stores.
func (r RunResult) Summary() model.RunSummary {
	return model.RunSummary{
		RunID:      r.RunID,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		DryRun:     r.DryRun,
		Processed:  r.Processed,
		Succeeded:  r.Succeeded,
		Failed:     r.Failed,
		Previewed:  r.Previewed,
	}
}

// Records returns the number of items that produced an audit record.
func (r RunResult) Records() int {
	return r.Succeeded
}
