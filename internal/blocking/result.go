// Package blocking decides whether a new bill run may be created for a region
// and financial year, and which billing engine(s) must produce it.
package blocking

import (
	"context"

	"billing-backend/internal/billruns"
)

// Trigger names the billing engine(s) to start.
type Trigger string

const (
	// TriggerCurrent starts the in-process (SROC) engine.
	TriggerCurrent Trigger = "current"
	// TriggerOld requests the legacy (PRESROC) engine.
	TriggerOld     Trigger = "old"
	TriggerBoth    Trigger = "both"
	TriggerNeither Trigger = "neither"
)

// StartsCurrent reports whether t includes the current engine.
func (t Trigger) StartsCurrent() bool {
	return t == TriggerCurrent || t == TriggerBoth
}

// StartsOld reports whether t includes the old engine.
func (t Trigger) StartsOld() bool {
	return t == TriggerOld || t == TriggerBoth
}

// Result is the outcome of a blocking check.
type Result struct {
	Matches               []billruns.BillRun
	ToFinancialYearEnding int
	Trigger               Trigger
}

// Undetermined reports the year-0 outcome: no financial year could be
// worked out, so nothing may be created.
func (r Result) Undetermined() bool {
	return r.ToFinancialYearEnding == 0
}

// BillRunFinder is the bill run query capability the rules need.
type BillRunFinder interface {
	FindLatest(ctx context.Context, q billruns.Query) (billruns.BillRun, error)
}

// LiveBillRunFinder finds the newest live bill run for a region and year.
type LiveBillRunFinder interface {
	FindLive(ctx context.Context, regionID string, toFinancialYearEnding int) (*billruns.BillRun, error)
}

func newResult(year int, trigger Trigger, matches ...billruns.BillRun) Result {
	if matches == nil {
		matches = []billruns.BillRun{}
	}
	return Result{Matches: matches, ToFinancialYearEnding: year, Trigger: trigger}
}
