package blocking

import (
	"context"

	"billing-backend/internal/billruns"
)

// AnnualRule blocks a new annual run when the region already has one for the
// year, or when any live run exists for the year.
type AnnualRule struct {
	Repo BillRunFinder
	Live LiveBillRunFinder
}

// Check returns the blocking annual run, if any.
func (r *AnnualRule) Check(ctx context.Context, regionID string, toFinancialYearEnding int) (Result, error) {
	match, err := found(r.Repo.FindLatest(ctx, billruns.Query{
		RegionID:              regionID,
		ToFinancialYearEnding: toFinancialYearEnding,
		BatchType:             billruns.BatchAnnual,
		StatusNotIn:           billruns.TerminalStatuses,
	}))
	if err != nil {
		return Result{}, err
	}
	if match == nil {
		if match, err = r.Live.FindLive(ctx, regionID, toFinancialYearEnding); err != nil {
			return Result{}, err
		}
	}

	if match != nil {
		return newResult(toFinancialYearEnding, TriggerNeither, *match), nil
	}
	return newResult(toFinancialYearEnding, TriggerCurrent), nil
}
