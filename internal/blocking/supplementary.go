package blocking

import (
	"context"

	"billing-backend/internal/billruns"
)

// SupplementaryRule checks each charge scheme separately. Many supplementary
// runs per year are allowed, but only one unsent run per scheme.
type SupplementaryRule struct {
	Repo BillRunFinder
}

// Check returns the blocking runs ordered [sroc, presroc].
func (r *SupplementaryRule) Check(ctx context.Context, regionID string, toFinancialYearEnding int) (Result, error) {
	sroc, err := found(r.Repo.FindLatest(ctx, billruns.Query{
		RegionID:              regionID,
		ToFinancialYearEnding: toFinancialYearEnding,
		Scheme:                billruns.SchemeSROC,
		StatusNotIn:           billruns.SupplementaryIgnoredStatuses,
	}))
	if err != nil {
		return Result{}, err
	}

	// Old-scheme supplementary runs cover every year up to the cutover.
	presroc, err := found(r.Repo.FindLatest(ctx, billruns.Query{
		RegionID:                 regionID,
		MaxToFinancialYearEnding: billruns.PresrocCutoverYear,
		Scheme:                   billruns.SchemeALCS,
		StatusNotIn:              billruns.SupplementaryIgnoredStatuses,
	}))
	if err != nil {
		return Result{}, err
	}

	var matches []billruns.BillRun
	if sroc != nil {
		matches = append(matches, *sroc)
	}
	if presroc != nil {
		matches = append(matches, *presroc)
	}

	return newResult(toFinancialYearEnding, supplementaryTrigger(matches), matches...), nil
}

// supplementaryTrigger starts whichever engine has no blocking run.
func supplementaryTrigger(matches []billruns.BillRun) Trigger {
	switch len(matches) {
	case 0:
		return TriggerBoth
	case 1:
		if matches[0].Scheme == billruns.SchemeALCS {
			return TriggerCurrent
		}
		return TriggerOld
	default:
		return TriggerNeither
	}
}
