package blocking

import (
	"context"

	"billing-backend/internal/billruns"
)

// TwoPartTariffRule blocks a new two-part tariff annual run. Old-scheme years
// bill summer and winter/all-year separately, so the season must match there.
// Later years have a single run and the season is ignored.
type TwoPartTariffRule struct {
	Repo BillRunFinder
	Live LiveBillRunFinder
}

// Check returns the blocking two-part tariff run, if any.
func (r *TwoPartTariffRule) Check(ctx context.Context, regionID string, toFinancialYearEnding int, summer bool) (Result, error) {
	q := billruns.Query{
		RegionID:              regionID,
		ToFinancialYearEnding: toFinancialYearEnding,
		BatchType:             billruns.BatchTwoPartTariff,
		StatusNotIn:           billruns.TerminalStatuses,
	}
	if toFinancialYearEnding <= billruns.PresrocCutoverYear {
		q.Summer = billruns.BoolPtr(summer)
	}
	match, err := found(r.Repo.FindLatest(ctx, q))
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
	if toFinancialYearEnding > billruns.PresrocCutoverYear {
		return newResult(toFinancialYearEnding, TriggerCurrent), nil
	}
	return newResult(toFinancialYearEnding, TriggerOld), nil
}

// TwoPartSupplementaryRule blocks when any live run exists for the year.
type TwoPartSupplementaryRule struct {
	Live LiveBillRunFinder
}

// Check returns the blocking live run, if any.
func (r *TwoPartSupplementaryRule) Check(ctx context.Context, regionID string, toFinancialYearEnding int) (Result, error) {
	match, err := r.Live.FindLive(ctx, regionID, toFinancialYearEnding)
	if err != nil {
		return Result{}, err
	}
	if match != nil {
		return newResult(toFinancialYearEnding, TriggerNeither, *match), nil
	}
	return newResult(toFinancialYearEnding, TriggerCurrent), nil
}
