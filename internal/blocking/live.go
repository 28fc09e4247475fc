package blocking

import (
	"context"
	"errors"

	"billing-backend/internal/billruns"
)

// LiveFinder looks up live bill runs of any batch type.
type LiveFinder struct {
	Repo BillRunFinder
}

// FindLive returns the newest live bill run for the region and year, or nil.
func (f *LiveFinder) FindLive(ctx context.Context, regionID string, toFinancialYearEnding int) (*billruns.BillRun, error) {
	run, err := f.Repo.FindLatest(ctx, billruns.Query{
		RegionID:              regionID,
		ToFinancialYearEnding: toFinancialYearEnding,
		StatusIn:              billruns.LiveStatuses,
	})
	return found(run, err)
}

// found turns a FindLatest outcome into a nullable match.
func found(run billruns.BillRun, err error) (*billruns.BillRun, error) {
	if err != nil {
		if errors.Is(err, billruns.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

var _ LiveBillRunFinder = (*LiveFinder)(nil)
