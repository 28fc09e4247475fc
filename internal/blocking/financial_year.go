package blocking

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"billing-backend/internal/billruns"
	"billing-backend/internal/shared/telemetry"
)

// FinancialYearEnding returns the end year of the financial year containing t.
// Financial years run 1 April to 31 March.
func FinancialYearEnding(t time.Time) int {
	if t.Month() >= time.April {
		return t.Year() + 1
	}
	return t.Year()
}

// Resolver works out the financial year a new bill run is for.
type Resolver struct {
	Repo BillRunFinder
	Now  func() time.Time

	// TwoPartTariffBacklog makes two-part tariff use the user's year as-is
	// instead of the current financial year.
	TwoPartTariffBacklog bool
}

func (r *Resolver) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

// Resolve returns the financial year ending for the request, or 0 when it
// cannot be determined. It never fails.
func (r *Resolver) Resolve(ctx context.Context, regionID string, batchType billruns.BatchType, userSelectedYear string) int {
	switch batchType {
	case billruns.BatchSupplementary, billruns.BatchTwoPartSupplementary:
		return r.lastAnnualYear(ctx, regionID, batchType)
	case billruns.BatchTwoPartTariff:
		if r.TwoPartTariffBacklog {
			year, err := strconv.Atoi(strings.TrimSpace(userSelectedYear))
			if err != nil {
				return 0
			}
			return year
		}
		return FinancialYearEnding(r.now())
	default:
		return FinancialYearEnding(r.now())
	}
}

// lastAnnualYear finds the year of the region's most recent sent annual run.
// Supplementary billing trails annual billing, so that is the year to use.
func (r *Resolver) lastAnnualYear(ctx context.Context, regionID string, batchType billruns.BatchType) int {
	run, err := r.Repo.FindLatest(ctx, billruns.Query{
		RegionID:        regionID,
		BatchType:       billruns.BatchAnnual,
		Scheme:          billruns.SchemeSROC,
		StatusIn:        []billruns.Status{billruns.StatusSent},
		NewestYearFirst: true,
	})
	if err != nil {
		fields := map[string]any{
			"region_id":  regionID,
			"batch_type": string(batchType),
		}
		// Only expected in non-production regions with no annual billing yet.
		if errors.Is(err, billruns.ErrNotFound) {
			telemetry.Warn("blocking.year.no_annual_bill_run", fields)
		} else {
			fields["error"] = err.Error()
			telemetry.Error("blocking.year.lookup_failed", fields)
		}
		return 0
	}
	return run.ToFinancialYearEnding
}
