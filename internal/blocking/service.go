package blocking

import (
	"context"
	"fmt"

	"billing-backend/internal/setup"
	"billing-backend/internal/shared/metrics"
)

// Service resolves the financial year for a request and runs the matching
// blocking rule.
type Service struct {
	Resolver             *Resolver
	Annual               *AnnualRule
	Supplementary        *SupplementaryRule
	TwoPartTariff        *TwoPartTariffRule
	TwoPartSupplementary *TwoPartSupplementaryRule
}

// NewService wires every rule against one bill run finder.
func NewService(repo BillRunFinder, twoPartTariffBacklog bool) *Service {
	live := &LiveFinder{Repo: repo}
	return &Service{
		Resolver:             &Resolver{Repo: repo, TwoPartTariffBacklog: twoPartTariffBacklog},
		Annual:               &AnnualRule{Repo: repo, Live: live},
		Supplementary:        &SupplementaryRule{Repo: repo},
		TwoPartTariff:        &TwoPartTariffRule{Repo: repo, Live: live},
		TwoPartSupplementary: &TwoPartSupplementaryRule{Live: live},
	}
}

// Check decides whether req may go ahead. A zero ToFinancialYearEnding in the
// result means the year could not be worked out and nothing may be created.
func (s *Service) Check(ctx context.Context, req setup.Request) (Result, error) {
	if req == nil {
		return Result{}, fmt.Errorf("blocking check: nil request")
	}
	year := s.Resolver.Resolve(ctx, req.RegionID(), req.BatchType(), req.SelectedYear())
	if year == 0 {
		metrics.ObserveBlockingCheck(string(req.BatchType()), string(TriggerNeither))
		return newResult(0, TriggerNeither), nil
	}

	var (
		result Result
		err    error
	)
	switch r := req.(type) {
	case setup.SupplementaryRequest:
		result, err = s.Supplementary.Check(ctx, r.Region, year)
	case setup.TwoPartSupplementaryRequest:
		result, err = s.TwoPartSupplementary.Check(ctx, r.Region, year)
	case setup.TwoPartTariffRequest:
		result, err = s.TwoPartTariff.Check(ctx, r.Region, year, r.Summer)
	default:
		result, err = s.Annual.Check(ctx, req.RegionID(), year)
	}
	if err != nil {
		return Result{}, fmt.Errorf("blocking check %s: %w", req.BatchType(), err)
	}

	metrics.ObserveBlockingCheck(string(req.BatchType()), string(result.Trigger))
	return result, nil
}
