package billruns

import (
	"context"
	"errors"
	"strings"

	"billing-backend/internal/shared/telemetry"
)

// CancellableStatuses are the states a user may cancel from.
var CancellableStatuses = []Status{StatusQueued, StatusReady, StatusReview, StatusError, StatusEmpty}

// Service contains read and cancel operations for bill runs.
type Service struct {
	Repo Repo
}

// NewService constructs a Service.
func NewService(repo Repo) *Service {
	return &Service{Repo: repo}
}

// Get returns a single bill run.
func (s *Service) Get(ctx context.Context, id string) (BillRun, error) {
	if strings.TrimSpace(id) == "" {
		return BillRun{}, ErrNotFound
	}
	return s.Repo.GetByID(ctx, id)
}

// List returns bill runs newest first.
func (s *Service) List(ctx context.Context, regionID string, limit, offset int) ([]BillRun, error) {
	return s.Repo.List(ctx, strings.TrimSpace(regionID), limit, offset)
}

// Cancel marks a bill run as cancelled if its status allows it.
func (s *Service) Cancel(ctx context.Context, id, userEmail string) (BillRun, error) {
	run, err := s.Repo.UpdateStatus(ctx, id, CancellableStatuses, StatusCancel)
	if err != nil {
		if errors.Is(err, ErrInvalidStatusTo) {
			return BillRun{}, ErrNotCancellable
		}
		return BillRun{}, err
	}
	telemetry.Info("billrun.cancelled", map[string]any{
		"bill_run_id": run.ID,
		"region_id":   run.RegionID,
		"user":        userEmail,
	})
	return run, nil
}
