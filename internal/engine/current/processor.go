package current

import (
	"context"
	"errors"
	"fmt"
	"time"

	"billing-backend/internal/billruns"
	"billing-backend/internal/shared/metrics"
	"billing-backend/internal/shared/telemetry"
)

// Store is the bill run persistence the engine needs.
type Store interface {
	GetByID(ctx context.Context, id string) (billruns.BillRun, error)
	Create(ctx context.Context, run billruns.BillRun) (billruns.BillRun, error)
	UpdateStatus(ctx context.Context, id string, from []billruns.Status, to billruns.Status) (billruns.BillRun, error)
}

// Generator computes the bills for a run and reports how many it produced.
type Generator interface {
	Generate(ctx context.Context, run billruns.BillRun) (int, error)
}

// NoBills is a Generator that produces nothing, leaving every run empty.
type NoBills struct{}

// Generate implements Generator.
func (NoBills) Generate(ctx context.Context, run billruns.BillRun) (int, error) {
	_ = run
	return 0, ctx.Err()
}

// ErrNotQueued is returned when a job arrives for a run that is no longer queued.
var ErrNotQueued = errors.New("bill run is not queued")

// Processor runs one queued bill run through generation.
type Processor struct {
	Repo      Store
	Generator Generator
}

// Process moves the run to processing, generates its bills and records the
// outcome. A run that is no longer queued is left untouched.
func (p *Processor) Process(ctx context.Context, billRunID string) error {
	startedAt := time.Now()
	run, err := p.Repo.UpdateStatus(ctx, billRunID, []billruns.Status{billruns.StatusQueued}, billruns.StatusProcessing)
	if err != nil {
		if errors.Is(err, billruns.ErrInvalidStatusTo) {
			return fmt.Errorf("%w: %s", ErrNotQueued, billRunID)
		}
		return fmt.Errorf("start bill run %s: %w", billRunID, err)
	}

	generator := p.Generator
	if generator == nil {
		generator = NoBills{}
	}

	bills, genErr := generator.Generate(ctx, run)
	final := finalStatus(run.BatchType, bills, genErr)
	if _, err := p.Repo.UpdateStatus(ctx, billRunID, []billruns.Status{billruns.StatusProcessing}, final); err != nil {
		metrics.ObserveJob(string(billruns.StatusError), time.Since(startedAt))
		return fmt.Errorf("finish bill run %s: %w", billRunID, err)
	}
	metrics.ObserveJob(string(final), time.Since(startedAt))

	fields := map[string]any{
		"bill_run_id": billRunID,
		"request_id":  requestIDFromContext(ctx),
		"status":      string(final),
		"bills":       bills,
		"duration_ms": time.Since(startedAt).Milliseconds(),
	}
	if genErr != nil {
		fields["error"] = genErr.Error()
		telemetry.Error("engine.current.failed", fields)
		return fmt.Errorf("generate bill run %s: %w", billRunID, genErr)
	}
	telemetry.Info("engine.current.completed", fields)
	return nil
}

func finalStatus(batchType billruns.BatchType, bills int, err error) billruns.Status {
	switch {
	case err != nil:
		return billruns.StatusError
	case bills == 0:
		return billruns.StatusEmpty
	case batchType == billruns.BatchTwoPartTariff || batchType == billruns.BatchTwoPartSupplementary:
		return billruns.StatusReview
	default:
		return billruns.StatusReady
	}
}

// processAsync runs Process on a detached context and never panics.
func (p *Processor) processAsync(ctx context.Context, billRunID string) {
	defer func() {
		if r := recover(); r != nil {
			telemetry.Error("engine.current.panic", map[string]any{
				"bill_run_id": billRunID,
				"request_id":  requestIDFromContext(ctx),
				"error":       fmt.Sprint(r),
			})
			_, _ = p.Repo.UpdateStatus(ctx, billRunID, []billruns.Status{billruns.StatusQueued, billruns.StatusProcessing}, billruns.StatusError)
		}
	}()
	if err := p.Process(ctx, billRunID); err != nil {
		telemetry.Warn("engine.current.async_failed", map[string]any{
			"bill_run_id": billRunID,
			"request_id":  requestIDFromContext(ctx),
			"error":       err.Error(),
		})
	}
}
