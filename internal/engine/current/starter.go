// Package current is the in-process billing engine for the current (SROC)
// charge scheme. Starting a run only creates and enqueues it; generation
// happens later in a worker or a detached goroutine.
package current

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"billing-backend/internal/billruns"
	"billing-backend/internal/queue"
	"billing-backend/internal/shared/telemetry"
)

// supplementaryYears is how many years a supplementary run reaches back,
// including the year it is for.
const supplementaryYears = 6

// firstSROCYear is the first financial year billed under the current scheme.
const firstSROCYear = billruns.PresrocCutoverYear + 1

// Starter creates queued bill runs and hands them to a processor.
type Starter struct {
	Repo Store
	// Queue receives jobs for an external worker. When nil, Processor runs
	// the job in a detached goroutine.
	Queue     queue.Client
	Processor *Processor
	Now       func() time.Time
}

// Start creates the bill run and returns once the job has been accepted.
func (s *Starter) Start(ctx context.Context, regionID string, batchType billruns.BatchType, userEmail string, toFinancialYearEnding int) (billruns.BillRun, error) {
	if strings.TrimSpace(regionID) == "" || !batchType.Valid() || toFinancialYearEnding <= 0 {
		return billruns.BillRun{}, billruns.ErrInvalidBillRun
	}
	if s.Queue == nil && s.Processor == nil {
		return billruns.BillRun{}, errors.New("current engine has no queue or processor")
	}

	run, err := s.Repo.Create(ctx, billruns.BillRun{
		RegionID:                regionID,
		BatchType:               batchType,
		Scheme:                  billruns.SchemeSROC,
		Status:                  billruns.StatusQueued,
		FromFinancialYearEnding: fromFinancialYearEnding(batchType, toFinancialYearEnding),
		ToFinancialYearEnding:   toFinancialYearEnding,
		CreatedBy:               userEmail,
		CreatedAt:               s.now().UTC(),
	})
	if err != nil {
		return billruns.BillRun{}, fmt.Errorf("create bill run: %w", err)
	}

	requestID := requestIDFromContext(ctx)
	fields := map[string]any{
		"bill_run_id":     run.ID,
		"bill_run_number": run.BillRunNumber,
		"region_id":       regionID,
		"batch_type":      string(batchType),
		"request_id":      requestID,
	}

	if s.Queue == nil {
		go s.Processor.processAsync(backgroundWithRequestID(ctx), run.ID)
		telemetry.Info("engine.current.started", fields)
		return run, nil
	}

	msg := queue.NewMessage(run.ID, requestID, s.now())
	if err := s.Queue.Send(ctx, msg); err != nil {
		fields["error"] = err.Error()
		telemetry.Error("engine.current.enqueue_failed", fields)
		if _, markErr := s.Repo.UpdateStatus(ctx, run.ID, []billruns.Status{billruns.StatusQueued}, billruns.StatusError); markErr != nil {
			return billruns.BillRun{}, errors.Join(fmt.Errorf("enqueue bill run %s: %w", run.ID, err), markErr)
		}
		return billruns.BillRun{}, fmt.Errorf("enqueue bill run %s: %w", run.ID, err)
	}
	telemetry.Info("engine.current.enqueued", fields)
	return run, nil
}

func (s *Starter) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func fromFinancialYearEnding(batchType billruns.BatchType, to int) int {
	if batchType != billruns.BatchSupplementary {
		return to
	}
	from := to - (supplementaryYears - 1)
	if from < firstSROCYear {
		from = firstSROCYear
	}
	if from > to {
		return to
	}
	return from
}
