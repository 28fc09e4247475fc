// Package creation starts the billing engine(s) chosen by a blocking check
// and then clears the setup session.
package creation

import (
	"context"
	"fmt"

	"billing-backend/internal/billruns"
	"billing-backend/internal/blocking"
	"billing-backend/internal/engine/legacy"
	"billing-backend/internal/setup"
	"billing-backend/internal/shared/metrics"
	"billing-backend/internal/shared/telemetry"
)

const (
	engineCurrent = "current"
	engineLegacy  = "legacy"
)

// CurrentEngine starts an in-process bill run. It returns once the run has
// been accepted, not when it finishes.
type CurrentEngine interface {
	Start(ctx context.Context, regionID string, batchType billruns.BatchType, userEmail string, toFinancialYearEnding int) (billruns.BillRun, error)
}

// LegacyEngine asks the legacy billing service for a bill run.
type LegacyEngine interface {
	Request(ctx context.Context, batch legacy.Batch) error
}

// SessionDeleter removes a finished setup session.
type SessionDeleter interface {
	Delete(ctx context.Context, id string) error
}

// User is the person creating the bill run.
type User struct {
	Email string
}

// Dispatcher fans a blocking result out to the billing engines.
type Dispatcher struct {
	Current  CurrentEngine
	Legacy   LegacyEngine
	Sessions SessionDeleter
}

// Dispatch starts the engines named by result.Trigger, then deletes the
// session. An engine error stops dispatch and leaves the session in place.
func (d *Dispatcher) Dispatch(ctx context.Context, sessionID string, req setup.Request, result blocking.Result, user User) error {
	fields := map[string]any{
		"session_id": sessionID,
		"region_id":  req.RegionID(),
		"batch_type": string(req.BatchType()),
		"trigger":    string(result.Trigger),
		"year":       result.ToFinancialYearEnding,
		"user":       user.Email,
	}

	if result.Trigger.StartsCurrent() {
		if d.Current == nil {
			return fmt.Errorf("dispatch %s: current engine not configured", result.Trigger)
		}
		run, err := d.Current.Start(ctx, req.RegionID(), req.BatchType(), user.Email, result.ToFinancialYearEnding)
		if err != nil {
			metrics.IncEngineRequest(engineCurrent, metrics.ResultError)
			return fmt.Errorf("start current engine: %w", err)
		}
		metrics.IncEngineRequest(engineCurrent, metrics.ResultSuccess)
		fields["bill_run_id"] = run.ID
	}

	if result.Trigger.StartsOld() {
		if d.Legacy == nil {
			return fmt.Errorf("dispatch %s: legacy engine not configured", result.Trigger)
		}
		err := d.Legacy.Request(ctx, legacy.Batch{
			BatchType:           req.BatchType(),
			RegionID:            req.RegionID(),
			FinancialYearEnding: result.ToFinancialYearEnding,
			UserEmail:           user.Email,
			Summer:              setup.Summer(req),
		})
		if err != nil {
			metrics.IncEngineRequest(engineLegacy, metrics.ResultError)
			return fmt.Errorf("request legacy engine: %w", err)
		}
		metrics.IncEngineRequest(engineLegacy, metrics.ResultSuccess)
	}

	if err := d.Sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete setup session: %w", err)
	}
	telemetry.Info("billrun.dispatched", fields)
	return nil
}
