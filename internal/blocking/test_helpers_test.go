package blocking

import (
	"context"
	"sync"
	"testing"
	"time"

	"billing-backend/internal/billruns"
)

const testRegion = "region-1"

var testBase = time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

// countingFinder wraps a memory repo and records every query.
type countingFinder struct {
	mu      sync.Mutex
	repo    *billruns.MemoryRepo
	queries []billruns.Query
}

func newCountingFinder(runs ...billruns.BillRun) *countingFinder {
	repo := billruns.NewMemoryRepo(map[string]string{testRegion: "Anglian"})
	repo.Seed(runs...)
	return &countingFinder{repo: repo}
}

func (f *countingFinder) FindLatest(ctx context.Context, q billruns.Query) (billruns.BillRun, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	return f.repo.FindLatest(ctx, q)
}

func (f *countingFinder) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

// liveStub is a LiveBillRunFinder that records whether it was consulted.
type liveStub struct {
	run    *billruns.BillRun
	called int
}

func (s *liveStub) FindLive(ctx context.Context, regionID string, toFinancialYearEnding int) (*billruns.BillRun, error) {
	_ = ctx
	_ = regionID
	_ = toFinancialYearEnding
	s.called++
	return s.run, nil
}

func billRun(id string, batchType billruns.BatchType, scheme billruns.Scheme, status billruns.Status, year int) billruns.BillRun {
	return billruns.BillRun{
		ID:                      id,
		RegionID:                testRegion,
		BatchType:               batchType,
		Scheme:                  scheme,
		Status:                  status,
		FromFinancialYearEnding: year - 1,
		ToFinancialYearEnding:   year,
		CreatedAt:               testBase,
	}
}

func assertResult(t *testing.T, got Result, year int, trigger Trigger, ids ...string) {
	t.Helper()
	if got.ToFinancialYearEnding != year {
		t.Fatalf("expected year %d, got %d", year, got.ToFinancialYearEnding)
	}
	if got.Trigger != trigger {
		t.Fatalf("expected trigger %s, got %s", trigger, got.Trigger)
	}
	if got.Matches == nil {
		t.Fatalf("expected non-nil matches")
	}
	if len(got.Matches) != len(ids) {
		t.Fatalf("expected %d matches, got %d: %+v", len(ids), len(got.Matches), got.Matches)
	}
	for i, id := range ids {
		if got.Matches[i].ID != id {
			t.Fatalf("match %d: expected %s, got %s", i, id, got.Matches[i].ID)
		}
	}
}
