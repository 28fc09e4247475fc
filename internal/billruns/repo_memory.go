package billruns

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu         sync.RWMutex
	data       map[string]BillRun
	regions    map[string]string // region id -> display name
	nextNumber int
	now        func() time.Time
}

// NewMemoryRepo constructs a MemoryRepo. regions maps region IDs to display names.
func NewMemoryRepo(regions map[string]string) *MemoryRepo {
	names := make(map[string]string, len(regions))
	for k, v := range regions {
		names[k] = v
	}
	return &MemoryRepo{
		data:       make(map[string]BillRun),
		regions:    names,
		nextNumber: 10000,
		now:        time.Now,
	}
}

// Seed stores runs as-is, keeping their IDs, numbers and timestamps.
func (r *MemoryRepo) Seed(runs ...BillRun) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, run := range runs {
		if run.ID == "" {
			run.ID = uuid.NewString()
		}
		if run.BillRunNumber >= r.nextNumber {
			r.nextNumber = run.BillRunNumber + 1
		}
		r.data[run.ID] = run
	}
}

// FindLatest returns the newest run matching q.
func (r *MemoryRepo) FindLatest(ctx context.Context, q Query) (BillRun, error) {
	if err := ctx.Err(); err != nil {
		return BillRun{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []BillRun
	for _, run := range r.data {
		if q.matches(run) {
			matches = append(matches, r.withRegion(run))
		}
	}
	if len(matches) == 0 {
		return BillRun{}, ErrNotFound
	}
	sort.Slice(matches, func(i, j int) bool {
		if q.NewestYearFirst && matches[i].ToFinancialYearEnding != matches[j].ToFinancialYearEnding {
			return matches[i].ToFinancialYearEnding > matches[j].ToFinancialYearEnding
		}
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	return matches[0], nil
}

// GetByID returns a run by ID.
func (r *MemoryRepo) GetByID(ctx context.Context, id string) (BillRun, error) {
	if err := ctx.Err(); err != nil {
		return BillRun{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.data[id]
	if !ok {
		return BillRun{}, ErrNotFound
	}
	return r.withRegion(run), nil
}

// List returns runs newest first, optionally scoped to a region.
func (r *MemoryRepo) List(ctx context.Context, regionID string, limit, offset int) ([]BillRun, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}

	r.mu.RLock()
	runs := make([]BillRun, 0, len(r.data))
	for _, run := range r.data {
		if regionID != "" && run.RegionID != regionID {
			continue
		}
		runs = append(runs, r.withRegion(run))
	}
	r.mu.RUnlock()

	if offset >= len(runs) {
		return []BillRun{}, nil
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	end := len(runs)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return runs[offset:end], nil
}

// Create stores a new run with the next bill run number.
func (r *MemoryRepo) Create(ctx context.Context, run BillRun) (BillRun, error) {
	if err := ctx.Err(); err != nil {
		return BillRun{}, err
	}
	if run.RegionID == "" || !run.BatchType.Valid() {
		return BillRun{}, ErrInvalidBillRun
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	now := r.now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = now
	run.BillRunNumber = r.nextNumber
	r.nextNumber++
	r.data[run.ID] = run
	return r.withRegion(run), nil
}

// UpdateStatus performs a conditional status transition.
func (r *MemoryRepo) UpdateStatus(ctx context.Context, id string, from []Status, to Status) (BillRun, error) {
	if err := ctx.Err(); err != nil {
		return BillRun{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.data[id]
	if !ok {
		return BillRun{}, ErrNotFound
	}
	if !containsStatus(from, run.Status) {
		return BillRun{}, ErrInvalidStatusTo
	}
	run.Status = to
	run.UpdatedAt = r.now().UTC()
	r.data[id] = run
	return r.withRegion(run), nil
}

func (r *MemoryRepo) withRegion(run BillRun) BillRun {
	if name, ok := r.regions[run.RegionID]; ok {
		run.RegionDisplayName = name
	}
	return run
}

func (q Query) matches(run BillRun) bool {
	if q.RegionID != "" && run.RegionID != q.RegionID {
		return false
	}
	if q.ToFinancialYearEnding != 0 && run.ToFinancialYearEnding != q.ToFinancialYearEnding {
		return false
	}
	if q.MaxToFinancialYearEnding != 0 && run.ToFinancialYearEnding > q.MaxToFinancialYearEnding {
		return false
	}
	if q.BatchType != "" && run.BatchType != q.BatchType {
		return false
	}
	if q.Scheme != "" && run.Scheme != q.Scheme {
		return false
	}
	if q.Summer != nil && run.Summer != *q.Summer {
		return false
	}
	if len(q.StatusIn) > 0 && !containsStatus(q.StatusIn, run.Status) {
		return false
	}
	if len(q.StatusNotIn) > 0 && containsStatus(q.StatusNotIn, run.Status) {
		return false
	}
	return true
}

func containsStatus(list []Status, s Status) bool {
	for _, candidate := range list {
		if candidate == s {
			return true
		}
	}
	return false
}

var _ Repo = (*MemoryRepo)(nil)
