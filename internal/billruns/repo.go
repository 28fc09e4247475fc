package billruns

import "context"

// Query filters bill runs. Zero values leave a criterion unset.
type Query struct {
	RegionID              string
	ToFinancialYearEnding int
	// MaxToFinancialYearEnding matches runs ending on or before the given year.
	MaxToFinancialYearEnding int
	BatchType                BatchType
	Scheme                   Scheme
	Summer                   *bool
	StatusIn                 []Status
	StatusNotIn              []Status
	// NewestYearFirst orders by to_financial_year_ending before created_at.
	NewestYearFirst bool
}

// Repo defines persistence operations for bill runs.
type Repo interface {
	// FindLatest returns the newest run matching q or ErrNotFound.
	FindLatest(ctx context.Context, q Query) (BillRun, error)
	GetByID(ctx context.Context, id string) (BillRun, error)
	List(ctx context.Context, regionID string, limit, offset int) ([]BillRun, error)
	// Create inserts run, assigning its bill run number.
	Create(ctx context.Context, run BillRun) (BillRun, error)
	// UpdateStatus moves a run to status `to` only if it is currently in `from`.
	UpdateStatus(ctx context.Context, id string, from []Status, to Status) (BillRun, error)
}

// BoolPtr is a small helper for Query.Summer.
func BoolPtr(v bool) *bool {
	return &v
}
