package billruns

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const selectBillRun = `
SELECT br.id, br.region_id, COALESCE(r.display_name, ''), br.batch_type, br.bill_run_number, br.scheme, br.status, br.summer, br.from_financial_year_ending, br.to_financial_year_ending, br.created_by, br.created_at, br.updated_at
FROM bill_runs br
LEFT JOIN regions r ON r.id = br.region_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBillRun(row rowScanner) (BillRun, error) {
	var run BillRun
	var batchType, scheme, status string
	var createdBy sql.NullString
	if err := row.Scan(
		&run.ID,
		&run.RegionID,
		&run.RegionDisplayName,
		&batchType,
		&run.BillRunNumber,
		&scheme,
		&status,
		&run.Summer,
		&run.FromFinancialYearEnding,
		&run.ToFinancialYearEnding,
		&createdBy,
		&run.CreatedAt,
		&run.UpdatedAt,
	); err != nil {
		return BillRun{}, err
	}
	run.BatchType = BatchType(batchType)
	run.Scheme = Scheme(scheme)
	run.Status = Status(status)
	if createdBy.Valid {
		run.CreatedBy = createdBy.String
	}
	return run, nil
}

// whereClause renders q as a WHERE clause with positional args starting at $1.
func whereClause(q Query) (string, []any) {
	var conds []string
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.RegionID != "" {
		conds = append(conds, "br.region_id = "+next(q.RegionID))
	}
	if q.ToFinancialYearEnding != 0 {
		conds = append(conds, "br.to_financial_year_ending = "+next(q.ToFinancialYearEnding))
	}
	if q.MaxToFinancialYearEnding != 0 {
		conds = append(conds, "br.to_financial_year_ending <= "+next(q.MaxToFinancialYearEnding))
	}
	if q.BatchType != "" {
		conds = append(conds, "br.batch_type = "+next(string(q.BatchType)))
	}
	if q.Scheme != "" {
		conds = append(conds, "br.scheme = "+next(string(q.Scheme)))
	}
	if q.Summer != nil {
		conds = append(conds, "br.summer = "+next(*q.Summer))
	}
	if len(q.StatusIn) > 0 {
		conds = append(conds, "br.status IN ("+statusPlaceholders(q.StatusIn, next)+")")
	}
	if len(q.StatusNotIn) > 0 {
		conds = append(conds, "br.status NOT IN ("+statusPlaceholders(q.StatusNotIn, next)+")")
	}

	if len(conds) == 0 {
		return "", args
	}
	return "\nWHERE " + strings.Join(conds, " AND "), args
}

func statusPlaceholders(statuses []Status, next func(any) string) string {
	parts := make([]string, 0, len(statuses))
	for _, s := range statuses {
		parts = append(parts, next(string(s)))
	}
	return strings.Join(parts, ", ")
}

// FindLatest returns the newest run matching q.
func (r *PGRepo) FindLatest(ctx context.Context, q Query) (BillRun, error) {
	where, args := whereClause(q)
	order := "\nORDER BY br.created_at DESC"
	if q.NewestYearFirst {
		order = "\nORDER BY br.to_financial_year_ending DESC, br.created_at DESC"
	}
	query := selectBillRun + where + order + "\nLIMIT 1"

	run, err := scanBillRun(r.DB.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return BillRun{}, ErrNotFound
		}
		return BillRun{}, err
	}
	return run, nil
}

// GetByID returns a run by ID.
func (r *PGRepo) GetByID(ctx context.Context, id string) (BillRun, error) {
	query := selectBillRun + "\nWHERE br.id = $1\nLIMIT 1"
	run, err := scanBillRun(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return BillRun{}, ErrNotFound
		}
		return BillRun{}, err
	}
	return run, nil
}

// List returns runs newest first, optionally scoped to a region.
func (r *PGRepo) List(ctx context.Context, regionID string, limit, offset int) ([]BillRun, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	where, args := whereClause(Query{RegionID: regionID})
	args = append(args, limit, offset)
	query := selectBillRun + where + fmt.Sprintf("\nORDER BY br.created_at DESC\nLIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BillRun
	for rows.Next() {
		run, err := scanBillRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Create inserts a new run; the bill run number comes from bill_run_number_seq.
func (r *PGRepo) Create(ctx context.Context, run BillRun) (BillRun, error) {
	if run.RegionID == "" || !run.BatchType.Valid() {
		return BillRun{}, ErrInvalidBillRun
	}
	const query = `
INSERT INTO bill_runs (
    id,
    region_id,
    batch_type,
    bill_run_number,
    scheme,
    status,
    summer,
    from_financial_year_ending,
    to_financial_year_ending,
    created_by,
    created_at,
    updated_at
) VALUES ($1, $2, $3, nextval('bill_run_number_seq'), $4, $5, $6, $7, $8, $9, $10, $10)
RETURNING bill_run_number, COALESCE((SELECT display_name FROM regions WHERE id = $2), '')`

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	run.UpdatedAt = run.CreatedAt

	var createdBy sql.NullString
	if run.CreatedBy != "" {
		createdBy = sql.NullString{String: run.CreatedBy, Valid: true}
	}

	err := r.DB.QueryRowContext(
		ctx,
		query,
		run.ID,
		run.RegionID,
		string(run.BatchType),
		string(run.Scheme),
		string(run.Status),
		run.Summer,
		run.FromFinancialYearEnding,
		run.ToFinancialYearEnding,
		createdBy,
		run.CreatedAt,
	).Scan(&run.BillRunNumber, &run.RegionDisplayName)
	if err != nil {
		return BillRun{}, fmt.Errorf("insert bill run: %w", err)
	}
	return run, nil
}

// UpdateStatus performs a conditional status transition.
func (r *PGRepo) UpdateStatus(ctx context.Context, id string, from []Status, to Status) (BillRun, error) {
	if len(from) == 0 {
		return BillRun{}, ErrInvalidStatusTo
	}
	args := []any{string(to), id}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	query := `
UPDATE bill_runs
SET status = $1, updated_at = NOW()
WHERE id = $2 AND status IN (` + statusPlaceholders(from, next) + `)`

	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return BillRun{}, fmt.Errorf("update bill run status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return BillRun{}, err
	}
	if affected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return BillRun{}, err
		}
		return BillRun{}, ErrInvalidStatusTo
	}
	return r.GetByID(ctx, id)
}

var _ Repo = (*PGRepo)(nil)
