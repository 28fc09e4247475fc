package setup

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new session.
func (r *PGRepo) Create(ctx context.Context, session Session) error {
	const query = `
INSERT INTO bill_run_setup_sessions (id, data, created_at, updated_at)
VALUES ($1, $2, $3, $3)`
	payload, err := json.Marshal(session.Data)
	if err != nil {
		return fmt.Errorf("encode session data: %w", err)
	}
	_, err = r.DB.ExecContext(ctx, query, session.ID, payload, session.CreatedAt)
	return err
}

// GetByID returns a session by ID.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Session, error) {
	const query = `
SELECT id, data, created_at, updated_at
FROM bill_run_setup_sessions
WHERE id = $1`
	var session Session
	var payload []byte
	err := r.DB.QueryRowContext(ctx, query, id).Scan(&session.ID, &payload, &session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, err
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &session.Data); err != nil {
			return Session{}, fmt.Errorf("decode session data: %w", err)
		}
	}
	return session, nil
}

// Update replaces the answers of an existing session.
func (r *PGRepo) Update(ctx context.Context, session Session) error {
	const query = `
UPDATE bill_run_setup_sessions
SET data = $2, updated_at = $3
WHERE id = $1`
	payload, err := json.Marshal(session.Data)
	if err != nil {
		return fmt.Errorf("encode session data: %w", err)
	}
	res, err := r.DB.ExecContext(ctx, query, session.ID, payload, session.UpdatedAt)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a session.
func (r *PGRepo) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM bill_run_setup_sessions WHERE id = $1`
	_, err := r.DB.ExecContext(ctx, query, id)
	return err
}

var _ Repo = (*PGRepo)(nil)
