// internal/infra/database/postgres_optin_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"

	"membership_compliance_bot/internal/domain/optin"
)

var ErrOptInNotFound = fmt.Errorf("opt-in status not found")

type PostgresOptInRepository struct {
	db *sql.DB
}

func NewPostgresOptInRepository(db *sql.DB) *PostgresOptInRepository {
	return &PostgresOptInRepository{db: db}
}

// Upsert records a user's opt-in. The first_seen_at of an existing row is
// preserved; dm_ready and source follow the latest write.
func (r *PostgresOptInRepository) Upsert(ctx context.Context, s *optin.Status) error {
	query := `INSERT INTO opt_in_statuses (user_id, dm_ready, first_seen_at, source)
               VALUES ($1, $2, $3, $4)
               ON CONFLICT (user_id) DO UPDATE
                   SET dm_ready = EXCLUDED.dm_ready,
                       source = EXCLUDED.source,
                       updated_at = NOW()
               RETURNING first_seen_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, s.UserID, s.DMReady, s.FirstSeenAt, s.Source).Scan(&s.FirstSeenAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error upserting opt-in status: %w", err)
	}
	return nil
}

func (r *PostgresOptInRepository) Get(ctx context.Context, userID int64) (*optin.Status, error) {
	query := `SELECT user_id, dm_ready, first_seen_at, source, updated_at
               FROM opt_in_statuses WHERE user_id = $1`
	s := &optin.Status{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&s.UserID, &s.DMReady, &s.FirstSeenAt, &s.Source, &s.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrOptInNotFound
		}
		return nil, fmt.Errorf("error getting opt-in status: %w", err)
	}
	return s, nil
}

func (r *PostgresOptInRepository) SetDMReady(ctx context.Context, userID int64, ready bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE opt_in_statuses SET dm_ready = $2, updated_at = NOW() WHERE user_id = $1`, userID, ready)
	if err != nil {
		return fmt.Errorf("error setting dm_ready: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrOptInNotFound
	}
	return nil
}
