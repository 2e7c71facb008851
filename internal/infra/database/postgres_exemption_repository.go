// internal/infra/database/postgres_exemption_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"membership_compliance_bot/internal/domain/exemption"
)

var ErrExemptionNotFound = fmt.Errorf("exemption not found")

type PostgresExemptionRepository struct {
	db *sql.DB
}

func NewPostgresExemptionRepository(db *sql.DB) *PostgresExemptionRepository {
	return &PostgresExemptionRepository{db: db}
}

const exemptionColumns = `user_id, scope, expires_at, reason, granted_by, created_at, updated_at`

func scanExemption(row interface{ Scan(...any) error }) (*exemption.Exemption, error) {
	e := &exemption.Exemption{}
	err := row.Scan(&e.UserID, &e.Scope, &e.ExpiresAt, &e.Reason, &e.GrantedBy, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Upsert inserts or replaces the row for (user_id, scope), keeping the
// at-most-one-per-pair invariant with last-write-wins semantics.
func (r *PostgresExemptionRepository) Upsert(ctx context.Context, e *exemption.Exemption) error {
	query := `INSERT INTO exemptions (user_id, scope, expires_at, reason, granted_by)
               VALUES ($1, $2, $3, $4, $5)
               ON CONFLICT (user_id, scope) DO UPDATE
                   SET expires_at = EXCLUDED.expires_at,
                       reason = EXCLUDED.reason,
                       granted_by = EXCLUDED.granted_by,
                       updated_at = NOW()
               RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, e.UserID, e.Scope, e.ExpiresAt, e.Reason, e.GrantedBy).Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error upserting exemption: %w", err)
	}
	return nil
}

func (r *PostgresExemptionRepository) Delete(ctx context.Context, userID, scope int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM exemptions WHERE user_id = $1 AND scope = $2`, userID, scope)
	if err != nil {
		return false, fmt.Errorf("error deleting exemption: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error reading delete result: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresExemptionRepository) Get(ctx context.Context, userID, scope int64) (*exemption.Exemption, error) {
	query := `SELECT ` + exemptionColumns + ` FROM exemptions WHERE user_id = $1 AND scope = $2`
	e, err := scanExemption(r.db.QueryRowContext(ctx, query, userID, scope))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrExemptionNotFound
		}
		return nil, fmt.Errorf("error getting exemption: %w", err)
	}
	return e, nil
}

func (r *PostgresExemptionRepository) ListByScope(ctx context.Context, scope int64) ([]*exemption.Exemption, error) {
	query := `SELECT ` + exemptionColumns + ` FROM exemptions WHERE scope = $1 ORDER BY user_id`
	rows, err := r.db.QueryContext(ctx, query, scope)
	if err != nil {
		return nil, fmt.Errorf("error listing exemptions by scope: %w", err)
	}
	defer rows.Close()
	return collectExemptions(rows)
}

// ListForUser fetches the rows relevant to one classification: the user's
// global row plus the row scoped to the group being swept.
func (r *PostgresExemptionRepository) ListForUser(ctx context.Context, userID, groupID int64) ([]*exemption.Exemption, error) {
	query := `SELECT ` + exemptionColumns + ` FROM exemptions
               WHERE user_id = $1 AND (scope = $2 OR scope = $3)`
	rows, err := r.db.QueryContext(ctx, query, userID, exemption.ScopeGlobal, groupID)
	if err != nil {
		return nil, fmt.Errorf("error listing exemptions for user: %w", err)
	}
	defer rows.Close()
	return collectExemptions(rows)
}

func (r *PostgresExemptionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM exemptions WHERE expires_at IS NOT NULL AND expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("error deleting expired exemptions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error reading expired delete result: %w", err)
	}
	return n, nil
}

func collectExemptions(rows *sql.Rows) ([]*exemption.Exemption, error) {
	exemptions := make([]*exemption.Exemption, 0)
	for rows.Next() {
		e, err := scanExemption(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning exemption row: %w", err)
		}
		exemptions = append(exemptions, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating exemption rows: %w", err)
	}
	return exemptions, nil
}
