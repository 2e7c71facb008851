// internal/infra/database/postgres_ledger_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"

	"membership_compliance_bot/internal/domain/compliance"

	"github.com/lib/pq" // For pq.Array and driver registration
)

// Custom errors specific to the ledger repository
var ErrRecordNotFound = fmt.Errorf("requirement record not found")

type PostgresLedgerRepository struct {
	db *sql.DB
}

func NewPostgresLedgerRepository(db *sql.DB) *PostgresLedgerRepository {
	return &PostgresLedgerRepository{db: db}
}

const recordColumns = `group_id, month_key, user_id, purchase_total_cents, supported_entities, game_count, note, dm_ready, created_at, updated_at`

func scanRecord(row interface{ Scan(...any) error }) (*compliance.RequirementRecord, error) {
	rec := &compliance.RequirementRecord{}
	err := row.Scan(
		&rec.GroupID, &rec.MonthKey, &rec.UserID, &rec.PurchaseTotalCents,
		pq.Array(&rec.SupportedEntities), &rec.GameCount, &rec.Note, &rec.DMReady,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// EnsureRecord lazily creates the zero-valued row for the key. ON CONFLICT DO
// NOTHING keeps this safe under concurrent mutation.
func (r *PostgresLedgerRepository) EnsureRecord(ctx context.Context, groupID, userID int64, monthKey string) error {
	query := `INSERT INTO requirement_records (group_id, month_key, user_id, supported_entities)
               VALUES ($1, $2, $3, '{}')
               ON CONFLICT (group_id, month_key, user_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, groupID, monthKey, userID); err != nil {
		return fmt.Errorf("error ensuring requirement record: %w", err)
	}
	return nil
}

// AddPurchase adds to the purchase total and, when entityID is non-empty and
// new, appends it to the supported set. Single-row UPDATE, so the
// read-modify-write is atomic at the key level.
func (r *PostgresLedgerRepository) AddPurchase(ctx context.Context, groupID, userID int64, monthKey string, amountCents int64, entityID string) (*compliance.RequirementRecord, error) {
	query := `UPDATE requirement_records
               SET purchase_total_cents = purchase_total_cents + $4,
                   supported_entities = CASE
                       WHEN $5 = '' OR $5 = ANY(supported_entities) THEN supported_entities
                       ELSE array_append(supported_entities, $5)
                   END,
                   updated_at = NOW()
               WHERE group_id = $1 AND month_key = $2 AND user_id = $3
               RETURNING ` + recordColumns
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, groupID, monthKey, userID, amountCents, entityID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("error adding purchase: %w", err)
	}
	return rec, nil
}

// AddGame increments the game counter and credits the house entities to the
// supported set, deduplicating in SQL.
func (r *PostgresLedgerRepository) AddGame(ctx context.Context, groupID, userID int64, monthKey string, houseEntities []string) (*compliance.RequirementRecord, error) {
	query := `UPDATE requirement_records
               SET game_count = game_count + 1,
                   supported_entities = (
                       SELECT ARRAY(SELECT DISTINCT e FROM unnest(supported_entities || $4::text[]) AS e ORDER BY e)
                   ),
                   updated_at = NOW()
               WHERE group_id = $1 AND month_key = $2 AND user_id = $3
               RETURNING ` + recordColumns
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, groupID, monthKey, userID, pq.Array(houseEntities)))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("error adding game contribution: %w", err)
	}
	return rec, nil
}

func (r *PostgresLedgerRepository) Get(ctx context.Context, groupID, userID int64, monthKey string) (*compliance.RequirementRecord, error) {
	query := `SELECT ` + recordColumns + `
               FROM requirement_records
               WHERE group_id = $1 AND month_key = $2 AND user_id = $3`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, groupID, monthKey, userID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("error getting requirement record: %w", err)
	}
	return rec, nil
}

func (r *PostgresLedgerRepository) ListByGroupAndMonth(ctx context.Context, groupID int64, monthKey string) ([]*compliance.RequirementRecord, error) {
	query := `SELECT ` + recordColumns + `
               FROM requirement_records
               WHERE group_id = $1 AND month_key = $2 ORDER BY user_id`
	rows, err := r.db.QueryContext(ctx, query, groupID, monthKey)
	if err != nil {
		return nil, fmt.Errorf("error listing requirement records: %w", err)
	}
	defer rows.Close()

	records := make([]*compliance.RequirementRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning requirement record: %w", err)
		}
		records = append(records, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating requirement records: %w", err)
	}
	return records, nil
}

func (r *PostgresLedgerRepository) SetNote(ctx context.Context, groupID, userID int64, monthKey string, note string) error {
	query := `UPDATE requirement_records SET note = $4, updated_at = NOW()
               WHERE group_id = $1 AND month_key = $2 AND user_id = $3`
	res, err := r.db.ExecContext(ctx, query, groupID, monthKey, userID, note)
	if err != nil {
		return fmt.Errorf("error setting record note: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRecordNotFound
	}
	return nil
}
