// internal/domain/compliance/repository.go
package compliance

import "context"

// Repository defines persistence for RequirementRecord. All mutations are
// single-key upserts on (group_id, month_key, user_id); no record is ever
// deleted by this component.
type Repository interface {
	// EnsureRecord creates the zero-valued record for the key if it does not
	// exist yet. Every mutation goes through this step first so the "record
	// always present for any queried month" invariant lives in one place.
	EnsureRecord(ctx context.Context, groupID, userID int64, monthKey string) error

	// AddPurchase atomically adds amountCents to the record's purchase total
	// and, when entityID is non-empty, adds it to the supported set.
	AddPurchase(ctx context.Context, groupID, userID int64, monthKey string, amountCents int64, entityID string) (*RequirementRecord, error)

	// AddGame atomically increments the game counter and credits the given
	// house entities to the supported set.
	AddGame(ctx context.Context, groupID, userID int64, monthKey string, houseEntities []string) (*RequirementRecord, error)

	// Get returns the record for the key, or ErrRecordNotFound.
	Get(ctx context.Context, groupID, userID int64, monthKey string) (*RequirementRecord, error)

	// ListByGroupAndMonth returns all records for a group's month, for export.
	ListByGroupAndMonth(ctx context.Context, groupID int64, monthKey string) ([]*RequirementRecord, error)

	// SetNote replaces the free-form note on the record.
	SetNote(ctx context.Context, groupID, userID int64, monthKey string, note string) error
}
