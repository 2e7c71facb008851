// internal/domain/exemption/repository.go
package exemption

import (
	"context"
	"time"
)

// Repository defines persistence for Exemption rows. Upsert keeps the
// at-most-one-per-(user, scope) invariant; last write wins.
type Repository interface {
	Upsert(ctx context.Context, e *Exemption) error
	Delete(ctx context.Context, userID, scope int64) (bool, error)
	Get(ctx context.Context, userID, scope int64) (*Exemption, error)
	// ListByScope returns all rows for a scope, including expired ones; the
	// caller derives display state from now.
	ListByScope(ctx context.Context, scope int64) ([]*Exemption, error)
	// ListForUser returns the user's global row and the row scoped to groupID,
	// whichever exist.
	ListForUser(ctx context.Context, userID, groupID int64) ([]*Exemption, error)
	// DeleteExpired removes rows whose expiry is before now. Purely
	// opportunistic GC; classification never depends on it.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
