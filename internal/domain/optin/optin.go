// internal/domain/optin/optin.go
package optin

import (
	"context"
	"time"
)

// Source records how a user's DM opt-in came to be.
type Source string

const (
	SourceStart  Source = "START"  // user sent /start to the bot
	SourceManual Source = "MANUAL" // user asked in chat, set by hand
	SourceAdmin  Source = "ADMIN"  // operator command
)

// Status is the per-user DM permission flag. Once DMReady is true it is only
// cleared by an explicit admin action or by the user leaving a watched group.
// Corresponds to the 'opt_in_statuses' table.
type Status struct {
	UserID      int64
	DMReady     bool
	FirstSeenAt time.Time
	Source      Source
	UpdatedAt   time.Time
}

// Repository defines persistence for opt-in statuses, keyed by user.
type Repository interface {
	Upsert(ctx context.Context, s *Status) error
	Get(ctx context.Context, userID int64) (*Status, error)
	SetDMReady(ctx context.Context, userID int64, ready bool) error
}
