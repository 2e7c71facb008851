// internal/domain/member/member.go
package member

import (
	"context"
	"time"
)

// Member is one roster entry for a watched group. The Bot API offers no way
// to enumerate group members, so the roster is maintained from join/leave
// updates and re-verified against the live chat at sweep time.
// Corresponds to the 'group_members' table.
type Member struct {
	GroupID   int64
	UserID    int64
	Username  string
	FirstName string
	IsBot     bool
	JoinedAt  time.Time
}

// Repository defines persistence for the group roster.
type Repository interface {
	Upsert(ctx context.Context, m *Member) error
	Remove(ctx context.Context, groupID, userID int64) error
	ListByGroup(ctx context.Context, groupID int64) ([]*Member, error)
}
