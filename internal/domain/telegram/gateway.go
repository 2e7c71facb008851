// internal/domain/telegram/gateway.go
package telegram

import (
	"context"

	"membership_compliance_bot/internal/domain/member"
)

// Gateway abstracts the chat platform for the compliance engine. This keeps
// the application services decoupled from the specific bot library.
type Gateway interface {
	// GroupMembers enumerates the current live membership of a group. Users
	// who already left or were kicked must not appear in the result.
	GroupMembers(ctx context.Context, groupID int64) ([]*member.Member, error)

	// GroupAdmins returns the user IDs holding admin or owner status.
	GroupAdmins(ctx context.Context, groupID int64) ([]int64, error)

	// SendMessage delivers a direct message to a user. Fails per-recipient
	// (blocked bot, never started a chat) without affecting other sends.
	SendMessage(ctx context.Context, userID int64, text string) error

	// RemoveMember removes a user from a group via ban immediately followed
	// by unban, which the platform treats as an ordinary kick.
	RemoveMember(ctx context.Context, groupID, userID int64) error
}
