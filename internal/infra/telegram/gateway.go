// internal/infra/telegram/gateway.go
package telegram

import (
	"context"
	"fmt"

	"membership_compliance_bot/internal/domain/member"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// TelebotGateway implements the domain Gateway interface on top of
// gopkg.in/telebot.v3.
//
// The Bot API has no call to enumerate group members, so enumeration reads
// the roster maintained from join/leave updates and re-verifies every entry
// against the live chat. Anyone who left or was kicked since their roster row
// was written drops out of the result, which is what gives removal sweeps
// their structural idempotency.
type TelebotGateway struct {
	bot     *telebot.Bot
	members member.Repository
	logger  *logrus.Entry
}

func NewTelebotGateway(b *telebot.Bot, members member.Repository, logger *logrus.Entry) *TelebotGateway {
	return &TelebotGateway{bot: b, members: members, logger: logger}
}

func (g *TelebotGateway) GroupMembers(ctx context.Context, groupID int64) ([]*member.Member, error) {
	roster, err := g.members.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to load roster for group %d: %w", groupID, err)
	}

	chat := &telebot.Chat{ID: groupID}
	live := make([]*member.Member, 0, len(roster))
	for _, m := range roster {
		cm, err := g.bot.ChatMemberOf(chat, &telebot.User{ID: m.UserID})
		if err != nil {
			// Unverifiable members are excluded rather than acted on.
			g.logger.WithError(err).WithFields(logrus.Fields{
				"group_id": groupID,
				"user_id":  m.UserID,
			}).Warn("Could not verify roster entry, excluding from enumeration")
			continue
		}
		switch cm.Role {
		case telebot.Left, telebot.Kicked:
			// Roster drifted from reality; prune it.
			if err := g.members.Remove(ctx, groupID, m.UserID); err != nil {
				g.logger.WithError(err).WithField("user_id", m.UserID).Warn("Failed to prune departed roster entry")
			}
		default:
			live = append(live, m)
		}
	}
	return live, nil
}

func (g *TelebotGateway) GroupAdmins(ctx context.Context, groupID int64) ([]int64, error) {
	admins, err := g.bot.AdminsOf(&telebot.Chat{ID: groupID})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch admins of group %d: %w", groupID, err)
	}
	ids := make([]int64, 0, len(admins))
	for _, a := range admins {
		ids = append(ids, a.User.ID)
	}
	return ids, nil
}

func (g *TelebotGateway) SendMessage(ctx context.Context, userID int64, text string) error {
	_, err := g.bot.Send(&telebot.User{ID: userID}, text)
	return err
}

// RemoveMember bans and immediately unbans, which the platform treats as an
// ordinary kick rather than a permanent ban.
func (g *TelebotGateway) RemoveMember(ctx context.Context, groupID, userID int64) error {
	chat := &telebot.Chat{ID: groupID}
	user := &telebot.User{ID: userID}
	if err := g.bot.Ban(chat, &telebot.ChatMember{User: user}); err != nil {
		return fmt.Errorf("failed to ban user %d in group %d: %w", userID, groupID, err)
	}
	if err := g.bot.Unban(chat, user); err != nil {
		return fmt.Errorf("failed to unban user %d in group %d after kick: %w", userID, groupID, err)
	}
	return nil
}
