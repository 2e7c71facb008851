// internal/infra/telegram/member_handlers.go
package telegram

import (
	"context"

	"membership_compliance_bot/internal/app"
	"membership_compliance_bot/internal/domain/member"
	"membership_compliance_bot/internal/domain/optin"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// RegisterMemberHandlers wires the roster and opt-in bookkeeping: join/leave
// updates keep the group roster current, and /start in a private chat records
// the user as DM-ready.
func RegisterMemberHandlers(
	ctx context.Context,
	b *telebot.Bot,
	members member.Repository,
	optInService *app.OptInService,
	baseLogger *logrus.Entry,
) {
	b.Handle(telebot.OnUserJoined, func(c telebot.Context) error {
		groupID := c.Chat().ID
		for _, u := range c.Message().UsersJoined {
			m := &member.Member{
				GroupID:   groupID,
				UserID:    u.ID,
				Username:  u.Username,
				FirstName: u.FirstName,
				IsBot:     u.IsBot,
			}
			if err := members.Upsert(ctx, m); err != nil {
				baseLogger.WithError(err).WithFields(logrus.Fields{
					"group_id": groupID,
					"user_id":  u.ID,
				}).Error("Failed to record joined member")
				continue
			}
			baseLogger.WithFields(logrus.Fields{
				"group_id": groupID,
				"user_id":  u.ID,
			}).Info("Member joined")
		}
		return nil
	})

	b.Handle(telebot.OnUserLeft, func(c telebot.Context) error {
		left := c.Message().UserLeft
		if left == nil {
			return nil
		}
		groupID := c.Chat().ID
		logCtx := baseLogger.WithFields(logrus.Fields{"group_id": groupID, "user_id": left.ID})

		if err := members.Remove(ctx, groupID, left.ID); err != nil {
			logCtx.WithError(err).Error("Failed to remove departed member from roster")
		}
		// Leaving a watched group is the sole automatic opt-in revocation path.
		if err := optInService.OnMemberLeft(ctx, groupID, left.ID); err != nil {
			logCtx.WithError(err).Error("Failed to clear opt-in for departed member")
		}
		logCtx.Info("Member left")
		return nil
	})

	b.Handle("/start", func(c telebot.Context) error {
		if c.Chat().Type != telebot.ChatPrivate {
			return nil
		}
		senderID := c.Sender().ID
		logCtx := baseLogger.WithFields(logrus.Fields{"handler": "/start", "sender_id": senderID})

		if err := optInService.MarkReady(ctx, senderID, optin.SourceStart); err != nil {
			logCtx.WithError(err).Error("Failed to record opt-in from /start")
			return c.Send("Something went wrong on our side, please try again later.")
		}
		logCtx.Info("User opted in via /start")
		return c.Send("You're all set! I can now send you monthly support reminders in DM.")
	})
}
