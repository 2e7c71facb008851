// internal/infra/telegram/operator_handlers.go
package telegram

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"membership_compliance_bot/internal/app"
	"membership_compliance_bot/internal/domain/compliance"
	"membership_compliance_bot/internal/domain/exemption"
	"membership_compliance_bot/internal/domain/optin"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// OperatorDeps bundles the services the operator command set works against.
type OperatorDeps struct {
	Ledger         *app.LedgerService
	Exemptions     *app.ExemptionService
	OptIn          *app.OptInService
	Sweeps         *app.SweepService
	Roles          app.RoleResolver
	DefaultGroupID int64
}

// RegisterOperatorHandlers registers the privileged command set. Every
// handler re-checks the sender against the role resolver.
func RegisterOperatorHandlers(ctx context.Context, b *telebot.Bot, deps OperatorDeps, baseLogger *logrus.Entry) {
	guard := func(name string, fn func(c telebot.Context, logCtx *logrus.Entry) error) func(telebot.Context) error {
		return func(c telebot.Context) error {
			logCtx := baseLogger.WithFields(logrus.Fields{
				"handler":   name,
				"sender_id": c.Sender().ID,
			})
			if !deps.Roles.IsOperator(c.Sender().ID) {
				logCtx.Warn("Unauthorized access attempt")
				return c.Send("You are not allowed to run this command.")
			}
			logCtx.Info("Command received")
			return fn(c, logCtx)
		}
	}

	b.Handle("/purchase", guard("/purchase", func(c telebot.Context, logCtx *logrus.Entry) error {
		args := c.Args()
		if len(args) < 2 || len(args) > 3 {
			return c.Send("Usage: /purchase <user_id> <amount> [entity_id]")
		}
		userID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return c.Send("user_id must be a number.")
		}
		amount, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return c.Send("amount must be a dollar value, e.g. 19.99")
		}
		amountCents := int64(math.Round(amount * 100))
		entityID := ""
		if len(args) == 3 {
			entityID = args[2]
		}

		rec, err := deps.Ledger.RecordPurchase(ctx, deps.DefaultGroupID, userID, amountCents, entityID)
		if err != nil {
			if err == app.ErrInvalidAmount {
				return c.Send("Amount must not be negative.")
			}
			logCtx.WithError(err).Error("Failed to record purchase")
			return c.Send(fmt.Sprintf("Could not record purchase: %s", err.Error()))
		}
		logCtx.WithFields(logrus.Fields{"user_id": userID, "amount_cents": amountCents}).Info("Purchase recorded")
		return c.Send(fmt.Sprintf("Recorded. User %d now at $%.2f, %d game(s), %d entity(ies) for %s.",
			userID, float64(rec.PurchaseTotalCents)/100, rec.GameCount, rec.EntityCount(), rec.MonthKey))
	}))

	b.Handle("/game", guard("/game", func(c telebot.Context, logCtx *logrus.Entry) error {
		args := c.Args()
		if len(args) != 1 {
			return c.Send("Usage: /game <user_id>")
		}
		userID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return c.Send("user_id must be a number.")
		}
		rec, err := deps.Ledger.RecordGame(ctx, deps.DefaultGroupID, userID)
		if err != nil {
			logCtx.WithError(err).Error("Failed to record game")
			return c.Send(fmt.Sprintf("Could not record game: %s", err.Error()))
		}
		logCtx.WithField("user_id", userID).Info("Game recorded")
		return c.Send(fmt.Sprintf("Recorded. User %d now at %d game(s), %d entity(ies) for %s.",
			userID, rec.GameCount, rec.EntityCount(), rec.MonthKey))
	}))

	b.Handle("/status", guard("/status", func(c telebot.Context, logCtx *logrus.Entry) error {
		args := c.Args()
		if len(args) < 1 || len(args) > 2 {
			return c.Send("Usage: /status <user_id> [group_id]")
		}
		userID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return c.Send("user_id must be a number.")
		}
		groupID := deps.DefaultGroupID
		if len(args) == 2 {
			groupID, err = strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return c.Send("group_id must be a number.")
			}
		}

		rec, err := deps.Ledger.GetRecord(ctx, groupID, userID, "")
		if err != nil {
			logCtx.WithError(err).Error("Failed to read ledger record")
			return c.Send(fmt.Sprintf("Could not read record: %s", err.Error()))
		}
		exempt, err := deps.Exemptions.IsExempt(ctx, userID, groupID, time.Now())
		if err != nil {
			logCtx.WithError(err).Error("Failed to check exemption")
			return c.Send(fmt.Sprintf("Could not check exemptions: %s", err.Error()))
		}
		status := compliance.Evaluate(rec, exempt, deps.Sweeps.DefaultPolicy())
		return c.Send(fmt.Sprintf("User %d, month %s: %s\nPurchases: $%.2f | Games: %d | Entities: %v",
			userID, rec.MonthKey, status, float64(rec.PurchaseTotalCents)/100, rec.GameCount, rec.SortedEntities()))
	}))

	b.Handle("/exempt", guard("/exempt", func(c telebot.Context, logCtx *logrus.Entry) error {
		args := c.Args()
		if len(args) < 1 {
			return c.Send("Usage: /exempt <user_id> [global|group_id] [duration e.g. 3d] [reason...]")
		}
		userID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return c.Send("user_id must be a number.")
		}
		scope, duration, reason := parseExemptArgs(args[1:], deps.DefaultGroupID)

		e, err := deps.Exemptions.Grant(ctx, userID, scope, duration, reason, c.Sender().ID)
		if err != nil {
			if errors.Is(err, exemption.ErrInvalidDuration) {
				return c.Send("Invalid duration. Use forms like 12h, 3d or 2w.")
			}
			logCtx.WithError(err).Error("Failed to grant exemption")
			return c.Send(fmt.Sprintf("Could not grant exemption: %s", err.Error()))
		}
		logCtx.WithFields(logrus.Fields{"user_id": userID, "scope": e.ScopeLabel()}).Info("Exemption granted")
		return c.Send(fmt.Sprintf("Exemption granted for user %d (scope %s, %s).",
			userID, e.ScopeLabel(), e.RemainingLabel(time.Now())))
	}))

	b.Handle("/unexempt", guard("/unexempt", func(c telebot.Context, logCtx *logrus.Entry) error {
		args := c.Args()
		if len(args) < 1 || len(args) > 2 {
			return c.Send("Usage: /unexempt <user_id> [global|group_id]")
		}
		userID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return c.Send("user_id must be a number.")
		}
		scope := deps.DefaultGroupID
		if len(args) == 2 {
			scope = parseScope(args[1], deps.DefaultGroupID)
		}

		removed, err := deps.Exemptions.Revoke(ctx, userID, scope)
		if err != nil {
			logCtx.WithError(err).Error("Failed to revoke exemption")
			return c.Send(fmt.Sprintf("Could not revoke exemption: %s", err.Error()))
		}
		if !removed {
			return c.Send(fmt.Sprintf("No exemption found for user %d in that scope.", userID))
		}
		logCtx.WithField("user_id", userID).Info("Exemption revoked")
		return c.Send(fmt.Sprintf("Exemption revoked for user %d.", userID))
	}))

	b.Handle("/exemptions", guard("/exemptions", func(c telebot.Context, logCtx *logrus.Entry) error {
		scope := deps.DefaultGroupID
		if args := c.Args(); len(args) == 1 {
			scope = parseScope(args[0], deps.DefaultGroupID)
		}
		list, err := deps.Exemptions.List(ctx, scope)
		if err != nil {
			logCtx.WithError(err).Error("Failed to list exemptions")
			return c.Send(fmt.Sprintf("Could not list exemptions: %s", err.Error()))
		}
		if len(list) == 0 {
			return c.Send("No exemptions in that scope.")
		}
		now := time.Now()
		var out strings.Builder
		fmt.Fprintf(&out, "Exemptions (scope %s):\n", scopeLabel(scope))
		for _, e := range list {
			fmt.Fprintf(&out, "user %d — %s — %s\n", e.UserID, e.RemainingLabel(now), e.Reason)
		}
		return c.Send(out.String())
	}))

	b.Handle("/sweep", guard("/sweep", func(c telebot.Context, logCtx *logrus.Entry) error {
		args := c.Args()
		if len(args) < 1 || len(args) > 3 {
			return c.Send("Usage: /sweep <reminder|final|removal> [group_id] [simple|diversity]")
		}

		var mode compliance.SweepMode
		switch strings.ToLower(args[0]) {
		case "reminder":
			mode = compliance.ModeReminder
		case "final":
			mode = compliance.ModeFinalWarning
		case "removal":
			mode = compliance.ModeRemoval
		default:
			return c.Send("Mode must be reminder, final or removal.")
		}

		groupID := deps.DefaultGroupID
		policy := deps.Sweeps.DefaultPolicy()
		for _, arg := range args[1:] {
			switch strings.ToLower(arg) {
			case "simple":
				policy = deps.Sweeps.DefaultPolicy()
			case "diversity":
				policy = deps.Sweeps.AltPolicy()
			default:
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return c.Send(fmt.Sprintf("Unrecognized argument %q.", arg))
				}
				groupID = id
			}
		}

		monthKey := deps.Ledger.CurrentMonthKey()
		if mode == compliance.ModeRemoval {
			// Removal judges the month that just ended when run on day 1; a
			// manual mid-month removal still judges the current month.
			if time.Now().Day() == 1 {
				monthKey = compliance.PreviousMonthKey(time.Now())
			}
		}

		logCtx.WithFields(logrus.Fields{"mode": mode, "group_id": groupID, "month_key": monthKey}).Info("Manual sweep triggered")
		// Safe to run concurrently with a scheduled trigger: both only read
		// ledger/registry state, and removal idempotency is structural.
		go func() {
			runCtx, cancel := context.WithTimeout(context.Background(), 60*time.Minute)
			defer cancel()
			if _, err := deps.Sweeps.Run(runCtx, groupID, monthKey, mode, policy); err != nil {
				logCtx.WithError(err).Error("Manual sweep failed")
			}
		}()
		return c.Send(fmt.Sprintf("Sweep %s started for group %d, month %s. Report follows in the operator chat.", mode, groupID, monthKey))
	}))

	b.Handle("/export", guard("/export", func(c telebot.Context, logCtx *logrus.Entry) error {
		groupID := deps.DefaultGroupID
		if args := c.Args(); len(args) == 1 {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return c.Send("group_id must be a number.")
			}
			groupID = id
		}

		records, monthKey, err := deps.Ledger.ExportMonth(ctx, groupID, "")
		if err != nil {
			logCtx.WithError(err).Error("Failed to export ledger")
			return c.Send(fmt.Sprintf("Could not export ledger: %s", err.Error()))
		}
		if len(records) == 0 {
			return c.Send(fmt.Sprintf("No records for group %d in %s.", groupID, monthKey))
		}

		var out strings.Builder
		fmt.Fprintf(&out, "Ledger %s, group %d\nuser | purchases | games | dm | note\n", monthKey, groupID)
		for _, rec := range records {
			ready, err := deps.OptIn.IsDmReady(ctx, rec.UserID)
			if err != nil {
				logCtx.WithError(err).WithField("user_id", rec.UserID).Warn("Opt-in lookup failed during export")
			}
			fmt.Fprintf(&out, "%d | $%.2f | %d | %t | %s\n",
				rec.UserID, float64(rec.PurchaseTotalCents)/100, rec.GameCount, ready, rec.Note)
		}
		return c.Send(out.String())
	}))

	b.Handle("/optin", guard("/optin", func(c telebot.Context, logCtx *logrus.Entry) error {
		userID, err := singleUserArg(c)
		if err != nil {
			return c.Send("Usage: /optin <user_id>")
		}
		if err := deps.OptIn.MarkReady(ctx, userID, optin.SourceAdmin); err != nil {
			logCtx.WithError(err).Error("Failed to set opt-in")
			return c.Send(fmt.Sprintf("Could not set opt-in: %s", err.Error()))
		}
		return c.Send(fmt.Sprintf("User %d marked DM-ready.", userID))
	}))

	b.Handle("/optout", guard("/optout", func(c telebot.Context, logCtx *logrus.Entry) error {
		userID, err := singleUserArg(c)
		if err != nil {
			return c.Send("Usage: /optout <user_id>")
		}
		if err := deps.OptIn.ClearReady(ctx, userID); err != nil {
			logCtx.WithError(err).Error("Failed to clear opt-in")
			return c.Send(fmt.Sprintf("Could not clear opt-in: %s", err.Error()))
		}
		return c.Send(fmt.Sprintf("User %d opted out of DMs.", userID))
	}))

	b.Handle("/help", guard("/help", func(c telebot.Context, _ *logrus.Entry) error {
		var help strings.Builder
		help.WriteString("Operator commands:\n\n")
		help.WriteString("/purchase <user_id> <amount> [entity_id] — record a purchase\n")
		help.WriteString("/game <user_id> — record a game contribution\n")
		help.WriteString("/status <user_id> [group_id] — compliance status this month\n")
		help.WriteString("/exempt <user_id> [global|group_id] [12h|3d|2w] [reason] — grant exemption\n")
		help.WriteString("/unexempt <user_id> [global|group_id] — revoke exemption\n")
		help.WriteString("/exemptions [global|group_id] — list exemptions\n")
		help.WriteString("/sweep <reminder|final|removal> [group_id] [simple|diversity] — trigger a stage\n")
		help.WriteString("/export [group_id] — current month's ledger\n")
		help.WriteString("/optin <user_id>, /optout <user_id> — DM opt-in control\n")
		return c.Send(help.String())
	}))
}

func singleUserArg(c telebot.Context) (int64, error) {
	args := c.Args()
	if len(args) != 1 {
		return 0, fmt.Errorf("expected one argument")
	}
	return strconv.ParseInt(args[0], 10, 64)
}

func parseScope(arg string, defaultGroupID int64) int64 {
	if strings.EqualFold(arg, "global") {
		return exemption.ScopeGlobal
	}
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return id
	}
	return defaultGroupID
}

func scopeLabel(scope int64) string {
	if scope == exemption.ScopeGlobal {
		return "global"
	}
	return strconv.FormatInt(scope, 10)
}

// parseExemptArgs pulls the optional scope and duration tokens off the front
// of the argument list; whatever remains is the free-form reason.
func parseExemptArgs(args []string, defaultGroupID int64) (scope int64, duration, reason string) {
	scope = defaultGroupID
	rest := args
	if len(rest) > 0 {
		if strings.EqualFold(rest[0], "global") {
			scope = exemption.ScopeGlobal
			rest = rest[1:]
		} else if id, err := strconv.ParseInt(rest[0], 10, 64); err == nil && id < 0 {
			// Group chat IDs are negative; a positive number here would be
			// ambiguous with a duration-less reason.
			scope = id
			rest = rest[1:]
		}
	}
	if len(rest) > 0 {
		if _, err := exemption.ParseDuration(rest[0]); err == nil {
			duration = rest[0]
			rest = rest[1:]
		}
	}
	reason = strings.Join(rest, " ")
	return scope, duration, reason
}
