// internal/app/sweep_service.go
package app

import (
	"context"
	"fmt"
	"time"

	"membership_compliance_bot/internal/domain/compliance"
	domainTelegram "membership_compliance_bot/internal/domain/telegram"
	"membership_compliance_bot/internal/infra/metrics"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Message pools for the enforcement stages. One template is chosen uniformly
// at random per recipient; each takes the month key as its only argument.
var reminderTemplates = []string{
	"Hey! Quick heads-up: your monthly support for %s isn't logged yet. There's still plenty of time this month.",
	"Friendly reminder — we haven't seen your support contribution for %s yet. Grab a game or a purchase when you can!",
	"Just checking in: the ledger shows no qualifying support from you for %s so far. Half the month is still ahead.",
}

var finalWarningTemplates = []string{
	"Final notice: the month %s closes in 3 days and your support requirement isn't met yet. Members without support are removed on the 1st.",
	"Heads-up — only 3 days left in %s and you haven't met the support requirement. Please sort it out to keep your spot.",
	"Last call for %s: meet the monthly support requirement within 3 days or you'll be removed when the month rolls over.",
}

var removalNoticeTemplates = []string{
	"You've been removed from the group because the support requirement for %s wasn't met. You're welcome back any time — just reach out to an admin.",
	"The monthly sweep for %s removed you from the group since no qualifying support was logged. Rejoining is easy, message an admin.",
}

// ComplianceChecker answers exemption questions for classification.
type ComplianceChecker interface {
	IsExempt(ctx context.Context, userID, groupID int64, now time.Time) (bool, error)
}

// RecordReader supplies total (never-nil) ledger records for classification.
type RecordReader interface {
	GetRecord(ctx context.Context, groupID, userID int64, monthKey string) (*compliance.RequirementRecord, error)
}

// SweepService is the enforcement sweep orchestrator. It is stateless between
// invocations; all state lives in the ledger and the exemption registry, and
// removal idempotency is structural — re-enumeration excludes anyone a
// previous run already kicked.
type SweepService struct {
	gateway        domainTelegram.Gateway
	ledger         RecordReader
	exemptions     ComplianceChecker
	roles          RoleResolver
	dispatcher     *Dispatcher
	operatorChatID int64
	watchedGroups  []int64
	defaultPolicy  compliance.Policy
	altPolicy      compliance.Policy
	logger         *logrus.Entry
	now            func() time.Time
}

func NewSweepService(
	gw domainTelegram.Gateway,
	ledger RecordReader,
	exemptions ComplianceChecker,
	roles RoleResolver,
	dispatcher *Dispatcher,
	operatorChatID int64,
	watchedGroups []int64,
	defaultPolicy, altPolicy compliance.Policy,
	logger *logrus.Entry,
) *SweepService {
	return &SweepService{
		gateway:        gw,
		ledger:         ledger,
		exemptions:     exemptions,
		roles:          roles,
		dispatcher:     dispatcher,
		operatorChatID: operatorChatID,
		watchedGroups:  watchedGroups,
		defaultPolicy:  defaultPolicy,
		altPolicy:      altPolicy,
		logger:         logger,
		now:            time.Now,
	}
}

// DefaultPolicy is the formula used by every scheduled sweep.
func (s *SweepService) DefaultPolicy() compliance.Policy { return s.defaultPolicy }

// AltPolicy is the legacy diversity formula, selectable per manual sweep.
func (s *SweepService) AltPolicy() compliance.Policy { return s.altPolicy }

// RunScheduled drives one stage over all watched groups with the default
// policy. A failed group never stops the remaining groups.
func (s *SweepService) RunScheduled(ctx context.Context, mode compliance.SweepMode, monthKey string) {
	for _, groupID := range s.watchedGroups {
		if _, err := s.Run(ctx, groupID, monthKey, mode, s.defaultPolicy); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"group_id": groupID,
				"mode":     mode,
			}).Error("Scheduled sweep failed for group")
		}
	}
}

// Run executes one sweep over one group. The caller chooses mode and policy;
// the orchestrator never recomputes them. A report is produced and delivered
// on every successful run, even when zero users were affected.
func (s *SweepService) Run(ctx context.Context, groupID int64, monthKey string, mode compliance.SweepMode, policy compliance.Policy) (*compliance.EnforcementReport, error) {
	report := &compliance.EnforcementReport{
		RunID:                    uuid.NewString(),
		GroupID:                  groupID,
		MonthKey:                 monthKey,
		Mode:                     mode,
		Policy:                   policy.Name,
		StartedAt:                s.now(),
		KickedUserIDs:            []int64{},
		FailedKickUserIDs:        []int64{},
		SkippedPrivilegedUserIDs: []int64{},
	}
	runLogger := s.logger.WithFields(logrus.Fields{
		"run_id":    report.RunID,
		"group_id":  groupID,
		"month_key": monthKey,
		"mode":      mode,
		"policy":    policy.Name,
	})
	runLogger.Info("Sweep starting")

	// Scanning. Enumeration failure is fatal for this invocation and must be
	// reported as a failed run, never as an empty report indistinguishable
	// from "everyone compliant".
	members, err := s.gateway.GroupMembers(ctx, groupID)
	if err != nil {
		return nil, s.failRun(ctx, runLogger, report, fmt.Errorf("cannot enumerate membership of group %d: %w", groupID, err))
	}

	privileged, err := s.roles.PrivilegedSet(ctx, groupID)
	if err != nil {
		return nil, s.failRun(ctx, runLogger, report, fmt.Errorf("cannot resolve privileged set of group %d: %w", groupID, err))
	}

	// Classifying. Per-member actions run sequentially to respect the
	// dispatcher's rate-limiting discipline.
	var targets []int64
	for _, m := range members {
		if m.IsBot {
			continue
		}

		exempt, err := s.exemptions.IsExempt(ctx, m.UserID, groupID, s.now())
		if err != nil {
			runLogger.WithError(err).WithField("user_id", m.UserID).Error("Exemption lookup failed, member not classified")
			continue
		}
		record, err := s.ledger.GetRecord(ctx, groupID, m.UserID, monthKey)
		if err != nil {
			runLogger.WithError(err).WithField("user_id", m.UserID).Error("Ledger read failed, member not classified")
			continue
		}

		switch compliance.Evaluate(record, exempt, policy) {
		case compliance.StatusCompliant:
			report.CompliantCount++
		case compliance.StatusExempt:
			report.ExemptCount++
		case compliance.StatusNonCompliant:
			report.NonCompliantCount++
			if _, isPrivileged := privileged[m.UserID]; isPrivileged {
				// Classified, but never acted upon destructively.
				report.SkippedPrivilegedUserIDs = append(report.SkippedPrivilegedUserIDs, m.UserID)
				continue
			}
			targets = append(targets, m.UserID)
		}
	}

	switch mode {
	case compliance.ModeReminder, compliance.ModeFinalWarning:
		s.notify(ctx, report, targets)
	case compliance.ModeRemoval:
		s.remove(ctx, runLogger, report, groupID, targets)
	}

	report.FinishedAt = s.now()
	metrics.SweepsTotal.WithLabelValues(string(mode), "ok").Inc()
	metrics.SweepDurationSeconds.Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())

	s.deliverReport(ctx, runLogger, report.Summary())
	runLogger.WithFields(logrus.Fields{
		"compliant":     report.CompliantCount,
		"exempt":        report.ExemptCount,
		"non_compliant": report.NonCompliantCount,
		"kicked":        len(report.KickedUserIDs),
		"failed_kicks":  len(report.FailedKickUserIDs),
	}).Info("Sweep finished")
	return report, nil
}

// notify handles the reminder and final-warning stages: non-compliant members
// get a templated DM, membership is never mutated.
func (s *SweepService) notify(ctx context.Context, report *compliance.EnforcementReport, targets []int64) {
	templates := reminderTemplates
	if report.Mode == compliance.ModeFinalWarning {
		templates = finalWarningTemplates
	}
	res := s.dispatcher.Send(ctx, targets, templates, func(int64) []any {
		return []any{report.MonthKey}
	})
	report.NotifiedCount = len(res.Sent)
	report.FailedNotifyCount = len(res.Failed)
}

// remove handles the removal stage: ban immediately followed by unban (an
// ordinary kick), then a best-effort removal notice. A notice failure is
// never treated as a failure of the removal itself, and one failed removal
// never aborts the sweep.
func (s *SweepService) remove(ctx context.Context, runLogger *logrus.Entry, report *compliance.EnforcementReport, groupID int64, targets []int64) {
	for _, userID := range targets {
		if err := s.gateway.RemoveMember(ctx, groupID, userID); err != nil {
			runLogger.WithError(err).WithField("user_id", userID).Warn("Member removal failed")
			report.FailedKickUserIDs = append(report.FailedKickUserIDs, userID)
			metrics.RemoveFailuresTotal.Inc()
			continue
		}
		report.KickedUserIDs = append(report.KickedUserIDs, userID)
		metrics.MembersRemovedTotal.Inc()

		// Best-effort notice; the dispatcher gates on opt-in and swallows
		// delivery failures into its result.
		s.dispatcher.Send(ctx, []int64{userID}, removalNoticeTemplates, func(int64) []any {
			return []any{report.MonthKey}
		})
	}
}

func (s *SweepService) failRun(ctx context.Context, runLogger *logrus.Entry, report *compliance.EnforcementReport, cause error) error {
	runLogger.WithError(cause).Error("Sweep failed")
	metrics.SweepsTotal.WithLabelValues(string(report.Mode), "failed").Inc()
	s.deliverReport(ctx, runLogger, fmt.Sprintf(
		"Sweep %s (%s) for group %d, month %s FAILED: %v",
		report.Mode, report.RunID, report.GroupID, report.MonthKey, cause,
	))
	return cause
}

func (s *SweepService) deliverReport(ctx context.Context, runLogger *logrus.Entry, text string) {
	if err := s.gateway.SendMessage(ctx, s.operatorChatID, text); err != nil {
		runLogger.WithError(err).Error("Could not deliver report to operator chat")
	}
}
