// internal/domain/compliance/report.go
package compliance

import (
	"fmt"
	"strings"
	"time"
)

// SweepMode selects the terminal action a sweep takes on the non-compliant
// bucket. The scheduler binding that invokes the sweep picks the mode; the
// orchestrator never recomputes it.
type SweepMode string

const (
	ModeReminder     SweepMode = "REMINDER"
	ModeFinalWarning SweepMode = "FINAL_WARNING"
	ModeRemoval      SweepMode = "REMOVAL"
)

// EnforcementReport is the ephemeral result of one sweep. It is delivered to
// the operator chat and logged, never persisted; each run regenerates it.
type EnforcementReport struct {
	RunID                    string
	GroupID                  int64
	MonthKey                 string
	Mode                     SweepMode
	Policy                   PolicyName
	StartedAt                time.Time
	FinishedAt               time.Time
	CompliantCount           int
	ExemptCount              int
	NonCompliantCount        int
	NotifiedCount            int
	FailedNotifyCount        int
	KickedUserIDs            []int64
	FailedKickUserIDs        []int64
	SkippedPrivilegedUserIDs []int64
}

// Summary renders the operator-facing report text. Produced for every run,
// including runs that affected zero users, to prove the pipeline is alive.
func (r *EnforcementReport) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Sweep %s (%s, policy %s) for group %d, month %s\n",
		r.Mode, r.RunID, r.Policy, r.GroupID, r.MonthKey)
	fmt.Fprintf(&b, "Compliant: %d | Exempt: %d | Non-compliant: %d | Privileged skipped: %d\n",
		r.CompliantCount, r.ExemptCount, r.NonCompliantCount, len(r.SkippedPrivilegedUserIDs))
	switch r.Mode {
	case ModeRemoval:
		fmt.Fprintf(&b, "Removed: %d %v\n", len(r.KickedUserIDs), r.KickedUserIDs)
		if len(r.FailedKickUserIDs) > 0 {
			fmt.Fprintf(&b, "Removal failures: %d %v\n", len(r.FailedKickUserIDs), r.FailedKickUserIDs)
		}
	default:
		fmt.Fprintf(&b, "Notified: %d | Delivery failures: %d\n", r.NotifiedCount, r.FailedNotifyCount)
	}
	fmt.Fprintf(&b, "Took %s", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	return b.String()
}
