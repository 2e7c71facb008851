// internal/app/dispatcher.go
package app

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	domainTelegram "membership_compliance_bot/internal/domain/telegram"
	"membership_compliance_bot/internal/infra/metrics"

	"github.com/sirupsen/logrus"
)

// DmReadyChecker gates outbound direct messages on opt-in status.
type DmReadyChecker interface {
	IsDmReady(ctx context.Context, userID int64) (bool, error)
}

// DeliveryFailure records one recipient the dispatcher could not reach.
type DeliveryFailure struct {
	UserID int64
	Reason string
}

// DispatchResult is the aggregate outcome of one batch send.
type DispatchResult struct {
	Sent    []int64
	Failed  []DeliveryFailure
	Skipped []int64 // recipients without DM opt-in
}

// Dispatcher sends a randomized templated message to a target list. A
// delivery failure is folded into the batch result and never stops the
// remaining recipients; a fixed delay paces sends against platform limits.
type Dispatcher struct {
	gateway domainTelegram.Gateway
	optIn   DmReadyChecker
	delay   time.Duration
	logger  *logrus.Entry

	// pick selects a template index; swapped out in tests.
	pick func(n int) int
}

func NewDispatcher(gw domainTelegram.Gateway, optIn DmReadyChecker, delay time.Duration, logger *logrus.Entry) *Dispatcher {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Dispatcher{
		gateway: gw,
		optIn:   optIn,
		delay:   delay,
		logger:  logger,
		pick:    rng.Intn,
	}
}

// Send delivers one message per recipient, choosing a template uniformly at
// random per message (not per batch) so recipients who compare notes do not
// see identical fixed wording. argsFn supplies per-recipient format arguments;
// nil means the templates take none.
func (d *Dispatcher) Send(ctx context.Context, userIDs []int64, templates []string, argsFn func(userID int64) []any) *DispatchResult {
	result := &DispatchResult{
		Sent:    make([]int64, 0, len(userIDs)),
		Failed:  make([]DeliveryFailure, 0),
		Skipped: make([]int64, 0),
	}
	if len(templates) == 0 {
		d.logger.Warn("Dispatch requested with an empty template pool")
		return result
	}

	for i, userID := range userIDs {
		ready, err := d.optIn.IsDmReady(ctx, userID)
		if err != nil {
			result.Failed = append(result.Failed, DeliveryFailure{UserID: userID, Reason: fmt.Sprintf("opt-in lookup: %v", err)})
			metrics.DMFailuresTotal.Inc()
			continue
		}
		if !ready {
			result.Skipped = append(result.Skipped, userID)
			continue
		}

		text := templates[d.pick(len(templates))]
		if argsFn != nil {
			text = fmt.Sprintf(text, argsFn(userID)...)
		}

		if err := d.gateway.SendMessage(ctx, userID, text); err != nil {
			d.logger.WithError(err).WithField("user_id", userID).Warn("Direct message delivery failed")
			result.Failed = append(result.Failed, DeliveryFailure{UserID: userID, Reason: err.Error()})
			metrics.DMFailuresTotal.Inc()
		} else {
			result.Sent = append(result.Sent, userID)
			metrics.DMSentTotal.Inc()
		}

		if d.delay > 0 && i < len(userIDs)-1 {
			select {
			case <-ctx.Done():
				d.logger.Warn("Dispatch interrupted by context cancellation")
				return result
			case <-time.After(d.delay):
			}
		}
	}
	return result
}
