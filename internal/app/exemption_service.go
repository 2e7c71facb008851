// internal/app/exemption_service.go
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"membership_compliance_bot/internal/domain/exemption"

	"github.com/sirupsen/logrus"
)

// ExemptionService manages time-bounded and indefinite exemptions. Expiry is
// always enforced at read time; expired rows are only ever removed by the
// opportunistic GC hook.
type ExemptionService struct {
	repo   exemption.Repository
	logger *logrus.Entry
	now    func() time.Time
}

func NewExemptionService(repo exemption.Repository, logger *logrus.Entry) *ExemptionService {
	return &ExemptionService{repo: repo, logger: logger, now: time.Now}
}

// Grant creates or replaces the exemption for (user, scope). durationToken is
// a relative token like "12h" or "3d"; empty means indefinite.
func (s *ExemptionService) Grant(ctx context.Context, userID, scope int64, durationToken, reason string, grantedBy int64) (*exemption.Exemption, error) {
	var expiresAt sql.NullTime
	if durationToken != "" {
		d, err := exemption.ParseDuration(durationToken)
		if err != nil {
			return nil, err
		}
		expiresAt = sql.NullTime{Time: s.now().Add(d), Valid: true}
	}

	e := &exemption.Exemption{
		UserID:    userID,
		Scope:     scope,
		ExpiresAt: expiresAt,
		Reason:    reason,
		GrantedBy: grantedBy,
	}
	if err := s.repo.Upsert(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to grant exemption: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":    userID,
		"scope":      e.ScopeLabel(),
		"expires_at": expiresAt.Time,
		"indefinite": !expiresAt.Valid,
		"granted_by": grantedBy,
	}).Info("Exemption granted")
	return e, nil
}

// Revoke deletes the exemption outright. Returns true when a row was removed.
func (s *ExemptionService) Revoke(ctx context.Context, userID, scope int64) (bool, error) {
	removed, err := s.repo.Delete(ctx, userID, scope)
	if err != nil {
		return false, fmt.Errorf("failed to revoke exemption: %w", err)
	}
	if removed {
		s.logger.WithFields(logrus.Fields{"user_id": userID, "scope": scope}).Info("Exemption revoked")
	}
	return removed, nil
}

// IsExempt reports whether the user holds a non-expired global exemption or a
// non-expired exemption scoped to groupID. Expired rows are treated as absent.
func (s *ExemptionService) IsExempt(ctx context.Context, userID, groupID int64, now time.Time) (bool, error) {
	exemptions, err := s.repo.ListForUser(ctx, userID, groupID)
	if err != nil {
		return false, fmt.Errorf("failed to check exemptions for user %d: %w", userID, err)
	}
	for _, e := range exemptions {
		if !e.Expired(now) {
			return true, nil
		}
	}
	return false, nil
}

// List returns every exemption for a scope, including lapsed ones; display
// state is derived from now by the caller via RemainingLabel.
func (s *ExemptionService) List(ctx context.Context, scope int64) ([]*exemption.Exemption, error) {
	return s.repo.ListByScope(ctx, scope)
}

// CollectExpired removes lapsed rows. Wired to the daily cron; classification
// never depends on it running.
func (s *ExemptionService) CollectExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.now())
}
