// internal/app/optin_service.go
package app

import (
	"context"
	"fmt"
	"time"

	"membership_compliance_bot/internal/domain/optin"
	idb "membership_compliance_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
)

// OptInService is the opt-in tracker. Once a user is DM-ready they stay
// DM-ready until an operator clears it or they leave a watched group; leaving
// is the sole automatic revocation path.
type OptInService struct {
	repo          optin.Repository
	watchedGroups map[int64]struct{}
	logger        *logrus.Entry
	now           func() time.Time
}

func NewOptInService(repo optin.Repository, watchedGroupIDs []int64, logger *logrus.Entry) *OptInService {
	watched := make(map[int64]struct{}, len(watchedGroupIDs))
	for _, id := range watchedGroupIDs {
		watched[id] = struct{}{}
	}
	return &OptInService{repo: repo, watchedGroups: watched, logger: logger, now: time.Now}
}

// MarkReady records the user as DM-ready from the given source.
func (s *OptInService) MarkReady(ctx context.Context, userID int64, source optin.Source) error {
	status := &optin.Status{
		UserID:      userID,
		DMReady:     true,
		FirstSeenAt: s.now(),
		Source:      source,
	}
	if err := s.repo.Upsert(ctx, status); err != nil {
		return fmt.Errorf("failed to mark user %d dm-ready: %w", userID, err)
	}
	s.logger.WithFields(logrus.Fields{"user_id": userID, "source": source}).Info("User marked DM-ready")
	return nil
}

// ClearReady revokes DM permission by explicit operator action.
func (s *OptInService) ClearReady(ctx context.Context, userID int64) error {
	err := s.repo.SetDMReady(ctx, userID, false)
	if err != nil && err != idb.ErrOptInNotFound {
		return fmt.Errorf("failed to clear dm-ready for user %d: %w", userID, err)
	}
	s.logger.WithField("user_id", userID).Info("User DM opt-in cleared")
	return nil
}

// IsDmReady reports whether the dispatcher may message the user. Unknown
// users are not DM-ready.
func (s *OptInService) IsDmReady(ctx context.Context, userID int64) (bool, error) {
	status, err := s.repo.Get(ctx, userID)
	if err != nil {
		if err == idb.ErrOptInNotFound {
			return false, nil
		}
		return false, fmt.Errorf("failed to read opt-in status for user %d: %w", userID, err)
	}
	return status.DMReady, nil
}

// OnMemberLeft clears opt-in when the user leaves or is removed from a
// watched group. Departures from unwatched groups are ignored.
func (s *OptInService) OnMemberLeft(ctx context.Context, groupID, userID int64) error {
	if _, watched := s.watchedGroups[groupID]; !watched {
		return nil
	}
	err := s.repo.SetDMReady(ctx, userID, false)
	if err != nil && err != idb.ErrOptInNotFound {
		return fmt.Errorf("failed to clear opt-in after user %d left group %d: %w", userID, groupID, err)
	}
	s.logger.WithFields(logrus.Fields{"user_id": userID, "group_id": groupID}).Info("Opt-in cleared, user left watched group")
	return nil
}
