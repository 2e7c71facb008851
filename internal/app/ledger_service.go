// internal/app/ledger_service.go
package app

import (
	"context"
	"fmt"
	"time"

	"membership_compliance_bot/internal/domain/compliance"
	idb "membership_compliance_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
)

// Custom application-level errors for the ledger
var ErrInvalidAmount = fmt.Errorf("purchase amount must not be negative")

// LedgerService owns all mutations of the requirement ledger. Month keys are
// derived from the wall clock in the reference timezone at call time; a new
// month silently starts a fresh record, never merging across keys.
type LedgerService struct {
	repo          compliance.Repository
	houseEntities []string // the two entities a game contribution credits
	loc           *time.Location
	logger        *logrus.Entry
	now           func() time.Time
}

func NewLedgerService(repo compliance.Repository, houseEntities []string, loc *time.Location, logger *logrus.Entry) *LedgerService {
	return &LedgerService{
		repo:          repo,
		houseEntities: houseEntities,
		loc:           loc,
		logger:        logger,
		now:           time.Now,
	}
}

func (s *LedgerService) currentMonthKey() string {
	return compliance.MonthKey(s.now().In(s.loc))
}

// RecordPurchase adds a purchase to the current month's record, creating it
// lazily. A negative amount is rejected, never clamped.
func (s *LedgerService) RecordPurchase(ctx context.Context, groupID, userID, amountCents int64, entityID string) (*compliance.RequirementRecord, error) {
	if amountCents < 0 {
		return nil, ErrInvalidAmount
	}
	monthKey := s.currentMonthKey()
	if err := s.repo.EnsureRecord(ctx, groupID, userID, monthKey); err != nil {
		return nil, err
	}
	rec, err := s.repo.AddPurchase(ctx, groupID, userID, monthKey, amountCents, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to record purchase: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"group_id":     groupID,
		"user_id":      userID,
		"month_key":    monthKey,
		"amount_cents": amountCents,
		"entity_id":    entityID,
	}).Info("Purchase recorded")
	return rec, nil
}

// RecordGame increments the game counter and credits the two configured house
// entities to the supported set. A game deliberately counts toward both the
// threshold rule and the diversity rule; the dual-counting happens here, not
// in the evaluator.
func (s *LedgerService) RecordGame(ctx context.Context, groupID, userID int64) (*compliance.RequirementRecord, error) {
	monthKey := s.currentMonthKey()
	if err := s.repo.EnsureRecord(ctx, groupID, userID, monthKey); err != nil {
		return nil, err
	}
	rec, err := s.repo.AddGame(ctx, groupID, userID, monthKey, s.houseEntities)
	if err != nil {
		return nil, fmt.Errorf("failed to record game contribution: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"group_id":   groupID,
		"user_id":    userID,
		"month_key":  monthKey,
		"game_count": rec.GameCount,
	}).Info("Game contribution recorded")
	return rec, nil
}

// GetRecord returns the record for the key, or a zero-valued record when none
// exists, keeping the evaluator total over all users. An empty monthKey means
// the current month.
func (s *LedgerService) GetRecord(ctx context.Context, groupID, userID int64, monthKey string) (*compliance.RequirementRecord, error) {
	if monthKey == "" {
		monthKey = s.currentMonthKey()
	}
	rec, err := s.repo.Get(ctx, groupID, userID, monthKey)
	if err != nil {
		if err == idb.ErrRecordNotFound {
			return compliance.ZeroRecord(groupID, userID, monthKey), nil
		}
		return nil, fmt.Errorf("failed to get requirement record: %w", err)
	}
	return rec, nil
}

// ExportMonth returns all of a group's records for a month, for the operator
// export command. An empty monthKey means the current month.
func (s *LedgerService) ExportMonth(ctx context.Context, groupID int64, monthKey string) ([]*compliance.RequirementRecord, string, error) {
	if monthKey == "" {
		monthKey = s.currentMonthKey()
	}
	records, err := s.repo.ListByGroupAndMonth(ctx, groupID, monthKey)
	if err != nil {
		return nil, monthKey, fmt.Errorf("failed to export ledger month: %w", err)
	}
	return records, monthKey, nil
}

// SetNote replaces the operator note on the current month's record.
func (s *LedgerService) SetNote(ctx context.Context, groupID, userID int64, note string) error {
	monthKey := s.currentMonthKey()
	if err := s.repo.EnsureRecord(ctx, groupID, userID, monthKey); err != nil {
		return err
	}
	return s.repo.SetNote(ctx, groupID, userID, monthKey, note)
}

// CurrentMonthKey exposes the wall-clock month key for callers assembling
// sweeps or exports.
func (s *LedgerService) CurrentMonthKey() string {
	return s.currentMonthKey()
}
