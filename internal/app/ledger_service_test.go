package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"membership_compliance_bot/internal/domain/compliance"
	idb "membership_compliance_bot/internal/infra/database"
)

type ledgerKey struct {
	groupID  int64
	userID   int64
	monthKey string
}

// memLedgerRepo is an in-memory compliance.Repository mirroring the Postgres
// semantics: lazy record creation, deduplicated supported set.
type memLedgerRepo struct {
	rows map[ledgerKey]*compliance.RequirementRecord
}

func newMemLedgerRepo() *memLedgerRepo {
	return &memLedgerRepo{rows: make(map[ledgerKey]*compliance.RequirementRecord)}
}

func (r *memLedgerRepo) EnsureRecord(_ context.Context, groupID, userID int64, monthKey string) error {
	key := ledgerKey{groupID, userID, monthKey}
	if _, ok := r.rows[key]; !ok {
		r.rows[key] = compliance.ZeroRecord(groupID, userID, monthKey)
	}
	return nil
}

func (r *memLedgerRepo) AddPurchase(_ context.Context, groupID, userID int64, monthKey string, amountCents int64, entityID string) (*compliance.RequirementRecord, error) {
	rec, ok := r.rows[ledgerKey{groupID, userID, monthKey}]
	if !ok {
		return nil, idb.ErrRecordNotFound
	}
	rec.PurchaseTotalCents += amountCents
	if entityID != "" && !rec.HasEntity(entityID) {
		rec.SupportedEntities = append(rec.SupportedEntities, entityID)
	}
	return rec, nil
}

func (r *memLedgerRepo) AddGame(_ context.Context, groupID, userID int64, monthKey string, houseEntities []string) (*compliance.RequirementRecord, error) {
	rec, ok := r.rows[ledgerKey{groupID, userID, monthKey}]
	if !ok {
		return nil, idb.ErrRecordNotFound
	}
	rec.GameCount++
	for _, e := range houseEntities {
		if !rec.HasEntity(e) {
			rec.SupportedEntities = append(rec.SupportedEntities, e)
		}
	}
	return rec, nil
}

func (r *memLedgerRepo) Get(_ context.Context, groupID, userID int64, monthKey string) (*compliance.RequirementRecord, error) {
	if rec, ok := r.rows[ledgerKey{groupID, userID, monthKey}]; ok {
		return rec, nil
	}
	return nil, idb.ErrRecordNotFound
}

func (r *memLedgerRepo) ListByGroupAndMonth(_ context.Context, groupID int64, monthKey string) ([]*compliance.RequirementRecord, error) {
	var out []*compliance.RequirementRecord
	for key, rec := range r.rows {
		if key.groupID == groupID && key.monthKey == monthKey {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *memLedgerRepo) SetNote(_ context.Context, groupID, userID int64, monthKey string, note string) error {
	rec, ok := r.rows[ledgerKey{groupID, userID, monthKey}]
	if !ok {
		return idb.ErrRecordNotFound
	}
	rec.Note = note
	return nil
}

var testHouseEntities = []string{"house_game_a", "house_game_b"}

func fixedLedgerService(repo compliance.Repository, now time.Time) *LedgerService {
	s := NewLedgerService(repo, testHouseEntities, time.UTC, testLogger())
	s.now = func() time.Time { return now }
	return s
}

func TestRecordPurchaseRejectsNegativeAmount(t *testing.T) {
	repo := newMemLedgerRepo()
	s := fixedLedgerService(repo, time.Date(2026, time.August, 10, 12, 0, 0, 0, time.UTC))

	if _, err := s.RecordPurchase(context.Background(), testGroupID, 7, -500, "shop"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("RecordPurchase() err = %v, want ErrInvalidAmount", err)
	}
	if len(repo.rows) != 0 {
		t.Fatal("rejected purchase must not create a record")
	}
}

func TestPurchasesAccumulateWithinMonth(t *testing.T) {
	s := fixedLedgerService(newMemLedgerRepo(), time.Date(2026, time.August, 10, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	if _, err := s.RecordPurchase(ctx, testGroupID, 7, 700, "alpha"); err != nil {
		t.Fatalf("RecordPurchase() error: %v", err)
	}
	rec, err := s.RecordPurchase(ctx, testGroupID, 7, 1300, "beta")
	if err != nil {
		t.Fatalf("RecordPurchase() error: %v", err)
	}

	if rec.PurchaseTotalCents != 2000 {
		t.Fatalf("PurchaseTotalCents = %d, want 2000", rec.PurchaseTotalCents)
	}
	if rec.EntityCount() != 2 || !rec.HasEntity("alpha") || !rec.HasEntity("beta") {
		t.Fatalf("SupportedEntities = %v, want alpha and beta", rec.SupportedEntities)
	}

	// Repeat purchase for an already-supported entity grows the total only.
	rec, err = s.RecordPurchase(ctx, testGroupID, 7, 100, "alpha")
	if err != nil {
		t.Fatalf("RecordPurchase() error: %v", err)
	}
	if rec.PurchaseTotalCents != 2100 || rec.EntityCount() != 2 {
		t.Fatalf("total/entities = %d/%d after duplicate entity, want 2100/2", rec.PurchaseTotalCents, rec.EntityCount())
	}
}

func TestRecordGameCreditsHouseEntities(t *testing.T) {
	s := fixedLedgerService(newMemLedgerRepo(), time.Date(2026, time.August, 10, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	rec, err := s.RecordGame(ctx, testGroupID, 7)
	if err != nil {
		t.Fatalf("RecordGame() error: %v", err)
	}
	if rec.GameCount != 1 || rec.EntityCount() != 2 {
		t.Fatalf("games/entities = %d/%d after one game, want 1/2", rec.GameCount, rec.EntityCount())
	}

	// One game already satisfies the diversity formula's entity floor.
	if got := compliance.Evaluate(rec, false, compliance.DiversityPolicy(2000, 2)); got != compliance.StatusCompliant {
		t.Fatalf("Evaluate after one game = %s, want COMPLIANT under the diversity formula", got)
	}

	rec, err = s.RecordGame(ctx, testGroupID, 7)
	if err != nil {
		t.Fatalf("RecordGame() error: %v", err)
	}
	if rec.GameCount != 2 || rec.EntityCount() != 2 {
		t.Fatalf("games/entities = %d/%d after two games, want 2/2 (house entities deduplicated)", rec.GameCount, rec.EntityCount())
	}
}

func TestMonthRolloverStartsFreshRecord(t *testing.T) {
	repo := newMemLedgerRepo()
	s := fixedLedgerService(repo, time.Date(2026, time.August, 31, 23, 50, 0, 0, time.UTC))
	ctx := context.Background()

	if _, err := s.RecordPurchase(ctx, testGroupID, 7, 5000, "alpha"); err != nil {
		t.Fatalf("RecordPurchase() error: %v", err)
	}

	// Cross into September: the current-month view must be empty while the
	// August record survives untouched under its own key.
	s.now = func() time.Time { return time.Date(2026, time.September, 1, 0, 10, 0, 0, time.UTC) }

	fresh, err := s.GetRecord(ctx, testGroupID, 7, "")
	if err != nil {
		t.Fatalf("GetRecord() error: %v", err)
	}
	if fresh.MonthKey != "2026-09" || fresh.PurchaseTotalCents != 0 {
		t.Fatalf("current-month record = %s/%d cents, want a zero 2026-09 record", fresh.MonthKey, fresh.PurchaseTotalCents)
	}

	old, err := s.GetRecord(ctx, testGroupID, 7, "2026-08")
	if err != nil {
		t.Fatalf("GetRecord(2026-08) error: %v", err)
	}
	if old.PurchaseTotalCents != 5000 {
		t.Fatalf("August total = %d, want 5000 preserved across rollover", old.PurchaseTotalCents)
	}
}

func TestGetRecordFallsBackToZeroRecord(t *testing.T) {
	s := fixedLedgerService(newMemLedgerRepo(), time.Date(2026, time.August, 10, 12, 0, 0, 0, time.UTC))

	rec, err := s.GetRecord(context.Background(), testGroupID, 404, "")
	if err != nil {
		t.Fatalf("GetRecord() error: %v", err)
	}
	if rec == nil || rec.PurchaseTotalCents != 0 || rec.GameCount != 0 || rec.EntityCount() != 0 {
		t.Fatalf("GetRecord for an unseen user = %+v, want a zero record, never nil", rec)
	}
}

func TestSetNote(t *testing.T) {
	repo := newMemLedgerRepo()
	s := fixedLedgerService(repo, time.Date(2026, time.August, 10, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	if err := s.SetNote(ctx, testGroupID, 7, "paid in cash"); err != nil {
		t.Fatalf("SetNote() error: %v", err)
	}
	rec, err := s.GetRecord(ctx, testGroupID, 7, "")
	if err != nil {
		t.Fatalf("GetRecord() error: %v", err)
	}
	if rec.Note != "paid in cash" {
		t.Fatalf("Note = %q, want the stored note on a lazily created record", rec.Note)
	}
}
