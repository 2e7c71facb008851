package compliance

import (
	"testing"
	"time"
)

func TestEvaluateSimplePolicy(t *testing.T) {
	policy := SimplePolicy(2000, 4)

	cases := []struct {
		name   string
		record *RequirementRecord
		exempt bool
		want   Status
	}{
		{
			name:   "below both thresholds",
			record: &RequirementRecord{PurchaseTotalCents: 1500, GameCount: 0},
			want:   StatusNonCompliant,
		},
		{
			name:   "purchase threshold met",
			record: &RequirementRecord{PurchaseTotalCents: 2000},
			want:   StatusCompliant,
		},
		{
			name:   "game threshold met with zero purchases",
			record: &RequirementRecord{GameCount: 4},
			want:   StatusCompliant,
		},
		{
			name:   "three games is not enough",
			record: &RequirementRecord{GameCount: 3},
			want:   StatusNonCompliant,
		},
		{
			name:   "exemption short-circuits a non-compliant record",
			record: &RequirementRecord{PurchaseTotalCents: 0},
			exempt: true,
			want:   StatusExempt,
		},
		{
			name:   "exemption short-circuits even a compliant record",
			record: &RequirementRecord{PurchaseTotalCents: 5000, GameCount: 10},
			exempt: true,
			want:   StatusExempt,
		},
		{
			name:   "zero record",
			record: ZeroRecord(1, 2, "2026-08"),
			want:   StatusNonCompliant,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Evaluate(tc.record, tc.exempt, policy); got != tc.want {
				t.Fatalf("Evaluate() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestEvaluateDiversityPolicy(t *testing.T) {
	policy := DiversityPolicy(2000, 2)

	// One game contribution, zero purchases: the ledger credits the two house
	// entities alongside the game count, so the single game satisfies both the
	// count and the diversity requirement at once.
	oneGame := &RequirementRecord{
		GameCount:         1,
		SupportedEntities: []string{"house_game_a", "house_game_b"},
	}
	if got := Evaluate(oneGame, false, policy); got != StatusCompliant {
		t.Fatalf("one game under diversity policy = %s, want %s", got, StatusCompliant)
	}

	// Money alone does not pass the diversity variant.
	richButNarrow := &RequirementRecord{
		PurchaseTotalCents: 10000,
		SupportedEntities:  []string{"model_a"},
	}
	if got := Evaluate(richButNarrow, false, policy); got != StatusNonCompliant {
		t.Fatalf("single-entity spender = %s, want %s", got, StatusNonCompliant)
	}

	// Money spread over two entities passes.
	diverse := &RequirementRecord{
		PurchaseTotalCents: 2500,
		SupportedEntities:  []string{"model_a", "model_b"},
	}
	if got := Evaluate(diverse, false, policy); got != StatusCompliant {
		t.Fatalf("diverse spender = %s, want %s", got, StatusCompliant)
	}
}

func TestMonthKey(t *testing.T) {
	loc := time.FixedZone("TEST", -5*3600)
	if got := MonthKey(time.Date(2026, time.August, 28, 10, 0, 0, 0, loc)); got != "2026-08" {
		t.Fatalf("MonthKey = %q, want 2026-08", got)
	}
	if got := MonthKey(time.Date(2026, time.December, 31, 23, 59, 0, 0, loc)); got != "2026-12" {
		t.Fatalf("MonthKey = %q, want 2026-12", got)
	}
}

func TestPreviousMonthKey(t *testing.T) {
	cases := []struct {
		in   time.Time
		want string
	}{
		{time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC), "2026-02"},
		{time.Date(2026, time.January, 1, 12, 0, 0, 0, time.UTC), "2025-12"},
		{time.Date(2026, time.March, 31, 12, 0, 0, 0, time.UTC), "2026-02"},
	}
	for _, tc := range cases {
		if got := PreviousMonthKey(tc.in); got != tc.want {
			t.Fatalf("PreviousMonthKey(%s) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRecordEntityHelpers(t *testing.T) {
	rec := &RequirementRecord{SupportedEntities: []string{"b", "a"}}
	if !rec.HasEntity("a") || rec.HasEntity("c") {
		t.Fatal("HasEntity gave wrong membership answer")
	}
	if rec.EntityCount() != 2 {
		t.Fatalf("EntityCount = %d, want 2", rec.EntityCount())
	}
	sorted := rec.SortedEntities()
	if sorted[0] != "a" || sorted[1] != "b" {
		t.Fatalf("SortedEntities = %v, want [a b]", sorted)
	}
	// The original slice stays untouched.
	if rec.SupportedEntities[0] != "b" {
		t.Fatal("SortedEntities mutated the record")
	}
}
