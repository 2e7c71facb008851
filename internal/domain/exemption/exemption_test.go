package exemption

import (
	"database/sql"
	"errors"
	"testing"
	"time"
)

func TestParseDuration(t *testing.T) {
	cases := []struct {
		token string
		want  time.Duration
	}{
		{"12h", 12 * time.Hour},
		{"24H", 24 * time.Hour},
		{"3d", 3 * 24 * time.Hour},
		{"2w", 14 * 24 * time.Hour},
		{" 1d ", 24 * time.Hour},
	}
	for _, tc := range cases {
		got, err := ParseDuration(tc.token)
		if err != nil {
			t.Fatalf("ParseDuration(%q) error: %v", tc.token, err)
		}
		if got != tc.want {
			t.Fatalf("ParseDuration(%q) = %v, want %v", tc.token, got, tc.want)
		}
	}
}

func TestParseDurationRejectsMalformedTokens(t *testing.T) {
	for _, token := range []string{"", "h", "12", "0d", "-3d", "3x", "abc", "1.5d"} {
		if _, err := ParseDuration(token); !errors.Is(err, ErrInvalidDuration) {
			t.Fatalf("ParseDuration(%q) err = %v, want ErrInvalidDuration", token, err)
		}
	}
}

func TestExpired(t *testing.T) {
	now := time.Date(2026, time.August, 28, 12, 0, 0, 0, time.UTC)

	indefinite := &Exemption{UserID: 1, Scope: ScopeGlobal}
	if indefinite.Expired(now) {
		t.Fatal("indefinite exemption must never expire")
	}

	live := &Exemption{ExpiresAt: sql.NullTime{Time: now.Add(time.Hour), Valid: true}}
	if live.Expired(now) {
		t.Fatal("exemption expiring in an hour reported as expired")
	}

	lapsed := &Exemption{ExpiresAt: sql.NullTime{Time: now.Add(-time.Minute), Valid: true}}
	if !lapsed.Expired(now) {
		t.Fatal("lapsed exemption reported as live")
	}
}

func TestRemainingLabel(t *testing.T) {
	now := time.Date(2026, time.August, 28, 12, 0, 0, 0, time.UTC)

	indefinite := &Exemption{}
	if got := indefinite.RemainingLabel(now); got != "indefinite" {
		t.Fatalf("RemainingLabel = %q, want indefinite", got)
	}

	lapsed := &Exemption{ExpiresAt: sql.NullTime{Time: now.Add(-time.Hour), Valid: true}}
	if got := lapsed.RemainingLabel(now); got != "expired" {
		t.Fatalf("RemainingLabel = %q, want expired", got)
	}

	twoDays := &Exemption{ExpiresAt: sql.NullTime{Time: now.Add(50 * time.Hour), Valid: true}}
	if got := twoDays.RemainingLabel(now); got != "2d2h left" {
		t.Fatalf("RemainingLabel = %q, want 2d2h left", got)
	}
}

func TestScopeLabel(t *testing.T) {
	if got := (&Exemption{Scope: ScopeGlobal}).ScopeLabel(); got != "global" {
		t.Fatalf("ScopeLabel = %q, want global", got)
	}
	if got := (&Exemption{Scope: -100123}).ScopeLabel(); got != "-100123" {
		t.Fatalf("ScopeLabel = %q, want -100123", got)
	}
}
