// internal/domain/exemption/exemption.go
package exemption

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ScopeGlobal marks an exemption that applies across all watched groups.
// Any other scope value is a group chat ID.
const ScopeGlobal int64 = 0

// Exemption excuses a user from the monthly support requirement, either for
// one group or globally. At most one row exists per (user, scope).
// Corresponds to the 'exemptions' table.
type Exemption struct {
	UserID    int64
	Scope     int64        // group ID, or ScopeGlobal
	ExpiresAt sql.NullTime // invalid = indefinite
	Reason    string
	GrantedBy int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Expired reports whether the exemption has lapsed at now. Indefinite
// exemptions never expire. Expiry is enforced here at read time; expired rows
// stay in storage until opportunistically collected.
func (e *Exemption) Expired(now time.Time) bool {
	return e.ExpiresAt.Valid && now.After(e.ExpiresAt.Time)
}

// ScopeLabel renders the scope for operator output.
func (e *Exemption) ScopeLabel() string {
	if e.Scope == ScopeGlobal {
		return "global"
	}
	return strconv.FormatInt(e.Scope, 10)
}

// RemainingLabel renders the time-remaining display state, computed from now
// rather than any stored flag.
func (e *Exemption) RemainingLabel(now time.Time) string {
	if !e.ExpiresAt.Valid {
		return "indefinite"
	}
	if e.Expired(now) {
		return "expired"
	}
	left := e.ExpiresAt.Time.Sub(now).Round(time.Minute)
	if left >= 24*time.Hour {
		days := int(left / (24 * time.Hour))
		hours := int((left % (24 * time.Hour)) / time.Hour)
		return fmt.Sprintf("%dd%dh left", days, hours)
	}
	return fmt.Sprintf("%s left", left)
}

// ErrInvalidDuration rejects malformed duration tokens at the API boundary.
var ErrInvalidDuration = fmt.Errorf("invalid duration token")

// ParseDuration resolves a relative duration token like "12h", "3d" or "2w"
// to a time.Duration. time.ParseDuration is not used because operators work in
// days and weeks, which it does not accept.
func ParseDuration(token string) (time.Duration, error) {
	token = strings.ToLower(strings.TrimSpace(token))
	if len(token) < 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, token)
	}
	unit := token[len(token)-1]
	n, err := strconv.Atoi(token[:len(token)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, token)
	}
	switch unit {
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("%w: %q (use h, d or w)", ErrInvalidDuration, token)
	}
}
