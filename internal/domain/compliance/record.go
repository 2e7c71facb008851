// internal/domain/compliance/record.go
package compliance

import (
	"sort"
	"time"
)

// RequirementRecord is the durable per-(group, month, user) support record.
// Corresponds to the 'requirement_records' table.
type RequirementRecord struct {
	GroupID            int64
	MonthKey           string // "YYYY-MM" in the configured local timezone
	UserID             int64
	PurchaseTotalCents int64
	SupportedEntities  []string // distinct entity IDs supported this month
	GameCount          int
	Note               string
	DMReady            bool // legacy per-record flag, superseded by the opt-in tracker
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ZeroRecord returns an empty record for the given key. The ledger contract
// guarantees GetRecord never returns nil, so absent rows surface as this.
func ZeroRecord(groupID, userID int64, monthKey string) *RequirementRecord {
	return &RequirementRecord{
		GroupID:           groupID,
		MonthKey:          monthKey,
		UserID:            userID,
		SupportedEntities: []string{},
	}
}

// EntityCount returns the number of distinct supported entities.
func (r *RequirementRecord) EntityCount() int {
	return len(r.SupportedEntities)
}

// HasEntity reports whether entityID is already in the supported set.
func (r *RequirementRecord) HasEntity(entityID string) bool {
	for _, e := range r.SupportedEntities {
		if e == entityID {
			return true
		}
	}
	return false
}

// MonthKey buckets t into its "YYYY-MM" calendar month. The caller passes a
// time already in the reference timezone; records are never merged across keys.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// PreviousMonthKey returns the month key of the month preceding t's month.
// Computed via the first of t's month to stay correct on the 29th-31st.
func PreviousMonthKey(t time.Time) string {
	firstOfMonth := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return MonthKey(firstOfMonth.AddDate(0, 0, -1))
}

// SortedEntities returns the supported set in stable order for display/export.
func (r *RequirementRecord) SortedEntities() []string {
	out := make([]string, len(r.SupportedEntities))
	copy(out, r.SupportedEntities)
	sort.Strings(out)
	return out
}
