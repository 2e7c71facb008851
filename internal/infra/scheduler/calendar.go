package scheduler

import "time"

// LastDayOfMonth returns the number of the last calendar day of t's month,
// correct for variable month lengths including leap-year February.
func LastDayOfMonth(t time.Time) int {
	firstOfNextMonth := time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, t.Location())
	return firstOfNextMonth.AddDate(0, 0, -1).Day()
}

// IsFinalWarningDay reports whether t falls exactly 3 days before the last
// calendar day of its month. The daily job fires every day and consults this,
// so a scheduler restart never needs a persisted "already fired" marker.
func IsFinalWarningDay(t time.Time) bool {
	return t.Day() == LastDayOfMonth(t)-3
}
