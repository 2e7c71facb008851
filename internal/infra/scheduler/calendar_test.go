package scheduler

import (
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func TestLastDayOfMonth(t *testing.T) {
	cases := []struct {
		in   time.Time
		want int
	}{
		{day(2026, time.February, 10), 28}, // non-leap
		{day(2028, time.February, 10), 29}, // leap
		{day(2026, time.April, 1), 30},
		{day(2026, time.August, 28), 31},
		{day(2026, time.December, 31), 31},
	}
	for _, tc := range cases {
		if got := LastDayOfMonth(tc.in); got != tc.want {
			t.Fatalf("LastDayOfMonth(%s) = %d, want %d", tc.in.Format("2006-01-02"), got, tc.want)
		}
	}
}

func TestIsFinalWarningDay(t *testing.T) {
	// 31-day month: act on the 28th only.
	if !IsFinalWarningDay(day(2026, time.August, 28)) {
		t.Fatal("Aug 28 must be the final warning day")
	}
	for _, d := range []int{27, 29, 30, 31, 1} {
		if IsFinalWarningDay(day(2026, time.August, d)) {
			t.Fatalf("Aug %d wrongly reported as final warning day", d)
		}
	}

	// Non-leap February: last day 28, act on the 25th.
	if !IsFinalWarningDay(day(2026, time.February, 25)) {
		t.Fatal("Feb 25 (non-leap) must be the final warning day")
	}
	if IsFinalWarningDay(day(2026, time.February, 26)) {
		t.Fatal("Feb 26 (non-leap) wrongly reported as final warning day")
	}

	// Leap February: last day 29, act on the 26th.
	if !IsFinalWarningDay(day(2028, time.February, 26)) {
		t.Fatal("Feb 26 (leap) must be the final warning day")
	}
	if IsFinalWarningDay(day(2028, time.February, 25)) {
		t.Fatal("Feb 25 (leap) wrongly reported as final warning day")
	}
}
