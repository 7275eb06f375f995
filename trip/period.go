package trip

import (
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

// PeriodOf is the settlement month a drive date belongs to.
func PeriodOf(driveDate time.Time) (year, month int) {
	return driveDate.Year(), int(driveDate.Month())
}

// MonthRange returns the first and last calendar day of the month, both at
// midnight UTC, which is how drive dates are stored.
func MonthRange(year, month int) (first, last time.Time) {
	first = time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	last = first.AddDate(0, 1, -1)
	return first, last
}

// CivilDate drops the clock and zone, keeping the calendar day as seen in loc.
func CivilDate(t time.Time, loc *time.Location) time.Time {
	if loc != nil {
		t = t.In(loc)
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid drive date %q, want YYYY-MM-DD: %w", s, err)
	}
	return d, nil
}

func ValidPeriod(year, month int) bool {
	return year >= 2000 && year <= 9999 && month >= 1 && month <= 12
}
