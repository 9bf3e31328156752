package payables

import (
	"fmt"
	"strconv"
	"time"
)

// IndiaTime is Indian Standard Time. India observes no daylight saving, so a fixed
// zone avoids depending on tzdata being installed.
var IndiaTime = time.FixedZone("IST", 5*60*60+30*60)

// FiscalYearOf returns the Indian fiscal year (April to March) containing t, e.g.
// "2024-25". The boundary is midnight IST whatever zone t carries.
func FiscalYearOf(t time.Time) string {
	t = t.In(IndiaTime)
	start := t.Year()
	if t.Month() < time.April {
		start--
	}
	return fmt.Sprintf("%d-%02d", start, (start+1)%100)
}

// FiscalYearBounds returns the half-open [start, end) interval of a fiscal year label
// in loc, IST when nil.
func FiscalYearBounds(label string, loc *time.Location) (time.Time, time.Time, error) {
	if len(label) != 7 || label[4] != '-' {
		return time.Time{}, time.Time{}, ErrInvalidFiscalYear
	}
	start, err := strconv.Atoi(label[:4])
	if err != nil {
		return time.Time{}, time.Time{}, ErrInvalidFiscalYear
	}
	end, err := strconv.Atoi(label[5:])
	if err != nil || end != (start+1)%100 {
		return time.Time{}, time.Time{}, ErrInvalidFiscalYear
	}
	if loc == nil {
		loc = IndiaTime
	}
	from := time.Date(start, time.April, 1, 0, 0, 0, 0, loc)
	return from, from.AddDate(1, 0, 0), nil
}
