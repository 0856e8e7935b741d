// Package calendar provides timezone-anchored date arithmetic.
//
// Every date is a normalized YYYY-MM-DD string in the owning region's
// timezone. Downstream comparisons use those strings or integer day counts,
// never wall-clock timestamps.
package calendar

import (
	"fmt"
	"time"
)

// DateLayout is the normalized date format used across the engine
const DateLayout = "2006-01-02"

// Calendar anchors date arithmetic at one IANA timezone
type Calendar struct {
	loc *time.Location
	tz  string
}

// New returns a Calendar for the given IANA timezone name
func New(tz string) (*Calendar, error) {
	if tz == "" {
		return nil, fmt.Errorf("timezone is empty")
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	return &Calendar{loc: loc, tz: tz}, nil
}

// UTC returns a Calendar anchored at UTC, for callers that work on
// normalized date strings across regions rather than in one region's zone.
func UTC() *Calendar {
	return &Calendar{loc: time.UTC, tz: "UTC"}
}

// Timezone returns the IANA name the calendar is anchored to
func (c *Calendar) Timezone() string {
	return c.tz
}

// Parse interprets a YYYY-MM-DD string as midnight in the calendar's zone
func (c *Calendar) Parse(date string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, date, c.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return t, nil
}

// Normalize renders t as a YYYY-MM-DD string in the calendar's zone
func (c *Calendar) Normalize(t time.Time) string {
	return t.In(c.loc).Format(DateLayout)
}

// Today returns the current date in the calendar's zone
func (c *Calendar) Today() string {
	return time.Now().In(c.loc).Format(DateLayout)
}

// WalkDays returns the inclusive ordered date sequence from start to end,
// one calendar day apart. Midnight anchoring keeps DST transitions from
// skipping or duplicating a day.
func (c *Calendar) WalkDays(start, end string) ([]string, error) {
	s, err := c.Parse(start)
	if err != nil {
		return nil, err
	}
	e, err := c.Parse(end)
	if err != nil {
		return nil, err
	}
	if e.Before(s) {
		return nil, fmt.Errorf("end date %s is before start date %s", end, start)
	}

	days := make([]string, 0, int(e.Sub(s).Hours()/24)+1)
	for cur := s; !cur.After(e); cur = cur.AddDate(0, 0, 1) {
		days = append(days, c.Normalize(cur))
	}
	return days, nil
}

// Weekday returns the day of week of a normalized date.
// Invalid input reports -1, which no predicate matches.
func (c *Calendar) Weekday(date string) time.Weekday {
	t, err := c.Parse(date)
	if err != nil {
		return time.Weekday(-1)
	}
	return t.Weekday()
}

// IsWeekend reports whether the date falls on Saturday or Sunday
func (c *Calendar) IsWeekend(date string) bool {
	wd := c.Weekday(date)
	return wd == time.Saturday || wd == time.Sunday
}

// SundayOfWeek returns the Sunday starting the Sun-Sat week containing date.
// Invalid input reports an empty string.
func (c *Calendar) SundayOfWeek(date string) string {
	t, err := c.Parse(date)
	if err != nil {
		return ""
	}
	return c.Normalize(t.AddDate(0, 0, -int(t.Weekday())))
}

// AddDays returns the date n calendar days after the given date (n may be
// negative). Invalid input reports an empty string.
func (c *Calendar) AddDays(date string, n int) string {
	t, err := c.Parse(date)
	if err != nil {
		return ""
	}
	return c.Normalize(t.AddDate(0, 0, n))
}

// DaysBetween returns b minus a in whole days. The calculation runs on the
// date components alone, so DST offsets never shift the count.
func (c *Calendar) DaysBetween(a, b string) int {
	ta, errA := time.Parse(DateLayout, a)
	tb, errB := time.Parse(DateLayout, b)
	if errA != nil || errB != nil {
		return 0
	}
	return int(tb.Sub(ta).Hours() / 24)
}
