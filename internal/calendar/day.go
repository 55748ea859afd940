// Package calendar holds the calendar-day type used for report dates and daily missions.
package calendar

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

const Layout = "2006-01-02"

// Day is a calendar date formatted as YYYY-MM-DD. Lexical order equals date order.
type Day string

// Parse validates s as a calendar day.
func Parse(s string) (Day, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return "", fmt.Errorf("parse day %q: %w", s, err)
	}
	return Day(t.Format(Layout)), nil
}

// Of returns the day t falls on in loc.
func Of(t time.Time, loc *time.Location) Day {
	return Day(t.In(loc).Format(Layout))
}

// Today returns the current day in loc according to clock.
func Today(clock clockwork.Clock, loc *time.Location) Day {
	return Of(clock.Now(), loc)
}

func (d Day) String() string { return string(d) }

func (d Day) time() time.Time {
	t, _ := time.Parse(Layout, string(d))
	return t
}

// AddDays returns the day n days after d (n may be negative).
func (d Day) AddDays(n int) Day {
	return Day(d.time().AddDate(0, 0, n).Format(Layout))
}

// Prev returns the day before d.
func (d Day) Prev() Day { return d.AddDays(-1) }

// DaysUntil returns the number of calendar days from d to other.
func (d Day) DaysUntil(other Day) int {
	return int(other.time().Sub(d.time()).Hours() / 24)
}

func (d Day) Before(other Day) bool { return d < other }
func (d Day) After(other Day) bool  { return d > other }
