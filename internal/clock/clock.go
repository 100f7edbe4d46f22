// Package clock provides the bot's notion of "now" in a single fixed
// UTC-offset zone. All date matching (daily counters, reminder times,
// broadcast dedup) goes through this package so the offset is applied in
// exactly one place.
package clock

import (
	"fmt"
	"time"
)

const (
	// DateLayout is the day key used by daily counters and broadcast dedup.
	DateLayout = "2006-01-02"
	// TimeLayout is the minute key matched against schedule times.
	TimeLayout = "15:04"
)

// Clock computes dates and times in a fixed UTC offset.
// The zero value behaves as UTC.
type Clock struct {
	loc *time.Location

	// now is overridable for tests; nil means time.Now.
	now func() time.Time
}

// New returns a Clock for the given UTC offset in whole hours
// (e.g. 5 for Tashkent).
func New(offsetHours int) *Clock {
	name := fmt.Sprintf("UTC%+d", offsetHours)
	return &Clock{loc: time.FixedZone(name, offsetHours*3600)}
}

// NewAt returns a Clock whose "now" is frozen at t (converted to the given
// offset). Test helper.
func NewAt(offsetHours int, t time.Time) *Clock {
	c := New(offsetHours)
	c.now = func() time.Time { return t }
	return c
}

// Location returns the fixed-offset location, for cron and formatting.
func (c *Clock) Location() *time.Location {
	if c == nil || c.loc == nil {
		return time.UTC
	}
	return c.loc
}

// Now returns the current time in the configured offset.
func (c *Clock) Now() time.Time {
	if c != nil && c.now != nil {
		return c.now().In(c.Location())
	}
	return time.Now().In(c.Location())
}

// Today returns the current date as "YYYY-MM-DD".
func (c *Clock) Today() string { return c.Now().Format(DateLayout) }

// HHMM returns the current minute as "HH:MM".
func (c *Clock) HHMM() string { return c.Now().Format(TimeLayout) }

// Weekday returns the ISO day of week: 1=Monday .. 7=Sunday.
func (c *Clock) Weekday() int {
	wd := int(c.Now().Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}
