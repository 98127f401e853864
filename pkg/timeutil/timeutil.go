// Package timeutil provides timezone utilities for the studio's local time.
// Calendar dates (payments, roll calls, enrollment) are carried as midnight in
// the studio location, Europe/Madrid by default.
package timeutil

import (
	"fmt"
	"sync"
	"time"

	// Embedded zone database, so the studio zone resolves in scratch images.
	_ "time/tzdata"
)

// DefaultLocationName is the studio timezone unless configured otherwise.
const DefaultLocationName = "Europe/Madrid"

var (
	locMu sync.RWMutex
	loc   = mustLoad(DefaultLocationName)
)

func mustLoad(name string) *time.Location {
	l, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return l
}

// SetLocation changes the studio timezone.
func SetLocation(name string) error {
	l, err := time.LoadLocation(name)
	if err != nil {
		return fmt.Errorf("load location %q: %w", name, err)
	}
	locMu.Lock()
	loc = l
	locMu.Unlock()
	return nil
}

// Location returns the studio timezone.
func Location() *time.Location {
	locMu.RLock()
	defer locMu.RUnlock()
	return loc
}

// Now returns the current time in the studio timezone.
func Now() time.Time {
	return time.Now().In(Location())
}

// Today returns the current calendar date (midnight) in the studio timezone.
func Today() time.Time {
	return StartOfDay(time.Now())
}

// Local converts a time to the studio timezone.
func Local(t time.Time) time.Time {
	return t.In(Location())
}

// Date creates a calendar date in the studio timezone.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, Location())
}

// StartOfDay returns midnight of the day t falls on, in the studio timezone.
func StartOfDay(t time.Time) time.Time {
	l := Local(t)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, l.Location())
}

// StartOfMonth returns the first day of the month t falls in.
func StartOfMonth(t time.Time) time.Time {
	l := Local(t)
	return time.Date(l.Year(), l.Month(), 1, 0, 0, 0, 0, l.Location())
}

// StartOfNextMonth returns the first day of the following month. Useful as an
// exclusive upper bound.
func StartOfNextMonth(t time.Time) time.Time {
	return StartOfMonth(t).AddDate(0, 1, 0)
}

// StartOfYear returns January 1st of the given year.
func StartOfYear(year int) time.Time {
	return Date(year, time.January, 1)
}

// StartOfWeek returns Monday 00:00 of the week t falls in.
func StartOfWeek(t time.Time) time.Time {
	l := Local(t)
	weekday := int(l.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	return StartOfDay(l.AddDate(0, 0, -(weekday - 1)))
}

// IsSameDay checks if two times fall on the same studio calendar day.
func IsSameDay(t1, t2 time.Time) bool {
	a, b := Local(t1), Local(t2)
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// DaysBetween returns the absolute number of calendar days between two times.
func DaysBetween(t1, t2 time.Time) int {
	a := StartOfDay(t1)
	b := StartOfDay(t2)
	hours := b.Sub(a).Hours()
	days := int((hours + 12) / 24) // DST days are 23h or 25h
	if days < 0 {
		days = -days
	}
	return days
}

// Common date/time formats.
const (
	// FormatDate is the wire date format (YYYY-MM-DD).
	FormatDate = "2006-01-02"
	// FormatTime is the time-of-day format (HH:MM).
	FormatTime = "15:04"
	// FormatSpanishDate is the format staff read (DD/MM/YYYY).
	FormatSpanishDate = "02/01/2006"
)

// ParseDate parses a YYYY-MM-DD date in the studio timezone.
func ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(FormatDate, value, Location())
}

// FormatDateStr formats a time as YYYY-MM-DD in the studio timezone.
func FormatDateStr(t time.Time) string {
	return Local(t).Format(FormatDate)
}

// FormatSpanish formats a time as DD/MM/YYYY in the studio timezone.
func FormatSpanish(t time.Time) string {
	return Local(t).Format(FormatSpanishDate)
}

// Notification timing helpers.

const (
	safeNotificationStart = 9
	safeNotificationEnd   = 21
)

// IsSafeNotificationTime reports whether it is appropriate to message
// students (09:00-21:00 studio time).
func IsSafeNotificationTime(t time.Time) bool {
	hour := Local(t).Hour()
	return hour >= safeNotificationStart && hour < safeNotificationEnd
}

// NextSafeNotificationTime returns t itself when inside the window, otherwise
// the next 09:00.
func NextSafeNotificationTime(t time.Time) time.Time {
	l := Local(t)
	switch {
	case l.Hour() < safeNotificationStart:
		return time.Date(l.Year(), l.Month(), l.Day(), safeNotificationStart, 0, 0, 0, l.Location())
	case l.Hour() >= safeNotificationEnd:
		next := l.AddDate(0, 0, 1)
		return time.Date(next.Year(), next.Month(), next.Day(), safeNotificationStart, 0, 0, 0, l.Location())
	default:
		return l
	}
}
