// Package attendance contains the class schedule, roll-call records and the
// absence streak detector.
package attendance

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/shared"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// WEEKDAYS
// ══════════════════════════════════════════════════════════════════════════════

var weekdayNames = map[string]time.Weekday{
	"lunes": time.Monday, "lun": time.Monday, "monday": time.Monday, "mon": time.Monday,
	"martes": time.Tuesday, "mar": time.Tuesday, "tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday,
	"miercoles": time.Wednesday, "mie": time.Wednesday, "mier": time.Wednesday, "wednesday": time.Wednesday, "wed": time.Wednesday,
	"jueves": time.Thursday, "jue": time.Thursday, "thursday": time.Thursday, "thu": time.Thursday, "thurs": time.Thursday,
	"viernes": time.Friday, "vie": time.Friday, "friday": time.Friday, "fri": time.Friday,
	"sabado": time.Saturday, "sab": time.Saturday, "saturday": time.Saturday, "sat": time.Saturday,
	"domingo": time.Sunday, "dom": time.Sunday, "sunday": time.Sunday, "sun": time.Sunday,
}

var spanishWeekdays = [...]string{"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado"}

// foldName lowercases s and strips diacritics ("Miércoles" -> "miercoles").
func foldName(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.Trim(strings.TrimSpace(folded), "."))
}

// ParseWeekday accepts Spanish or English weekday names and their common
// abbreviations, ignoring case and accents.
func ParseWeekday(name string) (time.Weekday, error) {
	if d, ok := weekdayNames[foldName(name)]; ok {
		return d, nil
	}
	return 0, shared.WrapError("attendance", "ParseWeekday", shared.ErrInvalidWeekday,
		"unknown weekday name", fmt.Errorf("%q", name))
}

// WeekdayName returns the Spanish name of a weekday.
func WeekdayName(d time.Weekday) string {
	return spanishWeekdays[d%7]
}

// isoIndex maps Monday to 0 and Sunday to 6.
func isoIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// ══════════════════════════════════════════════════════════════════════════════
// TIME OF DAY
// ══════════════════════════════════════════════════════════════════════════════

// TimeOfDay is a wall-clock time without date, in minutes since midnight.
type TimeOfDay int

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, shared.WrapError("attendance", "ParseTime", shared.ErrInvalidTimeOfDay, "time of day must be HH:MM", err)
	}
	return TimeOfDay(t.Hour()*60 + t.Minute()), nil
}

// String formats the time as "HH:MM".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// ══════════════════════════════════════════════════════════════════════════════
// DANCE CLASS
// ══════════════════════════════════════════════════════════════════════════════

// DanceClass is a weekly recurring class. Occurrences on concrete dates are
// implied by Days and never stored.
type DanceClass struct {
	ID         string
	Name       string
	Instructor string

	// Days is sorted Monday first, without duplicates.
	Days []time.Weekday

	StartTime TimeOfDay
	EndTime   TimeOfDay

	// Capacity of 0 means unlimited.
	Capacity int

	// MonthlyFee is the reference price. Students carry their own fee.
	MonthlyFee decimal.Decimal

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewClassParams holds the input for creating a class.
type NewClassParams struct {
	ID         string
	Name       string
	Instructor string
	Days       []string
	StartTime  string
	EndTime    string
	Capacity   int
	MonthlyFee decimal.Decimal
}

// NewDanceClass validates and creates a class.
func NewDanceClass(params NewClassParams) (*DanceClass, error) {
	if strings.TrimSpace(params.ID) == "" {
		return nil, shared.NewDomainError("attendance", "CreateClass", shared.ErrInvalidID, "class id is required")
	}
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, shared.NewDomainError("attendance", "CreateClass", shared.ErrEmptyValue, "class name is required")
	}
	if params.Capacity < 0 {
		return nil, shared.NewDomainError("attendance", "CreateClass", shared.ErrNegativeValue, "capacity cannot be negative")
	}
	if params.MonthlyFee.IsNegative() {
		return nil, shared.ErrNegativeFee
	}

	days := make([]time.Weekday, 0, len(params.Days))
	seen := make(map[time.Weekday]bool)
	for _, raw := range params.Days {
		d, err := ParseWeekday(raw)
		if err != nil {
			return nil, err
		}
		if !seen[d] {
			seen[d] = true
			days = append(days, d)
		}
	}
	sort.Slice(days, func(i, j int) bool { return isoIndex(days[i]) < isoIndex(days[j]) })

	start, err := ParseTimeOfDay(params.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := ParseTimeOfDay(params.EndTime)
	if err != nil {
		return nil, err
	}
	if end <= start {
		return nil, shared.NewDomainError("attendance", "CreateClass", shared.ErrValueOutOfRange, "class must end after it starts")
	}

	now := time.Now().UTC()
	return &DanceClass{
		ID:         params.ID,
		Name:       name,
		Instructor: strings.TrimSpace(params.Instructor),
		Days:       days,
		StartTime:  start,
		EndTime:    end,
		Capacity:   params.Capacity,
		MonthlyFee: params.MonthlyFee,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// OccursOn reports whether the class takes place on the date's weekday.
func (c *DanceClass) OccursOn(date time.Time) bool {
	wd := date.Weekday()
	for _, d := range c.Days {
		if d == wd {
			return true
		}
	}
	return false
}

// Duration returns the length of a session.
func (c *DanceClass) Duration() time.Duration {
	return time.Duration(c.EndTime-c.StartTime) * time.Minute
}

// DayNames returns the Spanish names of the class days.
func (c *DanceClass) DayNames() []string {
	names := make([]string, 0, len(c.Days))
	for _, d := range c.Days {
		names = append(names, WeekdayName(d))
	}
	return names
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULE VIEWS
// ══════════════════════════════════════════════════════════════════════════════

// GridDay is one column of the weekly schedule.
type GridDay struct {
	Weekday time.Weekday
	Classes []*DanceClass
}

// WeeklyGrid groups classes by weekday, Monday first, each day sorted by start
// time then name. All seven days are returned.
func WeeklyGrid(classes []*DanceClass) []GridDay {
	grid := make([]GridDay, 7)
	for i := range grid {
		grid[i] = GridDay{Weekday: time.Weekday((i + 1) % 7), Classes: []*DanceClass{}}
	}

	for _, c := range classes {
		if c == nil {
			continue
		}
		for _, d := range c.Days {
			idx := isoIndex(d)
			grid[idx].Classes = append(grid[idx].Classes, c)
		}
	}

	for i := range grid {
		day := grid[i].Classes
		sort.SliceStable(day, func(a, b int) bool {
			if day[a].StartTime != day[b].StartTime {
				return day[a].StartTime < day[b].StartTime
			}
			return day[a].Name < day[b].Name
		})
	}
	return grid
}

// ClassesOn returns the classes taking place on a date, sorted by start time.
func ClassesOn(classes []*DanceClass, date time.Time) []*DanceClass {
	return WeeklyGrid(classes)[isoIndex(date.Weekday())].Classes
}

// OccupancyInfo describes how full a class is.
type OccupancyInfo struct {
	ClassID  string
	Enrolled int
	Capacity int
	Full     bool
}

// Available returns the free places, or -1 when the class has no limit.
func (o OccupancyInfo) Available() int {
	if o.Capacity == 0 {
		return -1
	}
	if free := o.Capacity - o.Enrolled; free > 0 {
		return free
	}
	return 0
}

// Occupancy counts the active students enrolled in a class.
func Occupancy(c *DanceClass, students []*student.Student) OccupancyInfo {
	info := OccupancyInfo{ClassID: c.ID, Capacity: c.Capacity}
	for _, s := range students {
		if s != nil && s.Active && s.EnrolledIn(c.ID) {
			info.Enrolled++
		}
	}
	info.Full = c.Capacity > 0 && info.Enrolled >= c.Capacity
	return info
}
