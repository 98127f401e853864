package attendance

import (
	"sort"
	"strings"
	"time"

	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/shared"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/student"
)

// AlertThreshold is the streak a student must exceed to be flagged.
const AlertThreshold = 3

// StreakResult is the consecutive-absence count of one student.
type StreakResult struct {
	StudentID string

	// Streak counts the most recent records the student missed, pooled
	// across all enrolled classes, up to the first attended one.
	Streak int

	// LastKnownDate is the date of the most recent record examined. Zero when
	// the student has no records.
	LastKnownDate time.Time

	// Tracked is false for inactive students, who are never flagged.
	Tracked bool
}

// Alert reports whether the streak is long enough to warn about.
func (r StreakResult) Alert() bool {
	return r.Tracked && r.Streak > AlertThreshold
}

// DetectStreak computes the student's current absence streak.
//
// Records of all enrolled classes are merged and walked from the most recent
// one. Each record without the student counts as an absence; the walk stops
// at the first record where the student was present.
func DetectStreak(s *student.Student, records []Record) StreakResult {
	res := StreakResult{StudentID: s.ID}
	if !s.Active {
		return res
	}
	res.Tracked = true

	own := make([]*Record, 0)
	for i := range records {
		if s.EnrolledIn(records[i].ClassID) {
			own = append(own, &records[i])
		}
	}
	return walk(res, s.ID, own)
}

func walk(res StreakResult, studentID string, own []*Record) StreakResult {
	if len(own) == 0 {
		return res
	}

	sort.SliceStable(own, func(i, j int) bool {
		if !own[i].Date.Equal(own[j].Date) {
			return own[i].Date.After(own[j].Date)
		}
		return own[i].ClassID < own[j].ClassID
	})

	res.LastKnownDate = own[0].Date
	for _, r := range own {
		if r.WasPresent(studentID) {
			break
		}
		res.Streak++
	}
	return res
}

// AbsenceAlert is a card of the attendance view.
type AbsenceAlert struct {
	StudentID     string
	Name          string
	Phone         shared.Phone
	Streak        int
	LastKnownDate time.Time
}

// AbsenceAlerts returns the active students whose streak exceeds the
// threshold, sorted by streak descending, then by name.
func AbsenceAlerts(students []*student.Student, records []Record) []AbsenceAlert {
	byClass := make(map[string][]*Record)
	for i := range records {
		byClass[records[i].ClassID] = append(byClass[records[i].ClassID], &records[i])
	}

	alerts := []AbsenceAlert{}
	for _, s := range students {
		if s == nil || !s.Active {
			continue
		}

		var own []*Record
		for _, classID := range s.EnrolledClassIDs.IDs() {
			own = append(own, byClass[classID]...)
		}

		res := walk(StreakResult{StudentID: s.ID, Tracked: true}, s.ID, own)
		if !res.Alert() {
			continue
		}
		alerts = append(alerts, AbsenceAlert{
			StudentID:     s.ID,
			Name:          s.Name,
			Phone:         s.Phone,
			Streak:        res.Streak,
			LastKnownDate: res.LastKnownDate,
		})
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		if alerts[i].Streak != alerts[j].Streak {
			return alerts[i].Streak > alerts[j].Streak
		}
		return strings.ToLower(alerts[i].Name) < strings.ToLower(alerts[j].Name)
	})
	return alerts
}
