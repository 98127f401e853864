package attendance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/student"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newStudent(t *testing.T, id, name string, classIDs ...string) *student.Student {
	t.Helper()
	s, err := student.NewStudent(student.NewStudentParams{ID: id, Name: name, ClassIDs: classIDs})
	require.NoError(t, err)
	return s
}

func rec(classID string, date time.Time, present ...string) Record {
	r, err := NewRecord(NewRecordParams{
		ID:         classID + date.Format("20060102"),
		ClassID:    classID,
		Date:       date,
		PresentIDs: present,
	})
	if err != nil {
		panic(err)
	}
	return *r
}

func TestDetectStreak_BreaksOnMostRecentPresence(t *testing.T) {
	s := newStudent(t, "s1", "Ana", "salsa")
	// Most recent first: present, absent, absent.
	records := []Record{
		rec("salsa", day(2024, time.May, 6)),
		rec("salsa", day(2024, time.May, 13)),
		rec("salsa", day(2024, time.May, 20), "s1"),
	}

	res := DetectStreak(s, records)

	assert.Equal(t, 0, res.Streak)
	assert.Equal(t, day(2024, time.May, 20), res.LastKnownDate)
	assert.True(t, res.Tracked)
	assert.False(t, res.Alert())
}

func TestDetectStreak_CountsUntilFirstPresence(t *testing.T) {
	s := newStudent(t, "s1", "Ana", "salsa")
	// Most recent first: absent, absent, absent, present.
	records := []Record{
		rec("salsa", day(2024, time.May, 1), "s1"),
		rec("salsa", day(2024, time.May, 22)),
		rec("salsa", day(2024, time.May, 8), "other"),
		rec("salsa", day(2024, time.May, 15)),
	}

	res := DetectStreak(s, records)

	assert.Equal(t, 3, res.Streak)
	assert.Equal(t, day(2024, time.May, 22), res.LastKnownDate)
	assert.False(t, res.Alert(), "three absences are not enough")
}

func TestDetectStreak_NoRecords(t *testing.T) {
	noClasses := newStudent(t, "s1", "Ana")
	withClass := newStudent(t, "s2", "Bea", "salsa")
	records := []Record{rec("bachata", day(2024, time.May, 1))}

	for _, s := range []*student.Student{noClasses, withClass} {
		res := DetectStreak(s, records)
		assert.Equal(t, 0, res.Streak)
		assert.True(t, res.LastKnownDate.IsZero())
		assert.False(t, res.Alert())
	}
}

func TestDetectStreak_InactiveStudentIsNotTracked(t *testing.T) {
	s := newStudent(t, "s1", "Ana", "salsa")
	s.Deactivate()
	records := []Record{
		rec("salsa", day(2024, time.May, 1)),
		rec("salsa", day(2024, time.May, 2)),
		rec("salsa", day(2024, time.May, 3)),
		rec("salsa", day(2024, time.May, 4)),
		rec("salsa", day(2024, time.May, 5)),
	}

	res := DetectStreak(s, records)

	assert.False(t, res.Tracked)
	assert.Equal(t, 0, res.Streak)
	assert.False(t, res.Alert())
}

func TestDetectStreak_PoolsAcrossClasses(t *testing.T) {
	s := newStudent(t, "s1", "Ana", "salsa", "bachata")

	// Attends salsa every Monday but skips bachata on Wednesdays.
	records := []Record{
		rec("salsa", day(2024, time.May, 6), "s1"),
		rec("bachata", day(2024, time.May, 8)),
		rec("bachata", day(2024, time.May, 15)),
		rec("salsa", day(2024, time.May, 13), "s1"),
	}
	res := DetectStreak(s, records)
	assert.Equal(t, 1, res.Streak, "only the bachata session after the last salsa counts")
	assert.Equal(t, day(2024, time.May, 15), res.LastKnownDate)

	// Same day in two classes: ties are ordered by class id.
	sameDay := []Record{
		rec("bachata", day(2024, time.May, 20)),
		rec("salsa", day(2024, time.May, 20), "s1"),
	}
	assert.Equal(t, 1, DetectStreak(s, sameDay).Streak)
}

func TestAbsenceAlerts(t *testing.T) {
	ana := newStudent(t, "a", "Ana", "salsa")
	bea := newStudent(t, "b", "Bea", "salsa", "bachata")
	carla := newStudent(t, "c", "Carla", "bachata")
	dani := newStudent(t, "d", "Dani", "salsa")
	dani.Deactivate()
	eva := newStudent(t, "e", "Eva", "salsa")

	var records []Record
	for i := 0; i < 5; i++ {
		// Eva always attends salsa.
		records = append(records, rec("salsa", day(2024, time.May, 1+i*7), "e"))
		// Nobody attends bachata.
		records = append(records, rec("bachata", day(2024, time.May, 3+i*7)))
	}

	alerts := AbsenceAlerts([]*student.Student{eva, dani, carla, bea, ana, nil}, records)

	require.Len(t, alerts, 3)
	// Bea: 10 pooled absences; Ana and Carla: 5 each, ordered by name.
	assert.Equal(t, "b", alerts[0].StudentID)
	assert.Equal(t, 10, alerts[0].Streak)
	assert.Equal(t, "Ana", alerts[1].Name)
	assert.Equal(t, 5, alerts[1].Streak)
	assert.Equal(t, "Carla", alerts[2].Name)
	assert.Equal(t, day(2024, time.May, 31), alerts[2].LastKnownDate)

	for _, a := range alerts {
		assert.Greater(t, a.Streak, AlertThreshold)
	}
}

func TestAbsenceAlerts_Empty(t *testing.T) {
	alerts := AbsenceAlerts([]*student.Student{newStudent(t, "a", "Ana", "salsa")}, nil)
	assert.NotNil(t, alerts)
	assert.Empty(t, alerts)
}

func TestAbsenceAlerts_MatchesDetectStreak(t *testing.T) {
	s := newStudent(t, "a", "Ana", "salsa", "bachata")
	records := []Record{
		rec("salsa", day(2024, time.May, 1), "a"),
		rec("bachata", day(2024, time.May, 2)),
		rec("salsa", day(2024, time.May, 3)),
		rec("bachata", day(2024, time.May, 4)),
		rec("salsa", day(2024, time.May, 5)),
		rec("kizomba", day(2024, time.May, 6)),
	}

	alerts := AbsenceAlerts([]*student.Student{s}, records)
	res := DetectStreak(s, records)

	require.Len(t, alerts, 1)
	assert.Equal(t, res.Streak, alerts[0].Streak)
	assert.Equal(t, 4, res.Streak)
	assert.Equal(t, day(2024, time.May, 5), res.LastKnownDate)
}
