package attendance

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/shared"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/student"
)

func TestParseWeekday(t *testing.T) {
	tests := []struct {
		in   string
		want time.Weekday
	}{
		{"lunes", time.Monday},
		{"Monday", time.Monday},
		{"LUN", time.Monday},
		{"Miércoles", time.Wednesday},
		{"miercoles", time.Wednesday},
		{"mié.", time.Wednesday},
		{"wed", time.Wednesday},
		{"Sábado", time.Saturday},
		{" domingo ", time.Sunday},
		{"Sun", time.Sunday},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseWeekday(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseWeekday("funday")
	assert.ErrorIs(t, err, shared.ErrInvalidWeekday)
	assert.True(t, shared.IsValidation(err))
}

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("19:30")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay(19*60+30), tod)
	assert.Equal(t, "19:30", tod.String())

	_, err = ParseTimeOfDay("7pm")
	assert.ErrorIs(t, err, shared.ErrInvalidTimeOfDay)
}

func mustClass(t *testing.T, id, name string, start, end string, days ...string) *DanceClass {
	t.Helper()
	c, err := NewDanceClass(NewClassParams{
		ID:         id,
		Name:       name,
		Days:       days,
		StartTime:  start,
		EndTime:    end,
		MonthlyFee: decimal.NewFromInt(35),
	})
	require.NoError(t, err)
	return c
}

func TestNewDanceClass(t *testing.T) {
	c := mustClass(t, "c1", "Salsa", "19:00", "20:30", "jueves", "Lunes", "monday")

	assert.Equal(t, []time.Weekday{time.Monday, time.Thursday}, c.Days)
	assert.Equal(t, 90*time.Minute, c.Duration())
	assert.Equal(t, []string{"lunes", "jueves"}, c.DayNames())

	_, err := NewDanceClass(NewClassParams{ID: "c2", Name: "Bachata", StartTime: "20:00", EndTime: "19:00"})
	assert.True(t, shared.IsValidation(err))

	_, err = NewDanceClass(NewClassParams{ID: "c2", Name: "Bachata", Days: []string{"someday"}, StartTime: "19:00", EndTime: "20:00"})
	assert.ErrorIs(t, err, shared.ErrInvalidWeekday)

	_, err = NewDanceClass(NewClassParams{ID: "c2", Name: "Bachata", StartTime: "19:00", EndTime: "20:00", Capacity: -1})
	assert.ErrorIs(t, err, shared.ErrNegativeValue)
}

func TestOccursOn(t *testing.T) {
	c := mustClass(t, "c1", "Salsa", "19:00", "20:00", "martes", "jueves")

	assert.True(t, c.OccursOn(day(2024, time.May, 7)))  // Tuesday
	assert.False(t, c.OccursOn(day(2024, time.May, 8))) // Wednesday
	assert.True(t, c.OccursOn(day(2024, time.May, 9)))  // Thursday
}

func TestWeeklyGrid(t *testing.T) {
	late := mustClass(t, "c1", "Salsa", "21:00", "22:00", "lunes", "domingo")
	early := mustClass(t, "c2", "Ballet", "17:00", "18:00", "lunes")
	tie := mustClass(t, "c3", "Bachata", "21:00", "22:00", "lunes")

	grid := WeeklyGrid([]*DanceClass{late, early, tie, nil})

	require.Len(t, grid, 7)
	assert.Equal(t, time.Monday, grid[0].Weekday)
	assert.Equal(t, time.Sunday, grid[6].Weekday)

	require.Len(t, grid[0].Classes, 3)
	assert.Equal(t, "Ballet", grid[0].Classes[0].Name)
	assert.Equal(t, "Bachata", grid[0].Classes[1].Name)
	assert.Equal(t, "Salsa", grid[0].Classes[2].Name)
	assert.Empty(t, grid[1].Classes)
	assert.Len(t, grid[6].Classes, 1)

	monday := ClassesOn([]*DanceClass{late, early}, day(2024, time.May, 6))
	require.Len(t, monday, 2)
	assert.Equal(t, "c2", monday[0].ID)
}

func TestOccupancy(t *testing.T) {
	c := mustClass(t, "salsa", "Salsa", "19:00", "20:00", "lunes")
	c.Capacity = 2

	a, _ := student.NewStudent(student.NewStudentParams{ID: "a", Name: "Ana", ClassIDs: []string{"salsa"}})
	b, _ := student.NewStudent(student.NewStudentParams{ID: "b", Name: "Bea", ClassIDs: []string{"salsa"}})
	inactive, _ := student.NewStudent(student.NewStudentParams{ID: "c", Name: "Carla", ClassIDs: []string{"salsa"}})
	inactive.Deactivate()
	other, _ := student.NewStudent(student.NewStudentParams{ID: "d", Name: "Dani", ClassIDs: []string{"bachata"}})

	info := Occupancy(c, []*student.Student{a, inactive, other})
	assert.Equal(t, 1, info.Enrolled)
	assert.False(t, info.Full)
	assert.Equal(t, 1, info.Available())

	info = Occupancy(c, []*student.Student{a, b})
	assert.True(t, info.Full)
	assert.Equal(t, 0, info.Available())

	c.Capacity = 0
	info = Occupancy(c, []*student.Student{a, b})
	assert.False(t, info.Full)
	assert.Equal(t, -1, info.Available())
}

func TestRecord(t *testing.T) {
	r, err := NewRecord(NewRecordParams{ID: "r1", ClassID: "salsa", Date: day(2024, time.May, 6), PresentIDs: []string{"b", "a", " ", "a"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, r.PresentIDs())
	assert.True(t, r.WasPresent("a"))

	r.ReplacePresent([]string{"c"})
	assert.False(t, r.WasPresent("a"))
	assert.True(t, r.WasPresent("c"))

	other := rec("salsa", time.Date(2024, time.May, 6, 18, 0, 0, 0, time.UTC))
	assert.True(t, r.SameSession(&other))

	_, err = NewRecord(NewRecordParams{ID: "r2", ClassID: "salsa"})
	assert.ErrorIs(t, err, shared.ErrMissingRecordDate)
}
