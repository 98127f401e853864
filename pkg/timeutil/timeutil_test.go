package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDateUsesStudioLocation(t *testing.T) {
	d, err := ParseDate("2024-03-01")
	require.NoError(t, err)

	assert.Equal(t, DefaultLocationName, d.Location().String())
	assert.Equal(t, 0, d.Hour())
	assert.Equal(t, "2024-03-01", FormatDateStr(d))
	assert.Equal(t, "01/03/2024", FormatSpanish(d))

	_, err = ParseDate("01/03/2024")
	assert.Error(t, err)
}

func TestStartOfDayCrossesMidnightInStudioZone(t *testing.T) {
	// 23:30 UTC on 31 March 2024 is already 1 April in Madrid (CEST, UTC+2).
	utc := time.Date(2024, time.March, 31, 23, 30, 0, 0, time.UTC)

	day := StartOfDay(utc)
	assert.Equal(t, time.April, day.Month())
	assert.Equal(t, 1, day.Day())
	assert.Equal(t, time.April, StartOfMonth(utc).Month())
	assert.Equal(t, time.May, StartOfNextMonth(utc).Month())
}

func TestDaysBetweenAcrossDST(t *testing.T) {
	assert.Equal(t, 2, DaysBetween(Date(2024, time.March, 30), Date(2024, time.April, 1)))
	assert.Equal(t, 2, DaysBetween(Date(2024, time.April, 1), Date(2024, time.March, 30)))
}

func TestStartOfWeek(t *testing.T) {
	sunday := Date(2024, time.May, 12)
	assert.Equal(t, Date(2024, time.May, 6), StartOfWeek(sunday))
	assert.True(t, IsSameDay(StartOfWeek(Date(2024, time.May, 6)), Date(2024, time.May, 6)))
}

func TestNotificationWindow(t *testing.T) {
	early := time.Date(2024, time.May, 6, 7, 0, 0, 0, Location())
	late := time.Date(2024, time.May, 6, 22, 0, 0, 0, Location())
	noon := time.Date(2024, time.May, 6, 12, 0, 0, 0, Location())

	assert.False(t, IsSafeNotificationTime(early))
	assert.True(t, IsSafeNotificationTime(noon))
	assert.Equal(t, 9, NextSafeNotificationTime(early).Hour())
	assert.Equal(t, 7, NextSafeNotificationTime(late).Day())
	assert.Equal(t, noon, NextSafeNotificationTime(noon))
}

func TestSetLocation(t *testing.T) {
	require.Error(t, SetLocation("Mars/Olympus"))
	assert.Equal(t, DefaultLocationName, Location().String())
}
