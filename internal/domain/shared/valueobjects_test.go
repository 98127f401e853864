package shared

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYearMonth(t *testing.T) {
	ym := YearMonthOf(time.Date(2024, time.December, 31, 23, 0, 0, 0, time.UTC))

	assert.Equal(t, "2024-12", ym.String())
	assert.Equal(t, 11, ym.Index())
	assert.Equal(t, YearMonth{Year: 2025, Month: time.January}, ym.Next())
	assert.True(t, ym.Before(ym.Next()))
	assert.False(t, ym.Next().Before(ym))
	assert.True(t, ym.Contains(time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, ym.Contains(time.Date(2023, time.December, 1, 0, 0, 0, 0, time.UTC)))

	assert.Equal(t, "diciembre 2024", ym.Name())
	assert.Equal(t, "mayo", MonthName(time.May))
	assert.Empty(t, MonthName(time.Month(13)))

	parsed, err := ParseYearMonth("2024-03")
	require.NoError(t, err)
	assert.Equal(t, YearMonth{Year: 2024, Month: time.March}, parsed)

	_, err = ParseYearMonth("March 2024")
	assert.True(t, IsValidation(err))
}

func TestPhoneDigits(t *testing.T) {
	tests := []struct {
		name  string
		phone Phone
		want  string
	}{
		{"local number gets country code", "612 34 56 78", "34612345678"},
		{"plus prefix kept as is", "+44 7700 900123", "447700900123"},
		{"double zero prefix", "0034 612345678", "34612345678"},
		{"empty", "  ", ""},
		{"letters only", "n/a", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.phone.Digits("34"))
		})
	}

	assert.True(t, Phone("600000000").IsPresent())
	assert.False(t, Phone("").IsPresent())
}

func TestDomainErrorMatching(t *testing.T) {
	wrapped := WrapError("billing", "Record", ErrInvalidInput, "bad payload", errors.New("boom"))

	assert.True(t, errors.Is(ErrStudentNotFound, ErrNotFound))
	assert.True(t, IsNotFound(ErrClassNotFound))
	assert.True(t, IsValidation(ErrNonPositiveAmount))
	assert.True(t, IsValidation(wrapped))
	assert.False(t, IsValidation(ErrStudentNotFound))
	assert.Contains(t, wrapped.Error(), "billing.Record: bad payload: boom")
}
