package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/shared"
)

func TestIsMonthlyFee(t *testing.T) {
	tests := []struct {
		concept string
		want    bool
	}{
		{"cuota", true},
		{"Cuota marzo", true},
		{"PAGO CUOTA TRIMESTRAL", true},
		{"matrícula", false},
		{"camiseta", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.concept, func(t *testing.T) {
			assert.Equal(t, tt.want, IsMonthlyFee(tt.concept))
		})
	}
}

func TestQuarterOf(t *testing.T) {
	assert.Equal(t, 1, QuarterOf(day(2024, time.March, 31)))
	assert.Equal(t, 2, QuarterOf(day(2024, time.April, 1)))
	assert.Equal(t, 4, QuarterOf(day(2024, time.December, 31)))
}

func TestSplitQuarter(t *testing.T) {
	payments := []Payment{
		pay("a", day(2024, time.April, 1), "19", "Cuota abril"),
		pay("a", day(2024, time.April, 1), "25", "camiseta"),
		pay("b", day(2024, time.May, 3), "30", "cuota"),
		pay("a", day(2024, time.June, 30), "19", "cuota junio"),
		pay("b", day(2024, time.July, 1), "30", "cuota"),
		pay("b", day(2023, time.May, 3), "30", "cuota"),
	}

	qs, err := SplitQuarter(payments, 2024, 2)
	require.NoError(t, err)

	assert.Equal(t, time.April, qs.Months[0].Month)
	assertMoney(t, "19", qs.Months[0].Fees)
	assertMoney(t, "25", qs.Months[0].Other)
	assertMoney(t, "44", qs.Months[0].Total())
	assertMoney(t, "30", qs.Months[1].Fees)
	assertMoney(t, "19", qs.Months[2].Fees)

	assertMoney(t, "68", qs.Fees)
	assertMoney(t, "25", qs.Other)
	assertMoney(t, "93", qs.Total())
	assert.Equal(t, 4, qs.Payments)

	require.Len(t, qs.Students, 2)
	assert.Equal(t, "a", qs.Students[0].StudentID)
	assertMoney(t, "38", qs.Students[0].Fees)
	assertMoney(t, "25", qs.Students[0].Other)
	assert.Equal(t, 3, qs.Students[0].Payments)
	assertMoney(t, "30", qs.Students[1].Total())
}

func TestSplitQuarter_InvalidQuarter(t *testing.T) {
	for _, q := range []int{0, 5, -1} {
		_, err := SplitQuarter(nil, 2024, q)
		assert.ErrorIs(t, err, shared.ErrInvalidQuarter)
		assert.True(t, shared.IsValidation(err))
	}
}

func TestSplitQuarter_Empty(t *testing.T) {
	qs, err := SplitQuarter(nil, 2024, 4)
	require.NoError(t, err)
	assert.Equal(t, time.October, qs.Months[0].Month)
	assert.Equal(t, time.December, qs.Months[2].Month)
	assert.True(t, qs.Total().IsZero())
	assert.Empty(t, qs.Students)
}
