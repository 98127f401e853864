package postgres

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/LitoFortuna/XDS-ERP-sub000/pkg/timeutil"
)

// rowScanner is satisfied by pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// dateArg renders a calendar date as YYYY-MM-DD in the studio location, so
// a DATE column never shifts a day because of the session time zone.
func dateArg(t time.Time) string {
	return timeutil.FormatDateStr(t)
}

// nullableDateArg is dateArg for optional dates.
func nullableDateArg(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return dateArg(*t)
}

// studioDate converts a scanned DATE (UTC midnight) to studio midnight.
func studioDate(t time.Time) time.Time {
	return timeutil.Date(t.Year(), t.Month(), t.Day())
}

func nullableStudioDate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := studioDate(*t)
	return &d
}

// parseAmount parses a NUMERIC selected as text.
func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return d, nil
}
