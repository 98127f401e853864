// Package query contains read operations (CQRS - Queries). Every query loads
// a full snapshot from the repositories and runs the pure domain computation
// on it; nothing derived is cached.
package query

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/LitoFortuna/XDS-ERP-sub000/pkg/timeutil"
)

// LinkSettings controls the click-to-chat links attached to views that list
// students to contact.
type LinkSettings struct {
	StudioName         string
	DefaultCountryCode string
}

// DefaultLinkSettings returns the settings used when none are configured.
func DefaultLinkSettings() LinkSettings {
	return LinkSettings{StudioName: "XDS", DefaultCountryCode: "34"}
}

// Clock returns the current time. Handlers take one so tests can pin "today".
type Clock func() time.Time

func (c Clock) today() time.Time {
	if c == nil {
		return timeutil.Today()
	}
	return timeutil.StartOfDay(c())
}

// referenceDay returns date normalized to studio midnight, or today when zero.
func referenceDay(date time.Time, clock Clock) time.Time {
	if date.IsZero() {
		return clock.today()
	}
	return timeutil.StartOfDay(date)
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func dateString(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return timeutil.FormatDateStr(t)
}
