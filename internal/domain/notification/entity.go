// Package notification contains the reminders the studio sends to students:
// monthly fee reminders for debtors and absence alerts.
package notification

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/attendance"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/billing"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// KIND
// ══════════════════════════════════════════════════════════════════════════════

// Kind identifies what a reminder is about.
type Kind string

const (
	// KindFeeReminder is sent to students with outstanding monthly fees.
	KindFeeReminder Kind = "fee_reminder"

	// KindAbsenceAlert is sent to students who keep missing classes.
	KindAbsenceAlert Kind = "absence_alert"
)

// IsValid reports whether the kind is known.
func (k Kind) IsValid() bool {
	return k == KindFeeReminder || k == KindAbsenceAlert
}

// ══════════════════════════════════════════════════════════════════════════════
// REMINDER
// ══════════════════════════════════════════════════════════════════════════════

// Reminder is a message ready to be delivered to one student.
type Reminder struct {
	Kind      Kind
	StudentID string
	Name      string
	Phone     shared.Phone

	// Period is the month the reminder belongs to. At most one reminder of a
	// kind is sent per student and period.
	Period shared.YearMonth

	Message string
}

// DedupeKey identifies the reminder for de-duplication.
func (r *Reminder) DedupeKey() string {
	return fmt.Sprintf("%s:%s:%s", r.Kind, r.StudentID, r.Period)
}

// Link returns the WhatsApp click-to-chat link with the message prefilled.
func (r *Reminder) Link(defaultCountryCode string) string {
	return WhatsAppLink(r.Phone, defaultCountryCode, r.Message)
}

// WhatsAppLink builds a https://wa.me link. It returns an empty string when
// the phone has no digits.
func WhatsAppLink(phone shared.Phone, defaultCountryCode, text string) string {
	digits := phone.Digits(defaultCountryCode)
	if digits == "" {
		return ""
	}
	link := "https://wa.me/" + digits
	if text != "" {
		link += "?text=" + url.QueryEscape(text)
	}
	return link
}

// FormatEuros renders an amount the way it is written in Spain ("45,50 €").
func FormatEuros(amount decimal.Decimal) string {
	s := amount.StringFixed(2)
	s = strings.Replace(s, ".", ",", 1)
	s = strings.TrimSuffix(s, ",00")
	return s + " €"
}

// NewFeeReminder builds the reminder for a debtor of the billing overview.
func NewFeeReminder(d billing.Debtor, studio string, referenceDate time.Time) (*Reminder, error) {
	if !d.Phone.IsPresent() {
		return nil, shared.ErrNoPhone
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hola %s, te escribimos de %s. ", firstName(d.Name), studio)

	months := d.UnpaidMonthNames()
	months = append(months, d.PartialMonthNames()...)
	switch len(months) {
	case 0:
		b.WriteString("Tienes un saldo pendiente ")
	case 1:
		fmt.Fprintf(&b, "Tienes pendiente la cuota de %s ", months[0])
	default:
		fmt.Fprintf(&b, "Tienes pendientes las cuotas de %s ", joinSpanish(months))
	}
	fmt.Fprintf(&b, "por un total de %s. ¡Gracias!", FormatEuros(d.Debt))

	return &Reminder{
		Kind:      KindFeeReminder,
		StudentID: d.StudentID,
		Name:      d.Name,
		Phone:     d.Phone,
		Period:    shared.YearMonthOf(referenceDate),
		Message:   b.String(),
	}, nil
}

// NewAbsenceReminder builds the reminder for an absence alert.
func NewAbsenceReminder(a attendance.AbsenceAlert, studio string, referenceDate time.Time) (*Reminder, error) {
	if !a.Phone.IsPresent() {
		return nil, shared.ErrNoPhone
	}

	msg := fmt.Sprintf(
		"Hola %s, te echamos de menos en %s: llevas %d clases seguidas sin venir (última el %s). ¿Va todo bien?",
		firstName(a.Name), studio, a.Streak, a.LastKnownDate.Format("02/01/2006"),
	)

	return &Reminder{
		Kind:      KindAbsenceAlert,
		StudentID: a.StudentID,
		Name:      a.Name,
		Phone:     a.Phone,
		Period:    shared.YearMonthOf(referenceDate),
		Message:   msg,
	}, nil
}

func firstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// joinSpanish joins items as "a, b y c".
func joinSpanish(items []string) string {
	if len(items) <= 1 {
		return strings.Join(items, "")
	}
	return strings.Join(items[:len(items)-1], ", ") + " y " + items[len(items)-1]
}
