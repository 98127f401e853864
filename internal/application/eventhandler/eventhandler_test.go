package eventhandler

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/attendance"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/billing"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/shared"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/student"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/infrastructure/persistence/memory"
	"github.com/LitoFortuna/XDS-ERP-sub000/pkg/timeutil"
)

type recordingPublisher struct {
	events []shared.Event
}

func (p *recordingPublisher) Publish(e shared.Event) error {
	p.events = append(p.events, e)
	return nil
}

func seedStudent(t *testing.T, store *memory.Store, id string, classes ...string) {
	t.Helper()
	enrolled := timeutil.Date(2024, time.January, 10)
	s, err := student.NewStudent(student.NewStudentParams{
		ID:             id,
		Name:           "Alumna " + id,
		EnrollmentDate: &enrolled,
		MonthlyFee:     decimal.NewFromInt(19),
		ClassIDs:       classes,
	})
	require.NoError(t, err)
	require.NoError(t, store.Students().Create(context.Background(), s))
}

func pay(t *testing.T, store *memory.Store, id, studentID string, date time.Time) shared.Event {
	t.Helper()
	p, err := billing.NewPayment(billing.NewPaymentParams{
		ID:        id,
		StudentID: studentID,
		Date:      date,
		Amount:    decimal.NewFromInt(19),
		Concept:   "Cuota",
	})
	require.NoError(t, err)
	require.NoError(t, store.Payments().Create(context.Background(), p))
	return shared.NewPaymentRecordedEvent(p.ID, p.StudentID, p.Amount.String(), p.Concept, p.Date)
}

func TestOnPaymentRecordedPublishesDebtCleared(t *testing.T) {
	store := memory.NewStore()
	seedStudent(t, store, "s1")
	pub := &recordingPublisher{}

	h := NewOnPaymentRecordedHandler(store.Students(), store.Payments(), pub, nil)
	h.now = func() time.Time { return timeutil.Date(2024, time.March, 10) }
	assert.Equal(t, shared.EventPaymentRecorded, h.EventType())

	require.NoError(t, h.Handle(pay(t, store, "p1", "s1", timeutil.Date(2024, time.January, 12))))
	assert.Empty(t, pub.events, "february is still unpaid")

	require.NoError(t, h.Handle(pay(t, store, "p2", "s1", timeutil.Date(2024, time.February, 2))))
	require.Len(t, pub.events, 1)
	cleared, ok := pub.events[0].(shared.DebtClearedEvent)
	require.True(t, ok)
	assert.Equal(t, "s1", cleared.StudentID)
	assert.Equal(t, 2024, cleared.Year)

	// Paying ahead adds nothing once the debt is gone.
	require.NoError(t, h.Handle(pay(t, store, "p3", "s1", timeutil.Date(2024, time.March, 2))))
	assert.Len(t, pub.events, 1)
}

func TestOnPaymentRecordedPastYear(t *testing.T) {
	store := memory.NewStore()
	seedStudent(t, store, "s1")
	pub := &recordingPublisher{}

	h := NewOnPaymentRecordedHandler(store.Students(), store.Payments(), pub, nil)
	h.now = func() time.Time { return timeutil.Date(2025, time.February, 1) }

	for m := time.January; m < time.December; m++ {
		pay(t, store, "p"+m.String(), "s1", timeutil.Date(2024, m, 5))
	}
	require.NoError(t, h.Handle(pay(t, store, "last", "s1", timeutil.Date(2024, time.December, 5))))
	require.Len(t, pub.events, 1)
	assert.Equal(t, 2024, pub.events[0].(shared.DebtClearedEvent).Year)
}

func TestOnPaymentRecordedIgnoresUnknownStudent(t *testing.T) {
	store := memory.NewStore()
	pub := &recordingPublisher{}
	h := NewOnPaymentRecordedHandler(store.Students(), store.Payments(), pub, nil)

	event := shared.NewPaymentRecordedEvent("p1", "ghost", "19", "Cuota", timeutil.Date(2024, time.March, 1))
	require.NoError(t, h.Handle(event))
	assert.Empty(t, pub.events)
}

func TestOnAttendanceTakenPublishesAlerts(t *testing.T) {
	store := memory.NewStore()
	seedStudent(t, store, "s1", "c1", "c2")
	seedStudent(t, store, "s2", "c1")
	ctx := context.Background()

	days := []time.Time{
		timeutil.Date(2024, time.March, 4),
		timeutil.Date(2024, time.March, 6),
		timeutil.Date(2024, time.March, 11),
		timeutil.Date(2024, time.March, 13),
	}
	classes := []string{"c1", "c2", "c1", "c2"}
	var last *attendance.Record
	for i, d := range days {
		r, err := attendance.NewRecord(attendance.NewRecordParams{
			ID: classes[i] + timeutil.FormatDateStr(d), ClassID: classes[i], Date: d, PresentIDs: []string{"s2"},
		})
		require.NoError(t, err)
		last, err = store.Records().Upsert(ctx, r)
		require.NoError(t, err)
	}

	pub := &recordingPublisher{}
	h := NewOnAttendanceTakenHandler(store.Students(), store.Records(), pub, nil, nil)
	assert.Equal(t, shared.EventAttendanceTaken, h.EventType())

	require.NoError(t, h.Handle(shared.NewAttendanceTakenEvent(last.ID, "c2", last.Date, 1)))
	require.Len(t, pub.events, 1)
	alert := pub.events[0].(shared.AbsenceAlertEvent)
	assert.Equal(t, "s1", alert.StudentID)
	assert.Equal(t, 4, alert.Streak)
	assert.True(t, timeutil.IsSameDay(days[3], alert.LastKnownDate))

	off := NewOnAttendanceTakenHandler(store.Students(), store.Records(), pub, nil, func() bool { return false })
	require.NoError(t, off.Handle(shared.NewAttendanceTakenEvent(last.ID, "c2", last.Date, 1)))
	assert.Len(t, pub.events, 1)
}

func TestPayloadHelpers(t *testing.T) {
	event := shared.NewAttendanceTakenEvent("r1", "c1", timeutil.Date(2024, time.March, 4), 3)

	classID, err := payloadString(event, "class_id")
	require.NoError(t, err)
	assert.Equal(t, "c1", classID)

	_, err = payloadString(event, "present_count")
	assert.Error(t, err)
	_, err = payloadString(event, "missing")
	assert.Error(t, err)

	d, err := payloadDate(event, "date")
	require.NoError(t, err)
	assert.Equal(t, 4, d.Day())
}
