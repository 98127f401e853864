package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LitoFortuna/XDS-ERP-sub000/internal/application/command"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/attendance"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/notification"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/shared"
	"github.com/LitoFortuna/XDS-ERP-sub000/pkg/timeutil"
)

type fakeSender struct {
	calls []command.SendRemindersCommand
	res   *command.SendRemindersResult
	err   error
}

func (f *fakeSender) Handle(_ context.Context, cmd command.SendRemindersCommand) (*command.SendRemindersResult, error) {
	f.calls = append(f.calls, cmd)
	if f.err != nil {
		return nil, f.err
	}
	if f.res != nil {
		return f.res, nil
	}
	return &command.SendRemindersResult{Kind: cmd.Kind}, nil
}

type fakeAlerts struct {
	alerts []attendance.AbsenceAlert
	err    error
}

func (f fakeAlerts) Alerts(context.Context) ([]attendance.AbsenceAlert, error) {
	return f.alerts, f.err
}

type recordingPublisher struct {
	events []shared.Event
}

func (p *recordingPublisher) Publish(e shared.Event) error {
	p.events = append(p.events, e)
	return nil
}

func at(hour int) func() time.Time {
	return func() time.Time {
		return time.Date(2024, time.June, 5, hour, 0, 0, 0, timeutil.Location())
	}
}

func off() bool { return false }

func TestFeeRemindersJobSends(t *testing.T) {
	sender := &fakeSender{res: &command.SendRemindersResult{
		Kind: notification.KindFeeReminder, Period: "2024-06", Sent: 2, Skipped: 1, NoPhone: 1,
		Deliveries: make([]command.Delivery, 4),
	}}
	job := NewFeeRemindersJob(sender, nil, nil)
	job.now = at(10)

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, sender.calls, 1)
	assert.Equal(t, notification.KindFeeReminder, sender.calls[0].Kind)
	assert.Equal(t, 5, sender.calls[0].ReferenceDate.Day())

	stats := job.LastRun()
	assert.Equal(t, 4, stats.Processed)
	assert.Equal(t, 2, stats.Sent)
	assert.Equal(t, 2, stats.Skipped)
	assert.Equal(t, "fee_reminders", job.Name())
}

func TestFeeRemindersJobRespectsFlagAndHours(t *testing.T) {
	sender := &fakeSender{}

	disabled := NewFeeRemindersJob(sender, off, nil)
	disabled.now = at(10)
	require.NoError(t, disabled.Run(context.Background()))
	assert.True(t, disabled.LastRun().Disabled)

	night := NewFeeRemindersJob(sender, nil, nil)
	night.now = at(23)
	require.NoError(t, night.Run(context.Background()))

	assert.Empty(t, sender.calls)
}

func TestFeeRemindersJobPropagatesErrors(t *testing.T) {
	job := NewFeeRemindersJob(&fakeSender{err: errors.New("db down")}, nil, nil)
	job.now = at(10)
	assert.ErrorContains(t, job.Run(context.Background()), "db down")
}

func TestDetectAbsencesJobPublishesAndReminds(t *testing.T) {
	last := timeutil.Date(2024, time.June, 3)
	alerts := fakeAlerts{alerts: []attendance.AbsenceAlert{
		{StudentID: "s1", Name: "Ana", Streak: 5, LastKnownDate: last},
		{StudentID: "s2", Name: "Bea", Streak: 4, LastKnownDate: last},
	}}
	pub := &recordingPublisher{}
	sender := &fakeSender{res: &command.SendRemindersResult{Sent: 1, NoPhone: 1}}

	job := NewDetectAbsencesJob(DetectAbsencesDeps{Alerts: alerts, Sender: sender, Publisher: pub})
	job.now = at(12)

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, pub.events, 2)
	assert.Equal(t, shared.EventAbsenceAlert, pub.events[0].EventType())
	assert.Equal(t, "s1", pub.events[0].AggregateID())

	require.Len(t, sender.calls, 1)
	assert.Equal(t, notification.KindAbsenceAlert, sender.calls[0].Kind)

	stats := job.LastRun()
	assert.Equal(t, 2, stats.Processed)
	assert.Equal(t, 1, stats.Sent)
	assert.Equal(t, 1, stats.Skipped)
}

func TestDetectAbsencesJobGates(t *testing.T) {
	alerts := fakeAlerts{alerts: []attendance.AbsenceAlert{{StudentID: "s1", Streak: 4}}}
	pub := &recordingPublisher{}
	sender := &fakeSender{}

	job := NewDetectAbsencesJob(DetectAbsencesDeps{
		Alerts: alerts, Sender: sender, Publisher: pub,
		PublishAlerts: off, SendReminders: off,
	})
	job.now = at(12)
	require.NoError(t, job.Run(context.Background()))
	assert.Empty(t, pub.events)
	assert.Empty(t, sender.calls)

	night := NewDetectAbsencesJob(DetectAbsencesDeps{Alerts: alerts, Sender: sender, Publisher: pub})
	night.now = at(22)
	require.NoError(t, night.Run(context.Background()))
	assert.Len(t, pub.events, 1)
	assert.Empty(t, sender.calls)
}

func TestDetectAbsencesJobNoAlerts(t *testing.T) {
	sender := &fakeSender{}
	job := NewDetectAbsencesJob(DetectAbsencesDeps{Alerts: fakeAlerts{}, Sender: sender})
	job.now = at(12)
	require.NoError(t, job.Run(context.Background()))
	assert.Empty(t, sender.calls)

	failing := NewDetectAbsencesJob(DetectAbsencesDeps{Alerts: fakeAlerts{err: errors.New("boom")}})
	assert.Error(t, failing.Run(context.Background()))
}
