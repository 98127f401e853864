package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type funcJob struct {
	name string
	runs atomic.Int32
	fn   func(ctx context.Context) error
}

func (j *funcJob) Name() string        { return j.name }
func (j *funcJob) Description() string { return "test job " + j.name }

func (j *funcJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	if j.fn == nil {
		return nil
	}
	return j.fn(ctx)
}

type stubLocker struct {
	ok       bool
	err      error
	unlocked atomic.Int32
	names    []string
}

func (l *stubLocker) TryLock(_ context.Context, name string, _ time.Duration) (func(), bool, error) {
	l.names = append(l.names, name)
	return func() { l.unlocked.Add(1) }, l.ok, l.err
}

func TestRegisterRejectsDuplicatesAndNil(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig())
	job := &funcJob{name: "a"}

	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))
	assert.ErrorIs(t, s.Register(job, NewIntervalSchedule(time.Hour)), ErrJobAlreadyExists)
	assert.ErrorIs(t, s.Register(nil, NewIntervalSchedule(time.Hour)), ErrNilJob)
	assert.ErrorIs(t, s.Register(&funcJob{name: "b"}, nil), ErrNilSchedule)

	jobs := s.ListJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "a", jobs[0].Name)
	assert.Equal(t, "@every 1h0m0s", jobs[0].Schedule)
	assert.True(t, jobs[0].Enabled)

	require.NoError(t, s.DisableJob("a"))
	assert.False(t, s.ListJobs()[0].Enabled)
	assert.ErrorIs(t, s.EnableJob("zzz"), ErrJobNotFound)
}

func TestRunNowRecordsHistoryAndMetrics(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig())
	ok := &funcJob{name: "ok"}
	boom := &funcJob{name: "boom", fn: func(context.Context) error { return errors.New("boom") }}
	require.NoError(t, s.Register(ok, NewIntervalSchedule(time.Hour)))
	require.NoError(t, s.Register(boom, NewIntervalSchedule(time.Hour)))

	var failed string
	s.OnJobError(func(name string, _ error) { failed = name })

	res, err := s.RunNow(context.Background(), "ok")
	require.NoError(t, err)
	assert.True(t, res.Success)

	res, err = s.RunNow(context.Background(), "boom")
	require.Error(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "boom", failed)

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	history := s.GetHistory(10)
	require.Len(t, history, 2)
	assert.Equal(t, "ok", history[0].JobName)

	snap := s.GetMetrics().Snapshot()
	assert.EqualValues(t, 2, snap.TotalExecutions)
	assert.EqualValues(t, 1, snap.TotalFailures)
}

func TestRunNowRecoversPanics(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig())
	job := &funcJob{name: "panic", fn: func(context.Context) error { panic("oops") }}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	_, err := s.RunNow(context.Background(), "panic")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oops")
}

func TestLockedJobIsSkipped(t *testing.T) {
	locker := &stubLocker{ok: false}
	cfg := DefaultSchedulerConfig()
	cfg.Locker = locker
	s := NewScheduler(cfg)

	job := &funcJob{name: "fee_reminders"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	res, err := s.RunNow(context.Background(), "fee_reminders")
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Zero(t, job.runs.Load())
	assert.Equal(t, []string{"job:fee_reminders"}, locker.names)
	assert.Zero(t, s.ListJobs()[0].RunCount)
}

func TestLockErrorStillRuns(t *testing.T) {
	locker := &stubLocker{err: errors.New("redis down")}
	cfg := DefaultSchedulerConfig()
	cfg.Locker = locker
	s := NewScheduler(cfg)

	job := &funcJob{name: "detect_absences"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	_, err := s.RunNow(context.Background(), "detect_absences")
	require.NoError(t, err)
	assert.EqualValues(t, 1, job.runs.Load())
	assert.Zero(t, locker.unlocked.Load())
}

func TestHeldLockIsReleased(t *testing.T) {
	locker := &stubLocker{ok: true}
	cfg := DefaultSchedulerConfig()
	cfg.Locker = locker
	s := NewScheduler(cfg)

	job := &funcJob{name: "a"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	_, err := s.RunNow(context.Background(), "a")
	require.NoError(t, err)
	assert.EqualValues(t, 1, locker.unlocked.Load())
}

func TestStartStop(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig())
	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)
	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
}

func TestCronNext(t *testing.T) {
	cron := MustParseCronExpression(MonthlyFeeReminders)
	from := time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC)

	next := cron.Next(from)
	assert.Equal(t, time.Date(2024, time.April, 5, 10, 0, 0, 0, time.UTC), next)

	_, err := ParseCronExpression("* * *")
	assert.Error(t, err)
	_, err = ParseCronExpression("61 * * * *")
	assert.Error(t, err)

	every := MustParseCronExpression("*/15 * * * *")
	assert.Equal(t, time.Date(2024, time.March, 5, 10, 15, 0, 0, time.UTC), every.Next(from))
}

func TestIntervalScheduleMinimum(t *testing.T) {
	s := NewIntervalSchedule(time.Second)
	assert.Equal(t, time.Minute, s.Interval)
}
