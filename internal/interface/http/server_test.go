package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LitoFortuna/XDS-ERP-sub000/internal/application/command"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/application/query"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/attendance"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/notification"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/shared"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/infrastructure/external/whatsapp"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/infrastructure/persistence/memory"
	redisstore "github.com/LitoFortuna/XDS-ERP-sub000/internal/infrastructure/persistence/redis"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/interface/http/handlers"
	"github.com/LitoFortuna/XDS-ERP-sub000/pkg/logger"
	"github.com/LitoFortuna/XDS-ERP-sub000/pkg/timeutil"
)

const staffKey = "let-me-in"

type features map[string]bool

func (f features) Enabled(name string) bool {
	on, ok := f[name]
	return !ok || on
}

type testServer struct {
	store   *memory.Store
	handler http.Handler
}

func newTestServer(t *testing.T, flags features) *testServer {
	t.Helper()

	hash, err := handlers.HashStaffKey(staffKey)
	require.NoError(t, err)

	store := memory.NewStore()
	clock := query.Clock(func() time.Time { return timeutil.Date(2024, time.April, 10) })
	log := logger.New(logger.Options{Output: io.Discard, Level: logger.LevelError})
	slogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pub := shared.NoopPublisher{}
	links := query.DefaultLinkSettings()

	deps := Dependencies{
		GetFeeLedger:       query.NewGetFeeLedgerHandler(store.Students(), store.Payments(), clock),
		GetBillingOverview: query.NewGetBillingOverviewHandler(store.Students(), store.Payments(), links, clock),
		GetQuarterSplit:    query.NewGetQuarterSplitHandler(store.Payments()),
		GetAbsenceAlerts:   query.NewGetAbsenceAlertsHandler(store.Students(), store.Records(), links, clock),
		GetStudentStreak:   query.NewGetStudentStreakHandler(store.Students(), store.Records()),
		GetWeeklySchedule:  query.NewGetWeeklyScheduleHandler(store.Classes(), store.Students()),
		RecordPayment:      command.NewRecordPaymentHandler(store.Students(), store.Payments(), pub, log),
		TakeAttendance:     command.NewTakeAttendanceHandler(store.Classes(), store.Records(), pub, log),
		SaveStudent:        command.NewSaveStudentHandler(store.Students(), pub, log),
		SendReminders: command.NewSendRemindersHandler(command.SendRemindersDeps{
			Students:    store.Students(),
			Payments:    store.Payments(),
			Records:     store.Records(),
			Channel:     whatsapp.NewLinkChannel("34", slogger),
			ReminderLog: redisstore.NewMemoryReminderLog(),
			Settings:    command.DefaultReminderSettings(),
			Logger:      log,
		}),
		Features: flags,
		Logger:   log,
	}

	cfg := DefaultConfig()
	cfg.StaffKeyHashes = []string{hash}
	cfg.RateLimitPerMinute = 0

	srv, err := NewServer(cfg, deps)
	require.NoError(t, err)
	return &testServer{store: store, handler: srv.Handler()}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}, key string) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewBufferString(b)
		default:
			raw, err := json.Marshal(b)
			require.NoError(t, err)
			reader = bytes.NewReader(raw)
		}
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func decodeData(t *testing.T, env envelope, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

func (ts *testServer) createStudent(t *testing.T, name, phone string, classes ...string) string {
	t.Helper()
	code, env := ts.do(t, http.MethodPost, "/api/v1/students", map[string]interface{}{
		"name":            name,
		"phone":           phone,
		"enrollment_date": "2024-01-15",
		"monthly_fee":     "19",
		"class_ids":       classes,
	}, staffKey)
	require.Equal(t, http.StatusCreated, code, env.Error)

	var st StudentResponse
	decodeData(t, env, &st)
	require.NotEmpty(t, st.ID)
	return st.ID
}

func (ts *testServer) addClass(t *testing.T, id string, days ...string) {
	t.Helper()
	c, err := attendance.NewDanceClass(attendance.NewClassParams{
		ID:        id,
		Name:      "Salsa",
		Days:      days,
		StartTime: "18:00",
		EndTime:   "19:00",
	})
	require.NoError(t, err)
	require.NoError(t, ts.store.Classes().Create(context.Background(), c))
}

// ══════════════════════════════════════════════════════════════════════════════
// TESTS
// ══════════════════════════════════════════════════════════════════════════════

func TestHealthAndRoot(t *testing.T) {
	ts := newTestServer(t, nil)

	code, env := ts.do(t, http.MethodGet, "/", nil, "")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)

	code, _ = ts.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, code)

	code, _ = ts.do(t, http.MethodGet, "/ready", nil, "")
	assert.Equal(t, http.StatusOK, code)
}

func TestHealthReportsFailingCheck(t *testing.T) {
	checker := handlers.NewStudioHealth("test", "postgres")
	checker.Watch(handlers.Service{Name: "postgres", Critical: true, Check: func(context.Context) error { return assert.AnError }})

	srv, err := NewServer(DefaultConfig(), Dependencies{
		HealthChecker: checker,
		Logger:        logger.New(logger.Options{Output: io.Discard, Level: logger.LevelError}),
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "postgres")

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthDegradedStaysReady(t *testing.T) {
	checker := handlers.NewStudioHealth("test", "postgres")
	checker.Watch(handlers.Service{Name: "postgres", Critical: true, Check: func(context.Context) error { return nil }})
	checker.Watch(handlers.Service{Name: "whatsapp", Check: func(context.Context) error { return assert.AnError }})

	srv, err := NewServer(DefaultConfig(), Dependencies{
		HealthChecker: checker,
		Logger:        logger.New(logger.Options{Output: io.Discard, Level: logger.LevelError}),
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"degraded"`)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWriteEndpointsRequireStaffKey(t *testing.T) {
	ts := newTestServer(t, nil)
	body := map[string]interface{}{"name": "Ana"}

	code, env := ts.do(t, http.MethodPost, "/api/v1/students", body, "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "missing_api_key", env.Error.Code)

	code, env = ts.do(t, http.MethodPost, "/api/v1/students", body, "wrong")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "invalid_api_key", env.Error.Code)

	code, _ = ts.do(t, http.MethodPost, "/api/v1/students", body, staffKey)
	assert.Equal(t, http.StatusCreated, code)
}

func TestNewServerRejectsMalformedHash(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StaffKeyHashes = []string{"plain-text-key"}

	_, err := NewServer(cfg, Dependencies{})
	assert.Error(t, err)
}

func TestSaveStudent(t *testing.T) {
	ts := newTestServer(t, nil)
	id := ts.createStudent(t, "Ana", "612345678", "c1")

	code, env := ts.do(t, http.MethodPut, "/api/v1/students/"+id, map[string]interface{}{
		"name":            "Ana María",
		"enrollment_date": "2024-01-15",
		"birth_date":      "31/12/1999",
		"monthly_fee":     25,
		"active":          false,
	}, staffKey)
	require.Equal(t, http.StatusOK, code)

	var st StudentResponse
	decodeData(t, env, &st)
	assert.Equal(t, "Ana María", st.Name)
	assert.Equal(t, "25.00", st.MonthlyFee)
	assert.Equal(t, "1999-12-31", st.BirthDate)
	assert.False(t, st.Active)
	assert.False(t, st.Created)

	code, env = ts.do(t, http.MethodPost, "/api/v1/students", map[string]interface{}{
		"name": "Bea", "monthly_fee": "-5",
	}, staffKey)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation_error", env.Error.Code)

	code, _ = ts.do(t, http.MethodPut, "/api/v1/students/ghost", map[string]interface{}{"name": "Ghost"}, staffKey)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestRecordPaymentAndLedger(t *testing.T) {
	ts := newTestServer(t, nil)
	id := ts.createStudent(t, "Ana", "612345678")

	code, env := ts.do(t, http.MethodPost, "/api/v1/payments", map[string]interface{}{
		"student_id": id,
		"date":       "2024-01-20",
		"amount":     "19.00",
		"concept":    "Cuota enero",
		"method":     "efectivo",
	}, staffKey)
	require.Equal(t, http.StatusCreated, code, env.Error)

	var payment query.PaymentDTO
	decodeData(t, env, &payment)
	assert.Equal(t, "2024-01-20", payment.Date)
	assert.Equal(t, "19.00", payment.Amount)
	assert.True(t, payment.IsFee)

	code, env = ts.do(t, http.MethodGet, "/api/v1/students/"+id+"/ledger?year=2024&date=2024-03-10", nil, "")
	require.Equal(t, http.StatusOK, code)

	var ledger query.FeeLedgerDTO
	decodeData(t, env, &ledger)
	require.Len(t, ledger.Months, 12)
	assert.Equal(t, "Paid", ledger.Months[0].Status)
	assert.Equal(t, "Unpaid", ledger.Months[1].Status)
	assert.Equal(t, "Pending", ledger.Months[2].Status)
	assert.Equal(t, "19.00", ledger.TotalDebt)
}

func TestRecordPaymentRejectsBadInput(t *testing.T) {
	ts := newTestServer(t, nil)
	id := ts.createStudent(t, "Ana", "")

	code, env := ts.do(t, http.MethodPost, "/api/v1/payments", `{"student_id":`, staffKey)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_body", env.Error.Code)

	code, _ = ts.do(t, http.MethodPost, "/api/v1/payments", map[string]interface{}{
		"student_id": id, "date": "2024-01-20", "amount": "10", "tip": "yes",
	}, staffKey)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = ts.do(t, http.MethodPost, "/api/v1/payments", map[string]interface{}{
		"student_id": id, "date": "2024-01-20", "amount": "0",
	}, staffKey)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation_error", env.Error.Code)

	code, _ = ts.do(t, http.MethodPost, "/api/v1/payments", map[string]interface{}{
		"student_id": id, "date": "20/01/2024", "amount": "10",
	}, staffKey)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = ts.do(t, http.MethodPost, "/api/v1/payments", map[string]interface{}{
		"student_id": "ghost", "date": "2024-01-20", "amount": "10",
	}, staffKey)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestLedgerErrors(t *testing.T) {
	ts := newTestServer(t, nil)

	code, env := ts.do(t, http.MethodGet, "/api/v1/students/ghost/ledger", nil, "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", env.Error.Code)

	code, _ = ts.do(t, http.MethodGet, "/api/v1/students/ghost/ledger?year=abc", nil, "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestLedgerUnreconciledFeature(t *testing.T) {
	for _, on := range []bool{true, false} {
		ts := newTestServer(t, features{FeatureUnreconciledPayments: on})
		code, env := ts.do(t, http.MethodPost, "/api/v1/students", map[string]interface{}{
			"name": "Ana", "enrollment_date": "2024-03-15", "monthly_fee": "19",
		}, staffKey)
		require.Equal(t, http.StatusCreated, code)
		var st StudentResponse
		decodeData(t, env, &st)
		id := st.ID

		code, _ = ts.do(t, http.MethodPost, "/api/v1/payments", map[string]interface{}{
			"student_id": id, "date": "2024-02-10", "amount": "19",
		}, staffKey)
		require.Equal(t, http.StatusCreated, code)

		_, env = ts.do(t, http.MethodGet, "/api/v1/students/"+id+"/ledger?year=2024", nil, "")
		var ledger query.FeeLedgerDTO
		decodeData(t, env, &ledger)

		if on {
			assert.Len(t, ledger.Unreconciled, 1)
		} else {
			assert.Empty(t, ledger.Unreconciled)
		}
	}
}

func TestBillingOverviewAndQuarter(t *testing.T) {
	ts := newTestServer(t, nil)
	id := ts.createStudent(t, "Ana", "612345678")

	code, _ := ts.do(t, http.MethodPost, "/api/v1/payments", map[string]interface{}{
		"student_id": id, "date": "2024-04-02", "amount": "19", "concept": "Cuota abril",
	}, staffKey)
	require.Equal(t, http.StatusCreated, code)

	code, env := ts.do(t, http.MethodGet, "/api/v1/billing/overview?date=2024-04-10", nil, "")
	require.Equal(t, http.StatusOK, code)

	var overview query.BillingOverviewDTO
	decodeData(t, env, &overview)
	assert.Equal(t, 1, overview.BillableStudents)
	assert.Equal(t, "19.00", overview.CollectedThisMonth)
	require.Len(t, overview.Debtors, 1)
	assert.Equal(t, "57.00", overview.Debtors[0].Debt)
	assert.NotEmpty(t, overview.Debtors[0].WhatsAppLink)

	code, env = ts.do(t, http.MethodGet, "/api/v1/billing/quarters/2024/2", nil, "")
	require.Equal(t, http.StatusOK, code)
	var split query.QuarterSplitDTO
	decodeData(t, env, &split)
	assert.Equal(t, "19.00", split.Fees)

	code, _ = ts.do(t, http.MethodGet, "/api/v1/billing/quarters/2024/5", nil, "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = ts.do(t, http.MethodGet, "/api/v1/billing/quarters/2024/q2", nil, "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestAttendanceAlertsAndStreak(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.addClass(t, "c1", "lunes")
	ana := ts.createStudent(t, "Ana", "612345678", "c1")
	bea := ts.createStudent(t, "Bea", "", "c1")

	monday := timeutil.Date(2024, time.March, 4)
	for i := 0; i < 4; i++ {
		code, env := ts.do(t, http.MethodPost, "/api/v1/attendance", map[string]interface{}{
			"class_id":            "c1",
			"date":                timeutil.FormatDateStr(monday.AddDate(0, 0, 7*i)),
			"present_student_ids": []string{bea},
		}, staffKey)
		require.Equal(t, http.StatusCreated, code, env.Error)
	}

	code, env := ts.do(t, http.MethodPost, "/api/v1/attendance", map[string]interface{}{
		"class_id":            "c1",
		"date":                "2024-03-25",
		"present_student_ids": []string{bea},
	}, staffKey)
	require.Equal(t, http.StatusOK, code)
	var rec AttendanceResponse
	decodeData(t, env, &rec)
	assert.True(t, rec.Replaced)
	assert.False(t, rec.OffSchedule)

	code, env = ts.do(t, http.MethodGet, "/api/v1/attendance/alerts", nil, "")
	require.Equal(t, http.StatusOK, code)
	var alerts query.AbsenceAlertsDTO
	decodeData(t, env, &alerts)
	require.Len(t, alerts.Alerts, 1)
	assert.Equal(t, ana, alerts.Alerts[0].StudentID)
	assert.Equal(t, 4, alerts.Alerts[0].Streak)

	code, env = ts.do(t, http.MethodGet, "/api/v1/students/"+bea+"/streak", nil, "")
	require.Equal(t, http.StatusOK, code)
	var streak query.StudentStreakDTO
	decodeData(t, env, &streak)
	assert.Zero(t, streak.Streak)

	code, _ = ts.do(t, http.MethodPost, "/api/v1/attendance", map[string]interface{}{
		"class_id": "ghost", "date": "2024-03-04",
	}, staffKey)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestSchedule(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.addClass(t, "c1", "lunes", "miércoles")

	code, env := ts.do(t, http.MethodGet, "/api/v1/schedule", nil, "")
	require.Equal(t, http.StatusOK, code)

	var schedule query.WeeklyScheduleDTO
	decodeData(t, env, &schedule)
	require.Len(t, schedule.Days, 7)
	assert.Len(t, schedule.Days[0].Classes, 1)
	assert.Empty(t, schedule.Days[1].Classes)
}

func TestSendRemindersDryRun(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.createStudent(t, "Ana", "612345678")

	code, env := ts.do(t, http.MethodPost, "/api/v1/reminders/fee-reminder?date=2024-04-10&dry_run=true", nil, staffKey)
	require.Equal(t, http.StatusOK, code, env.Error)

	var result command.SendRemindersResult
	decodeData(t, env, &result)
	require.Len(t, result.Deliveries, 1)
	assert.Equal(t, command.DeliveryPreview, result.Deliveries[0].Status)
	assert.Contains(t, result.Deliveries[0].Link, "wa.me/34612345678")

	code, _ = ts.do(t, http.MethodPost, "/api/v1/reminders/birthday", nil, staffKey)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = ts.do(t, http.MethodPost, "/api/v1/reminders/absence_alert", nil, staffKey)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestSendAbsenceRemindersDryRun(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.addClass(t, "c1", "lunes")
	ana := ts.createStudent(t, "Ana", "612345678", "c1")

	monday := timeutil.Date(2024, time.March, 4)
	for i := 0; i < 4; i++ {
		code, env := ts.do(t, http.MethodPost, "/api/v1/attendance", map[string]interface{}{
			"class_id":            "c1",
			"date":                timeutil.FormatDateStr(monday.AddDate(0, 0, 7*i)),
			"present_student_ids": []string{},
		}, staffKey)
		require.Equal(t, http.StatusCreated, code, env.Error)
	}

	code, env := ts.do(t, http.MethodPost, "/api/v1/reminders/absence-reminder?date=2024-04-10&dry_run=true", nil, staffKey)
	require.Equal(t, http.StatusOK, code, env.Error)

	var result command.SendRemindersResult
	decodeData(t, env, &result)
	assert.Equal(t, notification.KindAbsenceAlert, result.Kind)
	require.Len(t, result.Deliveries, 1)
	assert.Equal(t, ana, result.Deliveries[0].StudentID)
	assert.Equal(t, command.DeliveryPreview, result.Deliveries[0].Status)
	assert.Contains(t, result.Deliveries[0].Link, "wa.me/34612345678")
}

func TestRateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 2
	srv, err := NewServer(cfg, Dependencies{
		Logger: logger.New(logger.Options{Output: io.Discard, Level: logger.LevelError}),
	})
	require.NoError(t, err)
	t.Cleanup(func() { srv.rateLimiter.Stop() })

	var last int
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
		last = rec.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}
