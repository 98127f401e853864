package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/LitoFortuna/XDS-ERP-sub000/internal/application/command"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/application/query"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/notification"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/shared"
	"github.com/LitoFortuna/XDS-ERP-sub000/pkg/logger"
	"github.com/LitoFortuna/XDS-ERP-sub000/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSONWithMeta(w, r, http.StatusOK, map[string]interface{}{
		"name":    "XDS Studio ERP API",
		"version": "v1",
		"endpoints": []string{
			"GET  /api/v1/students/{id}/ledger",
			"GET  /api/v1/students/{id}/streak",
			"GET  /api/v1/billing/overview",
			"GET  /api/v1/billing/quarters/{year}/{quarter}",
			"GET  /api/v1/attendance/alerts",
			"GET  /api/v1/schedule",
			"POST /api/v1/students",
			"PUT  /api/v1/students/{id}",
			"POST /api/v1/payments",
			"POST /api/v1/attendance",
			"POST /api/v1/reminders/{kind}",
		},
	}, nil)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"uptime": s.Uptime().Round(time.Second).String(),
		})
		return
	}

	status := s.deps.HealthChecker.Check(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		if status := s.deps.HealthChecker.Check(r.Context()); !status.Ready {
			writeJSONErrorWithDetails(w, http.StatusServiceUnavailable, "not_ready", "Service is not ready", status.Message)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	metrics := map[string]interface{}{
		"uptime_seconds": s.Uptime().Seconds(),
	}
	if s.deps.Metrics != nil {
		for k, v := range s.deps.Metrics() {
			metrics[k] = v
		}
	}
	writeJSON(w, http.StatusOK, metrics)
}

// ══════════════════════════════════════════════════════════════════════════════
// BILLING HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetLedger handles GET /api/v1/students/{id}/ledger?year=&date=
func (s *Server) handleGetLedger(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetFeeLedger == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Ledger is not available")
		return
	}

	year, err := getQueryParamInt(r, "year", 0)
	if err != nil {
		writeJSONErrorWithDetails(w, http.StatusBadRequest, "invalid_parameter", "Invalid year parameter", err.Error())
		return
	}
	date, err := getQueryParamDate(r, "date")
	if err != nil {
		writeJSONErrorWithDetails(w, http.StatusBadRequest, "invalid_parameter", "Invalid date parameter", err.Error())
		return
	}

	ledger, err := s.deps.GetFeeLedger.Handle(r.Context(), query.GetFeeLedgerQuery{
		StudentID:     r.PathValue("id"),
		Year:          year,
		ReferenceDate: date,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	if !s.featureEnabled(FeatureUnreconciledPayments) {
		ledger.Unreconciled = nil
	}

	writeJSONWithMeta(w, r, http.StatusOK, ledger, nil)
}

// handleGetBillingOverview handles GET /api/v1/billing/overview?date=
func (s *Server) handleGetBillingOverview(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetBillingOverview == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Billing overview is not available")
		return
	}

	date, err := getQueryParamDate(r, "date")
	if err != nil {
		writeJSONErrorWithDetails(w, http.StatusBadRequest, "invalid_parameter", "Invalid date parameter", err.Error())
		return
	}

	overview, err := s.deps.GetBillingOverview.Handle(r.Context(), query.GetBillingOverviewQuery{ReferenceDate: date})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, overview, &ResponseMeta{TotalCount: len(overview.Debtors)})
}

// handleGetQuarterSplit handles GET /api/v1/billing/quarters/{year}/{quarter}
func (s *Server) handleGetQuarterSplit(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetQuarterSplit == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Quarter split is not available")
		return
	}

	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_parameter", "Year must be a number")
		return
	}
	quarter, err := strconv.Atoi(r.PathValue("quarter"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_parameter", "Quarter must be a number")
		return
	}

	split, err := s.deps.GetQuarterSplit.Handle(r.Context(), query.GetQuarterSplitQuery{Year: year, Quarter: quarter})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, split, nil)
}

// paymentRequest is the body of POST /api/v1/payments.
type paymentRequest struct {
	StudentID string          `json:"student_id"`
	Date      string          `json:"date"`
	Amount    decimal.Decimal `json:"amount"`
	Concept   string          `json:"concept"`
	Method    string          `json:"method"`
}

// handleRecordPayment handles POST /api/v1/payments
func (s *Server) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	date, err := parseOptionalDate(req.Date)
	if err != nil {
		writeJSONErrorWithDetails(w, http.StatusBadRequest, "invalid_parameter", "Invalid payment date", err.Error())
		return
	}

	result, err := s.deps.RecordPayment.Handle(r.Context(), command.RecordPaymentCommand{
		StudentID: req.StudentID,
		Date:      date,
		Amount:    req.Amount,
		Concept:   req.Concept,
		Method:    req.Method,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSONWithMeta(w, r, http.StatusCreated, query.NewPaymentDTO(*result.Payment), nil)
}

// reminderRoutes maps the {kind} path segment to the reminder kind.
var reminderRoutes = map[string]notification.Kind{
	"fee-reminder":     notification.KindFeeReminder,
	"absence-reminder": notification.KindAbsenceAlert,
}

// handleSendReminders handles POST /api/v1/reminders/{kind}?date=&dry_run=
func (s *Server) handleSendReminders(w http.ResponseWriter, r *http.Request) {
	if s.deps.SendReminders == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Reminders are not available")
		return
	}

	kind, ok := reminderRoutes[r.PathValue("kind")]
	if !ok {
		writeJSONErrorWithDetails(w, http.StatusBadRequest, "validation_error", "Unknown reminder kind",
			"expected fee-reminder or absence-reminder")
		return
	}
	date, err := getQueryParamDate(r, "date")
	if err != nil {
		writeJSONErrorWithDetails(w, http.StatusBadRequest, "invalid_parameter", "Invalid date parameter", err.Error())
		return
	}

	result, err := s.deps.SendReminders.Handle(r.Context(), command.SendRemindersCommand{
		Kind:          kind,
		ReferenceDate: date,
		DryRun:        getQueryParamBool(r, "dry_run", false),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, result, &ResponseMeta{TotalCount: len(result.Deliveries)})
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// studentRequest is the body of the student form.
type studentRequest struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Phone          string          `json:"phone"`
	Email          string          `json:"email"`
	BirthDate      string          `json:"birth_date"`
	EnrollmentDate string          `json:"enrollment_date"`
	MonthlyFee     decimal.Decimal `json:"monthly_fee"`
	ClassIDs       []string        `json:"class_ids"`

	// Active defaults to true.
	Active *bool `json:"active"`
}

// StudentResponse is a stored student.
type StudentResponse struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Phone          string   `json:"phone,omitempty"`
	Email          string   `json:"email,omitempty"`
	BirthDate      string   `json:"birth_date,omitempty"`
	EnrollmentDate string   `json:"enrollment_date,omitempty"`
	MonthlyFee     string   `json:"monthly_fee"`
	ClassIDs       []string `json:"class_ids"`
	Active         bool     `json:"active"`
	Created        bool     `json:"created"`
}

// handleSaveStudent handles POST /api/v1/students and PUT /api/v1/students/{id}
func (s *Server) handleSaveStudent(w http.ResponseWriter, r *http.Request) {
	var req studentRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if id := r.PathValue("id"); id != "" {
		req.ID = id
	}

	// The form sends birth dates in free formats; unparseable ones are
	// stored as unknown.
	birth := parseLenientDate(req.BirthDate)

	var enrollment *time.Time
	if req.EnrollmentDate != "" {
		d, err := timeutil.ParseDate(req.EnrollmentDate)
		if err != nil {
			writeJSONErrorWithDetails(w, http.StatusBadRequest, "invalid_parameter", "Invalid enrollment date", err.Error())
			return
		}
		enrollment = &d
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	result, err := s.deps.SaveStudent.Handle(r.Context(), command.SaveStudentCommand{
		ID:             req.ID,
		Name:           req.Name,
		Phone:          req.Phone,
		Email:          req.Email,
		BirthDate:      birth,
		EnrollmentDate: enrollment,
		MonthlyFee:     req.MonthlyFee,
		ClassIDs:       req.ClassIDs,
		Active:         active,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	st := result.Student
	resp := StudentResponse{
		ID:         st.ID,
		Name:       st.Name,
		Phone:      string(st.Phone),
		Email:      st.Email,
		MonthlyFee: st.MonthlyFee.StringFixed(2),
		ClassIDs:   st.EnrolledClassIDs.IDs(),
		Active:     st.Active,
		Created:    result.Created,
	}
	if st.BirthDate != nil {
		resp.BirthDate = timeutil.FormatDateStr(*st.BirthDate)
	}
	if st.EnrollmentDate != nil {
		resp.EnrollmentDate = timeutil.FormatDateStr(*st.EnrollmentDate)
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	writeJSONWithMeta(w, r, status, resp, nil)
}

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetAbsenceAlerts handles GET /api/v1/attendance/alerts
func (s *Server) handleGetAbsenceAlerts(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetAbsenceAlerts == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Absence alerts are not available")
		return
	}

	alerts, err := s.deps.GetAbsenceAlerts.Handle(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, alerts, &ResponseMeta{TotalCount: len(alerts.Alerts)})
}

// handleGetStreak handles GET /api/v1/students/{id}/streak
func (s *Server) handleGetStreak(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetStudentStreak == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Streaks are not available")
		return
	}

	streak, err := s.deps.GetStudentStreak.Handle(r.Context(), query.GetStudentStreakQuery{StudentID: r.PathValue("id")})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, streak, nil)
}

// handleGetSchedule handles GET /api/v1/schedule
func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetWeeklySchedule == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Schedule is not available")
		return
	}

	schedule, err := s.deps.GetWeeklySchedule.Handle(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, schedule, nil)
}

// attendanceRequest is the body of POST /api/v1/attendance.
type attendanceRequest struct {
	ClassID           string   `json:"class_id"`
	Date              string   `json:"date"`
	PresentStudentIDs []string `json:"present_student_ids"`
}

// AttendanceResponse is a stored roll call.
type AttendanceResponse struct {
	ID                string   `json:"id"`
	ClassID           string   `json:"class_id"`
	Date              string   `json:"date"`
	PresentStudentIDs []string `json:"present_student_ids"`
	Replaced          bool     `json:"replaced"`
	OffSchedule       bool     `json:"off_schedule"`
}

// handleTakeAttendance handles POST /api/v1/attendance
func (s *Server) handleTakeAttendance(w http.ResponseWriter, r *http.Request) {
	var req attendanceRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	date, err := parseOptionalDate(req.Date)
	if err != nil {
		writeJSONErrorWithDetails(w, http.StatusBadRequest, "invalid_parameter", "Invalid attendance date", err.Error())
		return
	}

	result, err := s.deps.TakeAttendance.Handle(r.Context(), command.TakeAttendanceCommand{
		ClassID:           req.ClassID,
		Date:              date,
		PresentStudentIDs: req.PresentStudentIDs,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	status := http.StatusCreated
	if result.Replaced {
		status = http.StatusOK
	}
	writeJSONWithMeta(w, r, status, AttendanceResponse{
		ID:                result.Record.ID,
		ClassID:           result.Record.ClassID,
		Date:              timeutil.FormatDateStr(result.Record.Date),
		PresentStudentIDs: result.Record.PresentIDs(),
		Replaced:          result.Replaced,
		OffSchedule:       result.OffSchedule,
	}, nil)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// writeDomainError maps a domain error to an HTTP status.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case shared.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, "not_found", publicMessage(err))
	case shared.IsValidation(err):
		writeJSONError(w, http.StatusBadRequest, "validation_error", publicMessage(err))
	case shared.IsAlreadyExists(err):
		writeJSONError(w, http.StatusConflict, "already_exists", publicMessage(err))
	case errors.Is(err, shared.ErrUnauthorized):
		writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
	case shared.IsExternalService(err):
		logger.FromContext(r.Context()).Warn("external service failed", logger.Err(err))
		writeJSONError(w, http.StatusBadGateway, "external_service_error", "An external service failed")
	default:
		logger.FromContext(r.Context()).Error("request failed",
			logger.String("path", r.URL.Path),
			logger.Err(err),
		)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}

// publicMessage returns the message of the outermost domain error, without
// the wrapped causes.
func publicMessage(err error) string {
	var de *shared.DomainError
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return err.Error()
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) featureEnabled(name string) bool {
	if s.deps.Features == nil {
		return true
	}
	return s.deps.Features.Enabled(name)
}

// decodeBody decodes a JSON body, writing a 400 on failure.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "body_too_large", "Request body too large")
			return false
		}
		writeJSONErrorWithDetails(w, http.StatusBadRequest, "invalid_body", "Invalid JSON body", err.Error())
		return false
	}
	return true
}

func getQueryParamInt(r *http.Request, key string, defaultValue int) (int, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", key)
	}
	return n, nil
}

func getQueryParamBool(r *http.Request, key string, defaultValue bool) bool {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

// getQueryParamDate parses a YYYY-MM-DD parameter. Missing means zero,
// which handlers read as today.
func getQueryParamDate(r *http.Request, key string) (time.Time, error) {
	return parseOptionalDate(r.URL.Query().Get(key))
}

func parseOptionalDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return timeutil.ParseDate(value)
}

// parseLenientDate accepts YYYY-MM-DD and DD/MM/YYYY, returning nil for
// anything else.
func parseLenientDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if d, err := timeutil.ParseDate(value); err == nil {
		return &d
	}
	if d, err := time.ParseInLocation("02/01/2006", value, timeutil.Location()); err == nil {
		return &d
	}
	return nil
}
