package query

import (
	"context"
	"fmt"

	"github.com/LitoFortuna/XDS-ERP-sub000/internal/application/validation"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/attendance"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/notification"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// ABSENCE QUERIES
// The absence-alert list and the streak of a single student.
// ══════════════════════════════════════════════════════════════════════════════

// AbsenceAlertDTO is a card of the attendance view.
type AbsenceAlertDTO struct {
	StudentID     string `json:"student_id"`
	Name          string `json:"name"`
	Phone         string `json:"phone,omitempty"`
	Streak        int    `json:"streak"`
	LastKnownDate string `json:"last_known_date"`
	WhatsAppLink  string `json:"whatsapp_link,omitempty"`
}

// AbsenceAlertsDTO is the alert list.
type AbsenceAlertsDTO struct {
	Threshold int               `json:"threshold"`
	Alerts    []AbsenceAlertDTO `json:"alerts"`
}

// GetAbsenceAlertsHandler returns every active student whose streak exceeds
// attendance.AlertThreshold.
type GetAbsenceAlertsHandler struct {
	studentRepo student.Repository
	recordRepo  attendance.RecordRepository
	links       LinkSettings
	clock       Clock
}

// NewGetAbsenceAlertsHandler creates the handler.
func NewGetAbsenceAlertsHandler(
	studentRepo student.Repository,
	recordRepo attendance.RecordRepository,
	links LinkSettings,
	clock Clock,
) *GetAbsenceAlertsHandler {
	return &GetAbsenceAlertsHandler{
		studentRepo: studentRepo,
		recordRepo:  recordRepo,
		links:       links,
		clock:       clock,
	}
}

// Alerts computes the raw alerts. The worker uses it directly.
func (h *GetAbsenceAlertsHandler) Alerts(ctx context.Context) ([]attendance.AbsenceAlert, error) {
	students, err := h.studentRepo.List(ctx, student.DefaultListOptions())
	if err != nil {
		return nil, fmt.Errorf("get_absence_alerts: list students: %w", err)
	}
	records, err := h.recordRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("get_absence_alerts: list records: %w", err)
	}
	return attendance.AbsenceAlerts(students, records), nil
}

// Handle runs the query.
func (h *GetAbsenceAlertsHandler) Handle(ctx context.Context) (*AbsenceAlertsDTO, error) {
	alerts, err := h.Alerts(ctx)
	if err != nil {
		return nil, err
	}

	today := h.clock.today()
	dto := &AbsenceAlertsDTO{
		Threshold: attendance.AlertThreshold,
		Alerts:    make([]AbsenceAlertDTO, 0, len(alerts)),
	}
	for _, a := range alerts {
		card := AbsenceAlertDTO{
			StudentID:     a.StudentID,
			Name:          a.Name,
			Phone:         string(a.Phone),
			Streak:        a.Streak,
			LastKnownDate: dateString(a.LastKnownDate),
		}
		if r, err := notification.NewAbsenceReminder(a, h.links.StudioName, today); err == nil {
			card.WhatsAppLink = r.Link(h.links.DefaultCountryCode)
		}
		dto.Alerts = append(dto.Alerts, card)
	}
	return dto, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Single student
// ─────────────────────────────────────────────────────────────────────────────

// GetStudentStreakQuery asks for one student's streak.
type GetStudentStreakQuery struct {
	StudentID string `json:"student_id" validate:"required"`
}

// StudentStreakDTO is the streak of one student.
type StudentStreakDTO struct {
	StudentID     string `json:"student_id"`
	Name          string `json:"name"`
	Streak        int    `json:"streak"`
	LastKnownDate string `json:"last_known_date,omitempty"`
	Tracked       bool   `json:"tracked"`
	Alert         bool   `json:"alert"`
	Classes       int    `json:"classes"`
}

// GetStudentStreakHandler handles GetStudentStreakQuery.
type GetStudentStreakHandler struct {
	studentRepo student.Repository
	recordRepo  attendance.RecordRepository
}

// NewGetStudentStreakHandler creates the handler.
func NewGetStudentStreakHandler(studentRepo student.Repository, recordRepo attendance.RecordRepository) *GetStudentStreakHandler {
	return &GetStudentStreakHandler{studentRepo: studentRepo, recordRepo: recordRepo}
}

// Handle runs the query.
func (h *GetStudentStreakHandler) Handle(ctx context.Context, q GetStudentStreakQuery) (*StudentStreakDTO, error) {
	if err := validation.Struct("attendance", "GetStudentStreak", q); err != nil {
		return nil, err
	}

	s, err := h.studentRepo.GetByID(ctx, q.StudentID)
	if err != nil {
		return nil, err
	}

	var records []attendance.Record
	if classIDs := s.EnrolledClassIDs.IDs(); len(classIDs) > 0 {
		records, err = h.recordRepo.ListByClasses(ctx, classIDs)
		if err != nil {
			return nil, fmt.Errorf("get_student_streak: list records: %w", err)
		}
	}

	res := attendance.DetectStreak(s, records)
	return &StudentStreakDTO{
		StudentID:     s.ID,
		Name:          s.Name,
		Streak:        res.Streak,
		LastKnownDate: dateString(res.LastKnownDate),
		Tracked:       res.Tracked,
		Alert:         res.Alert(),
		Classes:       s.EnrolledClassIDs.Len(),
	}, nil
}
