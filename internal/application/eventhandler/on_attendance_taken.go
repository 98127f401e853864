package eventhandler

import (
	"context"
	"log/slog"
	"time"

	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/attendance"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/shared"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/student"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON ATTENDANCE TAKEN HANDLER
// Recomputes the streaks of the students enrolled in the class that was just
// called and raises an absence alert for each one over the threshold.
// ═══════════════════════════════════════════════════════════════════════════

// OnAttendanceTakenHandler handles attendance.taken.
type OnAttendanceTakenHandler struct {
	studentRepo    student.Repository
	recordRepo     attendance.RecordRepository
	eventPublisher shared.EventPublisher
	logger         *slog.Logger
	enabled        func() bool
	timeout        time.Duration
}

// NewOnAttendanceTakenHandler creates the handler. enabled gates publishing
// of alerts; nil means always on.
func NewOnAttendanceTakenHandler(
	studentRepo student.Repository,
	recordRepo attendance.RecordRepository,
	eventPublisher shared.EventPublisher,
	logger *slog.Logger,
	enabled func() bool,
) *OnAttendanceTakenHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if enabled == nil {
		enabled = func() bool { return true }
	}
	return &OnAttendanceTakenHandler{
		studentRepo:    studentRepo,
		recordRepo:     recordRepo,
		eventPublisher: eventPublisher,
		logger:         logger.With("handler", "on_attendance_taken"),
		enabled:        enabled,
		timeout:        10 * time.Second,
	}
}

// EventType returns the handled event type.
func (h *OnAttendanceTakenHandler) EventType() shared.EventType {
	return shared.EventAttendanceTaken
}

// Handle implements shared.EventHandler.
func (h *OnAttendanceTakenHandler) Handle(event shared.Event) error {
	if !h.enabled() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	classID, err := payloadString(event, "class_id")
	if err != nil {
		return err
	}

	students, err := h.studentRepo.ListByClass(ctx, classID)
	if err != nil {
		return err
	}
	if len(students) == 0 {
		return nil
	}

	// A streak pools every class of the student, not just this one.
	classSet := student.NewClassSet()
	for _, s := range students {
		for _, id := range s.EnrolledClassIDs.IDs() {
			classSet[id] = struct{}{}
		}
	}
	records, err := h.recordRepo.ListByClasses(ctx, classSet.IDs())
	if err != nil {
		return err
	}

	alerts := attendance.AbsenceAlerts(students, records)
	for _, a := range alerts {
		h.logger.Info("absence streak detected",
			"student_id", a.StudentID,
			"streak", a.Streak,
			"class_id", classID,
		)
		if err := h.eventPublisher.Publish(shared.NewAbsenceAlertEvent(a.StudentID, a.Streak, a.LastKnownDate)); err != nil {
			return err
		}
	}
	return nil
}
