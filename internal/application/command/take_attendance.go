package command

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/LitoFortuna/XDS-ERP-sub000/internal/application/validation"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/attendance"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/shared"
	"github.com/LitoFortuna/XDS-ERP-sub000/pkg/logger"
	"github.com/LitoFortuna/XDS-ERP-sub000/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// TAKE ATTENDANCE COMMAND
// Stores the roll call of one class session. Taking it again for the same
// class and date replaces the present list.
// ══════════════════════════════════════════════════════════════════════════════

// TakeAttendanceCommand contains one roll call.
type TakeAttendanceCommand struct {
	ClassID string    `json:"class_id" validate:"required"`
	Date    time.Time `json:"date" validate:"required"`

	// PresentStudentIDs are stored as given, without checking they exist.
	PresentStudentIDs []string `json:"present_student_ids"`
}

// TakeAttendanceResult is the stored record.
type TakeAttendanceResult struct {
	Record *attendance.Record

	// Replaced is true when an earlier roll call of the session was
	// overwritten.
	Replaced bool

	// OffSchedule is true when the class is not scheduled on that weekday.
	OffSchedule bool
}

// TakeAttendanceHandler handles TakeAttendanceCommand.
type TakeAttendanceHandler struct {
	classRepo      attendance.ClassRepository
	recordRepo     attendance.RecordRepository
	eventPublisher shared.EventPublisher
	log            *logger.Logger
}

// NewTakeAttendanceHandler creates the handler.
func NewTakeAttendanceHandler(
	classRepo attendance.ClassRepository,
	recordRepo attendance.RecordRepository,
	eventPublisher shared.EventPublisher,
	log *logger.Logger,
) *TakeAttendanceHandler {
	if log == nil {
		log = logger.Default()
	}
	return &TakeAttendanceHandler{
		classRepo:      classRepo,
		recordRepo:     recordRepo,
		eventPublisher: eventPublisher,
		log:            log.With(logger.Component("take_attendance")),
	}
}

// Handle executes the command.
func (h *TakeAttendanceHandler) Handle(ctx context.Context, cmd TakeAttendanceCommand) (*TakeAttendanceResult, error) {
	if err := validation.Struct("attendance", "TakeAttendance", cmd); err != nil {
		return nil, err
	}

	class, err := h.classRepo.GetByID(ctx, cmd.ClassID)
	if err != nil {
		return nil, err
	}

	date := timeutil.StartOfDay(cmd.Date)
	record, err := attendance.NewRecord(attendance.NewRecordParams{
		ID:         uuid.NewString(),
		ClassID:    class.ID,
		Date:       date,
		PresentIDs: cmd.PresentStudentIDs,
	})
	if err != nil {
		return nil, err
	}

	stored, err := h.recordRepo.Upsert(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("take_attendance: store: %w", err)
	}

	result := &TakeAttendanceResult{
		Record:      stored,
		Replaced:    stored.ID != record.ID,
		OffSchedule: !class.OccursOn(date),
	}

	h.log.Info("attendance taken",
		logger.ClassID(class.ID),
		logger.Date(date),
		logger.Count(len(stored.Present)),
		logger.Bool("replaced", result.Replaced),
		logger.Bool("off_schedule", result.OffSchedule),
	)

	event := shared.NewAttendanceTakenEvent(stored.ID, class.ID, date, len(stored.Present))
	if err := h.eventPublisher.Publish(event); err != nil {
		h.log.Warn("failed to publish attendance event", logger.ClassID(class.ID), logger.Err(err))
	}

	return result, nil
}
