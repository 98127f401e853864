package command

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/LitoFortuna/XDS-ERP-sub000/internal/application/validation"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/shared"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/student"
	"github.com/LitoFortuna/XDS-ERP-sub000/pkg/logger"
	"github.com/LitoFortuna/XDS-ERP-sub000/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SAVE STUDENT COMMAND
// Creates a student, or overwrites every field of an existing one.
// ══════════════════════════════════════════════════════════════════════════════

// SaveStudentCommand contains the student form.
type SaveStudentCommand struct {
	// ID is empty for a new student.
	ID string `json:"id"`

	Name           string          `json:"name" validate:"required,max=200"`
	Phone          string          `json:"phone" validate:"max=32"`
	Email          string          `json:"email" validate:"omitempty,email"`
	BirthDate      *time.Time      `json:"birth_date"`
	EnrollmentDate *time.Time      `json:"enrollment_date"`
	MonthlyFee     decimal.Decimal `json:"monthly_fee"`
	ClassIDs       []string        `json:"class_ids"`
	Active         bool            `json:"active"`
}

// SaveStudentResult is the stored student.
type SaveStudentResult struct {
	Student *student.Student
	Created bool
}

// SaveStudentHandler handles SaveStudentCommand.
type SaveStudentHandler struct {
	studentRepo    student.Repository
	eventPublisher shared.EventPublisher
	log            *logger.Logger
}

// NewSaveStudentHandler creates the handler.
func NewSaveStudentHandler(studentRepo student.Repository, eventPublisher shared.EventPublisher, log *logger.Logger) *SaveStudentHandler {
	if log == nil {
		log = logger.Default()
	}
	return &SaveStudentHandler{
		studentRepo:    studentRepo,
		eventPublisher: eventPublisher,
		log:            log.With(logger.Component("save_student")),
	}
}

func dayPtr(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	d := timeutil.StartOfDay(*t)
	return &d
}

// Handle executes the command.
func (h *SaveStudentHandler) Handle(ctx context.Context, cmd SaveStudentCommand) (*SaveStudentResult, error) {
	if err := validation.Struct("student", "Save", cmd); err != nil {
		return nil, err
	}

	created := cmd.ID == ""
	id := cmd.ID
	if created {
		id = uuid.NewString()
	}

	s, err := student.NewStudent(student.NewStudentParams{
		ID:             id,
		Name:           cmd.Name,
		Phone:          cmd.Phone,
		Email:          cmd.Email,
		BirthDate:      dayPtr(cmd.BirthDate),
		EnrollmentDate: dayPtr(cmd.EnrollmentDate),
		MonthlyFee:     cmd.MonthlyFee,
		ClassIDs:       cmd.ClassIDs,
		Inactive:       !cmd.Active,
	})
	if err != nil {
		return nil, err
	}

	if created {
		if err := h.studentRepo.Create(ctx, s); err != nil {
			return nil, fmt.Errorf("save_student: create: %w", err)
		}
	} else {
		existing, err := h.studentRepo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		s.CreatedAt = existing.CreatedAt
		if err := h.studentRepo.Update(ctx, s); err != nil {
			return nil, fmt.Errorf("save_student: update: %w", err)
		}
	}

	h.log.Info("student saved",
		logger.StudentID(s.ID),
		logger.Bool("created", created),
		logger.Bool("active", s.Active),
		logger.Count(s.EnrolledClassIDs.Len()),
	)

	if err := h.eventPublisher.Publish(shared.NewStudentSavedEvent(s.ID, s.Name, s.Active, created)); err != nil {
		h.log.Warn("failed to publish student event", logger.StudentID(s.ID), logger.Err(err))
	}

	return &SaveStudentResult{Student: s, Created: created}, nil
}
