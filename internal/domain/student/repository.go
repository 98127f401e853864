package student

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Implementations live in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository defines storage operations for students.
type Repository interface {
	// Create stores a new student.
	// Returns shared.ErrStudentAlreadyExists when the id is taken.
	Create(ctx context.Context, student *Student) error

	// GetByID returns a student by id.
	// Returns shared.ErrStudentNotFound when missing.
	GetByID(ctx context.Context, id string) (*Student, error)

	// Update overwrites the student's data and enrollments.
	// Returns shared.ErrStudentNotFound when missing.
	Update(ctx context.Context, student *Student) error

	// List returns a full snapshot of students.
	List(ctx context.Context, opts ListOptions) ([]*Student, error)

	// ListByClass returns students enrolled in a class.
	ListByClass(ctx context.Context, classID string) ([]*Student, error)

	// Exists checks whether a student with the id exists.
	Exists(ctx context.Context, id string) (bool, error)
}

// ListOptions controls which students are listed.
type ListOptions struct {
	// IncludeInactive also returns inactive students.
	IncludeInactive bool
}

// DefaultListOptions returns the default options (active students only).
func DefaultListOptions() ListOptions {
	return ListOptions{}
}

// WithInactive includes inactive students.
func (o ListOptions) WithInactive() ListOptions {
	o.IncludeInactive = true
	return o
}
