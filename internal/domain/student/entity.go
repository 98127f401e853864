package student

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// ClassSet is the set of class ids a student is enrolled in.
type ClassSet map[string]struct{}

// NewClassSet builds a set from a list of ids, skipping blanks and duplicates.
func NewClassSet(ids ...string) ClassSet {
	set := make(ClassSet, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		set[id] = struct{}{}
	}
	return set
}

// Has reports whether the set contains the class id.
func (c ClassSet) Has(id string) bool {
	_, ok := c[id]
	return ok
}

// Len returns the number of classes.
func (c ClassSet) Len() int {
	return len(c)
}

// IDs returns the class ids in sorted order.
func (c ClassSet) IDs() []string {
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: STUDENT
// ══════════════════════════════════════════════════════════════════════════════

// Student is a person taking classes at the studio.
type Student struct {
	// ID is the internal identifier (UUID string).
	ID string

	Name  string
	Phone shared.Phone
	Email string

	// BirthDate is optional; nil when unknown or unparseable.
	BirthDate *time.Time

	// EnrollmentDate is optional. A student without it is never billed.
	EnrollmentDate *time.Time

	// MonthlyFee is the expected amount per calendar month. Never negative.
	MonthlyFee decimal.Decimal

	Active bool

	// EnrolledClassIDs is membership only.
	EnrolledClassIDs ClassSet

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewStudentParams holds the input for creating a student.
type NewStudentParams struct {
	ID             string
	Name           string
	Phone          string
	Email          string
	BirthDate      *time.Time
	EnrollmentDate *time.Time
	MonthlyFee     decimal.Decimal
	ClassIDs       []string
	Inactive       bool
}

// NewStudent creates a student after validating its fields.
func NewStudent(params NewStudentParams) (*Student, error) {
	if strings.TrimSpace(params.ID) == "" {
		return nil, shared.NewDomainError("student", "Create", shared.ErrInvalidID, "student id is required")
	}

	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, shared.ErrInvalidStudentName
	}

	if params.MonthlyFee.IsNegative() {
		return nil, shared.ErrNegativeFee
	}

	now := time.Now().UTC()

	return &Student{
		ID:               params.ID,
		Name:             name,
		Phone:            shared.Phone(strings.TrimSpace(params.Phone)),
		Email:            strings.TrimSpace(params.Email),
		BirthDate:        params.BirthDate,
		EnrollmentDate:   params.EnrollmentDate,
		MonthlyFee:       params.MonthlyFee,
		Active:           !params.Inactive,
		EnrolledClassIDs: NewClassSet(params.ClassIDs...),
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS
// ══════════════════════════════════════════════════════════════════════════════

// IsBillable reports whether the student takes part in fee reconciliation.
// Students without enrollment date, with a zero fee or inactive are skipped.
func (s *Student) IsBillable() bool {
	return s.Active && s.EnrollmentDate != nil && s.MonthlyFee.IsPositive()
}

// EnrolledIn reports whether the student is enrolled in the class.
func (s *Student) EnrolledIn(classID string) bool {
	return s.EnrolledClassIDs.Has(classID)
}

// HasPhone reports whether a reminder can be sent to the student.
func (s *Student) HasPhone() bool {
	return s.Phone.IsPresent()
}

// Age returns the age in whole years at the given date, or -1 when the birth
// date is unknown.
func (s *Student) Age(at time.Time) int {
	if s.BirthDate == nil {
		return -1
	}
	b := *s.BirthDate
	age := at.Year() - b.Year()
	if at.Month() < b.Month() || (at.Month() == b.Month() && at.Day() < b.Day()) {
		age--
	}
	if age < 0 {
		return -1
	}
	return age
}

// Deactivate marks the student as no longer attending.
func (s *Student) Deactivate() {
	s.Active = false
	s.UpdatedAt = time.Now().UTC()
}

// Activate marks the student as attending again.
func (s *Student) Activate() {
	s.Active = true
	s.UpdatedAt = time.Now().UTC()
}

// Enroll adds the student to a class. Enrolling twice is a no-op.
func (s *Student) Enroll(classID string) {
	if s.EnrolledClassIDs == nil {
		s.EnrolledClassIDs = NewClassSet()
	}
	classID = strings.TrimSpace(classID)
	if classID == "" {
		return
	}
	s.EnrolledClassIDs[classID] = struct{}{}
	s.UpdatedAt = time.Now().UTC()
}

// Unenroll removes the student from a class.
func (s *Student) Unenroll(classID string) {
	delete(s.EnrolledClassIDs, classID)
	s.UpdatedAt = time.Now().UTC()
}

// ChangeFee updates the monthly fee.
func (s *Student) ChangeFee(fee decimal.Decimal) error {
	if fee.IsNegative() {
		return shared.ErrNegativeFee
	}
	s.MonthlyFee = fee
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// ByName sorts students alphabetically, case-insensitive.
func ByName(students []*Student) {
	sort.SliceStable(students, func(i, j int) bool {
		return strings.ToLower(students[i].Name) < strings.ToLower(students[j].Name)
	})
}
