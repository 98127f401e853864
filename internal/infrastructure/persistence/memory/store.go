// Package memory holds in-process repositories. They back the service when no
// database is configured (local development, demos) and serve as fakes in
// application tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/attendance"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/billing"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/shared"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/student"
	"github.com/LitoFortuna/XDS-ERP-sub000/pkg/timeutil"
)

// Store groups the four repositories over one lock.
type Store struct {
	mu       sync.RWMutex
	students map[string]*student.Student
	payments []billing.Payment
	classes  map[string]*attendance.DanceClass
	records  map[string]*attendance.Record // keyed by class id and date
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		students: make(map[string]*student.Student),
		classes:  make(map[string]*attendance.DanceClass),
		records:  make(map[string]*attendance.Record),
	}
}

// Students returns the student repository.
func (s *Store) Students() *StudentRepository { return &StudentRepository{s} }

// Payments returns the payment repository.
func (s *Store) Payments() *PaymentRepository { return &PaymentRepository{s} }

// Classes returns the class repository.
func (s *Store) Classes() *ClassRepository { return &ClassRepository{s} }

// Records returns the attendance record repository.
func (s *Store) Records() *RecordRepository { return &RecordRepository{s} }

// ══════════════════════════════════════════════════════════════════════════════
// STUDENTS
// ══════════════════════════════════════════════════════════════════════════════

// StudentRepository implements student.Repository.
type StudentRepository struct{ s *Store }

var _ student.Repository = (*StudentRepository)(nil)

func cloneStudent(in *student.Student) *student.Student {
	out := *in
	out.EnrolledClassIDs = student.NewClassSet(in.EnrolledClassIDs.IDs()...)
	return &out
}

// Create implements student.Repository.
func (r *StudentRepository) Create(_ context.Context, st *student.Student) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.students[st.ID]; ok {
		return shared.ErrStudentAlreadyExists
	}
	r.s.students[st.ID] = cloneStudent(st)
	return nil
}

// GetByID implements student.Repository.
func (r *StudentRepository) GetByID(_ context.Context, id string) (*student.Student, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	st, ok := r.s.students[id]
	if !ok {
		return nil, shared.ErrStudentNotFound
	}
	return cloneStudent(st), nil
}

// Update implements student.Repository.
func (r *StudentRepository) Update(_ context.Context, st *student.Student) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.students[st.ID]; !ok {
		return shared.ErrStudentNotFound
	}
	r.s.students[st.ID] = cloneStudent(st)
	return nil
}

// List implements student.Repository. Students are sorted by name.
func (r *StudentRepository) List(_ context.Context, opts student.ListOptions) ([]*student.Student, error) {
	return r.filter(func(st *student.Student) bool {
		return opts.IncludeInactive || st.Active
	}), nil
}

// ListByClass implements student.Repository.
func (r *StudentRepository) ListByClass(_ context.Context, classID string) ([]*student.Student, error) {
	return r.filter(func(st *student.Student) bool {
		return st.EnrolledIn(classID)
	}), nil
}

// Exists implements student.Repository.
func (r *StudentRepository) Exists(_ context.Context, id string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	_, ok := r.s.students[id]
	return ok, nil
}

func (r *StudentRepository) filter(keep func(*student.Student) bool) []*student.Student {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*student.Student, 0, len(r.s.students))
	for _, st := range r.s.students {
		if keep(st) {
			out = append(out, cloneStudent(st))
		}
	}
	student.ByName(out)
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// PAYMENTS
// ══════════════════════════════════════════════════════════════════════════════

// PaymentRepository implements billing.PaymentRepository.
type PaymentRepository struct{ s *Store }

var _ billing.PaymentRepository = (*PaymentRepository)(nil)

// Create implements billing.PaymentRepository.
func (r *PaymentRepository) Create(_ context.Context, p *billing.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.payments {
		if existing.ID == p.ID {
			return shared.NewDomainError("billing", "Create", shared.ErrAlreadyExists, "payment already exists")
		}
	}
	r.s.payments = append(r.s.payments, *p)
	return nil
}

// GetByID implements billing.PaymentRepository.
func (r *PaymentRepository) GetByID(_ context.Context, id string) (*billing.Payment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, p := range r.s.payments {
		if p.ID == id {
			out := p
			return &out, nil
		}
	}
	return nil, shared.ErrPaymentNotFound
}

// Update implements billing.PaymentRepository.
func (r *PaymentRepository) Update(_ context.Context, p *billing.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for i := range r.s.payments {
		if r.s.payments[i].ID == p.ID {
			r.s.payments[i] = *p
			return nil
		}
	}
	return shared.ErrPaymentNotFound
}

// List implements billing.PaymentRepository.
func (r *PaymentRepository) List(_ context.Context) ([]billing.Payment, error) {
	return r.filter(func(billing.Payment) bool { return true }), nil
}

// ListByStudent implements billing.PaymentRepository.
func (r *PaymentRepository) ListByStudent(_ context.Context, studentID string) ([]billing.Payment, error) {
	return r.filter(func(p billing.Payment) bool { return p.StudentID == studentID }), nil
}

// ListBetween implements billing.PaymentRepository.
func (r *PaymentRepository) ListBetween(_ context.Context, from, to time.Time) ([]billing.Payment, error) {
	return r.filter(func(p billing.Payment) bool {
		return !p.Date.Before(from) && p.Date.Before(to)
	}), nil
}

func (r *PaymentRepository) filter(keep func(billing.Payment) bool) []billing.Payment {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]billing.Payment, 0, len(r.s.payments))
	for _, p := range r.s.payments {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// CLASSES
// ══════════════════════════════════════════════════════════════════════════════

// ClassRepository implements attendance.ClassRepository.
type ClassRepository struct{ s *Store }

var _ attendance.ClassRepository = (*ClassRepository)(nil)

func cloneClass(in *attendance.DanceClass) *attendance.DanceClass {
	out := *in
	out.Days = append([]time.Weekday(nil), in.Days...)
	return &out
}

// Create implements attendance.ClassRepository.
func (r *ClassRepository) Create(_ context.Context, c *attendance.DanceClass) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.classes[c.ID]; ok {
		return shared.NewDomainError("attendance", "CreateClass", shared.ErrAlreadyExists, "class already exists")
	}
	r.s.classes[c.ID] = cloneClass(c)
	return nil
}

// GetByID implements attendance.ClassRepository.
func (r *ClassRepository) GetByID(_ context.Context, id string) (*attendance.DanceClass, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.classes[id]
	if !ok {
		return nil, shared.ErrClassNotFound
	}
	return cloneClass(c), nil
}

// Update implements attendance.ClassRepository.
func (r *ClassRepository) Update(_ context.Context, c *attendance.DanceClass) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.classes[c.ID]; !ok {
		return shared.ErrClassNotFound
	}
	r.s.classes[c.ID] = cloneClass(c)
	return nil
}

// List implements attendance.ClassRepository. Classes are sorted by name.
func (r *ClassRepository) List(_ context.Context) ([]*attendance.DanceClass, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*attendance.DanceClass, 0, len(r.s.classes))
	for _, c := range r.s.classes {
		out = append(out, cloneClass(c))
	}
	sort.Slice(out, func(i, j int) bool {
		if a, b := strings.ToLower(out[i].Name), strings.ToLower(out[j].Name); a != b {
			return a < b
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE RECORDS
// ══════════════════════════════════════════════════════════════════════════════

// RecordRepository implements attendance.RecordRepository.
type RecordRepository struct{ s *Store }

var _ attendance.RecordRepository = (*RecordRepository)(nil)

func sessionKey(classID string, date time.Time) string {
	return classID + "|" + timeutil.FormatDateStr(date)
}

func cloneRecord(in *attendance.Record) attendance.Record {
	out := *in
	out.Present = make(map[string]struct{}, len(in.Present))
	for id := range in.Present {
		out.Present[id] = struct{}{}
	}
	return out
}

// Upsert implements attendance.RecordRepository. A second roll call of the
// same session keeps the first record's id and creation time.
func (r *RecordRepository) Upsert(_ context.Context, rec *attendance.Record) (*attendance.Record, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := sessionKey(rec.ClassID, rec.Date)
	stored := cloneRecord(rec)
	if existing, ok := r.s.records[key]; ok {
		stored.ID = existing.ID
		stored.CreatedAt = existing.CreatedAt
		stored.UpdatedAt = time.Now().UTC()
	}
	r.s.records[key] = &stored

	out := cloneRecord(&stored)
	return &out, nil
}

// GetByClassAndDate implements attendance.RecordRepository.
func (r *RecordRepository) GetByClassAndDate(_ context.Context, classID string, date time.Time) (*attendance.Record, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rec, ok := r.s.records[sessionKey(classID, date)]
	if !ok {
		return nil, shared.NewDomainError("attendance", "GetRecord", shared.ErrNotFound, "attendance record not found")
	}
	out := cloneRecord(rec)
	return &out, nil
}

// List implements attendance.RecordRepository.
func (r *RecordRepository) List(_ context.Context) ([]attendance.Record, error) {
	return r.filter(func(*attendance.Record) bool { return true }), nil
}

// ListByClasses implements attendance.RecordRepository.
func (r *RecordRepository) ListByClasses(_ context.Context, classIDs []string) ([]attendance.Record, error) {
	want := make(map[string]bool, len(classIDs))
	for _, id := range classIDs {
		want[id] = true
	}
	return r.filter(func(rec *attendance.Record) bool { return want[rec.ClassID] }), nil
}

func (r *RecordRepository) filter(keep func(*attendance.Record) bool) []attendance.Record {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]attendance.Record, 0, len(r.s.records))
	for _, rec := range r.s.records {
		if keep(rec) {
			out = append(out, cloneRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ClassID < out[j].ClassID
	})
	return out
}
