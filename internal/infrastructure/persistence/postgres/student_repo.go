package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/shared"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// StudentRepository implements student.Repository for PostgreSQL.
type StudentRepository struct {
	conn *Connection
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(conn *Connection) *StudentRepository {
	return &StudentRepository{conn: conn}
}

const selectStudents = `
	SELECT s.id, s.name, s.phone, s.email, s.birth_date, s.enrollment_date,
		   s.monthly_fee::text, s.active, s.created_at, s.updated_at,
		   COALESCE(array_agg(sc.class_id ORDER BY sc.class_id)
		            FILTER (WHERE sc.class_id IS NOT NULL), '{}') AS class_ids
	FROM students s
	LEFT JOIN student_classes sc ON sc.student_id = s.id
`

// ─────────────────────────────────────────────────────────────────────────────
// CRUD Operations
// ─────────────────────────────────────────────────────────────────────────────

// Create stores a new student together with its enrollments.
func (r *StudentRepository) Create(ctx context.Context, s *student.Student) error {
	query := `
		INSERT INTO students (
			id, name, phone, email, birth_date, enrollment_date,
			monthly_fee, active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5::date, $6::date, $7::numeric, $8, $9, $10)
	`

	return r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, query,
			s.ID,
			s.Name,
			string(s.Phone),
			s.Email,
			nullableDateArg(s.BirthDate),
			nullableDateArg(s.EnrollmentDate),
			s.MonthlyFee.String(),
			s.Active,
			s.CreatedAt,
			s.UpdatedAt,
		)
		if err != nil {
			if IsUniqueViolation(err) {
				return shared.ErrStudentAlreadyExists
			}
			return fmt.Errorf("failed to create student: %w", err)
		}

		return replaceEnrollments(ctx, tx, s.ID, s.EnrolledClassIDs.IDs())
	})
}

// GetByID returns a student by id.
func (r *StudentRepository) GetByID(ctx context.Context, id string) (*student.Student, error) {
	query := selectStudents + ` WHERE s.id = $1 GROUP BY s.id`

	s, err := scanStudent(r.conn.QueryRow(ctx, query, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrStudentNotFound
		}
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	return s, nil
}

// Update overwrites a student and its enrollments.
func (r *StudentRepository) Update(ctx context.Context, s *student.Student) error {
	query := `
		UPDATE students SET
			name = $1,
			phone = $2,
			email = $3,
			birth_date = $4::date,
			enrollment_date = $5::date,
			monthly_fee = $6::numeric,
			active = $7,
			updated_at = $8
		WHERE id = $9
	`

	return r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, query,
			s.Name,
			string(s.Phone),
			s.Email,
			nullableDateArg(s.BirthDate),
			nullableDateArg(s.EnrollmentDate),
			s.MonthlyFee.String(),
			s.Active,
			time.Now().UTC(),
			s.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update student: %w", err)
		}
		if result.RowsAffected() == 0 {
			return shared.ErrStudentNotFound
		}

		return replaceEnrollments(ctx, tx, s.ID, s.EnrolledClassIDs.IDs())
	})
}

// Exists checks whether a student with the id exists.
func (r *StudentRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM students WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check student: %w", err)
	}
	return exists, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Snapshots
// ─────────────────────────────────────────────────────────────────────────────

// List returns every student, active only unless opts says otherwise.
func (r *StudentRepository) List(ctx context.Context, opts student.ListOptions) ([]*student.Student, error) {
	query := selectStudents
	if !opts.IncludeInactive {
		query += ` WHERE s.active`
	}
	query += ` GROUP BY s.id ORDER BY lower(s.name), s.id`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer rows.Close()

	return scanStudents(rows)
}

// ListByClass returns the students enrolled in a class, inactive included.
func (r *StudentRepository) ListByClass(ctx context.Context, classID string) ([]*student.Student, error) {
	query := selectStudents + `
		WHERE s.id IN (SELECT student_id FROM student_classes WHERE class_id = $1)
		GROUP BY s.id ORDER BY lower(s.name), s.id
	`

	rows, err := r.conn.Query(ctx, query, classID)
	if err != nil {
		return nil, fmt.Errorf("failed to list students by class: %w", err)
	}
	defer rows.Close()

	return scanStudents(rows)
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func replaceEnrollments(ctx context.Context, tx pgx.Tx, studentID string, classIDs []string) error {
	if _, err := tx.Exec(ctx, `DELETE FROM student_classes WHERE student_id = $1`, studentID); err != nil {
		return fmt.Errorf("failed to clear enrollments: %w", err)
	}
	if len(classIDs) == 0 {
		return nil
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO student_classes (student_id, class_id)
		SELECT $1, unnest($2::text[])
		ON CONFLICT DO NOTHING
	`, studentID, classIDs)
	if err != nil {
		return fmt.Errorf("failed to store enrollments: %w", err)
	}
	return nil
}

func scanStudent(row rowScanner) (*student.Student, error) {
	var (
		s              student.Student
		phone          string
		birthDate      *time.Time
		enrollmentDate *time.Time
		fee            string
		classIDs       []string
	)

	err := row.Scan(
		&s.ID,
		&s.Name,
		&phone,
		&s.Email,
		&birthDate,
		&enrollmentDate,
		&fee,
		&s.Active,
		&s.CreatedAt,
		&s.UpdatedAt,
		&classIDs,
	)
	if err != nil {
		return nil, err
	}

	s.MonthlyFee, err = parseAmount(fee)
	if err != nil {
		return nil, err
	}
	s.Phone = shared.Phone(phone)
	s.BirthDate = nullableStudioDate(birthDate)
	s.EnrollmentDate = nullableStudioDate(enrollmentDate)
	s.EnrolledClassIDs = student.NewClassSet(classIDs...)

	return &s, nil
}

func scanStudents(rows pgx.Rows) ([]*student.Student, error) {
	var students []*student.Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		students = append(students, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return students, nil
}
