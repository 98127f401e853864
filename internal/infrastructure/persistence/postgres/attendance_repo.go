package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/attendance"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLASS REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// ClassRepository implements attendance.ClassRepository for PostgreSQL.
type ClassRepository struct {
	conn *Connection
}

// NewClassRepository creates a new ClassRepository.
func NewClassRepository(conn *Connection) *ClassRepository {
	return &ClassRepository{conn: conn}
}

const selectClasses = `
	SELECT id, name, instructor, days, start_minute, end_minute, capacity,
		   monthly_fee::text, created_at, updated_at
	FROM dance_classes
`

// Create stores a new class.
func (r *ClassRepository) Create(ctx context.Context, c *attendance.DanceClass) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO dance_classes (
			id, name, instructor, days, start_minute, end_minute, capacity,
			monthly_fee, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9, $10)
	`,
		c.ID,
		c.Name,
		c.Instructor,
		weekdaysArg(c.Days),
		int(c.StartTime),
		int(c.EndTime),
		c.Capacity,
		c.MonthlyFee.String(),
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.NewDomainError("attendance", "CreateClass", shared.ErrAlreadyExists, "class already exists")
		}
		return fmt.Errorf("failed to create class: %w", err)
	}
	return nil
}

// GetByID returns a class by id.
func (r *ClassRepository) GetByID(ctx context.Context, id string) (*attendance.DanceClass, error) {
	c, err := scanClass(r.conn.QueryRow(ctx, selectClasses+` WHERE id = $1`, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrClassNotFound
		}
		return nil, fmt.Errorf("failed to get class: %w", err)
	}
	return c, nil
}

// Update overwrites a class.
func (r *ClassRepository) Update(ctx context.Context, c *attendance.DanceClass) error {
	result, err := r.conn.Exec(ctx, `
		UPDATE dance_classes SET
			name = $1,
			instructor = $2,
			days = $3,
			start_minute = $4,
			end_minute = $5,
			capacity = $6,
			monthly_fee = $7::numeric,
			updated_at = $8
		WHERE id = $9
	`,
		c.Name,
		c.Instructor,
		weekdaysArg(c.Days),
		int(c.StartTime),
		int(c.EndTime),
		c.Capacity,
		c.MonthlyFee.String(),
		time.Now().UTC(),
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update class: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrClassNotFound
	}
	return nil
}

// List returns every class ordered by name.
func (r *ClassRepository) List(ctx context.Context) ([]*attendance.DanceClass, error) {
	rows, err := r.conn.Query(ctx, selectClasses+` ORDER BY lower(name), id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list classes: %w", err)
	}
	defer rows.Close()

	var classes []*attendance.DanceClass
	for rows.Next() {
		c, err := scanClass(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan class: %w", err)
		}
		classes = append(classes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return classes, nil
}

func weekdaysArg(days []time.Weekday) []int16 {
	out := make([]int16, len(days))
	for i, d := range days {
		out[i] = int16(d)
	}
	return out
}

func scanClass(row rowScanner) (*attendance.DanceClass, error) {
	var (
		c          attendance.DanceClass
		days       []int16
		start, end int
		fee        string
	)

	err := row.Scan(&c.ID, &c.Name, &c.Instructor, &days, &start, &end, &c.Capacity, &fee, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	c.MonthlyFee, err = parseAmount(fee)
	if err != nil {
		return nil, err
	}
	c.StartTime = attendance.TimeOfDay(start)
	c.EndTime = attendance.TimeOfDay(end)
	c.Days = make([]time.Weekday, len(days))
	for i, d := range days {
		c.Days[i] = time.Weekday(d)
	}

	return &c, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// RECORD REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// RecordRepository implements attendance.RecordRepository for PostgreSQL.
type RecordRepository struct {
	conn *Connection
}

// NewRecordRepository creates a new RecordRepository.
func NewRecordRepository(conn *Connection) *RecordRepository {
	return &RecordRepository{conn: conn}
}

const selectRecords = `
	SELECT id, class_id, taken_on, present_student_ids, created_at, updated_at
	FROM attendance_records
`

// Upsert stores a roll call. A second roll call for the same class and date
// replaces the present list and keeps the original id.
func (r *RecordRepository) Upsert(ctx context.Context, rec *attendance.Record) (*attendance.Record, error) {
	row := r.conn.QueryRow(ctx, `
		INSERT INTO attendance_records (id, class_id, taken_on, present_student_ids, created_at, updated_at)
		VALUES ($1, $2, $3::date, $4, $5, $6)
		ON CONFLICT (class_id, taken_on) DO UPDATE SET
			present_student_ids = EXCLUDED.present_student_ids,
			updated_at = EXCLUDED.updated_at
		RETURNING id, class_id, taken_on, present_student_ids, created_at, updated_at
	`,
		rec.ID,
		rec.ClassID,
		dateArg(rec.Date),
		rec.PresentIDs(),
		rec.CreatedAt,
		rec.UpdatedAt,
	)

	stored, err := scanRecord(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert attendance: %w", err)
	}
	return &stored, nil
}

// GetByClassAndDate returns the roll call of one session.
func (r *RecordRepository) GetByClassAndDate(ctx context.Context, classID string, date time.Time) (*attendance.Record, error) {
	rec, err := scanRecord(r.conn.QueryRow(ctx,
		selectRecords+` WHERE class_id = $1 AND taken_on = $2::date`,
		classID, dateArg(date),
	))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.NewDomainError("attendance", "GetRecord", shared.ErrNotFound, "attendance record not found")
		}
		return nil, fmt.Errorf("failed to get attendance: %w", err)
	}
	return &rec, nil
}

// List returns every record, newest first.
func (r *RecordRepository) List(ctx context.Context) ([]attendance.Record, error) {
	return r.query(ctx, selectRecords+` ORDER BY taken_on DESC, class_id`)
}

// ListByClasses returns the records of the given classes, newest first.
func (r *RecordRepository) ListByClasses(ctx context.Context, classIDs []string) ([]attendance.Record, error) {
	if len(classIDs) == 0 {
		return nil, nil
	}
	return r.query(ctx, selectRecords+` WHERE class_id = ANY($1) ORDER BY taken_on DESC, class_id`, classIDs)
}

func (r *RecordRepository) query(ctx context.Context, sql string, args ...interface{}) ([]attendance.Record, error) {
	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance: %w", err)
	}
	defer rows.Close()

	var records []attendance.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attendance: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return records, nil
}

func scanRecord(row rowScanner) (attendance.Record, error) {
	var (
		rec     attendance.Record
		present []string
	)

	if err := row.Scan(&rec.ID, &rec.ClassID, &rec.Date, &present, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return attendance.Record{}, err
	}

	updatedAt := rec.UpdatedAt
	rec.Date = studioDate(rec.Date)
	rec.ReplacePresent(present)
	rec.UpdatedAt = updatedAt
	return rec, nil
}
