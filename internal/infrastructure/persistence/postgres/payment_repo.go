package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/billing"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/shared"
)

// PaymentRepository implements billing.PaymentRepository for PostgreSQL.
type PaymentRepository struct {
	conn *Connection
}

// NewPaymentRepository creates a new PaymentRepository.
func NewPaymentRepository(conn *Connection) *PaymentRepository {
	return &PaymentRepository{conn: conn}
}

const selectPayments = `
	SELECT id, student_id, paid_on, amount::text, concept, method, created_at
	FROM payments
`

// Create appends a payment.
func (r *PaymentRepository) Create(ctx context.Context, p *billing.Payment) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO payments (id, student_id, paid_on, amount, concept, method, created_at)
		VALUES ($1, $2, $3::date, $4::numeric, $5, $6, $7)
	`,
		p.ID,
		p.StudentID,
		dateArg(p.Date),
		p.Amount.String(),
		p.Concept,
		string(p.Method),
		p.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.NewDomainError("billing", "Record", shared.ErrAlreadyExists, "payment already exists")
		}
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// GetByID returns a payment by id.
func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*billing.Payment, error) {
	p, err := scanPayment(r.conn.QueryRow(ctx, selectPayments+` WHERE id = $1`, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &p, nil
}

// Update applies an admin correction to a payment.
func (r *PaymentRepository) Update(ctx context.Context, p *billing.Payment) error {
	result, err := r.conn.Exec(ctx, `
		UPDATE payments SET
			student_id = $1,
			paid_on = $2::date,
			amount = $3::numeric,
			concept = $4,
			method = $5
		WHERE id = $6
	`,
		p.StudentID,
		dateArg(p.Date),
		p.Amount.String(),
		p.Concept,
		string(p.Method),
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrPaymentNotFound
	}
	return nil
}

// List returns every payment, oldest first.
func (r *PaymentRepository) List(ctx context.Context) ([]billing.Payment, error) {
	return r.query(ctx, selectPayments+` ORDER BY paid_on, created_at, id`)
}

// ListByStudent returns the payments of a student, oldest first.
func (r *PaymentRepository) ListByStudent(ctx context.Context, studentID string) ([]billing.Payment, error) {
	return r.query(ctx, selectPayments+` WHERE student_id = $1 ORDER BY paid_on, created_at, id`, studentID)
}

// ListBetween returns payments dated in [from, to), oldest first.
func (r *PaymentRepository) ListBetween(ctx context.Context, from, to time.Time) ([]billing.Payment, error) {
	return r.query(ctx,
		selectPayments+` WHERE paid_on >= $1::date AND paid_on < $2::date ORDER BY paid_on, created_at, id`,
		dateArg(from), dateArg(to),
	)
}

func (r *PaymentRepository) query(ctx context.Context, sql string, args ...interface{}) ([]billing.Payment, error) {
	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	return scanPayments(rows)
}

func scanPayment(row rowScanner) (billing.Payment, error) {
	var (
		p      billing.Payment
		amount string
		method string
	)

	if err := row.Scan(&p.ID, &p.StudentID, &p.Date, &amount, &p.Concept, &method, &p.CreatedAt); err != nil {
		return billing.Payment{}, err
	}

	var err error
	p.Amount, err = parseAmount(amount)
	if err != nil {
		return billing.Payment{}, err
	}
	p.Date = studioDate(p.Date)
	p.Method = billing.Method(method)

	return p, nil
}

func scanPayments(rows pgx.Rows) ([]billing.Payment, error) {
	var payments []billing.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return payments, nil
}
