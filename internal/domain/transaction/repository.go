package transaction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/coursehub/coursehub-api/internal/domain/promo"
)

const activePurchaseIndex = "uq_transactions_active_purchase"

const transactionColumns = `t.id, t.code, t.course_id, t.course_type_id, t.student_id, t.type, t.batch_number,
		t.original_price, t.discount, t.final_price, t.promo_code, t.status, t.snap_token, t.redirect_url,
		t.raw_notification, t.paid_at, t.failed_at, t.created_at, t.updated_at`

const detailSelect = `SELECT ` + transactionColumns + `,
		c.title AS course_title, s.full_name AS student_name, s.email AS student_email
	FROM transactions t
	JOIN courses c ON c.id = t.course_id
	JOIN students s ON s.id = t.student_id`

// Repository defines transaction data access interface
type Repository interface {
	Create(ctx context.Context, t *Transaction, consumePromo bool) error
	HasActivePurchase(ctx context.Context, studentID, courseID uuid.UUID) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)
	GetByCode(ctx context.Context, code string) (*Transaction, error)
	GetDetail(ctx context.Context, id uuid.UUID) (*Detail, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, raw JSONRawMessage) (bool, error)
	SaveNotification(ctx context.Context, id uuid.UUID, raw JSONRawMessage) error
	SetSession(ctx context.Context, id uuid.UUID, token, redirectURL string) (bool, error)
	ListByStudent(ctx context.Context, studentID uuid.UUID, limit, offset int) ([]Transaction, int, error)
	List(ctx context.Context, filter ListFilter) ([]Detail, int, error)
}

// ListFilter narrows the admin listing
type ListFilter struct {
	Status Status
	Limit  int
	Offset int
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates new transaction repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

// Create inserts an unpaid transaction. When consumePromo is set the promo code
// is flipped to used in the same database transaction.
func (r *repository) Create(ctx context.Context, t *Transaction, consumePromo bool) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("transaction repository begin: %w", err)
	}
	defer tx.Rollback()

	if consumePromo && t.PromoCode.Valid {
		ok, err := promo.MarkUsed(ctx, tx, t.PromoCode.String)
		if err != nil {
			return err
		}
		if !ok {
			return ErrPromoUnavailable
		}
	}

	query := `
		INSERT INTO transactions (
			id, code, course_id, course_type_id, student_id, type, batch_number,
			original_price, discount, final_price, promo_code, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
	`
	_, err = tx.ExecContext(ctx, query,
		t.ID, t.Code, t.CourseID, t.CourseTypeID, t.StudentID, t.Type, t.BatchNumber,
		t.OriginalPrice, t.Discount, t.FinalPrice, t.PromoCode, t.Status, t.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" && pqErr.Constraint == activePurchaseIndex {
			return ErrDuplicatePurchase
		}
		return fmt.Errorf("transaction repository create: %w", err)
	}

	return tx.Commit()
}

// HasActivePurchase reports whether a non-failed transaction links the student and course
func (r *repository) HasActivePurchase(ctx context.Context, studentID, courseID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS(
			SELECT 1 FROM transactions
			WHERE student_id = $1 AND course_id = $2 AND status <> 'failed'
		)
	`, studentID, courseID)
	if err != nil {
		return false, fmt.Errorf("transaction repository active purchase: %w", err)
	}
	return exists, nil
}

// GetByID returns transaction by ID, or nil if there is none
func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	return r.get(ctx, `SELECT `+transactionColumns+` FROM transactions t WHERE t.id = $1`, id)
}

// GetByCode returns transaction by gateway order id, or nil if there is none
func (r *repository) GetByCode(ctx context.Context, code string) (*Transaction, error) {
	return r.get(ctx, `SELECT `+transactionColumns+` FROM transactions t WHERE t.code = $1`, code)
}

func (r *repository) get(ctx context.Context, query string, args ...interface{}) (*Transaction, error) {
	var t Transaction
	err := r.db.GetContext(ctx, &t, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("transaction repository get: %w", err)
	}
	return &t, nil
}

// GetDetail returns transaction with display data, or nil if there is none
func (r *repository) GetDetail(ctx context.Context, id uuid.UUID) (*Detail, error) {
	var d Detail
	err := r.db.GetContext(ctx, &d, detailSelect+` WHERE t.id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("transaction repository detail: %w", err)
	}
	return &d, nil
}

// UpdateStatus moves the transaction from one status to another.
// It is a compare-and-set: reports false when the row is no longer in status from.
func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, raw JSONRawMessage) (bool, error) {
	now := time.Now()
	var paidAt, failedAt sql.NullTime
	switch to {
	case StatusPaid:
		paidAt = sql.NullTime{Time: now, Valid: true}
	case StatusFailed:
		failedAt = sql.NullTime{Time: now, Valid: true}
	}

	query := `
		UPDATE transactions SET
			status = $3,
			paid_at = COALESCE($4, paid_at),
			failed_at = COALESCE($5, failed_at),
			raw_notification = COALESCE($6, raw_notification),
			updated_at = $7
		WHERE id = $1 AND status = $2
	`
	result, err := r.db.ExecContext(ctx, query, id, from, to, paidAt, failedAt, raw, now)
	if err != nil {
		return false, fmt.Errorf("transaction repository update status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// SaveNotification stores the last authenticated gateway callback
func (r *repository) SaveNotification(ctx context.Context, id uuid.UUID, raw JSONRawMessage) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET raw_notification = $2, updated_at = NOW() WHERE id = $1
	`, id, raw)
	if err != nil {
		return fmt.Errorf("transaction repository save notification: %w", err)
	}
	return nil
}

// SetSession stores the gateway session on a transaction that is still unpaid
func (r *repository) SetSession(ctx context.Context, id uuid.UUID, token, redirectURL string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET snap_token = $2, redirect_url = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'unpaid'
	`, id, token, redirectURL)
	if err != nil {
		return false, fmt.Errorf("transaction repository set session: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// ListByStudent returns the student's transactions, newest first
func (r *repository) ListByStudent(ctx context.Context, studentID uuid.UUID, limit, offset int) ([]Transaction, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM transactions WHERE student_id = $1`, studentID); err != nil {
		return nil, 0, fmt.Errorf("transaction repository count: %w", err)
	}

	items := []Transaction{}
	query := `SELECT ` + transactionColumns + ` FROM transactions t
		WHERE t.student_id = $1 ORDER BY t.created_at DESC LIMIT $2 OFFSET $3`
	if err := r.db.SelectContext(ctx, &items, query, studentID, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("transaction repository list by student: %w", err)
	}
	return items, total, nil
}

// List returns transactions for the back office, newest first
func (r *repository) List(ctx context.Context, filter ListFilter) ([]Detail, int, error) {
	where := ""
	args := []interface{}{}
	if filter.Status != "" {
		where = " WHERE t.status = $1"
		args = append(args, filter.Status)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM transactions t`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("transaction repository count: %w", err)
	}

	n := len(args)
	query := detailSelect + where + fmt.Sprintf(" ORDER BY t.created_at DESC LIMIT $%d OFFSET $%d", n+1, n+2)
	args = append(args, filter.Limit, filter.Offset)

	items := []Detail{}
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("transaction repository list: %w", err)
	}
	return items, total, nil
}
