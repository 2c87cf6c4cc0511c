package promo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const promoColumns = `id, code, discount_type, discount_value, expired_at, is_used, used_at,
		created_at, updated_at, deleted_at`

// Repository defines promo code data access interface
type Repository interface {
	Create(ctx context.Context, p *PromoCode) error
	GetByID(ctx context.Context, id uuid.UUID) (*PromoCode, error)
	GetEligibleByCode(ctx context.Context, code string, now time.Time) (*PromoCode, error)
	GetTermsAt(ctx context.Context, code string, at time.Time) (*PromoCode, error)
	List(ctx context.Context, filter ListFilter) ([]PromoCode, int, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
	MarkUsed(ctx context.Context, code string) (bool, error)
}

// ListFilter narrows the admin listing
type ListFilter struct {
	IncludeDeleted bool
	Limit          int
	Offset         int
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates new promo code repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

// Create inserts a promo code
func (r *repository) Create(ctx context.Context, p *PromoCode) error {
	query := `
		INSERT INTO promo_codes (id, code, discount_type, discount_value, expired_at, is_used, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.Code, p.DiscountType, p.DiscountValue, p.ExpiredAt, p.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrCodeExists
		}
		return fmt.Errorf("promo repository create: %w", err)
	}
	return nil
}

// GetByID returns a promo code including soft-deleted ones, or nil if there is none
func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*PromoCode, error) {
	return r.get(ctx, `SELECT `+promoColumns+` FROM promo_codes WHERE id = $1`, id)
}

// GetEligibleByCode returns the code only if it is unused, unexpired and not deleted
func (r *repository) GetEligibleByCode(ctx context.Context, code string, now time.Time) (*PromoCode, error) {
	return r.get(ctx, `
		SELECT `+promoColumns+`
		FROM promo_codes
		WHERE code = $1 AND is_used = FALSE AND deleted_at IS NULL AND expired_at > $2
	`, code, now)
}

// GetTermsAt returns the code that was live at the given time, ignoring usage,
// expiry and deletion. Used to re-price an existing transaction.
func (r *repository) GetTermsAt(ctx context.Context, code string, at time.Time) (*PromoCode, error) {
	return r.get(ctx, `
		SELECT `+promoColumns+`
		FROM promo_codes
		WHERE code = $1 AND created_at <= $2
		ORDER BY created_at DESC
		LIMIT 1
	`, code, at)
}

func (r *repository) get(ctx context.Context, query string, args ...interface{}) (*PromoCode, error) {
	var p PromoCode
	err := r.db.GetContext(ctx, &p, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("promo repository get: %w", err)
	}
	return &p, nil
}

// List returns promo codes, newest first, with the total count
func (r *repository) List(ctx context.Context, filter ListFilter) ([]PromoCode, int, error) {
	where := "WHERE deleted_at IS NULL"
	if filter.IncludeDeleted {
		where = ""
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM promo_codes `+where); err != nil {
		return nil, 0, fmt.Errorf("promo repository count: %w", err)
	}

	codes := []PromoCode{}
	query := `SELECT ` + promoColumns + ` FROM promo_codes ` + where + ` ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	if err := r.db.SelectContext(ctx, &codes, query, filter.Limit, filter.Offset); err != nil {
		return nil, 0, fmt.Errorf("promo repository list: %w", err)
	}
	return codes, total, nil
}

// SoftDelete marks a promo code deleted
func (r *repository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE promo_codes SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`, id)
	if err != nil {
		return fmt.Errorf("promo repository delete: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkUsed flips the used flag outside of a ledger transaction.
func (r *repository) MarkUsed(ctx context.Context, code string) (bool, error) {
	return MarkUsed(ctx, r.db, code)
}

// MarkUsed flips the used flag if the code is still unused. It runs on any executor
// so the ledger can consume the code in the same database transaction as its insert.
// Reports false when another purchase consumed the code first.
func MarkUsed(ctx context.Context, exec sqlx.ExecerContext, code string) (bool, error) {
	result, err := exec.ExecContext(ctx, `
		UPDATE promo_codes SET is_used = TRUE, used_at = NOW(), updated_at = NOW()
		WHERE code = $1 AND is_used = FALSE AND deleted_at IS NULL
	`, code)
	if err != nil {
		return false, fmt.Errorf("promo mark used: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}
