package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// Repository reads transaction aggregates
type Repository interface {
	CountByStatus(ctx context.Context, status string) (int, error)
	PaidRevenue(ctx context.Context, since time.Time) (decimal.Decimal, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates dashboard repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CountByStatus(ctx context.Context, status string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM transactions WHERE status = $1`, status); err != nil {
		return 0, fmt.Errorf("dashboard count %s: %w", status, err)
	}
	return count, nil
}

// PaidRevenue sums final prices of transactions paid at or after since. A zero since means all time.
func (r *repository) PaidRevenue(ctx context.Context, since time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.GetContext(ctx, &total, `
		SELECT COALESCE(SUM(final_price), 0) FROM transactions
		WHERE status = 'paid' AND paid_at >= $1
	`, since)
	if err != nil {
		return decimal.Zero, fmt.Errorf("dashboard revenue: %w", err)
	}
	return total, nil
}
