package promo

import (
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coursehub/coursehub-api/internal/domain/pricing"
)

// PromoCode is a single-use discount voucher
type PromoCode struct {
	ID            uuid.UUID            `db:"id"`
	Code          string               `db:"code"`
	DiscountType  pricing.DiscountType `db:"discount_type"`
	DiscountValue decimal.Decimal      `db:"discount_value"`
	ExpiredAt     time.Time            `db:"expired_at"`
	IsUsed        bool                 `db:"is_used"`
	UsedAt        sql.NullTime         `db:"used_at"`
	CreatedAt     time.Time            `db:"created_at"`
	UpdatedAt     time.Time            `db:"updated_at"`
	DeletedAt     sql.NullTime         `db:"deleted_at"`
}

// Eligible reports whether the code can still be applied at now.
func (p *PromoCode) Eligible(now time.Time) bool {
	return !p.IsUsed && !p.DeletedAt.Valid && now.Before(p.ExpiredAt)
}

// Discount returns the pricing rule of the code
func (p *PromoCode) Discount() *pricing.Discount {
	return &pricing.Discount{Type: p.DiscountType, Value: p.DiscountValue}
}

// NormalizeCode canonicalizes user input: codes are matched case-insensitively.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
