package promo

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateRequest for creating a promo code
type CreateRequest struct {
	Code          string          `json:"code" validate:"required,min=3,max=32,promo_code"`
	DiscountType  string          `json:"discount_type" validate:"required,discount_type"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	ExpiredAt     time.Time       `json:"expired_at" validate:"required"`
}

// Response for API response
type Response struct {
	ID            string          `json:"id"`
	Code          string          `json:"code"`
	DiscountType  string          `json:"discount_type"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	ExpiredAt     string          `json:"expired_at"`
	IsUsed        bool            `json:"is_used"`
	UsedAt        string          `json:"used_at,omitempty"`
	Deleted       bool            `json:"deleted"`
	CreatedAt     string          `json:"created_at"`
}

// ToResponse converts entity to response
func (p *PromoCode) ToResponse() *Response {
	resp := &Response{
		ID:            p.ID.String(),
		Code:          p.Code,
		DiscountType:  string(p.DiscountType),
		DiscountValue: p.DiscountValue,
		ExpiredAt:     p.ExpiredAt.Format(time.RFC3339),
		IsUsed:        p.IsUsed,
		Deleted:       p.DeletedAt.Valid,
		CreatedAt:     p.CreatedAt.Format(time.RFC3339),
	}
	if p.UsedAt.Valid {
		resp.UsedAt = p.UsedAt.Time.Format(time.RFC3339)
	}
	return resp
}
