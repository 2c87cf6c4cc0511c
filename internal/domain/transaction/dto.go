package transaction

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/coursehub/coursehub-api/internal/domain/pricing"
)

// QuoteRequest asks for a price preview
type QuoteRequest struct {
	CourseTypeID string `json:"course_type_id" validate:"required,uuid"`
	PromoCode    string `json:"promo_code" validate:"omitempty,max=32,promo_code"`
}

// InitiateRequest starts a purchase
type InitiateRequest struct {
	CourseTypeID string `json:"course_type_id" validate:"required,uuid"`
	PromoCode    string `json:"promo_code" validate:"omitempty,max=32,promo_code"`
}

// UpdateStatusRequest is the admin status override
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,transaction_status"`
}

// QuoteResponse is the price preview
type QuoteResponse struct {
	CourseTypeID string `json:"course_type_id"`
	CourseTitle  string `json:"course_title"`
	pricing.Quote
	PromoCode    string `json:"promo_code,omitempty"`
	PromoApplied bool   `json:"promo_applied"`
}

// InitiateResponse is returned after checkout initiation
type InitiateResponse struct {
	ID         string          `json:"id"`
	Code       string          `json:"code"`
	Status     Status          `json:"status"`
	FinalPrice decimal.Decimal `json:"final_price"`
}

// SessionResponse carries the gateway payment page
type SessionResponse struct {
	TransactionID string `json:"transaction_id"`
	Token         string `json:"token"`
	RedirectURL   string `json:"redirect_url"`
}

// Response for API response
type Response struct {
	ID            string          `json:"id"`
	Code          string          `json:"code"`
	CourseID      string          `json:"course_id"`
	CourseTypeID  string          `json:"course_type_id"`
	StudentID     string          `json:"student_id"`
	Type          string          `json:"type"`
	BatchNumber   *int32          `json:"batch_number,omitempty"`
	OriginalPrice decimal.Decimal `json:"original_price"`
	Discount      decimal.Decimal `json:"discount"`
	FinalPrice    decimal.Decimal `json:"final_price"`
	PromoCode     string          `json:"promo_code,omitempty"`
	Status        Status          `json:"status"`
	RedirectURL   string          `json:"redirect_url,omitempty"`
	PaidAt        string          `json:"paid_at,omitempty"`
	FailedAt      string          `json:"failed_at,omitempty"`
	CreatedAt     string          `json:"created_at"`
	UpdatedAt     string          `json:"updated_at"`

	CourseTitle  string `json:"course_title,omitempty"`
	StudentName  string `json:"student_name,omitempty"`
	StudentEmail string `json:"student_email,omitempty"`
}

// ToResponse converts entity to response
func (t *Transaction) ToResponse() *Response {
	resp := &Response{
		ID:            t.ID.String(),
		Code:          t.Code,
		CourseID:      t.CourseID.String(),
		CourseTypeID:  t.CourseTypeID.String(),
		StudentID:     t.StudentID.String(),
		Type:          string(t.Type),
		OriginalPrice: t.OriginalPrice,
		Discount:      t.Discount,
		FinalPrice:    t.FinalPrice,
		Status:        t.Status,
		CreatedAt:     t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     t.UpdatedAt.Format(time.RFC3339),
	}
	if t.BatchNumber.Valid {
		n := t.BatchNumber.Int32
		resp.BatchNumber = &n
	}
	if t.PromoCode.Valid {
		resp.PromoCode = t.PromoCode.String
	}
	if t.RedirectURL.Valid {
		resp.RedirectURL = t.RedirectURL.String
	}
	if t.PaidAt.Valid {
		resp.PaidAt = t.PaidAt.Time.Format(time.RFC3339)
	}
	if t.FailedAt.Valid {
		resp.FailedAt = t.FailedAt.Time.Format(time.RFC3339)
	}
	return resp
}

// ToResponse converts detail to response
func (d *Detail) ToResponse() *Response {
	resp := d.Transaction.ToResponse()
	resp.CourseTitle = d.CourseTitle
	resp.StudentName = d.StudentName
	resp.StudentEmail = d.StudentEmail
	return resp
}
