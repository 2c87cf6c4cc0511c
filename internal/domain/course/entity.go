package course

import (
	"database/sql"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coursehub/coursehub-api/internal/domain/pricing"
)

// Type is the delivery format of a course offering
type Type string

const (
	TypeGroup   Type = "group"
	TypePrivate Type = "private"
	TypeBatch   Type = "batch"
)

// Course is a catalogue entry
type Course struct {
	ID        uuid.UUID `db:"id"`
	Title     string    `db:"title"`
	Slug      string    `db:"slug"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// CourseType is a purchasable offering of a course with its own price.
type CourseType struct {
	ID            uuid.UUID           `db:"id"`
	CourseID      uuid.UUID           `db:"course_id"`
	CourseTitle   string              `db:"course_title"`
	Type          Type                `db:"type"`
	BatchNumber   sql.NullInt32       `db:"batch_number"`
	NormalPrice   decimal.Decimal     `db:"normal_price"`
	IsDiscount    bool                `db:"is_discount"`
	DiscountType  sql.NullString      `db:"discount_type"`
	DiscountValue decimal.NullDecimal `db:"discount_value"`
	IsActive      bool                `db:"is_active"`
	CreatedAt     time.Time           `db:"created_at"`
	UpdatedAt     time.Time           `db:"updated_at"`
}

// BuiltInDiscount returns the course type's own discount rule, or nil when
// the discount is switched off or incompletely configured.
func (ct *CourseType) BuiltInDiscount() *pricing.Discount {
	if !ct.IsDiscount || !ct.DiscountType.Valid || !ct.DiscountValue.Valid {
		return nil
	}
	t := pricing.DiscountType(ct.DiscountType.String)
	if !t.Valid() {
		return nil
	}
	return &pricing.Discount{Type: t, Value: ct.DiscountValue.Decimal}
}

// WholeUnitPricing reports whether the price and a fixed built-in discount
// carry no fractional part. Percentages may be fractional.
func (ct *CourseType) WholeUnitPricing() bool {
	if !pricing.IsWholeUnit(ct.NormalPrice) {
		return false
	}
	if ct.DiscountType.String == string(pricing.DiscountFixed) && ct.DiscountValue.Valid {
		return pricing.IsWholeUnit(ct.DiscountValue.Decimal)
	}
	return true
}

// IsBatch reports whether purchases of this type enroll into a cohort group.
func (ct *CourseType) IsBatch() bool {
	return ct.Type == TypeBatch && ct.BatchNumber.Valid
}

// DisplayName is used as the line item name at the payment gateway.
func (ct *CourseType) DisplayName() string {
	name := ct.CourseTitle + " (" + string(ct.Type)
	if ct.BatchNumber.Valid {
		name += " #" + strconv.FormatInt(int64(ct.BatchNumber.Int32), 10)
	}
	return name + ")"
}

// StudentGroup is the roster of one batch
type StudentGroup struct {
	ID           uuid.UUID `db:"id"`
	CourseTypeID uuid.UUID `db:"course_type_id"`
	Name         string    `db:"name"`
	CreatedAt    time.Time `db:"created_at"`
}

// Enrollment is the result of adding a student to a batch group
type Enrollment struct {
	GroupID uuid.UUID
	// Created is false when the student was already a member.
	Created bool
}
