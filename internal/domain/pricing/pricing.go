// Package pricing computes what a buyer pays for a course type.
//
// The normal price is taken as is. Discount amounts are rounded half-up to a
// whole unit, so a whole-unit price always yields a whole-unit final price,
// which is what the payment gateway accepts.
package pricing

import (
	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

func (t DiscountType) Valid() bool {
	return t == DiscountPercentage || t == DiscountFixed
}

var hundred = decimal.NewFromInt(100)

func init() {
	// Money goes over the wire as plain JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// Discount is a discount rule: a percentage of the base price or a fixed amount.
type Discount struct {
	Type  DiscountType
	Value decimal.Decimal
}

// Amount returns the discount this rule grants on base. Never negative.
// Unknown types grant nothing.
func (d Discount) Amount(base decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal
	switch d.Type {
	case DiscountFixed:
		amount = d.Value
	case DiscountPercentage:
		amount = base.Mul(d.Value).Div(hundred)
	default:
		return decimal.Zero
	}
	amount = amount.Round(0)
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}

// Input carries everything the price depends on.
// BuiltIn is nil when the course type has no active discount; Promo is nil
// when no eligible promo code was found.
type Input struct {
	NormalPrice decimal.Decimal
	BuiltIn     *Discount
	Promo       *Discount
}

// Quote is the result of pricing.
type Quote struct {
	OriginalPrice   decimal.Decimal `json:"original_price"`
	BuiltInDiscount decimal.Decimal `json:"built_in_discount"`
	PromoDiscount   decimal.Decimal `json:"voucher_discount"`
	// Discount is what was actually taken off: OriginalPrice - FinalPrice.
	// It is smaller than BuiltInDiscount+PromoDiscount when those exceed the price.
	Discount   decimal.Decimal `json:"discount"`
	FinalPrice decimal.Decimal `json:"final_price"`
}

// PromoApplied reports whether the promo code contributed a non-zero discount.
func (q Quote) PromoApplied() bool {
	return q.PromoDiscount.IsPositive()
}

// IsWholeUnit reports whether v has no fractional part.
func IsWholeUnit(v decimal.Decimal) bool {
	return v.Equal(v.Truncate(0))
}

// Compute prices in. It is pure: the checkout path and the gateway session path
// both call it and must agree on the result.
func Compute(in Input) Quote {
	original := in.NormalPrice
	if original.IsNegative() {
		original = decimal.Zero
	}

	var builtIn, promo decimal.Decimal
	if in.BuiltIn != nil {
		builtIn = in.BuiltIn.Amount(original)
	}
	if in.Promo != nil {
		promo = in.Promo.Amount(original)
	}

	final := original.Sub(builtIn).Sub(promo)
	if final.IsNegative() {
		final = decimal.Zero
	}

	return Quote{
		OriginalPrice:   original,
		BuiltInDiscount: builtIn,
		PromoDiscount:   promo,
		Discount:        original.Sub(final),
		FinalPrice:      final,
	}
}
