package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestComputeTable(t *testing.T) {
	tests := []struct {
		name      string
		in        Input
		wantFinal int64
		wantDisc  int64
		wantPromo int64
	}{
		{
			name:      "no discounts",
			in:        Input{NormalPrice: d(500000)},
			wantFinal: 500000,
		},
		{
			name:      "built-in fixed",
			in:        Input{NormalPrice: d(500000), BuiltIn: &Discount{Type: DiscountFixed, Value: d(100000)}},
			wantFinal: 400000,
			wantDisc:  100000,
		},
		{
			name:      "built-in percentage",
			in:        Input{NormalPrice: d(500000), BuiltIn: &Discount{Type: DiscountPercentage, Value: d(20)}},
			wantFinal: 400000,
			wantDisc:  100000,
		},
		{
			name: "built-in and promo percentage both on normal price",
			in: Input{
				NormalPrice: d(500000),
				BuiltIn:     &Discount{Type: DiscountPercentage, Value: d(10)},
				Promo:       &Discount{Type: DiscountPercentage, Value: d(10)},
			},
			wantFinal: 400000,
			wantDisc:  100000,
			wantPromo: 50000,
		},
		{
			name: "discounts exceed price floor at zero",
			in: Input{
				NormalPrice: d(100000),
				BuiltIn:     &Discount{Type: DiscountFixed, Value: d(80000)},
				Promo:       &Discount{Type: DiscountFixed, Value: d(50000)},
			},
			wantFinal: 0,
			wantDisc:  100000,
			wantPromo: 50000,
		},
		{
			name:      "percentage rounds half up",
			in:        Input{NormalPrice: d(99999), Promo: &Discount{Type: DiscountPercentage, Value: decimal.RequireFromString("12.5")}},
			wantFinal: 87499,
			wantDisc:  12500,
			wantPromo: 12500,
		},
		{
			name:      "unknown discount type ignored",
			in:        Input{NormalPrice: d(1000), BuiltIn: &Discount{Type: "bogus", Value: d(999)}},
			wantFinal: 1000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Compute(tt.in)
			assert.True(t, q.FinalPrice.Equal(d(tt.wantFinal)), "final: got %s", q.FinalPrice)
			assert.True(t, q.Discount.Equal(d(tt.wantDisc)), "discount: got %s", q.Discount)
			assert.True(t, q.PromoDiscount.Equal(d(tt.wantPromo)), "promo: got %s", q.PromoDiscount)
			assert.Equal(t, tt.wantPromo > 0, q.PromoApplied())
		})
	}
}

func TestDiscountAmountNeverNegative(t *testing.T) {
	got := Discount{Type: DiscountFixed, Value: d(-500)}.Amount(d(1000))
	assert.True(t, got.IsZero())
}

func TestDiscountTypeValid(t *testing.T) {
	assert.True(t, DiscountPercentage.Valid())
	assert.True(t, DiscountFixed.Valid())
	assert.False(t, DiscountType("bogus").Valid())
}

func TestComputeKeepsFractionalNormalPrice(t *testing.T) {
	normal := decimal.RequireFromString("99.50")

	q := Compute(Input{NormalPrice: normal})
	assert.True(t, q.OriginalPrice.Equal(normal), "original: got %s", q.OriginalPrice)
	assert.True(t, q.FinalPrice.Equal(normal), "final: got %s", q.FinalPrice)

	q = Compute(Input{NormalPrice: normal, Promo: &Discount{Type: DiscountPercentage, Value: d(10)}})
	assert.True(t, q.PromoDiscount.Equal(d(10)), "promo: got %s", q.PromoDiscount)
	assert.True(t, q.FinalPrice.Equal(decimal.RequireFromString("89.50")), "final: got %s", q.FinalPrice)
}

func TestIsWholeUnit(t *testing.T) {
	assert.True(t, IsWholeUnit(d(500000)))
	assert.True(t, IsWholeUnit(decimal.RequireFromString("100.00")))
	assert.False(t, IsWholeUnit(decimal.RequireFromString("99.50")))
}
