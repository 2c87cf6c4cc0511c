package midtrans

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount keeps gross_amount exactly as the gateway sent it. The signature is computed
// over the raw text, so "150000.00" and 150000 must not be normalized before verification.
type Amount string

// UnmarshalJSON accepts both a JSON string and a bare number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*a = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		if len(raw) < 2 || !strings.HasSuffix(raw, `"`) {
			return fmt.Errorf("invalid gross_amount %s", raw)
		}
		raw = raw[1 : len(raw)-1]
	}
	*a = Amount(raw)
	return nil
}

func (a Amount) String() string { return string(a) }

// Decimal parses the amount.
func (a Amount) Decimal() (decimal.Decimal, error) {
	return ParseAmount(string(a))
}

func ParseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", raw)
	}
	return amount, nil
}

func AmountsEqual(expected, actual decimal.Decimal) bool {
	return expected.Equal(actual)
}
