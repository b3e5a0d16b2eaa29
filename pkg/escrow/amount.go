package escrow

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// ParseAmount parses a base-10 integer amount such as "1500" or "1.5e3".
// Fractional, negative and out-of-range values are rejected with
// ErrInvalidAmount.
func ParseAmount(s string) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, s)
	}
	if !d.IsInteger() {
		return nil, fmt.Errorf("%w: %q is not an integer", ErrInvalidAmount, s)
	}
	amount := d.BigInt()
	if err = validateAmount(amount); err != nil {
		return nil, err
	}
	return amount, nil
}

// FormatAmount renders amount as a base-10 string.
func FormatAmount(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, 0).String()
}
