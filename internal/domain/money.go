package domain

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

const (
	// weiDecimals is the number of decimal places between wei and ether.
	weiDecimals = 18
	// maxWeiDigits is the number of decimal digits in 2^256.
	maxWeiDigits = 78
)

// ParseWei parses a base-10 amount expressed in wei.
func ParseWei(s string) (uint256.Int, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return uint256.Int{}, fmt.Errorf("invalid wei amount %q: %w", s, err)
	}
	return *v, nil
}

// ParseEther converts a decimal ether amount ("0.5", "10") into wei.
// It rejects negative values, values with more than 18 decimal places,
// and values that do not fit in 256 bits.
func ParseEther(s string) (uint256.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return uint256.Int{}, fmt.Errorf("invalid ether amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return uint256.Int{}, fmt.Errorf("ether amount must not be negative")
	}
	if d.IsZero() {
		return uint256.Int{}, nil
	}

	// Bound the exponent before shifting; "1e10000000" would otherwise
	// materialize a ten-million-digit integer.
	digits := int64(len(d.Coefficient().String()))
	exp := int64(d.Exponent()) + weiDecimals
	if digits+exp > maxWeiDigits {
		return uint256.Int{}, ErrAmountOverflow
	}
	if exp < -digits {
		return uint256.Int{}, fmt.Errorf("ether amount has more than %d decimal places", weiDecimals)
	}

	wei := d.Shift(weiDecimals)
	if !wei.IsInteger() {
		return uint256.Int{}, fmt.Errorf("ether amount has more than %d decimal places", weiDecimals)
	}
	v, overflow := uint256.FromBig(wei.BigInt())
	if overflow {
		return uint256.Int{}, ErrAmountOverflow
	}
	return *v, nil
}

// FormatEther renders a wei amount as ether with trailing zeros trimmed.
func FormatEther(wei uint256.Int) string {
	return decimal.NewFromBigInt(wei.ToBig(), -weiDecimals).String()
}
