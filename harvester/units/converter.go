// Package units converts token amounts between the human decimal form shown to
// users and the integer raw units used on chain.
//
// Staged reward amounts are always human decimals. An integer string such as
// "5" means five whole tokens and is scaled like any other amount.
package units

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned when an amount string is not a plain decimal number.
var ErrInvalidAmount = errors.New("invalid amount")

/*
ToRawUnits converts a human decimal amount into an integer raw unit string.

The fractional part is right padded or truncated to exactly `decimals` digits,
so "1.5" with 6 decimals becomes "1500000" and "0.1234567" with 6 decimals
becomes "123456". The math is done on big integers, never on floats.

Parameters:
  - amount: decimal string, optionally signed, "." as the separator
  - decimals: token precision, must not be negative

Returns:
  - string: the raw unit amount
  - error: ErrInvalidAmount when the input can't be parsed
*/
func ToRawUnits(amount string, decimals int) (string, error) {
	raw, err := ToRawUnitsInt(amount, decimals)
	if err != nil {
		return "", err
	}
	return raw.String(), nil
}

// ToRawUnitsInt is ToRawUnits returning the big.Int instead of its string form.
func ToRawUnitsInt(amount string, decimals int) (*big.Int, error) {
	if decimals < 0 {
		return nil, fmt.Errorf("%w: negative decimals %d", ErrInvalidAmount, decimals)
	}

	s := strings.TrimSpace(amount)
	negative := false
	switch {
	case strings.HasPrefix(s, "-"):
		negative = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}

	whole, frac, hasSep := strings.Cut(s, ".")
	if whole == "" && (!hasSep || frac == "") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	if whole == "" {
		whole = "0"
	}
	if !isDigits(whole) || !isDigits(frac) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}

	if len(frac) > decimals {
		frac = frac[:decimals]
	} else {
		frac += strings.Repeat("0", decimals-len(frac))
	}

	raw, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	if negative {
		raw.Neg(raw)
	}
	return raw, nil
}

// FromRawUnits renders raw units as a human decimal string. Trailing zero
// fraction digits are dropped, the sign is kept and a zero fraction leaves only
// the whole part, so FromRawUnits(1500000, 6) is "1.5" and FromRawUnits(0, 9) is "0".
func FromRawUnits(amount *big.Int, decimals int) string {
	if amount == nil {
		return "0"
	}
	if decimals <= 0 {
		return amount.String()
	}
	return decimal.NewFromBigInt(amount, int32(-decimals)).String()
}

// IsPositive reports whether a decimal amount string is strictly greater than zero.
// Unparseable amounts are not positive.
func IsPositive(amount string) bool {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return false
	}
	return d.IsPositive()
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
