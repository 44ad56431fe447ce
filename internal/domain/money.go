package domain

import (
	"fmt"
	"math/big"
	"strconv"
)

// ParseAmountToMinor converts a decimal string like "499.00" to minor
// units, truncating beyond two decimals.
func ParseAmountToMinor(value string) (int64, error) {
	r := new(big.Rat)
	if _, ok := r.SetString(value); !ok {
		return 0, fmt.Errorf("%w: invalid amount format", ErrValidation)
	}

	r.Mul(r, big.NewRat(100, 1))
	i := new(big.Int)
	i.Div(r.Num(), r.Denom())

	return i.Int64(), nil
}

// FormatAmountMinor renders minor units as the gateway's two-decimal wire
// format, e.g. 49900 -> "499.00".
func FormatAmountMinor(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}

	intPart := minor / 100
	decPart := minor % 100
	return sign + strconv.FormatInt(intPart, 10) + "." + twoDigits(int(decPart))
}

func twoDigits(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
