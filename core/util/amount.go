package util

import (
	"strings"

	"github.com/cockroachdb/apd/v3"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// ParseAmount parses a base-unit integer amount in decimal notation.
func ParseAmount(s string) (uint256.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return uint256.Int{}, errors.New("amount is required")
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return uint256.Int{}, errors.Wrapf(err, "invalid amount %q", s)
	}
	return *v, nil
}

// FormatAmount renders a base-unit amount in decimal notation.
func FormatAmount(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.ToBig().String()
}

// AmountToDecimal converts a base-unit amount into an exact decimal.
func AmountToDecimal(v *uint256.Int) *apd.Decimal {
	d := new(apd.Decimal)
	d.Coeff.SetMathBigInt(v.ToBig())
	return d
}
