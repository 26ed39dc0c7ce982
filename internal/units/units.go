// Package units converts between human-readable decimal amounts and
// integer base units (wei, token smallest units).
package units

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Common denominations.
const (
	EtherDecimals = 18
	GweiDecimals  = 9
)

// ParseUnits converts a decimal string such as "1.5" into base units with the
// given number of decimals. Fractional digits beyond decimals, negative
// values and values that do not fit a uint256 are errors.
func ParseUnits(s string, decimals uint8) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	shifted := d.Shift(int32(decimals))
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, fmt.Errorf("amount %q has more than %d decimals", s, decimals)
	}
	if shifted.Sign() < 0 {
		return nil, fmt.Errorf("amount %q is negative", s)
	}
	v := shifted.BigInt()
	if v.BitLen() > 256 {
		return nil, fmt.Errorf("amount %q overflows uint256", s)
	}
	return v, nil
}

// FormatUnits renders base units as a decimal string. Whole numbers keep a
// trailing ".0" so that 10^18 wei formats as "1.0".
func FormatUnits(v *big.Int, decimals uint8) string {
	if v == nil {
		return "0.0"
	}
	s := decimal.NewFromBigInt(v, -int32(decimals)).String()
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// ParseEther converts an ether amount to wei.
func ParseEther(s string) (*big.Int, error) {
	return ParseUnits(s, EtherDecimals)
}

// FormatEther renders wei as ether.
func FormatEther(v *big.Int) string {
	return FormatUnits(v, EtherDecimals)
}

// ParseGwei converts a gwei amount to wei.
func ParseGwei(s string) (*big.Int, error) {
	return ParseUnits(s, GweiDecimals)
}

// FormatGwei renders wei as gwei.
func FormatGwei(v *big.Int) string {
	return FormatUnits(v, GweiDecimals)
}

// MustParse is ParseUnits for compile-time constants; it panics on error.
func MustParse(s string, decimals uint8) *big.Int {
	v, err := ParseUnits(s, decimals)
	if err != nil {
		panic(err)
	}
	return v
}
