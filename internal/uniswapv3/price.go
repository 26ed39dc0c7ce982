package uniswapv3

import (
	"fmt"
	"math/big"
)

// Q96 is 2^96, the fixed-point scale of sqrtPriceX96.
var Q96 = new(big.Int).Lsh(big.NewInt(1), 96)

// DefaultSqrtPriceX96 is sqrt(1) * 2^96, a 1:1 price.
var DefaultSqrtPriceX96 = new(big.Int).Set(Q96)

// sqrtPricePrec is the big.Float mantissa precision used for price math.
const sqrtPricePrec = 256

// SqrtPriceX96FromPrice returns floor(sqrt(price) * 2^96) for a decimal
// price of token1 in terms of token0, in raw units.
func SqrtPriceX96FromPrice(price string) (*big.Int, error) {
	p, ok := new(big.Float).SetPrec(sqrtPricePrec).SetString(price)
	if !ok {
		return nil, fmt.Errorf("invalid price %q", price)
	}
	if p.Sign() <= 0 {
		return nil, fmt.Errorf("price must be positive, got %q", price)
	}

	root := new(big.Float).SetPrec(sqrtPricePrec).Sqrt(p)
	root.Mul(root, new(big.Float).SetPrec(sqrtPricePrec).SetInt(Q96))

	out, _ := root.Int(nil)
	if out.BitLen() > 160 {
		return nil, fmt.Errorf("price %q overflows uint160", price)
	}
	return out, nil
}

// PriceFromSqrtPriceX96 returns (sqrtPriceX96 / 2^96)^2 as a decimal string
// with the given number of significant digits.
func PriceFromSqrtPriceX96(sqrtPriceX96 *big.Int, digits int) string {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() == 0 {
		return "0"
	}
	r := new(big.Float).SetPrec(sqrtPricePrec).SetInt(sqrtPriceX96)
	r.Quo(r, new(big.Float).SetPrec(sqrtPricePrec).SetInt(Q96))
	r.Mul(r, r)
	return r.Text('g', digits)
}

// TickSpacing returns the tick spacing the factory enables for a fee tier.
func TickSpacing(fee uint32) (int32, error) {
	switch fee {
	case FeeLowest:
		return 1, nil
	case FeeLow:
		return 10, nil
	case FeeMedium:
		return 60, nil
	case FeeHigh:
		return 200, nil
	}
	return 0, fmt.Errorf("unsupported fee tier %d", fee)
}

// ValidateTicks checks that a position range is usable for the fee tier:
// lower < upper, both inside [MinTick, MaxTick], both multiples of the spacing.
func ValidateTicks(fee uint32, lower, upper int32) error {
	spacing, err := TickSpacing(fee)
	if err != nil {
		return err
	}
	if lower >= upper {
		return fmt.Errorf("tickLower %d must be below tickUpper %d", lower, upper)
	}
	if lower < MinTick || upper > MaxTick {
		return fmt.Errorf("ticks [%d, %d] outside [%d, %d]", lower, upper, MinTick, MaxTick)
	}
	if lower%spacing != 0 || upper%spacing != 0 {
		return fmt.Errorf("ticks [%d, %d] must be multiples of %d for fee %d", lower, upper, spacing, fee)
	}
	return nil
}
