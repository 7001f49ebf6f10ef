package sqrtpricemath

import (
	"errors"
	"math/big"
	"sync"

	"github.com/defistate/clmm-pool-go/fullmath"
)

var (
	ErrLiquidityZero = errors.New("liquidity must be greater than zero")
	ErrSqrtPriceZero = errors.New("sqrt price must be greater than zero")
	// ErrPriceOverflow is returned when a price movement cannot be represented,
	// for example removing more token0 than the range holds.
	ErrPriceOverflow = errors.New("sqrt price calculation overflow")

	resolution = uint(96)
)

// scratch holds reusable big.Int objects for the price formulas.
// Instances are managed by a sync.Pool for safe concurrent use.
type scratch struct {
	numerator1  *big.Int
	numerator2  *big.Int
	product     *big.Int
	quotient    *big.Int
	denominator *big.Int
	term        *big.Int
}

var scratchPool = sync.Pool{
	New: func() any {
		return &scratch{
			numerator1:  new(big.Int),
			numerator2:  new(big.Int),
			product:     new(big.Int),
			quotient:    new(big.Int),
			denominator: new(big.Int),
			term:        new(big.Int),
		}
	},
}

// GetAmount0Delta writes the token0 amount covering the price range
// [sqrtRatioAX96, sqrtRatioBX96] at the given liquidity into dest:
// liquidity * 2^96 * (sqrtB - sqrtA) / (sqrtA * sqrtB), rounded per flag.
// The two prices are order-normalized before use.
func GetAmount0Delta(dest, sqrtRatioAX96, sqrtRatioBX96, liquidity *big.Int, roundUp bool) error {
	if sqrtRatioAX96.Cmp(sqrtRatioBX96) > 0 {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}
	if sqrtRatioAX96.Sign() <= 0 {
		return ErrSqrtPriceZero
	}

	s := scratchPool.Get().(*scratch)
	defer scratchPool.Put(s)

	s.numerator1.Lsh(liquidity, resolution)
	s.numerator2.Sub(sqrtRatioBX96, sqrtRatioAX96)

	if roundUp {
		if err := fullmath.MulDivRoundingUp(s.term, s.numerator1, s.numerator2, sqrtRatioBX96); err != nil {
			return err
		}
		fullmath.DivRoundingUp(dest, s.term, sqrtRatioAX96)
		return nil
	}
	if err := fullmath.MulDiv(s.term, s.numerator1, s.numerator2, sqrtRatioBX96); err != nil {
		return err
	}
	dest.Div(s.term, sqrtRatioAX96)
	return nil
}

// GetAmount1Delta writes the token1 amount covering the price range into dest:
// liquidity * (sqrtB - sqrtA) / 2^96, rounded per flag.
func GetAmount1Delta(dest, sqrtRatioAX96, sqrtRatioBX96, liquidity *big.Int, roundUp bool) error {
	if sqrtRatioAX96.Cmp(sqrtRatioBX96) > 0 {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}

	s := scratchPool.Get().(*scratch)
	defer scratchPool.Put(s)

	s.numerator2.Sub(sqrtRatioBX96, sqrtRatioAX96)
	if roundUp {
		return fullmath.MulDivRoundingUp(dest, liquidity, s.numerator2, fullmath.Q96)
	}
	return fullmath.MulDiv(dest, liquidity, s.numerator2, fullmath.Q96)
}

// GetAmount0DeltaSigned writes the signed token0 delta for a signed liquidity
// change: amounts charged to the caller (positive liquidity) round up, amounts
// paid out (negative liquidity) round down.
func GetAmount0DeltaSigned(dest, sqrtRatioAX96, sqrtRatioBX96, liquidity *big.Int) error {
	if liquidity.Sign() < 0 {
		abs := new(big.Int).Neg(liquidity)
		if err := GetAmount0Delta(dest, sqrtRatioAX96, sqrtRatioBX96, abs, false); err != nil {
			return err
		}
		dest.Neg(dest)
		return nil
	}
	return GetAmount0Delta(dest, sqrtRatioAX96, sqrtRatioBX96, liquidity, true)
}

// GetAmount1DeltaSigned is the token1 counterpart of GetAmount0DeltaSigned.
func GetAmount1DeltaSigned(dest, sqrtRatioAX96, sqrtRatioBX96, liquidity *big.Int) error {
	if liquidity.Sign() < 0 {
		abs := new(big.Int).Neg(liquidity)
		if err := GetAmount1Delta(dest, sqrtRatioAX96, sqrtRatioBX96, abs, false); err != nil {
			return err
		}
		dest.Neg(dest)
		return nil
	}
	return GetAmount1Delta(dest, sqrtRatioAX96, sqrtRatioBX96, liquidity, true)
}

// GetNextSqrtPriceFromAmount0RoundingUp writes the price after adding
// (or removing) a token0 amount at the given liquidity into dest. Rounds up so
// that the price moves far enough to cover the amount exactly.
func GetNextSqrtPriceFromAmount0RoundingUp(dest, sqrtPX96, liquidity, amount *big.Int, add bool) error {
	if amount.Sign() == 0 {
		dest.Set(sqrtPX96)
		return nil
	}

	s := scratchPool.Get().(*scratch)
	defer scratchPool.Put(s)

	s.numerator1.Lsh(liquidity, resolution)
	s.product.Mul(amount, sqrtPX96)

	if add {
		// Prefer the precision-preserving formulation liquidity*2^96*sqrtP /
		// (liquidity*2^96 + amount*sqrtP) when the denominator fits in 256 bits.
		s.denominator.Add(s.numerator1, s.product)
		if s.denominator.Cmp(fullmath.MaxUint256) <= 0 {
			return fullmath.MulDivRoundingUp(dest, s.numerator1, sqrtPX96, s.denominator)
		}
		// Fall back to the division-first form, which cannot overflow.
		s.denominator.Div(s.numerator1, sqrtPX96)
		s.denominator.Add(s.denominator, amount)
		fullmath.DivRoundingUp(dest, s.numerator1, s.denominator)
		return nil
	}

	// Removing token0 pushes the price up; the denominator must stay positive.
	if s.product.Cmp(fullmath.MaxUint256) > 0 || s.numerator1.Cmp(s.product) <= 0 {
		return ErrPriceOverflow
	}
	s.denominator.Sub(s.numerator1, s.product)
	return fullmath.MulDivRoundingUp(dest, s.numerator1, sqrtPX96, s.denominator)
}

// GetNextSqrtPriceFromAmount1RoundingDown writes the price after adding
// (or removing) a token1 amount into dest. Rounds down, again in the pool's
// favor for the direction token1 moves the price.
func GetNextSqrtPriceFromAmount1RoundingDown(dest, sqrtPX96, liquidity, amount *big.Int, add bool) error {
	s := scratchPool.Get().(*scratch)
	defer scratchPool.Put(s)

	if add {
		if err := fullmath.MulDiv(s.quotient, amount, fullmath.Q96, liquidity); err != nil {
			return err
		}
		dest.Add(sqrtPX96, s.quotient)
		return nil
	}

	if err := fullmath.MulDivRoundingUp(s.quotient, amount, fullmath.Q96, liquidity); err != nil {
		return err
	}
	if sqrtPX96.Cmp(s.quotient) <= 0 {
		return ErrPriceOverflow
	}
	dest.Sub(sqrtPX96, s.quotient)
	return nil
}

// GetNextSqrtPriceFromInput writes the price reached after consuming an exact
// input amount into dest. Trading token0 for token1 moves the price down,
// token1 for token0 moves it up.
func GetNextSqrtPriceFromInput(dest, sqrtPX96, liquidity, amountIn *big.Int, zeroForOne bool) error {
	if sqrtPX96.Sign() <= 0 {
		return ErrSqrtPriceZero
	}
	if liquidity.Sign() <= 0 {
		return ErrLiquidityZero
	}

	if zeroForOne {
		return GetNextSqrtPriceFromAmount0RoundingUp(dest, sqrtPX96, liquidity, amountIn, true)
	}
	return GetNextSqrtPriceFromAmount1RoundingDown(dest, sqrtPX96, liquidity, amountIn, true)
}

// GetNextSqrtPriceFromOutput writes the price reached after paying out an
// exact output amount into dest.
func GetNextSqrtPriceFromOutput(dest, sqrtPX96, liquidity, amountOut *big.Int, zeroForOne bool) error {
	if sqrtPX96.Sign() <= 0 {
		return ErrSqrtPriceZero
	}
	if liquidity.Sign() <= 0 {
		return ErrLiquidityZero
	}

	if zeroForOne {
		return GetNextSqrtPriceFromAmount1RoundingDown(dest, sqrtPX96, liquidity, amountOut, false)
	}
	return GetNextSqrtPriceFromAmount0RoundingUp(dest, sqrtPX96, liquidity, amountOut, false)
}
