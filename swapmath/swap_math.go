package swapmath

import (
	"math/big"
	"sync"

	"github.com/defistate/clmm-pool-go/fullmath"
	"github.com/defistate/clmm-pool-go/sqrtpricemath"
)

// FeeDenominator expresses fee rates in parts per million: 3000 is 0.30%.
var FeeDenominator = big.NewInt(1_000_000)

// scratch holds reusable big.Int objects for one step computation.
type scratch struct {
	sqrtRatioNextX96       *big.Int
	amountIn               *big.Int
	amountOut              *big.Int
	feeAmount              *big.Int
	amountRemainingLessFee *big.Int
	amountRemainingAbs     *big.Int
	feePips                *big.Int
	temp                   *big.Int
}

var scratchPool = sync.Pool{
	New: func() any {
		return &scratch{
			sqrtRatioNextX96:       new(big.Int),
			amountIn:               new(big.Int),
			amountOut:              new(big.Int),
			feeAmount:              new(big.Int),
			amountRemainingLessFee: new(big.Int),
			amountRemainingAbs:     new(big.Int),
			feePips:                new(big.Int),
			temp:                   new(big.Int),
		}
	},
}

// ComputeSwapStep computes one bounded step of a swap: how far the price moves
// toward sqrtRatioTargetX96, the input consumed, the output produced, and the
// fee taken, given the remaining amount. A positive amountRemaining is an
// exact-input budget (fee deducted from it first); a negative one is an
// exact-output requirement.
//
// Results are written into the four destination pointers so callers can reuse
// buffers across loop iterations.
func ComputeSwapStep(
	sqrtRatioNextX96, amountIn, amountOut, feeAmount *big.Int,
	sqrtRatioCurrentX96, sqrtRatioTargetX96, liquidity, amountRemaining *big.Int,
	feePips uint64,
) error {
	s := scratchPool.Get().(*scratch)
	defer scratchPool.Put(s)

	if err := s.computeSwapStep(sqrtRatioCurrentX96, sqrtRatioTargetX96, liquidity, amountRemaining, feePips); err != nil {
		return err
	}

	sqrtRatioNextX96.Set(s.sqrtRatioNextX96)
	amountIn.Set(s.amountIn)
	amountOut.Set(s.amountOut)
	feeAmount.Set(s.feeAmount)
	return nil
}

func (s *scratch) computeSwapStep(
	sqrtRatioCurrentX96, sqrtRatioTargetX96, liquidity, amountRemaining *big.Int,
	feePips uint64,
) error {
	zeroForOne := sqrtRatioCurrentX96.Cmp(sqrtRatioTargetX96) >= 0
	exactIn := amountRemaining.Sign() >= 0

	s.feePips.SetUint64(feePips)
	s.amountIn.SetInt64(0)
	s.amountOut.SetInt64(0)
	s.feeAmount.SetInt64(0)

	if exactIn {
		// The fee comes off the top: only the remainder buys price movement.
		s.temp.Sub(FeeDenominator, s.feePips)
		if err := fullmath.MulDiv(s.amountRemainingLessFee, amountRemaining, s.temp, FeeDenominator); err != nil {
			return err
		}

		if zeroForOne {
			if err := sqrtpricemath.GetAmount0Delta(s.amountIn, sqrtRatioTargetX96, sqrtRatioCurrentX96, liquidity, true); err != nil {
				return err
			}
		} else {
			if err := sqrtpricemath.GetAmount1Delta(s.amountIn, sqrtRatioCurrentX96, sqrtRatioTargetX96, liquidity, true); err != nil {
				return err
			}
		}

		if s.amountRemainingLessFee.Cmp(s.amountIn) >= 0 {
			// Budget covers the full step to the target.
			s.sqrtRatioNextX96.Set(sqrtRatioTargetX96)
		} else {
			// Solve the price the partial budget can reach.
			if err := sqrtpricemath.GetNextSqrtPriceFromInput(s.sqrtRatioNextX96, sqrtRatioCurrentX96, liquidity, s.amountRemainingLessFee, zeroForOne); err != nil {
				return err
			}
		}
	} else {
		s.amountRemainingAbs.Neg(amountRemaining)

		if zeroForOne {
			if err := sqrtpricemath.GetAmount1Delta(s.amountOut, sqrtRatioTargetX96, sqrtRatioCurrentX96, liquidity, false); err != nil {
				return err
			}
		} else {
			if err := sqrtpricemath.GetAmount0Delta(s.amountOut, sqrtRatioCurrentX96, sqrtRatioTargetX96, liquidity, false); err != nil {
				return err
			}
		}

		if s.amountRemainingAbs.Cmp(s.amountOut) >= 0 {
			s.sqrtRatioNextX96.Set(sqrtRatioTargetX96)
		} else {
			if err := sqrtpricemath.GetNextSqrtPriceFromOutput(s.sqrtRatioNextX96, sqrtRatioCurrentX96, liquidity, s.amountRemainingAbs, zeroForOne); err != nil {
				return err
			}
		}
	}

	max := sqrtRatioTargetX96.Cmp(s.sqrtRatioNextX96) == 0

	// Recompute amounts over the actual price movement. The two skipped cases
	// already hold exact values from the full-step computation above.
	if zeroForOne {
		if !(max && exactIn) {
			if err := sqrtpricemath.GetAmount0Delta(s.amountIn, s.sqrtRatioNextX96, sqrtRatioCurrentX96, liquidity, true); err != nil {
				return err
			}
		}
		if !(max && !exactIn) {
			if err := sqrtpricemath.GetAmount1Delta(s.amountOut, s.sqrtRatioNextX96, sqrtRatioCurrentX96, liquidity, false); err != nil {
				return err
			}
		}
	} else {
		if !(max && exactIn) {
			if err := sqrtpricemath.GetAmount1Delta(s.amountIn, sqrtRatioCurrentX96, s.sqrtRatioNextX96, liquidity, true); err != nil {
				return err
			}
		}
		if !(max && !exactIn) {
			if err := sqrtpricemath.GetAmount0Delta(s.amountOut, sqrtRatioCurrentX96, s.sqrtRatioNextX96, liquidity, false); err != nil {
				return err
			}
		}
	}

	// Exact-output never pays out more than requested.
	if !exactIn && s.amountOut.Cmp(s.amountRemainingAbs) > 0 {
		s.amountOut.Set(s.amountRemainingAbs)
	}

	if exactIn && s.sqrtRatioNextX96.Cmp(sqrtRatioTargetX96) != 0 {
		// Did not reach the target: the whole leftover input is the fee.
		s.feeAmount.Sub(amountRemaining, s.amountIn)
	} else {
		// Reached the target: invert the fee formula on the consumed input.
		s.temp.Sub(FeeDenominator, s.feePips)
		if err := fullmath.MulDivRoundingUp(s.feeAmount, s.amountIn, s.feePips, s.temp); err != nil {
			return err
		}
	}

	return nil
}
