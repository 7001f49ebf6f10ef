package pool

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/defistate/clmm-pool-go/fullmath"
	"github.com/defistate/clmm-pool-go/liquiditymath"
	"github.com/defistate/clmm-pool-go/swapmath"
	"github.com/defistate/clmm-pool-go/tickmath"
)

// swapState carries a swap's working state through the loop. Nothing in it
// touches the pool until the commit at the end, so a failed swap leaves the
// pool as it was.
type swapState struct {
	amountSpecifiedRemaining *big.Int
	amountCalculated         *big.Int
	sqrtPriceX96             *big.Int
	tick                     int64
	liquidity                *big.Int
	feeGrowthGlobalX128      *big.Int

	// --- Reusable temporary variables for the loop ---
	sqrtPriceStartX96 *big.Int
	sqrtPriceNextX96  *big.Int
	targetPrice       *big.Int
	stepAmountIn      *big.Int
	stepAmountOut     *big.Int
	stepFeeAmount     *big.Int
	tempAmount        *big.Int
	liquidityNet      *big.Int
}

var swapStatePool = sync.Pool{
	New: func() any {
		return &swapState{
			amountSpecifiedRemaining: new(big.Int),
			amountCalculated:         new(big.Int),
			sqrtPriceX96:             new(big.Int),
			liquidity:                new(big.Int),
			feeGrowthGlobalX128:      new(big.Int),
			sqrtPriceStartX96:        new(big.Int),
			sqrtPriceNextX96:         new(big.Int),
			targetPrice:              new(big.Int),
			stepAmountIn:             new(big.Int),
			stepAmountOut:            new(big.Int),
			stepFeeAmount:            new(big.Int),
			tempAmount:               new(big.Int),
			liquidityNet:             new(big.Int),
		}
	},
}

// crossedTick records one tick crossing together with the accumulator values
// used, so a failed swap can re-cross to restore the registry. Crossing is
// its own inverse for fixed accumulator inputs.
type crossedTick struct {
	tick             int64
	feeGrowthGlobal0 *big.Int
	feeGrowthGlobal1 *big.Int
}

// Swap trades one asset for the other. A positive amountSpecified is an
// exact input of the sold token, a negative one an exact output of the
// bought token. zeroForOne sells token0 for token1 (price falls). A nil
// sqrtPriceLimitX96 means no limit beyond the representable price range.
//
// Returns the signed balance deltas: positive amounts are owed to the pool
// by the caller, negative amounts were sent to the recipient.
func (p *Pool) Swap(recipient common.Address, zeroForOne bool, amountSpecified, sqrtPriceLimitX96 *big.Int, cb SwapCallback) (amount0, amount1 *big.Int, err error) {
	if err := p.lock(); err != nil {
		return nil, nil, err
	}
	defer p.unlock()
	defer p.countError("swap", &err)

	if amountSpecified == nil || amountSpecified.Sign() == 0 {
		return nil, nil, ErrZeroAmount
	}

	direction := "oneForZero"
	if zeroForOne {
		direction = "zeroForOne"
	}
	timer := prometheus.NewTimer(p.metrics.swapDuration.WithLabelValues(direction))
	defer timer.ObserveDuration()

	if sqrtPriceLimitX96 == nil {
		if zeroForOne {
			sqrtPriceLimitX96 = new(big.Int).Add(tickmath.MIN_SQRT_RATIO, big.NewInt(1))
		} else {
			sqrtPriceLimitX96 = new(big.Int).Sub(tickmath.MAX_SQRT_RATIO, big.NewInt(1))
		}
	}
	if zeroForOne {
		if sqrtPriceLimitX96.Cmp(p.slot0.sqrtPriceX96) >= 0 || sqrtPriceLimitX96.Cmp(tickmath.MIN_SQRT_RATIO) <= 0 {
			return nil, nil, ErrInvalidPriceLimit
		}
	} else {
		if sqrtPriceLimitX96.Cmp(p.slot0.sqrtPriceX96) <= 0 || sqrtPriceLimitX96.Cmp(tickmath.MAX_SQRT_RATIO) >= 0 {
			return nil, nil, ErrInvalidPriceLimit
		}
	}

	state := swapStatePool.Get().(*swapState)
	defer swapStatePool.Put(state)

	state.amountSpecifiedRemaining.Set(amountSpecified)
	state.amountCalculated.SetInt64(0)
	state.sqrtPriceX96.Set(p.slot0.sqrtPriceX96)
	state.tick = p.slot0.tick
	state.liquidity.Set(p.liquidity)
	if zeroForOne {
		state.feeGrowthGlobalX128.Set(p.feeGrowthGlobal0X128)
	} else {
		state.feeGrowthGlobalX128.Set(p.feeGrowthGlobal1X128)
	}

	var crossed []crossedTick
	steps, err := p.swapLoop(state, zeroForOne, sqrtPriceLimitX96, &crossed)
	if err != nil {
		p.uncross(crossed)
		return nil, nil, err
	}

	exactInput := amountSpecified.Sign() > 0
	amount0 = new(big.Int)
	amount1 = new(big.Int)
	if zeroForOne == exactInput {
		amount0.Sub(amountSpecified, state.amountSpecifiedRemaining)
		amount1.Set(state.amountCalculated)
	} else {
		amount0.Set(state.amountCalculated)
		amount1.Sub(amountSpecified, state.amountSpecifiedRemaining)
	}

	// settle: collect the owed side via the callback, verified by balance
	// delta, before paying anything out
	var amountIn, amountOut *big.Int
	var tokenIn, tokenOut Asset
	if zeroForOne {
		amountIn, amountOut = amount0, amount1
		tokenIn, tokenOut = p.token0, p.token1
	} else {
		amountIn, amountOut = amount1, amount0
		tokenIn, tokenOut = p.token1, p.token0
	}

	if amountIn.Sign() > 0 {
		balanceBefore := tokenIn.BalanceOf(p.address)
		if err := cb(new(big.Int).Set(amount0), new(big.Int).Set(amount1)); err != nil {
			p.uncross(crossed)
			return nil, nil, fmt.Errorf("swap callback: %w", err)
		}
		required := new(big.Int).Add(balanceBefore, amountIn)
		if tokenIn.BalanceOf(p.address).Cmp(required) < 0 {
			p.uncross(crossed)
			return nil, nil, ErrInsufficientInput
		}
	}
	if amountOut.Sign() < 0 {
		if err := p.transferOut(tokenOut, recipient, new(big.Int).Neg(amountOut)); err != nil {
			p.uncross(crossed)
			return nil, nil, err
		}
	}

	// commit
	if state.tick != p.slot0.tick {
		p.writeObservation()
		p.slot0.tick = state.tick
	}
	p.slot0.sqrtPriceX96.Set(state.sqrtPriceX96)
	p.liquidity.Set(state.liquidity)
	if zeroForOne {
		p.feeGrowthGlobal0X128.Set(state.feeGrowthGlobalX128)
	} else {
		p.feeGrowthGlobal1X128.Set(state.feeGrowthGlobalX128)
	}

	p.metrics.swapSteps.Observe(float64(steps))
	p.metrics.ticksCrossed.Add(float64(len(crossed)))
	p.logger.Debug("swap",
		"direction", direction,
		"amountSpecified", amountSpecified.String(),
		"amount0", amount0.String(),
		"amount1", amount1.String(),
		"tick", state.tick,
		"steps", steps,
	)
	return amount0, amount1, nil
}

// swapLoop runs the bounded-step state machine against local state. Each
// iteration either reaches the next initialized tick, the price limit, or
// exhausts the remaining amount, so the step count is bounded by the number
// of initialized ticks between the start and limit prices.
func (p *Pool) swapLoop(state *swapState, zeroForOne bool, sqrtPriceLimitX96 *big.Int, crossed *[]crossedTick) (steps int, err error) {
	exactInput := state.amountSpecifiedRemaining.Sign() > 0

	for state.amountSpecifiedRemaining.Sign() != 0 && state.sqrtPriceX96.Cmp(sqrtPriceLimitX96) != 0 {
		steps++
		state.sqrtPriceStartX96.Set(state.sqrtPriceX96)

		tickNext, initialized := p.tickBitmap.NextInitializedTickWithinOneWord(state.tick, p.tickSpacing, zeroForOne)
		if tickNext < tickmath.MIN_TICK {
			tickNext = tickmath.MIN_TICK
		} else if tickNext > tickmath.MAX_TICK {
			tickNext = tickmath.MAX_TICK
		}

		if err := tickmath.GetSqrtRatioAtTick(state.sqrtPriceNextX96, tickNext); err != nil {
			return steps, err
		}

		if (zeroForOne && state.sqrtPriceNextX96.Cmp(sqrtPriceLimitX96) < 0) ||
			(!zeroForOne && state.sqrtPriceNextX96.Cmp(sqrtPriceLimitX96) > 0) {
			state.targetPrice.Set(sqrtPriceLimitX96)
		} else {
			state.targetPrice.Set(state.sqrtPriceNextX96)
		}

		err := swapmath.ComputeSwapStep(
			state.sqrtPriceX96, state.stepAmountIn, state.stepAmountOut, state.stepFeeAmount,
			state.sqrtPriceStartX96,
			state.targetPrice,
			state.liquidity,
			state.amountSpecifiedRemaining,
			p.fee,
		)
		if err != nil {
			return steps, err
		}

		if exactInput {
			state.amountSpecifiedRemaining.Sub(state.amountSpecifiedRemaining, state.tempAmount.Add(state.stepAmountIn, state.stepFeeAmount))
			state.amountCalculated.Sub(state.amountCalculated, state.stepAmountOut)
		} else {
			state.amountSpecifiedRemaining.Add(state.amountSpecifiedRemaining, state.stepAmountOut)
			state.amountCalculated.Add(state.amountCalculated, state.tempAmount.Add(state.stepAmountIn, state.stepFeeAmount))
		}

		// attribute the step's fee to the active liquidity; with no
		// liquidity there is nobody to attribute it to
		if state.liquidity.Sign() > 0 && state.stepFeeAmount.Sign() > 0 {
			if err := fullmath.MulDiv(state.tempAmount, state.stepFeeAmount, fullmath.Q128, state.liquidity); err != nil {
				return steps, err
			}
			fullmath.AddMod256(state.feeGrowthGlobalX128, state.feeGrowthGlobalX128, state.tempAmount)
		}

		if state.sqrtPriceX96.Cmp(state.sqrtPriceNextX96) == 0 {
			if initialized {
				var global0, global1 *big.Int
				if zeroForOne {
					global0, global1 = state.feeGrowthGlobalX128, p.feeGrowthGlobal1X128
				} else {
					global0, global1 = p.feeGrowthGlobal0X128, state.feeGrowthGlobalX128
				}
				*crossed = append(*crossed, crossedTick{
					tick:             tickNext,
					feeGrowthGlobal0: new(big.Int).Set(global0),
					feeGrowthGlobal1: new(big.Int).Set(global1),
				})
				state.liquidityNet.Set(p.ticks.Cross(tickNext, global0, global1))

				if zeroForOne {
					state.liquidityNet.Neg(state.liquidityNet)
				}
				if err := liquiditymath.AddDelta(state.liquidity, state.liquidity, state.liquidityNet); err != nil {
					return steps, err
				}
			}

			// a price sitting exactly on a boundary belongs to the
			// lower-price side of the two adjacent ranges
			if zeroForOne {
				state.tick = tickNext - 1
			} else {
				state.tick = tickNext
			}
		} else if state.sqrtPriceX96.Cmp(state.sqrtPriceStartX96) != 0 {
			state.tick, err = tickmath.GetTickAtSqrtRatio(state.sqrtPriceX96)
			if err != nil {
				return steps, err
			}
		}
	}
	return steps, nil
}

// uncross undoes tick crossings after a failed swap, restoring the outside
// snapshots the registry held before the loop ran.
func (p *Pool) uncross(crossed []crossedTick) {
	for i := len(crossed) - 1; i >= 0; i-- {
		c := crossed[i]
		p.ticks.Cross(c.tick, c.feeGrowthGlobal0, c.feeGrowthGlobal1)
	}
}

func (p *Pool) transferOut(asset Asset, recipient common.Address, amount *big.Int) error {
	if err := asset.Transfer(recipient, amount); err != nil {
		return fmt.Errorf("transfer to recipient: %w", err)
	}
	return nil
}

// Flash lends any amount of both assets for the duration of the callback.
// Repayment of principal plus fee is verified by balance delta, and the fees
// are folded into the global fee growth for the liquidity active now.
func (p *Pool) Flash(recipient common.Address, amount0, amount1 *big.Int, cb FlashCallback) (err error) {
	if err := p.lock(); err != nil {
		return err
	}
	defer p.unlock()
	defer p.countError("flash", &err)

	if amount0 == nil {
		amount0 = new(big.Int)
	}
	if amount1 == nil {
		amount1 = new(big.Int)
	}
	if amount0.Sign() < 0 || amount1.Sign() < 0 {
		return ErrZeroAmount
	}
	if p.liquidity.Sign() <= 0 {
		return ErrNoFlashLiquidity
	}

	fee0 := new(big.Int)
	if err := fullmath.MulDivRoundingUp(fee0, amount0, new(big.Int).SetUint64(p.fee), swapmath.FeeDenominator); err != nil {
		return err
	}
	fee1 := new(big.Int)
	if err := fullmath.MulDivRoundingUp(fee1, amount1, new(big.Int).SetUint64(p.fee), swapmath.FeeDenominator); err != nil {
		return err
	}

	balance0Before := p.token0.BalanceOf(p.address)
	balance1Before := p.token1.BalanceOf(p.address)

	if amount0.Sign() > 0 {
		if err := p.token0.Transfer(recipient, amount0); err != nil {
			return fmt.Errorf("flash token0: %w", err)
		}
	}
	if amount1.Sign() > 0 {
		if err := p.token1.Transfer(recipient, amount1); err != nil {
			return fmt.Errorf("flash token1: %w", err)
		}
	}

	if err := cb(new(big.Int).Set(fee0), new(big.Int).Set(fee1)); err != nil {
		return fmt.Errorf("flash callback: %w", err)
	}

	balance0After := p.token0.BalanceOf(p.address)
	balance1After := p.token1.BalanceOf(p.address)
	if balance0After.Cmp(new(big.Int).Add(balance0Before, fee0)) < 0 {
		return ErrFlashRepayment
	}
	if balance1After.Cmp(new(big.Int).Add(balance1Before, fee1)) < 0 {
		return ErrFlashRepayment
	}

	paid0 := new(big.Int).Sub(balance0After, balance0Before)
	paid1 := new(big.Int).Sub(balance1After, balance1Before)

	if paid0.Sign() > 0 {
		growth := new(big.Int)
		if err := fullmath.MulDiv(growth, paid0, fullmath.Q128, p.liquidity); err != nil {
			return err
		}
		fullmath.AddMod256(p.feeGrowthGlobal0X128, p.feeGrowthGlobal0X128, growth)
	}
	if paid1.Sign() > 0 {
		growth := new(big.Int)
		if err := fullmath.MulDiv(growth, paid1, fullmath.Q128, p.liquidity); err != nil {
			return err
		}
		fullmath.AddMod256(p.feeGrowthGlobal1X128, p.feeGrowthGlobal1X128, growth)
	}

	p.metrics.flashTotal.Inc()
	p.logger.Debug("flash",
		"recipient", recipient.Hex(),
		"amount0", amount0.String(),
		"amount1", amount1.String(),
		"paid0", paid0.String(),
		"paid1", paid1.String(),
	)
	return nil
}
