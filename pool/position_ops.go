package pool

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/defistate/clmm-pool-go/liquiditymath"
	"github.com/defistate/clmm-pool-go/position"
	"github.com/defistate/clmm-pool-go/sqrtpricemath"
	"github.com/defistate/clmm-pool-go/tick"
	"github.com/defistate/clmm-pool-go/tickmath"
)

// amountsForLiquidity quotes the signed token deltas of applying a liquidity
// delta over a range at the current price: positive amounts are owed to the
// pool, negative amounts are released. Entirely token0 below the range,
// entirely token1 above it, a split when the price is inside.
func (p *Pool) amountsForLiquidity(tickLower, tickUpper int64, liquidityDelta *big.Int) (amount0, amount1 *big.Int, err error) {
	sqrtRatioLowerX96 := new(big.Int)
	if err := tickmath.GetSqrtRatioAtTick(sqrtRatioLowerX96, tickLower); err != nil {
		return nil, nil, err
	}
	sqrtRatioUpperX96 := new(big.Int)
	if err := tickmath.GetSqrtRatioAtTick(sqrtRatioUpperX96, tickUpper); err != nil {
		return nil, nil, err
	}

	amount0 = new(big.Int)
	amount1 = new(big.Int)

	switch {
	case p.slot0.tick < tickLower:
		err = sqrtpricemath.GetAmount0DeltaSigned(amount0, sqrtRatioLowerX96, sqrtRatioUpperX96, liquidityDelta)
	case p.slot0.tick < tickUpper:
		if err = sqrtpricemath.GetAmount0DeltaSigned(amount0, p.slot0.sqrtPriceX96, sqrtRatioUpperX96, liquidityDelta); err != nil {
			return nil, nil, err
		}
		err = sqrtpricemath.GetAmount1DeltaSigned(amount1, sqrtRatioLowerX96, p.slot0.sqrtPriceX96, liquidityDelta)
	default:
		err = sqrtpricemath.GetAmount1DeltaSigned(amount1, sqrtRatioLowerX96, sqrtRatioUpperX96, liquidityDelta)
	}
	if err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

// updatePosition applies a liquidity delta to the range's two bound ticks,
// keeps the bitmap in sync with tick flips, and settles the position's fees.
// All fallible conditions are checked before the first mutation so a failed
// call leaves the ledgers untouched.
func (p *Pool) updatePosition(owner common.Address, tickLower, tickUpper int64, liquidityDelta *big.Int) (*position.Position, error) {
	pos := p.positions.Get(owner, tickLower, tickUpper)

	switch liquidityDelta.Sign() {
	case 0:
		if pos.Liquidity.Sign() == 0 {
			return nil, position.ErrEmptyPosition
		}
	case -1:
		abs := new(big.Int).Neg(liquidityDelta)
		if pos.Liquidity.Cmp(abs) < 0 {
			return nil, liquiditymath.ErrLiquidityUnderflow
		}
	case 1:
		for _, t := range []int64{tickLower, tickUpper} {
			grossAfter := new(big.Int).Add(p.ticks.Get(t).LiquidityGross, liquidityDelta)
			if grossAfter.Cmp(p.maxLiquidityPerTick) > 0 {
				return nil, tick.ErrLiquidityGrossOverflow
			}
		}
	}

	var flippedLower, flippedUpper bool
	if liquidityDelta.Sign() != 0 {
		var err error
		flippedLower, err = p.ticks.Update(
			tickLower, p.slot0.tick, liquidityDelta,
			p.feeGrowthGlobal0X128, p.feeGrowthGlobal1X128,
			false, p.maxLiquidityPerTick,
		)
		if err != nil {
			return nil, err
		}
		flippedUpper, err = p.ticks.Update(
			tickUpper, p.slot0.tick, liquidityDelta,
			p.feeGrowthGlobal0X128, p.feeGrowthGlobal1X128,
			true, p.maxLiquidityPerTick,
		)
		if err != nil {
			return nil, err
		}

		if flippedLower {
			if err := p.tickBitmap.FlipTick(tickLower, p.tickSpacing); err != nil {
				return nil, err
			}
		}
		if flippedUpper {
			if err := p.tickBitmap.FlipTick(tickUpper, p.tickSpacing); err != nil {
				return nil, err
			}
		}
	}

	feeGrowthInside0X128, feeGrowthInside1X128 := p.ticks.GetFeeGrowthInside(
		tickLower, tickUpper, p.slot0.tick,
		p.feeGrowthGlobal0X128, p.feeGrowthGlobal1X128,
	)

	if err := pos.Update(liquidityDelta, feeGrowthInside0X128, feeGrowthInside1X128); err != nil {
		return nil, err
	}

	// ticks whose last liquidity just left can be forgotten entirely
	if liquidityDelta.Sign() < 0 {
		if flippedLower {
			p.ticks.Clear(tickLower)
		}
		if flippedUpper {
			p.ticks.Clear(tickUpper)
		}
	}
	return pos, nil
}

// modifyPosition is the shared add/remove path: it settles the ledgers via
// updatePosition, records an oracle sample when the active range changes
// depth, and applies the delta to global liquidity if the price is inside.
func (p *Pool) modifyPosition(owner common.Address, tickLower, tickUpper int64, liquidityDelta *big.Int) (pos *position.Position, amount0, amount1 *big.Int, err error) {
	if err := p.checkTicks(tickLower, tickUpper); err != nil {
		return nil, nil, nil, err
	}

	pos, err = p.updatePosition(owner, tickLower, tickUpper, liquidityDelta)
	if err != nil {
		return nil, nil, nil, err
	}

	amount0, amount1, err = p.amountsForLiquidity(tickLower, tickUpper, liquidityDelta)
	if err != nil {
		return nil, nil, nil, err
	}

	if liquidityDelta.Sign() != 0 && p.slot0.tick >= tickLower && p.slot0.tick < tickUpper {
		p.writeObservation()

		if err := liquiditymath.AddDelta(p.liquidity, p.liquidity, liquidityDelta); err != nil {
			return nil, nil, nil, err
		}
	}
	return pos, amount0, amount1, nil
}

// writeObservation appends an oracle sample for the current tick at the
// current time and commits the updated ring coordinates.
func (p *Pool) writeObservation() {
	index, cardinality := p.observations.Write(
		p.slot0.observationIndex,
		p.now(),
		p.slot0.tick,
		p.slot0.observationCardinality,
		p.slot0.observationCardinalityNext,
	)
	p.slot0.observationIndex = index
	p.slot0.observationCardinality = cardinality
	p.metrics.observationCount.Set(float64(cardinality))
}

// Mint adds liquidity to a range. The owed token amounts are quoted first,
// the callback is asked to pay them, the pool's balances are re-checked, and
// only then is any ledger state committed.
func (p *Pool) Mint(recipient common.Address, tickLower, tickUpper int64, amount *big.Int, cb MintCallback) (amount0, amount1 *big.Int, err error) {
	if err := p.lock(); err != nil {
		return nil, nil, err
	}
	defer p.unlock()
	defer p.countError("mint", &err)

	if amount == nil || amount.Sign() <= 0 {
		return nil, nil, ErrZeroLiquidity
	}
	if err := p.checkTicks(tickLower, tickUpper); err != nil {
		return nil, nil, err
	}

	amount0, amount1, err = p.amountsForLiquidity(tickLower, tickUpper, amount)
	if err != nil {
		return nil, nil, err
	}

	var balance0Before, balance1Before *big.Int
	if amount0.Sign() > 0 {
		balance0Before = p.token0.BalanceOf(p.address)
	}
	if amount1.Sign() > 0 {
		balance1Before = p.token1.BalanceOf(p.address)
	}

	if err := cb(new(big.Int).Set(amount0), new(big.Int).Set(amount1)); err != nil {
		return nil, nil, fmt.Errorf("mint callback: %w", err)
	}

	if amount0.Sign() > 0 {
		required := new(big.Int).Add(balance0Before, amount0)
		if p.token0.BalanceOf(p.address).Cmp(required) < 0 {
			return nil, nil, ErrInsufficientInput
		}
	}
	if amount1.Sign() > 0 {
		required := new(big.Int).Add(balance1Before, amount1)
		if p.token1.BalanceOf(p.address).Cmp(required) < 0 {
			return nil, nil, ErrInsufficientInput
		}
	}

	if _, _, _, err = p.modifyPosition(recipient, tickLower, tickUpper, amount); err != nil {
		return nil, nil, err
	}

	p.metrics.mintTotal.Inc()
	p.logger.Debug("mint",
		"owner", recipient.Hex(),
		"tickLower", tickLower,
		"tickUpper", tickUpper,
		"liquidity", amount.String(),
		"amount0", amount0.String(),
		"amount1", amount1.String(),
	)
	return amount0, amount1, nil
}

// Burn removes liquidity from a range, crediting the released principal to
// the position's owed balances for a later Collect. A zero amount is a fee
// poke: it settles accrued fees without touching liquidity.
func (p *Pool) Burn(owner common.Address, tickLower, tickUpper int64, amount *big.Int) (amount0, amount1 *big.Int, err error) {
	if err := p.lock(); err != nil {
		return nil, nil, err
	}
	defer p.unlock()
	defer p.countError("burn", &err)

	if amount == nil || amount.Sign() < 0 {
		return nil, nil, ErrZeroLiquidity
	}

	pos, amount0, amount1, err := p.modifyPosition(owner, tickLower, tickUpper, new(big.Int).Neg(amount))
	if err != nil {
		return nil, nil, err
	}

	// released amounts come back negative; owe them to the position
	amount0.Neg(amount0)
	amount1.Neg(amount1)
	pos.TokensOwed0.Add(pos.TokensOwed0, amount0)
	pos.TokensOwed1.Add(pos.TokensOwed1, amount1)

	p.metrics.burnTotal.Inc()
	p.logger.Debug("burn",
		"owner", owner.Hex(),
		"tickLower", tickLower,
		"tickUpper", tickUpper,
		"liquidity", amount.String(),
		"amount0", amount0.String(),
		"amount1", amount1.String(),
	)
	return amount0, amount1, nil
}

// Collect pays out owed balances, clamped to the requested amounts. Passing
// requests larger than what is owed collects everything.
func (p *Pool) Collect(owner, recipient common.Address, tickLower, tickUpper int64, amount0Requested, amount1Requested *big.Int) (amount0, amount1 *big.Int, err error) {
	if err := p.lock(); err != nil {
		return nil, nil, err
	}
	defer p.unlock()
	defer p.countError("collect", &err)

	pos := p.positions.Get(owner, tickLower, tickUpper)

	amount0 = clampToOwed(amount0Requested, pos.TokensOwed0)
	amount1 = clampToOwed(amount1Requested, pos.TokensOwed1)

	if amount0.Sign() > 0 {
		if err := p.token0.Transfer(recipient, amount0); err != nil {
			return nil, nil, fmt.Errorf("collect token0: %w", err)
		}
		pos.TokensOwed0.Sub(pos.TokensOwed0, amount0)
	}
	if amount1.Sign() > 0 {
		if err := p.token1.Transfer(recipient, amount1); err != nil {
			return nil, nil, fmt.Errorf("collect token1: %w", err)
		}
		pos.TokensOwed1.Sub(pos.TokensOwed1, amount1)
	}

	p.metrics.collectTotal.Inc()
	p.logger.Debug("collect",
		"owner", owner.Hex(),
		"recipient", recipient.Hex(),
		"amount0", amount0.String(),
		"amount1", amount1.String(),
	)
	return amount0, amount1, nil
}

func clampToOwed(requested, owed *big.Int) *big.Int {
	if requested == nil || requested.Cmp(owed) > 0 {
		return new(big.Int).Set(owed)
	}
	if requested.Sign() < 0 {
		return new(big.Int)
	}
	return new(big.Int).Set(requested)
}

func (p *Pool) countError(operation string, err *error) {
	if *err != nil {
		p.metrics.operationErrors.WithLabelValues(operation).Inc()
	}
}
