package tick

import (
	"errors"
	"math/big"

	"github.com/defistate/clmm-pool-go/fullmath"
	"github.com/defistate/clmm-pool-go/liquiditymath"
	"github.com/defistate/clmm-pool-go/tickmath"
)

var (
	// ErrLiquidityGrossOverflow is returned when a tick would reference more
	// liquidity than the per-tick cap allows.
	ErrLiquidityGrossOverflow = errors.New("liquidity gross exceeds per-tick maximum")

	maxInt128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	minInt128 = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
)

// Info carries the bookkeeping for one initialized tick.
type Info struct {
	// LiquidityGross is the total liquidity that references this tick from
	// either side of a range; it only tracks whether the tick stays in use.
	LiquidityGross *big.Int
	// LiquidityNet is added to active liquidity when the price crosses this
	// tick from left to right, subtracted right to left.
	LiquidityNet *big.Int
	// FeeGrowthOutside0X128/1X128 snapshot the fee growth on the far side of
	// the tick, relative to the current price. Meaningful only relative to a
	// particular crossing history, not in absolute terms.
	FeeGrowthOutside0X128 *big.Int
	FeeGrowthOutside1X128 *big.Int
	// Initialized is true iff LiquidityGross is nonzero. Kept explicitly so
	// the bitmap and the registry can be cross-checked.
	Initialized bool
}

func newInfo() *Info {
	return &Info{
		LiquidityGross:        new(big.Int),
		LiquidityNet:          new(big.Int),
		FeeGrowthOutside0X128: new(big.Int),
		FeeGrowthOutside1X128: new(big.Int),
	}
}

// Registry is the per-tick ledger, keyed by tick index. Entries are created
// lazily and removed when their gross liquidity returns to zero.
type Registry map[int64]*Info

// NewRegistry returns an empty tick ledger.
func NewRegistry() Registry {
	return make(Registry)
}

// Get returns the entry for a tick, creating a zero entry if absent.
func (r Registry) Get(tick int64) *Info {
	if info, ok := r[tick]; ok {
		return info
	}
	info := newInfo()
	r[tick] = info
	return info
}

// Update applies a liquidity delta to a tick used as one bound of a range.
// It reports whether the tick flipped between initialized and uninitialized.
//
// On the transition into initialized, the fee-growth-outside fields are
// seeded: a tick at or below the current price considers all growth so far
// to be "outside" (below it), a tick above the current price none of it.
func (r Registry) Update(
	tick, tickCurrent int64,
	liquidityDelta *big.Int,
	feeGrowthGlobal0X128, feeGrowthGlobal1X128 *big.Int,
	upper bool,
	maxLiquidityPerTick *big.Int,
) (flipped bool, err error) {
	info := r.Get(tick)

	liquidityGrossAfter := new(big.Int)
	if err := liquiditymath.AddDelta(liquidityGrossAfter, info.LiquidityGross, liquidityDelta); err != nil {
		return false, err
	}
	if liquidityGrossAfter.Cmp(maxLiquidityPerTick) > 0 {
		return false, ErrLiquidityGrossOverflow
	}

	liquidityGrossBefore := info.LiquidityGross
	flipped = (liquidityGrossAfter.Sign() == 0) != (liquidityGrossBefore.Sign() == 0)

	if liquidityGrossBefore.Sign() == 0 {
		if tick <= tickCurrent {
			info.FeeGrowthOutside0X128.Set(feeGrowthGlobal0X128)
			info.FeeGrowthOutside1X128.Set(feeGrowthGlobal1X128)
		}
		info.Initialized = true
	}

	info.LiquidityGross = liquidityGrossAfter
	if flipped && liquidityGrossAfter.Sign() == 0 {
		info.Initialized = false
	}

	if upper {
		info.LiquidityNet.Sub(info.LiquidityNet, liquidityDelta)
	} else {
		info.LiquidityNet.Add(info.LiquidityNet, liquidityDelta)
	}
	if info.LiquidityNet.Cmp(maxInt128) > 0 {
		return false, liquiditymath.ErrLiquidityOverflow
	}
	if info.LiquidityNet.Cmp(minInt128) < 0 {
		return false, liquiditymath.ErrLiquidityUnderflow
	}

	return flipped, nil
}

// Clear removes a tick's entry entirely.
func (r Registry) Clear(tick int64) {
	delete(r, tick)
}

// Cross is called when the price moves through an initialized tick during a
// swap. The outside snapshots flip to their complements so that "outside"
// keeps meaning "away from the current price". Returns the net liquidity the
// caller must apply to active liquidity.
func (r Registry) Cross(tick int64, feeGrowthGlobal0X128, feeGrowthGlobal1X128 *big.Int) *big.Int {
	info := r.Get(tick)
	fullmath.SubMod256(info.FeeGrowthOutside0X128, feeGrowthGlobal0X128, info.FeeGrowthOutside0X128)
	fullmath.SubMod256(info.FeeGrowthOutside1X128, feeGrowthGlobal1X128, info.FeeGrowthOutside1X128)
	return info.LiquidityNet
}

// GetFeeGrowthInside computes the fee growth per unit of liquidity accrued
// strictly inside [tickLower, tickUpper] as global - below - above, where
// each flank reads either a tick's outside snapshot or its complement
// depending on which side of the tick the current price sits. All arithmetic
// wraps mod 2^256 on purpose; differences stay exact across wraparound.
func (r Registry) GetFeeGrowthInside(
	tickLower, tickUpper, tickCurrent int64,
	feeGrowthGlobal0X128, feeGrowthGlobal1X128 *big.Int,
) (feeGrowthInside0X128, feeGrowthInside1X128 *big.Int) {
	lower := r.Get(tickLower)
	upper := r.Get(tickUpper)

	feeGrowthBelow0 := new(big.Int)
	feeGrowthBelow1 := new(big.Int)
	if tickCurrent >= tickLower {
		feeGrowthBelow0.Set(lower.FeeGrowthOutside0X128)
		feeGrowthBelow1.Set(lower.FeeGrowthOutside1X128)
	} else {
		fullmath.SubMod256(feeGrowthBelow0, feeGrowthGlobal0X128, lower.FeeGrowthOutside0X128)
		fullmath.SubMod256(feeGrowthBelow1, feeGrowthGlobal1X128, lower.FeeGrowthOutside1X128)
	}

	feeGrowthAbove0 := new(big.Int)
	feeGrowthAbove1 := new(big.Int)
	if tickCurrent < tickUpper {
		feeGrowthAbove0.Set(upper.FeeGrowthOutside0X128)
		feeGrowthAbove1.Set(upper.FeeGrowthOutside1X128)
	} else {
		fullmath.SubMod256(feeGrowthAbove0, feeGrowthGlobal0X128, upper.FeeGrowthOutside0X128)
		fullmath.SubMod256(feeGrowthAbove1, feeGrowthGlobal1X128, upper.FeeGrowthOutside1X128)
	}

	feeGrowthInside0X128 = new(big.Int)
	fullmath.SubMod256(feeGrowthInside0X128, feeGrowthGlobal0X128, feeGrowthBelow0)
	fullmath.SubMod256(feeGrowthInside0X128, feeGrowthInside0X128, feeGrowthAbove0)

	feeGrowthInside1X128 = new(big.Int)
	fullmath.SubMod256(feeGrowthInside1X128, feeGrowthGlobal1X128, feeGrowthBelow1)
	fullmath.SubMod256(feeGrowthInside1X128, feeGrowthInside1X128, feeGrowthAbove1)
	return feeGrowthInside0X128, feeGrowthInside1X128
}

// TickSpacingToMaxLiquidityPerTick returns the maximum liquidity one tick may
// reference so that the sum over all initializable ticks cannot overflow a
// uint128.
func TickSpacingToMaxLiquidityPerTick(tickSpacing int64) *big.Int {
	minTick := (tickmath.MIN_TICK / tickSpacing) * tickSpacing
	maxTick := (tickmath.MAX_TICK / tickSpacing) * tickSpacing
	numTicks := (maxTick-minTick)/tickSpacing + 1
	return new(big.Int).Div(liquiditymath.MaxUint128, big.NewInt(numTicks))
}
