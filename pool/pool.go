package pool

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/defistate/clmm-pool-go/fullmath"
	"github.com/defistate/clmm-pool-go/oracle"
	"github.com/defistate/clmm-pool-go/position"
	"github.com/defistate/clmm-pool-go/tick"
	"github.com/defistate/clmm-pool-go/tickbitmap"
	"github.com/defistate/clmm-pool-go/tickmath"
)

// Pool is a single concentrated-liquidity market between two assets. All
// state belongs exclusively to one Pool value; operations run one at a time
// to completion and either commit fully or leave the pool untouched.
type Pool struct {
	token0  Asset
	token1  Asset
	address common.Address

	fee                 uint64
	tickSpacing         int64
	maxLiquidityPerTick *big.Int

	logger  Logger
	metrics *Metrics
	now     func() uint32

	slot0                slot0
	feeGrowthGlobal0X128 *big.Int
	feeGrowthGlobal1X128 *big.Int
	liquidity            *big.Int

	ticks        tick.Registry
	tickBitmap   tickbitmap.Bitmap
	positions    position.Ledger
	observations *oracle.Oracle

	initialized bool
	unlocked    bool
}

// New constructs an uninitialized pool from a configuration, returning an
// error if the config is invalid. Initialize must be called before any
// other operation.
func New(cfg *Config) (*Pool, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	now := cfg.Now
	if now == nil {
		now = func() uint32 { return uint32(time.Now().Unix()) }
	}

	return &Pool{
		token0:               cfg.Token0,
		token1:               cfg.Token1,
		address:              cfg.PoolAddress,
		fee:                  cfg.Fee,
		tickSpacing:          cfg.TickSpacing,
		maxLiquidityPerTick:  tick.TickSpacingToMaxLiquidityPerTick(cfg.TickSpacing),
		logger:               cfg.Logger,
		metrics:              NewMetrics(cfg.Registry),
		now:                  now,
		feeGrowthGlobal0X128: new(big.Int),
		feeGrowthGlobal1X128: new(big.Int),
		liquidity:            new(big.Int),
		ticks:                tick.NewRegistry(),
		tickBitmap:           tickbitmap.New(),
		positions:            position.NewLedger(),
		observations:         oracle.New(),
		unlocked:             true,
	}, nil
}

// Initialize sets the starting price and seeds the oracle. It can be called
// exactly once.
func (p *Pool) Initialize(sqrtPriceX96 *big.Int) error {
	if p.initialized {
		return ErrAlreadyInitialized
	}

	tickAtPrice, err := tickmath.GetTickAtSqrtRatio(sqrtPriceX96)
	if err != nil {
		return err
	}

	cardinality, cardinalityNext := p.observations.Initialize(p.now())

	p.slot0 = slot0{
		sqrtPriceX96:               new(big.Int).Set(sqrtPriceX96),
		tick:                       tickAtPrice,
		observationIndex:           0,
		observationCardinality:     cardinality,
		observationCardinalityNext: cardinalityNext,
	}
	p.initialized = true
	p.metrics.observationCount.Set(float64(cardinality))

	p.logger.Info("pool initialized", "tick", tickAtPrice, "sqrtPriceX96", sqrtPriceX96.String())
	return nil
}

// lock acquires the pool's non-reentrancy guard for one operation.
func (p *Pool) lock() error {
	if !p.initialized {
		return ErrNotInitialized
	}
	if !p.unlocked {
		return ErrLocked
	}
	p.unlocked = false
	return nil
}

func (p *Pool) unlock() {
	p.unlocked = true
}

// SqrtPriceX96 returns a copy of the current sqrt price.
func (p *Pool) SqrtPriceX96() *big.Int {
	return new(big.Int).Set(p.slot0.sqrtPriceX96)
}

// Tick returns the current tick.
func (p *Pool) Tick() int64 {
	return p.slot0.tick
}

// Liquidity returns a copy of the currently active liquidity.
func (p *Pool) Liquidity() *big.Int {
	return new(big.Int).Set(p.liquidity)
}

// FeeGrowthGlobal returns copies of the two global fee-growth accumulators.
func (p *Pool) FeeGrowthGlobal() (feeGrowthGlobal0X128, feeGrowthGlobal1X128 *big.Int) {
	return new(big.Int).Set(p.feeGrowthGlobal0X128), new(big.Int).Set(p.feeGrowthGlobal1X128)
}

// Position returns a snapshot of the position state for an owner and range.
func (p *Pool) Position(owner common.Address, tickLower, tickUpper int64) (liquidity, tokensOwed0, tokensOwed1 *big.Int) {
	pos := p.positions.Get(owner, tickLower, tickUpper)
	return new(big.Int).Set(pos.Liquidity), new(big.Int).Set(pos.TokensOwed0), new(big.Int).Set(pos.TokensOwed1)
}

// VirtualReserves derives the pool's notional reserves from the active
// liquidity and current price. Not a balance; ranges outside the current
// price hold more.
func (p *Pool) VirtualReserves() (reserve0, reserve1 *big.Int) {
	if !p.initialized {
		return new(big.Int), new(big.Int)
	}
	reserve0 = new(big.Int).Div(new(big.Int).Lsh(p.liquidity, 96), p.slot0.sqrtPriceX96)
	reserve1 = new(big.Int).Div(new(big.Int).Mul(p.liquidity, p.slot0.sqrtPriceX96), fullmath.Q96)
	return reserve0, reserve1
}

// Observe returns the cumulative tick as of each requested lookback,
// evaluated against the live pool state.
func (p *Pool) Observe(secondsAgos []uint32) ([]int64, error) {
	if !p.initialized {
		return nil, ErrNotInitialized
	}
	return p.observations.Observe(
		p.now(),
		secondsAgos,
		p.slot0.tick,
		p.slot0.observationIndex,
		p.slot0.observationCardinality,
	)
}

// IncreaseObservationCardinalityNext requests room for more oracle samples.
// The new slots materialize lazily as swaps write past the old ring size.
func (p *Pool) IncreaseObservationCardinalityNext(observationCardinalityNext uint16) error {
	if err := p.lock(); err != nil {
		return err
	}
	defer p.unlock()

	old := p.slot0.observationCardinalityNext
	next := p.observations.Grow(old, observationCardinalityNext)
	p.slot0.observationCardinalityNext = next
	if old != next {
		p.logger.Info("observation cardinality next increased", "old", old, "new", next)
	}
	return nil
}

// checkTicks validates a position's bounds.
func (p *Pool) checkTicks(tickLower, tickUpper int64) error {
	if tickLower >= tickUpper {
		return ErrInvalidTickRange
	}
	if tickLower < tickmath.MIN_TICK || tickUpper > tickmath.MAX_TICK {
		return ErrInvalidTickRange
	}
	if tickLower%p.tickSpacing != 0 || tickUpper%p.tickSpacing != 0 {
		return ErrInvalidTickRange
	}
	return nil
}
