package pool

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Asset is the transfer collaborator for one of the pool's two tokens. The
// pool never pulls funds; callers push them during a callback and the pool
// verifies its own balance moved by at least the quoted amount.
type Asset interface {
	BalanceOf(account common.Address) *big.Int
	Transfer(to common.Address, amount *big.Int) error
}

// MintCallback is invoked during Mint after the owed amounts are known. The
// implementation must transfer at least amount0Owed of token0 and
// amount1Owed of token1 to the pool before returning.
type MintCallback func(amount0Owed, amount1Owed *big.Int) error

// SwapCallback is invoked during Swap with the signed balance deltas:
// positive values are owed to the pool, negative values will be paid out to
// the recipient. The implementation must transfer the positive side to the
// pool before returning.
type SwapCallback func(amount0Delta, amount1Delta *big.Int) error

// FlashCallback is invoked during Flash after the borrowed amounts were
// sent. The implementation must return the borrowed amounts plus the quoted
// fees to the pool before returning.
type FlashCallback func(fee0, fee1 *big.Int) error

var (
	ErrAlreadyInitialized = errors.New("pool already initialized")
	ErrNotInitialized     = errors.New("pool not initialized")
	ErrLocked             = errors.New("pool is locked")
	ErrInvalidTickRange   = errors.New("invalid tick range")
	ErrZeroLiquidity      = errors.New("liquidity amount must be greater than zero")
	ErrInvalidPriceLimit  = errors.New("price limit not between current price and boundary")
	ErrZeroAmount         = errors.New("amount must be nonzero")
	ErrInsufficientInput  = errors.New("insufficient input transferred")
	ErrFlashRepayment     = errors.New("flash repayment short of principal plus fee")
	ErrNoFlashLiquidity   = errors.New("flash requires active liquidity")
)

// Config carries the immutable pool parameters.
type Config struct {
	// Token0 and Token1 are the transfer collaborators for the pool pair,
	// ordered so that prices quote token1 per token0.
	Token0 Asset
	Token1 Asset
	// PoolAddress is the account the pool holds its reserves under.
	PoolAddress common.Address
	// Fee is the swap fee in parts per million, e.g. 3000 for 0.30%.
	Fee uint64
	// TickSpacing restricts initializable ticks to its multiples.
	TickSpacing int64
	Logger      Logger                // Required.
	Registry    prometheus.Registerer // Required for metrics.
	// Now returns the current timestamp for oracle writes. Defaults to the
	// wall clock truncated to 32 bits.
	Now func() uint32
}

// validate checks if the configuration is valid, ensuring required dependencies are present.
func (c *Config) validate() error {
	if c.Token0 == nil || c.Token1 == nil {
		return errors.New("config: Token0 and Token1 cannot be nil")
	}
	if c.Fee >= 1_000_000 {
		return errors.New("config: Fee must be below one million pips")
	}
	if c.TickSpacing <= 0 {
		return errors.New("config: TickSpacing must be positive")
	}
	if c.Logger == nil {
		return errors.New("config: Logger cannot be nil")
	}
	if c.Registry == nil {
		return errors.New("config: Registry cannot be nil")
	}
	return nil
}

// slot0 packs the frequently accessed pool state.
type slot0 struct {
	sqrtPriceX96               *big.Int
	tick                       int64
	observationIndex           uint16
	observationCardinality     uint16
	observationCardinalityNext uint16
}
