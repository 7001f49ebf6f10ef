package liquiditymath

import (
	"errors"
	"math/big"
)

var (
	// MaxUint128 bounds every liquidity value in the pool.
	MaxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

	ErrLiquidityOverflow  = errors.New("liquidity overflow")
	ErrLiquidityUnderflow = errors.New("liquidity underflow")
)

// AddDelta writes x + y into dest, where x is unsigned liquidity and y a
// signed delta. Fails rather than wrap when the result leaves [0, 2^128);
// dest is untouched on failure, even when it aliases x.
func AddDelta(dest, x, y *big.Int) error {
	sum := new(big.Int).Add(x, y)
	if sum.Sign() < 0 {
		return ErrLiquidityUnderflow
	}
	if sum.Cmp(MaxUint128) > 0 {
		return ErrLiquidityOverflow
	}
	dest.Set(sum)
	return nil
}
