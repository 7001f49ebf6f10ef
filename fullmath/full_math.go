package fullmath

import (
	"errors"
	"math/big"
	"sync"
)

var (
	// Q96 is the UQ64.96 fixed-point scale: 2^96.
	Q96 = new(big.Int).Lsh(big.NewInt(1), 96)
	// Q128 is the fee-growth-per-liquidity fixed-point scale: 2^128.
	Q128 = new(big.Int).Lsh(big.NewInt(1), 128)
	// MaxUint256 is 2^256 - 1, the widest value any accumulator may hold.
	MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

	ErrDivisionByZero = errors.New("denominator must be greater than zero")
	ErrMulDivOverflow = errors.New("muldiv result exceeds 256 bits")

	one    = big.NewInt(1)
	two256 = new(big.Int).Lsh(big.NewInt(1), 256)
)

// scratch holds reusable big.Int objects so the hot arithmetic paths do not
// allocate. Instances are managed by a sync.Pool for safe concurrent use.
type scratch struct {
	product *big.Int
	rem     *big.Int
}

var scratchPool = sync.Pool{
	New: func() any {
		return &scratch{
			product: new(big.Int),
			rem:     new(big.Int),
		}
	},
}

// MulDiv writes floor(a * b / denominator) into dest.
// The intermediate product is computed at full width, so the only failure
// modes are a zero denominator and a result wider than 256 bits.
func MulDiv(dest, a, b, denominator *big.Int) error {
	if denominator.Sign() == 0 {
		return ErrDivisionByZero
	}

	s := scratchPool.Get().(*scratch)
	defer scratchPool.Put(s)

	s.product.Mul(a, b)
	dest.Div(s.product, denominator)
	if dest.Cmp(MaxUint256) > 0 {
		return ErrMulDivOverflow
	}
	return nil
}

// MulDivRoundingUp writes ceil(a * b / denominator) into dest.
func MulDivRoundingUp(dest, a, b, denominator *big.Int) error {
	if denominator.Sign() == 0 {
		return ErrDivisionByZero
	}

	s := scratchPool.Get().(*scratch)
	defer scratchPool.Put(s)

	s.product.Mul(a, b)
	dest.DivMod(s.product, denominator, s.rem)
	if s.rem.Sign() > 0 {
		dest.Add(dest, one)
	}
	if dest.Cmp(MaxUint256) > 0 {
		return ErrMulDivOverflow
	}
	return nil
}

// DivRoundingUp writes ceil(a / b) into dest. The caller guarantees b > 0.
func DivRoundingUp(dest, a, b *big.Int) {
	s := scratchPool.Get().(*scratch)
	defer scratchPool.Put(s)

	dest.DivMod(a, b, s.rem)
	if s.rem.Sign() > 0 {
		dest.Add(dest, one)
	}
}

// SubMod256 writes (a - b) mod 2^256 into dest. Fee-growth accumulators rely
// on this wraparound: an "outside" snapshot may exceed the global value it is
// subtracted from, and the difference must still be exact mod 2^256.
func SubMod256(dest, a, b *big.Int) {
	dest.Sub(a, b)
	if dest.Sign() < 0 {
		dest.Add(dest, two256)
	}
}

// AddMod256 writes (a + b) mod 2^256 into dest.
func AddMod256(dest, a, b *big.Int) {
	dest.Add(a, b)
	if dest.Cmp(MaxUint256) > 0 {
		dest.Sub(dest, two256)
	}
}
