package sqrtpricemath

import (
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defistate/clmm-pool-go/fullmath"
)

func newRandInt(bits int) *big.Int {
	max := new(big.Int).Lsh(big.NewInt(1), uint(bits))
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		panic(err)
	}
	return n
}

func TestGetAmount0Delta_Invariants(t *testing.T) {
	for i := 0; i < 1000; i++ {
		sqrtP := newRandInt(160)
		sqrtQ := newRandInt(160)
		liquidity := newRandInt(128)
		if sqrtP.Sign() == 0 {
			sqrtP.SetInt64(1)
		}
		if sqrtQ.Sign() == 0 {
			sqrtQ.SetInt64(1)
		}

		amount0Down := new(big.Int)
		require.NoError(t, GetAmount0Delta(amount0Down, sqrtP, sqrtQ, liquidity, false))
		amount0Up := new(big.Int)
		require.NoError(t, GetAmount0Delta(amount0Up, sqrtP, sqrtQ, liquidity, true))

		assert.True(t, amount0Down.Cmp(amount0Up) <= 0)
		diff := new(big.Int).Sub(amount0Up, amount0Down)
		assert.True(t, diff.Cmp(big.NewInt(2)) < 0)
	}
}

func TestGetAmount1Delta_Invariants(t *testing.T) {
	for i := 0; i < 1000; i++ {
		sqrtP := newRandInt(160)
		sqrtQ := newRandInt(160)
		liquidity := newRandInt(128)
		if sqrtP.Sign() == 0 {
			sqrtP.SetInt64(1)
		}
		if sqrtQ.Sign() == 0 {
			sqrtQ.SetInt64(1)
		}

		amount1Down := new(big.Int)
		require.NoError(t, GetAmount1Delta(amount1Down, sqrtP, sqrtQ, liquidity, false))
		amount1Up := new(big.Int)
		require.NoError(t, GetAmount1Delta(amount1Up, sqrtP, sqrtQ, liquidity, true))

		assert.True(t, amount1Down.Cmp(amount1Up) <= 0)
		diff := new(big.Int).Sub(amount1Up, amount1Down)
		assert.True(t, diff.Cmp(big.NewInt(2)) < 0)
	}
}

func TestGetAmountDelta_ZeroWidthRange(t *testing.T) {
	sqrtP := new(big.Int).Set(fullmath.Q96)
	liquidity := big.NewInt(1_000_000)

	amount0 := new(big.Int)
	require.NoError(t, GetAmount0Delta(amount0, sqrtP, sqrtP, liquidity, true))
	assert.Zero(t, amount0.Sign())

	amount1 := new(big.Int)
	require.NoError(t, GetAmount1Delta(amount1, sqrtP, sqrtP, liquidity, true))
	assert.Zero(t, amount1.Sign())
}

func TestGetAmountDeltaSigned(t *testing.T) {
	sqrtA := new(big.Int).Set(fullmath.Q96)
	sqrtB := new(big.Int).Add(fullmath.Q96, new(big.Int).Div(fullmath.Q96, big.NewInt(100)))
	liquidity := big.NewInt(1_000_000_000)
	negLiquidity := new(big.Int).Neg(liquidity)

	up := new(big.Int)
	require.NoError(t, GetAmount0DeltaSigned(up, sqrtA, sqrtB, liquidity))
	down := new(big.Int)
	require.NoError(t, GetAmount0DeltaSigned(down, sqrtA, sqrtB, negLiquidity))

	// charged amount rounds up, refunded amount rounds down
	assert.True(t, up.Sign() > 0)
	assert.True(t, down.Sign() < 0)
	sum := new(big.Int).Add(up, down)
	assert.True(t, sum.Cmp(big.NewInt(2)) < 0 && sum.Sign() >= 0)

	require.NoError(t, GetAmount1DeltaSigned(up, sqrtA, sqrtB, liquidity))
	require.NoError(t, GetAmount1DeltaSigned(down, sqrtA, sqrtB, negLiquidity))
	assert.True(t, up.Sign() > 0)
	assert.True(t, down.Sign() < 0)
	sum.Add(up, down)
	assert.True(t, sum.Cmp(big.NewInt(2)) < 0 && sum.Sign() >= 0)
}

func TestGetNextSqrtPriceFromInput_Invariants(t *testing.T) {
	for i := 0; i < 200; i++ {
		sqrtP := newRandInt(160)
		liquidity := newRandInt(128)
		amountIn := newRandInt(200)
		zeroForOne := i%2 == 0
		if sqrtP.Sign() == 0 {
			sqrtP.SetInt64(1)
		}
		if liquidity.Sign() == 0 {
			liquidity.SetInt64(1)
		}

		sqrtQ := new(big.Int)
		err := GetNextSqrtPriceFromInput(sqrtQ, sqrtP, liquidity, amountIn, zeroForOne)
		if err != nil {
			continue
		}

		// price moves against the input token, never past zero
		if zeroForOne {
			assert.True(t, sqrtQ.Cmp(sqrtP) <= 0)
			assert.True(t, sqrtQ.Sign() > 0)
		} else {
			assert.True(t, sqrtQ.Cmp(sqrtP) >= 0)
		}

		// zero input leaves the price unchanged
		unchanged := new(big.Int)
		require.NoError(t, GetNextSqrtPriceFromInput(unchanged, sqrtP, liquidity, big.NewInt(0), zeroForOne))
		assert.Zero(t, unchanged.Cmp(sqrtP))
	}
}

func TestGetNextSqrtPriceFromOutput_Invariants(t *testing.T) {
	for i := 0; i < 200; i++ {
		sqrtP := newRandInt(160)
		liquidity := newRandInt(128)
		amountOut := newRandInt(100)
		zeroForOne := i%2 == 0
		if sqrtP.Sign() == 0 {
			sqrtP.SetInt64(1)
		}
		if liquidity.Sign() == 0 {
			liquidity.SetInt64(1)
		}

		sqrtQ := new(big.Int)
		err := GetNextSqrtPriceFromOutput(sqrtQ, sqrtP, liquidity, amountOut, zeroForOne)
		if err != nil {
			// removing more than the range holds is a legitimate failure
			continue
		}

		if zeroForOne {
			assert.True(t, sqrtQ.Cmp(sqrtP) <= 0)
		} else {
			assert.True(t, sqrtQ.Cmp(sqrtP) >= 0)
		}
	}
}

func TestGetNextSqrtPriceFromInput_RejectsBadInputs(t *testing.T) {
	dest := new(big.Int)
	err := GetNextSqrtPriceFromInput(dest, big.NewInt(0), big.NewInt(1), big.NewInt(1), true)
	assert.ErrorIs(t, err, ErrSqrtPriceZero)

	err = GetNextSqrtPriceFromInput(dest, big.NewInt(1), big.NewInt(0), big.NewInt(1), true)
	assert.ErrorIs(t, err, ErrLiquidityZero)
}

// TestNextPriceConsistency: the amount implied by the computed next price
// never exceeds the amount that was provided.
func TestNextPriceConsistency(t *testing.T) {
	for i := 0; i < 200; i++ {
		sqrtP := new(big.Int).Add(newRandInt(120), fullmath.Q96)
		liquidity := new(big.Int).Add(newRandInt(100), big.NewInt(1))
		amountIn := newRandInt(80)

		sqrtQ := new(big.Int)
		require.NoError(t, GetNextSqrtPriceFromInput(sqrtQ, sqrtP, liquidity, amountIn, true))

		implied := new(big.Int)
		require.NoError(t, GetAmount0Delta(implied, sqrtQ, sqrtP, liquidity, false))
		assert.True(t, implied.Cmp(amountIn) <= 0)
	}
}
