package swapmath

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

// TestComputeSwapStep_Invariants runs random inputs and verifies the step's
// core accounting properties.
func TestComputeSwapStep_Invariants(t *testing.T) {
	for i := 0; i < 1000; i++ {
		sqrtPriceRaw := newRandInt(160)
		sqrtPriceTargetRaw := newRandInt(160)
		liquidity := newRandInt(128)
		amountRemaining := newRandInt(256)
		if i%2 == 1 {
			amountRemaining.Neg(amountRemaining)
		}
		feePips := uint64(1 + i%999_999)

		if sqrtPriceRaw.Sign() == 0 {
			sqrtPriceRaw.SetInt64(1)
		}
		if sqrtPriceTargetRaw.Sign() == 0 {
			sqrtPriceTargetRaw.SetInt64(1)
		}

		sqrtQ, amountIn, amountOut, feeAmount := new(big.Int), new(big.Int), new(big.Int), new(big.Int)
		err := ComputeSwapStep(
			sqrtQ, amountIn, amountOut, feeAmount,
			sqrtPriceRaw, sqrtPriceTargetRaw, liquidity, amountRemaining, feePips,
		)
		if err != nil {
			continue
		}

		sumIn := new(big.Int).Add(amountIn, feeAmount)
		assert.True(t, sumIn.BitLen() <= 256)

		if amountRemaining.Sign() < 0 {
			assert.True(t, amountOut.Cmp(new(big.Int).Neg(amountRemaining)) <= 0)
		} else {
			assert.True(t, sumIn.Cmp(amountRemaining) <= 0)
		}

		if sqrtPriceRaw.Cmp(sqrtPriceTargetRaw) == 0 {
			assert.Zero(t, amountIn.Sign())
			assert.Zero(t, amountOut.Sign())
			assert.Zero(t, feeAmount.Sign())
			assert.Zero(t, sqrtQ.Cmp(sqrtPriceTargetRaw))
		}

		// if the target was not reached the entire budget must be consumed
		if sqrtQ.Cmp(sqrtPriceTargetRaw) != 0 {
			if amountRemaining.Sign() < 0 {
				assert.Zero(t, amountOut.Cmp(new(big.Int).Neg(amountRemaining)))
			} else {
				assert.Zero(t, sumIn.Cmp(amountRemaining))
			}
		}

		// the next price lands between the start and the target
		if sqrtPriceTargetRaw.Cmp(sqrtPriceRaw) <= 0 {
			assert.True(t, sqrtQ.Cmp(sqrtPriceRaw) <= 0)
			assert.True(t, sqrtQ.Cmp(sqrtPriceTargetRaw) >= 0)
		} else {
			assert.True(t, sqrtQ.Cmp(sqrtPriceRaw) >= 0)
			assert.True(t, sqrtQ.Cmp(sqrtPriceTargetRaw) <= 0)
		}
	}
}

// TestComputeSwapStep_ExactInCappedAtTarget: a generous budget stops exactly
// at the target price and charges the fee on the consumed input only.
func TestComputeSwapStep_ExactInCappedAtTarget(t *testing.T) {
	price := new(big.Int).Set(fullmath.Q96)
	// target 1% above current
	target := new(big.Int).Add(price, new(big.Int).Div(price, big.NewInt(100)))
	liquidity := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	amountRemaining := new(big.Int).Exp(big.NewInt(10), big.NewInt(30), nil)
	feePips := uint64(600)

	sqrtQ, amountIn, amountOut, feeAmount := new(big.Int), new(big.Int), new(big.Int), new(big.Int)
	require.NoError(t, ComputeSwapStep(sqrtQ, amountIn, amountOut, feeAmount,
		price, target, liquidity, amountRemaining, feePips))

	assert.Zero(t, sqrtQ.Cmp(target))
	assert.True(t, new(big.Int).Add(amountIn, feeAmount).Cmp(amountRemaining) < 0)

	// fee ~= amountIn * feePips / (1e6 - feePips), rounded up
	expectedFee := new(big.Int)
	require.NoError(t, fullmath.MulDivRoundingUp(expectedFee, amountIn, big.NewInt(int64(feePips)), new(big.Int).Sub(FeeDenominator, big.NewInt(int64(feePips)))))
	assert.Zero(t, feeAmount.Cmp(expectedFee))
}

// TestComputeSwapStep_ExactInPartial: a small budget is consumed entirely,
// with the fee being whatever the input calculation leaves over.
func TestComputeSwapStep_ExactInPartial(t *testing.T) {
	price := new(big.Int).Set(fullmath.Q96)
	target := new(big.Int).Add(price, new(big.Int).Div(price, big.NewInt(2)))
	liquidity := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	amountRemaining := big.NewInt(1_000_000)
	feePips := uint64(3000)

	sqrtQ, amountIn, amountOut, feeAmount := new(big.Int), new(big.Int), new(big.Int), new(big.Int)
	require.NoError(t, ComputeSwapStep(sqrtQ, amountIn, amountOut, feeAmount,
		price, target, liquidity, amountRemaining, feePips))

	assert.True(t, sqrtQ.Cmp(target) < 0)
	assert.Zero(t, new(big.Int).Add(amountIn, feeAmount).Cmp(amountRemaining))
	assert.True(t, amountOut.Sign() > 0)
}

// TestComputeSwapStep_ExactOutCapped: output is clamped to the request even
// when the range could deliver more.
func TestComputeSwapStep_ExactOutCapped(t *testing.T) {
	price := new(big.Int).Set(fullmath.Q96)
	target := new(big.Int).Sub(price, new(big.Int).Div(price, big.NewInt(2)))
	liquidity := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	amountRemaining := big.NewInt(-1_000_000)
	feePips := uint64(3000)

	sqrtQ, amountIn, amountOut, feeAmount := new(big.Int), new(big.Int), new(big.Int), new(big.Int)
	require.NoError(t, ComputeSwapStep(sqrtQ, amountIn, amountOut, feeAmount,
		price, target, liquidity, amountRemaining, feePips))

	assert.Zero(t, amountOut.Cmp(big.NewInt(1_000_000)))
	assert.True(t, sqrtQ.Cmp(target) > 0)
	assert.True(t, amountIn.Sign() > 0)
	assert.True(t, feeAmount.Sign() > 0)
}
