package tick

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defistate/clmm-pool-go/fullmath"
	"github.com/defistate/clmm-pool-go/liquiditymath"
)

func TestTickSpacingToMaxLiquidityPerTick(t *testing.T) {
	cases := []struct {
		name        string
		tickSpacing int64
		expected    string
	}{
		{"low fee tier", 10, "1917569901783203986719870431555990"},
		{"medium fee tier", 60, "11505743598341114571880798222544994"},
		{"high fee tier", 200, "38350317471085141830651933667504588"},
		{"entire range", 887272, "113427455640312821154458202477256070485"},
		{"spacing one", 1, "191757530477355301479181766273477"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			expected, ok := new(big.Int).SetString(tc.expected, 10)
			require.True(t, ok)
			assert.Equal(t, expected, TickSpacingToMaxLiquidityPerTick(tc.tickSpacing))
		})
	}
}

func TestRegistryUpdate(t *testing.T) {
	maxLiquidity := new(big.Int).Set(liquiditymath.MaxUint128)

	t.Run("flips on first liquidity and back on last removal", func(t *testing.T) {
		r := NewRegistry()

		flipped, err := r.Update(0, 0, big.NewInt(1), new(big.Int), new(big.Int), false, maxLiquidity)
		require.NoError(t, err)
		assert.True(t, flipped)
		assert.True(t, r.Get(0).Initialized)

		flipped, err = r.Update(0, 0, big.NewInt(1), new(big.Int), new(big.Int), false, maxLiquidity)
		require.NoError(t, err)
		assert.False(t, flipped)

		flipped, err = r.Update(0, 0, big.NewInt(-2), new(big.Int), new(big.Int), false, maxLiquidity)
		require.NoError(t, err)
		assert.True(t, flipped)
		assert.False(t, r.Get(0).Initialized)
	})

	t.Run("rejects gross liquidity above the cap", func(t *testing.T) {
		r := NewRegistry()
		cap := big.NewInt(10)

		_, err := r.Update(0, 0, big.NewInt(10), new(big.Int), new(big.Int), false, cap)
		require.NoError(t, err)

		_, err = r.Update(0, 0, big.NewInt(1), new(big.Int), new(big.Int), false, cap)
		assert.ErrorIs(t, err, ErrLiquidityGrossOverflow)
	})

	t.Run("net liquidity signs by bound side", func(t *testing.T) {
		r := NewRegistry()

		_, err := r.Update(5, 0, big.NewInt(100), new(big.Int), new(big.Int), false, maxLiquidity)
		require.NoError(t, err)
		_, err = r.Update(5, 0, big.NewInt(40), new(big.Int), new(big.Int), true, maxLiquidity)
		require.NoError(t, err)

		info := r.Get(5)
		assert.Equal(t, big.NewInt(140), info.LiquidityGross)
		assert.Equal(t, big.NewInt(60), info.LiquidityNet)
	})

	t.Run("seeds outside growth only at or below the current tick", func(t *testing.T) {
		r := NewRegistry()
		global0 := big.NewInt(1000)
		global1 := big.NewInt(2000)

		_, err := r.Update(-10, 0, big.NewInt(1), global0, global1, false, maxLiquidity)
		require.NoError(t, err)
		assert.Equal(t, global0, r.Get(-10).FeeGrowthOutside0X128)
		assert.Equal(t, global1, r.Get(-10).FeeGrowthOutside1X128)

		_, err = r.Update(10, 0, big.NewInt(1), global0, global1, true, maxLiquidity)
		require.NoError(t, err)
		assert.Zero(t, r.Get(10).FeeGrowthOutside0X128.Sign())
		assert.Zero(t, r.Get(10).FeeGrowthOutside1X128.Sign())
	})

	t.Run("does not reseed an already initialized tick", func(t *testing.T) {
		r := NewRegistry()

		_, err := r.Update(-10, 0, big.NewInt(1), big.NewInt(7), big.NewInt(7), false, maxLiquidity)
		require.NoError(t, err)
		_, err = r.Update(-10, 0, big.NewInt(1), big.NewInt(9999), big.NewInt(9999), false, maxLiquidity)
		require.NoError(t, err)

		assert.Equal(t, big.NewInt(7), r.Get(-10).FeeGrowthOutside0X128)
	})
}

func TestRegistryCross(t *testing.T) {
	t.Run("flips outside to the complement of global", func(t *testing.T) {
		r := NewRegistry()
		info := r.Get(2)
		info.FeeGrowthOutside0X128.SetInt64(3)
		info.FeeGrowthOutside1X128.SetInt64(4)
		info.LiquidityNet.SetInt64(500)

		net := r.Cross(2, big.NewInt(10), big.NewInt(20))

		assert.Equal(t, big.NewInt(500), net)
		assert.Equal(t, big.NewInt(7), info.FeeGrowthOutside0X128)
		assert.Equal(t, big.NewInt(16), info.FeeGrowthOutside1X128)
	})

	t.Run("crossing twice restores the snapshot", func(t *testing.T) {
		r := NewRegistry()
		info := r.Get(2)
		info.FeeGrowthOutside0X128.SetInt64(3)
		info.FeeGrowthOutside1X128.SetInt64(4)

		r.Cross(2, big.NewInt(10), big.NewInt(20))
		r.Cross(2, big.NewInt(10), big.NewInt(20))

		assert.Equal(t, big.NewInt(3), info.FeeGrowthOutside0X128)
		assert.Equal(t, big.NewInt(4), info.FeeGrowthOutside1X128)
	})
}

func TestRegistryGetFeeGrowthInside(t *testing.T) {
	global0 := big.NewInt(15)
	global1 := big.NewInt(15)

	t.Run("uninitialized flanks with price inside", func(t *testing.T) {
		r := NewRegistry()
		inside0, inside1 := r.GetFeeGrowthInside(-2, 2, 0, global0, global1)
		assert.Equal(t, global0, inside0)
		assert.Equal(t, global1, inside1)
	})

	t.Run("subtracts growth above", func(t *testing.T) {
		r := NewRegistry()
		upper := r.Get(2)
		upper.FeeGrowthOutside0X128.SetInt64(2)
		upper.FeeGrowthOutside1X128.SetInt64(3)
		upper.Initialized = true

		inside0, inside1 := r.GetFeeGrowthInside(-2, 2, 0, global0, global1)
		assert.Equal(t, big.NewInt(13), inside0)
		assert.Equal(t, big.NewInt(12), inside1)
	})

	t.Run("subtracts growth below", func(t *testing.T) {
		r := NewRegistry()
		lower := r.Get(-2)
		lower.FeeGrowthOutside0X128.SetInt64(2)
		lower.FeeGrowthOutside1X128.SetInt64(3)
		lower.Initialized = true

		inside0, inside1 := r.GetFeeGrowthInside(-2, 2, 0, global0, global1)
		assert.Equal(t, big.NewInt(13), inside0)
		assert.Equal(t, big.NewInt(12), inside1)
	})

	t.Run("stays exact across mod 2^256 wraparound", func(t *testing.T) {
		r := NewRegistry()
		almostMax := new(big.Int).Sub(fullmath.MaxUint256, big.NewInt(2))
		lower := r.Get(-2)
		lower.FeeGrowthOutside0X128.Set(almostMax)
		lower.FeeGrowthOutside1X128.Set(almostMax)
		lower.Initialized = true
		upper := r.Get(2)
		upper.FeeGrowthOutside0X128.Set(almostMax)
		upper.FeeGrowthOutside1X128.Set(almostMax)
		upper.Initialized = true

		inside0, inside1 := r.GetFeeGrowthInside(-2, 2, 0, new(big.Int), new(big.Int))
		assert.Equal(t, big.NewInt(6), inside0)
		assert.Equal(t, big.NewInt(6), inside1)
	})

	t.Run("price outside the range sees no inside growth", func(t *testing.T) {
		r := NewRegistry()
		inside0, inside1 := r.GetFeeGrowthInside(-2, 2, 5, global0, global1)
		assert.Zero(t, inside0.Sign())
		assert.Zero(t, inside1.Sign())
	})
}

func TestRegistryUpdateCrossRoundTrip(t *testing.T) {
	rnd := rand.New(rand.NewSource(41))
	maxLiquidity := new(big.Int).Set(liquiditymath.MaxUint128)

	for i := 0; i < 200; i++ {
		r := NewRegistry()
		amount := big.NewInt(rnd.Int63n(1 << 40))

		_, err := r.Update(-100, 0, amount, new(big.Int), new(big.Int), false, maxLiquidity)
		require.NoError(t, err)
		_, err = r.Update(100, 0, amount, new(big.Int), new(big.Int), true, maxLiquidity)
		require.NoError(t, err)

		// the two bounds of one range cancel out
		sum := new(big.Int).Add(r.Get(-100).LiquidityNet, r.Get(100).LiquidityNet)
		assert.Zero(t, sum.Sign())

		flipped, err := r.Update(-100, 0, new(big.Int).Neg(amount), new(big.Int), new(big.Int), false, maxLiquidity)
		require.NoError(t, err)
		assert.True(t, flipped)
		r.Clear(-100)
		_, ok := r[-100]
		assert.False(t, ok)
	}
}
