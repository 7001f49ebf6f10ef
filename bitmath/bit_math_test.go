package bitmath

import (
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMostSignificantBit(t *testing.T) {
	testCases := []struct {
		name     string
		input    *big.Int
		expected uint8
		err      error
	}{
		{"Input 1", big.NewInt(1), 0, nil},
		{"Input 2", big.NewInt(2), 1, nil},
		{"Input 3", big.NewInt(3), 1, nil},
		{"Input 255", big.NewInt(255), 7, nil},
		{"Input 256", big.NewInt(256), 8, nil},
		{"2^255", new(big.Int).Lsh(big.NewInt(1), 255), 255, nil},
		{"2^256 - 1", new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1)), 255, nil},
		{"Error on Zero", big.NewInt(0), 0, ErrInputIsZero},
		{"Error on Nil", nil, 0, ErrInputIsNil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := MostSignificantBit(tc.input)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tc.expected, result)
			}
		})
	}
}

func TestLeastSignificantBit(t *testing.T) {
	testCases := []struct {
		name     string
		input    *big.Int
		expected uint8
		err      error
	}{
		{"Input 1", big.NewInt(1), 0, nil},
		{"Input 2", big.NewInt(2), 1, nil},
		{"Input 3", big.NewInt(3), 0, nil},
		{"Input 8", big.NewInt(8), 3, nil},
		{"Input 10", big.NewInt(10), 1, nil},
		{"2^128", new(big.Int).Lsh(big.NewInt(1), 128), 128, nil},
		{"2^128 + 2^64", new(big.Int).Or(new(big.Int).Lsh(big.NewInt(1), 128), new(big.Int).Lsh(big.NewInt(1), 64)), 64, nil},
		{"Error on Zero", big.NewInt(0), 0, ErrInputIsZero},
		{"Error on Nil", nil, 0, ErrInputIsNil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := LeastSignificantBit(tc.input)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tc.expected, result)
			}
		})
	}
}

// TestBitProperties checks the defining MSB/LSB properties on random inputs.
func TestBitProperties(t *testing.T) {
	max := new(big.Int).Lsh(big.NewInt(1), 256)
	for i := 0; i < 1000; i++ {
		x, err := rand.Int(rand.Reader, max)
		require.NoError(t, err)
		if x.Sign() == 0 {
			x.SetInt64(1)
		}

		msb, err := MostSignificantBit(x)
		require.NoError(t, err)
		lower := new(big.Int).Lsh(big.NewInt(1), uint(msb))
		upper := new(big.Int).Lsh(big.NewInt(1), uint(msb)+1)
		assert.True(t, x.Cmp(lower) >= 0)
		assert.True(t, x.Cmp(upper) < 0)

		lsb, err := LeastSignificantBit(x)
		require.NoError(t, err)
		assert.Equal(t, uint(1), x.Bit(int(lsb)))
		for b := 0; b < int(lsb); b++ {
			assert.Equal(t, uint(0), x.Bit(b))
		}
	}
}
