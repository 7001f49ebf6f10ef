package bitmath

import (
	"errors"
	"math/big"
	"math/bits"
)

var (
	// ErrInputIsZero is returned when a function requires a non-zero input but receives zero.
	ErrInputIsZero = errors.New("input must be greater than zero")
	// ErrInputIsNil is returned when a function receives a nil pointer.
	ErrInputIsNil = errors.New("input cannot be nil")
)

// MostSignificantBit returns the index of the most significant set bit of x,
// counting from zero at the least significant position.
// The result satisfies: x >= 2**msb(x) and x < 2**(msb(x)+1).
func MostSignificantBit(x *big.Int) (uint8, error) {
	if x == nil {
		return 0, ErrInputIsNil
	}
	if x.Sign() <= 0 {
		return 0, ErrInputIsZero
	}
	// BitLen is the number of bits needed to represent x, so the MSB index is one less.
	return uint8(x.BitLen() - 1), nil
}

// LeastSignificantBit returns the index of the least significant set bit of x.
// The result satisfies: (x & 2**lsb(x)) != 0.
func LeastSignificantBit(x *big.Int) (uint8, error) {
	if x == nil {
		return 0, ErrInputIsNil
	}
	if x.Sign() <= 0 {
		return 0, ErrInputIsZero
	}

	// Scan the internal words; the first non-zero word holds the LSB.
	for i, word := range x.Bits() {
		if word > 0 {
			return uint8(i*bits.UintSize + bits.TrailingZeros(uint(word))), nil
		}
	}

	// Unreachable for x > 0; kept as a safeguard.
	return 0, ErrInputIsZero
}
