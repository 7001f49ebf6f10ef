package tickbitmap

import (
	"errors"
	"math/big"

	"github.com/defistate/clmm-pool-go/bitmath"
)

// ErrTickMisaligned is returned when a tick is not a multiple of the pool's
// tick spacing and therefore can never be initialized.
var ErrTickMisaligned = errors.New("tick not aligned to tick spacing")

var (
	one = big.NewInt(1)
	// fullMask has all 256 bits of a word set.
	fullMask = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

// Bitmap indexes initialized ticks: bit b of word w is set iff the compressed
// tick w*256+b is initialized. Words are 256 bits wide and allocated lazily,
// so the structure stays sparse over the huge tick range.
type Bitmap map[int16]*big.Int

// New returns an empty bitmap.
func New() Bitmap {
	return make(Bitmap)
}

// compress maps a tick into spacing-granular space, rounding toward negative
// infinity so that every tick belongs to exactly one compressed slot.
func compress(tick, tickSpacing int64) int64 {
	compressed := tick / tickSpacing
	if tick < 0 && tick%tickSpacing != 0 {
		compressed--
	}
	return compressed
}

// Position splits a compressed tick into its word index and bit offset.
func Position(compressed int64) (wordPos int16, bitPos uint8) {
	return int16(compressed >> 8), uint8(compressed & 255)
}

// word returns the bit field for wordPos, allocating it on first use.
func (b Bitmap) word(wordPos int16) *big.Int {
	w, ok := b[wordPos]
	if !ok {
		w = new(big.Int)
		b[wordPos] = w
	}
	return w
}

// FlipTick toggles the initialized bit for the given tick.
func (b Bitmap) FlipTick(tick, tickSpacing int64) error {
	if tick%tickSpacing != 0 {
		return ErrTickMisaligned
	}
	wordPos, bitPos := Position(tick / tickSpacing)
	mask := new(big.Int).Lsh(one, uint(bitPos))
	w := b.word(wordPos)
	w.Xor(w, mask)
	return nil
}

// IsInitialized reports whether the tick's bit is set. Misaligned ticks are
// never initialized.
func (b Bitmap) IsInitialized(tick, tickSpacing int64) bool {
	if tick%tickSpacing != 0 {
		return false
	}
	wordPos, bitPos := Position(tick / tickSpacing)
	w, ok := b[wordPos]
	if !ok {
		return false
	}
	return w.Bit(int(bitPos)) == 1
}

// NextInitializedTickWithinOneWord searches for the next initialized tick in
// one direction, restricted to the single 256-bit word containing the search
// origin. When lte is true it looks at or below tick, otherwise strictly
// above. If the word holds no set bit in that direction, the returned tick is
// the word's boundary in the search direction and initialized is false. That
// boundary still bounds one swap step, so callers simply continue from there.
func (b Bitmap) NextInitializedTickWithinOneWord(tick, tickSpacing int64, lte bool) (next int64, initialized bool) {
	compressed := compress(tick, tickSpacing)

	if lte {
		wordPos, bitPos := Position(compressed)
		// all bits at or below bitPos
		mask := new(big.Int).Sub(new(big.Int).Lsh(one, uint(bitPos)+1), one)
		masked := new(big.Int)
		if w, ok := b[wordPos]; ok {
			masked.And(w, mask)
		}

		if masked.Sign() != 0 {
			msb, _ := bitmath.MostSignificantBit(masked)
			return (compressed - int64(bitPos-msb)) * tickSpacing, true
		}
		return (compressed - int64(bitPos)) * tickSpacing, false
	}

	// search strictly above: start from the next compressed slot
	wordPos, bitPos := Position(compressed + 1)
	// all bits at or above bitPos
	mask := new(big.Int).Sub(new(big.Int).Lsh(one, uint(bitPos)), one)
	mask.AndNot(fullMask, mask)
	masked := new(big.Int)
	if w, ok := b[wordPos]; ok {
		masked.And(w, mask)
	}

	if masked.Sign() != 0 {
		lsb, _ := bitmath.LeastSignificantBit(masked)
		return (compressed + 1 + int64(lsb-bitPos)) * tickSpacing, true
	}
	return (compressed + 1 + int64(255-bitPos)) * tickSpacing, false
}
