package position

import (
	"encoding/binary"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/defistate/clmm-pool-go/fullmath"
	"github.com/defistate/clmm-pool-go/liquiditymath"
)

var (
	// ErrEmptyPosition is returned when a zero-delta poke targets a position
	// that holds no liquidity.
	ErrEmptyPosition = errors.New("cannot poke a position with zero liquidity")
)

// Position is the state owned by one (owner, tickLower, tickUpper) triple.
type Position struct {
	// Liquidity currently provided over the range.
	Liquidity *big.Int
	// FeeGrowthInside0LastX128/1LastX128 are the inside fee growth values as
	// of the last update, used to settle fees incrementally.
	FeeGrowthInside0LastX128 *big.Int
	FeeGrowthInside1LastX128 *big.Int
	// TokensOwed0/1 are fees (and burned principal) withdrawable via collect.
	TokensOwed0 *big.Int
	TokensOwed1 *big.Int
}

func newPosition() *Position {
	return &Position{
		Liquidity:                new(big.Int),
		FeeGrowthInside0LastX128: new(big.Int),
		FeeGrowthInside1LastX128: new(big.Int),
		TokensOwed0:              new(big.Int),
		TokensOwed1:              new(big.Int),
	}
}

// Update settles fees owed since the last touch and then applies the
// liquidity delta. Fees are credited against the liquidity held BEFORE the
// delta, since that is the amount that was earning.
func (p *Position) Update(liquidityDelta, feeGrowthInside0X128, feeGrowthInside1X128 *big.Int) error {
	var liquidityNext *big.Int
	if liquidityDelta.Sign() == 0 {
		if p.Liquidity.Sign() == 0 {
			return ErrEmptyPosition
		}
		liquidityNext = p.Liquidity
	} else {
		liquidityNext = new(big.Int)
		if err := liquiditymath.AddDelta(liquidityNext, p.Liquidity, liquidityDelta); err != nil {
			return err
		}
	}

	delta0 := new(big.Int)
	fullmath.SubMod256(delta0, feeGrowthInside0X128, p.FeeGrowthInside0LastX128)
	tokensOwed0 := new(big.Int)
	if err := fullmath.MulDiv(tokensOwed0, delta0, p.Liquidity, fullmath.Q128); err != nil {
		return err
	}

	delta1 := new(big.Int)
	fullmath.SubMod256(delta1, feeGrowthInside1X128, p.FeeGrowthInside1LastX128)
	tokensOwed1 := new(big.Int)
	if err := fullmath.MulDiv(tokensOwed1, delta1, p.Liquidity, fullmath.Q128); err != nil {
		return err
	}

	if liquidityDelta.Sign() != 0 {
		p.Liquidity = liquidityNext
	}
	p.FeeGrowthInside0LastX128.Set(feeGrowthInside0X128)
	p.FeeGrowthInside1LastX128.Set(feeGrowthInside1X128)
	p.TokensOwed0.Add(p.TokensOwed0, tokensOwed0)
	p.TokensOwed1.Add(p.TokensOwed1, tokensOwed1)
	return nil
}

// Key derives the ledger key for a position. Owner and both bounds go
// through keccak so the ledger stays flat regardless of how many ranges an
// owner holds.
func Key(owner common.Address, tickLower, tickUpper int64) common.Hash {
	var buf [36]byte
	copy(buf[:20], owner.Bytes())
	binary.BigEndian.PutUint64(buf[20:28], uint64(tickLower))
	binary.BigEndian.PutUint64(buf[28:36], uint64(tickUpper))
	return crypto.Keccak256Hash(buf[:])
}

// Ledger stores all positions of one pool, keyed by Key.
type Ledger map[common.Hash]*Position

// NewLedger returns an empty position ledger.
func NewLedger() Ledger {
	return make(Ledger)
}

// Get returns the position for an owner and range, creating it if absent.
func (l Ledger) Get(owner common.Address, tickLower, tickUpper int64) *Position {
	k := Key(owner, tickLower, tickUpper)
	if p, ok := l[k]; ok {
		return p
	}
	p := newPosition()
	l[k] = p
	return p
}
