package token

import (
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNegativeAmount      = errors.New("amount cannot be negative")
)

// Ledger is an in-memory balance table for one asset. It stands in for the
// asset transfer collaborator during tests and simulations, providing just
// enough of the settlement surface (balance lookup and transfer) for the
// pay-via-callback protocol to be exercised end to end.
type Ledger struct {
	mu       sync.Mutex
	symbol   string
	balances map[common.Address]*big.Int
}

// NewLedger creates an empty ledger for the named asset.
func NewLedger(symbol string) *Ledger {
	return &Ledger{
		symbol:   symbol,
		balances: make(map[common.Address]*big.Int),
	}
}

// Symbol returns the asset name the ledger was created with.
func (l *Ledger) Symbol() string {
	return l.symbol
}

// Mint credits freshly created units to an account.
func (l *Ledger) Mint(account common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(account, amount)
	return nil
}

// BalanceOf returns a copy of an account's balance.
func (l *Ledger) BalanceOf(account common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.balances[account]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// Transfer moves amount from one account to another.
func (l *Ledger) Transfer(from, to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.balances[from]
	if !ok || b.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	b.Sub(b, amount)
	l.credit(to, amount)
	return nil
}

func (l *Ledger) credit(account common.Address, amount *big.Int) {
	if b, ok := l.balances[account]; ok {
		b.Add(b, amount)
	} else {
		l.balances[account] = new(big.Int).Set(amount)
	}
}

// Account binds a ledger to one holder so the pair satisfies the pool's
// asset interface: BalanceOf reads the holder's balance and Transfer spends
// from it.
type Account struct {
	ledger *Ledger
	holder common.Address
}

// NewAccount returns an asset handle owned by holder on the given ledger.
func NewAccount(ledger *Ledger, holder common.Address) *Account {
	return &Account{ledger: ledger, holder: holder}
}

// BalanceOf reports any account's balance on the underlying ledger.
func (a *Account) BalanceOf(account common.Address) *big.Int {
	return a.ledger.BalanceOf(account)
}

// Transfer sends amount from the holder to another account.
func (a *Account) Transfer(to common.Address, amount *big.Int) error {
	return a.ledger.Transfer(a.holder, to, amount)
}
