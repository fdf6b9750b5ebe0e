package memory

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/0xDevNinja/neuro-mesh/pkg/domain"
	ldb "github.com/0xDevNinja/neuro-mesh/pkg/domain/ledger/db"
	domerr "github.com/0xDevNinja/neuro-mesh/pkg/domain/errors"
)

// Ledger is an in-process implementation of ldb.LedgerInterface.
//
// All accounts start empty; fund them with Deposit.
type Ledger struct {
	mu       sync.Mutex
	accounts map[domain.AccountID]domain.Balance
}

var _ ldb.LedgerInterface = &Ledger{}

func New() *Ledger {
	return &Ledger{accounts: map[domain.AccountID]domain.Balance{}}
}

// NewWith starts the ledger with the given balances, as a test fixture or a
// genesis endowment.
func NewWith(balances map[domain.AccountID]uint64) *Ledger {
	l := New()
	for account, total := range balances {
		l.accounts[account] = domain.Balance{Total: total}
	}
	return l
}

func (l *Ledger) Deposit(_ context.Context, account domain.AccountID, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.accounts[account]
	if math.MaxUint64-b.Total < amount {
		return fmt.Errorf("%w: depositing %d to %s", domerr.ErrArithmeticOverflow, amount, account)
	}
	b.Total += amount
	l.accounts[account] = b
	return nil
}

func (l *Ledger) Reserve(_ context.Context, account domain.AccountID, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.accounts[account]
	if b.Spendable() < amount {
		return fmt.Errorf(
			"%w: %s has %d spendable, needs %d",
			domerr.ErrInsufficientBalance, account, b.Spendable(), amount,
		)
	}
	b.Reserved += amount
	l.accounts[account] = b
	return nil
}

func (l *Ledger) Balance(_ context.Context, account domain.AccountID) (domain.Balance, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.accounts[account], nil
}
