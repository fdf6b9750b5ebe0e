package db

import (
	"context"

	"github.com/0xDevNinja/neuro-mesh/pkg/domain"
)

// LedgerInterface is the balance ledger the registry escrows deposits
// against.
//
// The registry only consumes this boundary; the ledger itself belongs to the
// hosting environment.
type LedgerInterface interface {
	// Deposit adds amount to the account's total balance, creating the
	// account if needed.
	Deposit(ctx context.Context, account domain.AccountID, amount uint64) error

	// Reserve locks amount of the account's spendable balance.
	//
	// Fails with ErrInsufficientBalance when spendable < amount; failure
	// leaves the balance untouched. There is no release operation.
	Reserve(ctx context.Context, account domain.AccountID, amount uint64) error

	// Balance reports the account's total and reserved funds.
	// Unknown accounts have a zero balance, not an error.
	Balance(ctx context.Context, account domain.AccountID) (domain.Balance, error)
}
