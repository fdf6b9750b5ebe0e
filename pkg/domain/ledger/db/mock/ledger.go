package mocks

import (
	"context"
	"errors"

	"github.com/0xDevNinja/neuro-mesh/pkg/domain"
	dbmock "github.com/0xDevNinja/neuro-mesh/internal/db/mock"
	ldb "github.com/0xDevNinja/neuro-mesh/pkg/domain/ledger/db"
)

type LedgerInterface struct {
	Impl struct {
		Deposit func(context.Context, domain.AccountID, uint64) error
		Reserve func(context.Context, domain.AccountID, uint64) error
		Balance func(context.Context, domain.AccountID) (domain.Balance, error)
	}
	Calls struct {
		Deposit dbmock.CallLog[struct {
			Account domain.AccountID
			Amount  uint64
		}]
		Reserve dbmock.CallLog[struct {
			Account domain.AccountID
			Amount  uint64
		}]
		Balance dbmock.CallLog[struct{ Account domain.AccountID }]
	}
}

func NewLedgerInterface() *LedgerInterface {
	return &LedgerInterface{}
}

var _ ldb.LedgerInterface = &LedgerInterface{}

func (li *LedgerInterface) Deposit(ctx context.Context, account domain.AccountID, amount uint64) error {
	li.Calls.Deposit = append(li.Calls.Deposit, struct {
		Account domain.AccountID
		Amount  uint64
	}{Account: account, Amount: amount})
	if li.Impl.Deposit != nil {
		return li.Impl.Deposit(ctx, account, amount)
	}
	panic(errors.New("it should not be called"))
}

func (li *LedgerInterface) Reserve(ctx context.Context, account domain.AccountID, amount uint64) error {
	li.Calls.Reserve = append(li.Calls.Reserve, struct {
		Account domain.AccountID
		Amount  uint64
	}{Account: account, Amount: amount})
	if li.Impl.Reserve != nil {
		return li.Impl.Reserve(ctx, account, amount)
	}
	panic(errors.New("it should not be called"))
}

func (li *LedgerInterface) Balance(ctx context.Context, account domain.AccountID) (domain.Balance, error) {
	li.Calls.Balance = append(li.Calls.Balance, struct{ Account domain.AccountID }{Account: account})
	if li.Impl.Balance != nil {
		return li.Impl.Balance(ctx, account)
	}
	panic(errors.New("it should not be called"))
}
