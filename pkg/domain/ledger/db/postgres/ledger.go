package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgtype"

	kpool "github.com/0xDevNinja/neuro-mesh/pkg/conn/db/postgres/pool"
	"github.com/0xDevNinja/neuro-mesh/pkg/domain"
	ldb "github.com/0xDevNinja/neuro-mesh/pkg/domain/ledger/db"
	kpgerr "github.com/0xDevNinja/neuro-mesh/pkg/domain/errors/dberrors/postgres"
)

// Escrow reserves deposits inside a transaction someone else owns.
//
// The subnet registry calls this with its own transaction so that the
// reservation commits or rolls back together with the record insert.
type Escrow interface {
	Reserve(ctx context.Context, tx kpool.Tx, account domain.AccountID, amount uint64) error
}

type escrow struct{}

func DefaultEscrow() Escrow {
	return escrow{}
}

func (escrow) Reserve(ctx context.Context, tx kpool.Tx, account domain.AccountID, amount uint64) error {
	n, err := AsNumeric(amount)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(
		ctx,
		`
		update "account_balance"
		set "reserved" = "reserved" + $2
		where "account" = $1 and "balance" - "reserved" >= $2
		`,
		string(account), n,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() < 1 {
		return kpgerr.ShortBalance{Account: string(account), Amount: amount}
	}
	return nil
}

// AsNumeric encodes an amount as a postgres numeric parameter.
func AsNumeric(v uint64) (*pgtype.Numeric, error) {
	n := &pgtype.Numeric{}
	if err := n.Set(v); err != nil {
		return nil, fmt.Errorf("encoding %d as numeric: %w", v, err)
	}
	return n, nil
}

type ledgerPG struct { // implements ldb.LedgerInterface
	pool   kpool.Pool
	escrow Escrow
}

type Option func(*ledgerPG) *ledgerPG

func WithEscrow(e Escrow) Option {
	return func(l *ledgerPG) *ledgerPG {
		l.escrow = e
		return l
	}
}

func New(pool kpool.Pool, option ...Option) *ledgerPG {
	l := &ledgerPG{pool: pool, escrow: DefaultEscrow()}
	for _, opt := range option {
		l = opt(l)
	}
	return l
}

var _ ldb.LedgerInterface = &ledgerPG{}

func (l *ledgerPG) Deposit(ctx context.Context, account domain.AccountID, amount uint64) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	n, err := AsNumeric(amount)
	if err != nil {
		return err
	}

	_, err = conn.Exec(
		ctx,
		`
		insert into "account_balance" ("account", "balance") values ($1, $2)
		on conflict ("account")
		do update set "balance" = "account_balance"."balance" + excluded."balance"
		`,
		string(account), n,
	)
	return err
}

func (l *ledgerPG) Reserve(ctx context.Context, account domain.AccountID, amount uint64) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := l.escrow.Reserve(ctx, tx, account, amount); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (l *ledgerPG) Balance(ctx context.Context, account domain.AccountID) (domain.Balance, error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return domain.Balance{}, err
	}
	defer conn.Release()

	rows, err := conn.Query(
		ctx,
		`select "balance", "reserved" from "account_balance" where "account" = $1`,
		string(account),
	)
	if err != nil {
		return domain.Balance{}, err
	}
	defer rows.Close()

	if !rows.Next() {
		// unknown accounts just have nothing yet
		return domain.Balance{}, nil
	}

	var total, reserved pgtype.Numeric
	if err := rows.Scan(&total, &reserved); err != nil {
		return domain.Balance{}, err
	}

	b := domain.Balance{}
	if err := total.AssignTo(&b.Total); err != nil {
		return domain.Balance{}, err
	}
	if err := reserved.AssignTo(&b.Reserved); err != nil {
		return domain.Balance{}, err
	}
	return b, nil
}
