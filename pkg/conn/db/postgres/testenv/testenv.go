package testenv

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v4/pgxpool"

	kpool "github.com/0xDevNinja/neuro-mesh/pkg/conn/db/postgres/pool"
	"github.com/0xDevNinja/neuro-mesh/internal/db/postgres/tables"
)

// DBURIEnv names the environment variable pointing at a disposable
// postgres database for tests. Tests needing a database are skipped
// when it is not set.
const DBURIEnv = "NEURO_MESH_TEST_DB"

type pg struct {
	pool *pgxpool.Pool
}

func (p *pg) GetPool(ctx context.Context, t *testing.T) kpool.Pool {
	t.Cleanup(func() {
		t.Helper()
		ClearTables(ctx, p.pool, t)
	})

	ClearTables(ctx, p.pool, t)
	return kpool.Wrap(p.pool)
}

// PoolBroaker is a interface to get a pool.
type PoolBroaker interface {
	// GetPool returns a pool.
	//
	// Tables are cleaned up before returning and after t.
	GetPool(ctx context.Context, t *testing.T) kpool.Pool
}

// NewPoolBroaker returns a PoolBroaker against the database DBURIEnv
// points at, with the registry schema applied.
//
// It skips t when DBURIEnv is not set.
func NewPoolBroaker(ctx context.Context, t *testing.T) PoolBroaker {
	t.Helper()

	dburi := os.Getenv(DBURIEnv)
	if dburi == "" {
		t.Skipf("no database to test against. set %s to run this test", DBURIEnv)
	}

	pool, err := pgxpool.Connect(ctx, dburi)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pool.Close)

	kp := kpool.Wrap(pool)
	conn, err := kp.Acquire(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Release()
	if err := tables.Apply(ctx, conn); err != nil {
		t.Fatal(err)
	}

	return &pg{pool: pool}
}

func ClearTables(ctx context.Context, p *pgxpool.Pool, t *testing.T) {
	t.Helper()

	conn, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("fail to clean-up tables.: %v", err)
	}
	defer conn.Release()

	for _, command := range []string{
		`truncate "subnet_owner" cascade`,
		`truncate "subnet" cascade`,
		`truncate "account_balance" cascade`,
		`update "subnet_counter" set "next_id" = 0, "total" = 0`,
	} {
		if _, err := conn.Exec(ctx, command); err != nil {
			t.Errorf("fail to clean-up tables.: %v", err)
		}
	}
}
