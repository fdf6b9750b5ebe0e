package postgres_test

import (
	"context"
	"errors"
	"testing"

	"github.com/0xDevNinja/neuro-mesh/pkg/conn/db/postgres/testenv"
	"github.com/0xDevNinja/neuro-mesh/pkg/domain"
	domerr "github.com/0xDevNinja/neuro-mesh/pkg/domain/errors"
	ldb "github.com/0xDevNinja/neuro-mesh/pkg/domain/ledger/db"
	ledgerpg "github.com/0xDevNinja/neuro-mesh/pkg/domain/ledger/db/postgres"
	sdb "github.com/0xDevNinja/neuro-mesh/pkg/domain/subnet/db"
	kpg "github.com/0xDevNinja/neuro-mesh/pkg/domain/subnet/db/postgres"
	"github.com/0xDevNinja/neuro-mesh/pkg/utils/cmp"
	"github.com/0xDevNinja/neuro-mesh/pkg/utils/pointer"
	"github.com/0xDevNinja/neuro-mesh/pkg/utils/try"
)

func specFor(owner domain.AccountID) domain.SubnetSpec {
	return domain.SubnetSpec{
		Owner:             owner,
		TaskType:          domain.TaskType{Name: domain.TaskCodeGen},
		InputSchema:       []byte(`{"in":1}`),
		OutputSchema:      []byte(`{"out":1}`),
		EvaluationSpecURI: []byte("ipfs://eval"),
		EmissionWeight:    10,
		MinStakeMiner:     100,
		MinStakeValidator: 200,
	}
}

func TestRegistry_Create(t *testing.T) {
	ctx := context.Background()
	poolBroaker := testenv.NewPoolBroaker(ctx, t)

	limits := domain.Limits{SubnetDeposit: 1000}.WithDefaults()

	t.Run("it should assign sequential ids and reserve the deposit", func(t *testing.T) {
		pool := poolBroaker.GetPool(ctx, t)
		ledger := ledgerpg.New(pool)
		testee := kpg.New(pool, limits)

		if err := ledger.Deposit(ctx, "alice", 2500); err != nil {
			t.Fatal(err)
		}

		spec := specFor("alice")
		first := try.To(testee.Create(ctx, spec)).OrFatal(t)
		second := try.To(testee.Create(ctx, spec)).OrFatal(t)
		if first != 0 || second != 1 {
			t.Errorf("ids: Want: 0, 1, Got: %d, %d", first, second)
		}

		if nextId := try.To(testee.NextID(ctx)).OrFatal(t); nextId != 2 {
			t.Errorf("NextID: Want: 2, Got: %d", nextId)
		}
		if total := try.To(testee.Count(ctx)).OrFatal(t); total != 2 {
			t.Errorf("Count: Want: 2, Got: %d", total)
		}

		records := try.To(testee.Get(ctx, []uint32{first})).OrFatal(t)
		record, ok := records[first]
		if !ok {
			t.Fatal("created subnet is not stored")
		}
		want := spec.Build(first)
		if !record.Equal(&want) {
			t.Errorf("Want: %+v, Got: %+v", want, record)
		}

		balance := try.To(ledger.Balance(ctx, "alice")).OrFatal(t)
		if !balance.Equal(domain.Balance{Total: 2500, Reserved: 2000}) {
			t.Errorf("balance: Want: {2500 2000}, Got: %+v", balance)
		}
	})

	t.Run("when the owner can not afford the deposit, it should write nothing", func(t *testing.T) {
		pool := poolBroaker.GetPool(ctx, t)
		ledger := ledgerpg.New(pool)
		testee := kpg.New(pool, limits)

		if err := ledger.Deposit(ctx, "alice", 999); err != nil {
			t.Fatal(err)
		}

		if _, err := testee.Create(ctx, specFor("alice")); !errors.Is(err, domerr.ErrInsufficientBalance) {
			t.Errorf("Want: ErrInsufficientBalance, Got: %v", err)
		}

		if nextId := try.To(testee.NextID(ctx)).OrFatal(t); nextId != 0 {
			t.Errorf("NextID moved to %d, unexpectedly", nextId)
		}
		if total := try.To(testee.Count(ctx)).OrFatal(t); total != 0 {
			t.Errorf("Count moved to %d, unexpectedly", total)
		}
		if owned := try.To(testee.OwnedIDs(ctx, "alice")).OrFatal(t); len(owned) != 0 {
			t.Errorf("owned: Want: empty, Got: %v", owned)
		}

		balance := try.To(ledger.Balance(ctx, "alice")).OrFatal(t)
		if !balance.Equal(domain.Balance{Total: 999, Reserved: 0}) {
			t.Errorf("balance changed: %+v", balance)
		}
	})

	t.Run("when the registry is full, it should reject new subnets", func(t *testing.T) {
		pool := poolBroaker.GetPool(ctx, t)
		ledger := ledgerpg.New(pool)
		testee := kpg.New(pool, domain.Limits{MaxSubnets: 2, SubnetDeposit: 1000})

		if err := ledger.Deposit(ctx, "alice", 10_000); err != nil {
			t.Fatal(err)
		}

		spec := specFor("alice")
		try.To(testee.Create(ctx, spec)).OrFatal(t)
		try.To(testee.Create(ctx, spec)).OrFatal(t)

		if _, err := testee.Create(ctx, spec); !errors.Is(err, domerr.ErrTooManySubnets) {
			t.Errorf("Want: ErrTooManySubnets, Got: %v", err)
		}
	})

	t.Run("when the owner holds too many subnets, it should reject theirs only", func(t *testing.T) {
		pool := poolBroaker.GetPool(ctx, t)
		ledger := ledgerpg.New(pool)
		testee := kpg.New(pool, domain.Limits{MaxOwnedSubnets: 1, SubnetDeposit: 1000})

		if err := ledger.Deposit(ctx, "alice", 10_000); err != nil {
			t.Fatal(err)
		}
		if err := ledger.Deposit(ctx, "bob", 10_000); err != nil {
			t.Fatal(err)
		}

		try.To(testee.Create(ctx, specFor("alice"))).OrFatal(t)

		if _, err := testee.Create(ctx, specFor("alice")); !errors.Is(err, domerr.ErrOwnerCapacityExceeded) {
			t.Errorf("Want: ErrOwnerCapacityExceeded, Got: %v", err)
		}

		// other owners are not capped by alice's holdings
		if _, err := testee.Create(ctx, specFor("bob")); err != nil {
			t.Errorf("bob is rejected, unexpectedly: %v", err)
		}
	})

	t.Run("when a schema exceeds the limit, it should reject before reserving", func(t *testing.T) {
		pool := poolBroaker.GetPool(ctx, t)
		ledger := ledgerpg.New(pool)
		testee := kpg.New(pool, domain.Limits{MaxSchemaSize: 10, SubnetDeposit: 1000})

		if err := ledger.Deposit(ctx, "alice", 10_000); err != nil {
			t.Fatal(err)
		}

		spec := specFor("alice")
		spec.InputSchema = []byte("12345678901") // 11 bytes
		if _, err := testee.Create(ctx, spec); !errors.Is(err, domerr.ErrSchemaTooLarge) {
			t.Errorf("Want: ErrSchemaTooLarge, Got: %v", err)
		}

		balance := try.To(ledger.Balance(ctx, "alice")).OrFatal(t)
		if balance.Reserved != 0 {
			t.Errorf("deposit is reserved, unexpectedly: %+v", balance)
		}
	})
}

func TestRegistry_Update(t *testing.T) {
	ctx := context.Background()
	poolBroaker := testenv.NewPoolBroaker(ctx, t)

	limits := domain.Limits{SubnetDeposit: 1000}.WithDefaults()

	newSubnet := func(t *testing.T, testee sdb.RegistryInterface, ledger ldb.LedgerInterface, owner domain.AccountID) uint32 {
		t.Helper()
		if err := ledger.Deposit(ctx, owner, 1000); err != nil {
			t.Fatal(err)
		}
		return try.To(testee.Create(ctx, specFor(owner))).OrFatal(t)
	}

	t.Run("when the owner updates, supplied fields should change and others survive", func(t *testing.T) {
		pool := poolBroaker.GetPool(ctx, t)
		ledger := ledgerpg.New(pool)
		testee := kpg.New(pool, limits)
		id := newSubnet(t, testee, ledger, "alice")

		if err := testee.Update(ctx, "alice", id, domain.SubnetUpdate{
			OutputSchema:   []byte(`{"out":2}`),
			EmissionWeight: pointer.Ref[domain.Percent](55),
		}); err != nil {
			t.Fatal(err)
		}

		records := try.To(testee.Get(ctx, []uint32{id})).OrFatal(t)
		got := records[id]

		spec := specFor("alice")
		want := spec.Build(id)
		want.OutputSchema = []byte(`{"out":2}`)
		want.EmissionWeight = 55
		if !got.Equal(&want) {
			t.Errorf("Want: %+v, Got: %+v", want, got)
		}
	})

	t.Run("when a stranger updates, it should be rejected with no change", func(t *testing.T) {
		pool := poolBroaker.GetPool(ctx, t)
		ledger := ledgerpg.New(pool)
		testee := kpg.New(pool, limits)
		id := newSubnet(t, testee, ledger, "alice")

		err := testee.Update(ctx, "mallory", id, domain.SubnetUpdate{
			OutputSchema: []byte(`{"stolen":true}`),
		})
		if !errors.Is(err, domerr.ErrNotAuthorized) {
			t.Errorf("Want: ErrNotAuthorized, Got: %v", err)
		}

		records := try.To(testee.Get(ctx, []uint32{id})).OrFatal(t)
		got := records[id]
		spec := specFor("alice")
		want := spec.Build(id)
		if !got.Equal(&want) {
			t.Errorf("record changed: %+v", got)
		}
	})

	t.Run("when the subnet does not exist, it should report not found", func(t *testing.T) {
		pool := poolBroaker.GetPool(ctx, t)
		testee := kpg.New(pool, limits)

		err := testee.Update(ctx, "alice", 42, domain.SubnetUpdate{})
		if !errors.Is(err, domerr.ErrNotFound) {
			t.Errorf("Want: ErrNotFound, Got: %v", err)
		}
	})

	t.Run("when a field is out of bounds, the whole update should fail", func(t *testing.T) {
		pool := poolBroaker.GetPool(ctx, t)
		ledger := ledgerpg.New(pool)
		testee := kpg.New(pool, domain.Limits{MaxUriSize: 10, SubnetDeposit: 1000})
		id := newSubnet(t, testee, ledger, "alice")

		err := testee.Update(ctx, "alice", id, domain.SubnetUpdate{
			OutputSchema:      []byte(`{"out":2}`), // valid on its own
			EvaluationSpecURI: []byte("ipfs://much-too-long"),
		})
		if !errors.Is(err, domerr.ErrUriTooLarge) {
			t.Errorf("Want: ErrUriTooLarge, Got: %v", err)
		}

		records := try.To(testee.Get(ctx, []uint32{id})).OrFatal(t)
		got := records[id]
		spec := specFor("alice")
		want := spec.Build(id)
		if !got.Equal(&want) {
			t.Errorf("record changed: %+v", got)
		}
	})

	t.Run("when the subnet is retired, it should reject updates", func(t *testing.T) {
		pool := poolBroaker.GetPool(ctx, t)
		ledger := ledgerpg.New(pool)
		testee := kpg.New(pool, limits)
		id := newSubnet(t, testee, ledger, "alice")

		if err := testee.Retire(ctx, "alice", id); err != nil {
			t.Fatal(err)
		}

		err := testee.Update(ctx, "alice", id, domain.SubnetUpdate{OutputSchema: []byte(`{}`)})
		if !errors.Is(err, domerr.ErrAlreadyRetired) {
			t.Errorf("Want: ErrAlreadyRetired, Got: %v", err)
		}
	})
}

func TestRegistry_Retire(t *testing.T) {
	ctx := context.Background()
	poolBroaker := testenv.NewPoolBroaker(ctx, t)

	limits := domain.Limits{SubnetDeposit: 1000}.WithDefaults()

	t.Run("a retired subnet should stay registered, deposit included", func(t *testing.T) {
		pool := poolBroaker.GetPool(ctx, t)
		ledger := ledgerpg.New(pool)
		testee := kpg.New(pool, limits)

		if err := ledger.Deposit(ctx, "alice", 1000); err != nil {
			t.Fatal(err)
		}
		id := try.To(testee.Create(ctx, specFor("alice"))).OrFatal(t)

		if err := testee.Retire(ctx, "alice", id); err != nil {
			t.Fatal(err)
		}

		if found := try.To(testee.Exists(ctx, id)).OrFatal(t); !found {
			t.Error("retired subnet is gone from the registry")
		}
		if active := try.To(testee.IsActive(ctx, id)).OrFatal(t); active {
			t.Error("retired subnet reads as active")
		}
		if total := try.To(testee.Count(ctx)).OrFatal(t); total != 1 {
			t.Errorf("Count: Want: 1, Got: %d", total)
		}

		// retirement does not release the escrow
		balance := try.To(ledger.Balance(ctx, "alice")).OrFatal(t)
		if !balance.Equal(domain.Balance{Total: 1000, Reserved: 1000}) {
			t.Errorf("balance: Want: {1000 1000}, Got: %+v", balance)
		}
	})

	t.Run("when it is already retired, it should be rejected", func(t *testing.T) {
		pool := poolBroaker.GetPool(ctx, t)
		ledger := ledgerpg.New(pool)
		testee := kpg.New(pool, limits)

		if err := ledger.Deposit(ctx, "alice", 1000); err != nil {
			t.Fatal(err)
		}
		id := try.To(testee.Create(ctx, specFor("alice"))).OrFatal(t)

		if err := testee.Retire(ctx, "alice", id); err != nil {
			t.Fatal(err)
		}
		if err := testee.Retire(ctx, "alice", id); !errors.Is(err, domerr.ErrAlreadyRetired) {
			t.Errorf("Want: ErrAlreadyRetired, Got: %v", err)
		}
	})

	t.Run("when a stranger retires, it should be rejected", func(t *testing.T) {
		pool := poolBroaker.GetPool(ctx, t)
		ledger := ledgerpg.New(pool)
		testee := kpg.New(pool, limits)

		if err := ledger.Deposit(ctx, "alice", 1000); err != nil {
			t.Fatal(err)
		}
		id := try.To(testee.Create(ctx, specFor("alice"))).OrFatal(t)

		if err := testee.Retire(ctx, "mallory", id); !errors.Is(err, domerr.ErrNotAuthorized) {
			t.Errorf("Want: ErrNotAuthorized, Got: %v", err)
		}
		if active := try.To(testee.IsActive(ctx, id)).OrFatal(t); !active {
			t.Error("subnet is retired, unexpectedly")
		}
	})
}

func TestRegistry_Queries(t *testing.T) {
	ctx := context.Background()
	poolBroaker := testenv.NewPoolBroaker(ctx, t)

	limits := domain.Limits{SubnetDeposit: 100}.WithDefaults()

	t.Run("Find and OwnedIDs should keep creation order", func(t *testing.T) {
		pool := poolBroaker.GetPool(ctx, t)
		ledger := ledgerpg.New(pool)
		testee := kpg.New(pool, limits)

		if err := ledger.Deposit(ctx, "alice", 1000); err != nil {
			t.Fatal(err)
		}
		if err := ledger.Deposit(ctx, "bob", 1000); err != nil {
			t.Fatal(err)
		}

		a1 := try.To(testee.Create(ctx, specFor("alice"))).OrFatal(t)
		b1 := try.To(testee.Create(ctx, specFor("bob"))).OrFatal(t)
		a2 := try.To(testee.Create(ctx, specFor("alice"))).OrFatal(t)

		if all := try.To(testee.Find(ctx)).OrFatal(t); !cmp.SliceEq(all, []uint32{a1, b1, a2}) {
			t.Errorf("Find: Want: %v, Got: %v", []uint32{a1, b1, a2}, all)
		}
		if owned := try.To(testee.OwnedIDs(ctx, "alice")).OrFatal(t); !cmp.SliceEq(owned, []uint32{a1, a2}) {
			t.Errorf("OwnedIDs: Want: %v, Got: %v", []uint32{a1, a2}, owned)
		}
		if owned := try.To(testee.OwnedIDs(ctx, "stranger")).OrFatal(t); len(owned) != 0 {
			t.Errorf("OwnedIDs of a stranger: Want: empty, Got: %v", owned)
		}

		records := try.To(testee.Get(ctx, []uint32{a1, 999})).OrFatal(t)
		if len(records) != 1 {
			t.Errorf("Get skips missing ids: Want: 1 record, Got: %d", len(records))
		}
	})
}
