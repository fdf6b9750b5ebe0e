package memory_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/0xDevNinja/neuro-mesh/pkg/domain"
	domerr "github.com/0xDevNinja/neuro-mesh/pkg/domain/errors"
	ledgermem "github.com/0xDevNinja/neuro-mesh/pkg/domain/ledger/memory"
	"github.com/0xDevNinja/neuro-mesh/pkg/domain/subnet/memory"
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

	t.Run("when subnets are created, it should number them sequentially from zero", func(t *testing.T) {
		ledger := ledgermem.NewWith(map[domain.AccountID]uint64{"alice": 10_000, "bob": 10_000})
		testee := memory.New(domain.Limits{}, memory.WithEscrow(ledger))

		id1 := try.To(testee.Create(ctx, specFor("alice"))).OrFatal(t)
		id2 := try.To(testee.Create(ctx, specFor("bob"))).OrFatal(t)
		id3 := try.To(testee.Create(ctx, specFor("alice"))).OrFatal(t)

		if id1 != 0 || id2 != 1 || id3 != 2 {
			t.Errorf("Want: 0, 1, 2, Got: %d, %d, %d", id1, id2, id3)
		}

		if nextId := try.To(testee.NextID(ctx)).OrFatal(t); nextId != 3 {
			t.Errorf("NextID: Want: 3, Got: %d", nextId)
		}
		if total := try.To(testee.Count(ctx)).OrFatal(t); total != 3 {
			t.Errorf("Count: Want: 3, Got: %d", total)
		}
	})

	t.Run("when a subnet is created, it should store the spec as an active record", func(t *testing.T) {
		ledger := ledgermem.NewWith(map[domain.AccountID]uint64{"alice": 10_000})
		testee := memory.New(domain.Limits{}, memory.WithEscrow(ledger))

		spec := specFor("alice")
		id := try.To(testee.Create(ctx, spec)).OrFatal(t)

		got, ok := try.To(testee.Get(ctx, []uint32{id})).OrFatal(t)[id]
		if !ok {
			t.Fatal("created subnet is not found")
		}

		want := spec.Build(id)
		if !got.Equal(&want) {
			t.Errorf("Want: %+v, Got: %+v", want, got)
		}

		if active := try.To(testee.IsActive(ctx, id)).OrFatal(t); !active {
			t.Error("created subnet is not active, unexpectedly")
		}
	})

	t.Run("when a subnet is created, it should reserve the deposit", func(t *testing.T) {
		ledger := ledgermem.NewWith(map[domain.AccountID]uint64{"alice": 1_500})
		testee := memory.New(domain.Limits{}, memory.WithEscrow(ledger)) // deposit: 1000

		try.To(testee.Create(ctx, specFor("alice"))).OrFatal(t)

		balance := try.To(ledger.Balance(ctx, "alice")).OrFatal(t)
		want := domain.Balance{Total: 1_500, Reserved: 1_000}
		if !balance.Equal(want) {
			t.Errorf("Want: %+v, Got: %+v", want, balance)
		}
	})

	t.Run("when the owner can not afford the deposit, it should fail and write nothing", func(t *testing.T) {
		ledger := ledgermem.NewWith(map[domain.AccountID]uint64{"alice": 999})
		testee := memory.New(domain.Limits{}, memory.WithEscrow(ledger)) // deposit: 1000

		_, err := testee.Create(ctx, specFor("alice"))
		if !errors.Is(err, domerr.ErrInsufficientBalance) {
			t.Fatalf("Want: %v, Got: %v", domerr.ErrInsufficientBalance, err)
		}

		if nextId := try.To(testee.NextID(ctx)).OrFatal(t); nextId != 0 {
			t.Errorf("NextID advanced on failure: %d", nextId)
		}
		if total := try.To(testee.Count(ctx)).OrFatal(t); total != 0 {
			t.Errorf("Count advanced on failure: %d", total)
		}
		if owned := try.To(testee.OwnedIDs(ctx, "alice")).OrFatal(t); len(owned) != 0 {
			t.Errorf("owned index written on failure: %v", owned)
		}
		balance := try.To(ledger.Balance(ctx, "alice")).OrFatal(t)
		if balance.Reserved != 0 {
			t.Errorf("balance reserved on failure: %+v", balance)
		}
	})

	t.Run("when the registry is small, creation should fail with bounds violated", func(t *testing.T) {
		// a tiny deployment: 2 subnets at most, 10-byte schemas
		limits := domain.Limits{MaxSchemaSize: 10, MaxUriSize: 1000, MaxSubnets: 2}
		ledger := ledgermem.NewWith(map[domain.AccountID]uint64{"alice": 100_000})
		testee := memory.New(limits, memory.WithEscrow(ledger))

		t.Run("an oversized schema should be rejected", func(t *testing.T) {
			spec := specFor("alice")
			spec.InputSchema = bytes.Repeat([]byte("x"), 11)
			if _, err := testee.Create(ctx, spec); !errors.Is(err, domerr.ErrSchemaTooLarge) {
				t.Errorf("Want: %v, Got: %v", domerr.ErrSchemaTooLarge, err)
			}
		})

		spec := specFor("alice")
		spec.InputSchema = []byte("0123456789") // exactly at the limit
		try.To(testee.Create(ctx, spec)).OrFatal(t)
		try.To(testee.Create(ctx, specFor("alice"))).OrFatal(t)

		t.Run("the third subnet should not fit", func(t *testing.T) {
			if _, err := testee.Create(ctx, specFor("alice")); !errors.Is(err, domerr.ErrTooManySubnets) {
				t.Errorf("Want: %v, Got: %v", domerr.ErrTooManySubnets, err)
			}
			if total := try.To(testee.Count(ctx)).OrFatal(t); total != 2 {
				t.Errorf("Count: Want: 2, Got: %d", total)
			}
		})
	})

	t.Run("when the owner holds too many subnets, it should fail", func(t *testing.T) {
		limits := domain.Limits{MaxOwnedSubnets: 1}
		ledger := ledgermem.NewWith(map[domain.AccountID]uint64{"alice": 100_000, "bob": 100_000})
		testee := memory.New(limits, memory.WithEscrow(ledger))

		try.To(testee.Create(ctx, specFor("alice"))).OrFatal(t)

		if _, err := testee.Create(ctx, specFor("alice")); !errors.Is(err, domerr.ErrOwnerCapacityExceeded) {
			t.Errorf("Want: %v, Got: %v", domerr.ErrOwnerCapacityExceeded, err)
		}

		// other owners are not affected
		try.To(testee.Create(ctx, specFor("bob"))).OrFatal(t)
	})

	t.Run("when the emission weight is over 100, it should fail", func(t *testing.T) {
		ledger := ledgermem.NewWith(map[domain.AccountID]uint64{"alice": 100_000})
		testee := memory.New(domain.Limits{}, memory.WithEscrow(ledger))

		spec := specFor("alice")
		spec.EmissionWeight = 101
		if _, err := testee.Create(ctx, spec); !errors.Is(err, domerr.ErrInvalidEmissionWeight) {
			t.Errorf("Want: %v, Got: %v", domerr.ErrInvalidEmissionWeight, err)
		}
	})
}

func TestRegistry_Update(t *testing.T) {
	ctx := context.Background()

	newTestee := func(t *testing.T) (*memory.Registry, uint32) {
		ledger := ledgermem.NewWith(map[domain.AccountID]uint64{"alice": 100_000})
		testee := memory.New(domain.Limits{MaxSchemaSize: 100}, memory.WithEscrow(ledger))
		id := try.To(testee.Create(ctx, specFor("alice"))).OrFatal(t)
		return testee, id
	}

	t.Run("when the owner updates fields, they should be stored", func(t *testing.T) {
		testee, id := newTestee(t)

		delta := domain.SubnetUpdate{
			OutputSchema:  []byte(`{"out":2}`),
			MinStakeMiner: pointer.Ref(uint64(5_000)),
		}
		if err := testee.Update(ctx, "alice", id, delta); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got := try.To(testee.Get(ctx, []uint32{id})).OrFatal(t)[id]
		if string(got.OutputSchema) != `{"out":2}` {
			t.Errorf("OutputSchema: Want: {\"out\":2}, Got: %s", got.OutputSchema)
		}
		if got.MinStakeMiner != 5_000 {
			t.Errorf("MinStakeMiner: Want: 5000, Got: %d", got.MinStakeMiner)
		}
		// untouched fields survive
		if string(got.InputSchema) != `{"in":1}` {
			t.Errorf("InputSchema changed, unexpectedly: %s", got.InputSchema)
		}
	})

	t.Run("when a non-owner updates, it should fail with authorization error", func(t *testing.T) {
		testee, id := newTestee(t)

		delta := domain.SubnetUpdate{OutputSchema: []byte("stolen")}
		if err := testee.Update(ctx, "mallory", id, delta); !errors.Is(err, domerr.ErrNotAuthorized) {
			t.Errorf("Want: %v, Got: %v", domerr.ErrNotAuthorized, err)
		}

		got := try.To(testee.Get(ctx, []uint32{id})).OrFatal(t)[id]
		if string(got.OutputSchema) != `{"out":1}` {
			t.Errorf("record changed by a non-owner: %s", got.OutputSchema)
		}
	})

	t.Run("when the subnet does not exist, it should fail with not found", func(t *testing.T) {
		testee, _ := newTestee(t)

		err := testee.Update(ctx, "alice", 42, domain.SubnetUpdate{OutputSchema: []byte("x")})
		if !errors.Is(err, domerr.ErrNotFound) {
			t.Errorf("Want: %v, Got: %v", domerr.ErrNotFound, err)
		}
	})

	t.Run("when an updated field is out of bounds, nothing should change", func(t *testing.T) {
		testee, id := newTestee(t)

		delta := domain.SubnetUpdate{
			OutputSchema: bytes.Repeat([]byte("x"), 101),
			MinStakeMiner: pointer.Ref(uint64(9_999)),
		}
		if err := testee.Update(ctx, "alice", id, delta); !errors.Is(err, domerr.ErrSchemaTooLarge) {
			t.Fatalf("Want: %v, Got: %v", domerr.ErrSchemaTooLarge, err)
		}

		got := try.To(testee.Get(ctx, []uint32{id})).OrFatal(t)[id]
		if got.MinStakeMiner != 100 {
			t.Errorf("valid field of a failed update is applied: %d", got.MinStakeMiner)
		}
	})

	t.Run("when the subnet is retired, update should fail", func(t *testing.T) {
		testee, id := newTestee(t)
		if err := testee.Retire(ctx, "alice", id); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		err := testee.Update(ctx, "alice", id, domain.SubnetUpdate{OutputSchema: []byte("x")})
		if !errors.Is(err, domerr.ErrAlreadyRetired) {
			t.Errorf("Want: %v, Got: %v", domerr.ErrAlreadyRetired, err)
		}
	})
}

func TestRegistry_Retire(t *testing.T) {
	ctx := context.Background()

	newTestee := func(t *testing.T, ledger *ledgermem.Ledger) (*memory.Registry, uint32) {
		testee := memory.New(domain.Limits{}, memory.WithEscrow(ledger))
		id := try.To(testee.Create(ctx, specFor("alice"))).OrFatal(t)
		return testee, id
	}

	t.Run("when the owner retires a subnet, it should stay registered as retired", func(t *testing.T) {
		ledger := ledgermem.NewWith(map[domain.AccountID]uint64{"alice": 100_000})
		testee, id := newTestee(t, ledger)

		if err := testee.Retire(ctx, "alice", id); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if exists := try.To(testee.Exists(ctx, id)).OrFatal(t); !exists {
			t.Error("retired subnet vanished, unexpectedly")
		}
		if active := try.To(testee.IsActive(ctx, id)).OrFatal(t); active {
			t.Error("retired subnet is active, unexpectedly")
		}
		got := try.To(testee.Get(ctx, []uint32{id})).OrFatal(t)[id]
		if got.Status != domain.SubnetRetired {
			t.Errorf("Status: Want: %s, Got: %s", domain.SubnetRetired, got.Status)
		}

		// counters do not roll back
		if total := try.To(testee.Count(ctx)).OrFatal(t); total != 1 {
			t.Errorf("Count: Want: 1, Got: %d", total)
		}
	})

	t.Run("when a subnet is retired, the deposit should stay reserved", func(t *testing.T) {
		ledger := ledgermem.NewWith(map[domain.AccountID]uint64{"alice": 100_000})
		testee, id := newTestee(t, ledger)

		if err := testee.Retire(ctx, "alice", id); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		balance := try.To(ledger.Balance(ctx, "alice")).OrFatal(t)
		if balance.Reserved != 1_000 {
			t.Errorf("Reserved: Want: 1000, Got: %d", balance.Reserved)
		}
	})

	t.Run("when a non-owner retires, it should fail with authorization error", func(t *testing.T) {
		ledger := ledgermem.NewWith(map[domain.AccountID]uint64{"alice": 100_000})
		testee, id := newTestee(t, ledger)

		if err := testee.Retire(ctx, "mallory", id); !errors.Is(err, domerr.ErrNotAuthorized) {
			t.Errorf("Want: %v, Got: %v", domerr.ErrNotAuthorized, err)
		}
		if active := try.To(testee.IsActive(ctx, id)).OrFatal(t); !active {
			t.Error("subnet retired by a non-owner, unexpectedly")
		}
	})

	t.Run("when a subnet is retired twice, the second should fail", func(t *testing.T) {
		ledger := ledgermem.NewWith(map[domain.AccountID]uint64{"alice": 100_000})
		testee, id := newTestee(t, ledger)

		if err := testee.Retire(ctx, "alice", id); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := testee.Retire(ctx, "alice", id); !errors.Is(err, domerr.ErrAlreadyRetired) {
			t.Errorf("Want: %v, Got: %v", domerr.ErrAlreadyRetired, err)
		}
	})

	t.Run("when the subnet does not exist, it should fail with not found", func(t *testing.T) {
		ledger := ledgermem.NewWith(map[domain.AccountID]uint64{"alice": 100_000})
		testee, _ := newTestee(t, ledger)

		if err := testee.Retire(ctx, "alice", 42); !errors.Is(err, domerr.ErrNotFound) {
			t.Errorf("Want: %v, Got: %v", domerr.ErrNotFound, err)
		}
	})
}

func TestRegistry_Queries(t *testing.T) {
	ctx := context.Background()

	ledger := ledgermem.NewWith(map[domain.AccountID]uint64{"alice": 100_000, "bob": 100_000})
	testee := memory.New(domain.Limits{}, memory.WithEscrow(ledger))

	idA1 := try.To(testee.Create(ctx, specFor("alice"))).OrFatal(t)
	idB1 := try.To(testee.Create(ctx, specFor("bob"))).OrFatal(t)
	idA2 := try.To(testee.Create(ctx, specFor("alice"))).OrFatal(t)

	t.Run("Find should list every subnet in id order", func(t *testing.T) {
		ids := try.To(testee.Find(ctx)).OrFatal(t)
		if !cmp.SliceEq(ids, []uint32{idA1, idB1, idA2}) {
			t.Errorf("Want: %v, Got: %v", []uint32{idA1, idB1, idA2}, ids)
		}
	})

	t.Run("OwnedIDs should list the owner's subnets oldest first", func(t *testing.T) {
		ids := try.To(testee.OwnedIDs(ctx, "alice")).OrFatal(t)
		if !cmp.SliceEq(ids, []uint32{idA1, idA2}) {
			t.Errorf("Want: %v, Got: %v", []uint32{idA1, idA2}, ids)
		}
	})

	t.Run("OwnedIDs of a stranger should be empty", func(t *testing.T) {
		ids := try.To(testee.OwnedIDs(ctx, "nobody")).OrFatal(t)
		if len(ids) != 0 {
			t.Errorf("Want: empty, Got: %v", ids)
		}
	})

	t.Run("Get should skip missing ids silently", func(t *testing.T) {
		got := try.To(testee.Get(ctx, []uint32{idA1, 42})).OrFatal(t)
		if len(got) != 1 {
			t.Errorf("Want: 1 record, Got: %d", len(got))
		}
		if _, ok := got[idA1]; !ok {
			t.Errorf("record %d is not found", idA1)
		}
	})

	t.Run("Exists should report presence regardless of status", func(t *testing.T) {
		if exists := try.To(testee.Exists(ctx, idB1)).OrFatal(t); !exists {
			t.Error("existing subnet reported missing")
		}
		if exists := try.To(testee.Exists(ctx, 42)).OrFatal(t); exists {
			t.Error("missing subnet reported existing")
		}
	})
}
