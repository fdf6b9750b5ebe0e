package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/0xDevNinja/neuro-mesh/pkg/domain"
	domerr "github.com/0xDevNinja/neuro-mesh/pkg/domain/errors"
	ldb "github.com/0xDevNinja/neuro-mesh/pkg/domain/ledger/db"
	ledgermem "github.com/0xDevNinja/neuro-mesh/pkg/domain/ledger/memory"
	sdb "github.com/0xDevNinja/neuro-mesh/pkg/domain/subnet/db"
)

// Registry is an in-process implementation of sdb.RegistryInterface.
//
// The whole registry state lives in one struct, so fixtures for any
// transition can be constructed directly. A mutex serializes operations;
// within one operation every check runs before the first write, and the only
// fallible step after the checks is the escrow reservation, so a rejected
// operation never leaves partial state behind.
type Registry struct {
	mu     sync.Mutex
	limits domain.Limits
	escrow ldb.LedgerInterface

	records map[uint32]domain.SubnetRecord
	owned   map[domain.AccountID][]uint32
	nextID  uint32
	total   uint32
}

var _ sdb.RegistryInterface = &Registry{}

type Option func(*Registry) *Registry

// WithEscrow sets the ledger deposits are reserved against.
// Without it the registry escrows against its own empty in-memory ledger, in
// which no account can afford a deposit until funded.
func WithEscrow(escrow ldb.LedgerInterface) Option {
	return func(r *Registry) *Registry {
		r.escrow = escrow
		return r
	}
}

func New(limits domain.Limits, option ...Option) *Registry {
	r := &Registry{
		limits:  limits.WithDefaults(),
		escrow:  ledgermem.New(),
		records: map[uint32]domain.SubnetRecord{},
		owned:   map[domain.AccountID][]uint32{},
	}
	for _, opt := range option {
		r = opt(r)
	}
	return r
}

func (r *Registry) Create(ctx context.Context, spec domain.SubnetSpec) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if 100 < spec.EmissionWeight {
		return 0, fmt.Errorf("%w: %d", domerr.ErrInvalidEmissionWeight, spec.EmissionWeight)
	}
	if r.limits.MaxSubnets <= r.total {
		return 0, fmt.Errorf("%w: max %d", domerr.ErrTooManySubnets, r.limits.MaxSubnets)
	}
	if err := spec.Validate(r.limits); err != nil {
		return 0, err
	}
	owned := r.owned[spec.Owner]
	if r.limits.MaxOwnedSubnets <= uint32(len(owned)) {
		return 0, fmt.Errorf(
			"%w: %s holds %d already", domerr.ErrOwnerCapacityExceeded, spec.Owner, len(owned),
		)
	}
	if r.nextID == math.MaxUint32 {
		return 0, fmt.Errorf("%w: subnet id space exhausted", domerr.ErrArithmeticOverflow)
	}
	if r.total == math.MaxUint32 {
		return 0, fmt.Errorf("%w: subnet count exhausted", domerr.ErrArithmeticOverflow)
	}

	// Non-monetary checks all passed; the reservation is the last fallible
	// step before the writes below.
	if err := r.escrow.Reserve(ctx, spec.Owner, r.limits.SubnetDeposit); err != nil {
		return 0, err
	}

	id := r.nextID
	r.records[id] = spec.Build(id)
	r.owned[spec.Owner] = append(owned, id)
	r.nextID += 1
	r.total += 1
	return id, nil
}

func (r *Registry) Update(_ context.Context, caller domain.AccountID, id uint32, delta domain.SubnetUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[id]
	if !ok {
		return fmt.Errorf("%w: subnet %d", domerr.ErrNotFound, id)
	}
	if record.Owner != caller {
		return fmt.Errorf("%w: subnet %d is not owned by %s", domerr.ErrNotAuthorized, id, caller)
	}
	if record.Status == domain.SubnetRetired {
		return fmt.Errorf("%w: subnet %d", domerr.ErrAlreadyRetired, id)
	}

	updated, err := delta.Apply(record, r.limits)
	if err != nil {
		return err
	}
	r.records[id] = updated
	return nil
}

func (r *Registry) Retire(_ context.Context, caller domain.AccountID, id uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[id]
	if !ok {
		return fmt.Errorf("%w: subnet %d", domerr.ErrNotFound, id)
	}
	if record.Owner != caller {
		return fmt.Errorf("%w: subnet %d is not owned by %s", domerr.ErrNotAuthorized, id, caller)
	}
	if record.Status == domain.SubnetRetired {
		return fmt.Errorf("%w: subnet %d", domerr.ErrAlreadyRetired, id)
	}

	record.Status = domain.SubnetRetired
	r.records[id] = record
	return nil
}

func (r *Registry) Get(_ context.Context, ids []uint32) (map[uint32]domain.SubnetRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	found := map[uint32]domain.SubnetRecord{}
	for _, id := range ids {
		if record, ok := r.records[id]; ok {
			found[id] = record
		}
	}
	return found, nil
}

func (r *Registry) Find(_ context.Context) ([]uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]uint32, 0, len(r.records))
	for id := range r.records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *Registry) NextID(_ context.Context) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.nextID, nil
}

func (r *Registry) Count(_ context.Context) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.total, nil
}

func (r *Registry) OwnedIDs(_ context.Context, owner domain.AccountID) ([]uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	owned := r.owned[owner]
	ids := make([]uint32, len(owned))
	copy(ids, owned)
	return ids, nil
}

func (r *Registry) Exists(_ context.Context, id uint32) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.records[id]
	return ok, nil
}

func (r *Registry) IsActive(_ context.Context, id uint32) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[id]
	return ok && record.Status == domain.SubnetActive, nil
}
