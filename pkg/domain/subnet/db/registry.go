package db

import (
	"context"

	"github.com/0xDevNinja/neuro-mesh/pkg/domain"
)

// RegistryInterface is the contract of the subnet record store.
//
// Each state-changing method is one atomic transition: it validates its
// preconditions in a fixed order, and either commits every write (record,
// owner index, counters, escrow) or none of them. A rejected call leaves the
// store indistinguishable from never having been called.
type RegistryInterface interface {
	// Create registers a new Active subnet owned by spec.Owner.
	//
	// Preconditions, checked in order, first failure aborts:
	//
	//     1. spec.EmissionWeight <= 100          (ErrInvalidEmissionWeight)
	//     2. total count < MaxSubnets            (ErrTooManySubnets)
	//     3. schema sizes <= MaxSchemaSize       (ErrSchemaTooLarge)
	//     4. uri size <= MaxUriSize              (ErrUriTooLarge)
	//     5. owner holds < MaxOwnedSubnets       (ErrOwnerCapacityExceeded)
	//     6. counters can advance                (ErrArithmeticOverflow)
	//     7. deposit reserved from spec.Owner    (ErrInsufficientBalance)
	//
	// The deposit is reserved last, after every non-monetary check, so a
	// rejection never moves funds.
	//
	// Returns the allocated subnet id.
	Create(ctx context.Context, spec domain.SubnetSpec) (uint32, error)

	// Update replaces the supplied fields of subnet id.
	//
	// Preconditions: the subnet exists (ErrNotFound), caller is its owner
	// (ErrNotAuthorized), and it is Active (ErrAlreadyRetired). Supplied
	// fields are validated exactly as in Create; any invalid field fails the
	// whole update.
	Update(ctx context.Context, caller domain.AccountID, id uint32, delta domain.SubnetUpdate) error

	// Retire transitions subnet id to Retired, one-way.
	//
	// Preconditions as Update. A second retire fails with ErrAlreadyRetired.
	// The deposit is not released.
	Retire(ctx context.Context, caller domain.AccountID, id uint32) error

	// Get retrieves records by id. Unknown ids are absent from the result,
	// not an error.
	Get(ctx context.Context, ids []uint32) (map[uint32]domain.SubnetRecord, error)

	// Find returns every subnet id, ascending.
	Find(ctx context.Context) ([]uint32, error)

	// NextID is the id the next successful Create will assign.
	NextID(ctx context.Context) (uint32, error)

	// Count is the total number of records, retired ones included.
	Count(ctx context.Context) (uint32, error)

	// OwnedIDs lists the subnets created by owner, in creation order.
	// Retirement does not remove entries.
	OwnedIDs(ctx context.Context, owner domain.AccountID) ([]uint32, error)

	// Exists reports whether subnet id is registered.
	Exists(ctx context.Context, id uint32) (bool, error)

	// IsActive reports whether subnet id is registered and Active.
	// It is false for retired and for unknown subnets alike.
	IsActive(ctx context.Context, id uint32) (bool, error)
}
