package postgres

import (
	"fmt"

	domerr "github.com/0xDevNinja/neuro-mesh/pkg/domain/errors"
)

// requested row is missing.
type Missing struct {
	Table    string
	Identity string
}

var _ error = Missing{}

func (m Missing) Error() string {
	return fmt.Sprintf("%s is not found in %s", m.Identity, m.Table)
}
func (m Missing) Unwrap() error {
	return domerr.ErrNotFound
}

// account row cannot cover a reservation.
type ShortBalance struct {
	Account string
	Amount  uint64
}

var _ error = ShortBalance{}

func (s ShortBalance) Error() string {
	return fmt.Sprintf("account %s cannot reserve %d", s.Account, s.Amount)
}
func (s ShortBalance) Unwrap() error {
	return domerr.ErrInsufficientBalance
}

// the registry holds MaxSubnets records.
type RegistryFull struct {
	Max uint32
}

var _ error = RegistryFull{}

func (f RegistryFull) Error() string {
	return fmt.Sprintf("registry holds its maximum of %d subnets", f.Max)
}
func (f RegistryFull) Unwrap() error {
	return domerr.ErrTooManySubnets
}

// the owner holds MaxOwnedSubnets records.
type OwnerFull struct {
	Owner string
	Max   uint32
}

var _ error = OwnerFull{}

func (f OwnerFull) Error() string {
	return fmt.Sprintf("owner %s holds its maximum of %d subnets", f.Owner, f.Max)
}
func (f OwnerFull) Unwrap() error {
	return domerr.ErrOwnerCapacityExceeded
}
