package mocks

import (
	"context"
	"errors"

	"github.com/0xDevNinja/neuro-mesh/pkg/domain"
	dbmock "github.com/0xDevNinja/neuro-mesh/internal/db/mock"
	sdb "github.com/0xDevNinja/neuro-mesh/pkg/domain/subnet/db"
)

type RegistryInterface struct {
	Impl struct {
		Create   func(context.Context, domain.SubnetSpec) (uint32, error)
		Update   func(context.Context, domain.AccountID, uint32, domain.SubnetUpdate) error
		Retire   func(context.Context, domain.AccountID, uint32) error
		Get      func(context.Context, []uint32) (map[uint32]domain.SubnetRecord, error)
		Find     func(context.Context) ([]uint32, error)
		NextID   func(context.Context) (uint32, error)
		Count    func(context.Context) (uint32, error)
		OwnedIDs func(context.Context, domain.AccountID) ([]uint32, error)
		Exists   func(context.Context, uint32) (bool, error)
		IsActive func(context.Context, uint32) (bool, error)
	}
	Calls struct {
		Create dbmock.CallLog[domain.SubnetSpec]
		Update dbmock.CallLog[struct {
			Caller domain.AccountID
			ID     uint32
			Delta  domain.SubnetUpdate
		}]
		Retire dbmock.CallLog[struct {
			Caller domain.AccountID
			ID     uint32
		}]
		Get      dbmock.CallLog[struct{ IDs []uint32 }]
		Find     dbmock.CallLog[struct{}]
		NextID   dbmock.CallLog[struct{}]
		Count    dbmock.CallLog[struct{}]
		OwnedIDs dbmock.CallLog[struct{ Owner domain.AccountID }]
		Exists   dbmock.CallLog[struct{ ID uint32 }]
		IsActive dbmock.CallLog[struct{ ID uint32 }]
	}
}

func NewRegistryInterface() *RegistryInterface {
	return &RegistryInterface{}
}

var _ sdb.RegistryInterface = &RegistryInterface{}

func (ri *RegistryInterface) Create(ctx context.Context, spec domain.SubnetSpec) (uint32, error) {
	ri.Calls.Create = append(ri.Calls.Create, spec)
	if ri.Impl.Create != nil {
		return ri.Impl.Create(ctx, spec)
	}
	panic(errors.New("it should not be called"))
}

func (ri *RegistryInterface) Update(ctx context.Context, caller domain.AccountID, id uint32, delta domain.SubnetUpdate) error {
	ri.Calls.Update = append(ri.Calls.Update, struct {
		Caller domain.AccountID
		ID     uint32
		Delta  domain.SubnetUpdate
	}{Caller: caller, ID: id, Delta: delta})
	if ri.Impl.Update != nil {
		return ri.Impl.Update(ctx, caller, id, delta)
	}
	panic(errors.New("it should not be called"))
}

func (ri *RegistryInterface) Retire(ctx context.Context, caller domain.AccountID, id uint32) error {
	ri.Calls.Retire = append(ri.Calls.Retire, struct {
		Caller domain.AccountID
		ID     uint32
	}{Caller: caller, ID: id})
	if ri.Impl.Retire != nil {
		return ri.Impl.Retire(ctx, caller, id)
	}
	panic(errors.New("it should not be called"))
}

func (ri *RegistryInterface) Get(ctx context.Context, ids []uint32) (map[uint32]domain.SubnetRecord, error) {
	ri.Calls.Get = append(ri.Calls.Get, struct{ IDs []uint32 }{IDs: ids})
	if ri.Impl.Get != nil {
		return ri.Impl.Get(ctx, ids)
	}
	panic(errors.New("it should not be called"))
}

func (ri *RegistryInterface) Find(ctx context.Context) ([]uint32, error) {
	ri.Calls.Find = append(ri.Calls.Find, struct{}{})
	if ri.Impl.Find != nil {
		return ri.Impl.Find(ctx)
	}
	panic(errors.New("it should not be called"))
}

func (ri *RegistryInterface) NextID(ctx context.Context) (uint32, error) {
	ri.Calls.NextID = append(ri.Calls.NextID, struct{}{})
	if ri.Impl.NextID != nil {
		return ri.Impl.NextID(ctx)
	}
	panic(errors.New("it should not be called"))
}

func (ri *RegistryInterface) Count(ctx context.Context) (uint32, error) {
	ri.Calls.Count = append(ri.Calls.Count, struct{}{})
	if ri.Impl.Count != nil {
		return ri.Impl.Count(ctx)
	}
	panic(errors.New("it should not be called"))
}

func (ri *RegistryInterface) OwnedIDs(ctx context.Context, owner domain.AccountID) ([]uint32, error) {
	ri.Calls.OwnedIDs = append(ri.Calls.OwnedIDs, struct{ Owner domain.AccountID }{Owner: owner})
	if ri.Impl.OwnedIDs != nil {
		return ri.Impl.OwnedIDs(ctx, owner)
	}
	panic(errors.New("it should not be called"))
}

func (ri *RegistryInterface) Exists(ctx context.Context, id uint32) (bool, error) {
	ri.Calls.Exists = append(ri.Calls.Exists, struct{ ID uint32 }{ID: id})
	if ri.Impl.Exists != nil {
		return ri.Impl.Exists(ctx, id)
	}
	panic(errors.New("it should not be called"))
}

func (ri *RegistryInterface) IsActive(ctx context.Context, id uint32) (bool, error) {
	ri.Calls.IsActive = append(ri.Calls.IsActive, struct{ ID uint32 }{ID: id})
	if ri.Impl.IsActive != nil {
		return ri.Impl.IsActive(ctx, id)
	}
	panic(errors.New("it should not be called"))
}
