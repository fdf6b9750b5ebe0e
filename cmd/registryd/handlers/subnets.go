package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	apierr "github.com/0xDevNinja/neuro-mesh/pkg/api/types/errors"
	apievents "github.com/0xDevNinja/neuro-mesh/pkg/api/types/events"
	apisubnets "github.com/0xDevNinja/neuro-mesh/pkg/api/types/subnets"
	"github.com/0xDevNinja/neuro-mesh/pkg/auth"
	"github.com/0xDevNinja/neuro-mesh/pkg/domain"
	domerr "github.com/0xDevNinja/neuro-mesh/pkg/domain/errors"
	sdb "github.com/0xDevNinja/neuro-mesh/pkg/domain/subnet/db"
	"github.com/0xDevNinja/neuro-mesh/pkg/hook"
)

// asAPIError maps registry errors onto HTTP responses.
//
// Unrecognized errors become 500s.
func asAPIError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, domerr.ErrNotFound):
		return apierr.NotFound()
	case errors.Is(err, domerr.ErrNotAuthorized):
		return apierr.Forbidden("only the owner may change a subnet", err)
	case errors.Is(err, domerr.ErrAlreadyRetired):
		return apierr.Conflict("subnet is retired", apierr.WithError(err))
	case errors.Is(err, domerr.ErrInsufficientBalance):
		return apierr.PaymentRequired("deposit funds to the escrow account first", err)
	case errors.Is(err, domerr.ErrTooManySubnets):
		return apierr.Conflict("the registry is full", apierr.WithError(err))
	case errors.Is(err, domerr.ErrOwnerCapacityExceeded):
		return apierr.Conflict("you own too many subnets", apierr.WithError(err))
	case errors.Is(err, domerr.ErrArithmeticOverflow):
		return apierr.Conflict("the registry can not issue more subnets", apierr.WithError(err))
	case errors.Is(err, domerr.ErrInvalidEmissionWeight),
		errors.Is(err, domerr.ErrSchemaTooLarge),
		errors.Is(err, domerr.ErrUriTooLarge),
		errors.Is(err, domerr.ErrTaskTypeTooLarge):
		return apierr.BadRequest(err.Error(), err)
	default:
		return apierr.InternalServerError(err)
	}
}

func subnetIdParam(c echo.Context, name string) (uint32, error) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, apierr.BadRequest(`"`+name+`" should be a subnet id`, err)
	}
	return uint32(id), nil
}

func CreateSubnetHandler(
	dbSubnet sdb.RegistryInterface,
	hk hook.Hook[apievents.SubnetCreated, struct{}],
) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		ctx := req.Context()

		caller, ok := auth.Account(c)
		if !ok {
			return apierr.Unauthorized("login first", nil)
		}

		if !strings.HasPrefix(strings.ToLower(req.Header.Get("content-type")), "application/json") {
			return apierr.BadRequest("unexpected content type. it should be application/json", nil)
		}

		specInReq := new(apisubnets.SubnetSpec)
		if err := json.NewDecoder(req.Body).Decode(specInReq); err != nil {
			return apierr.BadRequest("can not understand the requested json", err)
		}

		spec, err := specInReq.AsSpec(caller)
		if err != nil {
			return apierr.BadRequest(err.Error(), err)
		}

		// the id is not assigned yet; before-hooks receive the event
		// with subnetId 0 and may veto the registration.
		if _, err := hk.Before(apievents.SubnetCreated{
			Owner:    string(spec.Owner),
			TaskType: spec.TaskType.String(),
		}); err != nil {
			return apierr.ServiceUnavailable("a before-hook rejected the registration", err)
		}

		id, err := dbSubnet.Create(ctx, spec)
		if err != nil {
			return asAPIError(err)
		}

		records, err := dbSubnet.Get(ctx, []uint32{id})
		if err != nil {
			return apierr.InternalServerError(err)
		}
		record, ok := records[id]
		if !ok {
			return apierr.InternalServerError(errors.New("created subnet is missing"))
		}

		if err := hk.After(apievents.ComposeCreated(record)); err != nil {
			c.Logger().Errorf("after-hook failed for subnet %d: %s", id, err)
		}

		c.Response().Header().Add("Content-Type", "application/json")
		c.Response().Header().Set("Location", fmt.Sprintf("/api/subnets/%d/", id))
		return c.JSON(http.StatusCreated, apisubnets.ComposeDetail(record))
	}
}

func FindSubnetHandler(dbSubnet sdb.RegistryInterface) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")
		ctx := c.Request().Context()

		var ids []uint32
		var err error
		if owner := c.QueryParam("owner"); owner != "" {
			ids, err = dbSubnet.OwnedIDs(ctx, domain.AccountID(owner))
		} else {
			ids, err = dbSubnet.Find(ctx)
		}
		if err != nil {
			return apierr.InternalServerError(err)
		}

		records, err := dbSubnet.Get(ctx, ids)
		if err != nil {
			return apierr.InternalServerError(err)
		}

		resp := make([]apisubnets.Summary, 0, len(ids))
		for _, id := range ids {
			if r, ok := records[id]; ok {
				resp = append(resp, apisubnets.ComposeSummary(r))
			}
		}
		return c.JSON(http.StatusOK, resp)
	}
}

func GetSubnetHandler(dbSubnet sdb.RegistryInterface, paramName string) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")

		id, err := subnetIdParam(c, paramName)
		if err != nil {
			return err
		}
		ctx := c.Request().Context()

		records, err := dbSubnet.Get(ctx, []uint32{id})
		if err != nil {
			return apierr.InternalServerError(err)
		}

		record, ok := records[id]
		if !ok {
			return apierr.NotFound()
		}
		return c.JSON(http.StatusOK, apisubnets.ComposeDetail(record))
	}
}

func GetSubnetStatusHandler(dbSubnet sdb.RegistryInterface, paramName string) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")

		id, err := subnetIdParam(c, paramName)
		if err != nil {
			return err
		}
		ctx := c.Request().Context()

		records, err := dbSubnet.Get(ctx, []uint32{id})
		if err != nil {
			return apierr.InternalServerError(err)
		}

		record, ok := records[id]
		if !ok {
			return apierr.NotFound()
		}
		return c.JSON(http.StatusOK, apisubnets.Status{
			SubnetId: record.ID,
			Status:   record.Status.String(),
		})
	}
}

func UpdateSubnetHandler(
	dbSubnet sdb.RegistryInterface,
	paramName string,
	hk hook.Hook[apievents.SubnetUpdated, struct{}],
) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		ctx := req.Context()

		caller, ok := auth.Account(c)
		if !ok {
			return apierr.Unauthorized("login first", nil)
		}

		id, err := subnetIdParam(c, paramName)
		if err != nil {
			return err
		}

		changeInReq := new(apisubnets.SubnetChange)
		if err := json.NewDecoder(req.Body).Decode(changeInReq); err != nil {
			return apierr.BadRequest("can not understand the requested json", err)
		}

		delta, err := changeInReq.AsUpdate()
		if err != nil {
			return apierr.BadRequest(err.Error(), err)
		}

		if _, err := hk.Before(apievents.SubnetUpdated{SubnetId: id, Owner: string(caller)}); err != nil {
			return apierr.ServiceUnavailable("a before-hook rejected the update", err)
		}

		if err := dbSubnet.Update(ctx, caller, id, delta); err != nil {
			return asAPIError(err)
		}

		records, err := dbSubnet.Get(ctx, []uint32{id})
		if err != nil {
			return apierr.InternalServerError(err)
		}
		record, ok := records[id]
		if !ok {
			return apierr.InternalServerError(errors.New("updated subnet is missing"))
		}

		if err := hk.After(apievents.SubnetUpdated{SubnetId: id, Owner: string(caller)}); err != nil {
			c.Logger().Errorf("after-hook failed for subnet %d: %s", id, err)
		}

		c.Response().Header().Add("Content-Type", "application/json")
		return c.JSON(http.StatusOK, apisubnets.ComposeDetail(record))
	}
}

func RetireSubnetHandler(
	dbSubnet sdb.RegistryInterface,
	paramName string,
	hk hook.Hook[apievents.SubnetRetired, struct{}],
) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		caller, ok := auth.Account(c)
		if !ok {
			return apierr.Unauthorized("login first", nil)
		}

		id, err := subnetIdParam(c, paramName)
		if err != nil {
			return err
		}

		if _, err := hk.Before(apievents.SubnetRetired{SubnetId: id, Owner: string(caller)}); err != nil {
			return apierr.ServiceUnavailable("a before-hook rejected the retirement", err)
		}

		if err := dbSubnet.Retire(ctx, caller, id); err != nil {
			return asAPIError(err)
		}

		if err := hk.After(apievents.SubnetRetired{SubnetId: id, Owner: string(caller)}); err != nil {
			c.Logger().Errorf("after-hook failed for subnet %d: %s", id, err)
		}

		c.Response().Header().Add("Content-Type", "application/json")
		return c.JSON(http.StatusOK, apisubnets.Status{
			SubnetId: id,
			Status:   domain.SubnetRetired.String(),
		})
	}
}

func GetRegistryHandler(dbSubnet sdb.RegistryInterface, limits domain.Limits) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")
		ctx := c.Request().Context()

		nextId, err := dbSubnet.NextID(ctx)
		if err != nil {
			return apierr.InternalServerError(err)
		}
		total, err := dbSubnet.Count(ctx)
		if err != nil {
			return apierr.InternalServerError(err)
		}

		return c.JSON(http.StatusOK, apisubnets.RegistrySummary{
			NextSubnetId: nextId,
			TotalSubnets: total,
			MaxSubnets:   limits.MaxSubnets,
		})
	}
}

func OwnedSubnetsHandler(dbSubnet sdb.RegistryInterface, paramName string) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")
		ctx := c.Request().Context()

		owner := domain.AccountID(c.Param(paramName))
		if owner == "" {
			return apierr.BadRequest(`"`+paramName+`" should be an account id`, nil)
		}

		ids, err := dbSubnet.OwnedIDs(ctx, owner)
		if err != nil {
			return apierr.InternalServerError(err)
		}

		records, err := dbSubnet.Get(ctx, ids)
		if err != nil {
			return apierr.InternalServerError(err)
		}

		resp := make([]apisubnets.Summary, 0, len(ids))
		for _, id := range ids {
			if r, ok := records[id]; ok {
				resp = append(resp, apisubnets.ComposeSummary(r))
			}
		}
		return c.JSON(http.StatusOK, resp)
	}
}
