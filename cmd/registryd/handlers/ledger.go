package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	apierr "github.com/0xDevNinja/neuro-mesh/pkg/api/types/errors"
	apisubnets "github.com/0xDevNinja/neuro-mesh/pkg/api/types/subnets"
	"github.com/0xDevNinja/neuro-mesh/pkg/auth"
	"github.com/0xDevNinja/neuro-mesh/pkg/domain"
	domerr "github.com/0xDevNinja/neuro-mesh/pkg/domain/errors"
	ldb "github.com/0xDevNinja/neuro-mesh/pkg/domain/ledger/db"
)

func GetBalanceHandler(dbLedger ldb.LedgerInterface, paramName string) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")
		ctx := c.Request().Context()

		account := domain.AccountID(c.Param(paramName))
		if account == "" {
			return apierr.BadRequest(`"`+paramName+`" should be an account id`, nil)
		}

		// unknown accounts read as zero balances, not 404s
		balance, err := dbLedger.Balance(ctx, account)
		if err != nil {
			return apierr.InternalServerError(err)
		}

		return c.JSON(http.StatusOK, apisubnets.ComposeBalance(account, balance))
	}
}

// DepositHandler credits an escrow account. Only operators may call it.
func DepositHandler(
	dbLedger ldb.LedgerInterface,
	paramName string,
	isOperator func(domain.AccountID) bool,
) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		ctx := req.Context()

		caller, ok := auth.Account(c)
		if !ok {
			return apierr.Unauthorized("login first", nil)
		}
		if !isOperator(caller) {
			return apierr.Forbidden("only operators may credit accounts", nil)
		}

		account := domain.AccountID(c.Param(paramName))
		if account == "" {
			return apierr.BadRequest(`"`+paramName+`" should be an account id`, nil)
		}

		depositInReq := new(apisubnets.DepositRequest)
		if err := json.NewDecoder(req.Body).Decode(depositInReq); err != nil {
			return apierr.BadRequest("can not understand the requested json", err)
		}
		if err := depositInReq.Validate(); err != nil {
			return apierr.BadRequest(err.Error(), err)
		}

		if err := dbLedger.Deposit(ctx, account, depositInReq.Amount); err != nil {
			if errors.Is(err, domerr.ErrArithmeticOverflow) {
				return apierr.Conflict("balance can not hold that much", apierr.WithError(err))
			}
			return apierr.InternalServerError(err)
		}

		balance, err := dbLedger.Balance(ctx, account)
		if err != nil {
			return apierr.InternalServerError(err)
		}

		c.Response().Header().Add("Content-Type", "application/json")
		return c.JSON(http.StatusOK, apisubnets.ComposeBalance(account, balance))
	}
}
