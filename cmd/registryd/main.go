package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/0xDevNinja/neuro-mesh/cmd/registryd/handlers"
	apievents "github.com/0xDevNinja/neuro-mesh/pkg/api/types/events"
	"github.com/0xDevNinja/neuro-mesh/pkg/auth"
	cfg_hook "github.com/0xDevNinja/neuro-mesh/pkg/configs/hook"
	cfg_registryd "github.com/0xDevNinja/neuro-mesh/pkg/configs/registryd"
	kpool "github.com/0xDevNinja/neuro-mesh/pkg/conn/db/postgres/pool"
	"github.com/0xDevNinja/neuro-mesh/pkg/domain"
	"github.com/0xDevNinja/neuro-mesh/internal/db/postgres/tables"
	ldb "github.com/0xDevNinja/neuro-mesh/pkg/domain/ledger/db"
	ledgerpg "github.com/0xDevNinja/neuro-mesh/pkg/domain/ledger/db/postgres"
	ledgermem "github.com/0xDevNinja/neuro-mesh/pkg/domain/ledger/memory"
	sdb "github.com/0xDevNinja/neuro-mesh/pkg/domain/subnet/db"
	regpg "github.com/0xDevNinja/neuro-mesh/pkg/domain/subnet/db/postgres"
	regmem "github.com/0xDevNinja/neuro-mesh/pkg/domain/subnet/memory"
	"github.com/0xDevNinja/neuro-mesh/pkg/hook"
	"github.com/0xDevNinja/neuro-mesh/pkg/utils/echoutil"
	"github.com/0xDevNinja/neuro-mesh/pkg/utils/filewatch"
)

func main() {

	configPath := flag.String("config-path", "", "registryd config path")
	hooksConfigPath := flag.String("hooks-config", "", "path to lifecycle hooks config file")
	loglevel := flag.String("loglevel", "info", "log level. debug|info|warn|error|off")
	pcert := flag.String("cert", "", "certification file for TLS")
	pkey := flag.String("certkey", "", "key of certification file for TLS")
	flag.Parse()

	e := echo.New()
	e.Pre(middleware.AddTrailingSlash())

	// set log
	echoutil.SetLevel(e, *loglevel)
	e.HTTPErrorHandler = func(err error, ctx echo.Context) {
		e.DefaultHTTPErrorHandler(err, ctx)
		e.Logger.Error(err)
	}
	e.Use(echoutil.LogHandlerFunc)

	// read configfile
	conf, err := cfg_registryd.LoadRegistrydConfig(*configPath)
	if err != nil {
		log.Fatalf("can not read configration: %s", err)
	}
	limits := conf.Limits.AsLimits()

	signKey, err := auth.LoadKey(conf.JWTKeyFile)
	if err != nil {
		log.Fatalf("can not read signing key: %s", err)
	}

	hooksConf := cfg_hook.Config{}
	if *hooksConfigPath != "" {
		h, err := cfg_hook.Load(*hooksConfigPath)
		if err != nil {
			log.Fatalf("can not read configration: %s", err)
		}
		hooksConf = h

		ctx, cancel, err := filewatch.UntilModifyContext(context.Background(), *hooksConfigPath)
		if err != nil {
			log.Fatalf("can not watch configration: %s", err)
		}
		defer cancel()
		context.AfterFunc(ctx, func() {
			log.Println("hooks config file is updated. quit to restart server.")
			graceful, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := e.Shutdown(graceful); err != nil {
				log.Printf("error on shutdown by hooks config update: %s", err)
			}
		})
	}

	createdHook := hook.Web[apievents.SubnetCreated, struct{}]{
		BeforeURL: hooksConf.Lifecycle.Created.Before,
		AfterURL:  hooksConf.Lifecycle.Created.After,
	}
	updatedHook := hook.Web[apievents.SubnetUpdated, struct{}]{
		BeforeURL: hooksConf.Lifecycle.Updated.Before,
		AfterURL:  hooksConf.Lifecycle.Updated.After,
	}
	retiredHook := hook.Web[apievents.SubnetRetired, struct{}]{
		BeforeURL: hooksConf.Lifecycle.Retired.Before,
		AfterURL:  hooksConf.Lifecycle.Retired.After,
	}

	// get registry & ledger accessors
	ctx := context.Background()
	registry, ledger, closeDB, err := getAccessors(ctx, conf.DBURI, limits)
	if err != nil {
		log.Fatalf("can not open the registry store: %s", err.Error())
	}
	defer closeDB()

	authn := auth.Middleware(signKey)

	// handlers
	{
		e.POST("/api/subnets/", handlers.CreateSubnetHandler(registry, createdHook), authn)
		e.GET("/api/subnets/", handlers.FindSubnetHandler(registry))

		subnetId := "subnetId"
		e.GET("/api/subnets/:subnetId/", handlers.GetSubnetHandler(registry, subnetId))
		e.PUT("/api/subnets/:subnetId/", handlers.UpdateSubnetHandler(registry, subnetId, updatedHook), authn)
		e.PUT("/api/subnets/:subnetId/retire/", handlers.RetireSubnetHandler(registry, subnetId, retiredHook), authn)
		e.GET("/api/subnets/:subnetId/status/", handlers.GetSubnetStatusHandler(registry, subnetId))

		e.GET("/api/registry/", handlers.GetRegistryHandler(registry, limits))

		owner := "owner"
		e.GET("/api/owners/:owner/subnets/", handlers.OwnedSubnetsHandler(registry, owner))
		e.GET("/api/owners/:owner/balance/", handlers.GetBalanceHandler(ledger, owner))
		e.POST("/api/owners/:owner/deposit/", handlers.DepositHandler(ledger, owner, conf.IsOperator), authn)
	}

	log.Println("registred routes:")
	for _, r := range e.Routes() {
		log.Println(r.Method, r.Path)
	}

	cert, key := *pcert, *pkey
	if cert != "" && key != "" {
		e.Logger.Fatal(e.StartTLS(":"+conf.ServerPort, cert, key))
	} else {
		e.Logger.Fatal(e.Start(":" + conf.ServerPort))
	}
}

// getAccessors opens the registry and ledger stores.
//
// With an empty dburi it falls back to in-process memory stores, which
// are lost on restart.
func getAccessors(ctx context.Context, dburi string, limits domain.Limits) (
	sdb.RegistryInterface, ldb.LedgerInterface, func(), error,
) {
	if dburi == "" {
		ledger := ledgermem.New()
		registry := regmem.New(limits, regmem.WithEscrow(ledger))
		return registry, ledger, func() {}, nil
	}

	pgpool, err := pgxpool.Connect(ctx, dburi)
	if err != nil {
		return nil, nil, nil, err
	}
	pool := kpool.Wrap(pgpool)

	conn, err := pool.Acquire(ctx)
	if err != nil {
		pool.Close()
		return nil, nil, nil, err
	}
	err = tables.Apply(ctx, conn)
	conn.Release()
	if err != nil {
		pool.Close()
		return nil, nil, nil, err
	}

	ledger := ledgerpg.New(pool)
	registry := regpg.New(pool, limits)
	return registry, ledger, pool.Close, nil
}
