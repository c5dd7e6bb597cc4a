// Command authgatewayd runs the SRP6 logon gateway and its companion
// account-creation/admin HTTP surface side by side against one SQLite
// database.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"titancore/internal/account"
	"titancore/internal/authhandler"
	"titancore/internal/config"
	"titancore/internal/database"
	"titancore/internal/db"
	"titancore/internal/gateway"
	"titancore/internal/httpapi"
)

func main() {
	cfg := config.New()

	sqlDB, err := database.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("opening database: %v", err)
	}
	defer sqlDB.Close()

	poolCfg := db.PoolConfig{
		MinConnections:         cfg.PoolMinConnections,
		MaxConnections:         cfg.PoolMaxConnections,
		AcquireTimeout:         cfg.PoolAcquireTimeout,
		QueryTimeout:           cfg.PoolQueryTimeout,
		HealthCheckInterval:    cfg.PoolHealthCheckPeriod,
		IdleTimeout:            cfg.PoolIdleTimeout,
		StatementCacheCapacity: cfg.StatementCacheCapacity,
	}
	pool := db.NewConnectionPool(sqlDB, poolCfg)
	handle := db.NewDatabaseHandle(pool)

	registry, err := db.LoadMigrationRegistry(cfg.MigrationDir)
	if err != nil {
		log.Fatalf("loading migrations from %s: %v", cfg.MigrationDir, err)
	}
	migrator := db.NewMigrator(handle, registry)
	if err := migrator.Init(context.Background()); err != nil {
		log.Fatalf("initializing migration tracking table: %v", err)
	}

	latest := int64(0)
	for _, v := range registry.Versions() {
		if v > latest {
			latest = v
		}
	}
	report, err := migrator.MigrateTo(context.Background(), latest)
	if err != nil {
		log.Fatalf("running migrations: %v", err)
	}
	if len(report.Applied) > 0 {
		log.Printf("applied migrations %v, now at version %d", report.Applied, report.FinalVersion)
	}

	accounts := account.NewRepository(handle)
	handler := authhandler.New(accounts)
	gatewayServer := gateway.NewServer(handler, 5, 10)

	httpServer := httpapi.NewServer(cfg.HTTPAddress(), httpapi.Config{
		Accounts:               accounts,
		Pool:                   pool,
		Migrator:               migrator,
		Registry:               gatewayServer.Registry(),
		OperatorCredentialHash: cfg.OperatorCredentialHash,
	})

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 2)
	go func() {
		errCh <- gatewayServer.Run(ctx, cfg.GatewayAddress())
	}()
	go func() {
		errCh <- httpServer.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	remaining := 2
	select {
	case <-quit:
		log.Println("shutting down")
	case err := <-errCh:
		if err != nil {
			log.Printf("server error: %v", err)
		}
		remaining--
	}
	cancel()

	for ; remaining > 0; remaining-- {
		if err := <-errCh; err != nil {
			log.Printf("server error during shutdown: %v", err)
		}
	}

	if err := pool.Shutdown(context.Background()); err != nil {
		log.Printf("pool shutdown error: %v", err)
	}

	log.Println("stopped")
}
