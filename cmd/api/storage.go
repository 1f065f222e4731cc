package main

import (
	"context"
	"fmt"
	"log/slog"

	memcampaignrepo "github.com/hemoconecta/donor-portal-api/internal/adapters/memory/campaignrepo"
	memdonorrepo "github.com/hemoconecta/donor-portal-api/internal/adapters/memory/donorrepo"
	memidempotency "github.com/hemoconecta/donor-portal-api/internal/adapters/memory/idempotency"
	memledger "github.com/hemoconecta/donor-portal-api/internal/adapters/memory/ledger"
	"github.com/hemoconecta/donor-portal-api/internal/adapters/postgres"
	pgcampaignrepo "github.com/hemoconecta/donor-portal-api/internal/adapters/postgres/campaignrepo"
	pgdonorrepo "github.com/hemoconecta/donor-portal-api/internal/adapters/postgres/donorrepo"
	pgidempotency "github.com/hemoconecta/donor-portal-api/internal/adapters/postgres/idempotency"
	pgledger "github.com/hemoconecta/donor-portal-api/internal/adapters/postgres/ledger"
	"github.com/hemoconecta/donor-portal-api/internal/adapters/sqlite"
	sqlitecampaignrepo "github.com/hemoconecta/donor-portal-api/internal/adapters/sqlite/campaignrepo"
	sqlitedonorrepo "github.com/hemoconecta/donor-portal-api/internal/adapters/sqlite/donorrepo"
	sqliteidempotency "github.com/hemoconecta/donor-portal-api/internal/adapters/sqlite/idempotency"
	sqliteledger "github.com/hemoconecta/donor-portal-api/internal/adapters/sqlite/ledger"
	"github.com/hemoconecta/donor-portal-api/internal/platform/config"
	clockport "github.com/hemoconecta/donor-portal-api/internal/ports/out/clock"
	campaignrepoport "github.com/hemoconecta/donor-portal-api/internal/ports/out/campaignrepo"
	donorrepoport "github.com/hemoconecta/donor-portal-api/internal/ports/out/donorrepo"
	idempotencyport "github.com/hemoconecta/donor-portal-api/internal/ports/out/idempotency"
	ledgerport "github.com/hemoconecta/donor-portal-api/internal/ports/out/ledger"
)

type storage struct {
	donors    donorrepoport.Repository
	campaigns campaignrepoport.Repository
	ledger    ledgerport.Ledger
	idem      idempotencyport.Store
	close     func()
}

// openStorage wires the repositories for cfg.Storage.Backend. Persistent backends are
// migrated before use.
func openStorage(ctx context.Context, cfg config.StorageConfig, clk clockport.Clock, logger *slog.Logger) (storage, error) {
	switch cfg.Backend {
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, postgres.PoolOptions{})
		if err != nil {
			return storage{}, fmt.Errorf("invalid postgres config: %w", err)
		}
		applied, err := postgres.Migrate(ctx, pool)
		if err != nil {
			pool.Close()
			return storage{}, fmt.Errorf("migrate postgres: %w", err)
		}
		if len(applied) > 0 {
			logger.Info("applied migrations", "backend", "postgres", "versions", applied)
		}
		return storage{
			donors:    pgdonorrepo.NewRepo(pool),
			campaigns: pgcampaignrepo.NewRepo(pool),
			ledger:    pgledger.NewLedger(pool),
			idem:      pgidempotency.NewStore(pool, cfg.IdempotencyTTL, clk),
			close:     pool.Close,
		}, nil
	case "sqlite":
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return storage{}, err
		}
		return storage{
			donors:    sqlitedonorrepo.NewRepo(db),
			campaigns: sqlitecampaignrepo.NewRepo(db),
			ledger:    sqliteledger.NewLedger(db),
			idem:      sqliteidempotency.NewStore(db, cfg.IdempotencyTTL, clk),
			close:     func() { _ = db.Close() },
		}, nil
	default:
		donors := memdonorrepo.NewRepo()
		campaigns := memcampaignrepo.NewRepo()
		return storage{
			donors:    donors,
			campaigns: campaigns,
			ledger:    memledger.NewLedger(donors, campaigns),
			idem:      memidempotency.NewStore(cfg.IdempotencyTTL, clk),
			close:     func() {},
		}, nil
	}
}
