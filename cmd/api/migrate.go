package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hemoconecta/donor-portal-api/internal/adapters/postgres"
	"github.com/hemoconecta/donor-portal-api/internal/adapters/sqlite"
	"github.com/hemoconecta/donor-portal-api/internal/platform/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations for the configured storage backend",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var applied []string
	switch cfg.Storage.Backend {
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.Storage.DatabaseURL, postgres.PoolOptions{})
		if err != nil {
			return err
		}
		defer pool.Close()
		if applied, err = postgres.Migrate(ctx, pool); err != nil {
			return err
		}
	case "sqlite":
		// Open applies pending migrations itself.
		db, err := sqlite.Open(cfg.Storage.SQLitePath)
		if err != nil {
			return err
		}
		_ = db.Close()
		fmt.Printf("SQLite schema ready at %s\n", cfg.Storage.SQLitePath)
		return nil
	default:
		fmt.Fprintf(os.Stderr, "storage backend %q has no schema\n", cfg.Storage.Backend)
		return nil
	}

	if len(applied) == 0 {
		fmt.Println("Schema is up to date")
		return nil
	}
	fmt.Printf("Applied migrations: %v\n", applied)
	return nil
}
