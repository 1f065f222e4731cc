package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies every embedded migration at most once, in file-name order,
// and returns the names applied by this call.
func Migrate(db *sql.DB) ([]string, error) {
	if db == nil {
		return nil, fmt.Errorf("sql db is required")
	}
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name       TEXT PRIMARY KEY,
			applied_at INTEGER NOT NULL
		)
	`); err != nil {
		return nil, fmt.Errorf("ensure migration table: %w", err)
	}

	names, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	applied := make([]string, 0)
	for _, name := range names {
		key := strings.TrimPrefix(name, "migrations/")

		var n int
		if err := db.QueryRowContext(ctx, `SELECT count(*) FROM schema_migrations WHERE name = ?`, key).Scan(&n); err != nil {
			return applied, fmt.Errorf("check migration %s: %w", key, err)
		}
		if n > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile(name)
		if err != nil {
			return applied, fmt.Errorf("read migration %s: %w", key, err)
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return applied, fmt.Errorf("begin migration transaction %s: %w", key, err)
		}
		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			_ = tx.Rollback()
			return applied, fmt.Errorf("exec migration %s: %w", key, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (name, applied_at) VALUES (?, ?)`,
			key, time.Now().UTC().UnixMilli(),
		); err != nil {
			_ = tx.Rollback()
			return applied, fmt.Errorf("record migration %s: %w", key, err)
		}
		if err := tx.Commit(); err != nil {
			return applied, fmt.Errorf("commit migration %s: %w", key, err)
		}
		applied = append(applied, key)
	}
	return applied, nil
}
