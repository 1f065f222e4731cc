// Package sqlite holds the shared SQLite plumbing for the embedded storage backend:
// opening the database, schema migrations and error classification.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Open opens (creating if needed) the database at path and applies embedded migrations.
//
// The handle is limited to one connection, which makes every transaction exclusive.
func Open(path string) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := filepath.Clean(path) +
		"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

// UniqueViolation reports whether err is a UNIQUE or PRIMARY KEY constraint failure
// and returns the lowercased driver message, which names the violated column or index.
func UniqueViolation(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return strings.ToLower(sqliteErr.Error()), true
		}
	}
	msg := strings.ToLower(err.Error())
	return msg, strings.Contains(msg, "unique constraint failed")
}

// ForeignKeyViolation reports whether err is a FOREIGN KEY constraint failure.
func ForeignKeyViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY
	}
	return false
}

// ToMillis and FromMillis convert between time.Time and the INTEGER columns used for timestamps.
func ToMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
