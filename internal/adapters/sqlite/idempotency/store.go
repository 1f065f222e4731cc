// Package idempotency is the SQLite implementation of idempotency.Store.
package idempotency

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqlite "github.com/hemoconecta/donor-portal-api/internal/adapters/sqlite"
	platformclock "github.com/hemoconecta/donor-portal-api/internal/platform/clock"
	clockport "github.com/hemoconecta/donor-portal-api/internal/ports/out/clock"
	"github.com/hemoconecta/donor-portal-api/internal/ports/out/idempotency"
)

// Store keeps idempotency records in SQLite. Records older than ttl read as missing.
type Store struct {
	db  *sql.DB
	ttl time.Duration
	clk clockport.Clock
}

// NewStore keeps records for ttl; ttl <= 0 keeps them indefinitely.
// clk must be the clock that stamps Record.CreatedAt; nil means system time.
func NewStore(db *sql.DB, ttl time.Duration, clk clockport.Clock) *Store {
	if clk == nil {
		clk = platformclock.NewSystemClock()
	}
	return &Store{db: db, ttl: ttl, clk: clk}
}

func (s *Store) Get(ctx context.Context, fp idempotency.Fingerprint) (idempotency.Record, bool, error) {
	if s.db == nil {
		return idempotency.Record{}, false, errors.New("nil sqlite db")
	}
	var (
		rec       idempotency.Record
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT status_code, content_type, body, created_at
		FROM idempotency_keys
		WHERE idempotency_key = ? AND subject = ? AND method = ? AND route = ? AND body_hash = ?
	`, string(fp.Key), string(fp.Subject), fp.Method, fp.Route, fp.BodyHash).
		Scan(&rec.StatusCode, &rec.ContentType, &rec.Body, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return idempotency.Record{}, false, nil
		}
		return idempotency.Record{}, false, fmt.Errorf("get idempotency record: %w", err)
	}
	rec.CreatedAt = sqlite.FromMillis(createdAt)
	if s.ttl > 0 && s.clk.Now().Sub(rec.CreatedAt) > s.ttl {
		return idempotency.Record{}, false, nil
	}
	return rec, true, nil
}

func (s *Store) Put(ctx context.Context, fp idempotency.Fingerprint, rec idempotency.Record) error {
	if s.db == nil {
		return errors.New("nil sqlite db")
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.clk.Now()
	}
	body := rec.Body
	if body == nil {
		body = []byte{}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO idempotency_keys (
			idempotency_key, subject, method, route, body_hash,
			status_code, content_type, body, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (idempotency_key, subject, method, route, body_hash)
		DO UPDATE SET
			status_code = excluded.status_code,
			content_type = excluded.content_type,
			body = excluded.body,
			created_at = excluded.created_at
	`,
		string(fp.Key), string(fp.Subject), fp.Method, fp.Route, fp.BodyHash,
		rec.StatusCode, rec.ContentType, body, sqlite.ToMillis(createdAt),
	)
	if err != nil {
		return fmt.Errorf("put idempotency record: %w", err)
	}
	return nil
}

// Purge deletes records older than the retention window and reports how many were removed.
func (s *Store) Purge(ctx context.Context) (int64, error) {
	if s.db == nil {
		return 0, errors.New("nil sqlite db")
	}
	if s.ttl <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM idempotency_keys WHERE created_at < ?`, sqlite.ToMillis(s.clk.Now().Add(-s.ttl)))
	if err != nil {
		return 0, fmt.Errorf("purge idempotency records: %w", err)
	}
	return res.RowsAffected()
}
