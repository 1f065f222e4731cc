package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	platformclock "github.com/hemoconecta/donor-portal-api/internal/platform/clock"
	clockport "github.com/hemoconecta/donor-portal-api/internal/ports/out/clock"
	"github.com/hemoconecta/donor-portal-api/internal/ports/out/idempotency"
)

// Store is a Postgres implementation of idempotency.Store.
// Records older than the retention window are treated as missing.
type Store struct {
	pool *pgxpool.Pool
	ttl  time.Duration
	clk  clockport.Clock
}

// NewStore keeps records for ttl; ttl <= 0 keeps them indefinitely.
// clk must be the clock that stamps Record.CreatedAt; nil means system time.
func NewStore(pool *pgxpool.Pool, ttl time.Duration, clk clockport.Clock) *Store {
	if clk == nil {
		clk = platformclock.NewSystemClock()
	}
	return &Store{pool: pool, ttl: ttl, clk: clk}
}

func (s *Store) Get(ctx context.Context, fp idempotency.Fingerprint) (idempotency.Record, bool, error) {
	if s.pool == nil {
		return idempotency.Record{}, false, errors.New("nil postgres pool")
	}
	var notBefore time.Time
	if s.ttl > 0 {
		notBefore = s.clk.Now().Add(-s.ttl)
	}
	row := s.pool.QueryRow(ctx, `
		SELECT status_code, content_type, body, created_at
		FROM idempotency_keys
		WHERE idempotency_key = $1
		  AND subject = $2
		  AND method = $3
		  AND route = $4
		  AND body_hash = $5
		  AND created_at >= $6
	`,
		string(fp.Key),
		string(fp.Subject),
		fp.Method,
		fp.Route,
		fp.BodyHash,
		notBefore,
	)
	var rec idempotency.Record
	if err := row.Scan(&rec.StatusCode, &rec.ContentType, &rec.Body, &rec.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return idempotency.Record{}, false, nil
		}
		return idempotency.Record{}, false, err
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, true, nil
}

func (s *Store) Put(ctx context.Context, fp idempotency.Fingerprint, rec idempotency.Record) error {
	if s.pool == nil {
		return errors.New("nil postgres pool")
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.clk.Now()
	}
	body := rec.Body
	if body == nil {
		body = []byte{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO idempotency_keys (
			idempotency_key,
			subject,
			method,
			route,
			body_hash,
			status_code,
			content_type,
			body,
			created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (idempotency_key, subject, method, route, body_hash)
		DO UPDATE SET
			status_code = EXCLUDED.status_code,
			content_type = EXCLUDED.content_type,
			body = EXCLUDED.body,
			created_at = EXCLUDED.created_at
	`,
		string(fp.Key),
		string(fp.Subject),
		fp.Method,
		fp.Route,
		fp.BodyHash,
		rec.StatusCode,
		rec.ContentType,
		body,
		createdAt.UTC(),
	)
	return err
}

// Purge deletes records older than the retention window and reports how many were removed.
func (s *Store) Purge(ctx context.Context) (int64, error) {
	if s.pool == nil {
		return 0, errors.New("nil postgres pool")
	}
	if s.ttl <= 0 {
		return 0, nil
	}
	ct, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, s.clk.Now().Add(-s.ttl))
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}
