package idempotency

import (
	"context"
	"sync"
	"time"

	platformclock "github.com/hemoconecta/donor-portal-api/internal/platform/clock"
	clockport "github.com/hemoconecta/donor-portal-api/internal/ports/out/clock"
	"github.com/hemoconecta/donor-portal-api/internal/ports/out/idempotency"
)

// Store is an in-memory implementation of idempotency.Store.
// Records older than the retention window are reported as missing and dropped.
// It is safe for concurrent use.
type Store struct {
	mu  sync.Mutex
	m   map[idempotency.Fingerprint]idempotency.Record
	ttl time.Duration
	clk clockport.Clock
}

// NewStore keeps records for ttl; ttl <= 0 keeps them for the life of the process.
// Age is measured with clk, the same clock that stamps Record.CreatedAt. Nil means system time.
func NewStore(ttl time.Duration, clk clockport.Clock) *Store {
	if clk == nil {
		clk = platformclock.NewSystemClock()
	}
	return &Store{
		m:   make(map[idempotency.Fingerprint]idempotency.Record),
		ttl: ttl,
		clk: clk,
	}
}

func (s *Store) Get(ctx context.Context, fp idempotency.Fingerprint) (idempotency.Record, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.m[fp]
	if !ok {
		return idempotency.Record{}, false, nil
	}
	if s.expired(rec) {
		delete(s.m, fp)
		return idempotency.Record{}, false, nil
	}
	return rec, true, nil
}

func (s *Store) Put(ctx context.Context, fp idempotency.Fingerprint, rec idempotency.Record) error {
	_ = ctx
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.clk.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[fp] = rec
	return nil
}

func (s *Store) expired(rec idempotency.Record) bool {
	return s.ttl > 0 && s.clk.Now().Sub(rec.CreatedAt) > s.ttl
}

// Purge drops expired records. Get already hides them; Purge only bounds memory.
func (s *Store) Purge(ctx context.Context) (int64, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for fp, rec := range s.m {
		if s.expired(rec) {
			delete(s.m, fp)
			n++
		}
	}
	return n, nil
}
