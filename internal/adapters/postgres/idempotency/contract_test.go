package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/hemoconecta/donor-portal-api/internal/adapters/contracttest"
	memclock "github.com/hemoconecta/donor-portal-api/internal/adapters/memory/clock"
	"github.com/hemoconecta/donor-portal-api/internal/adapters/postgres/testutil"
	idempotencyport "github.com/hemoconecta/donor-portal-api/internal/ports/out/idempotency"
)

func TestContract_PostgresIdempotencyStore(t *testing.T) {
	pool := testutil.OpenMigratedPool(t)

	contracttest.RunIdempotencyStore(t, func(t *testing.T) (idempotencyport.Store, func()) {
		t.Helper()
		return NewStore(pool, 24*time.Hour, nil), nil
	})
}

func TestPostgresIdempotencyStore_ExpiryUsesInjectedClock(t *testing.T) {
	pool := testutil.OpenMigratedPool(t)
	ctx := context.Background()
	clk := memclock.NewManualClock(time.Date(2019, 5, 1, 0, 0, 0, 0, time.UTC))
	s := NewStore(pool, time.Hour, clk)

	fp := idempotencyport.Fingerprint{Key: idempotencyport.Key("pinned-" + t.Name()), Subject: "admin", Method: "POST", Route: "/admin/emails", BodyHash: "h"}
	if err := s.Put(ctx, fp, idempotencyport.Record{StatusCode: 200, ContentType: "application/json", Body: []byte(`{}`), CreatedAt: clk.Now()}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, ok, err := s.Get(ctx, fp); err != nil || !ok {
		t.Fatalf("Get() ok=%v err=%v, want hit", ok, err)
	}

	clk.Advance(2 * time.Hour)
	if _, ok, err := s.Get(ctx, fp); err != nil || ok {
		t.Fatalf("Get() after ttl ok=%v err=%v, want miss", ok, err)
	}
}
