package idempotency

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hemoconecta/donor-portal-api/internal/adapters/contracttest"
	memclock "github.com/hemoconecta/donor-portal-api/internal/adapters/memory/clock"
	sqlite "github.com/hemoconecta/donor-portal-api/internal/adapters/sqlite"
	clockport "github.com/hemoconecta/donor-portal-api/internal/ports/out/clock"
	idempotencyport "github.com/hemoconecta/donor-portal-api/internal/ports/out/idempotency"
)

func openStore(t *testing.T, ttl time.Duration, clk clockport.Clock) *Store {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "idem.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db, ttl, clk)
}

func TestContract_SQLiteIdempotencyStore(t *testing.T) {
	contracttest.RunIdempotencyStore(t, func(t *testing.T) (idempotencyport.Store, func()) {
		t.Helper()
		return openStore(t, 24*time.Hour, nil), nil
	})
}

func TestExpiredRecordsReadAsMissingAndPurge(t *testing.T) {
	ctx := context.Background()
	clk := memclock.NewManualClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	s := openStore(t, time.Hour, clk)

	fp := idempotencyport.Fingerprint{Key: "k", Subject: "admin", Method: "POST", Route: "/admin/broadcasts"}
	require.NoError(t, s.Put(ctx, fp, idempotencyport.Record{StatusCode: 200, ContentType: "application/json", Body: []byte(`{}`)}))

	_, ok, err := s.Get(ctx, fp)
	require.NoError(t, err)
	assert.True(t, ok)

	clk.Advance(2 * time.Hour)
	_, ok, err = s.Get(ctx, fp)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := s.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRecordsStampedByPinnedClockStayFresh(t *testing.T) {
	ctx := context.Background()
	clk := memclock.NewManualClock(time.Date(2019, 5, 1, 0, 0, 0, 0, time.UTC))
	s := openStore(t, time.Hour, clk)

	fp := idempotencyport.Fingerprint{Key: "k", Subject: "admin", Method: "POST", Route: "/admin/emails", BodyHash: "h"}
	require.NoError(t, s.Put(ctx, fp, idempotencyport.Record{StatusCode: 200, ContentType: "application/json", Body: []byte(`{}`), CreatedAt: clk.Now()}))

	_, ok, err := s.Get(ctx, fp)
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := s.Purge(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
