package itest

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hemoconecta/donor-portal-api/internal/adapters/httpapi"
	memcampaignrepo "github.com/hemoconecta/donor-portal-api/internal/adapters/memory/campaignrepo"
	memclock "github.com/hemoconecta/donor-portal-api/internal/adapters/memory/clock"
	memdonorrepo "github.com/hemoconecta/donor-portal-api/internal/adapters/memory/donorrepo"
	memidempotency "github.com/hemoconecta/donor-portal-api/internal/adapters/memory/idempotency"
	memledger "github.com/hemoconecta/donor-portal-api/internal/adapters/memory/ledger"
	memmailer "github.com/hemoconecta/donor-portal-api/internal/adapters/memory/mailer"
	pgcampaignrepo "github.com/hemoconecta/donor-portal-api/internal/adapters/postgres/campaignrepo"
	pgdonorrepo "github.com/hemoconecta/donor-portal-api/internal/adapters/postgres/donorrepo"
	pgidempotency "github.com/hemoconecta/donor-portal-api/internal/adapters/postgres/idempotency"
	pgledger "github.com/hemoconecta/donor-portal-api/internal/adapters/postgres/ledger"
	postgres_testutil "github.com/hemoconecta/donor-portal-api/internal/adapters/postgres/testutil"
	"github.com/hemoconecta/donor-portal-api/internal/adapters/sqlite"
	sqlitecampaignrepo "github.com/hemoconecta/donor-portal-api/internal/adapters/sqlite/campaignrepo"
	sqlitedonorrepo "github.com/hemoconecta/donor-portal-api/internal/adapters/sqlite/donorrepo"
	sqliteidempotency "github.com/hemoconecta/donor-portal-api/internal/adapters/sqlite/idempotency"
	sqliteledger "github.com/hemoconecta/donor-portal-api/internal/adapters/sqlite/ledger"
	"github.com/hemoconecta/donor-portal-api/internal/app/broadcast"
	"github.com/hemoconecta/donor-portal-api/internal/app/campaigns"
	"github.com/hemoconecta/donor-portal-api/internal/app/donors"
	"github.com/hemoconecta/donor-portal-api/internal/app/participation"
	"github.com/hemoconecta/donor-portal-api/internal/app/segmentation"
	"github.com/hemoconecta/donor-portal-api/internal/platform/metrics"
	campaignrepoport "github.com/hemoconecta/donor-portal-api/internal/ports/out/campaignrepo"
	donorrepoport "github.com/hemoconecta/donor-portal-api/internal/ports/out/donorrepo"
	idempotencyport "github.com/hemoconecta/donor-portal-api/internal/ports/out/idempotency"
	ledgerport "github.com/hemoconecta/donor-portal-api/internal/ports/out/ledger"
)

type backend string

const (
	backendMemory   backend = "memory"
	backendPostgres backend = "postgres"
	backendSQLite   backend = "sqlite"
)

func backendsFromEnv(t *testing.T) []backend {
	t.Helper()
	switch strings.ToLower(strings.TrimSpace(os.Getenv("ITEST_BACKEND"))) {
	case "", "memory":
		return []backend{backendMemory}
	case "postgres":
		return []backend{backendPostgres}
	case "sqlite":
		return []backend{backendSQLite}
	case "all":
		return []backend{backendMemory, backendSQLite, backendPostgres}
	default:
		t.Fatalf("unknown ITEST_BACKEND value (expected memory|sqlite|postgres|all)")
		return nil
	}
}

type testServer struct {
	baseURL string
	client  *http.Client
	outbox  *memmailer.Outbox
}

func newTestServer(t *testing.T, b backend) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clk := memclock.NewManualClock(time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC))

	var (
		donorRepo    donorrepoport.Repository
		campaignRepo campaignrepoport.Repository
		l            ledgerport.Ledger
		idemStore    idempotencyport.Store
	)

	switch b {
	case backendPostgres:
		pool := postgres_testutil.OpenMigratedPool(t)
		donorRepo = pgdonorrepo.NewRepo(pool)
		campaignRepo = pgcampaignrepo.NewRepo(pool)
		l = pgledger.NewLedger(pool)
		idemStore = pgidempotency.NewStore(pool, time.Hour, clk)
	case backendSQLite:
		db, err := sqlite.Open(filepath.Join(t.TempDir(), "portal.db"))
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		t.Cleanup(func() { _ = db.Close() })
		donorRepo = sqlitedonorrepo.NewRepo(db)
		campaignRepo = sqlitecampaignrepo.NewRepo(db)
		l = sqliteledger.NewLedger(db)
		idemStore = sqliteidempotency.NewStore(db, time.Hour, clk)
	case backendMemory:
		mdonors := memdonorrepo.NewRepo()
		mcampaigns := memcampaignrepo.NewRepo()
		donorRepo, campaignRepo = mdonors, mcampaigns
		l = memledger.NewLedger(mdonors, mcampaigns)
		idemStore = memidempotency.NewStore(time.Hour, clk)
	default:
		t.Fatalf("unknown backend: %s", b)
	}

	outbox := memmailer.NewOutbox(nil)
	m := metrics.New()
	api := httpapi.NewServer(httpapi.Services{
		Donors:        donors.NewService(donorRepo, l, clk),
		Campaigns:     campaigns.NewService(campaignRepo, nil, clk, logger),
		Participation: participation.NewService(l, clk, nil, m, logger),
		Broadcast: broadcast.NewService(
			segmentation.NewEngine(donorRepo, clk),
			broadcast.NewDispatcher(outbox, broadcast.WithLogger(logger), broadcast.WithMetrics(m)),
			outbox,
			broadcast.Config{From: "no-reply@hemo.test", DefaultSubject: "Hemocentro"},
		),
	}, idemStore, clk, logger)

	// Empty default subject: admin requests MUST send X-Debug-Subject.
	handler := httpapi.NewRouter(api, httpapi.RouterOptions{
		AuthMiddleware: httpapi.NewDevAuthMiddleware(""),
		Metrics:        m,
		Logger:         logger,
	})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &testServer{
		baseURL: srv.URL,
		client:  srv.Client(),
		outbox:  outbox,
	}
}

func (s *testServer) url(path string) string {
	if strings.HasPrefix(path, "/") {
		return s.baseURL + path
	}
	return s.baseURL + "/" + path
}

func (s *testServer) doJSON(t *testing.T, method string, path string, subject string, body any, headers ...string) (int, []byte, http.Header) {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.url(path), r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if subject != "" {
		req.Header.Set(httpapi.SubjectHeader, subject)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out, resp.Header
}

type errorResponse struct {
	Error struct {
		Code      string         `json:"code"`
		Message   string         `json:"message"`
		Details   map[string]any `json:"details"`
		RequestID string         `json:"requestId"`
	} `json:"error"`
}

func mustUnmarshal[T any](t *testing.T, b []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v\nbody=%s", err, string(b))
	}
	return out
}

func requireStatus(t *testing.T, status int, body []byte, want int) {
	t.Helper()
	if status != want {
		t.Fatalf("status=%d want=%d body=%s", status, want, string(body))
	}
}

func requireErrorCode(t *testing.T, status int, body []byte, wantStatus int, wantCode string) errorResponse {
	t.Helper()
	requireStatus(t, status, body, wantStatus)
	got := mustUnmarshal[errorResponse](t, body)
	if got.Error.Code != wantCode {
		t.Fatalf("error.code=%q want=%q body=%s", got.Error.Code, wantCode, string(body))
	}
	return got
}

func requireHeader(t *testing.T, h http.Header, key string, want string) {
	t.Helper()
	if got := strings.TrimSpace(h.Get(key)); got != want {
		t.Fatalf("header %q=%q want=%q", key, got, want)
	}
}
