package httpapi

import (
	"net/http"
	"testing"
	"time"

	memclock "github.com/hemoconecta/donor-portal-api/internal/adapters/memory/clock"
	"github.com/hemoconecta/donor-portal-api/internal/platform/auth/jwks_testutil"
	"github.com/hemoconecta/donor-portal-api/internal/platform/auth/jwtverifier"
	"github.com/hemoconecta/donor-portal-api/internal/platform/config"
)

func newJWTTestAPI(t *testing.T) (testAPI, func(sub string) string) {
	t.Helper()

	srv, setKeys, _ := jwks_testutil.NewRotatingJWKSServer()
	t.Cleanup(srv.Close)

	kp, err := jwks_testutil.GenerateRSAKeypair("kid-1")
	if err != nil {
		t.Fatalf("GenerateRSAKeypair: %v", err)
	}
	setKeys([]jwks_testutil.Keypair{kp})

	cfg := config.JWTConfig{
		Issuer:              "https://auth.hemo.test/",
		Audience:            "donor-portal",
		JWKSURL:             srv.URL,
		JWKSRefreshInterval: 10 * time.Minute,
		HTTPTimeout:         2 * time.Second,
	}
	clk := memclock.NewManualClock(time.Unix(1700000000, 0).UTC())
	v := jwtverifier.NewWithOptions(cfg, nil, clk)

	mint := func(sub string) string {
		tok, err := jwks_testutil.MintRS256JWT(kp, cfg.Issuer, cfg.Audience, sub, clk.Now(), 5*time.Minute, nil)
		if err != nil {
			t.Fatalf("MintRS256JWT: %v", err)
		}
		return tok
	}
	return newTestAPI(t, RouterOptions{AuthMiddleware: NewAuthMiddleware(v), AdminSubjects: []string{"admin|1"}}), mint
}

func TestAuthMiddleware_Rejections401(t *testing.T) {
	t.Parallel()
	a, _ := newJWTTestAPI(t)
	body := map[string]any{"name": "x", "capacity": 1}

	cases := map[string][]string{
		"missing header": nil,
		"basic scheme":   {"Authorization", "Basic YWRtaW46YWRtaW4="},
		"empty bearer":   {"Authorization", "Bearer   "},
		"invalid token":  {"Authorization", "Bearer not.a.jwt"},
		"debug subject":  {SubjectHeader, "admin|1"},
	}
	for name, headers := range cases {
		rec := a.do(t, http.MethodPost, "/admin/campaigns", "", body, headers...)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: status=%d body=%s, want 401", name, rec.Code, rec.Body.String())
		}
	}
}

func TestAuthMiddleware_ValidTokenReachesAdmin(t *testing.T) {
	t.Parallel()
	a, mint := newJWTTestAPI(t)
	body := map[string]any{"name": "Junho Vermelho", "capacity": 3}

	rec := a.do(t, http.MethodPost, "/admin/campaigns", "", body, "Authorization", "Bearer "+mint("admin|1"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = a.do(t, http.MethodPost, "/admin/campaigns", "", body, "Authorization", "Bearer "+mint("donor|42"))
	requireError(t, rec, http.StatusForbidden, "FORBIDDEN")
}

func TestAuthMiddleware_PublicRoutesNeedNoToken(t *testing.T) {
	t.Parallel()
	a, _ := newJWTTestAPI(t)

	rec := a.do(t, http.MethodGet, "/campaigns", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestRouter_NoAuthMiddlewareDeniesAdmin(t *testing.T) {
	t.Parallel()
	h := NewRouter(&Server{}, RouterOptions{})

	a := testAPI{h: h}
	rec := a.do(t, http.MethodPost, "/admin/campaigns", "admin|1", map[string]any{"name": "x", "capacity": 1})
	requireError(t, rec, http.StatusUnauthorized, "UNAUTHORIZED")
}
