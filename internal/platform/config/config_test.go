package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "portal.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AUTH_MODE", "dev")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.DevSubject != "" {
		t.Fatalf("DevSubject=%q, want empty", cfg.Auth.DevSubject)
	}
	if cfg.HTTP.Port != "8080" || cfg.Storage.Backend != "memory" || cfg.Mail.Backend != "log" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Storage.IdempotencyTTL != 24*time.Hour {
		t.Fatalf("IdempotencyTTL=%v, want 24h", cfg.Storage.IdempotencyTTL)
	}
}

func TestLoad_JWTIsTheDefaultAuthMode(t *testing.T) {
	if got := Default().Auth.Mode; got != "jwt" {
		t.Fatalf("Default().Auth.Mode=%q, want jwt", got)
	}

	_, err := Load("")
	if err == nil || !strings.Contains(err.Error(), "JWT_ISSUER") {
		t.Fatalf("err=%v, want missing JWT settings", err)
	}

	t.Setenv("JWT_ISSUER", "https://auth.hemo.test/")
	t.Setenv("JWT_AUDIENCE", "donor-portal")
	t.Setenv("JWT_JWKS_URL", "https://auth.hemo.test/.well-known/jwks.json")
	t.Setenv("JWT_CLOCK_SKEW", "1m")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.JWT.Audience != "donor-portal" || cfg.Auth.JWT.ClockSkew != time.Minute || cfg.Auth.JWT.JWKSRefreshInterval != 5*time.Minute {
		t.Fatalf("JWT=%+v", cfg.Auth.JWT)
	}
}

func TestLoad_RejectsUnknownAuthMode(t *testing.T) {
	t.Setenv("AUTH_MODE", "none")
	_, err := Load("")
	if err == nil || !strings.Contains(err.Error(), "AUTH_MODE") {
		t.Fatalf("err=%v, want AUTH_MODE error", err)
	}
}

func TestLoad_FileThenEnvOverride(t *testing.T) {
	path := writeFile(t, `
http:
  port: "9000"
  cors_allowed_origins: ["https://portal.example.org"]
storage:
  backend: sqlite
  sqlite_path: /var/lib/portal/portal.db
mail:
  backend: smtp
  from: hemocentro@example.org
  smtp:
    host: smtp.example.org
    port: 2525
    tls: none
broadcast:
  rate_per_second: 5
cache:
  campaign_ttl: 30s
auth:
  jwt:
    issuer: https://auth.hemo.test/
    audience: donor-portal
    jwks_url: https://auth.hemo.test/.well-known/jwks.json
`)
	t.Setenv("PORT", "9100")
	t.Setenv("ADMIN_SUBJECTS", " admin-1 , admin-2 ,")
	t.Setenv("SMTP_TLS", "STARTTLS")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Port != "9100" {
		t.Fatalf("Port=%q, want env override 9100", cfg.HTTP.Port)
	}
	if cfg.Storage.Backend != "sqlite" || cfg.Storage.SQLitePath != "/var/lib/portal/portal.db" {
		t.Fatalf("Storage=%+v", cfg.Storage)
	}
	if cfg.Mail.SMTP.Host != "smtp.example.org" || cfg.Mail.SMTP.Port != 2525 || cfg.Mail.SMTP.TLS != "starttls" {
		t.Fatalf("SMTP=%+v", cfg.Mail.SMTP)
	}
	if cfg.Broadcast.RatePerSecond != 5 || cfg.Cache.CampaignTTL != 30*time.Second {
		t.Fatalf("Broadcast=%+v Cache=%+v", cfg.Broadcast, cfg.Cache)
	}
	if strings.Join(cfg.Auth.AdminSubjects, "|") != "admin-1|admin-2" {
		t.Fatalf("AdminSubjects=%q", cfg.Auth.AdminSubjects)
	}
	if len(cfg.HTTP.CORSAllowedOrigins) != 1 {
		t.Fatalf("CORSAllowedOrigins=%q", cfg.HTTP.CORSAllowedOrigins)
	}
}

func TestLoad_ValidationReportsAllProblems(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "postgres")
	t.Setenv("MAIL_BACKEND", "pigeon")
	t.Setenv("BROADCAST_RATE_PER_SECOND", "-1")

	_, err := Load("")
	if err == nil {
		t.Fatalf("expected error")
	}
	for _, want := range []string{"DATABASE_URL", "MAIL_BACKEND", "BROADCAST_RATE_PER_SECOND"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoad_BadEnvValue(t *testing.T) {
	t.Setenv("SMTP_PORT", "twenty-five")
	_, err := Load("")
	if err == nil || !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("err=%v, want parse env error", err)
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := LoggingConfig{Level: "warn", Format: "json"}.NewLogger(&buf)
	logger.Info("dropped")
	logger.Warn("kept", "component", "test")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d log lines, want 1: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if rec["msg"] != "kept" || rec["component"] != "test" {
		t.Fatalf("record=%v", rec)
	}
}
