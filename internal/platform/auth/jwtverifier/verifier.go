// Package jwtverifier authenticates bearer tokens against a rotating JWKS endpoint.
package jwtverifier

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"

	platformclock "github.com/hemoconecta/donor-portal-api/internal/platform/clock"
	"github.com/hemoconecta/donor-portal-api/internal/platform/config"
	clockport "github.com/hemoconecta/donor-portal-api/internal/ports/out/clock"
)

var ErrUnauthorized = errors.New("unauthorized")

type Verifier struct {
	cfg    config.JWTConfig
	client *http.Client
	clk    clockport.Clock

	mu          sync.Mutex
	keysByKID   map[string]*rsa.PublicKey
	lastRefresh time.Time
	refreshing  bool
	refreshDone chan struct{}
}

func New(cfg config.JWTConfig) *Verifier {
	return NewWithOptions(cfg, nil, nil)
}

func NewWithOptions(cfg config.JWTConfig, httpClient *http.Client, clk clockport.Clock) *Verifier {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	if clk == nil {
		clk = platformclock.NewSystemClock()
	}
	return &Verifier{
		cfg:       cfg,
		client:    httpClient,
		clk:       clk,
		keysByKID: map[string]*rsa.PublicKey{},
	}
}

// Verify checks an RS256 token and returns its `sub` claim.
//
// iss and aud must match the configuration; exp is required and nbf is honoured
// when present, both with ClockSkew leeway.
func (v *Verifier) Verify(ctx context.Context, token string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		if err := v.maybeRefresh(ctx, kid); err != nil {
			return nil, err
		}
		if pub := v.getKey(kid); pub != nil {
			return pub, nil
		}
		return nil, fmt.Errorf("unknown kid %q", kid)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(v.cfg.Issuer),
		jwt.WithAudience(v.cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.cfg.ClockSkew),
		jwt.WithTimeFunc(v.clk.Now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing sub", ErrUnauthorized)
	}
	return claims.Subject, nil
}

func (v *Verifier) getKey(kid string) *rsa.PublicKey {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.keysByKID[kid]
}

// maybeRefresh refetches the key set when the refresh interval has elapsed, or
// when kid is unknown and the last fetch is older than JWKSMinRefreshInterval.
func (v *Verifier) maybeRefresh(ctx context.Context, kid string) error {
	now := v.clk.Now()

	v.mu.Lock()
	stale := !v.lastRefresh.IsZero() && v.cfg.JWKSRefreshInterval > 0 && now.Sub(v.lastRefresh) >= v.cfg.JWKSRefreshInterval
	unknown := v.keysByKID[kid] == nil
	mayFetchUnknown := v.lastRefresh.IsZero() || v.cfg.JWKSMinRefreshInterval <= 0 || now.Sub(v.lastRefresh) >= v.cfg.JWKSMinRefreshInterval
	if !stale && !(unknown && mayFetchUnknown) {
		v.mu.Unlock()
		return nil
	}

	// One fetch at a time; concurrent callers wait for it.
	if v.refreshing {
		ch := v.refreshDone
		v.mu.Unlock()
		select {
		case <-ch:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	v.refreshing = true
	v.refreshDone = make(chan struct{})
	ch := v.refreshDone
	v.mu.Unlock()

	err := v.refresh(ctx)

	v.mu.Lock()
	v.refreshing = false
	close(ch)
	v.mu.Unlock()

	return err
}

func (v *Verifier) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.cfg.JWKSURL, nil)
	if err != nil {
		return err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("jwks fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("jwks fetch failed: status=%d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	keys, err := parseJWKS(body)
	if err != nil {
		return err
	}

	v.mu.Lock()
	v.keysByKID = keys
	v.lastRefresh = v.clk.Now()
	v.mu.Unlock()
	return nil
}

// parseJWKS keeps the RSA signing keys of a key set, indexed by kid.
func parseJWKS(b []byte) (map[string]*rsa.PublicKey, error) {
	var set jose.JSONWebKeySet
	if err := json.Unmarshal(b, &set); err != nil {
		return nil, fmt.Errorf("parse jwks: %w", err)
	}
	out := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if k.KeyID == "" || (k.Use != "" && k.Use != "sig") {
			continue
		}
		if pub, ok := k.Key.(*rsa.PublicKey); ok {
			out[k.KeyID] = pub
		}
	}
	if len(out) == 0 {
		return nil, errors.New("no usable jwks keys")
	}
	return out, nil
}
