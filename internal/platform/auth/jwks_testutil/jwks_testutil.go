// Package jwks_testutil serves throwaway key sets and mints tokens for auth tests.
package jwks_testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
)

type Keypair struct {
	Kid     string
	Private *rsa.PrivateKey
}

func GenerateRSAKeypair(kid string) (Keypair, error) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return Keypair{}, err
	}
	return Keypair{Kid: kid, Private: priv}, nil
}

// NewRotatingJWKSServer returns a JWKS server whose key set can be swapped at runtime,
// and a counter of how many times it was fetched.
func NewRotatingJWKSServer() (srv *httptest.Server, setKeys func([]Keypair), hits *atomic.Int64) {
	var body atomic.Value
	body.Store([]byte(`{"keys":[]}`))
	hits = new(atomic.Int64)

	setKeys = func(keys []Keypair) {
		set := jose.JSONWebKeySet{Keys: make([]jose.JSONWebKey, 0, len(keys))}
		for _, kp := range keys {
			set.Keys = append(set.Keys, jose.JSONWebKey{
				Key:       &kp.Private.PublicKey,
				KeyID:     kp.Kid,
				Algorithm: string(jose.RS256),
				Use:       "sig",
			})
		}
		b, err := json.Marshal(set)
		if err != nil {
			panic(err)
		}
		body.Store(b)
	}

	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body.Load().([]byte))
	}))
	return srv, setKeys, hits
}

// MintRS256JWT signs a token for sub that expires expDelta after now. nbfDelta,
// when set, places nbf relative to now.
func MintRS256JWT(kp Keypair, iss, aud, sub string, now time.Time, expDelta time.Duration, nbfDelta *time.Duration) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    iss,
		Subject:   sub,
		Audience:  jwt.ClaimStrings{aud},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(expDelta)),
	}
	if nbfDelta != nil {
		claims.NotBefore = jwt.NewNumericDate(now.Add(*nbfDelta))
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kp.Kid
	return tok.SignedString(kp.Private)
}
