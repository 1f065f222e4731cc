package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/hemoconecta/donor-portal-api/internal/domain"
)

// TokenVerifier resolves a bearer token to the subject it was issued for.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// NewAuthMiddleware enforces Authorization: Bearer <JWT> and stores the token's
// subject in request context.
func NewAuthMiddleware(v TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := r.Header.Get("Authorization")
			if authz == "" {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing Authorization header", nil)
				return
			}
			const prefix = "Bearer "
			if len(authz) < len(prefix) || !strings.EqualFold(authz[:len(prefix)], prefix) {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "malformed Authorization header", nil)
				return
			}
			raw := strings.TrimSpace(authz[len(prefix):])
			if raw == "" {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token", nil)
				return
			}

			sub, err := v.Verify(r.Context(), raw)
			if err != nil {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token", nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), domain.SubjectID(sub))))
		})
	}
}

func denyAll(http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "authentication is not configured", nil)
	})
}

// SubjectHeader carries the caller identity in dev auth mode.
const SubjectHeader = "X-Debug-Subject"

// NewDevAuthMiddleware is a local/dev-only auth shim.
//
// It accepts an explicit subject via X-Debug-Subject and stores it in request context.
// If the header is absent, it falls back to defaultSubject (if provided).
// Do NOT use this in production deployments.
func NewDevAuthMiddleware(defaultSubject string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sub := strings.TrimSpace(r.Header.Get(SubjectHeader))
			if sub == "" {
				sub = strings.TrimSpace(defaultSubject)
			}
			if sub == "" {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing subject (set X-Debug-Subject)", nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), domain.SubjectID(sub))))
		})
	}
}

// RequireAdmin limits a route group to the listed subjects. An empty list admits any
// authenticated subject.
func RequireAdmin(subjects []string) func(http.Handler) http.Handler {
	allowed := make(map[domain.SubjectID]struct{}, len(subjects))
	for _, s := range subjects {
		if s = strings.TrimSpace(s); s != "" {
			allowed[domain.SubjectID(s)] = struct{}{}
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sub, ok := SubjectFromContext(r.Context())
			if !ok {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing subject", nil)
				return
			}
			if len(allowed) > 0 {
				if _, ok := allowed[sub]; !ok {
					writeError(w, r, http.StatusForbidden, "FORBIDDEN", "subject is not an administrator", nil)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
