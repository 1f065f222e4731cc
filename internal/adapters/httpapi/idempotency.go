package httpapi

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/hemoconecta/donor-portal-api/internal/domain"
	"github.com/hemoconecta/donor-portal-api/internal/ports/out/idempotency"
)

const IdempotencyKeyHeader = "Idempotency-Key"

// idemRequest tracks one keyed request between lookup and completion.
type idemRequest struct {
	fp idempotency.Fingerprint // response fingerprint (BodyHash set)
}

// beginIdempotent looks up a keyed request.
//
// Without a key (or without a store) it returns (nil, true) and the handler runs normally.
// A replayable response is written directly and (nil, false) is returned, as is a
// 409 when the key was already used with a different body.
func (s *Server) beginIdempotent(w http.ResponseWriter, r *http.Request, route string, body []byte) (*idemRequest, bool) {
	key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	if key == "" || s.idem == nil {
		return nil, true
	}
	ctx := r.Context()
	sub, _ := SubjectFromContext(ctx)
	sum := sha256.Sum256(body)
	bodyHash := hex.EncodeToString(sum[:])

	fp := idempotency.Fingerprint{
		Key:     idempotency.Key(key),
		Subject: sub,
		Method:  r.Method,
		Route:   route,
	}
	pin, ok, err := s.idem.Get(ctx, fp.Pin())
	if err != nil {
		writeAppError(w, r, s.logger, err)
		return nil, false
	}
	if ok {
		if string(pin.Body) != bodyHash {
			writeError(w, r, http.StatusConflict, "IDEMPOTENCY_KEY_REUSED", "idempotency key reuse with different payload", nil)
			return nil, false
		}
	} else if err := s.idem.Put(ctx, fp.Pin(), idempotency.Record{
		StatusCode:  0,
		ContentType: "text/plain",
		Body:        []byte(bodyHash),
		CreatedAt:   s.clk.Now(),
	}); err != nil {
		writeAppError(w, r, s.logger, err)
		return nil, false
	}

	respFP := fp.ForBody(bodyHash)
	rec, ok, err := s.idem.Get(ctx, respFP)
	if err != nil {
		writeAppError(w, r, s.logger, err)
		return nil, false
	}
	if ok && rec.Replayable() {
		w.Header().Set("Content-Type", rec.ContentType)
		w.Header().Set("Idempotent-Replayed", "true")
		w.WriteHeader(rec.StatusCode)
		_, _ = w.Write(rec.Body)
		return nil, false
	}
	return &idemRequest{fp: respFP}, true
}

// complete stores a successful JSON response for replay. Failures are logged only.
func (s *Server) complete(ctx context.Context, req *idemRequest, status int, body []byte) {
	if req == nil {
		return
	}
	err := s.idem.Put(ctx, req.fp, idempotency.Record{
		StatusCode:  status,
		ContentType: "application/json",
		Body:        body,
		CreatedAt:   s.clk.Now(),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "idempotency record not stored", "route", req.fp.Route, "err", err)
	}
}

// subjectOrAnonymous is used for log attributes only.
func subjectOrAnonymous(ctx context.Context) domain.SubjectID {
	if sub, ok := SubjectFromContext(ctx); ok {
		return sub
	}
	return "anonymous"
}
