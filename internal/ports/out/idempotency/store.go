package idempotency

import (
	"context"
	"time"

	"github.com/hemoconecta/donor-portal-api/internal/domain"
)

// Key is the value of the Idempotency-Key request header.
type Key string

// Fingerprint scopes a stored response to one caller, one route and one request body.
//
// A fingerprint with an empty BodyHash is the key's pin record: its Body holds the hash
// of the first payload seen under the key.
type Fingerprint struct {
	Key      Key
	Subject  domain.SubjectID
	Method   string
	Route    string
	BodyHash string
}

// Pin returns the pin fingerprint for fp's key.
func (fp Fingerprint) Pin() Fingerprint {
	fp.BodyHash = ""
	return fp
}

// ForBody returns the response fingerprint for a payload hash.
func (fp Fingerprint) ForBody(hash string) Fingerprint {
	fp.BodyHash = hash
	return fp
}

type Record struct {
	StatusCode  int
	ContentType string
	Body        []byte
	CreatedAt   time.Time
}

// Replayable reports whether the record holds a completed response.
func (r Record) Replayable() bool { return r.StatusCode != 0 }

type Store interface {
	Get(ctx context.Context, fp Fingerprint) (Record, bool, error)
	Put(ctx context.Context, fp Fingerprint, rec Record) error
}

// Purger is implemented by stores that need expired records removed periodically.
type Purger interface {
	Purge(ctx context.Context) (int64, error)
}
