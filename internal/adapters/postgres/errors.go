package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	UniqueViolationCode     = "23505"
	ForeignKeyViolationCode = "23503"
	CheckViolationCode      = "23514"
)

// AsPgError unwraps err to the server-reported error, if any.
func AsPgError(err error) (*pgconn.PgError, bool) {
	var pe *pgconn.PgError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
