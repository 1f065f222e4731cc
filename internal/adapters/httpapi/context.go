package httpapi

import (
	"context"

	"github.com/hemoconecta/donor-portal-api/internal/domain"
)

type subjectKey struct{}

func WithSubject(ctx context.Context, subject domain.SubjectID) context.Context {
	return context.WithValue(ctx, subjectKey{}, subject)
}

// SubjectFromContext returns the admin subject set by the auth middleware.
func SubjectFromContext(ctx context.Context) (domain.SubjectID, bool) {
	v, ok := ctx.Value(subjectKey{}).(domain.SubjectID)
	return v, ok && v != ""
}
