// Package sqlfilter renders donorrepo.Filter values as SQL WHERE clauses for the relational stores.
package sqlfilter

import (
	"fmt"
	"strings"

	"github.com/hemoconecta/donor-portal-api/internal/ports/out/donorrepo"
)

// Dialect captures the placeholder and substring syntax of one SQL engine.
type Dialect struct {
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
	// Contains renders a case-sensitive "column contains parameter" predicate.
	Contains func(column, param string) string
}

var Postgres = Dialect{
	Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	Contains:    func(column, param string) string { return fmt.Sprintf("strpos(%s, %s) > 0", column, param) },
}

var SQLite = Dialect{
	Placeholder: func(int) string { return "?" },
	Contains:    func(column, param string) string { return fmt.Sprintf("instr(%s, %s) > 0", column, param) },
}

// QueryBuilder accumulates WHERE conditions and their bind arguments.
type QueryBuilder struct {
	dialect    Dialect
	conditions []string
	args       []any
}

func NewQueryBuilder(d Dialect) *QueryBuilder {
	return &QueryBuilder{dialect: d}
}

// nextArg returns the next argument placeholder.
func (qb *QueryBuilder) nextArg(value any) string {
	qb.args = append(qb.args, value)
	return qb.dialect.Placeholder(len(qb.args))
}

// Where adds a raw condition whose placeholders are produced by the callback.
func (qb *QueryBuilder) Where(cond string) *QueryBuilder {
	qb.conditions = append(qb.conditions, cond)
	return qb
}

// ApplyDonorFilter adds one condition per constrained field of f.
// Column names are those of the donors table shared by both schemas.
func (qb *QueryBuilder) ApplyDonorFilter(f donorrepo.Filter) *QueryBuilder {
	if f.RequireEmail {
		qb.Where("trim(email) <> ''")
	}
	if len(f.BloodTypes) > 0 {
		phs := make([]string, 0, len(f.BloodTypes))
		for _, bt := range f.BloodTypes {
			phs = append(phs, qb.nextArg(string(bt)))
		}
		qb.Where("blood_type IN (" + strings.Join(phs, ", ") + ")")
	}
	if f.Gender != "" {
		qb.Where("gender = " + qb.nextArg(f.Gender))
	}
	if len(f.AddressContainsAny) > 0 {
		ors := make([]string, 0, len(f.AddressContainsAny))
		for _, loc := range f.AddressContainsAny {
			ors = append(ors, qb.dialect.Contains("address", qb.nextArg(loc)))
		}
		qb.Where("(" + strings.Join(ors, " OR ") + ")")
	}
	if f.Interest != "" {
		qb.Where("interest = " + qb.nextArg(f.Interest))
	}
	if f.FirstTimeOnly {
		qb.Where("first_time = " + qb.nextArg(true))
	}
	if f.Classification != "" {
		qb.Where("classification = " + qb.nextArg(f.Classification))
	}
	if f.ConsentToMessageOnly {
		qb.Where("consent_to_message = " + qb.nextArg(true))
	}
	return qb
}

// Build returns the WHERE clause (empty when unconstrained) and its arguments.
func (qb *QueryBuilder) Build() (string, []any) {
	if len(qb.conditions) == 0 {
		return "", qb.args
	}
	return "WHERE " + strings.Join(qb.conditions, " AND "), qb.args
}
