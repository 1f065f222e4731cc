package domain

import "strings"

// NormalizeHumanName trims leading/trailing whitespace and collapses internal whitespace runs.
// It is used for donor and campaign name normalization.
func NormalizeHumanName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeEmail trims whitespace. Case is preserved; comparisons use strings.EqualFold.
func NormalizeEmail(s string) string {
	return strings.TrimSpace(s)
}
