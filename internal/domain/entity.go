package domain

import "strings"

// Counterparty is a deduplicated lookup entity keyed by case-insensitive name.
// Corresponds to counterparties table.
type Counterparty struct {
	ID         int64
	Name       string
	LEI        *string // legal entity identifier, optional
	EntityType *string
}

// ReferenceSecurity is a deduplicated lookup entity keyed by
// case-insensitive identifier. Corresponds to reference_securities table.
type ReferenceSecurity struct {
	ID           int64
	Identifier   string
	SecurityType *string
	Description  *string
}

// NormalizeName returns the lookup key used for case-insensitive uniqueness.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
