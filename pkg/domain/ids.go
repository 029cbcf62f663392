// Package domain defines the typed identifiers shared between the evaluator,
// orchestrator, and store adapters.
package domain

import "strings"

// DriverID is the upstream identity reference for a driver account. It is an
// opaque string issued by the identity provider, not a UUID minted here.
type DriverID string

func (d DriverID) String() string {
	return string(d)
}

// IsZero reports whether the id is empty after trimming.
func (d DriverID) IsZero() bool {
	return strings.TrimSpace(string(d)) == ""
}

// PlateNumber is a normalized vehicle plate: uppercase with all whitespace
// stripped. Construct via NormalizePlate so the global uniqueness key is
// canonical everywhere.
type PlateNumber string

func (p PlateNumber) String() string {
	return string(p)
}

func (p PlateNumber) IsZero() bool {
	return p == ""
}

// NormalizePlate uppercases the plate and strips all whitespace, including
// interior runs. "kz 123 abc" and "KZ123ABC" map to the same claim key.
func NormalizePlate(raw string) PlateNumber {
	var b strings.Builder
	for _, r := range strings.ToUpper(raw) {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			continue
		}
		b.WriteRune(r)
	}
	return PlateNumber(b.String())
}
