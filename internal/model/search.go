package model

import (
	"fmt"
	"slices"
	"strings"
)

// SearchMode selects how deep each website is searched.
type SearchMode string

const (
	// SearchModeQuick searches a bounded number of result pages per category.
	SearchModeQuick SearchMode = "quick"

	// SearchModeFull searches until a site runs out of results.
	SearchModeFull SearchMode = "full"
)

// String returns the mode name.
func (m SearchMode) String() string { return string(m) }

// Valid reports whether m is a known search mode.
func (m SearchMode) Valid() bool {
	return m == SearchModeQuick || m == SearchModeFull
}

// ParseSearchMode converts user input into a SearchMode.
func ParseSearchMode(s string) (SearchMode, error) {
	m := SearchMode(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("unknown search mode %q: expected quick or full", s)
	}
	return m, nil
}

// MatchMode selects which match types a session keeps.
type MatchMode string

const (
	// MatchModeExact keeps only listings naming the exact street and house number.
	MatchModeExact MatchMode = "exact"

	// MatchModeExtended keeps listings on the right street in the right area,
	// reporting every hit as an extended match.
	MatchModeExtended MatchMode = "extended"

	// MatchModeBoth keeps exact and extended matches, preferring exact.
	MatchModeBoth MatchMode = "both"
)

// String returns the mode name.
func (m MatchMode) String() string { return string(m) }

// Valid reports whether m is a known match mode.
func (m MatchMode) Valid() bool {
	switch m {
	case MatchModeExact, MatchModeExtended, MatchModeBoth:
		return true
	default:
		return false
	}
}

// ParseMatchMode converts user input into a MatchMode.
func ParseMatchMode(s string) (MatchMode, error) {
	m := MatchMode(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("unknown match mode %q: expected exact, extended or both", s)
	}
	return m, nil
}

// SearchConfig holds the parameters of one search session.
// A session copies it at start; later changes by the caller have no effect.
type SearchConfig struct {
	Mode      SearchMode `json:"mode"`
	MatchMode MatchMode  `json:"match_mode"`

	// Websites lists the site ids to search. It must not be empty.
	Websites []string `json:"websites"`
}

// Clone returns a deep copy of c.
func (c SearchConfig) Clone() SearchConfig {
	c.Websites = slices.Clone(c.Websites)
	return c
}
