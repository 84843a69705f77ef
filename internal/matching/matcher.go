package matching

import (
	"strconv"
	"strings"
)

// Candidate is anything with a display name that can be matched against a query
type Candidate interface {
	DisplayName() string
}

// MatchTier says which rule selected a candidate
type MatchTier int

const (
	TierNone MatchTier = iota
	TierExact
	TierPrefix
	TierSubstring
)

func (t MatchTier) String() string {
	switch t {
	case TierExact:
		return "exact"
	case TierPrefix:
		return "prefix"
	case TierSubstring:
		return "substring"
	default:
		return "none"
	}
}

// MatchBest finds the candidate whose normalized name best fits the query.
//
// Tiers are tried in order: exact, prefix, substring. The first tier with a hit
// wins and, inside a tier, the first candidate in input order wins. There is no
// scoring, so "Fiat" never loses to "Fiat Professional" when both exist.
func MatchBest[T Candidate](candidates []T, query string) (T, bool) {
	best, _, ok := MatchBestTier(candidates, query)
	return best, ok
}

// MatchBestTier is MatchBest that also reports the tier used
func MatchBestTier[T Candidate](candidates []T, query string) (T, MatchTier, bool) {
	var zero T

	q := Normalize(query)
	if q == "" || len(candidates) == 0 {
		return zero, TierNone, false
	}

	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = Normalize(c.DisplayName())
	}

	// 1) exact
	for i, name := range names {
		if name == q {
			return candidates[i], TierExact, true
		}
	}

	// 2) prefix
	for i, name := range names {
		if strings.HasPrefix(name, q) {
			return candidates[i], TierPrefix, true
		}
	}

	// 3) substring
	for i, name := range names {
		if strings.Contains(name, q) {
			return candidates[i], TierSubstring, true
		}
	}

	return zero, TierNone, false
}

// MatchYear picks the first candidate whose label starts with the 4-digit year.
// Years are never approximated: "2020 Gasolina" matches 2020, "2021 Flex" does not.
func MatchYear[T Candidate](candidates []T, year int) (T, bool) {
	var zero T

	prefix := strconv.Itoa(year)
	for _, c := range candidates {
		if strings.HasPrefix(Normalize(c.DisplayName()), prefix) {
			return c, true
		}
	}

	return zero, false
}

// ValidYear reports whether year is inside the accepted catalog window
func ValidYear(year int) bool {
	return year >= MinYear && year <= MaxYear
}

const (
	MinYear = 1900
	MaxYear = 2100
)
