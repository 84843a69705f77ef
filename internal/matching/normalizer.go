package matching

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// Anything outside [a-z0-9] after accent removal becomes a separator
	nonAlnumRegex = regexp.MustCompile(`[^a-z0-9]+`)
)

// Normalize normalizes a string for comparison
//
// "  Citroën C4-Cactus " and "citroen c4 cactus" both become "citroen c4 cactus".
// The result only contains [a-z0-9] separated by single spaces, so applying
// Normalize again returns the same string.
func Normalize(s string) string {
	// Remove accents
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, _ = transform.String(t, s)

	// Convert to lowercase
	s = strings.ToLower(s)

	// Punctuation and symbols become spaces
	s = nonAlnumRegex.ReplaceAllString(s, " ")

	// Collapse whitespace and trim
	return strings.Join(strings.Fields(s), " ")
}
