package keyword

import (
	"regexp"
	"slices"
	"strings"
)

var nonSlugChars = regexp.MustCompile(`[^\pL\pN]+`)

// Helper to check a single token against a list of tokens
func TokenInSet(tok string, set []string) bool {
	return slices.Contains(set, tok)
}

// Takes an arbitrary string (eg, a message fragment or free-form text) and
// returns a version with all non-letter, non-digit characters removed, and all
// lower-case
func Slugify(orig string) string {
	return strings.ToLower(nonSlugChars.ReplaceAllString(orig, ""))
}
