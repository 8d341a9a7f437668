package keyword

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonTokenChars = regexp.MustCompile(`[^\pL\pN\s]+`)

// Splits free-form message text in to tokens, including lower-case, unicode
// normalization, and some unicode folding.
//
// The intent is for this to work similarly to an NLP tokenizer and enable fast
// matching against configured word lists, independent of accents and
// combining marks.
func TokenizeText(text string) []string {
	// the transform chain must be re-built per call to stay goroutine-safe
	normFunc := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	bare := strings.ToLower(nonTokenChars.ReplaceAllString(text, " "))
	out, _, err := transform.String(normFunc, bare)
	if err != nil {
		slog.Warn("unicode normalization error", "err", err)
		out = bare
	}
	return strings.Fields(out)
}
