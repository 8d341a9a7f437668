package keyword

import (
	"regexp"
	"strings"
)

// leetspeak-equivalent character classes: each letter of a word may appear as
// any of its visual substitutes, with arbitrary non-word filler between
// letters, so "b@d w0rd" still matches "badword".
var leetClasses = map[rune]string{
	'a': `[a@4]`,
	'b': `[b8]`,
	'c': `[c(]`,
	'e': `[e3]`,
	'g': `[g9]`,
	'i': `[i1!]`,
	'l': `[l1|]`,
	'o': `[o0]`,
	's': `[s$5]`,
	't': `[t7]`,
	'z': `[z2]`,
	'0': `[o0]`,
	'1': `[i1l]`,
	'3': `[e3]`,
	'4': `[a4]`,
	'5': `[s5]`,
	'7': `[t7]`,
	'8': `[b8]`,
	'9': `[g9]`,
}

// ObfuscationPattern converts a word to a regex pattern matching common
// character-substitution obfuscations of it.
func ObfuscationPattern(word string) string {
	var parts []string
	for _, r := range strings.ToLower(word) {
		if cls, ok := leetClasses[r]; ok {
			parts = append(parts, cls)
		} else {
			parts = append(parts, regexp.QuoteMeta(string(r)))
		}
	}
	return `(?i)\b` + strings.Join(parts, `\W*`) + `\b`
}

// CompileObfuscated compiles the obfuscation pattern for a word. Errors only
// on words whose quoted runes produce an invalid expression, which in practice
// means never; the error return keeps list loading honest about bad input.
func CompileObfuscated(word string) (*regexp.Regexp, error) {
	return regexp.Compile(ObfuscationPattern(word))
}
