// Stateless rule evaluators. Each detector maps one message plus a
// caller-supplied history snapshot to zero or more violations. Detectors do no
// I/O and keep no per-call state, so the engine runs them in parallel for a
// single message.
package detector

import (
	"strings"

	"github.com/nomi-labs/guardian/moderation"
)

type Detector interface {
	Name() string
	Detect(msg moderation.Message, dctx moderation.DetectionContext) []moderation.Violation
}

func dedupeStrings(in []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, v := range in {
		if !seen[v] {
			out = append(out, v)
			seen[v] = true
		}
	}
	return out
}

func blankText(text string) bool {
	return strings.TrimSpace(text) == ""
}
