package detector

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/nomi-labs/guardian/moderation"
	"github.com/nomi-labs/guardian/moderation/keyword"
)

// Per-category severities, from worst to mildest.
var categorySeverities = map[string]int{
	"offensive": 10,
	"abusive":   9,
	"sexual":    10,
	"racist":    10,
	"spam":      5,
	"scam":      8,
}

const (
	defaultCategory = "offensive"
	defaultSeverity = 5
)

type wordPattern struct {
	word     string
	category string
	re       *regexp.Regexp
}

// ProfanityDetector matches message text against a normalized badword set,
// plus per-word obfuscation patterns so leetspeak variants ("b@d w0rd") still
// match. Matches at the same (word, span) are deduplicated. Category maps to
// severity; scam-category words surface as scam violations so the instant
// rule can fire on them.
type ProfanityDetector struct {
	patterns  []wordPattern
	exact     map[string]string // normalized word -> category
	whitelist map[string]bool
}

func NewProfanityDetector(badwords map[string][]string, whitelist []string) *ProfanityDetector {
	d := &ProfanityDetector{
		exact:     make(map[string]string),
		whitelist: make(map[string]bool, len(whitelist)),
	}
	for _, w := range whitelist {
		d.whitelist[keyword.Slugify(w)] = true
	}
	for category, words := range badwords {
		for _, w := range words {
			slug := keyword.Slugify(w)
			if slug == "" {
				continue
			}
			d.exact[slug] = category
			re, err := keyword.CompileObfuscated(w)
			if err != nil {
				slog.Warn("skipping unbuildable badword pattern", "word", w, "err", err)
				continue
			}
			d.patterns = append(d.patterns, wordPattern{word: slug, category: category, re: re})
		}
	}
	return d
}

func (d *ProfanityDetector) Name() string { return "profanity" }

type profanityMatch struct {
	word     string
	category string
	start    int
	end      int
}

func (d *ProfanityDetector) Detect(msg moderation.Message, dctx moderation.DetectionContext) []moderation.Violation {
	if blankText(msg.Text) {
		return nil
	}

	seen := make(map[string]profanityMatch)
	for _, wp := range d.patterns {
		if d.whitelist[wp.word] {
			continue
		}
		for _, span := range wp.re.FindAllStringIndex(msg.Text, -1) {
			// overlapping matches of the same word at the same span count once
			k := fmt.Sprintf("%s/%d-%d", wp.word, span[0], span[1])
			seen[k] = profanityMatch{word: wp.word, category: wp.category, start: span[0], end: span[1]}
		}
	}

	// exact token matches catch words the obfuscation regex misses after
	// unicode folding
	lower := strings.ToLower(msg.Text)
	for _, tok := range keyword.TokenizeText(msg.Text) {
		category, ok := d.exact[tok]
		if !ok || d.whitelist[tok] {
			continue
		}
		if start := strings.Index(lower, tok); start >= 0 {
			k := fmt.Sprintf("%s/%d-%d", tok, start, start+len(tok))
			if _, dup := seen[k]; !dup {
				seen[k] = profanityMatch{word: tok, category: category, start: start, end: start + len(tok)}
			}
		}
	}

	if len(seen) == 0 {
		return nil
	}

	matches := make([]profanityMatch, 0, len(seen))
	for _, m := range seen {
		matches = append(matches, m)
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].start != matches[j].start {
			return matches[i].start < matches[j].start
		}
		return matches[i].word < matches[j].word
	})

	out := make([]moderation.Violation, 0, len(matches))
	for _, m := range matches {
		severity, ok := categorySeverities[m.category]
		if !ok {
			severity = defaultSeverity
			m.category = defaultCategory
		}
		kind := moderation.KindBadword
		if m.category == "scam" {
			kind = moderation.KindScam
		}
		out = append(out, moderation.Violation{
			Kind:       kind,
			Severity:   severity,
			DetectedAt: msg.ReceivedAt,
			Evidence: map[string]string{
				"rule":     "badword",
				"word":     m.word,
				"category": m.category,
				"span":     fmt.Sprintf("%d-%d", m.start, m.end),
			},
		})
	}
	return out
}
