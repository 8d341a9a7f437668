package detector

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/nomi-labs/guardian/moderation"
)

type SpamConfig struct {
	// Ratio of special (non-letter, non-digit, non-space) characters above
	// which a message is flagged.
	MaxSpecialRatio float64
	// Longest run of consecutive digits allowed.
	MaxDigitRun int
	// Uppercase ratio and minimum uppercase count for the caps check.
	MaxCapsRatio float64
	MinCapsCount int
	// Near-duplicate detection against recent history.
	SimilarityThreshold float64
	MaxSimilarMessages  int
	// Severity attached to pattern-rule hits.
	Severity int
}

func DefaultSpamConfig() SpamConfig {
	return SpamConfig{
		MaxSpecialRatio:     0.3,
		MaxDigitRun:         15,
		MaxCapsRatio:        0.5,
		MinCapsCount:        10,
		SimilarityThreshold: 0.8,
		MaxSimilarMessages:  3,
		Severity:            5,
	}
}

// SpamDetector flags configured spam phrases, excessive special characters,
// long digit runs, shouting, repetition, and near-duplicates of the sender's
// recent messages.
type SpamDetector struct {
	cfg     SpamConfig
	phrases []string // lower-cased
}

func NewSpamDetector(cfg SpamConfig, phrases []string) *SpamDetector {
	lowered := make([]string, 0, len(phrases))
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			lowered = append(lowered, p)
		}
	}
	return &SpamDetector{cfg: cfg, phrases: dedupeStrings(lowered)}
}

func (d *SpamDetector) Name() string { return "spam" }

func (d *SpamDetector) Detect(msg moderation.Message, dctx moderation.DetectionContext) []moderation.Violation {
	if blankText(msg.Text) {
		return nil
	}
	var out []moderation.Violation

	lower := strings.ToLower(msg.Text)
	for _, phrase := range d.phrases {
		if strings.Contains(lower, phrase) {
			out = append(out, moderation.Violation{
				Kind:       moderation.KindSpam,
				Severity:   d.cfg.Severity,
				DetectedAt: msg.ReceivedAt,
				Evidence:   map[string]string{"rule": "spam_phrase", "phrase": phrase},
			})
			break
		}
	}

	if ratio, count := specialCharRatio(msg.Text); ratio > d.cfg.MaxSpecialRatio {
		out = append(out, moderation.Violation{
			Kind:       moderation.KindSpam,
			Severity:   d.cfg.Severity,
			DetectedAt: msg.ReceivedAt,
			Evidence: map[string]string{
				"rule":  "special_char_ratio",
				"ratio": fmt.Sprintf("%.2f", ratio),
				"count": fmt.Sprintf("%d", count),
			},
		})
	}

	if run := longestDigitRun(msg.Text); run > d.cfg.MaxDigitRun {
		out = append(out, moderation.Violation{
			Kind:       moderation.KindSpam,
			Severity:   d.cfg.Severity,
			DetectedAt: msg.ReceivedAt,
			Evidence:   map[string]string{"rule": "digit_run", "length": fmt.Sprintf("%d", run)},
		})
	}

	if excessiveCaps(msg.Text, d.cfg.MaxCapsRatio, d.cfg.MinCapsCount) {
		out = append(out, moderation.Violation{
			Kind:       moderation.KindCaps,
			Severity:   2,
			DetectedAt: msg.ReceivedAt,
			Evidence:   map[string]string{"rule": "excessive_caps"},
		})
	}

	if excessiveRepetition(msg.Text) {
		out = append(out, moderation.Violation{
			Kind:       moderation.KindRepetition,
			Severity:   3,
			DetectedAt: msg.ReceivedAt,
			Evidence:   map[string]string{"rule": "excessive_repetition"},
		})
	}

	if similar := d.countSimilar(msg.Text, dctx.RecentTexts); similar >= d.cfg.MaxSimilarMessages {
		out = append(out, moderation.Violation{
			Kind:       moderation.KindSpam,
			Severity:   d.cfg.Severity,
			DetectedAt: msg.ReceivedAt,
			Evidence:   map[string]string{"rule": "similar_messages", "count": fmt.Sprintf("%d", similar)},
		})
	}

	return out
}

func (d *SpamDetector) countSimilar(text string, recent []string) int {
	similar := 0
	for _, prev := range recent {
		if jaccardSimilarity(text, prev) > d.cfg.SimilarityThreshold {
			similar++
		}
	}
	return similar
}

func specialCharRatio(text string) (float64, int) {
	total := 0
	special := 0
	for _, r := range text {
		total++
		if !unicode.IsLetter(r) && !unicode.IsNumber(r) && !unicode.IsSpace(r) {
			special++
		}
	}
	if total == 0 {
		return 0, 0
	}
	return float64(special) / float64(total), special
}

func longestDigitRun(text string) int {
	best, cur := 0, 0
	for _, r := range text {
		if unicode.IsDigit(r) {
			cur++
			if cur > best {
				best = cur
			}
		} else {
			cur = 0
		}
	}
	return best
}

func excessiveCaps(text string, maxRatio float64, minCount int) bool {
	runes := []rune(text)
	if len(runes) < 10 {
		return false
	}
	upper := 0
	for _, r := range runes {
		if unicode.IsUpper(r) {
			upper++
		}
	}
	return float64(upper)/float64(len(runes)) > maxRatio && upper > minCount
}

func excessiveRepetition(text string) bool {
	runes := []rune(text)
	if len(runes) >= 10 {
		streak := 1
		for i := 1; i < len(runes); i++ {
			if runes[i] == runes[i-1] {
				streak++
				if streak >= 5 {
					return true
				}
			} else {
				streak = 1
			}
		}
	}
	words := strings.Fields(text)
	for i := 0; i+2 < len(words); i++ {
		if words[i] == words[i+1] && words[i+1] == words[i+2] {
			return true
		}
	}
	return false
}

// word-set Jaccard similarity, case-insensitive
func jaccardSimilarity(a, b string) float64 {
	wa := strings.Fields(strings.ToLower(a))
	wb := strings.Fields(strings.ToLower(b))
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	seen := make(map[string]bool, len(wa))
	for _, w := range wa {
		seen[w] = true
	}
	both := make(map[string]bool)
	union := make(map[string]bool)
	for _, w := range wa {
		union[w] = true
	}
	for _, w := range wb {
		union[w] = true
		if seen[w] {
			both[w] = true
		}
	}
	return float64(len(both)) / float64(len(union))
}
