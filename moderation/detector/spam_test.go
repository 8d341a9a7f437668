package detector

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nomi-labs/guardian/moderation"
)

func spamMsg(text string) moderation.Message {
	return moderation.Message{SenderID: 100, GroupID: -200, Text: text, ReceivedAt: time.Now()}
}

func ruleNames(violations []moderation.Violation) []string {
	var out []string
	for _, v := range violations {
		out = append(out, v.Evidence["rule"])
	}
	return out
}

func TestSpamDetectorEmptyText(t *testing.T) {
	d := NewSpamDetector(DefaultSpamConfig(), []string{"free money"})
	assert.Empty(t, d.Detect(spamMsg(""), moderation.DetectionContext{}))
	assert.Empty(t, d.Detect(spamMsg("   \n\t "), moderation.DetectionContext{}))
}

func TestSpamDetectorPhrase(t *testing.T) {
	d := NewSpamDetector(DefaultSpamConfig(), []string{"free money", "click here"})

	got := d.Detect(spamMsg("CLICK HERE to win"), moderation.DetectionContext{})
	assert.Len(t, got, 1)
	assert.Equal(t, moderation.KindSpam, got[0].Kind)
	assert.Equal(t, "spam_phrase", got[0].Evidence["rule"])

	assert.Empty(t, d.Detect(spamMsg("an ordinary sentence"), moderation.DetectionContext{}))
}

func TestSpamDetectorSpecialCharRatio(t *testing.T) {
	d := NewSpamDetector(DefaultSpamConfig(), nil)

	got := d.Detect(spamMsg("$$$ !!! ### @@@ %%%"), moderation.DetectionContext{})
	assert.Contains(t, ruleNames(got), "special_char_ratio")

	got = d.Detect(spamMsg("a perfectly normal message, with punctuation."), moderation.DetectionContext{})
	assert.NotContains(t, ruleNames(got), "special_char_ratio")
}

func TestSpamDetectorDigitRun(t *testing.T) {
	d := NewSpamDetector(DefaultSpamConfig(), nil)

	got := d.Detect(spamMsg("call me at 1234567890123456"), moderation.DetectionContext{})
	assert.Contains(t, ruleNames(got), "digit_run")

	got = d.Detect(spamMsg("only 123456789012345 digits"), moderation.DetectionContext{})
	assert.NotContains(t, ruleNames(got), "digit_run")
}

func TestSpamDetectorCaps(t *testing.T) {
	d := NewSpamDetector(DefaultSpamConfig(), nil)

	got := d.Detect(spamMsg("STOP SHOUTING AT EVERYONE"), moderation.DetectionContext{})
	assert.Contains(t, ruleNames(got), "excessive_caps")
	for _, v := range got {
		if v.Evidence["rule"] == "excessive_caps" {
			assert.Equal(t, moderation.KindCaps, v.Kind)
		}
	}

	assert.Empty(t, d.Detect(spamMsg("A Normal Headline Style Message"), moderation.DetectionContext{}))
}

func TestSpamDetectorRepetition(t *testing.T) {
	d := NewSpamDetector(DefaultSpamConfig(), nil)

	got := d.Detect(spamMsg("heyyyyyyy what is up"), moderation.DetectionContext{})
	assert.Contains(t, ruleNames(got), "excessive_repetition")

	got = d.Detect(spamMsg("spam spam spam buy now"), moderation.DetectionContext{})
	assert.Contains(t, ruleNames(got), "excessive_repetition")

	got = d.Detect(spamMsg("nothing repeated here at all"), moderation.DetectionContext{})
	assert.NotContains(t, ruleNames(got), "excessive_repetition")
}

func TestSpamDetectorSimilarMessages(t *testing.T) {
	d := NewSpamDetector(DefaultSpamConfig(), nil)

	recent := []string{
		"join my channel for prizes",
		"join my channel for prizes",
		"join my channel for prizes",
	}
	got := d.Detect(spamMsg("join my channel for prizes"), moderation.DetectionContext{RecentTexts: recent})
	assert.Contains(t, ruleNames(got), "similar_messages")

	got = d.Detect(spamMsg("completely different text"), moderation.DetectionContext{RecentTexts: recent})
	assert.NotContains(t, ruleNames(got), "similar_messages")
}

func TestJaccardSimilarity(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(1.0, jaccardSimilarity("a b c", "c b a"))
	assert.Equal(0.0, jaccardSimilarity("a b", "c d"))
	assert.Equal(0.0, jaccardSimilarity("", "anything"))
	assert.InDelta(1.0/3.0, jaccardSimilarity("a b", "a c"), 0.01, "one shared of three distinct words")
}

func TestLongestDigitRun(t *testing.T) {
	assert.Equal(t, 0, longestDigitRun("no digits"))
	assert.Equal(t, 16, longestDigitRun(strings.Repeat("1", 16)))
	assert.Equal(t, 4, longestDigitRun("12 345 6789 0123"))
}
