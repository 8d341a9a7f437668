package detector

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nomi-labs/guardian/moderation"
)

func profMsg(text string) moderation.Message {
	return moderation.Message{SenderID: 7, GroupID: -3, Text: text, ReceivedAt: time.Now()}
}

func TestProfanityDetectorExactAndObfuscated(t *testing.T) {
	assert := assert.New(t)
	d := NewProfanityDetector(map[string][]string{"offensive": {"badword"}}, nil)

	got := d.Detect(profMsg("you badword you"), moderation.DetectionContext{})
	assert.Len(got, 1)
	assert.Equal(moderation.KindBadword, got[0].Kind)
	assert.Equal(10, got[0].Severity)
	assert.Equal("badword", got[0].Evidence["word"])

	// leetspeak obfuscation
	got = d.Detect(profMsg("you b@d w0rd you"), moderation.DetectionContext{})
	assert.Len(got, 1)
	assert.Equal("badword", got[0].Evidence["word"])

	assert.Empty(d.Detect(profMsg("a wholesome message"), moderation.DetectionContext{}))
}

func TestProfanityDetectorSpanDedupe(t *testing.T) {
	assert := assert.New(t)
	// two list entries that normalize to the same word must not double-count
	// a single occurrence
	d := NewProfanityDetector(map[string][]string{"offensive": {"badword", "bad-word"}}, nil)

	got := d.Detect(profMsg("badword"), moderation.DetectionContext{})
	assert.Len(got, 1)

	// two occurrences at different spans still count twice
	got = d.Detect(profMsg("badword and badword"), moderation.DetectionContext{})
	assert.Len(got, 2)
}

func TestProfanityDetectorCategories(t *testing.T) {
	assert := assert.New(t)
	d := NewProfanityDetector(map[string][]string{
		"abusive": {"meanword"},
		"scam":    {"freemoney"},
		"custom":  {"oddword"},
	}, nil)

	got := d.Detect(profMsg("meanword"), moderation.DetectionContext{})
	assert.Len(got, 1)
	assert.Equal(moderation.KindBadword, got[0].Kind)
	assert.Equal(9, got[0].Severity)

	// scam-category words surface as scam violations for the instant rule
	got = d.Detect(profMsg("freemoney here"), moderation.DetectionContext{})
	assert.Len(got, 1)
	assert.Equal(moderation.KindScam, got[0].Kind)
	assert.Equal(8, got[0].Severity)

	// unknown category falls back to the default severity
	got = d.Detect(profMsg("oddword"), moderation.DetectionContext{})
	assert.Len(got, 1)
	assert.Equal(defaultSeverity, got[0].Severity)
}

func TestProfanityDetectorWhitelist(t *testing.T) {
	d := NewProfanityDetector(map[string][]string{"offensive": {"badword"}}, []string{"badword"})
	assert.Empty(t, d.Detect(profMsg("badword"), moderation.DetectionContext{}))
}

func TestProfanityDetectorEmptyText(t *testing.T) {
	d := NewProfanityDetector(map[string][]string{"offensive": {"badword"}}, nil)
	assert.Empty(t, d.Detect(profMsg("   "), moderation.DetectionContext{}))
}

func TestListsRoundTrip(t *testing.T) {
	assert := assert.New(t)
	lists := DefaultLists()
	lists.Badwords = map[string][]string{"offensive": {"badword"}, "scam": {"freemoney"}}

	var buf bytes.Buffer
	assert.NoError(lists.Export(&buf))
	reloaded, err := LoadLists(&buf)
	assert.NoError(err)
	assert.Equal(lists, reloaded)

	// identical detector behavior on a fixed corpus
	before := NewProfanityDetector(lists.Badwords, lists.Whitelist)
	after := NewProfanityDetector(reloaded.Badwords, reloaded.Whitelist)
	corpus := []string{"badword", "b@dw0rd", "freemoney", "clean text", ""}
	for _, text := range corpus {
		msg := profMsg(text)
		assert.Equal(
			before.Detect(msg, moderation.DetectionContext{}),
			after.Detect(msg, moderation.DetectionContext{}),
			"corpus text %q", text)
	}
}
