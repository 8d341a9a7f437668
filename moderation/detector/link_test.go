package detector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nomi-labs/guardian/moderation"
)

func linkMsg(text string) moderation.Message {
	return moderation.Message{SenderID: 5, GroupID: -10, Text: text, ReceivedAt: time.Now()}
}

func TestExtractDomains(t *testing.T) {
	assert := assert.New(t)

	assert.Equal([]string{"example.com"}, ExtractDomains("see https://example.com/page?x=1"))
	assert.Equal([]string{"example.com"}, ExtractDomains("see www.example.com"))
	assert.Equal([]string{"example.com"}, ExtractDomains("twice: example.com and EXAMPLE.com/other"))
	assert.Empty(ExtractDomains("pi is 3.14 and that is all"))
	assert.Empty(ExtractDomains("no links here"))
}

func TestLinkDetectorClassification(t *testing.T) {
	assert := assert.New(t)
	lists := DefaultLists()
	d := NewLinkDetector(DefaultLinkConfig(), lists.AllowedDomains, lists.BlockedDomains)

	// blocked domain
	got := d.Detect(linkMsg("check https://bit.ly/promo"), moderation.DetectionContext{})
	assert.Len(got, 1)
	assert.Equal(moderation.KindMaliciousLink, got[0].Kind)
	assert.Equal("bit.ly", got[0].Evidence["domain"])

	// allowed domain
	got = d.Detect(linkMsg("docs at github.com/some/repo"), moderation.DetectionContext{})
	assert.Empty(got)

	// unknown domain: default deny
	got = d.Detect(linkMsg("visit sketchy-site.xyz now"), moderation.DetectionContext{})
	assert.Len(got, 1)
	assert.Equal(moderation.KindLink, got[0].Kind)
	assert.Equal("unknown_domain", got[0].Evidence["rule"])

	// unknown domain: group allows open links
	got = d.Detect(linkMsg("visit sketchy-site.xyz now"), moderation.DetectionContext{GroupAllowsLinks: true})
	assert.Empty(got)
}

func TestLinkDetectorBlockWinsOverAllow(t *testing.T) {
	d := NewLinkDetector(DefaultLinkConfig(), []string{"evil.com"}, []string{"evil.com"})

	got := d.Detect(linkMsg("go to evil.com please"), moderation.DetectionContext{})
	assert.Len(t, got, 1)
	assert.Equal(t, moderation.KindMaliciousLink, got[0].Kind)
}

func TestLinkDetectorEmptyText(t *testing.T) {
	lists := DefaultLists()
	d := NewLinkDetector(DefaultLinkConfig(), lists.AllowedDomains, lists.BlockedDomains)
	assert.Empty(t, d.Detect(linkMsg(""), moderation.DetectionContext{}))
}
