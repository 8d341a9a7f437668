package detector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nomi-labs/guardian/moderation"
)

func TestFloodDetectorRate(t *testing.T) {
	assert := assert.New(t)
	d := NewFloodDetector(DefaultFloodConfig())
	now := time.Now()

	// 10 prior messages inside the last 60s; this is the 11th
	var prior []time.Time
	for i := 0; i < 10; i++ {
		prior = append(prior, now.Add(-55*time.Second).Add(time.Duration(i)*5*time.Second))
	}
	msg := moderation.Message{SenderID: 1, GroupID: 2, Text: "hi", ReceivedAt: now}
	got := d.Detect(msg, moderation.DetectionContext{RecentTimestamps: prior})
	assert.Len(got, 1)
	assert.Equal(moderation.KindFlood, got[0].Kind)
	assert.Equal("message_rate", got[0].Evidence["rule"])
	assert.Equal("11", got[0].Evidence["messages"])

	// only 9 prior: under budget, and gaps exceed the minimum interval
	got = d.Detect(msg, moderation.DetectionContext{RecentTimestamps: prior[1:]})
	assert.Empty(got)
}

func TestFloodDetectorMinInterval(t *testing.T) {
	assert := assert.New(t)
	d := NewFloodDetector(DefaultFloodConfig())
	now := time.Now()

	msg := moderation.Message{SenderID: 1, GroupID: 2, Text: "hi", ReceivedAt: now}
	got := d.Detect(msg, moderation.DetectionContext{
		RecentTimestamps: []time.Time{now.Add(-500 * time.Millisecond)},
	})
	assert.Len(got, 1)
	assert.Equal("message_interval", got[0].Evidence["rule"])
}

func TestFloodDetectorBurstFlag(t *testing.T) {
	d := NewFloodDetector(DefaultFloodConfig())
	now := time.Now()

	// no timestamps retained, but the rolling-window tracker flagged a burst
	msg := moderation.Message{SenderID: 1, GroupID: 2, Text: "hi", ReceivedAt: now}
	got := d.Detect(msg, moderation.DetectionContext{RecentBurst: true})
	assert.Len(t, got, 1)
	assert.Equal(t, "message_rate", got[0].Evidence["rule"])
}

func TestFloodDetectorOldHistoryDecays(t *testing.T) {
	d := NewFloodDetector(DefaultFloodConfig())
	now := time.Now()

	var prior []time.Time
	for i := 0; i < 20; i++ {
		prior = append(prior, now.Add(-10*time.Minute))
	}
	msg := moderation.Message{SenderID: 1, GroupID: 2, Text: "hi", ReceivedAt: now}
	assert.Empty(t, d.Detect(msg, moderation.DetectionContext{RecentTimestamps: prior}))
}
