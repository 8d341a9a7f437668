package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nomi-labs/guardian/moderation"
)

func testViolation(kind moderation.ViolationKind, severity int) moderation.Violation {
	return moderation.Violation{Kind: kind, Severity: severity, DetectedAt: time.Now()}
}

func TestDecideFloodEscalation(t *testing.T) {
	assert := assert.New(t)
	p := New(moderation.DefaultPolicyConfig())
	v := testViolation(moderation.KindFlood, 3)

	// first offense: base mute duration
	dec := p.Decide(v, OffenseHistory{PriorSanctions: 0, TotalPoints: 3})
	assert.Equal(moderation.ActionMute, dec.Action)
	assert.Equal(time.Minute, dec.Duration)
	assert.Equal("escalation/flood", dec.RuleApplied)

	// second offense: tripled
	dec = p.Decide(v, OffenseHistory{PriorSanctions: 1, TotalPoints: 6})
	assert.Equal(moderation.ActionMute, dec.Action)
	assert.Equal(3*time.Minute, dec.Duration)

	// third offense goes permanent
	dec = p.Decide(v, OffenseHistory{PriorSanctions: 2, TotalPoints: 9})
	assert.Equal(moderation.ActionBan, dec.Action)
	assert.True(dec.Permanent())
}

func TestDecideInstantKinds(t *testing.T) {
	assert := assert.New(t)
	p := New(moderation.DefaultPolicyConfig())

	// scam bans immediately even with a clean history and no points
	dec := p.Decide(testViolation(moderation.KindScam, 10), OffenseHistory{})
	assert.Equal(moderation.ActionBan, dec.Action)
	assert.Equal("instant/scam", dec.RuleApplied)
	assert.Equal(30*24*time.Hour, dec.Duration)

	dec = p.Decide(testViolation(moderation.KindMaliciousLink, 8), OffenseHistory{})
	assert.Equal(moderation.ActionBan, dec.Action)
	assert.Equal("instant/malicious_link", dec.RuleApplied)
	assert.Equal(7*24*time.Hour, dec.Duration)
}

func TestDecidePointsThresholds(t *testing.T) {
	assert := assert.New(t)
	cfg := moderation.DefaultPolicyConfig()
	p := New(cfg)

	// caps alone only warns, but accumulated points force a ban
	dec := p.Decide(testViolation(moderation.KindCaps, 2), OffenseHistory{TotalPoints: 35})
	assert.Equal(moderation.ActionBan, dec.Action)
	assert.Equal("points/ban", dec.RuleApplied)
	assert.False(dec.Permanent(), "points bans are temporary")
	assert.Equal(cfg.MaxTempDuration, dec.Duration)

	// between mute and ban thresholds
	dec = p.Decide(testViolation(moderation.KindCaps, 2), OffenseHistory{TotalPoints: 25})
	assert.Equal(moderation.ActionMute, dec.Action)
	assert.Equal("points/mute", dec.RuleApplied)
	assert.Equal(fallbackMuteDuration, dec.Duration)

	// below both thresholds the kind's base action stands
	dec = p.Decide(testViolation(moderation.KindCaps, 2), OffenseHistory{TotalPoints: 5})
	assert.Equal(moderation.ActionWarn, dec.Action)
}

func TestDecideInstantWinsTies(t *testing.T) {
	assert := assert.New(t)
	p := New(moderation.DefaultPolicyConfig())

	// both rules say ban; the instant rule's explicit duration is kept
	dec := p.Decide(testViolation(moderation.KindScam, 10), OffenseHistory{TotalPoints: 50})
	assert.Equal(moderation.ActionBan, dec.Action)
	assert.Equal("instant/scam", dec.RuleApplied)
}

func TestEscalateDurationMonotonicAndCapped(t *testing.T) {
	assert := assert.New(t)
	cfg := moderation.DefaultPolicyConfig()
	p := New(cfg)

	prev := time.Duration(0)
	for prior := 0; prior < 6; prior++ {
		d := p.escalateDuration(10*time.Minute, prior)
		assert.GreaterOrEqual(d, prev, "durations never shrink as offenses accumulate")
		assert.LessOrEqual(d, cfg.MaxTempDuration)
		prev = d
	}

	// large bases saturate at the cap rather than multiplying past it
	assert.Equal(cfg.MaxTempDuration, p.escalateDuration(20*24*time.Hour, 1))
}

func TestDecideUnknownKindDefaultsToWarn(t *testing.T) {
	assert := assert.New(t)
	p := New(moderation.DefaultPolicyConfig())

	dec := p.Decide(testViolation(moderation.ViolationKind("mystery"), 1), OffenseHistory{})
	assert.Equal(moderation.ActionWarn, dec.Action)
	assert.Equal(time.Duration(0), dec.Duration)
}
