package moderation

import (
	"fmt"
	"time"
)

// PolicyConfig holds every tunable of the escalation policy and the state
// stores. It is immutable once constructed: the engine snapshots it and swaps
// the snapshot atomically on reload, so a rejected config never partially
// applies.
type PolicyConfig struct {
	// Points contributed per severity unit, by violation kind.
	PointWeights map[ViolationKind]int
	// Base sanction duration for the first offense, by violation kind.
	BaseDurations map[ViolationKind]time.Duration
	// Base enforcement action for the first offense, by violation kind.
	BaseActions map[ViolationKind]Action

	SecondOffenseMultiplier int
	ThirdOffenseMultiplier  int
	PersistentMultiplier    int
	// Temporary sanctions never exceed this, regardless of multipliers.
	MaxTempDuration time.Duration
	// Occurrence number (1-based) at which a sanction becomes permanent.
	PermanentAfter int

	// Total active points at which the points rule escalates to ban.
	BanThreshold int
	// Fraction of BanThreshold at which the points rule escalates to mute.
	MuteThresholdFraction float64

	// Kinds that bypass point accumulation and sanction on first occurrence.
	InstantKinds []ViolationKind

	// Rolling window after which a violation record stops counting.
	DecayWindow time.Duration
	// Lookback for counting prior sanctions when escalating.
	OffenseLookback time.Duration
	// How often background sweeps purge expired records.
	SweepInterval time.Duration
	// How long an issued warning keeps contributing points.
	WarningTTL time.Duration
	// Bounded timeout for a single persistence call.
	PersistTimeout time.Duration

	// Privileged sender IDs that bypass all detectors.
	AdminIDs []int64
}

// MuteThreshold derives the points level for the mute rule.
func (c *PolicyConfig) MuteThreshold() int {
	return int(float64(c.BanThreshold) * c.MuteThresholdFraction)
}

func (c *PolicyConfig) Instant(kind ViolationKind) bool {
	for _, k := range c.InstantKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Validate rejects a config before it can reach the hot path. Callers keep the
// previous valid config active when this errors; nothing is clamped silently.
func (c *PolicyConfig) Validate() error {
	for kind, w := range c.PointWeights {
		if w < 0 {
			return fmt.Errorf("invalid config: negative point weight for %s", kind)
		}
	}
	for kind, d := range c.BaseDurations {
		if d < 0 {
			return fmt.Errorf("invalid config: negative base duration for %s", kind)
		}
	}
	if c.SecondOffenseMultiplier < 1 || c.ThirdOffenseMultiplier < 1 || c.PersistentMultiplier < 1 {
		return fmt.Errorf("invalid config: offense multipliers must be >= 1")
	}
	if c.MaxTempDuration <= 0 {
		return fmt.Errorf("invalid config: max temp duration must be positive")
	}
	if c.PermanentAfter < 1 {
		return fmt.Errorf("invalid config: permanent-after must be >= 1")
	}
	if c.BanThreshold <= 0 {
		return fmt.Errorf("invalid config: ban threshold must be positive")
	}
	if c.MuteThresholdFraction <= 0 || c.MuteThresholdFraction > 1 {
		return fmt.Errorf("invalid config: mute threshold fraction must be in (0, 1]")
	}
	if c.DecayWindow <= 0 || c.OffenseLookback <= 0 {
		return fmt.Errorf("invalid config: decay window and offense lookback must be positive")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("invalid config: sweep interval must be positive")
	}
	if c.WarningTTL <= 0 {
		return fmt.Errorf("invalid config: warning TTL must be positive")
	}
	if c.PersistTimeout <= 0 {
		return fmt.Errorf("invalid config: persist timeout must be positive")
	}
	return nil
}

// DefaultPolicyConfig returns the stock tuning.
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		PointWeights: map[ViolationKind]int{
			KindSpam:          5,
			KindFlood:         3,
			KindBadword:       10,
			KindLink:          8,
			KindMaliciousLink: 15,
			KindCaps:          2,
			KindRepetition:    3,
			KindScam:          20,
			KindAdvertisement: 8,
			KindHarassment:    15,
		},
		BaseDurations: map[ViolationKind]time.Duration{
			KindSpam:          24 * time.Hour,
			KindFlood:         time.Minute,
			KindBadword:       10 * time.Minute,
			KindLink:          5 * time.Minute,
			KindMaliciousLink: 7 * 24 * time.Hour,
			KindCaps:          0,
			KindRepetition:    0,
			KindScam:          30 * 24 * time.Hour,
			KindAdvertisement: 7 * 24 * time.Hour,
			KindHarassment:    30 * 24 * time.Hour,
		},
		BaseActions: map[ViolationKind]Action{
			KindSpam:          ActionWarn,
			KindFlood:         ActionMute,
			KindBadword:       ActionMute,
			KindLink:          ActionMute,
			KindMaliciousLink: ActionBan,
			KindCaps:          ActionWarn,
			KindRepetition:    ActionWarn,
			KindScam:          ActionBan,
			KindAdvertisement: ActionMute,
			KindHarassment:    ActionBan,
		},
		SecondOffenseMultiplier: 3,
		ThirdOffenseMultiplier:  10,
		PersistentMultiplier:    30,
		MaxTempDuration:         30 * 24 * time.Hour,
		PermanentAfter:          3,
		BanThreshold:            30,
		MuteThresholdFraction:   0.7,
		InstantKinds:            []ViolationKind{KindScam, KindMaliciousLink},
		DecayWindow:             24 * time.Hour,
		OffenseLookback:         24 * time.Hour,
		SweepInterval:           5 * time.Minute,
		WarningTTL:              7 * 24 * time.Hour,
		PersistTimeout:          2 * time.Second,
		AdminIDs:                nil,
	}
}
