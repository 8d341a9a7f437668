// Escalation policy: a pure decision function from one violation plus the
// subject's offense history to a sanction decision. No I/O, no clocks, no
// stored state; everything it needs arrives as arguments, so decisions are
// reproducible and trivially testable.
package policy

import (
	"fmt"
	"time"

	"github.com/nomi-labs/guardian/moderation"
)

// OffenseHistory is the subject's standing at decision time. PriorSanctions
// counts sanctions previously applied for this violation kind within the
// lookback window; raw violations deliberately do not count, so a single
// burst cannot double-escalate. TotalPoints is the sum of non-expired
// violation and warning points.
type OffenseHistory struct {
	PriorSanctions int
	TotalPoints    int
}

type Policy struct {
	cfg moderation.PolicyConfig
}

func New(cfg moderation.PolicyConfig) *Policy {
	return &Policy{cfg: cfg}
}

// Fallback durations for points-rule sanctions on kinds with no configured
// base duration.
const (
	fallbackMuteDuration = time.Hour
)

// Decide maps one violation and the subject's history to the sanction that
// should result. Two rules evaluate independently: the per-kind escalation
// ladder (with instant kinds sanctioning on first occurrence) and the
// points rule over the subject's total. The more severe action wins; on a
// tie the instant rule's explicit duration is used.
func (p *Policy) Decide(v moderation.Violation, h OffenseHistory) moderation.SanctionDecision {
	kindDec := p.kindDecision(v, h)
	pointsDec := p.pointsDecision(v, h)

	switch {
	case pointsDec.Action > kindDec.Action:
		return pointsDec
	case kindDec.Action > pointsDec.Action:
		return kindDec
	case p.cfg.Instant(v.Kind):
		return kindDec
	default:
		// same action from both rules: keep the one that holds longer
		if longerSanction(pointsDec, kindDec) {
			return pointsDec
		}
		return kindDec
	}
}

func (p *Policy) kindDecision(v moderation.Violation, h OffenseHistory) moderation.SanctionDecision {
	action, ok := p.cfg.BaseActions[v.Kind]
	if !ok {
		action = moderation.ActionWarn
	}

	rule := fmt.Sprintf("escalation/%s", v.Kind)
	if p.cfg.Instant(v.Kind) {
		rule = fmt.Sprintf("instant/%s", v.Kind)
	}

	dec := moderation.SanctionDecision{
		Action:       action,
		Reason:       fmt.Sprintf("%s violation (severity %d)", v.Kind, v.Severity),
		RuleApplied:  rule,
		EvidenceKind: v.Kind,
	}
	if action != moderation.ActionMute && action != moderation.ActionBan {
		return dec
	}

	occurrence := h.PriorSanctions + 1
	if occurrence >= p.cfg.PermanentAfter {
		dec.Action = moderation.ActionBan
		dec.Duration = 0
		dec.Reason = fmt.Sprintf("%s violation, offense %d: permanent", v.Kind, occurrence)
		return dec
	}
	dec.Duration = p.escalateDuration(p.cfg.BaseDurations[v.Kind], h.PriorSanctions)
	return dec
}

func (p *Policy) pointsDecision(v moderation.Violation, h OffenseHistory) moderation.SanctionDecision {
	dec := moderation.SanctionDecision{
		Action:       moderation.ActionNone,
		EvidenceKind: v.Kind,
	}
	switch {
	case h.TotalPoints >= p.cfg.BanThreshold:
		dec.Action = moderation.ActionBan
		dec.RuleApplied = "points/ban"
		dec.Reason = fmt.Sprintf("%d active points >= ban threshold %d", h.TotalPoints, p.cfg.BanThreshold)
		dec.Duration = p.escalateDuration(p.cfg.BaseDurations[v.Kind], h.PriorSanctions)
		if dec.Duration == 0 {
			// no configured base for this kind; a zero duration would read
			// as permanent
			dec.Duration = p.cfg.MaxTempDuration
		}
	case h.TotalPoints >= p.cfg.MuteThreshold():
		dec.Action = moderation.ActionMute
		dec.RuleApplied = "points/mute"
		dec.Reason = fmt.Sprintf("%d active points >= mute threshold %d", h.TotalPoints, p.cfg.MuteThreshold())
		dec.Duration = p.escalateDuration(p.cfg.BaseDurations[v.Kind], h.PriorSanctions)
		if dec.Duration == 0 {
			dec.Duration = fallbackMuteDuration
		}
	}
	return dec
}

// escalateDuration applies the offense multiplier ladder and the temporary
// cap. Never returns more than MaxTempDuration; monotonic in priorSanctions.
func (p *Policy) escalateDuration(base time.Duration, priorSanctions int) time.Duration {
	if base <= 0 {
		return 0
	}
	multiplier := 1
	switch {
	case priorSanctions >= 3:
		multiplier = p.cfg.PersistentMultiplier
	case priorSanctions == 2:
		multiplier = p.cfg.ThirdOffenseMultiplier
	case priorSanctions == 1:
		multiplier = p.cfg.SecondOffenseMultiplier
	}
	d := base * time.Duration(multiplier)
	if d > p.cfg.MaxTempDuration {
		d = p.cfg.MaxTempDuration
	}
	return d
}

func longerSanction(a, b moderation.SanctionDecision) bool {
	if a.Permanent() {
		return true
	}
	if b.Permanent() {
		return false
	}
	return a.Duration > b.Duration
}
