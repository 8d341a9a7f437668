package moderation

import "time"

// Action is an enforcement action, ordered by severity.
type Action int

const (
	ActionNone Action = iota
	ActionWarn
	ActionMute
	ActionBan
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionWarn:
		return "warn"
	case ActionMute:
		return "mute"
	case ActionBan:
		return "ban"
	}
	return "unknown"
}

// SanctionDecision is the output of the escalation policy for one violation.
// Duration zero with ActionMute or ActionBan means permanent.
type SanctionDecision struct {
	Action       Action
	Duration     time.Duration
	Reason       string
	RuleApplied  string
	EvidenceKind ViolationKind
}

// ModerationDecision is what the engine emits to the caller per message. The
// caller translates it into chat-API operations (delete message, restrict
// member, notify).
type ModerationDecision = SanctionDecision

// Permanent reports whether the decision imposes a sanction with no expiry.
func (d SanctionDecision) Permanent() bool {
	return (d.Action == ActionMute || d.Action == ActionBan) && d.Duration == 0
}
