package moderation

import (
	"time"
)

// ViolationKind classifies a detected rule-break.
type ViolationKind string

const (
	KindSpam          ViolationKind = "spam"
	KindFlood         ViolationKind = "flood"
	KindBadword       ViolationKind = "badword"
	KindLink          ViolationKind = "link"
	KindMaliciousLink ViolationKind = "malicious_link"
	KindCaps          ViolationKind = "caps"
	KindRepetition    ViolationKind = "repetition"
	KindScam          ViolationKind = "scam"
	KindAdvertisement ViolationKind = "advertisement"
	KindHarassment    ViolationKind = "harassment"
)

// Violation is a single detected rule-break from one message, not yet judged.
// Produced by a detector; never mutated after creation.
type Violation struct {
	Kind       ViolationKind
	Severity   int // 1..10
	DetectedAt time.Time
	Evidence   map[string]string
}
