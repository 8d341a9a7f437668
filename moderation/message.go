package moderation

import (
	"fmt"
	"time"
)

// UserKey identifies a moderation subject scoped to one group. A user has
// independent violation and sanction state in every group they post in.
// GroupID zero means direct/global scope (no group context).
type UserKey struct {
	UserID  int64
	GroupID int64
}

func (k UserKey) String() string {
	return fmt.Sprintf("%d/%d", k.GroupID, k.UserID)
}

// Message is the per-message input tuple handed to the engine by the
// surrounding bot application. The engine never talks to any chat API itself.
type Message struct {
	SenderID   int64
	GroupID    int64
	Text       string
	ReceivedAt time.Time
}

func (m Message) Key() UserKey {
	return UserKey{UserID: m.SenderID, GroupID: m.GroupID}
}

// DetectionContext carries the caller-maintained sender history snapshot that
// stateless detectors need. The engine does not own message history; callers
// either assemble this themselves or use engine.History.
type DetectionContext struct {
	// Sender's recent message timestamps, oldest first. Used by flood checks.
	RecentTimestamps []time.Time
	// Sender's recent message texts, oldest first. Used by near-duplicate checks.
	RecentTexts []string
	// Set when a rolling-window rate tracker has already seen this sender
	// exceed its message budget, even if RecentTimestamps was truncated.
	RecentBurst bool
	// Group-level toggle: links to unknown domains are allowed rather than
	// default-denied.
	GroupAllowsLinks bool
}
