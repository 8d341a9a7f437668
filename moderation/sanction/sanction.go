// Authoritative state of active mutes and bans, keyed by (user, group), with
// expiry, idempotent apply/revoke, and an audit trail. At most one active
// sanction of a given kind exists per key; applying a new one replaces it and
// never silently shortens a longer one.
package sanction

import (
	"context"
	"time"

	"github.com/nomi-labs/guardian/moderation"
)

type Kind string

const (
	KindMute Kind = "mute"
	KindBan  Kind = "ban"
)

// Sanction is an active enforcement state. ExpiresAt nil means permanent; a
// permanent sanction only ever leaves via explicit Revoke.
type Sanction struct {
	Key       moderation.UserKey
	Kind      Kind
	AppliedAt time.Time
	ExpiresAt *time.Time
	Reason    string
}

func (s Sanction) Permanent() bool {
	return s.ExpiresAt == nil
}

func (s Sanction) ExpiredAt(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}

// Audit operations.
const (
	OpApply   = "apply"
	OpReplace = "replace"
	OpExpire  = "expire"
	OpRevoke  = "revoke"
)

type AuditEntry struct {
	Key    moderation.UserKey
	Kind   Kind
	Op     string
	Reason string
	At     time.Time
}

type Store interface {
	// Apply installs a sanction, replacing any active one of the same kind.
	// The stored expiry only ever extends: if the existing sanction outlasts
	// the new duration (or is permanent), its expiry is kept. Duration zero
	// means permanent. The violation kind that caused the sanction is
	// recorded as an offense event for later escalation counting.
	Apply(ctx context.Context, key moderation.UserKey, kind Kind, cause moderation.ViolationKind, duration time.Duration, reason string, now time.Time) (Sanction, error)

	// IsActive lazily expires on read: a sanction past its expiry is removed
	// as a side effect and false is returned.
	IsActive(ctx context.Context, key moderation.UserKey, kind Kind, now time.Time) (bool, error)

	// Get returns the active sanction, expiring lazily like IsActive.
	Get(ctx context.Context, key moderation.UserKey, kind Kind, now time.Time) (Sanction, bool, error)

	// Revoke removes a sanction (manual unban/unmute) and appends an audit
	// entry. Returns false if nothing was active.
	Revoke(ctx context.Context, key moderation.UserKey, kind Kind, reason string, now time.Time) (bool, error)

	// CountOffenses counts sanction events caused by the given violation kind
	// since the cutoff. Escalation counts prior sanctions, not raw
	// violations, so one burst cannot double-escalate.
	CountOffenses(ctx context.Context, key moderation.UserKey, cause moderation.ViolationKind, since time.Time) (int, error)

	// Sweep proactively removes expired sanctions.
	Sweep(ctx context.Context, now time.Time) error
}
