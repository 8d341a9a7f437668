// Time-windowed violation points accumulator, keyed by (user, group). Entries
// decay out of totals once older than the rolling window and are physically
// purged by a periodic sweep.
package ledger

import (
	"context"
	"time"

	"github.com/nomi-labs/guardian/moderation"
)

// Entry is one persisted points contribution from a violation.
type Entry struct {
	Kind       moderation.ViolationKind
	Points     int
	DetectedAt time.Time
}

type Ledger interface {
	// Record appends a violation with its already-derived points value.
	Record(ctx context.Context, key moderation.UserKey, v moderation.Violation, points int) error
	// TotalPoints sums non-expired entries within the window, as of now.
	TotalPoints(ctx context.Context, key moderation.UserKey, window time.Duration, now time.Time) (int, error)
	// OffenseCount counts entries of one kind within the window, as of now.
	OffenseCount(ctx context.Context, key moderation.UserKey, kind moderation.ViolationKind, window time.Duration, now time.Time) (int, error)
	// Sweep purges entries recorded before the cutoff so memory stays bounded
	// between reads. Must not block concurrent reads globally.
	Sweep(ctx context.Context, olderThan time.Time) error
}
