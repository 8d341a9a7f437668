package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomi-labs/guardian/moderation"
)

func violationAt(kind moderation.ViolationKind, at time.Time) moderation.Violation {
	return moderation.Violation{Kind: kind, Severity: 5, DetectedAt: at}
}

func TestMemLedgerTotalsAndCounts(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	l := NewMemLedger()
	key := moderation.UserKey{UserID: 1, GroupID: 2}
	now := time.Now()

	require.NoError(t, l.Record(ctx, key, violationAt(moderation.KindSpam, now.Add(-time.Hour)), 5))
	require.NoError(t, l.Record(ctx, key, violationAt(moderation.KindSpam, now.Add(-time.Minute)), 5))
	require.NoError(t, l.Record(ctx, key, violationAt(moderation.KindBadword, now.Add(-time.Minute)), 10))

	total, err := l.TotalPoints(ctx, key, 24*time.Hour, now)
	assert.NoError(err)
	assert.Equal(20, total)

	count, err := l.OffenseCount(ctx, key, moderation.KindSpam, 24*time.Hour, now)
	assert.NoError(err)
	assert.Equal(2, count)

	// a narrower window excludes the hour-old record
	total, err = l.TotalPoints(ctx, key, 10*time.Minute, now)
	assert.NoError(err)
	assert.Equal(15, total)

	// unrelated key has independent state
	other := moderation.UserKey{UserID: 1, GroupID: 3}
	total, err = l.TotalPoints(ctx, other, 24*time.Hour, now)
	assert.NoError(err)
	assert.Equal(0, total)
}

func TestMemLedgerDecay(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	l := NewMemLedger()
	key := moderation.UserKey{UserID: 9, GroupID: 9}
	now := time.Now()

	for i := 0; i < 4; i++ {
		require.NoError(t, l.Record(ctx, key, violationAt(moderation.KindBadword, now), 10))
	}
	count, _ := l.OffenseCount(ctx, key, moderation.KindBadword, 24*time.Hour, now)
	assert.Equal(4, count)

	// after the window elapses with no new violations, the count returns to
	// zero without any sweep having run
	later := now.Add(25 * time.Hour)
	count, _ = l.OffenseCount(ctx, key, moderation.KindBadword, 24*time.Hour, later)
	assert.Equal(0, count)
	total, _ := l.TotalPoints(ctx, key, 24*time.Hour, later)
	assert.Equal(0, total)
}

func TestMemLedgerSweep(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	l := NewMemLedger()
	key := moderation.UserKey{UserID: 4, GroupID: 5}
	now := time.Now()

	require.NoError(t, l.Record(ctx, key, violationAt(moderation.KindSpam, now.Add(-48*time.Hour)), 5))
	require.NoError(t, l.Record(ctx, key, violationAt(moderation.KindSpam, now), 5))

	assert.NoError(l.Sweep(ctx, now.Add(-24*time.Hour)))

	s := l.shard(key)
	s.mu.Lock()
	entries := append([]Entry(nil), s.entries[key]...)
	s.mu.Unlock()
	assert.Len(entries, 1, "swept entry is physically gone")

	total, _ := l.TotalPoints(ctx, key, 72*time.Hour, now)
	assert.Equal(5, total)
}

func TestMemLedgerConcurrentRecords(t *testing.T) {
	ctx := context.Background()
	l := NewMemLedger()
	now := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := moderation.UserKey{UserID: int64(n % 4), GroupID: 1}
			for j := 0; j < 100; j++ {
				_ = l.Record(ctx, key, violationAt(moderation.KindFlood, now), 3)
			}
		}(i)
	}
	wg.Wait()

	grand := 0
	for u := int64(0); u < 4; u++ {
		total, err := l.TotalPoints(ctx, moderation.UserKey{UserID: u, GroupID: 1}, time.Hour, now)
		require.NoError(t, err)
		grand += total
	}
	assert.Equal(t, 8*100*3, grand)
}

func TestParseMember(t *testing.T) {
	assert := assert.New(t)

	kind, points, ok := parseMember("spam/5/17")
	assert.True(ok)
	assert.Equal(moderation.KindSpam, kind)
	assert.Equal(5, points)

	_, _, ok = parseMember("garbage")
	assert.False(ok)
	_, _, ok = parseMember("spam/notanumber/1")
	assert.False(ok)
}
