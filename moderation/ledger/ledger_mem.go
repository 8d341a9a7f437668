package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/spaolacci/murmur3"

	"github.com/nomi-labs/guardian/moderation"
)

const memShards = 64

// MemLedger keeps entries in a fixed array of mutex-guarded shards indexed by
// a hash of the UserKey, so different keys never contend on one lock and the
// sweep only holds one shard at a time.
type MemLedger struct {
	shards [memShards]memShard
}

type memShard struct {
	mu      sync.Mutex
	entries map[moderation.UserKey][]Entry
}

func NewMemLedger() *MemLedger {
	l := &MemLedger{}
	for i := range l.shards {
		l.shards[i].entries = make(map[moderation.UserKey][]Entry)
	}
	return l
}

func shardIndex(key moderation.UserKey) uint64 {
	return murmur3.Sum64([]byte(key.String())) % memShards
}

func (l *MemLedger) shard(key moderation.UserKey) *memShard {
	return &l.shards[shardIndex(key)]
}

func (l *MemLedger) Record(ctx context.Context, key moderation.UserKey, v moderation.Violation, points int) error {
	s := l.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = append(s.entries[key], Entry{Kind: v.Kind, Points: points, DetectedAt: v.DetectedAt})
	return nil
}

func (l *MemLedger) TotalPoints(ctx context.Context, key moderation.UserKey, window time.Duration, now time.Time) (int, error) {
	cutoff := now.Add(-window)
	s := l.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, e := range s.entries[key] {
		if e.DetectedAt.After(cutoff) {
			total += e.Points
		}
	}
	return total, nil
}

func (l *MemLedger) OffenseCount(ctx context.Context, key moderation.UserKey, kind moderation.ViolationKind, window time.Duration, now time.Time) (int, error) {
	cutoff := now.Add(-window)
	s := l.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, e := range s.entries[key] {
		if e.Kind == kind && e.DetectedAt.After(cutoff) {
			count++
		}
	}
	return count, nil
}

func (l *MemLedger) Sweep(ctx context.Context, olderThan time.Time) error {
	for i := range l.shards {
		if err := ctx.Err(); err != nil {
			return err
		}
		s := &l.shards[i]
		s.mu.Lock()
		for key, entries := range s.entries {
			kept := entries[:0]
			for _, e := range entries {
				if e.DetectedAt.After(olderThan) {
					kept = append(kept, e)
				}
			}
			if len(kept) == 0 {
				delete(s.entries, key)
			} else {
				s.entries[key] = kept
			}
		}
		s.mu.Unlock()
	}
	return nil
}
