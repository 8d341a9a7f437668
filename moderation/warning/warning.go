// Warning issuance and the warning point pool. Warnings are independent of
// sanctions but their active points feed the same escalation thresholds, so
// enough accumulated warnings can trigger a mute or ban on their own.
package warning

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nomi-labs/guardian/moderation"
)

type Level string

const (
	LevelInfo     Level = "info"
	LevelWarning  Level = "warning"
	LevelSevere   Level = "severe"
	LevelCritical Level = "critical"
)

// Default points contributed per level.
var levelPoints = map[Level]int{
	LevelInfo:     1,
	LevelWarning:  5,
	LevelSevere:   10,
	LevelCritical: 20,
}

func LevelForSeverity(severity int) Level {
	switch {
	case severity >= 9:
		return LevelCritical
	case severity >= 6:
		return LevelSevere
	case severity >= 3:
		return LevelWarning
	}
	return LevelInfo
}

type Warning struct {
	ID        string
	Key       moderation.UserKey
	Level     Level
	Points    int
	Reason    string
	IssuedAt  time.Time
	ExpiresAt *time.Time
}

func (w Warning) ExpiredAt(now time.Time) bool {
	return w.ExpiresAt != nil && !now.Before(*w.ExpiresAt)
}

type Store interface {
	// Issue records a warning. Points zero takes the level default. TTL zero
	// means the warning never expires.
	Issue(ctx context.Context, key moderation.UserKey, level Level, points int, reason string, ttl time.Duration, now time.Time) (Warning, error)
	// ActivePoints sums the points of non-expired warnings.
	ActivePoints(ctx context.Context, key moderation.UserKey, now time.Time) (int, error)
	// Active lists non-expired warnings, oldest first.
	Active(ctx context.Context, key moderation.UserKey, now time.Time) ([]Warning, error)
	// Sweep purges expired warnings.
	Sweep(ctx context.Context, now time.Time) error
}

// MemStore is the in-process warning pool.
type MemStore struct {
	mu       sync.Mutex
	warnings map[moderation.UserKey][]Warning
	seq      atomic.Uint64
}

func NewMemStore() *MemStore {
	return &MemStore{warnings: make(map[moderation.UserKey][]Warning)}
}

func (s *MemStore) Issue(ctx context.Context, key moderation.UserKey, level Level, points int, reason string, ttl time.Duration, now time.Time) (Warning, error) {
	if points <= 0 {
		points = levelPoints[level]
	}
	w := Warning{
		ID:       fmt.Sprintf("w-%d-%d", now.UnixMilli(), s.seq.Add(1)),
		Key:      key,
		Level:    level,
		Points:   points,
		Reason:   reason,
		IssuedAt: now,
	}
	if ttl > 0 {
		exp := now.Add(ttl)
		w.ExpiresAt = &exp
	}
	s.mu.Lock()
	s.warnings[key] = append(s.warnings[key], w)
	s.mu.Unlock()
	return w, nil
}

func (s *MemStore) ActivePoints(ctx context.Context, key moderation.UserKey, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, w := range s.warnings[key] {
		if !w.ExpiredAt(now) {
			total += w.Points
		}
	}
	return total, nil
}

func (s *MemStore) Active(ctx context.Context, key moderation.UserKey, now time.Time) ([]Warning, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Warning
	for _, w := range s.warnings[key] {
		if !w.ExpiredAt(now) {
			out = append(out, w)
		}
	}
	return out, nil
}

func (s *MemStore) Sweep(ctx context.Context, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, list := range s.warnings {
		kept := list[:0]
		for _, w := range list {
			if !w.ExpiredAt(now) {
				kept = append(kept, w)
			}
		}
		if len(kept) == 0 {
			delete(s.warnings, key)
		} else {
			s.warnings[key] = kept
		}
	}
	return nil
}
