package sanction

import (
	"context"
	"sync"
	"time"

	"github.com/spaolacci/murmur3"

	"github.com/nomi-labs/guardian/moderation"
)

const (
	memShards    = 64
	auditRingCap = 1024
)

type offenseEvent struct {
	cause moderation.ViolationKind
	at    time.Time
}

// MemStore is the in-process implementation: a fixed array of mutex-guarded
// shards indexed by key hash, so evaluation for different keys never contends
// and sweeps hold one shard at a time.
type MemStore struct {
	shards [memShards]memShard

	auditMu sync.Mutex
	audit   []AuditEntry
}

type memShard struct {
	mu        sync.Mutex
	sanctions map[moderation.UserKey]map[Kind]Sanction
	offenses  map[moderation.UserKey][]offenseEvent
}

func NewMemStore() *MemStore {
	s := &MemStore{}
	for i := range s.shards {
		s.shards[i].sanctions = make(map[moderation.UserKey]map[Kind]Sanction)
		s.shards[i].offenses = make(map[moderation.UserKey][]offenseEvent)
	}
	return s
}

func (s *MemStore) shard(key moderation.UserKey) *memShard {
	return &s.shards[murmur3.Sum64([]byte(key.String()))%memShards]
}

func (s *MemStore) appendAudit(e AuditEntry) {
	s.auditMu.Lock()
	defer s.auditMu.Unlock()
	s.audit = append(s.audit, e)
	if len(s.audit) > auditRingCap {
		s.audit = s.audit[len(s.audit)-auditRingCap:]
	}
}

// Audit returns a copy of the retained audit trail, oldest first.
func (s *MemStore) Audit() []AuditEntry {
	s.auditMu.Lock()
	defer s.auditMu.Unlock()
	return append([]AuditEntry(nil), s.audit...)
}

func (s *MemStore) Apply(ctx context.Context, key moderation.UserKey, kind Kind, cause moderation.ViolationKind, duration time.Duration, reason string, now time.Time) (Sanction, error) {
	next := Sanction{Key: key, Kind: kind, AppliedAt: now, Reason: reason}
	if duration > 0 {
		exp := now.Add(duration)
		next.ExpiresAt = &exp
	}

	sh := s.shard(key)
	sh.mu.Lock()
	byKind, ok := sh.sanctions[key]
	if !ok {
		byKind = make(map[Kind]Sanction)
		sh.sanctions[key] = byKind
	}
	op := OpApply
	if prev, exists := byKind[kind]; exists && !prev.ExpiredAt(now) {
		op = OpReplace
		// never shorten: keep the longer (or permanent) existing expiry
		if prev.ExpiresAt == nil {
			next.ExpiresAt = nil
		} else if next.ExpiresAt != nil && prev.ExpiresAt.After(*next.ExpiresAt) {
			next.ExpiresAt = prev.ExpiresAt
		}
	}
	byKind[kind] = next
	sh.offenses[key] = append(sh.offenses[key], offenseEvent{cause: cause, at: now})
	sh.mu.Unlock()

	s.appendAudit(AuditEntry{Key: key, Kind: kind, Op: op, Reason: reason, At: now})
	return next, nil
}

func (s *MemStore) Get(ctx context.Context, key moderation.UserKey, kind Kind, now time.Time) (Sanction, bool, error) {
	sh := s.shard(key)
	sh.mu.Lock()
	sanc, ok := sh.sanctions[key][kind]
	if ok && sanc.ExpiredAt(now) {
		delete(sh.sanctions[key], kind)
		sh.mu.Unlock()
		s.appendAudit(AuditEntry{Key: key, Kind: kind, Op: OpExpire, Reason: sanc.Reason, At: now})
		return Sanction{}, false, nil
	}
	sh.mu.Unlock()
	if !ok {
		return Sanction{}, false, nil
	}
	return sanc, true, nil
}

func (s *MemStore) IsActive(ctx context.Context, key moderation.UserKey, kind Kind, now time.Time) (bool, error) {
	_, active, err := s.Get(ctx, key, kind, now)
	return active, err
}

func (s *MemStore) Revoke(ctx context.Context, key moderation.UserKey, kind Kind, reason string, now time.Time) (bool, error) {
	sh := s.shard(key)
	sh.mu.Lock()
	sanc, ok := sh.sanctions[key][kind]
	if ok {
		delete(sh.sanctions[key], kind)
	}
	sh.mu.Unlock()
	if !ok || sanc.ExpiredAt(now) {
		return false, nil
	}
	s.appendAudit(AuditEntry{Key: key, Kind: kind, Op: OpRevoke, Reason: reason, At: now})
	return true, nil
}

func (s *MemStore) CountOffenses(ctx context.Context, key moderation.UserKey, cause moderation.ViolationKind, since time.Time) (int, error) {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	count := 0
	for _, ev := range sh.offenses[key] {
		if ev.cause == cause && ev.at.After(since) {
			count++
		}
	}
	return count, nil
}

func (s *MemStore) Sweep(ctx context.Context, now time.Time) error {
	// offense events older than this are useless to any escalation lookback
	offenseCutoff := now.Add(-31 * 24 * time.Hour)
	for i := range s.shards {
		if err := ctx.Err(); err != nil {
			return err
		}
		sh := &s.shards[i]
		var expired []AuditEntry
		sh.mu.Lock()
		for key, byKind := range sh.sanctions {
			for kind, sanc := range byKind {
				if sanc.ExpiredAt(now) {
					delete(byKind, kind)
					expired = append(expired, AuditEntry{Key: key, Kind: kind, Op: OpExpire, Reason: sanc.Reason, At: now})
				}
			}
			if len(byKind) == 0 {
				delete(sh.sanctions, key)
			}
		}
		for key, events := range sh.offenses {
			kept := events[:0]
			for _, ev := range events {
				if ev.at.After(offenseCutoff) {
					kept = append(kept, ev)
				}
			}
			if len(kept) == 0 {
				delete(sh.offenses, key)
			} else {
				sh.offenses[key] = kept
			}
		}
		sh.mu.Unlock()
		for _, e := range expired {
			s.appendAudit(e)
		}
	}
	return nil
}
