package sanction

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nomi-labs/guardian/moderation"
)

var (
	redisSanctionPrefix = "sanction/"
	redisOffensePrefix  = "offense/"
	redisAuditKey       = "sanction-audit"
)

const redisOffenseRetention = 31 * 24 * time.Hour

// RedisStore keeps each sanction as a hash whose TTL is the sanction expiry,
// so lazy expiry is native; permanent sanctions simply carry no TTL. Offense
// events live in a per-key sorted set scored by time.
type RedisStore struct {
	Client *redis.Client

	nonce atomic.Uint64
}

func NewRedisStore(redisURL string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	if _, err := rdb.Ping(context.TODO()).Result(); err != nil {
		return nil, err
	}
	return &RedisStore{Client: rdb}, nil
}

func sanctionKey(key moderation.UserKey, kind Kind) string {
	return redisSanctionPrefix + string(kind) + "/" + key.String()
}

func offenseKey(key moderation.UserKey) string {
	return redisOffensePrefix + key.String()
}

func (s *RedisStore) Apply(ctx context.Context, key moderation.UserKey, kind Kind, cause moderation.ViolationKind, duration time.Duration, reason string, now time.Time) (Sanction, error) {
	next := Sanction{Key: key, Kind: kind, AppliedAt: now, Reason: reason}
	if duration > 0 {
		exp := now.Add(duration)
		next.ExpiresAt = &exp
	}

	// never shorten: fold in a longer existing expiry before overwriting
	if prev, active, err := s.Get(ctx, key, kind, now); err != nil {
		return Sanction{}, err
	} else if active {
		if prev.ExpiresAt == nil {
			next.ExpiresAt = nil
		} else if next.ExpiresAt != nil && prev.ExpiresAt.After(*next.ExpiresAt) {
			next.ExpiresAt = prev.ExpiresAt
		}
	}

	k := sanctionKey(key, kind)
	expiresField := int64(0)
	if next.ExpiresAt != nil {
		expiresField = next.ExpiresAt.UnixMilli()
	}

	multi := s.Client.Pipeline()
	multi.HSet(ctx, k,
		"applied_at", now.UnixMilli(),
		"expires_at", expiresField,
		"reason", reason,
	)
	if next.ExpiresAt != nil {
		multi.PExpireAt(ctx, k, *next.ExpiresAt)
	} else {
		multi.Persist(ctx, k)
	}

	ok := offenseKey(key)
	member := fmt.Sprintf("%s/%d", cause, s.nonce.Add(1))
	multi.ZAdd(ctx, ok, redis.Z{Score: float64(now.UnixMilli()), Member: member})
	cutoff := now.Add(-redisOffenseRetention).UnixMilli()
	multi.ZRemRangeByScore(ctx, ok, "-inf", strconv.FormatInt(cutoff, 10))
	multi.Expire(ctx, ok, redisOffenseRetention)

	if _, err := multi.Exec(ctx); err != nil {
		return Sanction{}, err
	}
	s.pushAudit(ctx, AuditEntry{Key: key, Kind: kind, Op: OpApply, Reason: reason, At: now})
	return next, nil
}

func (s *RedisStore) Get(ctx context.Context, key moderation.UserKey, kind Kind, now time.Time) (Sanction, bool, error) {
	fields, err := s.Client.HGetAll(ctx, sanctionKey(key, kind)).Result()
	if err != nil {
		return Sanction{}, false, err
	}
	if len(fields) == 0 {
		return Sanction{}, false, nil
	}
	appliedMs, _ := strconv.ParseInt(fields["applied_at"], 10, 64)
	expiresMs, _ := strconv.ParseInt(fields["expires_at"], 10, 64)
	sanc := Sanction{
		Key:       key,
		Kind:      kind,
		AppliedAt: time.UnixMilli(appliedMs),
		Reason:    fields["reason"],
	}
	if expiresMs > 0 {
		exp := time.UnixMilli(expiresMs)
		sanc.ExpiresAt = &exp
	}
	if sanc.ExpiredAt(now) {
		// redis TTL removes it on its own clock; honor ours too
		_ = s.Client.Del(ctx, sanctionKey(key, kind)).Err()
		return Sanction{}, false, nil
	}
	return sanc, true, nil
}

func (s *RedisStore) IsActive(ctx context.Context, key moderation.UserKey, kind Kind, now time.Time) (bool, error) {
	_, active, err := s.Get(ctx, key, kind, now)
	return active, err
}

func (s *RedisStore) Revoke(ctx context.Context, key moderation.UserKey, kind Kind, reason string, now time.Time) (bool, error) {
	_, active, err := s.Get(ctx, key, kind, now)
	if err != nil || !active {
		return false, err
	}
	if err := s.Client.Del(ctx, sanctionKey(key, kind)).Err(); err != nil {
		return false, err
	}
	s.pushAudit(ctx, AuditEntry{Key: key, Kind: kind, Op: OpRevoke, Reason: reason, At: now})
	return true, nil
}

func (s *RedisStore) CountOffenses(ctx context.Context, key moderation.UserKey, cause moderation.ViolationKind, since time.Time) (int, error) {
	members, err := s.Client.ZRangeByScore(ctx, offenseKey(key), &redis.ZRangeBy{
		Min: "(" + strconv.FormatInt(since.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return 0, err
	}
	count := 0
	prefix := string(cause) + "/"
	for _, m := range members {
		if strings.HasPrefix(m, prefix) {
			count++
		}
	}
	return count, nil
}

func (s *RedisStore) Sweep(ctx context.Context, now time.Time) error {
	// redis TTLs expire sanctions and offense sets on their own
	return nil
}

func (s *RedisStore) pushAudit(ctx context.Context, e AuditEntry) {
	b, err := json.Marshal(e)
	if err != nil {
		return
	}
	multi := s.Client.Pipeline()
	multi.LPush(ctx, redisAuditKey, b)
	multi.LTrim(ctx, redisAuditKey, 0, auditRingCap-1)
	_, _ = multi.Exec(ctx)
}
