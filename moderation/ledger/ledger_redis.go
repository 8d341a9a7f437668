package ledger

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nomi-labs/guardian/moderation"
)

var redisLedgerPrefix = "ledger/"

// RedisLedger keeps one sorted set per key, scored by detection time, so
// windowed sums and counts are single round-trips and decay is a range
// removal. Keys expire at twice the maximum window, so abandoned users cost
// nothing; Sweep is therefore a no-op.
type RedisLedger struct {
	Client *redis.Client
	// Maximum window any caller will query; bounds both member pruning and
	// key TTL.
	MaxWindow time.Duration

	nonce atomic.Uint64
}

func NewRedisLedger(redisURL string, maxWindow time.Duration) (*RedisLedger, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	if _, err := rdb.Ping(context.TODO()).Result(); err != nil {
		return nil, err
	}
	return &RedisLedger{Client: rdb, MaxWindow: maxWindow}, nil
}

func (l *RedisLedger) redisKey(key moderation.UserKey) string {
	return redisLedgerPrefix + key.String()
}

func (l *RedisLedger) Record(ctx context.Context, key moderation.UserKey, v moderation.Violation, points int) error {
	member := fmt.Sprintf("%s/%d/%d", v.Kind, points, l.nonce.Add(1))
	score := float64(v.DetectedAt.UnixMilli())
	k := l.redisKey(key)

	// append, prune anything past the maximum window, and refresh the TTL in
	// one round-trip
	multi := l.Client.Pipeline()
	multi.ZAdd(ctx, k, redis.Z{Score: score, Member: member})
	cutoff := v.DetectedAt.Add(-l.MaxWindow).UnixMilli()
	multi.ZRemRangeByScore(ctx, k, "-inf", strconv.FormatInt(cutoff, 10))
	multi.Expire(ctx, k, 2*l.MaxWindow)
	_, err := multi.Exec(ctx)
	return err
}

func (l *RedisLedger) fetchWindow(ctx context.Context, key moderation.UserKey, window time.Duration, now time.Time) ([]string, error) {
	cutoff := now.Add(-window).UnixMilli()
	return l.Client.ZRangeByScore(ctx, l.redisKey(key), &redis.ZRangeBy{
		Min: "(" + strconv.FormatInt(cutoff, 10),
		Max: "+inf",
	}).Result()
}

func (l *RedisLedger) TotalPoints(ctx context.Context, key moderation.UserKey, window time.Duration, now time.Time) (int, error) {
	members, err := l.fetchWindow(ctx, key, window, now)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, m := range members {
		_, points, ok := parseMember(m)
		if !ok {
			continue
		}
		total += points
	}
	return total, nil
}

func (l *RedisLedger) OffenseCount(ctx context.Context, key moderation.UserKey, kind moderation.ViolationKind, window time.Duration, now time.Time) (int, error) {
	members, err := l.fetchWindow(ctx, key, window, now)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, m := range members {
		k, _, ok := parseMember(m)
		if ok && k == kind {
			count++
		}
	}
	return count, nil
}

func (l *RedisLedger) Sweep(ctx context.Context, olderThan time.Time) error {
	// per-key TTL and write-time pruning already bound memory
	return nil
}

func parseMember(m string) (moderation.ViolationKind, int, bool) {
	parts := strings.SplitN(m, "/", 3)
	if len(parts) != 3 {
		return "", 0, false
	}
	points, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, false
	}
	return moderation.ViolationKind(parts[0]), points, true
}
