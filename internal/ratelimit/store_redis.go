package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "rollcall:ratelimit:"

// RedisWindowStore implements WindowStore on a Redis sorted set per key,
// scored by unix nanoseconds. Use it when attempts must survive restarts or
// be shared across replicas.
type RedisWindowStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisWindowStore(client *redis.Client) *RedisWindowStore {
	return &RedisWindowStore{client: client, ttl: 2 * Window}
}

func (s *RedisWindowStore) Count(ctx context.Context, key string, cutoff time.Time) (int, error) {
	rkey := redisKeyPrefix + key
	if err := s.prune(ctx, rkey, cutoff); err != nil {
		return 0, err
	}
	n, err := s.client.ZCard(ctx, rkey).Result()
	if err != nil {
		return 0, fmt.Errorf("zcard %s: %w", rkey, err)
	}
	return int(n), nil
}

func (s *RedisWindowStore) Append(ctx context.Context, key string, at time.Time) error {
	rkey := redisKeyPrefix + key
	member := strconv.FormatInt(at.UnixNano(), 10)
	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, rkey, redis.Z{Score: float64(at.UnixNano()), Member: member})
	pipe.Expire(ctx, rkey, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("zadd %s: %w", rkey, err)
	}
	return nil
}

func (s *RedisWindowStore) Oldest(ctx context.Context, key string, cutoff time.Time) (time.Time, bool, error) {
	rkey := redisKeyPrefix + key
	if err := s.prune(ctx, rkey, cutoff); err != nil {
		return time.Time{}, false, err
	}
	entries, err := s.client.ZRangeWithScores(ctx, rkey, 0, 0).Result()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("zrange %s: %w", rkey, err)
	}
	if len(entries) == 0 {
		return time.Time{}, false, nil
	}
	return time.Unix(0, int64(entries[0].Score)), true, nil
}

func (s *RedisWindowStore) prune(ctx context.Context, rkey string, cutoff time.Time) error {
	maxScore := strconv.FormatInt(cutoff.UnixNano(), 10)
	if err := s.client.ZRemRangeByScore(ctx, rkey, "-inf", maxScore).Err(); err != nil {
		return fmt.Errorf("zremrangebyscore %s: %w", rkey, err)
	}
	return nil
}
