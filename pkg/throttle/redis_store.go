package throttle

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// recordScript prunes expired timestamps, then records a new one only if
// the live count is below the limit. Running it as a single Lua script keeps
// check-and-record atomic across engine instances.
var recordScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local cutoff = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]
local ttl = tonumber(ARGV[5])

redis.call('ZREMRANGEBYSCORE', key, 0, cutoff)
local count = redis.call('ZCARD', key)
if count >= limit then
	return {0, count}
end
redis.call('ZADD', key, now, member)
redis.call('PEXPIRE', key, ttl)
return {1, count + 1}
`)

// RedisStore is a Redis-backed sliding-window store. Timestamps live in a
// sorted set per recipient, scored by unix nanoseconds, so multiple engine
// instances share one throttle window.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithKeyPrefix overrides the default "throttle:" key prefix.
func WithKeyPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.keyPrefix = prefix
		}
	}
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client redis.UniversalClient, opts ...RedisStoreOption) (*RedisStore, error) {
	if client == nil {
		return nil, ErrStoreRequired
	}

	s := &RedisStore{
		client:    client,
		keyPrefix: "throttle:",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *RedisStore) RecordIfAllowed(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (bool, int, error) {
	cutoff := now.Add(-window).UnixNano()

	res, err := recordScript.Run(ctx, s.client, []string{s.keyPrefix + key},
		now.UnixNano(),
		cutoff,
		limit,
		uuid.New().String(),
		window.Milliseconds(),
	).Slice()
	if err != nil {
		return false, 0, fmt.Errorf("throttle: redis record failed: %w", err)
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("throttle: unexpected script result %v", res)
	}

	allowed, ok1 := res[0].(int64)
	count, ok2 := res[1].(int64)
	if !ok1 || !ok2 {
		return false, 0, fmt.Errorf("throttle: unexpected script result types %v", res)
	}
	return allowed == 1, int(count), nil
}

func (s *RedisStore) CountInWindow(ctx context.Context, key string, now time.Time, window time.Duration) (int, error) {
	cutoff := strconv.FormatInt(now.Add(-window).UnixNano(), 10)

	count, err := s.client.ZCount(ctx, s.keyPrefix+key, cutoff, "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("throttle: redis count failed: %w", err)
	}
	return int(count), nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("throttle: redis delete failed: %w", err)
	}
	return nil
}
