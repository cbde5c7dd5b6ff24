package store

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/serroba/shortlink/internal/ratelimit"
)

// RateLimitRedisStore keeps one sorted set of request timestamps per key so
// several server instances share the same windows.
type RateLimitRedisStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// RateLimitRedisOption configures a RateLimitRedisStore.
type RateLimitRedisOption func(*RateLimitRedisStore)

// WithRedisRateLimitClock overrides the time source.
func WithRedisRateLimitClock(now func() time.Time) RateLimitRedisOption {
	return func(s *RateLimitRedisStore) {
		s.now = now
	}
}

// NewRateLimitRedisStore creates a Redis-backed rate limit store.
func NewRateLimitRedisStore(client *redis.Client, opts ...RateLimitRedisOption) *RateLimitRedisStore {
	s := &RateLimitRedisStore{
		client: client,
		prefix: "ratelimit:",
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *RateLimitRedisStore) Record(ctx context.Context, key string, window time.Duration) (int64, error) {
	now := s.now()
	redisKey := s.prefix + key
	// Hits exactly one window old fall out, as in RateLimitMemoryStore.
	cutoff := strconv.FormatInt(now.Add(-window).UnixNano(), 10)

	pipe := s.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", cutoff)
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: uuid.NewString()})
	count := pipe.ZCard(ctx, redisKey)
	pipe.PExpire(ctx, redisKey, window)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}

	return count.Val(), nil
}

func (s *RateLimitRedisStore) Block(ctx context.Context, key string, duration time.Duration) error {
	until := s.now().Add(duration).UnixNano()

	return s.client.Set(ctx, s.prefix+"block:"+key, until, duration).Err()
}

func (s *RateLimitRedisStore) BlockedFor(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.client.PTTL(ctx, s.prefix+"block:"+key).Result()
	if err != nil {
		return 0, err
	}

	if ttl <= 0 {
		return 0, nil
	}

	return ttl, nil
}

// Compile-time check.
var _ ratelimit.Store = (*RateLimitRedisStore)(nil)
