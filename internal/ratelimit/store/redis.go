package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"mindlink/internal/ratelimit/models"
)

// RedisStore implements a fixed window counter shared by every replica.
type RedisStore struct {
	client redis.UniversalClient
	now    func() time.Time
}

func NewRedis(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

// Allow increments the counter of the current window and sets its expiry on first use.
func (s *RedisStore) Allow(ctx context.Context, key string, policy models.Policy) (*models.Result, error) {
	now := s.now()
	windowStart := now.Truncate(policy.Window)
	resetAt := windowStart.Add(policy.Window)
	windowKey := fmt.Sprintf("%s:%d", key, windowStart.Unix())

	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, windowKey)
		pipe.ExpireNX(ctx, windowKey, policy.Window)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("rate limit counter: %w", err)
	}

	count := int(incr.Val())
	if count > policy.Limit {
		return &models.Result{
			Allowed:    false,
			Limit:      policy.Limit,
			ResetAt:    resetAt,
			RetryAfter: models.RetryAfterSeconds(now, resetAt),
		}, nil
	}
	return &models.Result{
		Allowed:   true,
		Limit:     policy.Limit,
		Remaining: policy.Limit - count,
		ResetAt:   resetAt,
	}, nil
}
