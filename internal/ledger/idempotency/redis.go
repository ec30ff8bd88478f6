package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"mindlink/internal/ledger/ports"
)

const keyPrefix = "mindlink:idempotency:donation:"

// RedisStore shares reservations across replicas with SET NX. Redis expires the keys.
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedis(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Reserve(ctx context.Context, key, fingerprint string, ttl time.Duration) (bool, ports.Reservation, error) {
	pending := encode(ports.Reservation{Fingerprint: fingerprint})
	ok, err := s.client.SetNX(ctx, keyPrefix+key, pending, ttl).Result()
	if err != nil {
		return false, ports.Reservation{}, fmt.Errorf("reserve idempotency key: %w", err)
	}
	if ok {
		return true, ports.Reservation{}, nil
	}

	value, err := s.client.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET; treat as in flight so the client retries.
		return false, ports.Reservation{Fingerprint: fingerprint}, nil
	}
	if err != nil {
		return false, ports.Reservation{}, fmt.Errorf("read idempotency key: %w", err)
	}
	return false, decode(value), nil
}

func (s *RedisStore) Complete(ctx context.Context, key string, r ports.Reservation, ttl time.Duration) error {
	if err := s.client.Set(ctx, keyPrefix+key, encode(r), ttl).Err(); err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	return nil
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}
