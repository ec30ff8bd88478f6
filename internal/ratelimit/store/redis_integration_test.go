//go:build integration

package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"mindlink/internal/ratelimit/models"
	"mindlink/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	ctx   context.Context
	redis *containers.RedisContainer
	store *RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	s.redis = containers.NewRedisContainer(s.T())
	s.store = NewRedis(s.redis.Client)
}

func (s *RedisStoreSuite) TearDownSuite() {
	s.redis.Terminate(s.ctx)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.Client.FlushAll(s.ctx).Err())
	// pin the clock mid-window so the test never straddles a boundary
	s.store.now = func() time.Time { return time.Date(2026, 1, 1, 12, 0, 30, 0, time.UTC) }
}

func (s *RedisStoreSuite) TestFixedWindow() {
	policy := models.Policy{Limit: 3, Window: time.Minute}

	for i := 0; i < 3; i++ {
		res, err := s.store.Allow(s.ctx, "k", policy)
		s.Require().NoError(err)
		s.True(res.Allowed)
		s.Equal(2-i, res.Remaining)
	}

	res, err := s.store.Allow(s.ctx, "k", policy)
	s.Require().NoError(err)
	s.False(res.Allowed)
	s.Equal(30, res.RetryAfter)

	windowKey := fmt.Sprintf("k:%d", time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC).Unix())
	ttl, err := s.redis.Client.TTL(s.ctx, windowKey).Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))
	s.LessOrEqual(ttl, time.Minute)
}
