package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("MINDLINK_ADDR", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("MAX_DONATION_CENTS", "")

	cfg := FromEnv()

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.Audit.KafkaBrokers)
	assert.Equal(t, int64(100_000_000), cfg.Ledger.MaxDonationCents)
	assert.Equal(t, 24*time.Hour, cfg.Ledger.IdempotencyTTL)
	assert.False(t, cfg.RateLimit.Disabled)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("MINDLINK_ADDR", ":9090")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("IDEMPOTENCY_TTL", "15m")
	t.Setenv("REDIS_POOL_SIZE", "25")
	t.Setenv("REQUEST_TIMEOUT", "not-a-duration")
	t.Setenv("RATE_LIMIT_DISABLED", "true")

	cfg := FromEnv()

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Audit.KafkaBrokers)
	assert.Equal(t, 15*time.Minute, cfg.Ledger.IdempotencyTTL)
	assert.Equal(t, 25, cfg.Redis.PoolSize)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout, "invalid durations fall back to the default")
	assert.True(t, cfg.RateLimit.Disabled)
}
