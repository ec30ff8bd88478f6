package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"mindlink/internal/ledger/idempotency"
	"mindlink/internal/ledger/ports"
	ledgerservice "mindlink/internal/ledger/service"
	ledgerstore "mindlink/internal/ledger/store"
	"mindlink/internal/platform/config"
	"mindlink/internal/platform/postgres"
	platformredis "mindlink/internal/platform/redis"
	providerservice "mindlink/internal/provider/service"
	providerstore "mindlink/internal/provider/store"
	ratelimitmw "mindlink/internal/ratelimit/middleware"
	ratelimitstore "mindlink/internal/ratelimit/store"
	audit "mindlink/pkg/platform/audit"
	auditmemory "mindlink/pkg/platform/audit/store/memory"
	auditpostgres "mindlink/pkg/platform/audit/store/postgres"
)

// backends holds the stores chosen from configuration. Postgres backs all three
// containers when DATABASE_URL is set; Redis backs idempotency keys and rate limit
// counters when REDIS_URL is set.
type backends struct {
	db    *sql.DB
	redis *goredis.Client

	providers   providerservice.Store
	ledger      ledgerservice.Store
	audit       audit.Store
	idempotency ports.IdempotencyStore
	rateLimits  ratelimitmw.Store
}

func openBackends(ctx context.Context, cfg config.Server, log *slog.Logger) (*backends, error) {
	b := &backends{}

	if cfg.DatabaseURL == "" {
		log.Info("using in-memory stores")
		b.providers = providerstore.NewInMemory()
		b.ledger = ledgerstore.NewInMemory()
		b.audit = auditmemory.NewInMemoryStore()
	} else {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := postgres.Apply(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		log.Info("using postgres stores")
		b.db = db
		b.providers = providerstore.NewPostgres(db)
		b.ledger = ledgerstore.NewPostgres(db)
		b.audit = auditpostgres.New(db)
	}

	client, err := platformredis.Open(ctx, cfg.Redis)
	if err != nil {
		b.close()
		return nil, err
	}
	if client == nil {
		log.Info("using in-memory idempotency keys and rate limits")
		b.idempotency = idempotency.NewInMemory()
		b.rateLimits = ratelimitstore.NewInMemory()
	} else {
		log.Info("using redis idempotency keys and rate limits")
		b.redis = client
		b.idempotency = idempotency.NewRedis(client)
		b.rateLimits = ratelimitstore.NewRedis(client)
	}
	return b, nil
}

// health pings whichever external backends are configured.
func (b *backends) health(ctx context.Context) error {
	if b.db != nil {
		if err := b.db.PingContext(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	if b.redis != nil {
		if err := b.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

func (b *backends) close() {
	if b.redis != nil {
		_ = b.redis.Close()
	}
	if b.db != nil {
		_ = b.db.Close()
	}
}
