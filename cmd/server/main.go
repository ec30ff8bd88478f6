package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"mindlink/internal/admin"
	"mindlink/internal/ledger"
	ledgermetrics "mindlink/internal/ledger/metrics"
	ledgerservice "mindlink/internal/ledger/service"
	"mindlink/internal/platform/config"
	"mindlink/internal/platform/httpserver"
	"mindlink/internal/platform/jwt"
	"mindlink/internal/platform/logger"
	"mindlink/internal/platform/metrics"
	"mindlink/internal/platform/middleware"
	"mindlink/internal/provider"
	providermetrics "mindlink/internal/provider/metrics"
	providerservice "mindlink/internal/provider/service"
	ratelimitmetrics "mindlink/internal/ratelimit/metrics"
	ratelimitmw "mindlink/internal/ratelimit/middleware"
	ratelimitmodels "mindlink/internal/ratelimit/models"
	ratelimitstore "mindlink/internal/ratelimit/store"
	"mindlink/pkg/platform/audit/publisher"
	"mindlink/pkg/platform/audit/publishers/kafka"
	"mindlink/pkg/platform/circuit"
	"mindlink/pkg/platform/httputil"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := openBackends(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.close()

	router, cleanup, err := assemble(ctx, cfg, log, b)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := httpserver.New(cfg.Addr, router)
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting mindlink", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// assemble builds the audit pipeline, services and router over the chosen backends.
// cleanup drains the audit buffer and closes the Kafka sink.
func assemble(ctx context.Context, cfg config.Server, log *slog.Logger, b *backends) (http.Handler, func(), error) {
	closeSink := func() {}
	pubOpts := []publisher.Option{
		publisher.WithAsyncBuffer(cfg.Audit.BufferSize),
		publisher.WithLogger(log),
	}
	if len(cfg.Audit.KafkaBrokers) > 0 {
		if err := kafka.EnsureTopic(ctx, cfg.Audit.KafkaBrokers, cfg.Audit.Topic, cfg.Audit.Partitions); err != nil {
			return nil, nil, err
		}
		sink, err := kafka.New(cfg.Audit.KafkaBrokers, cfg.Audit.Topic)
		if err != nil {
			return nil, nil, err
		}
		closeSink = sink.Close
		pubOpts = append(pubOpts, publisher.WithSink(sink))
		log.Info("streaming audit events to kafka", "topic", cfg.Audit.Topic)
	}
	auditPublisher := publisher.NewPublisher(b.audit, pubOpts...)
	cleanup := func() {
		auditPublisher.Close()
		closeSink()
	}

	registry := provider.NewService(b.providers,
		providerservice.WithLogger(log),
		providerservice.WithAuditPublisher(auditPublisher),
		providerservice.WithMetrics(providermetrics.New()),
	)
	engagement, err := ledger.NewService(b.ledger, registry,
		ledgerservice.WithLogger(log),
		ledgerservice.WithAuditPublisher(auditPublisher),
		ledgerservice.WithMetrics(ledgermetrics.New()),
		ledgerservice.WithIdempotency(b.idempotency, cfg.Ledger.IdempotencyTTL),
		ledgerservice.WithMaxDonationCents(cfg.Ledger.MaxDonationCents),
	)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	adminService, err := admin.NewService(registry, engagement, auditPublisher)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	limiterOpts := []ratelimitmw.Option{
		ratelimitmw.WithDisabled(cfg.RateLimit.Disabled),
		ratelimitmw.WithObserver(ratelimitmetrics.New()),
		ratelimitmw.WithPolicy(ratelimitmodels.ClassSubmission, ratelimitmodels.Policy{
			Limit: cfg.RateLimit.SubmissionsLimit, Window: cfg.RateLimit.Window,
		}),
		ratelimitmw.WithPolicy(ratelimitmodels.ClassEngagement, ratelimitmodels.Policy{
			Limit: cfg.RateLimit.EngagementLimit, Window: cfg.RateLimit.Window,
		}),
	}
	if b.redis != nil {
		limiterOpts = append(limiterOpts,
			ratelimitmw.WithFallback(ratelimitstore.NewInMemory(), circuit.New("ratelimit-redis")))
	}
	limiter := ratelimitmw.New(b.rateLimits, log, limiterOpts...)

	tokens := jwt.NewService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
	router := newRouter(routerDeps{
		log:      log,
		timeout:  cfg.RequestTimeout,
		origins:  cfg.CORSOrigins,
		tokens:   tokens,
		limiter:  limiter,
		health:   b.health,
		provider: provider.NewHandler(registry, log),
		ledger:   ledger.NewHandler(engagement, log),
		admin:    admin.NewHandler(adminService, log),
	})

	return router, cleanup, nil
}

type routerDeps struct {
	log      *slog.Logger
	timeout  time.Duration
	origins  []string
	tokens   *jwt.Service
	limiter  *ratelimitmw.Middleware
	health   func(context.Context) error
	provider *provider.Handler
	ledger   *ledger.Handler
	admin    *admin.Handler
}

func newRouter(d routerDeps) http.Handler {
	httpMetrics := metrics.New()

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(d.log))
	r.Use(middleware.Recovery(d.log))
	r.Use(middleware.Latency(httpMetrics))
	if len(d.origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: d.origins,
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID"},
			ExposedHeaders: []string{"Idempotent-Replayed", "Retry-After", "X-Request-ID"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := d.health(r.Context()); err != nil {
			d.log.WarnContext(r.Context(), "health check failed", "error", err)
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(d.timeout))
		r.Use(middleware.ContentTypeJSON)

		d.provider.Register(r.With(d.limiter.RateLimit(ratelimitmodels.ClassSubmission)))
		d.ledger.Register(r.With(d.limiter.RateLimit(ratelimitmodels.ClassEngagement)))
		d.admin.Register(r)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(d.tokens, d.log))
			d.provider.RegisterAdmin(r)
			d.admin.RegisterAdmin(r)
		})
	})
	return r
}
