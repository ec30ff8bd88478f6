package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"mindlink/internal/ratelimit/models"
	"mindlink/pkg/platform/circuit"
	"mindlink/pkg/platform/httputil"
	"mindlink/pkg/requestcontext"
)

// Store counts requests per key within a policy window.
type Store interface {
	Allow(ctx context.Context, key string, policy models.Policy) (*models.Result, error)
}

// Observer receives rejection and failure counts.
type Observer interface {
	IncrementRejections(class string)
	IncrementErrors()
}

type Middleware struct {
	store    Store
	policies map[models.EndpointClass]models.Policy
	logger   *slog.Logger
	observer Observer
	disabled bool

	fallback Store
	breaker  *circuit.Breaker
}

type Option func(*Middleware)

// WithDisabled disables rate limiting entirely (for local runs and tests).
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

func WithPolicy(class models.EndpointClass, policy models.Policy) Option {
	return func(m *Middleware) {
		m.policies[class] = policy
	}
}

// WithFallback counts requests in fallback while the primary store is failing.
// Responses served from it carry X-RateLimit-Status: degraded.
func WithFallback(fallback Store, breaker *circuit.Breaker) Option {
	return func(m *Middleware) {
		m.fallback = fallback
		m.breaker = breaker
	}
}

func WithObserver(observer Observer) Option {
	return func(m *Middleware) {
		m.observer = observer
	}
}

func New(store Store, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		store:    store,
		logger:   logger,
		policies: make(map[models.EndpointClass]models.Policy),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.fallback != nil && m.breaker == nil {
		m.breaker = circuit.New("ratelimit")
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// RateLimit limits write requests per client IP for class. Reads, classes without a
// policy, and checks against a failing store pass through.
func (m *Middleware) RateLimit(class models.EndpointClass) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			policy, ok := m.policies[class]
			if m.disabled || !ok || policy.Limit <= 0 || isSafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			result, degraded, err := m.allow(ctx, models.Key(class, clientIP(r)), policy)
			if err != nil {
				m.logger.ErrorContext(ctx, "failed to check rate limit",
					"error", err,
					"class", string(class),
					"request_id", requestcontext.RequestID(ctx),
				)
				next.ServeHTTP(w, r)
				return
			}

			if degraded {
				w.Header().Set("X-RateLimit-Status", "degraded")
			}
			addRateLimitHeaders(w, result)
			if !result.Allowed {
				m.logger.WarnContext(ctx, "rate limit exceeded",
					"class", string(class),
					"request_id", requestcontext.RequestID(ctx),
				)
				if m.observer != nil {
					m.observer.IncrementRejections(string(class))
				}
				writeRateLimitExceeded(w, result)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// allow checks the primary store, switching to the fallback while the breaker is open.
func (m *Middleware) allow(ctx context.Context, key string, policy models.Policy) (*models.Result, bool, error) {
	result, err := m.store.Allow(ctx, key, policy)
	if err != nil && m.observer != nil {
		m.observer.IncrementErrors()
	}
	if m.fallback == nil {
		return result, false, err
	}

	if err != nil {
		useFallback, change := m.breaker.RecordFailure()
		if change.Opened {
			m.logger.WarnContext(ctx, "rate limit store unavailable, using in-memory fallback",
				"breaker", m.breaker.Name(),
				"error", err,
			)
		}
		if !useFallback {
			return nil, false, err
		}
	} else {
		usePrimary, change := m.breaker.RecordSuccess()
		if change.Closed {
			m.logger.InfoContext(ctx, "rate limit store recovered", "breaker", m.breaker.Name())
		}
		if usePrimary {
			return result, false, nil
		}
	}

	result, err = m.fallback.Allow(ctx, key, policy)
	return result, true, err
}

func isSafeMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}

// clientIP reads RemoteAddr, which chi's RealIP middleware rewrites from proxy headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.Result) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.ExceededResponse{
		Error:      "rate_limit_exceeded",
		Message:    "Too many requests from this IP address. Please try again later.",
		RetryAfter: result.RetryAfter,
	})
}
