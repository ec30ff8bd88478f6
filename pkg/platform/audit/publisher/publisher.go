// Package publisher fans audit events out to a Store and optional Sinks.
//
// In sync mode Emit persists before returning. In async mode Emit enqueues onto a
// bounded buffer drained by a background worker; Close drains what is queued.
//
// The store is authoritative. Each sink call is bounded by a timeout, and a sink that
// keeps failing is skipped by its breaker until a cooldown passes, so a dead broker
// cannot stall persistence or shutdown.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	audit "mindlink/pkg/platform/audit"
	"mindlink/pkg/platform/audit/worker"
	"mindlink/pkg/platform/circuit"
)

var errBufferFull = errors.New("audit buffer full")

const (
	defaultSinkTimeout  = 5 * time.Second
	defaultSinkCooldown = 30 * time.Second
	sinkFailureLimit    = 3
)

type sink struct {
	audit.Sink
	breaker *circuit.Breaker
}

type Publisher struct {
	store  audit.Store
	sinks  []sink
	logger *slog.Logger

	sinkTimeout  time.Duration
	sinkCooldown time.Duration

	bufferSize int
	inbox      chan audit.Event
	done       chan struct{}
	closeOnce  sync.Once
}

type Option func(*Publisher)

// WithAsyncBuffer switches the publisher to async mode with a buffer of size n.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		p.bufferSize = n
	}
}

// WithSink adds a downstream sink (e.g. Kafka). Sink failures are logged, not returned.
func WithSink(s audit.Sink) Option {
	return func(p *Publisher) {
		if s != nil {
			p.sinks = append(p.sinks, sink{Sink: s})
		}
	}
}

// WithSinkTimeout bounds each sink publish. Defaults to 5s.
func WithSinkTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.sinkTimeout = d
		}
	}
}

// WithSinkCooldown sets how long a failing sink is skipped before it is tried again.
// Defaults to 30s.
func WithSinkCooldown(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.sinkCooldown = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:        store,
		logger:       slog.Default(),
		sinkTimeout:  defaultSinkTimeout,
		sinkCooldown: defaultSinkCooldown,
	}
	for _, opt := range opts {
		opt(p)
	}
	for i := range p.sinks {
		p.sinks[i].breaker = circuit.New("audit-sink",
			circuit.WithFailureThreshold(sinkFailureLimit),
			circuit.WithSuccessThreshold(1),
			circuit.WithCooldown(p.sinkCooldown),
		)
	}
	if p.bufferSize > 0 {
		p.inbox = make(chan audit.Event, p.bufferSize)
		p.done = make(chan struct{})
		w := worker.NewWorker(p.persist, p.inbox, p.logger)
		go func() {
			defer close(p.done)
			_ = w.Run(context.Background())
		}()
	}
	return p
}

// Emit records an event, filling Timestamp and Category when unset.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}

	if p.inbox == nil {
		return p.persist(ctx, event)
	}

	select {
	case p.inbox <- event:
		return nil
	default:
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return errBufferFull
	}
}

// List returns the events recorded for a subject.
func (p *Publisher) List(ctx context.Context, subject string) ([]audit.Event, error) {
	return p.store.ListBySubject(ctx, subject)
}

// Recent returns the latest limit events across all subjects.
func (p *Publisher) Recent(ctx context.Context, limit int) ([]audit.Event, error) {
	return p.store.ListRecent(ctx, limit)
}

// Close drains the async buffer. Safe to call more than once and in sync mode.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		if p.inbox != nil {
			close(p.inbox)
			<-p.done
		}
	})
}

func (p *Publisher) persist(ctx context.Context, event audit.Event) error {
	if err := p.store.Append(ctx, event); err != nil {
		return err
	}
	for _, sk := range p.sinks {
		p.publishToSink(ctx, sk, event)
	}
	return nil
}

func (p *Publisher) publishToSink(ctx context.Context, sk sink, event audit.Event) {
	if !sk.breaker.Allow() {
		return
	}
	sinkCtx, cancel := context.WithTimeout(ctx, p.sinkTimeout)
	defer cancel()

	if err := sk.Publish(sinkCtx, event); err != nil {
		_, change := sk.breaker.RecordFailure()
		p.logger.WarnContext(ctx, "audit sink publish failed",
			"action", event.Action,
			"error", err,
		)
		if change.Opened {
			p.logger.WarnContext(ctx, "audit sink unavailable, skipping it",
				"cooldown", p.sinkCooldown.String(),
			)
		}
		return
	}
	if _, change := sk.breaker.RecordSuccess(); change.Closed {
		p.logger.InfoContext(ctx, "audit sink recovered")
	}
}
