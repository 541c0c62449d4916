package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/flujo/pkg/locker"
	"github.com/dukex/flujo/pkg/otelhelper"
	"github.com/dukex/flujo/pkg/token"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"k8s.io/utils/clock"
)

// TokenCodec issues and verifies flujo scoped access tokens.
type TokenCodec interface {
	Sign(payload token.Payload, expiresIn int64) (string, error)
	Verify(tok string) (*token.Payload, bool)
}

type options struct {
	clock  clock.PassiveClock
	logger *slog.Logger
	tracer trace.Tracer
	locker locker.Locker
	newID  func() string
}

// Option configures the services.
type Option func(*options)

// WithClock sets the clock deadlines are evaluated against.
func WithClock(c clock.PassiveClock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithTracer sets the tracer operations are recorded with.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

// WithLocker sets the locker serialising writes to a flujo. Replicas sharing
// a store must share a locker too.
func WithLocker(l locker.Locker) Option {
	return func(o *options) {
		o.locker = l
	}
}

// WithIDGenerator overrides how flujo and step identifiers are minted.
func WithIDGenerator(newID func() string) Option {
	return func(o *options) {
		o.newID = newID
	}
}

func newOptions(opts []Option) options {
	o := options{
		clock:  clock.RealClock{},
		logger: slog.Default(),
		tracer: otelhelper.NoopTracer(),
		locker: locker.NewLocal(),
		newID:  uuid.NewString,
	}

	for _, opt := range opts {
		opt(&o)
	}

	return o
}

func (o options) now() time.Time {
	return o.clock.Now().UTC()
}

// withFlujoLock runs fn while holding the flujo's write lock.
func (o options) withFlujoLock(ctx context.Context, flujoID string, fn func() error) error {
	unlock, err := o.locker.Lock(ctx, "flujo:"+flujoID)
	if err != nil {
		return fmt.Errorf("failed to lock flujo %s: %w", flujoID, err)
	}

	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			o.logger.WarnContext(ctx, "failed to release flujo lock", "flujo_id", flujoID, "error", err)
		}
	}()

	return fn()
}
