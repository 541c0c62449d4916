package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/flujo/pkg/locker"
	"github.com/dukex/flujo/pkg/objectstore/s3"
	"github.com/dukex/flujo/pkg/otelhelper"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

// NewObjectStore connects to the S3 bucket named by cfg.URL.
func NewObjectStore(ctx context.Context, logger *slog.Logger, cfg s3.Config) (*s3.Store, error) {
	store, err := s3.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create object store: %w", err)
	}

	logger.InfoContext(ctx, "Initialized object store", "url", cfg.URL, "endpoint", cfg.Endpoint)

	return store, nil
}

// NewLocker returns the in-process locker, or a Redis lease locker when
// redisURL is set. The returned close function releases the Redis client.
func NewLocker(ctx context.Context, logger *slog.Logger, redisURL string) (locker.Locker, func() error, error) {
	if redisURL == "" {
		logger.InfoContext(ctx, "Using in-process flujo locks")

		return locker.NewLocal(), func() error { return nil }, nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.InfoContext(ctx, "Using redis flujo locks", "addr", opts.Addr)

	return locker.NewRedis(client), client.Close, nil
}

// NewTracer returns an OTLP exporting tracer when enabled and a no-op tracer otherwise.
// nolint:ireturn
func NewTracer(ctx context.Context, enabled bool, serviceName string) (trace.Tracer, otelhelper.Shutdown, error) {
	if !enabled {
		return otelhelper.NoopTracer(), func(context.Context) error { return nil }, nil
	}

	return otelhelper.NewTracer(ctx, serviceName)
}
