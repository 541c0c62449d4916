package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dukex/flujo/pkg/cmd"
	"github.com/dukex/flujo/pkg/log"
	"github.com/dukex/flujo/pkg/objectstore/s3"
	"github.com/dukex/flujo/pkg/services"
	"github.com/dukex/flujo/pkg/token"
	cli "github.com/urfave/cli/v3"
)

const (
	defaultPort        = 9092
	defaultPresignTTL  = 15 * time.Minute
	serviceName        = "flujo-api"
	defaultTokenIssuer = "flujo"
)

func main() {
	command := &cli.Command{
		Name:                  serviceName,
		Usage:                 "Create time boxed flujos and collect their steps",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence (file://, mongodb://, postgres://)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "object-store-url",
				Usage:    "Bucket for step files, as s3://bucket[/prefix]",
				Required: true,
				Sources:  cli.EnvVars("OBJECT_STORE_URL"),
			},
			&cli.StringFlag{
				Name:    "s3-region",
				Usage:   "Region of the bucket",
				Sources: cli.EnvVars("AWS_REGION"),
			},
			&cli.StringFlag{
				Name:    "s3-endpoint",
				Usage:   "Endpoint of an S3 compatible server, addressed path-style",
				Sources: cli.EnvVars("S3_ENDPOINT"),
			},
			&cli.StringFlag{
				Name:    "s3-access-key",
				Usage:   "Static access key id, the default credential chain is used when empty",
				Sources: cli.EnvVars("S3_ACCESS_KEY_ID"),
			},
			&cli.StringFlag{
				Name:    "s3-secret-key",
				Usage:   "Static secret access key",
				Sources: cli.EnvVars("S3_SECRET_ACCESS_KEY"),
			},
			&cli.DurationFlag{
				Name:    "presign-ttl",
				Usage:   "Lifetime of pre-signed upload and download URLs",
				Value:   defaultPresignTTL,
				Sources: cli.EnvVars("PRESIGN_TTL"),
			},
			&cli.StringFlag{
				Name:     "token-secret",
				Usage:    "Secret the access tokens are signed with",
				Required: true,
				Sources:  cli.EnvVars("TOKEN_SECRET"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for flujo locks shared between replicas",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json)",
				Value:   "text",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
			&cli.BoolFlag{
				Name:    "otel",
				Usage:   "Export traces over OTLP/HTTP, configured by the OTEL_* variables",
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))
			logger := log.WithModule("api")

			logger.InfoContext(ctx, "Initializing flujo API")

			tracer, shutdownTracer, err := cmd.NewTracer(ctx, command.Bool("otel"), serviceName)
			if err != nil {
				return fmt.Errorf("failed to initialize tracer: %w", err)
			}

			defer func() {
				if err := shutdownTracer(context.WithoutCancel(ctx)); err != nil {
					logger.ErrorContext(ctx, "Failed to shutdown tracer", "error", err)
				}
			}()

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			objects, err := cmd.NewObjectStore(ctx, logger, s3.Config{
				URL:             command.String("object-store-url"),
				Region:          command.String("s3-region"),
				Endpoint:        command.String("s3-endpoint"),
				AccessKeyID:     command.String("s3-access-key"),
				SecretAccessKey: command.String("s3-secret-key"),
				PresignTTL:      command.Duration("presign-ttl"),
			})
			if err != nil {
				return err
			}

			flujoLocker, closeLocker, err := cmd.NewLocker(ctx, logger, command.String("redis-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := closeLocker(); err != nil {
					logger.ErrorContext(ctx, "Failed to close locker", "error", err)
				}
			}()

			codec, err := token.NewCodec(command.String("token-secret"), token.WithIssuer(defaultTokenIssuer))
			if err != nil {
				return err
			}

			api := NewAPI(
				logger,
				persistence,
				objects,
				codec,
				services.WithTracer(tracer),
				services.WithLocker(flujoLocker),
			)

			return api.Start(int(command.Int("port")))
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		slog.Error("flujo API stopped", "error", err)
		os.Exit(1)
	}
}
