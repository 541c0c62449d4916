package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	mongoOnce sync.Once
	mongoURI  string
	mongoErr  error

	redisOnce sync.Once
	redisAddr string
	redisErr  error

	postgresOnce sync.Once
	postgresURL  string
	postgresErr  error
)

// MongoURI returns the URI of a MongoDB container shared by the test binary.
// Tests are skipped when the container cannot be started.
func MongoURI(t *testing.T) string {
	t.Helper()

	mongoOnce.Do(func() {
		var endpoint string

		endpoint, mongoErr = startContainer("mongo:7", "27017/tcp", "")
		mongoURI = "mongodb://" + endpoint
	})

	if mongoErr != nil {
		t.Skipf("skipping MongoDB tests: %v", mongoErr)
	}

	return mongoURI
}

// RedisAddr returns the host:port of a Redis container shared by the test binary.
// Tests are skipped when the container cannot be started.
func RedisAddr(t *testing.T) string {
	t.Helper()

	redisOnce.Do(func() {
		redisAddr, redisErr = startContainer("redis:7-alpine", "6379/tcp", "Ready to accept connections")
	})

	if redisErr != nil {
		t.Skipf("skipping Redis tests: %v", redisErr)
	}

	return redisAddr
}

// PostgresURL returns a connection string for a PostgreSQL container shared by
// the test binary. Tests are skipped when the container cannot be started.
func PostgresURL(t *testing.T) string {
	t.Helper()

	postgresOnce.Do(func() {
		postgresURL, postgresErr = startPostgres()
	})

	if postgresErr != nil {
		t.Skipf("skipping PostgreSQL tests: %v", postgresErr)
	}

	return postgresURL
}

func startPostgres() (url string, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("starting postgres container panicked: %v", r)
		}
	}()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("flujo_test"),
		postgres.WithUsername("flujo"),
		postgres.WithPassword("flujo"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to start postgres container: %w", err)
	}

	url, err = container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(context.Background())

		return "", fmt.Errorf("failed to resolve postgres connection string: %w", err)
	}

	return url, nil
}

func startContainer(image string, port nat.Port, readyLog string) (endpoint string, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("starting %s container panicked: %v", image, r)
		}
	}()

	strategies := []wait.Strategy{wait.ForListeningPort(port).WithStartupTimeout(2 * time.Minute)}
	if readyLog != "" {
		strategies = append(strategies, wait.ForLog(readyLog))
	}

	container, err := testcontainers.Run(
		ctx, image,
		testcontainers.WithExposedPorts(string(port)),
		testcontainers.WithWaitStrategy(strategies...),
	)
	if err != nil {
		return "", fmt.Errorf("failed to start %s container: %w", image, err)
	}

	endpoint, err = container.PortEndpoint(ctx, port, "")
	if err != nil {
		_ = container.Terminate(context.Background())

		return "", fmt.Errorf("failed to resolve %s endpoint: %w", image, err)
	}

	return endpoint, nil
}
