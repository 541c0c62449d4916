package locker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultLeaseTTL      = 30 * time.Second
	defaultRetryInterval = 25 * time.Millisecond
	defaultKeyPrefix     = "flujo:lock:"
)

// ErrLockLost is returned by Unlock when the lease expired and another holder took the key.
var ErrLockLost = errors.New("lock lease lost before release")

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis implements Locker with SET NX PX leases. A crashed holder's lease
// expires after the TTL.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
	retry  time.Duration
	prefix string
}

// RedisOption configures a Redis locker.
type RedisOption func(*Redis)

// WithLeaseTTL sets how long a lease survives without release.
func WithLeaseTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		r.ttl = ttl
	}
}

// WithRetryInterval sets how often a busy key is polled.
func WithRetryInterval(interval time.Duration) RedisOption {
	return func(r *Redis) {
		r.retry = interval
	}
}

// WithKeyPrefix namespaces the lock keys.
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		r.prefix = prefix
	}
}

// NewRedis creates a Redis backed locker.
func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	r := &Redis{
		client: client,
		ttl:    defaultLeaseTTL,
		retry:  defaultRetryInterval,
		prefix: defaultKeyPrefix,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

func (r *Redis) Lock(ctx context.Context, key string) (Unlock, error) {
	redisKey := r.prefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(r.retry)
	defer ticker.Stop()

	for {
		acquired, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}

		if acquired {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	var (
		once sync.Once
		err  error
	)

	return func(ctx context.Context) error {
		once.Do(func() {
			var released int64

			released, err = releaseScript.Run(ctx, r.client, []string{redisKey}, token).Int64()
			if err != nil {
				err = fmt.Errorf("failed to release lock %s: %w", key, err)

				return
			}

			if released == 0 {
				err = ErrLockLost
			}
		})

		return err
	}, nil
}
