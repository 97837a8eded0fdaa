package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures ConnectRedis.
type RedisConfig struct {
	ConnectionURL  string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"2s"`
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"10s"`
}

// ConnectRedis parses cfg.ConnectionURL and pings the server, retrying up to
// RetryAttempts times within ConnectTimeout.
func ConnectRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if cfg.ConnectionURL == "" {
		return nil, ErrInvalidURL
	}

	opts, err := redis.ParseURL(cfg.ConnectionURL)
	if err != nil {
		return nil, errors.Join(ErrInvalidURL, err)
	}

	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	attempts := max(cfg.RetryAttempts, 1)
	var lastErr error
	for attempt := range attempts {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, errors.Join(ErrRedisNotReady, ctx.Err())
			case <-time.After(cfg.RetryInterval):
			}
		}

		client := redis.NewClient(opts)
		if lastErr = client.Ping(ctx).Err(); lastErr == nil {
			return client, nil
		}
		_ = client.Close()
	}

	return nil, errors.Join(ErrRedisNotReady, lastErr)
}

// Redis stores values as plain Redis strings under a key prefix.
type Redis struct {
	db     redis.UniversalClient
	prefix string
}

// NewRedis wraps an existing client. prefix namespaces every key, e.g.
// "stocksync:".
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	return &Redis{db: client, prefix: prefix}
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}

	val, err := r.db.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("storage: redis get %q: %w", key, err)
	}
	return val, nil
}

// Set stores value without expiration; token lifetime is enforced remotely.
func (r *Redis) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := r.db.Set(ctx, r.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("storage: redis set %q: %w", key, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := r.db.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("storage: redis delete %q: %w", key, err)
	}
	return nil
}

// Close terminates the Redis connection.
func (r *Redis) Close() error {
	return r.db.Close()
}
