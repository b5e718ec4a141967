package appcache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

type Config struct {
	ConnectionURL  string        `env:"APPCACHE_REDIS_URL" envDefault:"redis://localhost:6379/0"`          // ConnectionURL is the Redis URL, e.g. "redis://:password@localhost:6379/0".
	RetryAttempts  int           `env:"APPCACHE_RETRY_ATTEMPTS" envDefault:"3"`                            // RetryAttempts is the number of connection attempts before giving up.
	RetryInterval  time.Duration `env:"APPCACHE_RETRY_INTERVAL" envDefault:"5s"`                           // RetryInterval is the delay between connection attempts.
	ConnectTimeout time.Duration `env:"APPCACHE_CONNECT_TIMEOUT" envDefault:"30s"`                         // ConnectTimeout bounds the whole connect-with-retries sequence.
	ScanBatchSize  int64         `env:"APPCACHE_SCAN_BATCH_SIZE" envDefault:"500"`                         // ScanBatchSize is the SCAN COUNT hint used by DeletePattern.
}

// Connect establishes a Redis connection with retries, verifying the server
// responds to PING before returning.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	opt, err := redis.ParseURL(cfg.ConnectionURL)
	if err != nil {
		return nil, errors.Join(ErrInvalidConnectionURL, err)
	}

	attempts := cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		client := redis.NewClient(opt)
		if err := client.Ping(ctx).Err(); err == nil {
			return client, nil
		}
		_ = client.Close()

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrRedisNotReady, ctx.Err())
		case <-time.After(cfg.RetryInterval):
		}
	}

	return nil, ErrRedisNotReady
}

type redisStore struct {
	client    *redis.Client
	scanBatch int64
}

// NewRedisStore wraps an existing Redis client as a Store.
func NewRedisStore(client *redis.Client) Store {
	return &redisStore{client: client, scanBatch: 500}
}

func (s *redisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrKeyNotFound
	}
	return val, err
}

func (s *redisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

// DeletePattern walks the keyspace with SCAN instead of KEYS so large
// deployments do not block the Redis event loop while a tenant is purged.
func (s *redisStore) DeletePattern(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, s.scanBatch).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
