package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is the time-to-live applied to a session hash on every write.
// Tropo calls rarely last longer than this; abandoned calls fall out of
// Redis on their own.
const DefaultTTL = 1 * time.Hour

// RedisConfig holds the Redis connection settings for a RedisProvider.
type RedisConfig struct {
	Addr     string        // host:port of the Redis server
	Password string        // optional AUTH password
	DB       int           // logical database number
	TTL      time.Duration // session expiry, refreshed on each write
}

// DefaultRedisConfig returns sensible defaults for local development.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr: "localhost:6379",
		TTL:  DefaultTTL,
	}
}

// RedisProvider stores each session as a Redis hash. The session name is the
// hash key and each slot is a hash field.
type RedisProvider struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisProvider connects to Redis and verifies the connection.
func NewRedisProvider(config RedisConfig) (*RedisProvider, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("session: redis connection failed: %w", err)
	}

	return NewRedisProviderFromClient(client, config.TTL), nil
}

// NewRedisProviderFromClient wraps an existing Redis client. A non-positive
// ttl falls back to DefaultTTL.
func NewRedisProviderFromClient(client *redis.Client, ttl time.Duration) *RedisProvider {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisProvider{client: client, ttl: ttl}
}

// Open returns the session stored under the given hash key.
func (p *RedisProvider) Open(name string) Store {
	return &redisStore{client: p.client, key: name, ttl: p.ttl}
}

// Close closes the Redis connection.
func (p *RedisProvider) Close() error {
	return p.client.Close()
}

// Client returns the underlying Redis client for use by other packages.
func (p *RedisProvider) Client() *redis.Client {
	return p.client
}

type redisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func (s *redisStore) Name() string { return s.key }

func (s *redisStore) Get(ctx context.Context, field string) ([]byte, error) {
	val, err := s.client.HGet(ctx, s.key, field).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil // not found
	}
	if err != nil {
		return nil, fmt.Errorf("session: get %s/%s: %w", s.key, field, err)
	}
	return val, nil
}

func (s *redisStore) Set(ctx context.Context, field string, value []byte) error {
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, s.key, field, value)
	pipe.Expire(ctx, s.key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("session: set %s/%s: %w", s.key, field, err)
	}
	return nil
}

func (s *redisStore) Destroy(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("session: destroy %s: %w", s.key, err)
	}
	return nil
}

func (s *redisStore) All(ctx context.Context) (map[string][]byte, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("session: read %s: %w", s.key, err)
	}
	out := make(map[string][]byte, len(fields))
	for k, v := range fields {
		out[k] = []byte(v)
	}
	return out, nil
}
