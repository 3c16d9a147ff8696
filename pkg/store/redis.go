// Package store keeps encoded batch results in Redis for downstream consumers.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces result keys
const DefaultKeyPrefix = "frame_analysis:"

// ErrNotFound is returned by Load when no result is stored under an id
var ErrNotFound = errors.New("result not found")

// Options configures a RedisStore
type Options struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	// TTL expires stored results; zero keeps them forever
	TTL time.Duration
}

// RedisStore saves batch result bodies under <prefix><id>
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisStore connects to Redis and checks the connection
func NewRedisStore(ctx context.Context, opts Options) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", opts.Addr, err)
	}

	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{client: client, keyPrefix: prefix, ttl: opts.TTL}, nil
}

// Key returns the Redis key for a result id
func (s *RedisStore) Key(id string) string {
	return s.keyPrefix + id
}

// Save stores body under id, replacing any previous value
func (s *RedisStore) Save(ctx context.Context, id string, body []byte) error {
	if id == "" {
		return errors.New("result id is empty")
	}
	if err := s.client.Set(ctx, s.Key(id), body, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store result %s: %w", id, err)
	}
	return nil
}

// Load returns the body stored under id
func (s *RedisStore) Load(ctx context.Context, id string) ([]byte, error) {
	body, err := s.client.Get(ctx, s.Key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load result %s: %w", id, err)
	}
	return body, nil
}

// Delete removes the result stored under id
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.Key(id)).Err()
}

// Ping checks if the store is healthy
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the store
func (s *RedisStore) Close() error {
	return s.client.Close()
}
