package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds connection settings for the shared cache
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	KeyPrefix    string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RedisStore shares quotes between instances. Redis expires keys on its own
// (EXPIREAT), and the entry's ExpiresAt is still checked against the clock so
// both backends agree on validity.
type RedisStore struct {
	client    *redis.Client
	clock     Clock
	keyPrefix string
}

// NewRedisStore connects to Redis and verifies the connection
func NewRedisStore(ctx context.Context, cfg RedisConfig, clock Clock) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return NewRedisStoreWithClient(client, cfg.KeyPrefix, clock), nil
}

// NewRedisStoreWithClient wraps an existing client
func NewRedisStoreWithClient(client *redis.Client, keyPrefix string, clock Clock) *RedisStore {
	if clock == nil {
		clock = SystemClock{}
	}
	return &RedisStore{
		client:    client,
		clock:     clock,
		keyPrefix: keyPrefix,
	}
}

// Get returns the entry for key if present and not expired
func (s *RedisStore) Get(ctx context.Context, key LookupKey) (Entry, bool, error) {
	raw, err := s.client.Get(ctx, s.redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("failed to get cache entry: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		s.client.Del(ctx, s.redisKey(key))
		return Entry{}, false, fmt.Errorf("failed to decode cache entry: %w", err)
	}

	if !entry.ValidAt(s.clock.Now()) {
		return Entry{}, false, nil
	}

	return entry, true, nil
}

// Put stores entry under key with a Redis-side expiration at entry.ExpiresAt
func (s *RedisStore) Put(ctx context.Context, key LookupKey, entry Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	rk := s.redisKey(key)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, rk, raw, 0)
		pipe.ExpireAt(ctx, rk, entry.ExpiresAt)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}

	return nil
}

// Ping checks the connection, used by the health endpoint
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) redisKey(key LookupKey) string {
	if s.keyPrefix == "" {
		return key.String()
	}
	return s.keyPrefix + ":" + key.String()
}
