package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisStore implements KeyValueStore on top of Redis.
type RedisStore struct {
	redis     *redis.Client
	namespace string
	logger    *logrus.Logger
}

// NewRedisStore creates a Redis-backed store. Every key is stored under namespace.
func NewRedisStore(redisClient *redis.Client, namespace string, logger *logrus.Logger) *RedisStore {
	if logger == nil {
		logger = logrus.New()
	}
	return &RedisStore{
		redis:     redisClient,
		namespace: namespace,
		logger:    logger,
	}
}

// Get retrieves the raw bytes stored under key.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.redis.Get(ctx, s.namespace+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, true, nil
}

// Set stores value with an optional ttl. Zero ttl keeps the key until deleted.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.redis.Set(ctx, s.namespace+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.redis.Del(ctx, s.namespace+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Keys lists keys under prefix using SCAN, with the namespace stripped.
func (s *RedisStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	pattern := s.namespace + prefix + "*"

	var keys []string
	iter := s.redis.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val()[len(s.namespace):])
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("error scanning cache keys: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"prefix": prefix,
		"count":  len(keys),
	}).Debug("Scanned store keys")
	return keys, nil
}

// HealthCheck pings Redis.
func (s *RedisStore) HealthCheck(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}
