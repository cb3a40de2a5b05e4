package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const redisIdempotencyPrefix = "househunt:idempotency:"

// RedisIdempotencyStore shares cached responses between API replicas.
type RedisIdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisIdempotencyStore(client *redis.Client, ttl time.Duration) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client, ttl: ttl}
}

func (s *RedisIdempotencyStore) Get(ctx context.Context, key string) (*CachedResponse, bool, error) {
	data, err := s.client.Get(ctx, redisIdempotencyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var response CachedResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return nil, false, fmt.Errorf("decode cached response: %w", err)
	}
	return &response, true, nil
}

// Reserve claims the key with SetNX so only one replica runs the handler.
func (s *RedisIdempotencyStore) Reserve(ctx context.Context, key string, placeholder *CachedResponse) (bool, error) {
	placeholder.CreatedAt = time.Now()

	data, err := json.Marshal(placeholder)
	if err != nil {
		return false, fmt.Errorf("encode reservation: %w", err)
	}

	ok, err := s.client.SetNX(ctx, redisIdempotencyPrefix+key, data, placeholder.lifetime(s.ttl)).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

func (s *RedisIdempotencyStore) Set(ctx context.Context, key string, response *CachedResponse) error {
	response.CreatedAt = time.Now()

	data, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("encode cached response: %w", err)
	}

	if err := s.client.Set(ctx, redisIdempotencyPrefix+key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisIdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, redisIdempotencyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Stop is a no-op; the redis client is owned by pkg/client.
func (s *RedisIdempotencyStore) Stop() {}
