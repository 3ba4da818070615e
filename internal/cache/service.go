package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

// Backend is a point-key byte store with per-key TTL. The aggregation core
// only needs get/set/delete; no cross-key transactions.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Service wraps a Backend with tracing. It memoizes aggregation results and
// price lookups; it is the only shared mutable resource in the core.
type Service struct {
	backend Backend
	tracer  trace.Tracer
}

func NewService(backend Backend, tracer trace.Tracer) *Service {
	return &Service{backend: backend, tracer: tracer}
}

// Get returns the cached value for key, or ok=false on a miss or expired
// entry.
func (s *Service) Get(ctx context.Context, key string) ([]byte, bool, error) {
	_, span := s.tracer.Start(ctx, "cache.get")
	defer span.End()
	return s.backend.Get(ctx, key)
}

func (s *Service) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, span := s.tracer.Start(ctx, "cache.set")
	defer span.End()
	return s.backend.Set(ctx, key, value, ttl)
}

func (s *Service) Delete(ctx context.Context, key string) error {
	_, span := s.tracer.Start(ctx, "cache.delete")
	defer span.End()
	return s.backend.Delete(ctx, key)
}

// RedisCmdable is the subset of the go-redis client the backend uses.
type RedisCmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisBackend stores entries in Redis; TTL expiry is handled server-side.
type RedisBackend struct {
	client RedisCmdable
}

func NewRedisBackend(client RedisCmdable) *RedisBackend {
	return &RedisBackend{client: client}
}

func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := b.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (b *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return b.client.Set(ctx, key, value, ttl).Err()
}

func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	return b.client.Del(ctx, key).Err()
}
