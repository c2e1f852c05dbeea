package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/linkdeck/internal/cache"
)

// Store shares retrieval cache entries between linkdeck instances.
// Values are JSON encoded and expire with the cache TTL.
type Store[V any] struct {
	client redis.Cmdable
}

// NewStore creates a new Redis-backed cache store
func NewStore[V any](client redis.Cmdable) *Store[V] {
	return &Store[V]{
		client: client,
	}
}

var _ cache.Backing[struct{}] = (*Store[struct{}])(nil)

// Load returns the stored entry for key, if any
func (s *Store[V]) Load(ctx context.Context, key string) (cache.Entry[V], bool, error) {
	data, err := s.client.Get(ctx, CacheKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return cache.Entry[V]{}, false, nil
		}
		return cache.Entry[V]{}, false, fmt.Errorf("failed to get cache entry: %w", err)
	}

	var e cache.Entry[V]
	if err := json.Unmarshal(data, &e); err != nil {
		return cache.Entry[V]{}, false, fmt.Errorf("failed to unmarshal cache entry: %w", err)
	}

	return e, true, nil
}

// Save stores e under key for ttl
func (s *Store[V]) Save(ctx context.Context, key string, e cache.Entry[V], ttl time.Duration) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	if err := s.client.Set(ctx, CacheKey(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save cache entry: %w", err)
	}

	return nil
}

// Delete removes the stored entry for key
func (s *Store[V]) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, CacheKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}

	return nil
}
