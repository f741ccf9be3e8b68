package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore tracks objects already present in durable output, keyed by
// ObjectID. It lets a rerun with a reshuffled or re-enumerated ID list skip
// finished objects that index-based resume alone would miss. Optional: a nil
// *RedisStore is simply not consulted.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(addr string, ttl time.Duration) *RedisStore {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	return &RedisStore{client: rdb, ttl: ttl}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// MarkHarvested records an object as durably written, with a TTL so stale
// runs eventually age out.
func (s *RedisStore) MarkHarvested(ctx context.Context, objectID int) error {
	key := fmt.Sprintf("harvested:%d", objectID)
	return s.client.Set(ctx, key, "1", s.ttl).Err()
}

// IsHarvested checks whether an object was written by an earlier run.
func (s *RedisStore) IsHarvested(ctx context.Context, objectID int) (bool, error) {
	key := fmt.Sprintf("harvested:%d", objectID)
	val, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return val == 1, nil
}
