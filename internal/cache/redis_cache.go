package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func resultKey(tenantID, listID int64) string {
	return fmt.Sprintf("listsync:last:%d:%d", tenantID, listID)
}

func (c *RedisCache) StoreResult(ctx context.Context, tenantID, listID int64, last LastSync) error {
	last.At = last.At.UTC()

	b, err := json.Marshal(last)
	if err != nil {
		return err
	}

	return c.rdb.Set(ctx, resultKey(tenantID, listID), b, c.ttl).Err()
}

func (c *RedisCache) LastResult(ctx context.Context, tenantID, listID int64) (*LastSync, error) {
	raw, err := c.rdb.Get(ctx, resultKey(tenantID, listID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var last LastSync
	if err := json.Unmarshal(raw, &last); err != nil {
		return nil, fmt.Errorf("decode last sync for list %d: %w", listID, err)
	}
	return &last, nil
}
