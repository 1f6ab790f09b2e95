// Package cache holds the Redis-backed read cache and idempotency keys. Redis
// is never a source of truth; every miss or error falls back to Postgres.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/safar/storefront/internal/models"
)

func NewClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

type StatusCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStatusCache(rdb *redis.Client, ttl time.Duration) *StatusCache {
	return &StatusCache{rdb: rdb, ttl: ttl}
}

// Get returns the cached status and whether it was present.
func (c *StatusCache) Get(ctx context.Context, orderID int64) (models.OrderStatus, bool, error) {
	s, err := c.rdb.Get(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return models.OrderStatus(s), true, nil
}

func (c *StatusCache) Set(ctx context.Context, orderID int64, status models.OrderStatus) error {
	return c.rdb.Set(ctx, fmt.Sprintf(KeyOrderStatus, orderID), string(status), c.ttl).Err()
}

func (c *StatusCache) Invalidate(ctx context.Context, orderID int64) error {
	return c.rdb.Del(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Err()
}

// IdempotencyStore remembers which client keys already created an order.
type IdempotencyStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewIdempotencyStore(rdb *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{rdb: rdb, ttl: ttl}
}

// Claim reserves key for the caller. It returns false if another request
// already claimed it.
func (s *IdempotencyStore) Claim(ctx context.Context, userID int64, key string) (bool, error) {
	return s.rdb.SetNX(ctx, fmt.Sprintf(KeyIdemOrderCreate, userID, key), "", s.ttl).Result()
}

// Complete records the order created under a claimed key.
func (s *IdempotencyStore) Complete(ctx context.Context, userID int64, key string, orderID int64) error {
	return s.rdb.Set(ctx, fmt.Sprintf(KeyIdemOrderCreate, userID, key), orderID, s.ttl).Err()
}

// Lookup returns the order id stored for key. ok is false while the key is
// unclaimed or its request is still in flight.
func (s *IdempotencyStore) Lookup(ctx context.Context, userID int64, key string) (orderID int64, ok bool, err error) {
	v, err := s.rdb.Get(ctx, fmt.Sprintf(KeyIdemOrderCreate, userID, key)).Result()
	if errors.Is(err, redis.Nil) || v == "" {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	orderID, err = strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("idempotency value %q: %w", v, err)
	}
	return orderID, true, nil
}

// Release drops a claim whose request failed so the client can retry.
func (s *IdempotencyStore) Release(ctx context.Context, userID int64, key string) error {
	return s.rdb.Del(ctx, fmt.Sprintf(KeyIdemOrderCreate, userID, key)).Err()
}
