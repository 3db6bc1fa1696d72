package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/Skotchmaster/shopcore/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultTTL = 15 * time.Minute

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisCache{client: client, baseTTL: ttl}
}

func (r *RedisCache) Get(ctx context.Context, cartID uuid.UUID) (*models.CartView, error) {
	data, err := r.client.Get(ctx, cacheKey(cartID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var view models.CartView
	if err := json.Unmarshal(data, &view); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return &view, nil
}

// Set spreads expirations over up to a fifth of the base TTL so entries
// written together do not expire together.
func (r *RedisCache) Set(ctx context.Context, view *models.CartView) error {
	data, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	ttl := r.baseTTL + time.Duration(rand.Int64N(int64(r.baseTTL/5)+1))
	if err := r.client.Set(ctx, cacheKey(view.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, cartID uuid.UUID) error {
	if err := r.client.Del(ctx, cacheKey(cartID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(cartID uuid.UUID) string {
	return fmt.Sprintf("cart:%s", cartID)
}
