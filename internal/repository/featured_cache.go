package repository

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/evermart/storefront-api/internal/model"
)

// featuredKey is the one canonical cache key. Both the read path and
// the toggle-featured refresh use it; there is deliberately no second
// key name anywhere.
const featuredKey = "featured_products"

// FeaturedCache is the cache-aside copy of the featured product list.
// Entries carry no TTL; writes to the featured set refresh the cache
// synchronously. A nil Redis client disables the cache and every call
// degrades to a miss.
type FeaturedCache struct{ RDB *redis.Client }

func NewFeaturedCache(rdb *redis.Client) *FeaturedCache { return &FeaturedCache{RDB: rdb} }

// Get returns the cached featured list. ok is false on a miss, a
// decode failure or when the cache is disabled.
func (c *FeaturedCache) Get(ctx context.Context) (products []model.Product, ok bool) {
	if c.RDB == nil {
		return nil, false
	}
	raw, err := c.RDB.Get(ctx, featuredKey).Bytes()
	if err != nil {
		return nil, false
	}
	if err := json.Unmarshal(raw, &products); err != nil {
		return nil, false
	}
	return products, true
}

// Set overwrites the cached featured list.
func (c *FeaturedCache) Set(ctx context.Context, products []model.Product) error {
	if c.RDB == nil {
		return nil
	}
	raw, err := json.Marshal(products)
	if err != nil {
		return err
	}
	return c.RDB.Set(ctx, featuredKey, raw, 0).Err()
}
