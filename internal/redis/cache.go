package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"servicedesk/internal/domain"
)

// DefaultPriceCacheTTL bounds how long another process can serve a stale price.
const DefaultPriceCacheTTL = 5 * time.Minute

const priceCachePrefix = "cache:price:"

// PriceCache caches pricing entries in Redis.
type PriceCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPriceCache creates a new PriceCache.
func NewPriceCache(client *redis.Client, ttl time.Duration) *PriceCache {
	if ttl <= 0 {
		ttl = DefaultPriceCacheTTL
	}
	return &PriceCache{client: client, ttl: ttl}
}

// cachedPrice represents a cached pricing entry.
type cachedPrice struct {
	ServiceType string `json:"service_type"`
	SubService  string `json:"sub_service"`
	Price       int64  `json:"price"`
}

func priceKey(serviceType domain.ServiceType, subService string) string {
	return priceCachePrefix + string(serviceType) + ":" + subService
}

// GetPrice retrieves a price from cache. The bool is false on a cache miss.
func (c *PriceCache) GetPrice(ctx context.Context, serviceType domain.ServiceType, subService string) (int64, bool, error) {
	data, err := c.client.Get(ctx, priceKey(serviceType, subService)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, err
	}

	var cached cachedPrice
	if err := json.Unmarshal(data, &cached); err != nil {
		return 0, false, err
	}
	return cached.Price, true, nil
}

// SetPrice stores a price in cache.
func (c *PriceCache) SetPrice(ctx context.Context, entry *domain.PricingEntry) error {
	data, err := json.Marshal(cachedPrice{
		ServiceType: string(entry.ServiceType),
		SubService:  entry.SubService,
		Price:       entry.Price,
	})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, priceKey(entry.ServiceType, entry.SubService), data, c.ttl).Err()
}

// InvalidatePrice removes a price from cache.
func (c *PriceCache) InvalidatePrice(ctx context.Context, serviceType domain.ServiceType, subService string) error {
	return c.client.Del(ctx, priceKey(serviceType, subService)).Err()
}
