package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// RateCache holds recently looked-up exchange rates. It is a plain value
// owned by its constructor's caller; invalidation is explicit.
type RateCache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewRateCache builds a RateCache. A nil client disables caching: every
// Fetch falls through to the loader.
func NewRateCache(client *redis.Client, ttl time.Duration) *RateCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RateCache{client: client, ttl: ttl}
}

func rateKey(from, to string, asOf time.Time) string {
	return fmt.Sprintf("rates:%s:%s:%s", from, to, asOf.UTC().Format("2006-01-02"))
}

// Fetch returns the cached rate for the pair/date, loading and caching it on
// a miss. Concurrent misses for the same key are collapsed to one load.
func (c *RateCache) Fetch(ctx context.Context, from, to string, asOf time.Time, load func(context.Context) (decimal.Decimal, error)) (decimal.Decimal, error) {
	if c == nil || c.client == nil {
		return load(ctx)
	}
	key := rateKey(from, to, asOf)
	if raw, err := c.client.Get(ctx, key).Result(); err == nil {
		if rate, perr := decimal.NewFromString(raw); perr == nil {
			return rate, nil
		}
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		rate, err := load(ctx)
		if err != nil {
			return decimal.Decimal{}, err
		}
		if err := c.client.Set(ctx, key, rate.String(), c.ttl).Err(); err != nil {
			// Cache population failure is not a lookup failure.
			return rate, nil
		}
		return rate, nil
	})
	if err != nil {
		return decimal.Decimal{}, err
	}
	return v.(decimal.Decimal), nil
}

// Invalidate drops every cached date for the currency pair. Called when a
// rate is inserted or corrected.
func (c *RateCache) Invalidate(ctx context.Context, from, to string) error {
	if c == nil || c.client == nil {
		return nil
	}
	pattern := fmt.Sprintf("rates:%s:%s:*", from, to)
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("platform/cache: scan rates: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
