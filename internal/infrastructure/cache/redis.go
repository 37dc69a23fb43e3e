package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const (
	priceKeyPrefix = "price:"
	fxKey          = "fx:rate"
	fxLastGoodKey  = "fx:last_good"
)

// Open parses a redis:// URL and returns a client. An empty URL returns nil.
func Open(url string) (*redis.Client, error) {
	if strings.TrimSpace(url) == "" {
		return nil, nil
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opt), nil
}

// PriceCache stores quotes and the FX rate in redis with a TTL. The last good FX rate is
// kept without expiry so a feed outage can fall back to it.
type PriceCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewPriceCache returns a cache over rdb. A non-positive ttl defaults to five minutes.
func NewPriceCache(rdb *redis.Client, ttl time.Duration) *PriceCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PriceCache{rdb: rdb, ttl: ttl}
}

func (c *PriceCache) Prices(ctx context.Context, tickers []string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(tickers))
	if len(tickers) == 0 {
		return out, nil
	}
	keys := make([]string, len(tickers))
	for i, t := range tickers {
		keys[i] = priceKeyPrefix + t
	}
	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return out, err
	}
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if p, err := decimal.NewFromString(s); err == nil {
			out[tickers[i]] = p
		}
	}
	return out, nil
}

func (c *PriceCache) StorePrices(ctx context.Context, prices map[string]decimal.Decimal) error {
	if len(prices) == 0 {
		return nil
	}
	pipe := c.rdb.Pipeline()
	for t, p := range prices {
		pipe.Set(ctx, priceKeyPrefix+t, p.String(), c.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (c *PriceCache) FX(ctx context.Context) (decimal.Decimal, bool, error) {
	return c.getDecimal(ctx, fxKey)
}

func (c *PriceCache) LastFX(ctx context.Context) (decimal.Decimal, bool, error) {
	return c.getDecimal(ctx, fxLastGoodKey)
}

func (c *PriceCache) StoreFX(ctx context.Context, rate decimal.Decimal) error {
	pipe := c.rdb.Pipeline()
	pipe.Set(ctx, fxKey, rate.String(), c.ttl)
	pipe.Set(ctx, fxLastGoodKey, rate.String(), 0)
	_, err := pipe.Exec(ctx)
	return err
}

func (c *PriceCache) getDecimal(ctx context.Context, key string) (decimal.Decimal, bool, error) {
	s, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false, err
	}
	return d, true, nil
}
