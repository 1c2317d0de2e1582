package provider

import (
	"context"
	"time"

	"github.com/wonny/qualmom/internal/contracts"
	"github.com/wonny/qualmom/pkg/logger"
	"github.com/wonny/qualmom/pkg/redis"
)

// Cached decorates a DataProvider with a Redis read-through cache.
// Keys always include the as-of date, so cached answers stay point-in-time.
// Provider errors are never cached; cache failures fall through to the source.
type Cached struct {
	source contracts.DataProvider
	cache  *redis.Cache
	ttl    time.Duration
	logger *logger.Logger
}

// NewCached wraps source
func NewCached(source contracts.DataProvider, cache *redis.Cache, ttl time.Duration, log *logger.Logger) *Cached {
	if ttl <= 0 {
		ttl = redis.TTLDaily
	}
	return &Cached{source: source, cache: cache, ttl: ttl, logger: log}
}

func dateKey(t time.Time) string {
	return t.Format(time.DateOnly)
}

// lookup runs fill on miss and stores the result
func lookup[T any](ctx context.Context, c *Cached, key string, fill func() (T, error)) (T, error) {
	var cached T
	found, err := c.cache.Get(ctx, key, &cached)
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Cache read failed, falling back to source")
		// 깨진 엔트리는 제거 후 다시 채움
		if err := c.cache.Delete(ctx, key); err != nil {
			c.logger.WithError(err).WithField("key", key).Warn("Cache evict failed")
		}
	}
	if found {
		return cached, nil
	}

	value, err := fill()
	if err != nil {
		return value, err
	}

	if err := c.cache.Set(ctx, key, value, c.ttl); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Cache write failed")
	}
	return value, nil
}

// Universe implements contracts.DataProvider
func (c *Cached) Universe(ctx context.Context, date time.Time) ([]contracts.Security, error) {
	return lookup(ctx, c, redis.UniverseKey(dateKey(date)), func() ([]contracts.Security, error) {
		return c.source.Universe(ctx, date)
	})
}

// Factor implements contracts.DataProvider
func (c *Cached) Factor(ctx context.Context, sec contracts.Security, name contracts.FactorName, date time.Time) (contracts.FactorValue, error) {
	key := redis.FactorKey(string(sec), string(name), dateKey(date))
	return lookup(ctx, c, key, func() (contracts.FactorValue, error) {
		return c.source.Factor(ctx, sec, name, date)
	})
}

// Price implements contracts.DataProvider
func (c *Cached) Price(ctx context.Context, sec contracts.Security, date time.Time) (float64, error) {
	return lookup(ctx, c, redis.PriceKey(string(sec), dateKey(date)), func() (float64, error) {
		return c.source.Price(ctx, sec, date)
	})
}

// Closes implements contracts.DataProvider
func (c *Cached) Closes(ctx context.Context, sec contracts.Security, end time.Time, n int) ([]float64, error) {
	return lookup(ctx, c, redis.ClosesKey(string(sec), dateKey(end), n), func() ([]float64, error) {
		return c.source.Closes(ctx, sec, end, n)
	})
}
