package cache

import (
	"context"
	"time"

	"vegasstrategy/internal/candle"
	"vegasstrategy/internal/period"
)

// CandleCache adapts CacheService to execution.CandleCache (§6): a
// write-through cache keyed by (instrument, period) whose misses are never
// errors, since the core always falls back to CandleSource on a miss.
type CandleCache struct {
	svc *CacheService
}

// NewCandleCache wraps a CacheService as the core's CandleCache collaborator.
func NewCandleCache(svc *CacheService) *CandleCache {
	return &CandleCache{svc: svc}
}

// GetOrFetch returns the cached latest candle for a stream, or calls fetch
// and stores the result when the cache misses or Redis is unavailable.
func (c *CandleCache) GetOrFetch(ctx context.Context, instrument string, p period.Period, fetch func(ctx context.Context) (candle.Candle, error)) (candle.Candle, error) {
	key := LatestCandleKey(instrument, string(p))

	var cached candle.Candle
	if err := c.svc.GetJSON(ctx, key, &cached); err == nil {
		return cached, nil
	}

	fresh, err := fetch(ctx)
	if err != nil {
		return candle.Candle{}, err
	}

	_ = c.svc.SetJSON(ctx, key, fresh, DefaultCandleTTL)
	return fresh, nil
}

// SetBoth writes the candle into the cache with the given TTL, overwriting
// any value a concurrent fetch raced in (last-writer-wins by timestamp is
// enforced by the caller, which only calls SetBoth with its own latest tick).
func (c *CandleCache) SetBoth(ctx context.Context, instrument string, p period.Period, cdl candle.Candle, ttl time.Duration) error {
	key := LatestCandleKey(instrument, string(p))
	return c.svc.SetJSON(ctx, key, cdl, ttl)
}
