// Package database provides Redis-based position state persistence so an
// open position survives an engine restart without replaying history.
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"vegasstrategy/internal/risk"
)

// Redis key prefixes for position state, namespaced by stream rather than
// by tenant: one Vegas engine instance trades a fixed set of streams.
const (
	// PositionKeyPrefix format: engine:position:{instrument}:{period}:{strategyType}
	PositionKeyPrefix = "engine:position"

	// PositionListKey is the set of all stream keys with a saved position.
	PositionListKey = "engine:positions:list"

	// PositionStateTTL is the TTL for position state keys.
	PositionStateTTL = 7 * 24 * time.Hour
)

// PersistedPosition is the crash-recovery snapshot of risk.Position for one
// (instrument, period, strategyType) stream, plus the saved timestamp.
type PersistedPosition struct {
	Instrument   string  `json:"instrument"`
	Period       string  `json:"period"`
	StrategyType string  `json:"strategy_type"`
	Side         string  `json:"side"` // "LONG" or "SHORT"
	EntryPrice   float64 `json:"entry_price"`
	EntryTsMillis int64  `json:"entry_ts_millis"`
	Size          float64 `json:"size"`

	BestTakeProfitPrice      *float64 `json:"best_take_profit_price,omitempty"`
	SignalKlineStopClosePrice *float64 `json:"signal_kline_stop_close_price,omitempty"`
	SignalHighLowDiff        float64  `json:"signal_high_low_diff"`

	TouchTakeProfitPrice *float64 `json:"touch_take_profit_price,omitempty"`
	MoveTakeProfitPrice  *float64 `json:"move_take_profit_price,omitempty"`
	ProfitRatioTarget    *float64 `json:"profit_ratio_target,omitempty"`

	SavedAt time.Time `json:"saved_at"`
}

// ToRiskPosition converts the persisted snapshot back to the risk overlay's
// in-memory Position, resuming the Trade State Machine where it left off.
func (p *PersistedPosition) ToRiskPosition() risk.Position {
	side := risk.Long
	if p.Side == "SHORT" {
		side = risk.Short
	}
	return risk.Position{
		Side:                      side,
		EntryPrice:                p.EntryPrice,
		EntryTsMillis:             p.EntryTsMillis,
		Size:                      p.Size,
		BestTakeProfitPrice:       p.BestTakeProfitPrice,
		SignalKlineStopClosePrice: p.SignalKlineStopClosePrice,
		SignalHighLowDiff:         p.SignalHighLowDiff,
		TouchTakeProfitPrice:      p.TouchTakeProfitPrice,
		MoveTakeProfitPrice:       p.MoveTakeProfitPrice,
		ProfitRatioTarget:         p.ProfitRatioTarget,
	}
}

// NewPersistedPosition captures a risk.Position snapshot for one stream.
func NewPersistedPosition(instrument, period, strategyType string, pos risk.Position) *PersistedPosition {
	side := "LONG"
	if pos.Side == risk.Short {
		side = "SHORT"
	}
	return &PersistedPosition{
		Instrument:                instrument,
		Period:                    period,
		StrategyType:              strategyType,
		Side:                      side,
		EntryPrice:                pos.EntryPrice,
		EntryTsMillis:             pos.EntryTsMillis,
		Size:                      pos.Size,
		BestTakeProfitPrice:       pos.BestTakeProfitPrice,
		SignalKlineStopClosePrice: pos.SignalKlineStopClosePrice,
		SignalHighLowDiff:         pos.SignalHighLowDiff,
		TouchTakeProfitPrice:      pos.TouchTakeProfitPrice,
		MoveTakeProfitPrice:       pos.MoveTakeProfitPrice,
		ProfitRatioTarget:         pos.ProfitRatioTarget,
	}
}

// RedisPositionStateRepository stores the single open position per stream in
// Redis, with an in-memory fallback cache when Redis is unavailable. This
// lets the live engine resume an open position across a restart without
// losing the trailing-stop arm state the risk overlay depends on.
type RedisPositionStateRepository struct {
	client         *redis.Client
	inMemoryCache  map[string]*PersistedPosition
	cacheMu        sync.RWMutex
	redisAvailable atomic.Bool
}

// NewRedisPositionStateRepository creates a new RedisPositionStateRepository.
// If client is nil, the repository operates in memory-only mode.
func NewRedisPositionStateRepository(client *redis.Client) *RedisPositionStateRepository {
	repo := &RedisPositionStateRepository{
		client:        client,
		inMemoryCache: make(map[string]*PersistedPosition),
	}

	if client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			log.Printf("[REDIS-POSITION] Redis unavailable at startup: %v, using in-memory cache", err)
			repo.redisAvailable.Store(false)
		} else {
			repo.redisAvailable.Store(true)
		}
	}

	return repo
}

func streamKey(instrument, period, strategyType string) string {
	return fmt.Sprintf("%s:%s:%s", instrument, period, strategyType)
}

func (r *RedisPositionStateRepository) positionKey(instrument, period, strategyType string) string {
	return fmt.Sprintf("%s:%s", PositionKeyPrefix, streamKey(instrument, period, strategyType))
}

// SavePosition saves the open position's state for one stream, updating the
// in-memory cache unconditionally and Redis when reachable.
func (r *RedisPositionStateRepository) SavePosition(ctx context.Context, instrument, period, strategyType string, state *PersistedPosition) error {
	if state == nil {
		return fmt.Errorf("cannot save nil position state")
	}
	state.SavedAt = time.Now()

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal position state: %w", err)
	}

	key := streamKey(instrument, period, strategyType)
	r.cacheMu.Lock()
	stateCopy := *state
	r.inMemoryCache[key] = &stateCopy
	r.cacheMu.Unlock()

	if r.client != nil && r.redisAvailable.Load() {
		redisKey := r.positionKey(instrument, period, strategyType)
		pipe := r.client.TxPipeline()
		pipe.Set(ctx, redisKey, data, PositionStateTTL)
		pipe.SAdd(ctx, PositionListKey, redisKey)
		pipe.Expire(ctx, PositionListKey, PositionStateTTL)

		if _, err := pipe.Exec(ctx); err != nil {
			log.Printf("[REDIS-POSITION] Failed to save to Redis: %v, using in-memory cache", err)
			r.redisAvailable.Store(false)
			return nil
		}
	}

	return nil
}

// LoadPosition loads the open position's state for one stream, returning nil
// if none is persisted (not an error).
func (r *RedisPositionStateRepository) LoadPosition(ctx context.Context, instrument, period, strategyType string) (*PersistedPosition, error) {
	if r.client != nil && r.redisAvailable.Load() {
		redisKey := r.positionKey(instrument, period, strategyType)
		data, err := r.client.Get(ctx, redisKey).Result()
		if err != nil {
			if err == redis.Nil {
				return r.getFromCache(instrument, period, strategyType), nil
			}
			log.Printf("[REDIS-POSITION] Redis read error: %v, using in-memory cache", err)
			r.redisAvailable.Store(false)
			return r.getFromCache(instrument, period, strategyType), nil
		}

		r.redisAvailable.Store(true)

		var state PersistedPosition
		if err := json.Unmarshal([]byte(data), &state); err != nil {
			return nil, fmt.Errorf("failed to unmarshal position state: %w", err)
		}

		key := streamKey(instrument, period, strategyType)
		r.cacheMu.Lock()
		stateCopy := state
		r.inMemoryCache[key] = &stateCopy
		r.cacheMu.Unlock()

		return &state, nil
	}

	return r.getFromCache(instrument, period, strategyType), nil
}

// DeletePosition removes a stream's persisted position after it closes.
func (r *RedisPositionStateRepository) DeletePosition(ctx context.Context, instrument, period, strategyType string) error {
	key := streamKey(instrument, period, strategyType)
	r.cacheMu.Lock()
	delete(r.inMemoryCache, key)
	r.cacheMu.Unlock()

	if r.client != nil && r.redisAvailable.Load() {
		redisKey := r.positionKey(instrument, period, strategyType)
		pipe := r.client.TxPipeline()
		pipe.Del(ctx, redisKey)
		pipe.SRem(ctx, PositionListKey, redisKey)

		if _, err := pipe.Exec(ctx); err != nil {
			log.Printf("[REDIS-POSITION] Failed to delete from Redis: %v", err)
			r.redisAvailable.Store(false)
		}
	}

	return nil
}

// IsRedisAvailable reports whether Redis is currently reachable.
func (r *RedisPositionStateRepository) IsRedisAvailable() bool {
	return r.redisAvailable.Load()
}

// CheckRedisConnection performs a health check and updates availability status.
func (r *RedisPositionStateRepository) CheckRedisConnection(ctx context.Context) error {
	if r.client == nil {
		return fmt.Errorf("no Redis client configured")
	}

	if err := r.client.Ping(ctx).Err(); err != nil {
		r.redisAvailable.Store(false)
		return fmt.Errorf("redis ping failed: %w", err)
	}

	wasUnavailable := !r.redisAvailable.Load()
	r.redisAvailable.Store(true)
	if wasUnavailable {
		log.Printf("[REDIS-POSITION] Redis connection recovered")
	}
	return nil
}

func (r *RedisPositionStateRepository) getFromCache(instrument, period, strategyType string) *PersistedPosition {
	key := streamKey(instrument, period, strategyType)

	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	if state, exists := r.inMemoryCache[key]; exists {
		stateCopy := *state
		return &stateCopy
	}
	return nil
}

// PositionStateStats reports repository health for the status API.
type PositionStateStats struct {
	RedisAvailable    bool `json:"redis_available"`
	InMemoryCacheSize int  `json:"in_memory_cache_size"`
}

// GetStats returns current repository statistics.
func (r *RedisPositionStateRepository) GetStats() PositionStateStats {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	return PositionStateStats{
		RedisAvailable:    r.redisAvailable.Load(),
		InMemoryCacheSize: len(r.inMemoryCache),
	}
}
