// Package database provides Redis-based order tracking with timeout.
// The Order Adapter uses this to enforce idempotency per (instrument,
// period, side, pos_side, bar-timestamp) and to cancel orders that sit
// unfilled past their timeout.
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis key prefixes for order tracking.
const (
	// PendingOrderKeyPrefix format: engine:pending_order:{idempotencyKey}
	PendingOrderKeyPrefix = "engine:pending_order"

	// PendingOrderListKey is the set of all pending order keys.
	PendingOrderListKey = "engine:pending_orders:list"

	// DefaultOrderTimeoutSec is the default timeout for orders (3 minutes).
	DefaultOrderTimeoutSec = 180
)

// PendingOrderInfo stores information about a pending order, keyed by the
// idempotency key the Order Adapter derives from (instrument, period, side,
// pos_side, bar-timestamp) so a re-delivered tick never double-places.
type PendingOrderInfo struct {
	IdempotencyKey string    `json:"idempotency_key"`
	OrderID        int64     `json:"order_id"`
	Instrument     string    `json:"instrument"`
	Side           string    `json:"side"`     // BUY or SELL
	PosSide        string    `json:"pos_side"` // LONG or SHORT
	Type           string    `json:"type"`     // LIMIT, MARKET, etc.
	Price          float64   `json:"price"`
	Quantity       float64   `json:"quantity"`
	PlacedAt       time.Time `json:"placed_at"`
	TimeoutSec     int       `json:"timeout_sec"`
	TimeoutAt      time.Time `json:"timeout_at"`
}

// OrderCancelFunc is a callback function to cancel an order on the exchange.
type OrderCancelFunc func(instrument string, orderID int64) error

// RedisOrderTracker tracks pending orders in Redis with timeout, and is the
// grounding for the Order Adapter's idempotency guard: ReadyToOrder checks
// AlreadyTracked before placing anything and calls TrackOrder after the
// placement, so a duplicate tick for the same idempotency key is a no-op
// rather than a second order.
type RedisOrderTracker struct {
	client        *redis.Client
	mu            sync.RWMutex
	cancelFunc    OrderCancelFunc
	timeoutSec    int
	stopChan      chan struct{}
	monitorWG     sync.WaitGroup
	isRunning     bool
	checkInterval time.Duration
}

// NewRedisOrderTracker creates a new RedisOrderTracker.
func NewRedisOrderTracker(client *redis.Client, timeoutSec int) *RedisOrderTracker {
	if timeoutSec <= 0 {
		timeoutSec = DefaultOrderTimeoutSec
	}

	return &RedisOrderTracker{
		client:        client,
		timeoutSec:    timeoutSec,
		stopChan:      make(chan struct{}),
		checkInterval: 10 * time.Second,
	}
}

// SetCancelFunc sets the callback function to cancel orders on the exchange.
func (t *RedisOrderTracker) SetCancelFunc(fn OrderCancelFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelFunc = fn
}

// SetTimeoutSec updates the timeout duration.
func (t *RedisOrderTracker) SetTimeoutSec(timeoutSec int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if timeoutSec > 0 {
		t.timeoutSec = timeoutSec
	}
}

// OrderIdempotencyKey derives the idempotency key from the Order Adapter's tuple.
func OrderIdempotencyKey(instrument, period, side, posSide string, barTsMillis int64) string {
	return fmt.Sprintf("%s:%s:%s:%s:%d", instrument, period, side, posSide, barTsMillis)
}

// AlreadyTracked reports whether an order for this idempotency key is
// already pending, the guard ReadyToOrder consults before placing anything.
func (t *RedisOrderTracker) AlreadyTracked(ctx context.Context, idempotencyKey string) (bool, error) {
	if t.client == nil {
		t.mu.RLock()
		defer t.mu.RUnlock()
		return false, nil
	}
	key := fmt.Sprintf("%s:%s", PendingOrderKeyPrefix, idempotencyKey)
	exists, err := t.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check idempotency key: %w", err)
	}
	return exists > 0, nil
}

// TrackOrder adds an order to the tracking system.
func (t *RedisOrderTracker) TrackOrder(ctx context.Context, info PendingOrderInfo) error {
	if t.client == nil {
		log.Printf("[ORDER-TRACKER] Redis client not available, cannot track order %d", info.OrderID)
		return fmt.Errorf("redis client not available")
	}

	t.mu.RLock()
	timeoutSec := t.timeoutSec
	t.mu.RUnlock()

	if info.TimeoutSec <= 0 {
		info.TimeoutSec = timeoutSec
	}
	info.PlacedAt = time.Now()
	info.TimeoutAt = info.PlacedAt.Add(time.Duration(info.TimeoutSec) * time.Second)

	key := fmt.Sprintf("%s:%s", PendingOrderKeyPrefix, info.IdempotencyKey)

	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal order info: %w", err)
	}

	ttl := time.Duration(info.TimeoutSec+60) * time.Second
	if err := t.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store order in Redis: %w", err)
	}

	if err := t.client.SAdd(ctx, PendingOrderListKey, key).Err(); err != nil {
		log.Printf("[ORDER-TRACKER] Warning: Failed to add order to list: %v", err)
	}

	log.Printf("[ORDER-TRACKER] Tracking order %d for %s, timeout in %ds at %s",
		info.OrderID, info.Instrument, info.TimeoutSec, info.TimeoutAt.Format("15:04:05"))

	return nil
}

// RemoveOrder removes an order from tracking (called when filled or cancelled).
func (t *RedisOrderTracker) RemoveOrder(ctx context.Context, idempotencyKey string) error {
	if t.client == nil {
		return nil
	}

	key := fmt.Sprintf("%s:%s", PendingOrderKeyPrefix, idempotencyKey)

	if err := t.client.Del(ctx, key).Err(); err != nil {
		log.Printf("[ORDER-TRACKER] Warning: Failed to remove order %s from Redis: %v", idempotencyKey, err)
	}
	if err := t.client.SRem(ctx, PendingOrderListKey, key).Err(); err != nil {
		log.Printf("[ORDER-TRACKER] Warning: Failed to remove order from list: %v", err)
	}

	return nil
}

// GetPendingOrders returns all pending orders.
func (t *RedisOrderTracker) GetPendingOrders(ctx context.Context) ([]PendingOrderInfo, error) {
	if t.client == nil {
		return nil, fmt.Errorf("redis client not available")
	}

	keys, err := t.client.SMembers(ctx, PendingOrderListKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get pending order keys: %w", err)
	}

	var orders []PendingOrderInfo
	for _, key := range keys {
		data, err := t.client.Get(ctx, key).Result()
		if err == redis.Nil {
			t.client.SRem(ctx, PendingOrderListKey, key)
			continue
		} else if err != nil {
			log.Printf("[ORDER-TRACKER] Warning: Failed to get order data for %s: %v", key, err)
			continue
		}

		var info PendingOrderInfo
		if err := json.Unmarshal([]byte(data), &info); err != nil {
			log.Printf("[ORDER-TRACKER] Warning: Failed to unmarshal order data: %v", err)
			continue
		}
		orders = append(orders, info)
	}

	return orders, nil
}

// StartMonitor starts the background monitor that cancels timed-out orders.
func (t *RedisOrderTracker) StartMonitor() {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return
	}
	t.isRunning = true
	t.stopChan = make(chan struct{})
	t.mu.Unlock()

	t.monitorWG.Add(1)
	go t.monitorLoop()

	log.Printf("[ORDER-TRACKER] Started order timeout monitor (check every %v)", t.checkInterval)
}

// StopMonitor stops the background monitor.
func (t *RedisOrderTracker) StopMonitor() {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return
	}
	t.isRunning = false
	close(t.stopChan)
	t.mu.Unlock()

	t.monitorWG.Wait()
	log.Printf("[ORDER-TRACKER] Stopped order timeout monitor")
}

func (t *RedisOrderTracker) monitorLoop() {
	defer t.monitorWG.Done()

	ticker := time.NewTicker(t.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopChan:
			return
		case <-ticker.C:
			t.checkAndCancelTimedOutOrders()
		}
	}
}

func (t *RedisOrderTracker) checkAndCancelTimedOutOrders() {
	ctx := context.Background()

	orders, err := t.GetPendingOrders(ctx)
	if err != nil {
		log.Printf("[ORDER-TRACKER] Error getting pending orders: %v", err)
		return
	}
	if len(orders) == 0 {
		return
	}

	now := time.Now()
	t.mu.RLock()
	cancelFunc := t.cancelFunc
	t.mu.RUnlock()

	for _, order := range orders {
		if now.After(order.TimeoutAt) {
			age := now.Sub(order.PlacedAt)
			log.Printf("[ORDER-TRACKER] Order %d for %s timed out after %v (placed at %s, timeout at %s)",
				order.OrderID, order.Instrument, age.Round(time.Second),
				order.PlacedAt.Format("15:04:05"), order.TimeoutAt.Format("15:04:05"))

			if cancelFunc != nil {
				if err := cancelFunc(order.Instrument, order.OrderID); err != nil {
					log.Printf("[ORDER-TRACKER] Failed to cancel order %d for %s: %v",
						order.OrderID, order.Instrument, err)
				} else {
					log.Printf("[ORDER-TRACKER] Successfully cancelled timed-out order %d for %s",
						order.OrderID, order.Instrument)
				}
			} else {
				log.Printf("[ORDER-TRACKER] Warning: No cancel function set, cannot cancel order %d", order.OrderID)
			}

			t.RemoveOrder(ctx, order.IdempotencyKey)
		}
	}
}

// GetStats returns statistics about pending orders.
func (t *RedisOrderTracker) GetStats(ctx context.Context) map[string]interface{} {
	orders, err := t.GetPendingOrders(ctx)
	if err != nil {
		return map[string]interface{}{
			"error":         err.Error(),
			"pending_count": 0,
		}
	}

	t.mu.RLock()
	timeoutSec := t.timeoutSec
	isRunning := t.isRunning
	t.mu.RUnlock()

	byInstrument := make(map[string]int)
	for _, o := range orders {
		byInstrument[o.Instrument]++
	}

	return map[string]interface{}{
		"pending_count":   len(orders),
		"timeout_sec":     timeoutSec,
		"monitor_running": isRunning,
		"by_instrument":   byInstrument,
		"check_interval":  t.checkInterval.String(),
	}
}
