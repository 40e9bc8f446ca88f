package binance

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"
)

// MockClient is a FuturesClient test double that synthesizes a random-walk
// price series per symbol instead of calling the live REST API. It backs
// replay-mode smoke tests and local development without exchange keys.
type MockClient struct {
	mu         sync.Mutex
	prices     map[string]float64
	lastUpdate time.Time
	nextOrder  int64
	open       map[int64]FuturesOrder
}

// NewMockClient creates a new MockClient seeded with realistic perpetual
// starting prices.
func NewMockClient() *MockClient {
	rand.Seed(time.Now().UnixNano())

	return &MockClient{
		prices: map[string]float64{
			"BTCUSDT": 104500.00,
			"ETHUSDT": 3900.00,
			"SOLUSDT": 220.00,
		},
		lastUpdate: time.Now(),
		nextOrder:  1,
		open:       make(map[int64]FuturesOrder),
	}
}

// updatePrices applies a small random walk to every tracked symbol, at most
// once per second, so repeated calls within one tick see a stable price.
func (mc *MockClient) updatePrices() {
	if time.Since(mc.lastUpdate) < time.Second {
		return
	}
	for symbol, price := range mc.prices {
		change := (rand.Float64() - 0.5) * 0.01
		mc.prices[symbol] = price * (1 + change)
	}
	mc.lastUpdate = time.Now()
}

func (mc *MockClient) priceFor(symbol string) float64 {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.updatePrices()
	if p, ok := mc.prices[symbol]; ok {
		return p
	}
	return 100.0
}

// GetFuturesKlines synthesizes limit klines ending at the current time.
func (mc *MockClient) GetFuturesKlines(symbol, interval string, limit int) ([]Kline, error) {
	step := intervalToMillis(interval)
	now := time.Now().UnixMilli()
	price := mc.priceFor(symbol)

	klines := make([]Kline, limit)
	for i := limit - 1; i >= 0; i-- {
		openTime := now - int64(i+1)*step
		volatility := 0.02
		open := price
		change := (rand.Float64() - 0.5) * volatility * 2
		close := open * (1 + change)
		high := math.Max(open, close) * (1 + rand.Float64()*volatility*0.5)
		low := math.Min(open, close) * (1 - rand.Float64()*volatility*0.5)

		klines[limit-1-i] = Kline{
			OpenTime:  openTime,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    1000 + rand.Float64()*5000,
			CloseTime: openTime + step - 1,
		}
		price = close
	}

	return klines, nil
}

// GetFuturesCurrentPrice returns the mock's latest random-walk price.
func (mc *MockClient) GetFuturesCurrentPrice(symbol string) (float64, error) {
	return mc.priceFor(symbol), nil
}

// PlaceFuturesOrder records an order as immediately filled at the mock price.
func (mc *MockClient) PlaceFuturesOrder(params FuturesOrderParams) (*FuturesOrderResponse, error) {
	price := params.Price
	if price == 0 {
		price = mc.priceFor(params.Symbol)
	}

	mc.mu.Lock()
	id := mc.nextOrder
	mc.nextOrder++
	order := FuturesOrder{
		OrderId:       id,
		Symbol:        params.Symbol,
		Status:        "FILLED",
		Price:         price,
		AvgPrice:      price,
		OrigQty:       params.Quantity,
		ExecutedQty:   params.Quantity,
		Type:          string(params.Type),
		Side:          params.Side,
		PositionSide:  string(params.PositionSide),
		ReduceOnly:    params.ReduceOnly,
		ClosePosition: params.ClosePosition,
		Time:          time.Now().UnixMilli(),
		UpdateTime:    time.Now().UnixMilli(),
	}
	mc.open[id] = order
	mc.mu.Unlock()

	return &FuturesOrderResponse{
		OrderId:       order.OrderId,
		Symbol:        order.Symbol,
		Status:        order.Status,
		Price:         order.Price,
		AvgPrice:      order.AvgPrice,
		OrigQty:       order.OrigQty,
		ExecutedQty:   order.ExecutedQty,
		Type:          order.Type,
		Side:          order.Side,
		PositionSide:  order.PositionSide,
		ReduceOnly:    order.ReduceOnly,
		ClosePosition: order.ClosePosition,
		UpdateTime:    order.UpdateTime,
	}, nil
}

// CancelFuturesOrder removes the order from the mock's open-order set.
func (mc *MockClient) CancelFuturesOrder(symbol string, orderId int64) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if _, ok := mc.open[orderId]; !ok {
		return fmt.Errorf("mock order %d not found", orderId)
	}
	delete(mc.open, orderId)
	return nil
}

// GetOpenOrders returns the mock's tracked open orders for a symbol (empty
// string for all symbols).
func (mc *MockClient) GetOpenOrders(symbol string) ([]FuturesOrder, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	orders := make([]FuturesOrder, 0, len(mc.open))
	for _, o := range mc.open {
		if symbol == "" || o.Symbol == symbol {
			orders = append(orders, o)
		}
	}
	return orders, nil
}

func intervalToMillis(interval string) int64 {
	switch interval {
	case "1m":
		return 60_000
	case "5m":
		return 5 * 60_000
	case "15m":
		return 15 * 60_000
	case "1h":
		return 60 * 60_000
	case "4h":
		return 4 * 60 * 60_000
	case "1d":
		return 24 * 60 * 60_000
	default:
		return 60_000
	}
}

var _ FuturesClient = (*MockClient)(nil)
