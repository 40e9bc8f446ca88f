package binance

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"vegasstrategy/internal/candle"
	"vegasstrategy/internal/database"
	"vegasstrategy/internal/execution"
	"vegasstrategy/internal/period"
)

// CandleAdapter implements execution.CandleSource over a FuturesClient,
// translating the core's wire periods into Binance kline intervals.
type CandleAdapter struct {
	client FuturesClient
}

// NewCandleAdapter wraps a FuturesClient as the core's CandleSource collaborator.
func NewCandleAdapter(client FuturesClient) *CandleAdapter {
	return &CandleAdapter{client: client}
}

func binanceInterval(p period.Period) (string, error) {
	switch p {
	case period.OneMinute:
		return "1m", nil
	case period.FiveMinutes:
		return "5m", nil
	case period.FifteenMinutes:
		return "15m", nil
	case period.OneHour:
		return "1h", nil
	case period.FourHours:
		return "4h", nil
	case period.OneDayUTC:
		return "1d", nil
	default:
		return "", fmt.Errorf("unsupported period: %s", p)
	}
}

func klineToCandle(k Kline) candle.Candle {
	return candle.Candle{
		TsMillis: k.OpenTime,
		Open:     k.Open,
		High:     k.High,
		Low:      k.Low,
		Close:    k.Close,
		Volume:   k.Volume,
		Confirm:  true,
	}
}

// FetchRange returns up to count klines for (instrument, period), oldest
// first. The most recent kline is marked unconfirmed: Binance's klines
// endpoint always includes the still-forming current bar last.
func (a *CandleAdapter) FetchRange(ctx context.Context, instrument string, p period.Period, count int, anchorTsMillis *int64) ([]candle.Candle, error) {
	interval, err := binanceInterval(p)
	if err != nil {
		return nil, err
	}

	kl, err := a.client.GetFuturesKlines(instrument, interval, count)
	if err != nil {
		return nil, err
	}

	candles := make([]candle.Candle, len(kl))
	for i, k := range kl {
		candles[i] = klineToCandle(k)
	}
	if n := len(candles); n > 0 {
		candles[n-1].Confirm = false
	}
	return candles, nil
}

// FetchLatest returns the single most recent candle for (instrument, period).
// freshness is advisory only: a REST fetch is always current as of the call.
func (a *CandleAdapter) FetchLatest(ctx context.Context, instrument string, p period.Period, freshness execution.FreshnessPolicy) (candle.Candle, bool, error) {
	candles, err := a.FetchRange(ctx, instrument, p, 1, nil)
	if err != nil {
		return candle.Candle{}, false, err
	}
	if len(candles) == 0 {
		return candle.Candle{}, false, nil
	}
	return candles[0], true, nil
}

var _ execution.CandleSource = (*CandleAdapter)(nil)

// OrderAdapter implements execution.OrderAdapter (§6): it places a futures
// order through FuturesClient, guarding every call with the Redis order
// tracker's idempotency key so a re-delivered tick for the same bar never
// places a second order.
type OrderAdapter struct {
	client       FuturesClient
	tracker      *database.RedisOrderTracker
	orderSizeUSD float64
	timeoutSec   int
}

// NewOrderAdapter wraps a FuturesClient and idempotency tracker as the
// core's OrderAdapter collaborator. orderSizeUSD sizes every market order by
// notional value; timeoutSec is the pending-order cancellation window.
func NewOrderAdapter(client FuturesClient, tracker *database.RedisOrderTracker, orderSizeUSD float64, timeoutSec int) *OrderAdapter {
	if orderSizeUSD <= 0 {
		orderSizeUSD = 100
	}
	return &OrderAdapter{client: client, tracker: tracker, orderSizeUSD: orderSizeUSD, timeoutSec: timeoutSec}
}

// ReadyToOrder places the order the Trade State Machine requested, unless an
// order for this exact (instrument, period, side, pos_side, bar-timestamp)
// is already pending.
//
// Side, position-side, timestamp, and price all come from req.Record, not
// req.Signal: a single tick can produce two records sharing one triggering
// Signal (a reversal's close-then-open), and Signal alone cannot tell those
// two legs apart — deriving the idempotency key from Signal would collapse
// them into one key and silently drop the second order.
func (a *OrderAdapter) ReadyToOrder(ctx context.Context, req execution.OrderRequest) error {
	rec := req.Record
	isEntry := rec.OptionType == "long" || rec.OptionType == "short"
	isExit := rec.OptionType == "close" || rec.OptionType == "partial"
	if !isEntry && !isExit {
		return nil
	}

	var side, posSide string
	var tsMillis int64
	var price float64
	switch {
	case isEntry && rec.Side == "long":
		side, posSide = "BUY", "LONG"
		tsMillis, price = rec.OpenTsMillis, rec.OpenPrice
	case isEntry && rec.Side == "short":
		side, posSide = "SELL", "SHORT"
		tsMillis, price = rec.OpenTsMillis, rec.OpenPrice
	case isExit && rec.Side == "long":
		side, posSide = "SELL", "LONG"
		tsMillis, price = rec.CloseTsMillis, rec.ClosePrice
	case isExit && rec.Side == "short":
		side, posSide = "BUY", "SHORT"
		tsMillis, price = rec.CloseTsMillis, rec.ClosePrice
	default:
		return fmt.Errorf("order request for %s has no resolvable side", req.Instrument)
	}

	idemKey := database.OrderIdempotencyKey(req.Instrument, string(req.Period), rec.OptionType+":"+side, posSide, tsMillis)

	tracked, err := a.tracker.AlreadyTracked(ctx, idemKey)
	if err != nil {
		return fmt.Errorf("checking order idempotency: %w", err)
	}
	if tracked {
		return nil
	}

	if price <= 0 {
		return fmt.Errorf("order request for %s has no price", req.Instrument)
	}
	qty := rec.Size
	if qty <= 0 {
		qty = a.orderSizeUSD / price
	}

	resp, err := a.client.PlaceFuturesOrder(FuturesOrderParams{
		Symbol:           req.Instrument,
		Side:             side,
		PositionSide:     PositionSide(posSide),
		Type:             FuturesOrderTypeMarket,
		Quantity:         qty,
		NewClientOrderId: clientOrderID(idemKey),
	})
	if err != nil {
		return fmt.Errorf("placing order for %s: %w", req.Instrument, err)
	}

	return a.tracker.TrackOrder(ctx, database.PendingOrderInfo{
		IdempotencyKey: idemKey,
		OrderID:        resp.OrderId,
		Instrument:     req.Instrument,
		Side:           side,
		PosSide:        posSide,
		Type:           string(FuturesOrderTypeMarket),
		Price:          resp.AvgPrice,
		Quantity:       qty,
		TimeoutSec:     a.timeoutSec,
	})
}

// clientOrderID derives a deterministic exchange-side client order ID from
// the Redis idempotency key: the same (instrument, period, side, pos_side,
// bar-timestamp) always produces the same ID, giving Binance its own
// dedup guard as a second line of defense behind the Redis tracker.
func clientOrderID(idemKey string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(idemKey)).String()
}

// CancelFunc adapts FuturesClient.CancelFuturesOrder to database.OrderCancelFunc,
// wired into RedisOrderTracker.SetCancelFunc so the timeout monitor can cancel
// orders that sit unfilled past their window.
func (a *OrderAdapter) CancelFunc() database.OrderCancelFunc {
	return func(instrument string, orderID int64) error {
		return a.client.CancelFuturesOrder(instrument, orderID)
	}
}

var _ execution.OrderAdapter = (*OrderAdapter)(nil)
