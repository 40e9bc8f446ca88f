package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"vegasstrategy/internal/candle"
	"vegasstrategy/internal/period"
)

const (
	futuresWSBaseURL  = "wss://fstream.binance.com/ws"
	reconnectDelay    = 1 * time.Second
	maxReconnectDelay = 30 * time.Second
)

// klineEvent matches Binance's combined kline/candlestick stream payload.
// See: https://developers.binance.com/docs/derivatives/usds-margined-futures/websocket-market-streams/Kline-Candlestick-Streams
type klineEvent struct {
	EventType string `json:"e"`
	Kline     struct {
		OpenTime  int64  `json:"t"`
		CloseTime int64  `json:"T"`
		Interval  string `json:"i"`
		Open      string `json:"o"`
		Close     string `json:"c"`
		High      string `json:"h"`
		Low       string `json:"l"`
		Volume    string `json:"v"`
		IsClosed  bool   `json:"x"`
	} `json:"k"`
}

// KlineStream subscribes to one symbol/interval's live kline stream and
// feeds each confirmed bar to onCandle. It reconnects with exponential
// backoff on any read or dial error, the pattern the rest of the pack uses
// for Binance websocket ingest.
type KlineStream struct {
	instrument string
	period     period.Period
	interval   string
	onCandle   func(ctx context.Context, c candle.Candle) error
}

// NewKlineStream builds a stream for one (instrument, period) feeding
// onCandle with every closed bar.
func NewKlineStream(instrument string, p period.Period, onCandle func(ctx context.Context, c candle.Candle) error) (*KlineStream, error) {
	interval, err := binanceInterval(p)
	if err != nil {
		return nil, err
	}
	return &KlineStream{instrument: instrument, period: p, interval: interval, onCandle: onCandle}, nil
}

// Run connects and consumes until ctx is cancelled, reconnecting on error.
func (s *KlineStream) Run(ctx context.Context) {
	delay := reconnectDelay

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		err := s.connectAndConsume(ctx)
		if err == nil || ctx.Err() != nil {
			return
		}

		log.Printf("[BINANCE] kline stream %s/%s error: %v, reconnecting in %v", s.instrument, s.interval, err, delay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

func (s *KlineStream) connectAndConsume(ctx context.Context) error {
	streamName := fmt.Sprintf("%s@kline_%s", strings.ToLower(s.instrument), s.interval)
	url := fmt.Sprintf("%s/%s", futuresWSBaseURL, streamName)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	defer conn.Close()

	log.Printf("[BINANCE] kline stream connected: %s", streamName)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var evt klineEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			log.Printf("[BINANCE] kline stream %s: malformed event: %v", streamName, err)
			continue
		}
		if !evt.Kline.IsClosed {
			continue
		}

		c := candle.Candle{
			TsMillis: evt.Kline.OpenTime,
			Open:     parseFloat(evt.Kline.Open),
			High:     parseFloat(evt.Kline.High),
			Low:      parseFloat(evt.Kline.Low),
			Close:    parseFloat(evt.Kline.Close),
			Volume:   parseFloat(evt.Kline.Volume),
			Confirm:  true,
		}

		if err := s.onCandle(ctx, c); err != nil {
			log.Printf("[BINANCE] kline stream %s: onCandle error: %v", streamName, err)
		}
	}
}
