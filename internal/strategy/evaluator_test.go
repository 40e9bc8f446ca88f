package strategy

import (
	"testing"

	"vegasstrategy/internal/candle"
	"vegasstrategy/internal/indicator"
	"vegasstrategy/internal/signalcond"
)

func TestEvaluateEngulfingLongSignal(t *testing.T) {
	cfg := Config{
		VolumeFilter:  VolumeFilterConfig{IsOpen: false},
		Engulfing:     EngulfingConfig{IsOpen: true, BodyRatioThreshold: 0.5},
		EmaTouchTrend: EmaTouchTrendConfig{IsOpen: true},
		Weights:       signalcond.DefaultWeights(),
	}
	window := []candle.Candle{
		{Open: 108, Close: 102, High: 109, Low: 101},
		{Open: 100, Close: 110, High: 111, Low: 99},
	}
	// The last candle dips to EMA2 (Low 99 <= 100) and closes above it in a
	// long trend, so the EMA-touch condition joins the engulfing one and the
	// two together reach the default minimum total weight of 2.0.
	vals := indicator.Values{
		EMA: indicator.EMAValue{IsLongTrend: true, EMA2: 100},
		Engulfing: indicator.EngulfingValue{
			IsEngulfing: true,
			BodyRatio:   0.9,
			IsBullish:   true,
		},
	}

	result := Evaluate(window, vals, cfg)
	if !result.ShouldBuy {
		t.Fatalf("expected ShouldBuy true, got %+v", result)
	}
	if result.ShouldSell {
		t.Fatal("ShouldBuy and ShouldSell must not both be true")
	}
}

func TestEvaluateEmptyWindowIsNoSignal(t *testing.T) {
	cfg := DefaultConfig()
	result := Evaluate(nil, indicator.Values{}, cfg)
	if result.ShouldBuy || result.ShouldSell {
		t.Fatal("expected no signal for an empty window")
	}
}

func TestEvaluateNeverEmitsBothSides(t *testing.T) {
	cfg := DefaultConfig()
	cfg.VolumeFilter.IsOpen = false
	window := []candle.Candle{{Open: 100, Close: 101, High: 102, Low: 99, TsMillis: 1}}
	vals := indicator.Values{
		Bollinger: indicator.BollingerValue{Upper: 90, Lower: 80, Middle: 85},
		EMA:       indicator.EMAValue{EMA1: 100},
	}
	result := Evaluate(window, vals, cfg)
	if result.ShouldBuy && result.ShouldSell {
		t.Fatal("should_buy and should_sell must never both be true")
	}
}

func TestEvaluateNweLongBreakout(t *testing.T) {
	cfg := DefaultNweConfig()
	window := []candle.Candle{{Open: 100, Close: 99, High: 101, Low: 78, TsMillis: 1}}
	vals := indicator.Values{
		Bollinger: indicator.BollingerValue{Upper: 110, Lower: 80, Middle: 95},
		ATR:       5,
	}

	result := evaluateNwe(window, vals, cfg)
	if !result.ShouldBuy {
		t.Fatalf("expected ShouldBuy true on a low breaking below the lower band, got %+v", result)
	}
	if result.SignalKlineStopLossPrice == nil || *result.SignalKlineStopLossPrice != 78 {
		t.Fatalf("expected stop loss at the signal candle's low, got %+v", result.SignalKlineStopLossPrice)
	}
}

func TestEvaluateNweSuppressedInFlatBand(t *testing.T) {
	cfg := DefaultNweConfig()
	cfg.Nwe.ATRMinBandWidth = 10
	window := []candle.Candle{{Open: 100, Close: 99, High: 101, Low: 78, TsMillis: 1}}
	vals := indicator.Values{
		Bollinger: indicator.BollingerValue{Upper: 110, Lower: 80, Middle: 95},
		ATR:       5,
	}

	result := evaluateNwe(window, vals, cfg)
	if result.ShouldBuy || result.ShouldSell {
		t.Fatal("expected no signal when band width is below the minimum ATR multiple")
	}
}
