package risk

import (
	"testing"

	"vegasstrategy/internal/candle"
)

func TestMaxLossStopScenario(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UseSignalKlineStopLoss = false
	pos := &Position{Side: Long, EntryPrice: 100, Size: 1}
	c := candle.Candle{Open: 99.9, High: 100.1, Low: 97.5, Close: 98.0}

	result := Apply(pos, cfg, c)
	if !result.Closed || result.Label != "max-loss stop" {
		t.Fatalf("expected max-loss stop, got %+v", result)
	}
	if result.ClosePrice != c.Close {
		t.Fatalf("expected close price %v, got %v", c.Close, result.ClosePrice)
	}
}

func TestTrailingStopTakesPriorityOverMaxLoss(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OneKlineDiffTrailingStop = true
	cfg.UseSignalKlineStopLoss = false
	armed := 99.0
	pos := &Position{Side: Long, EntryPrice: 100, Size: 1, MoveTakeProfitPrice: &armed}
	c := candle.Candle{Open: 99.9, High: 100.1, Low: 97.5, Close: 98.0}

	result := Apply(pos, cfg, c)
	if result.Label != "trailing stop" {
		t.Fatalf("expected trailing stop to take priority, got %q", result.Label)
	}
}

func TestNoCheckFiresWhenPositionIsSafe(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UseSignalKlineStopLoss = false
	pos := &Position{Side: Long, EntryPrice: 100, Size: 1}
	c := candle.Candle{Open: 100, High: 101, Low: 99.5, Close: 100.5}

	result := Apply(pos, cfg, c)
	if result.Closed {
		t.Fatalf("expected the position to remain open, got %+v", result)
	}
}
