package indicator

import (
	"testing"

	"vegasstrategy/internal/candle"
)

func TestEngulfingDetectsBullishEngulfing(t *testing.T) {
	e := NewEngulfing()
	e.Next(candle.Candle{Open: 108, Close: 102, High: 109, Low: 101})
	v := e.Next(candle.Candle{Open: 100, Close: 110, High: 111, Low: 99})
	if !v.IsEngulfing {
		t.Fatal("expected engulfing pattern to be detected")
	}
	if !v.IsBullish {
		t.Fatal("expected bullish direction from close > open")
	}
}

func TestEMASeedsOnFirstInput(t *testing.T) {
	e := NewEMA(5)
	if got := e.Next(100); got != 100 {
		t.Fatalf("expected EMA to seed at first input, got %v", got)
	}
	next := e.Next(110)
	if next <= 100 || next >= 110 {
		t.Fatalf("expected EMA to move toward new input, got %v", next)
	}
}

func TestVolumeRatioAboveOneWhenIncreasing(t *testing.T) {
	v := NewVolumeRatio(3, false)
	v.Next(10)
	v.Next(10)
	v.Next(10)
	out := v.Next(20)
	if !out.IsIncreasingThanPre {
		t.Fatalf("expected increasing flag when current volume exceeds the window mean, ratio=%v", out.Ratio)
	}
}

func TestATRNeverNegative(t *testing.T) {
	a := NewATR(14)
	candles := []candle.Candle{
		{High: 10, Low: 8, Close: 9},
		{High: 11, Low: 9, Close: 10},
		{High: 9, Low: 7, Close: 8},
	}
	for _, c := range candles {
		if got := a.Next(c); got < 0 {
			t.Fatalf("ATR must never be negative, got %v", got)
		}
	}
}
