package tradestate

import (
	"testing"

	"vegasstrategy/internal/candle"
	"vegasstrategy/internal/risk"
	"vegasstrategy/internal/strategy"
)

func TestMaxLossStopUpdatesFundsAndRecordsLabel(t *testing.T) {
	s := New()
	s.Funds = 100
	s.Position = &risk.Position{Side: risk.Long, EntryPrice: 100, Size: 1}

	riskCfg := risk.DefaultConfig()
	riskCfg.UseSignalKlineStopLoss = false
	c := candle.Candle{Open: 99.9, High: 100.1, Low: 97.5, Close: 98.0, TsMillis: 1000}

	s.DealSignal(c, strategy.Result{}, riskCfg)

	if s.Position != nil {
		t.Fatal("expected position to be closed")
	}
	last := s.TradeRecords[len(s.TradeRecords)-1]
	if last.CloseType != "max-loss stop" {
		t.Fatalf("expected max-loss stop label, got %q", last.CloseType)
	}
	if last.ClosePrice != c.Close {
		t.Fatalf("expected close price %v, got %v", c.Close, last.ClosePrice)
	}
	wantPnl := (98.0-100.0)*1 - 1*100*FeeRate
	if diff := absFloat(last.ProfitLoss - wantPnl); diff > 1e-9 {
		t.Fatalf("expected pnl %v, got %v", wantPnl, last.ProfitLoss)
	}
}

func TestFullReversalInOneTick(t *testing.T) {
	s := New()
	s.Funds = 100
	s.Position = &risk.Position{Side: risk.Long, EntryPrice: 100, Size: 1}

	riskCfg := risk.DefaultConfig()
	riskCfg.UseSignalKlineStopLoss = false
	riskCfg.MaxLossPercent = 0

	c := candle.Candle{Open: 100.5, High: 101.2, Low: 100.1, Close: 101, TsMillis: 2000}
	signal := strategy.Result{ShouldSell: true, OpenPrice: 101, TsMillis: 2000}

	s.DealSignal(c, signal, riskCfg)

	if len(s.TradeRecords) != 2 {
		t.Fatalf("expected a close record followed by an entry record, got %d", len(s.TradeRecords))
	}
	closeRec := s.TradeRecords[0]
	if closeRec.CloseType != "reverse signal" || closeRec.ClosePrice != 101 {
		t.Fatalf("expected reverse signal close at 101, got %+v", closeRec)
	}
	wantPnl := (101.0-100.0)*1 - 1*100*FeeRate
	if diff := absFloat(closeRec.ProfitLoss - wantPnl); diff > 1e-9 {
		t.Fatalf("expected realized pnl %v, got %v", wantPnl, closeRec.ProfitLoss)
	}

	entryRec := s.TradeRecords[1]
	if entryRec.OptionType != "short" || entryRec.OpenPrice != 101 {
		t.Fatalf("expected a new short entry at 101, got %+v", entryRec)
	}
	if s.Position == nil || s.Position.Side != risk.Short {
		t.Fatal("expected state to hold a short position after the reversal")
	}
}

func TestAtMostOnePositionInvariant(t *testing.T) {
	s := New()
	riskCfg := risk.DefaultConfig()
	riskCfg.UseSignalKlineStopLoss = false
	c := candle.Candle{Open: 100, High: 101, Low: 99, Close: 100, TsMillis: 1}

	s.DealSignal(c, strategy.Result{ShouldBuy: true, OpenPrice: 100, TsMillis: 1}, riskCfg)
	if s.Position == nil {
		t.Fatal("expected a position to open")
	}
	s.DealSignal(c, strategy.Result{ShouldBuy: true, OpenPrice: 100, TsMillis: 1}, riskCfg)
	if s.Position == nil {
		t.Fatal("same-side signal must hold the existing position, not clear it")
	}
}

func TestFinalizeForceClosesAtSeriesEnd(t *testing.T) {
	s := New()
	s.Position = &risk.Position{Side: risk.Long, EntryPrice: 100, Size: 1}
	last := candle.Candle{Close: 105, TsMillis: 9999}
	s.Finalize(last)
	if s.Position != nil {
		t.Fatal("expected Finalize to close the open position")
	}
	rec := s.TradeRecords[len(s.TradeRecords)-1]
	if rec.CloseType != "end-of-series" {
		t.Fatalf("expected end-of-series label, got %q", rec.CloseType)
	}
}
