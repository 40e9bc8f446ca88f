// Package tradestate implements the Trade State Machine: it converts a
// stream of (candle, SignalResult) pairs into position lifecycle events
// under the risk overlay in package risk, and accumulates the running
// TradingState.
package tradestate

import (
	"vegasstrategy/internal/candle"
	"vegasstrategy/internal/risk"
	"vegasstrategy/internal/strategy"
)

// FeeRate is the flat proportional fee charged on every close, 0.07%.
const FeeRate = 0.0007

// State is the live accumulator during a backtest or a live session.
type State struct {
	Funds             float64
	Wins              int
	Losses            int
	OpenPositionTimes int
	TotalProfitLoss   float64
	TradeRecords      []TradeRecord

	Position *risk.Position

	// pendingSignal is the one-tick memory for limit-style entries on the
	// best price; cleared on hit or on receipt of a newer actionable signal.
	pendingSignal *strategy.Result
}

// New returns a fresh TradingState with funds initialized to 100.0 abstract
// units, per the spec.
func New() *State {
	return &State{Funds: 100.0}
}

// HasOpenPosition reports whether a position is currently open.
func (s *State) HasOpenPosition() bool { return s.Position != nil }

// HasPendingLimit reports whether a pending best-price entry is armed.
func (s *State) HasPendingLimit() bool { return s.pendingSignal != nil }

// DealSignal advances the state machine by one (candle, signal) tick,
// following the strict priority order of §4.5.
func (s *State) DealSignal(c candle.Candle, signal strategy.Result, riskCfg risk.Config) {
	if s.Position != nil {
		if result := risk.Apply(s.Position, riskCfg, c); result.Closed {
			s.closePosition(c.TsMillis, result.ClosePrice, result.Label, strategy.Result{})
		}
	}

	switch {
	case s.Position != nil && signal.ShouldBuy && s.Position.Side == risk.Short:
		s.closePosition(c.TsMillis, signal.OpenPrice, "reverse signal", signal)
		s.openPosition(c, signal, riskCfg, risk.Long)
	case s.Position != nil && signal.ShouldSell && s.Position.Side == risk.Long:
		s.closePosition(c.TsMillis, signal.OpenPrice, "reverse signal", signal)
		s.openPosition(c, signal, riskCfg, risk.Short)
	case s.Position == nil && signal.ShouldBuy:
		s.openPosition(c, signal, riskCfg, risk.Long)
	case s.Position == nil && signal.ShouldSell:
		s.openPosition(c, signal, riskCfg, risk.Short)
	case s.Position == nil && s.pendingSignal != nil:
		s.tryFillPending(c, riskCfg)
	default:
		// hold: same-side signal on an existing position, or no signal at all.
	}
}

// openPosition either fills immediately at signal.OpenPrice, or (when the
// signal carries a preferred limit price) arms a one-tick pending-limit
// memory instead.
func (s *State) openPosition(c candle.Candle, signal strategy.Result, riskCfg risk.Config, side risk.Side) {
	if signal.BestOpenPrice != nil {
		sig := signal
		s.pendingSignal = &sig
		return
	}
	s.fillEntry(signal.TsMillis, c.TsMillis, signal.OpenPrice, signal, riskCfg, side)
}

func (s *State) tryFillPending(c candle.Candle, riskCfg risk.Config) {
	pending := s.pendingSignal
	best := *pending.BestOpenPrice
	switch {
	case pending.ShouldBuy && c.Low <= best:
		s.pendingSignal = nil
		s.fillEntry(pending.TsMillis, c.TsMillis, best, *pending, riskCfg, risk.Long)
	case pending.ShouldSell && c.High >= best:
		s.pendingSignal = nil
		s.fillEntry(pending.TsMillis, c.TsMillis, best, *pending, riskCfg, risk.Short)
	}
}

func (s *State) fillEntry(signalTs, fillTs int64, price float64, signal strategy.Result, riskCfg risk.Config, side risk.Side) {
	size := s.Funds / price
	pos := &risk.Position{Side: side, EntryPrice: price, EntryTsMillis: fillTs, Size: size}

	if riskCfg.UseSignalKlineStopLoss && signal.SignalKlineStopLossPrice != nil {
		v := *signal.SignalKlineStopLossPrice
		pos.SignalKlineStopClosePrice = &v
	}
	if signal.BestTakeProfitPrice != nil {
		v := *signal.BestTakeProfitPrice
		pos.BestTakeProfitPrice = &v
	}
	if riskCfg.TakeProfitRatio > 0 && signal.SignalKlineStopLossPrice != nil {
		diff := absFloat(*signal.SignalKlineStopLossPrice - price)
		pos.SignalHighLowDiff = diff
		var target float64
		if side == risk.Long {
			target = price + diff*riskCfg.TakeProfitRatio
		} else {
			target = price - diff*riskCfg.TakeProfitRatio
		}
		pos.ProfitRatioTarget = &target
	}
	if riskCfg.OneKlineDiffTrailingStop && signal.BestTakeProfitPrice != nil {
		v := *signal.BestTakeProfitPrice
		pos.TouchTakeProfitPrice = &v
	}

	s.Position = pos
	s.OpenPositionTimes++

	optionType := sideLabel(side)
	s.TradeRecords = append(s.TradeRecords, TradeRecord{
		OptionType:     optionType,
		Side:           optionType,
		SignalTsMillis: signalTs,
		OpenTsMillis:   fillTs,
		OpenPrice:      price,
		Size:           size,
		SingleValue:    signal.SingleValue,
		SingleResult:   signal.SingleResult,
	})
}

func (s *State) closePosition(tsMillis int64, price float64, label string, signal strategy.Result) {
	pos := s.Position
	var rawPnl float64
	if pos.Side == risk.Long {
		rawPnl = (price - pos.EntryPrice) * pos.Size
	} else {
		rawPnl = (pos.EntryPrice - price) * pos.Size
	}
	fee := pos.Size * pos.EntryPrice * FeeRate
	pnlAfterFee := rawPnl - fee

	s.TotalProfitLoss += pnlAfterFee
	s.Funds += pnlAfterFee
	if pnlAfterFee > 0 {
		s.Wins++
	} else {
		s.Losses++
	}

	s.TradeRecords = append(s.TradeRecords, TradeRecord{
		OptionType:    "close",
		Side:          sideLabel(pos.Side),
		CloseTsMillis: tsMillis,
		ClosePrice:    price,
		ProfitLoss:    pnlAfterFee,
		Size:          pos.Size,
		FullClose:     true,
		CloseType:     label,
		WinCount:      s.Wins,
		LossCount:     s.Losses,
		SingleValue:   signal.SingleValue,
		SingleResult:  signal.SingleResult,
	})
	s.Position = nil
}

// Finalize force-closes any open position at the last candle's close,
// labeled "end-of-series". Called once after a replay's last candle.
func (s *State) Finalize(last candle.Candle) {
	if s.Position == nil {
		return
	}
	s.closePosition(last.TsMillis, last.Close, "end-of-series", strategy.Result{})
}

// BuildResult assembles the Backtest Result aggregation.
func (s *State) BuildResult() Result {
	total := s.Wins + s.Losses
	var winRate float64
	if total > 0 {
		winRate = float64(s.Wins) / float64(total)
	}
	return Result{
		FinalFunds:       s.Funds,
		WinRate:          winRate,
		OpenedTradeCount: s.OpenPositionTimes,
		TradeRecords:     append([]TradeRecord(nil), s.TradeRecords...),
	}
}

func sideLabel(side risk.Side) string {
	if side == risk.Short {
		return "short"
	}
	return "long"
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
