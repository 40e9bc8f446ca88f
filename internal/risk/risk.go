// Package risk implements the Trade State Machine's risk overlay: the
// ordered per-tick checks of §4.5.1 that can close an open position before
// any new signal is considered.
package risk

import "vegasstrategy/internal/candle"

// Side is the position direction.
type Side int

const (
	Long Side = iota
	Short
)

// Config is the four orthogonal risk knobs plus the trailing-stop arm
// factors, which the spec calls out as tunable rather than hardcoded.
type Config struct {
	MaxLossPercent          float64
	TakeProfitRatio         float64
	UseSignalKlineStopLoss  bool
	OneKlineDiffTrailingStop bool

	TrailingArmLongFactor  float64 // default 0.99564
	TrailingArmShortFactor float64 // default 1.00436
}

// DefaultConfig mirrors the reference's defaults.
func DefaultConfig() Config {
	return Config{
		MaxLossPercent:          0.02,
		TakeProfitRatio:         0,
		UseSignalKlineStopLoss:  true,
		OneKlineDiffTrailingStop: false,
		TrailingArmLongFactor:   0.99564,
		TrailingArmShortFactor:  1.00436,
	}
}

// Position is the open-position record the risk checks read and mutate.
// It carries everything §4.5.1 needs: entry terms, the optional stop/target
// prices set at entry, and the trailing-stop arm/anchor state.
type Position struct {
	Side              Side
	EntryPrice        float64
	EntryTsMillis     int64
	Size              float64

	BestTakeProfitPrice     *float64
	SignalKlineStopClosePrice *float64
	SignalHighLowDiff       float64

	TouchTakeProfitPrice *float64 // trailing-stop arm threshold
	MoveTakeProfitPrice  *float64 // armed trailing anchor

	ProfitRatioTarget *float64 // take_profit_ratio target price, armed at entry

	CloseType string
}

// CheckResult reports whether a risk check closed the position this tick.
type CheckResult struct {
	Closed    bool
	ClosePrice float64
	Label     string
}

// Apply runs the ordered risk checks against one candle for an open
// position. It mutates pos in place (arming the trailing stop, arming the
// break-even stop) and returns the first check that fires, if any.
func Apply(pos *Position, cfg Config, c candle.Candle) CheckResult {
	if r, ok := checkTrailingStop(pos, cfg, c); ok {
		return r
	}
	if r, ok := checkProfitRatio(pos, cfg, c); ok {
		return r
	}
	if r, ok := checkBestTakeProfit(pos, c); ok {
		return r
	}
	if r, ok := checkSignalKlineStop(pos, cfg, c); ok {
		return r
	}
	if r, ok := checkMaxLoss(pos, cfg, c); ok {
		return r
	}
	return CheckResult{}
}

func checkTrailingStop(pos *Position, cfg Config, c candle.Candle) (CheckResult, bool) {
	if !cfg.OneKlineDiffTrailingStop {
		return CheckResult{}, false
	}
	if pos.MoveTakeProfitPrice != nil {
		m := *pos.MoveTakeProfitPrice
		if pos.Side == Long && c.Low <= m {
			return CheckResult{Closed: true, ClosePrice: m, Label: "trailing stop"}, true
		}
		if pos.Side == Short && c.High >= m {
			return CheckResult{Closed: true, ClosePrice: m, Label: "trailing stop"}, true
		}
		return CheckResult{}, false
	}
	if pos.TouchTakeProfitPrice == nil {
		return CheckResult{}, false
	}
	t := *pos.TouchTakeProfitPrice
	if pos.Side == Long && c.High > t {
		m := pos.EntryPrice * cfg.TrailingArmLongFactor
		pos.MoveTakeProfitPrice = &m
	} else if pos.Side == Short && c.Low < t {
		m := pos.EntryPrice * cfg.TrailingArmShortFactor
		pos.MoveTakeProfitPrice = &m
	}
	return CheckResult{}, false
}

func checkProfitRatio(pos *Position, cfg Config, c candle.Candle) (CheckResult, bool) {
	if cfg.TakeProfitRatio <= 0 || pos.ProfitRatioTarget == nil {
		return CheckResult{}, false
	}
	target := *pos.ProfitRatioTarget
	if pos.Side == Long && c.High >= target {
		breakEven := pos.EntryPrice
		pos.SignalKlineStopClosePrice = &breakEven
		return CheckResult{Closed: true, ClosePrice: target, Label: "profit-ratio"}, true
	}
	if pos.Side == Short && c.Low <= target {
		breakEven := pos.EntryPrice
		pos.SignalKlineStopClosePrice = &breakEven
		return CheckResult{Closed: true, ClosePrice: target, Label: "profit-ratio"}, true
	}
	return CheckResult{}, false
}

func checkBestTakeProfit(pos *Position, c candle.Candle) (CheckResult, bool) {
	if pos.BestTakeProfitPrice == nil {
		return CheckResult{}, false
	}
	b := *pos.BestTakeProfitPrice
	if pos.Side == Long && c.High > b {
		return CheckResult{Closed: true, ClosePrice: b, Label: "best take-profit"}, true
	}
	if pos.Side == Short && c.Low < b {
		return CheckResult{Closed: true, ClosePrice: b, Label: "best take-profit"}, true
	}
	return CheckResult{}, false
}

func checkSignalKlineStop(pos *Position, cfg Config, c candle.Candle) (CheckResult, bool) {
	if !cfg.UseSignalKlineStopLoss || pos.SignalKlineStopClosePrice == nil {
		return CheckResult{}, false
	}
	s := *pos.SignalKlineStopClosePrice
	if pos.Side == Long && c.Close <= s {
		return CheckResult{Closed: true, ClosePrice: s, Label: "signal-line stop"}, true
	}
	if pos.Side == Short && c.Close >= s {
		return CheckResult{Closed: true, ClosePrice: s, Label: "signal-line stop"}, true
	}
	return CheckResult{}, false
}

func checkMaxLoss(pos *Position, cfg Config, c candle.Candle) (CheckResult, bool) {
	if cfg.MaxLossPercent <= 0 {
		return CheckResult{}, false
	}
	var profitPct float64
	if pos.Side == Long {
		profitPct = (c.Low - pos.EntryPrice) / pos.EntryPrice
	} else {
		profitPct = (pos.EntryPrice - c.High) / pos.EntryPrice
	}
	if profitPct < -cfg.MaxLossPercent {
		return CheckResult{Closed: true, ClosePrice: c.Close, Label: "max-loss stop"}, true
	}
	return CheckResult{}, false
}
