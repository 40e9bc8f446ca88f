// Package execution implements the Execution Loop: the generic driver that
// advances the Indicator Bundle, Candle Buffer, Signal Evaluator, Weighted
// Composer, and Trade State Machine in lockstep, one candle at a time, for
// both replay and live modes.
package execution

import (
	"fmt"

	"vegasstrategy/internal/candle"
	"vegasstrategy/internal/indicator"
	"vegasstrategy/internal/risk"
	"vegasstrategy/internal/strategy"
	"vegasstrategy/internal/tradestate"
)

// Engine owns one (instrument, period, strategy) stream's Indicator Bundle,
// Candle Buffer, and Trading State. Per §9's design notes it is the sole
// owner of those three components; they never hold back-references to it.
type Engine struct {
	bundle  *indicator.Bundle
	buffer  *candle.Buffer
	state   *tradestate.State
	strat   strategy.Config
	riskCfg risk.Config

	dynamicLookback int
}

// NewEngine constructs a fresh Engine for one strategy configuration. The
// buffer is sized at dynamic_lookback = max(bundle.required_lookback(),
// config.min_k_line_num), per §4.6.
func NewEngine(strat strategy.Config, riskCfg risk.Config) *Engine {
	bundle := indicator.NewBundle(strat.Indicators)
	lookback := bundle.RequiredLookback()
	if strat.MinKLineNum > lookback {
		lookback = strat.MinKLineNum
	}
	return &Engine{
		bundle:          bundle,
		buffer:          candle.NewBuffer(lookback),
		state:           tradestate.New(),
		strat:           strat,
		riskCfg:         riskCfg,
		dynamicLookback: lookback,
	}
}

// State exposes the accumulated TradingState for read-only inspection.
func (e *Engine) State() *tradestate.State { return e.state }

// Step advances the engine by exactly one candle: validate against the
// buffer first, feed the bundle only once the candle is accepted, evaluate
// the signal, and — only if the signal is actionable, a position is open, or
// a pending-limit entry exists — advance the Trade State Machine.
//
// Validating before feeding the bundle matters: a rejected candle (a
// monotonicity violation or an attempt to overwrite a confirmed tail) must
// leave indicator state exactly as it was on the last successful tick, per
// §5/§7 — feeding the bundle first would corrupt it even though the tick is
// dropped.
func (e *Engine) Step(c candle.Candle) (strategy.Result, error) {
	if err := e.buffer.Append(c); err != nil {
		return strategy.Result{}, err
	}

	values := e.bundle.Next(c)

	window := e.buffer.SnapshotLast(e.dynamicLookback)
	signal := strategy.Evaluate(window, values, e.strat)

	actionable := signal.ShouldBuy || signal.ShouldSell
	if actionable || e.state.HasOpenPosition() || e.state.HasPendingLimit() {
		e.state.DealSignal(c, signal, e.riskCfg)
	}
	return signal, nil
}

// Replay iterates a full candle series in chronological order and returns
// the aggregate BacktestResult. A data-integrity error on any candle aborts
// the replay and reports the failing index.
func Replay(strat strategy.Config, riskCfg risk.Config, series []candle.Candle) (tradestate.Result, error) {
	engine := NewEngine(strat, riskCfg)
	for i, c := range series {
		if _, err := engine.Step(c); err != nil {
			return tradestate.Result{}, fmt.Errorf("candle %d: %w", i, err)
		}
	}
	if len(series) > 0 {
		engine.state.Finalize(series[len(series)-1])
	}
	return engine.state.BuildResult(), nil
}
