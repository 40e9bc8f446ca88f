package execution

import (
	"context"
	"fmt"

	"vegasstrategy/internal/candle"
	"vegasstrategy/internal/period"
)

// LiveEngine drives one (instrument, period, strategy) stream in live mode:
// one candle per scheduler tick, sharing the same Engine.Step primitive as
// replay. Instead of relying on the in-memory trade-record list, each new
// entry/exit produced this tick is forwarded to the Order Adapter.
type LiveEngine struct {
	*Engine

	Instrument       string
	Period           period.Period
	StrategyType     string
	StrategyConfigID string

	adapter OrderAdapter
}

// NewLiveEngine constructs a LiveEngine bound to one stream and adapter.
func NewLiveEngine(engine *Engine, instrument string, p period.Period, strategyType, strategyConfigID string, adapter OrderAdapter) *LiveEngine {
	return &LiveEngine{
		Engine:           engine,
		Instrument:       instrument,
		Period:           p,
		StrategyType:     strategyType,
		StrategyConfigID: strategyConfigID,
		adapter:          adapter,
	}
}

// Tick processes one live candle. It does not force-close at stream end —
// live mode has no end.
func (l *LiveEngine) Tick(ctx context.Context, c candle.Candle) error {
	before := len(l.state.TradeRecords)

	signal, err := l.Step(c)
	if err != nil {
		return fmt.Errorf("live tick rejected: %w", err)
	}

	after := l.state.TradeRecords
	for _, rec := range after[before:] {
		req := OrderRequest{
			StrategyType:     l.StrategyType,
			Instrument:       l.Instrument,
			Period:           l.Period,
			Signal:           signal,
			Record:           rec,
			Risk:             l.riskCfg,
			StrategyConfigID: l.StrategyConfigID,
		}
		if err := l.adapter.ReadyToOrder(ctx, req); err != nil {
			// The core never retries; the error is surfaced to the caller's
			// logging and the next tick proceeds from the state already
			// committed locally (§7, external-collaborator errors).
			return fmt.Errorf("order adapter rejected %s record: %w", rec.OptionType, err)
		}
	}
	return nil
}
