package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"vegasstrategy/internal/execution"
	"vegasstrategy/internal/period"
	"vegasstrategy/internal/risk"
	"vegasstrategy/internal/strategy"
)

// remarshal round-trips a decoded JSONB value (map[string]interface{}) into
// a typed struct without this package depending on strategy/risk internals.
func remarshal(raw interface{}, dest interface{}) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// CoreRepository adapts Repository to execution.Persistence: the append-only
// trade/backtest/signal writer and strategy-config reader the engine and
// replay loop depend on (§6).
type CoreRepository struct {
	repo *Repository
}

// NewCoreRepository wraps a Repository as the core's Persistence collaborator.
func NewCoreRepository(repo *Repository) *CoreRepository {
	return &CoreRepository{repo: repo}
}

// AppendTradeRecords writes a batch of closed-trade audit rows produced by
// one Replay or live tick.
func (c *CoreRepository) AppendTradeRecords(ctx context.Context, instrument string, p period.Period, records []execution.TradeRecordAudit) error {
	for _, rec := range records {
		closeType := rec.CloseType
		trade := &Trade{
			Instrument:   instrument,
			Period:       string(p),
			StrategyType: rec.OptionType,
			Side:         sideFromOptionType(rec.OptionType),
			EntryPrice:   rec.OpenPrice,
			Quantity:     rec.Size,
			EntryTime:    time.UnixMilli(rec.OpenTsMillis),
			Status:       "OPEN",
		}
		if err := c.repo.CreateTrade(ctx, trade); err != nil {
			return fmt.Errorf("append trade record: %w", err)
		}
		exitPrice := rec.ClosePrice
		exitTime := time.UnixMilli(rec.CloseTsMillis)
		pnl := rec.ProfitLoss
		var pnlPercent float64
		if rec.OpenPrice != 0 {
			pnlPercent = rec.ProfitLoss / (rec.OpenPrice * rec.Size) * 100
		}
		trade.ExitPrice = &exitPrice
		trade.ExitTime = &exitTime
		trade.PnL = &pnl
		trade.PnLPercent = &pnlPercent
		trade.CloseType = &closeType
		trade.Status = "CLOSED"
		if !rec.FullClose {
			trade.Status = "PARTIAL"
		}
		if err := c.repo.CloseTrade(ctx, trade); err != nil {
			return fmt.Errorf("close trade record: %w", err)
		}
	}
	return nil
}

// AppendBacktestSummary persists the final Replay summary as a
// BacktestResult row with no strategy_config_id linkage (ad hoc runs).
func (c *CoreRepository) AppendBacktestSummary(ctx context.Context, instrument string, p period.Period, summary execution.BacktestSummaryAudit) error {
	result := &BacktestResult{
		Symbol:        instrument,
		Interval:      string(p),
		StartDate:     time.Now(),
		EndDate:       time.Now(),
		TotalTrades:   summary.OpenedTradeCount,
		WinRate:       summary.WinRate,
		NetPnL:        summary.FinalFunds,
		TotalPnL:      summary.FinalFunds,
	}
	_, err := c.repo.SaveBacktestResult(ctx, result, nil)
	if err != nil {
		return fmt.Errorf("append backtest summary: %w", err)
	}
	return nil
}

// AppendSignalLog writes one Signal Evaluator result for audit, whether or
// not it crossed the weight threshold required to open a position.
func (c *CoreRepository) AppendSignalLog(ctx context.Context, instrument string, p period.Period, signal strategy.Result) error {
	signalType := "NONE"
	switch {
	case signal.ShouldBuy:
		signalType = "BUY"
	case signal.ShouldSell:
		signalType = "SELL"
	}
	reason := signal.SingleResult
	row := &Signal{
		StrategyType: "vegas",
		Instrument:   instrument,
		Period:       string(p),
		SignalType:   signalType,
		EntryPrice:   signal.OpenPrice,
		Reason:       &reason,
		Timestamp:    time.UnixMilli(signal.TsMillis),
		Executed:     signal.ShouldBuy || signal.ShouldSell,
	}
	if signal.SignalKlineStopLossPrice != nil {
		row.StopLoss = signal.SignalKlineStopLossPrice
	}
	if signal.BestTakeProfitPrice != nil {
		row.TakeProfit = signal.BestTakeProfitPrice
	}
	return c.repo.CreateSignal(ctx, row)
}

// ReadStrategyConfig reads the persisted tuning config for one
// (instrument, period, strategyType) stream, falling back to the package
// defaults when nothing has been saved yet.
func (c *CoreRepository) ReadStrategyConfig(ctx context.Context, instrument string, p period.Period, strategyType string) (strategy.Config, risk.Config, error) {
	row, err := c.repo.GetStrategyConfig(ctx, instrument, string(p), strategyType)
	if err != nil {
		return strategy.DefaultConfig(), risk.DefaultConfig(), nil
	}

	strategyCfg := strategy.DefaultConfig()
	riskCfg := risk.DefaultConfig()
	if raw, ok := row.ConfigParams["strategy"]; ok {
		if err := remarshal(raw, &strategyCfg); err != nil {
			return strategy.Config{}, risk.Config{}, fmt.Errorf("decode strategy config: %w", err)
		}
	}
	if raw, ok := row.ConfigParams["risk"]; ok {
		if err := remarshal(raw, &riskCfg); err != nil {
			return strategy.Config{}, risk.Config{}, fmt.Errorf("decode risk config: %w", err)
		}
	}
	return strategyCfg, riskCfg, nil
}

func sideFromOptionType(optionType string) string {
	if optionType == "short" || optionType == "SELL" || optionType == "SHORT" {
		return "SHORT"
	}
	return "LONG"
}
