package execution

import (
	"context"
	"time"

	"vegasstrategy/internal/candle"
	"vegasstrategy/internal/period"
	"vegasstrategy/internal/risk"
	"vegasstrategy/internal/strategy"
	"vegasstrategy/internal/tradestate"
)

// FreshnessPolicy controls how stale a cached "latest candle" may be before
// CandleSource.FetchLatest must go to the network instead.
type FreshnessPolicy struct {
	MaxAge time.Duration
}

// CandleSource is the external market-data collaborator (§6). The core
// validates the series it returns for time-monotonicity and period
// alignment; it never trusts the collaborator blindly.
type CandleSource interface {
	FetchRange(ctx context.Context, instrument string, p period.Period, count int, anchorTsMillis *int64) ([]candle.Candle, error)
	FetchLatest(ctx context.Context, instrument string, p period.Period, freshness FreshnessPolicy) (candle.Candle, bool, error)
}

// CandleCache is the optional write-through cache collaborator (§6). Cache
// misses are not errors; callers fall back to CandleSource.
type CandleCache interface {
	GetOrFetch(ctx context.Context, instrument string, p period.Period, fetch func(ctx context.Context) (candle.Candle, error)) (candle.Candle, error)
	SetBoth(ctx context.Context, instrument string, p period.Period, c candle.Candle, ttl time.Duration) error
}

// OrderRequest is what the core hands to the Order Adapter when the Trade
// State Machine would open or close a position in live mode. Record carries
// the specific TradeRecord this request corresponds to: a single tick can
// produce two records (a reversal's close-then-open), and the adapter needs
// Record's OptionType/side and timestamps — not just the triggering
// Signal — to key idempotency per leg; two OrderRequests sharing the same
// Signal but carrying the close and open legs of one reversal must not
// collapse into the same idempotency key.
type OrderRequest struct {
	StrategyType     string
	Instrument       string
	Period           period.Period
	Signal           strategy.Result
	Record           tradestate.TradeRecord
	Risk             risk.Config
	StrategyConfigID string
}

// OrderAdapter is the external order-placement collaborator (§6). It is
// responsible for idempotency per (instrument, period, side, pos_side,
// bar-timestamp) — derived from Record, which distinguishes a reversal's
// close leg from its open leg even though both share one triggering Signal;
// the core never retries a failed call.
type OrderAdapter interface {
	ReadyToOrder(ctx context.Context, req OrderRequest) error
}

// Persistence is the append-only writer / config reader collaborator (§6).
type Persistence interface {
	AppendTradeRecords(ctx context.Context, instrument string, p period.Period, records []TradeRecordAudit) error
	AppendBacktestSummary(ctx context.Context, instrument string, p period.Period, summary BacktestSummaryAudit) error
	AppendSignalLog(ctx context.Context, instrument string, p period.Period, signal strategy.Result) error
	ReadStrategyConfig(ctx context.Context, instrument string, p period.Period, strategyType string) (strategy.Config, risk.Config, error)
}

// TradeRecordAudit and BacktestSummaryAudit are the wire shapes Persistence
// writes; kept separate from tradestate's in-memory types so the core
// package never depends on a storage schema.
type TradeRecordAudit struct {
	OptionType     string
	SignalTsMillis int64
	OpenTsMillis   int64
	CloseTsMillis  int64
	OpenPrice      float64
	ClosePrice     float64
	ProfitLoss     float64
	Size           float64
	FullClose      bool
	CloseType      string
	WinCount       int
	LossCount      int
	SingleValue    string
	SingleResult   string
}

type BacktestSummaryAudit struct {
	Instrument       string
	Period           period.Period
	FinalFunds       float64
	WinRate          float64
	OpenedTradeCount int
}

// ProgressSnapshot is the resumable state the external parameter-sweep
// driver persists and the core accepts back on restart (§6, §9).
type ProgressSnapshot struct {
	Instrument           string
	Period               period.Period
	ConfigHash           string
	TotalCombinations    int
	CompletedCombinations int
	CurrentIndex         int
	Status               SweepStatus
	StartedAt            time.Time
	UpdatedAt            time.Time
}

// SweepStatus is the parameter-sweep progress state.
type SweepStatus int

const (
	SweepInProgress SweepStatus = iota
	SweepCompleted
)

// ResolveResumeIndex implements the "hash changed -> restart from zero"
// rule: if configHash differs from the snapshot's, resumption is not safe.
func ResolveResumeIndex(snapshot ProgressSnapshot, configHash string) int {
	if snapshot.ConfigHash != configHash {
		return 0
	}
	return snapshot.CurrentIndex
}
