package database

import (
	"time"
)

// Trade represents a closed or open strategy position in the database.
type Trade struct {
	ID           int64      `json:"id"`
	Instrument   string     `json:"instrument"`
	Period       string     `json:"period"`
	StrategyType string     `json:"strategy_type"`
	Side         string     `json:"side"`
	EntryPrice   float64    `json:"entry_price"`
	ExitPrice    *float64   `json:"exit_price,omitempty"`
	Quantity     float64    `json:"quantity"`
	EntryTime    time.Time  `json:"entry_time"`
	ExitTime     *time.Time `json:"exit_time,omitempty"`
	StopLoss     *float64   `json:"stop_loss,omitempty"`
	TakeProfit   *float64   `json:"take_profit,omitempty"`
	PnL          *float64   `json:"pnl,omitempty"`
	PnLPercent   *float64   `json:"pnl_percent,omitempty"`
	CloseType    *string    `json:"close_type,omitempty"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Order represents one exchange order placed by the Order Adapter.
type Order struct {
	ID          int64      `json:"id"`
	Instrument  string     `json:"instrument"`
	OrderType   string     `json:"order_type"`
	Side        string     `json:"side"`
	PosSide     string     `json:"pos_side"`
	Price       *float64   `json:"price,omitempty"`
	Quantity    float64    `json:"quantity"`
	ExecutedQty float64    `json:"executed_qty"`
	Status      string     `json:"status"`
	TimeInForce *string    `json:"time_in_force,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	FilledAt    *time.Time `json:"filled_at,omitempty"`
	TradeID     *int64     `json:"trade_id,omitempty"`
}

// Signal represents one Signal Evaluator result logged for audit, whether
// or not it crossed the weight threshold required to open a position.
type Signal struct {
	ID           int64     `json:"id"`
	StrategyType string    `json:"strategy_type"`
	Instrument   string    `json:"instrument"`
	Period       string    `json:"period"`
	SignalType   string    `json:"signal_type"`
	Weight       float64   `json:"weight"`
	EntryPrice   float64   `json:"entry_price"`
	StopLoss     *float64  `json:"stop_loss,omitempty"`
	TakeProfit   *float64  `json:"take_profit,omitempty"`
	Reason       *string   `json:"reason,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	Executed     bool      `json:"executed"`
	CreatedAt    time.Time `json:"created_at"`
}

// PositionSnapshot is a point-in-time mark of an open position's unrealized
// P&L, written periodically by the sweep/monitoring loop.
type PositionSnapshot struct {
	ID           int64     `json:"id"`
	Instrument   string    `json:"instrument"`
	Period       string    `json:"period"`
	EntryPrice   float64   `json:"entry_price"`
	CurrentPrice float64   `json:"current_price"`
	Quantity     float64   `json:"quantity"`
	PnL          float64   `json:"pnl"`
	PnLPercent   float64   `json:"pnl_percent"`
	Timestamp    time.Time `json:"timestamp"`
	CreatedAt    time.Time `json:"created_at"`
}

// SystemEvent records an operational event (engine start/stop, order
// failures, lock timeouts, cache degradation) for the admin API to surface.
type SystemEvent struct {
	ID        int64                  `json:"id"`
	EventType string                 `json:"event_type"`
	Source    *string                `json:"source,omitempty"`
	Message   *string                `json:"message,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	CreatedAt time.Time              `json:"created_at"`
}

// TradingMetrics is the aggregated performance summary the status API
// reports for a single (instrument, period, strategyType) stream.
type TradingMetrics struct {
	TotalTrades     int        `json:"total_trades"`
	WinningTrades   int        `json:"winning_trades"`
	LosingTrades    int        `json:"losing_trades"`
	WinRate         float64    `json:"win_rate"`
	TotalPnL        float64    `json:"total_pnl"`
	AveragePnL      float64    `json:"average_pnl"`
	AverageWin      float64    `json:"average_win"`
	AverageLoss     float64    `json:"average_loss"`
	LargestWin      float64    `json:"largest_win"`
	LargestLoss     float64    `json:"largest_loss"`
	ProfitFactor    float64    `json:"profit_factor"`
	OpenPositions   int        `json:"open_positions"`
	ActiveOrders    int        `json:"active_orders"`
	TotalSignals    int        `json:"total_signals"`
	ExecutedSignals int        `json:"executed_signals"`
	LastTradeTime   *time.Time `json:"last_trade_time,omitempty"`
}

// StrategyConfig is the persisted, user-editable tuning record for one
// (instrument, period, strategyType) stream: the strategy.Config and
// risk.Config knobs are stored opaquely as ConfigParams JSON so this
// package never depends on the strategy/risk packages' field layout.
type StrategyConfig struct {
	ID           int64                  `json:"id"`
	Instrument   string                 `json:"instrument"`
	Period       string                 `json:"period"`
	StrategyType string                 `json:"strategy_type"`
	Enabled      bool                   `json:"enabled"`
	ConfigParams map[string]interface{} `json:"config_params,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}
