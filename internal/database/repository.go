package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Repository provides pgx-backed CRUD access to trades, orders, signals,
// strategy configs, position snapshots and system events.
type Repository struct {
	db *DB
}

// NewRepository creates a new repository.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// HealthCheck performs a database health check.
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

// ============================================================================
// TRADES
// ============================================================================

// CreateTrade inserts a new trade.
func (r *Repository) CreateTrade(ctx context.Context, trade *Trade) error {
	query := `
		INSERT INTO trades (instrument, period, strategy_type, side, entry_price, quantity, entry_time, stop_loss, take_profit, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`
	return r.db.Pool.QueryRow(
		ctx, query,
		trade.Instrument, trade.Period, trade.StrategyType, trade.Side, trade.EntryPrice,
		trade.Quantity, trade.EntryTime, trade.StopLoss, trade.TakeProfit, trade.Status,
	).Scan(&trade.ID, &trade.CreatedAt, &trade.UpdatedAt)
}

// CloseTrade records the exit terms of a trade and marks it closed.
func (r *Repository) CloseTrade(ctx context.Context, trade *Trade) error {
	query := `
		UPDATE trades
		SET exit_price = $2, exit_time = $3, pnl = $4, pnl_percent = $5, close_type = $6, status = $7
		WHERE id = $1
	`
	_, err := r.db.Pool.Exec(
		ctx, query,
		trade.ID, trade.ExitPrice, trade.ExitTime, trade.PnL, trade.PnLPercent, trade.CloseType, trade.Status,
	)
	return err
}

// GetTradeByID retrieves a trade by ID.
func (r *Repository) GetTradeByID(ctx context.Context, id int64) (*Trade, error) {
	query := `
		SELECT id, instrument, period, strategy_type, side, entry_price, exit_price, quantity,
		       entry_time, exit_time, stop_loss, take_profit, pnl, pnl_percent, close_type, status, created_at, updated_at
		FROM trades
		WHERE id = $1
	`
	trade := &Trade{}
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&trade.ID, &trade.Instrument, &trade.Period, &trade.StrategyType, &trade.Side, &trade.EntryPrice,
		&trade.ExitPrice, &trade.Quantity, &trade.EntryTime, &trade.ExitTime, &trade.StopLoss, &trade.TakeProfit,
		&trade.PnL, &trade.PnLPercent, &trade.CloseType, &trade.Status, &trade.CreatedAt, &trade.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return trade, nil
}

// GetOpenTrades retrieves all open trades for one (instrument, period) stream.
func (r *Repository) GetOpenTrades(ctx context.Context, instrument, period string) ([]*Trade, error) {
	query := `
		SELECT id, instrument, period, strategy_type, side, entry_price, exit_price, quantity,
		       entry_time, exit_time, stop_loss, take_profit, pnl, pnl_percent, close_type, status, created_at, updated_at
		FROM trades
		WHERE status = 'OPEN' AND instrument = $1 AND period = $2
		ORDER BY entry_time DESC
	`
	return r.queryTrades(ctx, query, instrument, period)
}

// GetTradeHistory retrieves closed trades with pagination.
func (r *Repository) GetTradeHistory(ctx context.Context, instrument, period string, limit, offset int) ([]*Trade, error) {
	query := `
		SELECT id, instrument, period, strategy_type, side, entry_price, exit_price, quantity,
		       entry_time, exit_time, stop_loss, take_profit, pnl, pnl_percent, close_type, status, created_at, updated_at
		FROM trades
		WHERE status = 'CLOSED' AND instrument = $1 AND period = $2
		ORDER BY exit_time DESC
		LIMIT $3 OFFSET $4
	`
	return r.queryTrades(ctx, query, instrument, period, limit, offset)
}

func (r *Repository) queryTrades(ctx context.Context, query string, args ...interface{}) ([]*Trade, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []*Trade
	for rows.Next() {
		trade := &Trade{}
		err := rows.Scan(
			&trade.ID, &trade.Instrument, &trade.Period, &trade.StrategyType, &trade.Side, &trade.EntryPrice,
			&trade.ExitPrice, &trade.Quantity, &trade.EntryTime, &trade.ExitTime, &trade.StopLoss, &trade.TakeProfit,
			&trade.PnL, &trade.PnLPercent, &trade.CloseType, &trade.Status, &trade.CreatedAt, &trade.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}
	return trades, rows.Err()
}

// ============================================================================
// ORDERS
// ============================================================================

// CreateOrder inserts a new order.
func (r *Repository) CreateOrder(ctx context.Context, order *Order) error {
	query := `
		INSERT INTO orders (id, instrument, order_type, side, pos_side, price, quantity, executed_qty, status, time_in_force, created_at, trade_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING updated_at
	`
	return r.db.Pool.QueryRow(
		ctx, query,
		order.ID, order.Instrument, order.OrderType, order.Side, order.PosSide, order.Price,
		order.Quantity, order.ExecutedQty, order.Status, order.TimeInForce,
		order.CreatedAt, order.TradeID,
	).Scan(&order.UpdatedAt)
}

// UpdateOrderStatus updates an order's status.
func (r *Repository) UpdateOrderStatus(ctx context.Context, orderID int64, status string, executedQty float64, filledAt *time.Time) error {
	query := `
		UPDATE orders
		SET status = $2, executed_qty = $3, filled_at = $4
		WHERE id = $1
	`
	_, err := r.db.Pool.Exec(ctx, query, orderID, status, executedQty, filledAt)
	return err
}

// GetActiveOrders retrieves all active orders for an instrument.
func (r *Repository) GetActiveOrders(ctx context.Context, instrument string) ([]*Order, error) {
	query := `
		SELECT id, instrument, order_type, side, pos_side, price, quantity, executed_qty, status,
		       time_in_force, created_at, updated_at, filled_at, trade_id
		FROM orders
		WHERE status IN ('NEW', 'PARTIALLY_FILLED') AND instrument = $1
		ORDER BY created_at DESC
	`
	return r.queryOrders(ctx, query, instrument)
}

func (r *Repository) queryOrders(ctx context.Context, query string, args ...interface{}) ([]*Order, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*Order
	for rows.Next() {
		order := &Order{}
		err := rows.Scan(
			&order.ID, &order.Instrument, &order.OrderType, &order.Side, &order.PosSide, &order.Price,
			&order.Quantity, &order.ExecutedQty, &order.Status, &order.TimeInForce,
			&order.CreatedAt, &order.UpdatedAt, &order.FilledAt, &order.TradeID,
		)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// ============================================================================
// SIGNALS
// ============================================================================

// CreateSignal inserts a new signal log entry.
func (r *Repository) CreateSignal(ctx context.Context, signal *Signal) error {
	query := `
		INSERT INTO signals (strategy_type, instrument, period, signal_type, weight, entry_price, stop_loss, take_profit, reason, timestamp, executed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at
	`
	return r.db.Pool.QueryRow(
		ctx, query,
		signal.StrategyType, signal.Instrument, signal.Period, signal.SignalType, signal.Weight,
		signal.EntryPrice, signal.StopLoss, signal.TakeProfit, signal.Reason,
		signal.Timestamp, signal.Executed,
	).Scan(&signal.ID, &signal.CreatedAt)
}

// GetRecentSignals retrieves recent signals for an (instrument, period) stream.
func (r *Repository) GetRecentSignals(ctx context.Context, instrument, period string, limit int) ([]*Signal, error) {
	query := `
		SELECT id, strategy_type, instrument, period, signal_type, weight, entry_price, stop_loss, take_profit,
		       reason, timestamp, executed, created_at
		FROM signals
		WHERE instrument = $1 AND period = $2
		ORDER BY timestamp DESC
		LIMIT $3
	`
	rows, err := r.db.Pool.Query(ctx, query, instrument, period, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var signals []*Signal
	for rows.Next() {
		signal := &Signal{}
		err := rows.Scan(
			&signal.ID, &signal.StrategyType, &signal.Instrument, &signal.Period, &signal.SignalType,
			&signal.Weight, &signal.EntryPrice, &signal.StopLoss, &signal.TakeProfit,
			&signal.Reason, &signal.Timestamp, &signal.Executed, &signal.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		signals = append(signals, signal)
	}
	return signals, rows.Err()
}

// ============================================================================
// POSITION SNAPSHOTS
// ============================================================================

// CreatePositionSnapshot inserts a position snapshot.
func (r *Repository) CreatePositionSnapshot(ctx context.Context, snapshot *PositionSnapshot) error {
	query := `
		INSERT INTO position_snapshots (instrument, period, entry_price, current_price, quantity, pnl, pnl_percent, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`
	return r.db.Pool.QueryRow(
		ctx, query,
		snapshot.Instrument, snapshot.Period, snapshot.EntryPrice, snapshot.CurrentPrice, snapshot.Quantity,
		snapshot.PnL, snapshot.PnLPercent, snapshot.Timestamp,
	).Scan(&snapshot.ID, &snapshot.CreatedAt)
}

// ============================================================================
// SYSTEM EVENTS
// ============================================================================

// CreateSystemEvent inserts a system event.
func (r *Repository) CreateSystemEvent(ctx context.Context, event *SystemEvent) error {
	dataJSON, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	query := `
		INSERT INTO system_events (event_type, source, message, data, timestamp)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	return r.db.Pool.QueryRow(
		ctx, query,
		event.EventType, event.Source, event.Message, dataJSON, event.Timestamp,
	).Scan(&event.ID, &event.CreatedAt)
}

// GetRecentSystemEvents retrieves recent system events.
func (r *Repository) GetRecentSystemEvents(ctx context.Context, limit int) ([]*SystemEvent, error) {
	query := `
		SELECT id, event_type, source, message, data, timestamp, created_at
		FROM system_events
		ORDER BY timestamp DESC
		LIMIT $1
	`
	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*SystemEvent
	for rows.Next() {
		event := &SystemEvent{}
		var dataJSON []byte
		err := rows.Scan(
			&event.ID, &event.EventType, &event.Source, &event.Message,
			&dataJSON, &event.Timestamp, &event.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		if len(dataJSON) > 0 {
			if err := json.Unmarshal(dataJSON, &event.Data); err != nil {
				return nil, err
			}
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// ============================================================================
// METRICS
// ============================================================================

// GetTradingMetrics calculates and returns trading metrics for one stream.
func (r *Repository) GetTradingMetrics(ctx context.Context, instrument, period string) (*TradingMetrics, error) {
	metrics := &TradingMetrics{}

	tradeQuery := `
		SELECT
			COUNT(*) as total_trades,
			COUNT(*) FILTER (WHERE pnl > 0) as winning_trades,
			COUNT(*) FILTER (WHERE pnl < 0) as losing_trades,
			COALESCE(SUM(pnl), 0) as total_pnl,
			COALESCE(AVG(pnl), 0) as average_pnl,
			COALESCE(AVG(pnl) FILTER (WHERE pnl > 0), 0) as average_win,
			COALESCE(AVG(pnl) FILTER (WHERE pnl < 0), 0) as average_loss,
			COALESCE(MAX(pnl), 0) as largest_win,
			COALESCE(MIN(pnl), 0) as largest_loss,
			MAX(exit_time) as last_trade_time
		FROM trades
		WHERE status = 'CLOSED' AND pnl IS NOT NULL AND instrument = $1 AND period = $2
	`

	err := r.db.Pool.QueryRow(ctx, tradeQuery, instrument, period).Scan(
		&metrics.TotalTrades, &metrics.WinningTrades, &metrics.LosingTrades,
		&metrics.TotalPnL, &metrics.AveragePnL, &metrics.AverageWin, &metrics.AverageLoss,
		&metrics.LargestWin, &metrics.LargestLoss, &metrics.LastTradeTime,
	)
	if err != nil && err != pgx.ErrNoRows {
		return nil, err
	}

	if metrics.TotalTrades > 0 {
		metrics.WinRate = float64(metrics.WinningTrades) / float64(metrics.TotalTrades) * 100
	}

	totalWins := metrics.AverageWin * float64(metrics.WinningTrades)
	totalLosses := metrics.AverageLoss * float64(metrics.LosingTrades)
	if totalLosses != 0 {
		metrics.ProfitFactor = totalWins / (-totalLosses)
	}

	err = r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM trades WHERE status = 'OPEN' AND instrument = $1 AND period = $2`, instrument, period).Scan(&metrics.OpenPositions)
	if err != nil && err != pgx.ErrNoRows {
		return nil, err
	}

	err = r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE status IN ('NEW', 'PARTIALLY_FILLED') AND instrument = $1`, instrument).Scan(&metrics.ActiveOrders)
	if err != nil && err != pgx.ErrNoRows {
		return nil, err
	}

	signalQuery := `
		SELECT
			COUNT(*) as total_signals,
			COUNT(*) FILTER (WHERE executed = TRUE) as executed_signals
		FROM signals
		WHERE instrument = $1 AND period = $2
	`
	err = r.db.Pool.QueryRow(ctx, signalQuery, instrument, period).Scan(&metrics.TotalSignals, &metrics.ExecutedSignals)
	if err != nil && err != pgx.ErrNoRows {
		return nil, err
	}

	return metrics, nil
}

// ============================================================================
// STRATEGY CONFIGS
// ============================================================================

// UpsertStrategyConfig inserts or updates the tuning config for one
// (instrument, period, strategyType) stream.
func (r *Repository) UpsertStrategyConfig(ctx context.Context, cfg *StrategyConfig) error {
	configJSON, err := json.Marshal(cfg.ConfigParams)
	if err != nil {
		return fmt.Errorf("failed to marshal config params: %w", err)
	}

	query := `
		INSERT INTO strategy_configs (instrument, period, strategy_type, enabled, config_params)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (instrument, period, strategy_type)
		DO UPDATE SET enabled = EXCLUDED.enabled, config_params = EXCLUDED.config_params, updated_at = CURRENT_TIMESTAMP
		RETURNING id, created_at, updated_at
	`
	return r.db.Pool.QueryRow(
		ctx, query,
		cfg.Instrument, cfg.Period, cfg.StrategyType, cfg.Enabled, configJSON,
	).Scan(&cfg.ID, &cfg.CreatedAt, &cfg.UpdatedAt)
}

// GetStrategyConfig retrieves the tuning config for one stream.
func (r *Repository) GetStrategyConfig(ctx context.Context, instrument, period, strategyType string) (*StrategyConfig, error) {
	query := `
		SELECT id, instrument, period, strategy_type, enabled, config_params, created_at, updated_at
		FROM strategy_configs
		WHERE instrument = $1 AND period = $2 AND strategy_type = $3
	`
	cfg := &StrategyConfig{}
	var configJSON []byte
	err := r.db.Pool.QueryRow(ctx, query, instrument, period, strategyType).Scan(
		&cfg.ID, &cfg.Instrument, &cfg.Period, &cfg.StrategyType, &cfg.Enabled,
		&configJSON, &cfg.CreatedAt, &cfg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(configJSON) > 0 {
		if err := json.Unmarshal(configJSON, &cfg.ConfigParams); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// GetAllStrategyConfigs retrieves every persisted strategy configuration.
func (r *Repository) GetAllStrategyConfigs(ctx context.Context) ([]*StrategyConfig, error) {
	query := `
		SELECT id, instrument, period, strategy_type, enabled, config_params, created_at, updated_at
		FROM strategy_configs
		ORDER BY created_at DESC
	`
	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*StrategyConfig
	for rows.Next() {
		cfg := &StrategyConfig{}
		var configJSON []byte
		err := rows.Scan(
			&cfg.ID, &cfg.Instrument, &cfg.Period, &cfg.StrategyType, &cfg.Enabled,
			&configJSON, &cfg.CreatedAt, &cfg.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		if len(configJSON) > 0 {
			if err := json.Unmarshal(configJSON, &cfg.ConfigParams); err != nil {
				return nil, err
			}
		}
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}
