package binance

// FuturesClient is the subset of the Binance USDT-M Futures REST API the
// engine actually drives: kline/price reads for the CandleSource adapter,
// and order placement/cancellation for the Order Adapter.
type FuturesClient interface {
	// GetFuturesKlines retrieves up to limit klines for symbol/interval,
	// oldest first, grounding internal/binance's CandleSource.FetchRange.
	GetFuturesKlines(symbol, interval string, limit int) ([]Kline, error)

	// GetFuturesCurrentPrice retrieves the latest mark/last price for symbol.
	GetFuturesCurrentPrice(symbol string) (float64, error)

	// PlaceFuturesOrder places a new futures order.
	PlaceFuturesOrder(params FuturesOrderParams) (*FuturesOrderResponse, error)

	// CancelFuturesOrder cancels an existing futures order.
	CancelFuturesOrder(symbol string, orderId int64) error

	// GetOpenOrders retrieves all open orders for a symbol (empty string for all symbols).
	GetOpenOrders(symbol string) ([]FuturesOrder, error)
}

// Ensure FuturesClientImpl implements FuturesClient.
var _ FuturesClient = (*FuturesClientImpl)(nil)
