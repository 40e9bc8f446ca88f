package tradestate

// TradeRecord is an append-only log entry describing either an entry or an
// exit.
type TradeRecord struct {
	OptionType string // "long", "short", "close"
	Side       string // "long" or "short": the position side this record concerns

	SignalTsMillis int64
	OpenTsMillis   int64
	CloseTsMillis  int64

	OpenPrice  float64
	ClosePrice float64

	ProfitLoss float64
	Size       float64
	FullClose  bool
	CloseType  string

	WinCount  int
	LossCount int

	SingleValue  string
	SingleResult string
}

// Result is the Backtest Result aggregation emitted at the end of a replay.
type Result struct {
	FinalFunds      float64
	WinRate         float64
	OpenedTradeCount int
	TradeRecords    []TradeRecord
}
