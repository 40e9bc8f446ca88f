package strategy

// Result is the Signal Evaluator's output: at most one of ShouldBuy /
// ShouldSell is ever true. SingleValue and SingleResult are opaque audit
// strings the core never branches on.
type Result struct {
	ShouldBuy  bool
	ShouldSell bool

	OpenPrice               float64
	BestOpenPrice           *float64
	SignalKlineStopLossPrice *float64
	BestTakeProfitPrice     *float64

	TsMillis int64

	SingleValue  string
	SingleResult string
}

// noSignal returns the zero-valued no-signal Result at the given tick.
func noSignal(ts int64) Result {
	return Result{TsMillis: ts}
}
