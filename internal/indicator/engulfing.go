package indicator

import "vegasstrategy/internal/candle"

// Engulfing detects the two-candle engulfing pattern: the current candle's
// body fully contains the previous candle's body.
type Engulfing struct {
	prev     candle.Candle
	haveData bool
}

// NewEngulfing constructs an empty Engulfing detector.
func NewEngulfing() *Engulfing { return &Engulfing{} }

// EngulfingValue is the per-bar output.
type EngulfingValue struct {
	IsEngulfing bool
	BodyRatio   float64
	IsBullish   bool
}

// Next feeds one candle and returns the engulfing status for this bar
// relative to the previous one.
func (e *Engulfing) Next(c candle.Candle) EngulfingValue {
	var out EngulfingValue
	if e.haveData {
		prevLo := min2(e.prev.Open, e.prev.Close)
		prevHi := max2(e.prev.Open, e.prev.Close)
		curLo := min2(c.Open, c.Close)
		curHi := max2(c.Open, c.Close)
		out.IsEngulfing = curLo <= prevLo && curHi >= prevHi && curHi > curLo
		out.BodyRatio = c.BodyRatio()
		out.IsBullish = c.Close > c.Open
	}
	e.prev = c
	e.haveData = true
	return out
}

// RequiredLookback is 2: one prior candle is needed to compare against.
func (e *Engulfing) RequiredLookback() int { return 2 }

func min2(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func max2(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
