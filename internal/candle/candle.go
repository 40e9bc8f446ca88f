// Package candle holds the Candle type and the bounded, time-ordered Buffer
// that the rest of the engine reads from.
package candle

// Candle is one OHLCV bar. Confirm is false while the exchange still
// considers the bar in-progress.
type Candle struct {
	TsMillis int64
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
	Confirm  bool
}

// Valid checks the OHLC ordering invariant l <= min(o,c) <= max(o,c) <= h.
func (c Candle) Valid() bool {
	lo := c.Open
	hi := c.Open
	if c.Close < lo {
		lo = c.Close
	}
	if c.Close > hi {
		hi = c.Close
	}
	return c.Low <= lo && hi <= c.High
}

// Body returns the open-to-close range, signed (positive = bullish bar).
func (c Candle) Body() float64 { return c.Close - c.Open }

// Range returns the full high-low range of the bar.
func (c Candle) Range() float64 { return c.High - c.Low }

// BodyRatio returns |body| / range, 0 when range is 0.
func (c Candle) BodyRatio() float64 {
	r := c.Range()
	if r <= 0 {
		return 0
	}
	b := c.Body()
	if b < 0 {
		b = -b
	}
	return b / r
}
