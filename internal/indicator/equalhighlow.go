package indicator

import "vegasstrategy/internal/candle"

// EqualPivotPair reports two pivots of the same kind within an ATR-scaled
// tolerance of each other.
type EqualPivotPair struct {
	FirstTsMillis  int64
	SecondTsMillis int64
	Price          float64
	IsHigh         bool
	Mitigated      bool
}

// EqualHighLow detects equal-high / equal-low pivot pairs using a leg
// detector for pivots and an ATR-derived threshold for "equal".
type EqualHighLow struct {
	legs      *LegDetector
	atr       *ATR
	threshold float64

	pendingHighs []candle.Candle
	pendingLows  []candle.Candle
	pairs        []*EqualPivotPair
}

// NewEqualHighLow constructs an EqualHighLow indicator. threshold is
// expressed as a multiple of ATR(length).
func NewEqualHighLow(length int, threshold float64) *EqualHighLow {
	return &EqualHighLow{
		legs:      NewLegDetector(length),
		atr:       NewATR(length),
		threshold: threshold,
	}
}

// Next feeds one candle and returns the currently-open equal-pivot pairs.
func (e *EqualHighLow) Next(c candle.Candle) []*EqualPivotPair {
	atr := e.atr.Next(c)
	leg := e.legs.Next(c)
	tolerance := atr * e.threshold

	for _, p := range e.pairs {
		if p.Mitigated {
			continue
		}
		if p.IsHigh && c.Close > p.Price {
			p.Mitigated = true
		} else if !p.IsHigh && c.Close < p.Price {
			p.Mitigated = true
		}
	}

	if leg.IsNewLeg {
		pivot := candle.Candle{TsMillis: leg.PivotTs, High: leg.PivotPrice, Low: leg.PivotPrice}
		if leg.CurrentLeg == LegBearish {
			e.matchAndAppend(&e.pendingHighs, pivot, tolerance, true)
		} else {
			e.matchAndAppend(&e.pendingLows, pivot, tolerance, false)
		}
	}

	return e.openPairs()
}

func (e *EqualHighLow) matchAndAppend(pending *[]candle.Candle, pivot candle.Candle, tolerance float64, isHigh bool) {
	price := pivot.High
	if !isHigh {
		price = pivot.Low
	}
	for _, prior := range *pending {
		priorPrice := prior.High
		if !isHigh {
			priorPrice = prior.Low
		}
		if abs(price-priorPrice) <= tolerance {
			e.pairs = append(e.pairs, &EqualPivotPair{
				FirstTsMillis:  prior.TsMillis,
				SecondTsMillis: pivot.TsMillis,
				Price:          priorPrice,
				IsHigh:         isHigh,
			})
		}
	}
	*pending = append(*pending, pivot)
	if len(*pending) > 20 {
		*pending = (*pending)[len(*pending)-20:]
	}
}

func (e *EqualHighLow) openPairs() []*EqualPivotPair {
	out := make([]*EqualPivotPair, 0, len(e.pairs))
	for _, p := range e.pairs {
		if !p.Mitigated {
			out = append(out, p)
		}
	}
	return out
}

// RequiredLookback mirrors the underlying leg detector.
func (e *EqualHighLow) RequiredLookback() int { return e.legs.RequiredLookback() }
