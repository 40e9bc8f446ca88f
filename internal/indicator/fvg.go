package indicator

import "vegasstrategy/internal/candle"

// FairValueGap is an unfilled price gap between the previous-previous high
// and next low (bullish), or the previous-previous low and next high
// (bearish).
type FairValueGap struct {
	TsMillis  int64
	Top       float64
	Bottom    float64
	IsBullish bool
	Mitigated bool
}

// FVGDetector tracks open fair-value gaps across the stream.
type FVGDetector struct {
	history []candle.Candle
	open    []*FairValueGap
}

// NewFVGDetector constructs an empty FVGDetector.
func NewFVGDetector() *FVGDetector { return &FVGDetector{} }

// Next feeds one candle, mitigates any open gaps this bar trades into, and
// returns the list of still-open gaps (oldest first).
func (d *FVGDetector) Next(c candle.Candle) []*FairValueGap {
	d.history = append(d.history, c)
	if len(d.history) > 3 {
		d.history = d.history[len(d.history)-3:]
	}

	for _, g := range d.open {
		if g.Mitigated {
			continue
		}
		if g.IsBullish && c.Low <= g.Bottom {
			g.Mitigated = true
		} else if !g.IsBullish && c.High >= g.Top {
			g.Mitigated = true
		}
	}

	if len(d.history) == 3 {
		a, _, c3 := d.history[0], d.history[1], d.history[2]
		if a.High < c3.Low {
			d.open = append(d.open, &FairValueGap{TsMillis: c3.TsMillis, Top: c3.Low, Bottom: a.High, IsBullish: true})
		} else if a.Low > c3.High {
			d.open = append(d.open, &FairValueGap{TsMillis: c3.TsMillis, Top: a.Low, Bottom: c3.High, IsBullish: false})
		}
	}

	d.compact()
	return d.openGaps()
}

func (d *FVGDetector) compact() {
	if len(d.open) < 200 {
		return
	}
	kept := d.open[:0]
	for _, g := range d.open {
		if !g.Mitigated {
			kept = append(kept, g)
		}
	}
	d.open = kept
}

func (d *FVGDetector) openGaps() []*FairValueGap {
	out := make([]*FairValueGap, 0, len(d.open))
	for _, g := range d.open {
		if !g.Mitigated {
			out = append(out, g)
		}
	}
	return out
}

// RequiredLookback is 3: a gap spans three candles.
func (d *FVGDetector) RequiredLookback() int { return 3 }
