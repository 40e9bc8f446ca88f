package indicator

import "vegasstrategy/internal/candle"

// Zone classifies a price relative to the current swing range.
type Zone int

const (
	ZoneEquilibrium Zone = iota
	ZonePremium
	ZoneDiscount
)

// PremiumDiscountValue is the per-bar output.
type PremiumDiscountValue struct {
	SwingHigh        float64
	SwingLow         float64
	PremiumLower     float64
	EquilibriumLower float64
	EquilibriumUpper float64
	DiscountUpper    float64
	Zone             Zone
}

// PremiumDiscount derives premium/equilibrium/discount bands from the
// current swing high and low and classifies the bar's close against them.
type PremiumDiscount struct {
	legs    *LegDetector
	high    float64
	low     float64
	haveAny bool
}

// NewPremiumDiscount constructs a PremiumDiscount indicator driven by a
// LegDetector of the given pivot length.
func NewPremiumDiscount(swingLength int) *PremiumDiscount {
	return &PremiumDiscount{legs: NewLegDetector(swingLength)}
}

// Next feeds one candle and returns the current zone classification.
func (p *PremiumDiscount) Next(c candle.Candle) PremiumDiscountValue {
	leg := p.legs.Next(c)
	if leg.IsNewLeg {
		if leg.CurrentLeg == LegBearish {
			p.high = leg.PivotPrice
		} else {
			p.low = leg.PivotPrice
		}
		p.haveAny = true
	}

	var out PremiumDiscountValue
	if !p.haveAny || p.high <= p.low {
		return out
	}
	h, l := p.high, p.low
	premiumLower := 0.95*h + 0.05*l
	discountUpper := 0.95*l + 0.05*h
	eqLower := 0.525*l + 0.475*h
	eqUpper := 0.525*h + 0.475*l

	out = PremiumDiscountValue{
		SwingHigh:        h,
		SwingLow:         l,
		PremiumLower:     premiumLower,
		EquilibriumLower: eqLower,
		EquilibriumUpper: eqUpper,
		DiscountUpper:    discountUpper,
	}
	switch {
	case c.Close >= premiumLower:
		out.Zone = ZonePremium
	case c.Close <= discountUpper:
		out.Zone = ZoneDiscount
	default:
		out.Zone = ZoneEquilibrium
	}
	return out
}

// RequiredLookback mirrors the underlying leg detector.
func (p *PremiumDiscount) RequiredLookback() int { return p.legs.RequiredLookback() }
