package indicator

// EMAValue is the composite seven-EMA output with stacking booleans.
type EMAValue struct {
	EMA1, EMA2, EMA3, EMA4, EMA5, EMA6, EMA7 float64
	IsLongTrend                              bool
	IsShortTrend                             bool
}

// RSIValue is the RSI output plus threshold flags.
type RSIValue struct {
	Value       float64
	IsOverbought bool
	IsOversold   bool
}

// Values is the composite snapshot every active indicator contributes to on
// each bar; the Signal Evaluator reads from exactly this struct.
type Values struct {
	EMA       EMAValue
	RSI       RSIValue
	ATR       float64
	Bollinger BollingerValue
	Volume    VolumeValue
	Engulfing EngulfingValue
	Hammer    HammerValue
	Leg       LegValue
	Structure MarketStructureValue
	FVGs      []*FairValueGap
	EqualPairs []*EqualPivotPair
	Zone      PremiumDiscountValue
}
