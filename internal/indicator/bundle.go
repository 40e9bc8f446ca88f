package indicator

import "vegasstrategy/internal/candle"

// EMAConfig configures the seven-EMA stack.
type EMAConfig struct {
	IsOpen  bool
	Periods [7]int
}

// RSIConfig configures the RSI sub-indicator.
type RSIConfig struct {
	IsOpen               bool
	Period               int
	OverboughtAt         float64
	OversoldAt           float64
}

// BollingerConfig configures the enhanced Bollinger Bands.
type BollingerConfig struct {
	IsOpen bool
	Period int
	Mult   float64
}

// VolumeConfig configures the volume-ratio indicator.
type VolumeConfig struct {
	IsOpen         bool
	Period         int
	ExcludeCurrent bool
}

// ATRConfig configures the ATR indicator.
type ATRConfig struct {
	IsOpen bool
	Period int
}

// HammerConfig configures the hammer/hanging-man detector.
type HammerConfig struct {
	IsOpen          bool
	UpShadowRatio   float64
	DownShadowRatio float64
}

// LegConfig configures the leg detector.
type LegConfig struct {
	IsOpen bool
	Length int
}

// StructureConfig configures the market-structure indicator.
type StructureConfig struct {
	IsOpen         bool
	SwingLength    int
	InternalLength int
}

// EqualHighLowConfig configures the equal-high/low detector.
type EqualHighLowConfig struct {
	IsOpen    bool
	Length    int
	Threshold float64
}

// PremiumDiscountConfig configures the premium/discount zone indicator.
type PremiumDiscountConfig struct {
	IsOpen      bool
	SwingLength int
}

// BundleConfig aggregates every sub-indicator's is_open flag and parameters.
type BundleConfig struct {
	EMA             EMAConfig
	RSI             RSIConfig
	Bollinger       BollingerConfig
	Volume          VolumeConfig
	ATR             ATRConfig
	Engulfing       bool
	Hammer          HammerConfig
	Leg             LegConfig
	Structure       StructureConfig
	FVG             bool
	EqualHighLow    EqualHighLowConfig
	PremiumDiscount PremiumDiscountConfig
}

// Bundle advances every configured-active indicator by one candle and
// exposes the composite Values snapshot. Disabled indicators simply leave
// their zero-value slot in Values; the Signal Evaluator treats that as "no
// contribution" per sub-condition.
type Bundle struct {
	cfg BundleConfig

	emas      [7]*EMA
	rsi       *RSI
	bollinger *Bollinger
	volume    *VolumeRatio
	atr       *ATR
	engulfing *Engulfing
	hammer    *Hammer
	leg       *LegDetector
	structure *MarketStructure
	fvg       *FVGDetector
	eqHighLow *EqualHighLow
	zone      *PremiumDiscount
}

// NewBundle constructs a Bundle, instantiating only the indicators whose
// is_open flag is set.
func NewBundle(cfg BundleConfig) *Bundle {
	b := &Bundle{cfg: cfg}
	if cfg.EMA.IsOpen {
		for i, p := range cfg.EMA.Periods {
			b.emas[i] = NewEMA(p)
		}
	}
	if cfg.RSI.IsOpen {
		b.rsi = NewRSI(cfg.RSI.Period)
		if cfg.RSI.OverboughtAt > 0 {
			b.rsi.OverboughtAt = cfg.RSI.OverboughtAt
		}
		if cfg.RSI.OversoldAt > 0 {
			b.rsi.OversoldAt = cfg.RSI.OversoldAt
		}
	}
	if cfg.Bollinger.IsOpen {
		b.bollinger = NewBollinger(cfg.Bollinger.Period, cfg.Bollinger.Mult)
	}
	if cfg.Volume.IsOpen {
		b.volume = NewVolumeRatio(cfg.Volume.Period, cfg.Volume.ExcludeCurrent)
	}
	if cfg.ATR.IsOpen {
		b.atr = NewATR(cfg.ATR.Period)
	}
	if cfg.Engulfing {
		b.engulfing = NewEngulfing()
	}
	if cfg.Hammer.IsOpen {
		b.hammer = NewHammer(cfg.Hammer.UpShadowRatio, cfg.Hammer.DownShadowRatio)
	}
	if cfg.Leg.IsOpen {
		b.leg = NewLegDetector(cfg.Leg.Length)
	}
	if cfg.Structure.IsOpen {
		b.structure = NewMarketStructure(cfg.Structure.SwingLength, cfg.Structure.InternalLength)
	}
	if cfg.FVG {
		b.fvg = NewFVGDetector()
	}
	if cfg.EqualHighLow.IsOpen {
		b.eqHighLow = NewEqualHighLow(cfg.EqualHighLow.Length, cfg.EqualHighLow.Threshold)
	}
	if cfg.PremiumDiscount.IsOpen {
		b.zone = NewPremiumDiscount(cfg.PremiumDiscount.SwingLength)
	}
	return b
}

// Next advances every active indicator by one candle and returns the
// composite snapshot.
func (b *Bundle) Next(c candle.Candle) Values {
	var v Values

	if b.cfg.EMA.IsOpen {
		v.EMA.EMA1 = b.emas[0].Next(c.Close)
		v.EMA.EMA2 = b.emas[1].Next(c.Close)
		v.EMA.EMA3 = b.emas[2].Next(c.Close)
		v.EMA.EMA4 = b.emas[3].Next(c.Close)
		v.EMA.EMA5 = b.emas[4].Next(c.Close)
		v.EMA.EMA6 = b.emas[5].Next(c.Close)
		v.EMA.EMA7 = b.emas[6].Next(c.Close)
		v.EMA.IsLongTrend = v.EMA.EMA1 > v.EMA.EMA2 && v.EMA.EMA2 > v.EMA.EMA3 && v.EMA.EMA3 > v.EMA.EMA4
		v.EMA.IsShortTrend = v.EMA.EMA1 < v.EMA.EMA2 && v.EMA.EMA2 < v.EMA.EMA3 && v.EMA.EMA3 < v.EMA.EMA4
	}
	if b.cfg.RSI.IsOpen {
		val := b.rsi.Next(c.Close)
		v.RSI = RSIValue{Value: val, IsOverbought: b.rsi.IsOverbought(val), IsOversold: b.rsi.IsOversold(val)}
	}
	if b.cfg.Bollinger.IsOpen {
		v.Bollinger = b.bollinger.Next(c.Close, c.High, c.Low)
	}
	if b.cfg.Volume.IsOpen {
		v.Volume = b.volume.Next(c.Volume)
	}
	if b.cfg.ATR.IsOpen {
		v.ATR = b.atr.Next(c)
	}
	if b.engulfing != nil {
		v.Engulfing = b.engulfing.Next(c)
	}
	if b.cfg.Hammer.IsOpen {
		v.Hammer = b.hammer.Next(c)
	}
	if b.cfg.Leg.IsOpen {
		v.Leg = b.leg.Next(c)
	}
	if b.cfg.Structure.IsOpen {
		v.Structure = b.structure.Next(c)
	}
	if b.fvg != nil {
		v.FVGs = b.fvg.Next(c)
	}
	if b.cfg.EqualHighLow.IsOpen {
		v.EqualPairs = b.eqHighLow.Next(c)
	}
	if b.cfg.PremiumDiscount.IsOpen {
		v.Zone = b.zone.Next(c)
	}
	return v
}

// RequiredLookback is the maximum warm-up window across active indicators.
func (b *Bundle) RequiredLookback() int {
	max := 1
	upd := func(n int) {
		if n > max {
			max = n
		}
	}
	if b.cfg.EMA.IsOpen {
		upd(1)
	}
	if b.rsi != nil {
		upd(b.rsi.RequiredLookback())
	}
	if b.bollinger != nil {
		upd(b.bollinger.RequiredLookback())
	}
	if b.volume != nil {
		upd(b.volume.RequiredLookback())
	}
	if b.atr != nil {
		upd(b.atr.RequiredLookback())
	}
	if b.engulfing != nil {
		upd(b.engulfing.RequiredLookback())
	}
	if b.leg != nil {
		upd(b.leg.RequiredLookback())
	}
	if b.structure != nil {
		upd(b.structure.RequiredLookback())
	}
	if b.fvg != nil {
		upd(b.fvg.RequiredLookback())
	}
	if b.eqHighLow != nil {
		upd(b.eqHighLow.RequiredLookback())
	}
	if b.zone != nil {
		upd(b.zone.RequiredLookback())
	}
	return max
}
