// Package strategy implements the Signal Evaluator: a pure function from a
// recent candle window plus the current indicator snapshot to a SignalResult,
// and the per-strategy-family configuration it reads.
package strategy

import (
	"vegasstrategy/internal/indicator"
	"vegasstrategy/internal/period"
	"vegasstrategy/internal/signalcond"
)

// VolumeFilterConfig gates the whole evaluation on volume strength.
type VolumeFilterConfig struct {
	IsOpen           bool
	IsForceDependent bool
	DecreaseRatio    float64
	IncreaseRatio    float64
}

// EmaBreakthroughConfig configures the EMA2/EMA5 breakthrough check.
type EmaBreakthroughConfig struct {
	IsOpen  bool
	Epsilon float64
}

// EmaTouchTrendConfig configures the pullback-touch-in-trend check.
type EmaTouchTrendConfig struct {
	IsOpen bool
}

// RsiConfig configures the RSI sub-condition and the big-candle suppression.
type RsiConfig struct {
	IsOpen            bool
	BigCandleBodyRatio float64 // suppress RSI reversal signal above this body ratio
}

// BollingerFilterConfig configures the Bollinger pierce check.
type BollingerFilterConfig struct {
	IsOpen                bool
	FilterOnDailyPeriod   bool
}

// EngulfingConfig configures the engulfing sub-condition.
type EngulfingConfig struct {
	IsOpen          bool
	BodyRatioThreshold float64
}

// HammerConfig configures the hammer/hanging-man sub-condition.
type HammerConfig struct {
	IsOpen             bool
	MinAmplitudeRatio  float64
}

// Family tags which strategy-family evaluator a Config is interpreted by.
// New families register here and in Evaluate's dispatch; no new conditional
// branches are needed anywhere else in the engine.
type Family int

const (
	FamilyVegas Family = iota
	FamilyNwe
)

// Config is the immutable bag of tuning parameters for one strategy
// instance, serializable as a structured record. The same Config type
// carries both families' knobs; Family selects which sub-conditions
// Evaluate runs.
type Config struct {
	Family        Family
	Period        period.Period
	MinKLineNum   int
	Indicators    indicator.BundleConfig

	VolumeFilter     VolumeFilterConfig
	EmaBreakthrough  EmaBreakthroughConfig
	EmaTouchTrend    EmaTouchTrendConfig
	Rsi              RsiConfig
	BollingerFilter  BollingerFilterConfig
	Engulfing        EngulfingConfig
	Hammer           HammerConfig

	Weights signalcond.Weights

	RiskRewardMultiple float64 // used to derive best_take_profit_price from the stop distance

	Nwe NweConfig // only read when Family == FamilyNwe
}

// NweConfig configures the NWE (Nadaraya-Watson-envelope-style) band
// breakout family: a simplified envelope-breakout evaluator, not a full port
// of the source's kernel-regression envelope, that exercises the same
// dispatch seam Vegas runs through.
type NweConfig struct {
	ATRMinBandWidth float64 // suppress signals when Bollinger band width < this many ATRs (flat-market filter)
}

// DefaultConfig returns a Vegas-strategy configuration with the reference
// defaults: every sub-condition active, default signal weights.
func DefaultConfig() Config {
	return Config{
		Period:      period.FifteenMinutes,
		MinKLineNum: 200,
		Indicators: indicator.BundleConfig{
			EMA:       indicator.EMAConfig{IsOpen: true, Periods: [7]int{12, 144, 169, 576, 676, 8, 34}},
			RSI:       indicator.RSIConfig{IsOpen: true, Period: 14, OverboughtAt: 70, OversoldAt: 30},
			Bollinger: indicator.BollingerConfig{IsOpen: true, Period: 20, Mult: 2.0},
			Volume:    indicator.VolumeConfig{IsOpen: true, Period: 20, ExcludeCurrent: true},
			ATR:       indicator.ATRConfig{IsOpen: true, Period: 14},
			Engulfing: true,
			Hammer:    indicator.HammerConfig{IsOpen: true, UpShadowRatio: 0.3, DownShadowRatio: 0.6},
			Leg:       indicator.LegConfig{IsOpen: true, Length: 5},
			Structure: indicator.StructureConfig{IsOpen: true, SwingLength: 50, InternalLength: 5},
			FVG:       true,
			EqualHighLow:    indicator.EqualHighLowConfig{IsOpen: true, Length: 5, Threshold: 0.1},
			PremiumDiscount: indicator.PremiumDiscountConfig{IsOpen: true, SwingLength: 50},
		},
		VolumeFilter:    VolumeFilterConfig{IsOpen: true, IsForceDependent: false, DecreaseRatio: 0.6, IncreaseRatio: 1.0},
		EmaBreakthrough: EmaBreakthroughConfig{IsOpen: true, Epsilon: 0.001},
		EmaTouchTrend:   EmaTouchTrendConfig{IsOpen: true},
		Rsi:             RsiConfig{IsOpen: true, BigCandleBodyRatio: 0.7},
		BollingerFilter: BollingerFilterConfig{IsOpen: true, FilterOnDailyPeriod: true},
		Engulfing:       EngulfingConfig{IsOpen: true, BodyRatioThreshold: 0.6},
		Hammer:          HammerConfig{IsOpen: true, MinAmplitudeRatio: 0.6},
		Weights:            signalcond.DefaultWeights(),
		RiskRewardMultiple: 2.0,
	}
}

// DefaultNweConfig returns an NWE-family configuration: only the Bollinger
// envelope and ATR indicators are active, and Evaluate dispatches to
// evaluateNwe instead of the Vegas sub-condition chain.
func DefaultNweConfig() Config {
	return Config{
		Family:      FamilyNwe,
		Period:      period.FifteenMinutes,
		MinKLineNum: 60,
		Indicators: indicator.BundleConfig{
			Bollinger: indicator.BollingerConfig{IsOpen: true, Period: 20, Mult: 2.0},
			ATR:       indicator.ATRConfig{IsOpen: true, Period: 14},
		},
		// evaluateNwe only ever emits one Bollinger-type condition, so the
		// default min_total_weight (2.0, tuned for the Vegas family's
		// multi-condition sum) is lowered to the single Bollinger weight.
		Weights: signalcond.Weights{
			Entries:        []signalcond.WeightEntry{{Type: signalcond.Bollinger, Weight: 1.0}},
			MinTotalWeight: 1.0,
		},
		RiskRewardMultiple: 1.5,
		Nwe:                NweConfig{ATRMinBandWidth: 1.0},
	}
}
