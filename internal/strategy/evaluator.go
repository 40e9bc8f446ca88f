package strategy

import (
	"encoding/json"

	"vegasstrategy/internal/candle"
	"vegasstrategy/internal/composer"
	"vegasstrategy/internal/indicator"
	"vegasstrategy/internal/period"
	"vegasstrategy/internal/signalcond"
)

// Evaluate is the Signal Evaluator: a pure function from the recent candle
// window and the current indicator snapshot to a Result. It never mutates
// its inputs and never sets both ShouldBuy and ShouldSell.
func Evaluate(window []candle.Candle, vals indicator.Values, cfg Config) Result {
	if len(window) == 0 {
		return noSignal(0)
	}
	if cfg.Family == FamilyNwe {
		return evaluateNwe(window, vals, cfg)
	}
	current := window[len(window)-1]
	ts := current.TsMillis

	var conditions []signalcond.Condition

	if cfg.VolumeFilter.IsOpen {
		if cfg.VolumeFilter.IsForceDependent && vals.Volume.Ratio < cfg.VolumeFilter.DecreaseRatio {
			return noSignal(ts)
		}
		conditions = append(conditions, signalcond.Condition{
			Type:         signalcond.VolumeTrend,
			IsIncreasing: vals.Volume.IsIncreasingThanPre,
			Ratio:        vals.Volume.Ratio,
		})
	}

	if cfg.EmaBreakthrough.IsOpen && len(window) >= 2 {
		prev := window[len(window)-2]
		eps := cfg.EmaBreakthrough.Epsilon
		ema2 := vals.EMA.EMA2
		upBreak := current.Close > ema2*(1+eps) && prev.Close < ema2
		downBreak := current.Close < ema2*(1-eps) && prev.Close > ema2 && current.Close < vals.EMA.EMA5
		if upBreak || downBreak {
			conditions = append(conditions, signalcond.Condition{
				Type:       signalcond.Breakthrough,
				PriceAbove: upBreak,
				PriceBelow: downBreak,
			})
		}
	}

	if cfg.EmaTouchTrend.IsOpen {
		if cond, ok := evaluateEmaTouchTrend(current, vals); ok {
			conditions = append(conditions, cond)
		}
	}

	if cfg.Rsi.IsOpen {
		rsiValue := vals.RSI.Value
		if current.BodyRatio() > cfg.Rsi.BigCandleBodyRatio {
			rsiValue = 50
		}
		oversold := cfg.Indicators.RSI.OversoldAt
		overbought := cfg.Indicators.RSI.OverboughtAt
		if rsiValue < oversold || rsiValue > overbought {
			conditions = append(conditions, signalcond.Condition{
				Type:       signalcond.Rsi,
				Current:    rsiValue,
				Oversold:   oversold,
				Overbought: overbought,
				IsValid:    true,
			})
		}
	}

	if cfg.BollingerFilter.IsOpen {
		longSignal := current.Low < vals.Bollinger.Lower
		shortSignal := current.High > vals.Bollinger.Upper
		if cfg.BollingerFilter.FilterOnDailyPeriod && cfg.Period == period.OneDayUTC {
			if longSignal && current.Close < vals.EMA.EMA1 {
				longSignal = false
			}
			if shortSignal && current.Close > vals.EMA.EMA1 {
				shortSignal = false
			}
		}
		if longSignal || shortSignal {
			conditions = append(conditions, signalcond.Condition{
				Type:          signalcond.Bollinger,
				IsLongSignal:  longSignal,
				IsShortSignal: shortSignal,
			})
		}
	}

	if cfg.Engulfing.IsOpen && vals.Engulfing.IsEngulfing && vals.Engulfing.BodyRatio > cfg.Engulfing.BodyRatioThreshold {
		conditions = append(conditions, signalcond.Condition{
			Type:          signalcond.Engulfing,
			IsLongSignal:  vals.Engulfing.IsBullish,
			IsShortSignal: !vals.Engulfing.IsBullish,
		})
	}

	if cfg.Hammer.IsOpen && vals.ATR > 0 && vals.Hammer.IsShape {
		amplitudeOK := current.Range() >= cfg.Hammer.MinAmplitudeRatio*vals.ATR
		passesTrendFilter := !(vals.EMA.IsShortTrend && vals.Volume.Ratio < 1)
		// The shape alone (long lower shadow, short upper shadow) is the same
		// for both patterns; trend context decides which one fired: a hammer
		// reverses a downtrend (long), a hanging-man reverses an uptrend
		// (short). Outside either trend the shape is ambiguous and contributes
		// nothing.
		isHammer := vals.EMA.IsShortTrend
		isHangingMan := vals.EMA.IsLongTrend
		if amplitudeOK && passesTrendFilter && (isHammer || isHangingMan) {
			conditions = append(conditions, signalcond.Condition{
				Type:          signalcond.Hammer,
				IsLongSignal:  isHammer,
				IsShortSignal: isHangingMan,
			})
		}
	}

	score := composer.Compose(conditions, cfg.Weights)
	if score.Direction == composer.None {
		return noSignal(ts)
	}

	result := Result{TsMillis: ts, OpenPrice: current.Close}
	if score.Direction == composer.IsLong {
		result.ShouldBuy = true
		stop := current.Low
		result.SignalKlineStopLossPrice = &stop
		best := fibonacciPullback(current, true)
		result.BestOpenPrice = &best
		tp := current.Close + (current.Close-stop)*cfg.RiskRewardMultiple
		result.BestTakeProfitPrice = &tp
	} else {
		result.ShouldSell = true
		stop := current.High
		result.SignalKlineStopLossPrice = &stop
		best := fibonacciPullback(current, false)
		result.BestOpenPrice = &best
		tp := current.Close - (stop-current.Close)*cfg.RiskRewardMultiple
		result.BestTakeProfitPrice = &tp
	}

	result.SingleValue = serializeAudit(vals)
	result.SingleResult = serializeAudit(conditions)
	return result
}

// evaluateNwe is the NWE family's evaluator: a single sub-condition, a
// Bollinger-envelope breakout, gated by a minimum band width (in ATRs) to
// avoid firing in a flat market. It exercises the same Result/stop/target
// shape Vegas produces, not a port of the source's kernel-regression bands.
func evaluateNwe(window []candle.Candle, vals indicator.Values, cfg Config) Result {
	current := window[len(window)-1]
	ts := current.TsMillis

	bandWidth := vals.Bollinger.Upper - vals.Bollinger.Lower
	if vals.ATR > 0 && bandWidth < cfg.Nwe.ATRMinBandWidth*vals.ATR {
		return noSignal(ts)
	}

	longSignal := current.Low < vals.Bollinger.Lower
	shortSignal := current.High > vals.Bollinger.Upper
	if !longSignal && !shortSignal {
		return noSignal(ts)
	}

	conditions := []signalcond.Condition{{
		Type:          signalcond.Bollinger,
		IsLongSignal:  longSignal,
		IsShortSignal: shortSignal,
	}}
	score := composer.Compose(conditions, cfg.Weights)
	if score.Direction == composer.None {
		return noSignal(ts)
	}

	result := Result{TsMillis: ts, OpenPrice: current.Close}
	if score.Direction == composer.IsLong {
		result.ShouldBuy = true
		stop := current.Low
		result.SignalKlineStopLossPrice = &stop
		tp := current.Close + (current.Close-stop)*cfg.RiskRewardMultiple
		result.BestTakeProfitPrice = &tp
	} else {
		result.ShouldSell = true
		stop := current.High
		result.SignalKlineStopLossPrice = &stop
		tp := current.Close - (stop-current.Close)*cfg.RiskRewardMultiple
		result.BestTakeProfitPrice = &tp
	}
	result.SingleValue = serializeAudit(vals)
	result.SingleResult = serializeAudit(conditions)
	return result
}

// evaluateEmaTouchTrend implements the pullback-touch-in-trend sub-condition.
func evaluateEmaTouchTrend(c candle.Candle, vals indicator.Values) (signalcond.Condition, bool) {
	touches := func(level float64) bool {
		return c.Low <= level && c.Close > level
	}
	touchesUnder := func(level float64) bool {
		return c.High >= level && c.Close < level
	}

	if vals.EMA.IsLongTrend {
		if touches(vals.EMA.EMA2) || touches(vals.EMA.EMA3) || touches(vals.EMA.EMA4) || touches(vals.EMA.EMA5) {
			return signalcond.Condition{Type: signalcond.EmaTrend, IsLongSignal: true}, true
		}
		shortTermBullish := vals.EMA.EMA1 > vals.EMA.EMA2
		longTermBearish := vals.EMA.EMA5 < vals.EMA.EMA6
		if shortTermBullish && longTermBearish && touches(vals.EMA.EMA7) {
			return signalcond.Condition{Type: signalcond.EmaTrend, IsShortSignal: true}, true
		}
		return signalcond.Condition{}, false
	}

	if vals.EMA.IsShortTrend {
		if touchesUnder(vals.EMA.EMA2) || touchesUnder(vals.EMA.EMA3) || touchesUnder(vals.EMA.EMA4) || touchesUnder(vals.EMA.EMA5) {
			return signalcond.Condition{Type: signalcond.EmaTrend, IsShortSignal: true}, true
		}
		shortTermBearish := vals.EMA.EMA1 < vals.EMA.EMA2
		longTermBullish := vals.EMA.EMA5 > vals.EMA.EMA6
		if shortTermBearish && longTermBullish && touchesUnder(vals.EMA.EMA7) {
			return signalcond.Condition{Type: signalcond.EmaTrend, IsLongSignal: true}, true
		}
	}
	return signalcond.Condition{}, false
}

// fibonacciPullback derives the evaluator's preferred limit price: a 0.382
// retracement of the signal candle's range back toward the opposite extreme.
func fibonacciPullback(c candle.Candle, long bool) float64 {
	r := c.Range()
	if long {
		return c.Close - r*0.382
	}
	return c.Close + r*0.382
}

func serializeAudit(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
