// Package composer implements the Weighted Composer: it reduces a vector of
// signal sub-conditions into a single directional decision plus a score.
package composer

import "vegasstrategy/internal/signalcond"

// Direction is the composer's final call.
type Direction int

const (
	None Direction = iota
	IsLong
	IsShort
)

// Score is the aggregate result of composing a set of sub-conditions.
type Score struct {
	TotalWeight float64
	NetDirection int // +1, -1, or 0
	Direction   Direction
}

// Compose walks the contributing sub-conditions and reduces them to a
// directional Score under the configured weight table.
func Compose(conditions []signalcond.Condition, weights signalcond.Weights) Score {
	var totalWeight float64
	var signedSum float64

	for _, cond := range conditions {
		w := weights.Weight(cond.Type)
		if w == 0 {
			continue
		}
		contribution, sign := contributionAndSign(cond, w)
		totalWeight += contribution
		signedSum += float64(sign) * contribution
	}

	netDirection := 0
	switch {
	case signedSum > 0:
		netDirection = 1
	case signedSum < 0:
		netDirection = -1
	}

	direction := None
	if netDirection != 0 && totalWeight >= weights.MinTotalWeight {
		if netDirection > 0 {
			direction = IsLong
		} else {
			direction = IsShort
		}
	}

	return Score{TotalWeight: totalWeight, NetDirection: netDirection, Direction: direction}
}

func contributionAndSign(cond signalcond.Condition, weight float64) (float64, int) {
	switch cond.Type {
	case signalcond.VolumeTrend:
		ratio := cond.Ratio / 2
		if ratio > 1 {
			ratio = 1
		}
		if ratio < 0 {
			ratio = 0
		}
		return weight * ratio, 0
	case signalcond.Breakthrough:
		switch {
		case cond.PriceAbove:
			return weight, 1
		case cond.PriceBelow:
			return weight, -1
		default:
			return weight, 0
		}
	case signalcond.Rsi:
		switch {
		case cond.Current < cond.Oversold:
			return weight, 1
		case cond.Current > cond.Overbought:
			return weight, -1
		default:
			return 0, 0
		}
	default: // EmaTrend, Bollinger, Engulfing, Hammer
		switch {
		case cond.IsLongSignal:
			return weight, 1
		case cond.IsShortSignal:
			return weight, -1
		default:
			return 0, 0
		}
	}
}
