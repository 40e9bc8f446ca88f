package composer

import (
	"testing"

	"vegasstrategy/internal/signalcond"
)

func TestComposeEngulfingLongSignal(t *testing.T) {
	weights := signalcond.DefaultWeights()
	conditions := []signalcond.Condition{
		{Type: signalcond.Engulfing, IsLongSignal: true},
		{Type: signalcond.EmaTrend, IsLongSignal: true},
	}
	score := Compose(conditions, weights)
	if score.Direction != IsLong {
		t.Fatalf("expected IsLong, got %v (total=%v net=%v)", score.Direction, score.TotalWeight, score.NetDirection)
	}
}

func TestComposeTieYieldsNoSignal(t *testing.T) {
	weights := signalcond.DefaultWeights()
	conditions := []signalcond.Condition{
		{Type: signalcond.Engulfing, IsLongSignal: true},
		{Type: signalcond.Bollinger, IsShortSignal: true},
	}
	score := Compose(conditions, weights)
	if score.Direction != None {
		t.Fatalf("expected no signal on a signed tie, got %v", score.Direction)
	}
}

func TestComposeBelowMinWeightYieldsNoSignal(t *testing.T) {
	weights := signalcond.DefaultWeights()
	conditions := []signalcond.Condition{
		{Type: signalcond.Rsi, Current: 20, Oversold: 30, Overbought: 70},
	}
	score := Compose(conditions, weights)
	if score.Direction != None {
		t.Fatalf("expected no signal below min_total_weight, got %v (total=%v)", score.Direction, score.TotalWeight)
	}
}

func TestComposeNeutralConditionDoesNotCreditWeight(t *testing.T) {
	weights := signalcond.DefaultWeights()
	conditions := []signalcond.Condition{
		{Type: signalcond.EmaTrend},
		{Type: signalcond.Engulfing, IsLongSignal: true},
	}
	score := Compose(conditions, weights)
	if score.TotalWeight != weights.Weight(signalcond.Engulfing) {
		t.Fatalf("expected neutral EmaTrend condition to contribute zero weight, got total=%v", score.TotalWeight)
	}
}
