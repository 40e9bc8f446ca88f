package sweep

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"vegasstrategy/internal/candle"
	"vegasstrategy/internal/execution"
	"vegasstrategy/internal/period"
	"vegasstrategy/internal/risk"
	"vegasstrategy/internal/strategy"
)

type memStore struct {
	mu   sync.Mutex
	byID map[string]execution.ProgressSnapshot
}

func newMemStore() *memStore {
	return &memStore{byID: make(map[string]execution.ProgressSnapshot)}
}

func (m *memStore) key(instrument string, p period.Period) string {
	return instrument + ":" + string(p)
}

func (m *memStore) SaveProgress(ctx context.Context, snap execution.ProgressSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[m.key(snap.Instrument, snap.Period)] = snap
	return nil
}

func (m *memStore) LoadProgress(ctx context.Context, instrument string, p period.Period) (execution.ProgressSnapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.byID[m.key(instrument, p)]
	return snap, ok, nil
}

func TestGridCombinationsAreSortedAndDeterministic(t *testing.T) {
	g := Grid{
		MinTotalWeight:     []float64{2.0, 1.0},
		RiskRewardMultiple: []float64{2.0, 1.5},
		MaxLossPercent:     []float64{0.03, 0.01},
	}
	combos := g.Combinations()
	if len(combos) != 8 {
		t.Fatalf("expected 2*2*2=8 combinations, got %d", len(combos))
	}
	if combos[0].MinTotalWeight != 1.0 || combos[0].RiskRewardMultiple != 1.5 || combos[0].MaxLossPercent != 0.01 {
		t.Fatalf("expected the first combination to be the ascending-sorted minimum, got %+v", combos[0])
	}

	g2 := Grid{
		MinTotalWeight:     []float64{1.0, 2.0},
		RiskRewardMultiple: []float64{1.5, 2.0},
		MaxLossPercent:     []float64{0.01, 0.03},
	}
	if g.Hash() != g2.Hash() {
		t.Fatal("expected hash to be order-independent given the same value sets")
	}
}

func TestGridHashChangesWithDifferentValues(t *testing.T) {
	g1 := Grid{MinTotalWeight: []float64{1.0, 2.0}}
	g2 := Grid{MinTotalWeight: []float64{1.0, 3.0}}
	if g1.Hash() == g2.Hash() {
		t.Fatal("expected different grids to hash differently")
	}
}

func TestResolveResumeRestartsOnHashChange(t *testing.T) {
	store := newMemStore()
	logger := zerolog.Nop()
	driver := NewDriver(logger, store, 0)

	store.byID["BTCUSDT:1m"] = execution.ProgressSnapshot{
		Instrument:   "BTCUSDT",
		Period:       period.OneMinute,
		ConfigHash:   "old-hash",
		CurrentIndex: 5,
	}

	resume := driver.ResumeIndex(context.Background(), "BTCUSDT", period.OneMinute, "new-hash")
	if resume != 0 {
		t.Fatalf("expected resume index 0 on a changed grid hash, got %d", resume)
	}

	resume = driver.ResumeIndex(context.Background(), "BTCUSDT", period.OneMinute, "old-hash")
	if resume != 5 {
		t.Fatalf("expected resume index 5 for a matching grid hash, got %d", resume)
	}
}

func TestDriverRunPersistsFinalSnapshot(t *testing.T) {
	store := newMemStore()
	driver := NewDriver(zerolog.Nop(), store, 2)

	series := []candle.Candle{
		{TsMillis: 1000, Open: 1, High: 1, Low: 1, Close: 1, Confirm: true},
		{TsMillis: 2000, Open: 1, High: 1, Low: 1, Close: 1, Confirm: true},
	}
	grid := Grid{MinTotalWeight: []float64{1.0, 2.0}, RiskRewardMultiple: []float64{1.5}, MaxLossPercent: []float64{0.02}}
	combos := grid.Combinations()

	outcomes, err := driver.Run(context.Background(), "BTCUSDT", period.OneMinute, series,
		strategy.Config{MinKLineNum: 1}, risk.DefaultConfig(), combos, grid.Hash(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcomes) != len(combos) {
		t.Fatalf("expected %d outcomes, got %d", len(combos), len(outcomes))
	}

	snap, ok, err := store.LoadProgress(context.Background(), "BTCUSDT", period.OneMinute)
	if err != nil || !ok {
		t.Fatalf("expected a persisted final snapshot, ok=%v err=%v", ok, err)
	}
	if snap.Status != execution.SweepCompleted {
		t.Fatalf("expected final snapshot status Completed, got %v", snap.Status)
	}
	if snap.CompletedCombinations != len(combos) {
		t.Fatalf("expected completed_combinations %d, got %d", len(combos), snap.CompletedCombinations)
	}
}
