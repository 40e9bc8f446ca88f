// Package sweep implements the resumable parameter-sweep driver described in
// spec.md §6/§9 and SPEC_FULL.md §4: it enumerates strategy.Config
// variations deterministically, replays each one, and periodically persists
// a ProgressSnapshot so a killed sweep resumes instead of restarting — unless
// the configuration grid itself changed, in which case restarting from zero
// is the only safe option (a stale current_index would skip combinations a
// different grid never defined).
package sweep

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"vegasstrategy/internal/candle"
	"vegasstrategy/internal/execution"
	"vegasstrategy/internal/period"
	"vegasstrategy/internal/risk"
	"vegasstrategy/internal/strategy"
	"vegasstrategy/internal/tradestate"
)

// ParamSet is one point in the sweep grid: the subset of strategy/risk
// tunables the operator wants varied. Unlisted fields are held at the base
// config's value.
type ParamSet struct {
	MinTotalWeight     float64
	RiskRewardMultiple float64
	MaxLossPercent     float64
}

// Grid is the full set of values to cross for each varied parameter. The
// sweep enumerates their cartesian product in a fixed, sorted order so the
// same Grid always yields the same combination sequence (required for
// current_index to mean the same thing across resumes).
type Grid struct {
	MinTotalWeight     []float64
	RiskRewardMultiple []float64
	MaxLossPercent     []float64
}

// Combinations enumerates the grid's cartesian product in a deterministic
// order: outer to inner, MinTotalWeight > RiskRewardMultiple > MaxLossPercent,
// each axis sorted ascending.
func (g Grid) Combinations() []ParamSet {
	weights := sortedCopy(g.MinTotalWeight)
	rrs := sortedCopy(g.RiskRewardMultiple)
	losses := sortedCopy(g.MaxLossPercent)

	var out []ParamSet
	for _, w := range weights {
		for _, rr := range rrs {
			for _, l := range losses {
				out = append(out, ParamSet{MinTotalWeight: w, RiskRewardMultiple: rr, MaxLossPercent: l})
			}
		}
	}
	return out
}

func sortedCopy(in []float64) []float64 {
	out := append([]float64(nil), in...)
	sort.Float64s(out)
	return out
}

// Hash deterministically fingerprints the grid definition. Each axis is
// sorted first, so the same value sets listed in a different order hash the
// same (they also yield the same Combinations sequence). A changed grid
// (added/removed values) yields a different hash, which forces a restart
// per ResolveResumeIndex rather than silently reinterpreting a stale
// current_index against a different combination sequence.
func (g Grid) Hash() string {
	sorted := Grid{
		MinTotalWeight:     sortedCopy(g.MinTotalWeight),
		RiskRewardMultiple: sortedCopy(g.RiskRewardMultiple),
		MaxLossPercent:     sortedCopy(g.MaxLossPercent),
	}
	b, _ := json.Marshal(sorted) // deterministic: struct field order is fixed
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// apply overlays a ParamSet onto a base strategy/risk config pair.
func (p ParamSet) apply(baseStrat strategy.Config, baseRisk risk.Config) (strategy.Config, risk.Config) {
	strat := baseStrat
	strat.Weights.MinTotalWeight = p.MinTotalWeight
	strat.RiskRewardMultiple = p.RiskRewardMultiple

	r := baseRisk
	r.MaxLossPercent = p.MaxLossPercent
	return strat, r
}

// Outcome pairs one grid point with its replay result.
type Outcome struct {
	Params   ParamSet
	Backtest tradestate.Result
}

// SnapshotStore is the persistence seam the sweep driver needs beyond the
// core's Persistence collaborator: reading and writing ProgressSnapshot rows
// keyed by (instrument, period, configHash).
type SnapshotStore interface {
	SaveProgress(ctx context.Context, snap execution.ProgressSnapshot) error
	LoadProgress(ctx context.Context, instrument string, p period.Period) (execution.ProgressSnapshot, bool, error)
}

// Driver runs a sweep for one (instrument, period) stream against a fixed
// candle series, persisting progress every SnapshotInterval combinations.
type Driver struct {
	logger           zerolog.Logger
	store            SnapshotStore
	SnapshotInterval int
}

// NewDriver constructs a Driver. snapshotInterval <= 0 defaults to 25.
func NewDriver(logger zerolog.Logger, store SnapshotStore, snapshotInterval int) *Driver {
	if snapshotInterval <= 0 {
		snapshotInterval = 25
	}
	return &Driver{logger: logger, store: store, SnapshotInterval: snapshotInterval}
}

// ResumeIndex loads any prior snapshot for (instrument, period) and resolves
// the safe resume point for this grid's hash, per
// execution.ResolveResumeIndex: a changed grid hash always restarts at 0.
func (d *Driver) ResumeIndex(ctx context.Context, instrument string, p period.Period, configHash string) int {
	snap, ok, err := d.store.LoadProgress(ctx, instrument, p)
	if err != nil || !ok {
		return 0
	}
	return execution.ResolveResumeIndex(snap, configHash)
}

// Run replays every combination in combos starting at resumeFrom, persisting
// a ProgressSnapshot every SnapshotInterval combinations and once more at
// completion. It returns the outcomes for the combinations actually run
// (resumeFrom..len(combos)), in grid order.
func (d *Driver) Run(
	ctx context.Context,
	instrument string,
	p period.Period,
	series []candle.Candle,
	baseStrat strategy.Config,
	baseRisk risk.Config,
	combos []ParamSet,
	configHash string,
	resumeFrom int,
) ([]Outcome, error) {
	if resumeFrom < 0 || resumeFrom > len(combos) {
		resumeFrom = 0
	}

	startedAt := time.Now()
	outcomes := make([]Outcome, 0, len(combos)-resumeFrom)

	for i := resumeFrom; i < len(combos); i++ {
		select {
		case <-ctx.Done():
			return outcomes, d.persist(ctx, instrument, p, configHash, len(combos), i, execution.SweepInProgress, startedAt)
		default:
		}

		combo := combos[i]
		strat, rk := combo.apply(baseStrat, baseRisk)

		result, err := execution.Replay(strat, rk, series)
		if err != nil {
			return outcomes, fmt.Errorf("sweep combination %d: %w", i, err)
		}
		outcomes = append(outcomes, Outcome{Params: combo, Backtest: result})

		completed := i + 1
		if completed%d.SnapshotInterval == 0 {
			if err := d.persist(ctx, instrument, p, configHash, len(combos), completed, execution.SweepInProgress, startedAt); err != nil {
				d.logger.Warn().Err(err).Msg("sweep progress snapshot write failed, continuing")
			}
		}
	}

	if err := d.persist(ctx, instrument, p, configHash, len(combos), len(combos), execution.SweepCompleted, startedAt); err != nil {
		return outcomes, fmt.Errorf("final sweep progress snapshot: %w", err)
	}
	return outcomes, nil
}

func (d *Driver) persist(ctx context.Context, instrument string, p period.Period, configHash string, total, completed int, status execution.SweepStatus, startedAt time.Time) error {
	return d.store.SaveProgress(ctx, execution.ProgressSnapshot{
		Instrument:            instrument,
		Period:                p,
		ConfigHash:            configHash,
		TotalCombinations:     total,
		CompletedCombinations: completed,
		CurrentIndex:          completed,
		Status:                status,
		StartedAt:             startedAt,
		UpdatedAt:             time.Now(),
	})
}
