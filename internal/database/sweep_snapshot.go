package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"vegasstrategy/internal/execution"
	"vegasstrategy/internal/period"
)

// sweepSourcePrefix namespaces ProgressSnapshot rows within system_events so
// the sweep driver doesn't need its own table.
const sweepSourcePrefix = "sweep"

// SweepSnapshotStore adapts Repository to sweep.SnapshotStore, persisting
// each snapshot as a system_events row keyed by (instrument, period) in
// Source, the same table the admin API already surfaces for operational
// events.
type SweepSnapshotStore struct {
	repo *Repository
}

// NewSweepSnapshotStore wraps a Repository as the sweep driver's
// SnapshotStore collaborator.
func NewSweepSnapshotStore(repo *Repository) *SweepSnapshotStore {
	return &SweepSnapshotStore{repo: repo}
}

func sweepSource(instrument string, p period.Period) string {
	return fmt.Sprintf("%s:%s:%s", sweepSourcePrefix, instrument, p)
}

type sweepSnapshotRow struct {
	ConfigHash            string              `json:"config_hash"`
	TotalCombinations     int                 `json:"total_combinations"`
	CompletedCombinations int                 `json:"completed_combinations"`
	CurrentIndex          int                 `json:"current_index"`
	Status                execution.SweepStatus `json:"status"`
	StartedAt             time.Time           `json:"started_at"`
}

// SaveProgress appends a new progress row; the latest one for a stream wins
// on read, matching the append-only append-then-read-latest policy the rest
// of the engine's audit tables use.
func (s *SweepSnapshotStore) SaveProgress(ctx context.Context, snap execution.ProgressSnapshot) error {
	source := sweepSource(snap.Instrument, snap.Period)
	row := sweepSnapshotRow{
		ConfigHash:            snap.ConfigHash,
		TotalCombinations:     snap.TotalCombinations,
		CompletedCombinations: snap.CompletedCombinations,
		CurrentIndex:          snap.CurrentIndex,
		Status:                snap.Status,
		StartedAt:             snap.StartedAt,
	}
	data := map[string]interface{}{}
	b, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("marshal sweep snapshot: %w", err)
	}
	if err := json.Unmarshal(b, &data); err != nil {
		return fmt.Errorf("remarshal sweep snapshot: %w", err)
	}

	msg := "sweep progress updated"
	event := &SystemEvent{
		EventType: "sweep_progress",
		Source:    &source,
		Message:   &msg,
		Data:      data,
		Timestamp: snap.UpdatedAt,
	}
	return s.repo.CreateSystemEvent(ctx, event)
}

// LoadProgress returns the most recent snapshot for (instrument, period), if
// any. A miss is not an error: the sweep driver treats it as "start fresh."
func (s *SweepSnapshotStore) LoadProgress(ctx context.Context, instrument string, p period.Period) (execution.ProgressSnapshot, bool, error) {
	source := sweepSource(instrument, p)

	// system_events has no per-source index in this schema; recent events
	// are scanned newest-first and the first matching source wins. A
	// deployment running many sweeps should widen this limit.
	events, err := s.repo.GetRecentSystemEvents(ctx, 500)
	if err != nil {
		return execution.ProgressSnapshot{}, false, fmt.Errorf("load sweep progress: %w", err)
	}
	for _, ev := range events {
		if ev.Source == nil || *ev.Source != source {
			continue
		}
		b, err := json.Marshal(ev.Data)
		if err != nil {
			return execution.ProgressSnapshot{}, false, fmt.Errorf("remarshal sweep row: %w", err)
		}
		var row sweepSnapshotRow
		if err := json.Unmarshal(b, &row); err != nil {
			return execution.ProgressSnapshot{}, false, fmt.Errorf("decode sweep row: %w", err)
		}
		return execution.ProgressSnapshot{
			Instrument:            instrument,
			Period:                p,
			ConfigHash:            row.ConfigHash,
			TotalCombinations:     row.TotalCombinations,
			CompletedCombinations: row.CompletedCombinations,
			CurrentIndex:          row.CurrentIndex,
			Status:                row.Status,
			StartedAt:             row.StartedAt,
			UpdatedAt:             ev.Timestamp,
		}, true, nil
	}
	return execution.ProgressSnapshot{}, false, nil
}
