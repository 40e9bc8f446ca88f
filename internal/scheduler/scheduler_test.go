package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"vegasstrategy/internal/candle"
	"vegasstrategy/internal/execution"
	"vegasstrategy/internal/period"
	"vegasstrategy/internal/risk"
	"vegasstrategy/internal/strategy"
)

type stubOrderAdapter struct{}

func (stubOrderAdapter) ReadyToOrder(ctx context.Context, req execution.OrderRequest) error {
	return nil
}

func newTestJob(key StreamKey) *Job {
	engine := execution.NewEngine(strategy.Config{MinKLineNum: 1}, risk.DefaultConfig())
	live := execution.NewLiveEngine(engine, key.Instrument, key.Period, key.StrategyType, "test", stubOrderAdapter{})
	return &Job{Key: key, Engine: live}
}

func TestNextBoundaryOffsetAlignsToPeriod(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 40, 0, time.UTC)
	wait := nextBoundaryOffset(now, time.Minute, 5*time.Second)
	want := 25 * time.Second // next :01:00 boundary + 5s offset, minus the 40s already elapsed
	if wait != want {
		t.Fatalf("expected wait %v, got %v", want, wait)
	}
}

func TestProcessTickSuppressesDuplicateTimestamp(t *testing.T) {
	s := New(zerolog.Nop(), time.Second, StopLeaveOpen)
	job := newTestJob(StreamKey{Instrument: "BTCUSDT", Period: period.OneMinute, StrategyType: "vegas"})
	c := candle.Candle{TsMillis: 1000, Open: 1, High: 1, Low: 1, Close: 1, Confirm: true}

	s.ProcessTick(context.Background(), job, c)
	if !s.seen(job.Key, c.TsMillis) {
		t.Fatal("expected the tick's timestamp to be recorded as seen after processing")
	}
}

func TestProcessTickDoesNotMarkSeenOnLockTimeout(t *testing.T) {
	s := New(zerolog.Nop(), time.Second, StopLeaveOpen)
	key := StreamKey{Instrument: "BTCUSDT", Period: period.OneMinute, StrategyType: "vegas"}
	job := newTestJob(key)
	c := candle.Candle{TsMillis: 1000, Open: 1, High: 1, Low: 1, Close: 1, Confirm: true}

	if !s.acquire(context.Background(), key) {
		t.Fatal("expected to take the lock")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	s.ProcessTick(ctx, job, c)
	s.release(key)

	if s.seen(key, c.TsMillis) {
		t.Fatal("a tick dropped on a lock-acquisition timeout must not poison the dedup slot")
	}
}

func TestAcquireTimesOutWhenLockHeld(t *testing.T) {
	s := New(zerolog.Nop(), time.Second, StopLeaveOpen)
	key := StreamKey{Instrument: "BTCUSDT", Period: period.OneMinute, StrategyType: "vegas"}

	if !s.acquire(context.Background(), key) {
		t.Fatal("expected the first acquire to succeed immediately")
	}
	defer s.release(key)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if s.acquire(ctx, key) {
		t.Fatal("expected a second acquire to time out while the lock is held")
	}
}

func TestShutdownDrainsBeforeTimeout(t *testing.T) {
	s := New(zerolog.Nop(), time.Second, StopForceClose)
	job := newTestJob(StreamKey{Instrument: "ETHUSDT", Period: period.OneMinute, StrategyType: "vegas"})
	job.Offset = 0

	s.Run(context.Background(), []*Job{job})
	time.Sleep(10 * time.Millisecond)
	s.Shutdown()
}
