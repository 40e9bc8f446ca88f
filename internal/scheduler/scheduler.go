// Package scheduler drives one live-tick job per (instrument, period,
// strategy) stream on a cron-like cadence aligned to the period boundary
// plus a configurable offset, per §5's concurrency model. It is the only
// place the core's "advance by one candle" primitive is invoked from a
// timer instead of a replay slice.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"vegasstrategy/internal/candle"
	"vegasstrategy/internal/execution"
	"vegasstrategy/internal/period"
)

// StreamKey identifies one live-tick job.
type StreamKey struct {
	Instrument   string
	Period       period.Period
	StrategyType string
}

func (k StreamKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.Instrument, k.Period, k.StrategyType)
}

// StopPolicy controls what happens to an open position when the scheduler
// shuts down, per §5's "graceful shutdown" behavior.
type StopPolicy int

const (
	// StopLeaveOpen leaves any open position untouched and only logs; this
	// is the default operator policy.
	StopLeaveOpen StopPolicy = iota
	// StopForceClose selects the flat-book policy for operators who want no
	// open position across a deploy. Shutdown closes no positions under
	// either policy; under this one it only logs that open positions must be
	// reconciled out of band.
	StopForceClose
)

// Job binds one stream's LiveEngine to the CandleSource it pulls from.
type Job struct {
	Key    StreamKey
	Engine *execution.LiveEngine
	Source execution.CandleSource

	// Offset delays the tick past the period boundary to give the exchange
	// time to publish the closed candle (default 5s, per §5).
	Offset time.Duration
}

// dedupEntry is the duplicate-tick suppression record for one stream: if the
// scheduler fires twice for the same period boundary (clock skew, manual
// trigger), the second call is a no-op. Entries expire after 5 minutes.
type dedupEntry struct {
	lastTsMillis int64
	recordedAt   time.Time
}

const dedupTTL = 5 * time.Minute

// lockTimeout bounds how long a tick waits to acquire its stream's mutex
// before the tick is dropped (§5, "Cancellation and timeouts").
const lockTimeout = 500 * time.Millisecond

// Scheduler owns the live-tick goroutines for every registered job and the
// per-stream locks and dedup map they share.
type Scheduler struct {
	logger zerolog.Logger

	mu          sync.Mutex
	streamLocks map[StreamKey]chan struct{} // 1-buffered: acts as a try-lock-with-timeout mutex
	dedup       map[StreamKey]dedupEntry

	stopPolicy   StopPolicy
	drainTimeout time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Scheduler. drainTimeout bounds how long Shutdown waits
// for in-flight ticks before returning; stopPolicy governs open positions.
func New(logger zerolog.Logger, drainTimeout time.Duration, stopPolicy StopPolicy) *Scheduler {
	return &Scheduler{
		logger:       logger,
		streamLocks:  make(map[StreamKey]chan struct{}),
		dedup:        make(map[StreamKey]dedupEntry),
		stopPolicy:   stopPolicy,
		drainTimeout: drainTimeout,
	}
}

func (s *Scheduler) lockFor(key StreamKey) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.streamLocks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		ch <- struct{}{}
		s.streamLocks[key] = ch
	}
	return ch
}

// acquire takes the stream's lock with a timeout; it reports false if the
// timeout elapsed first, in which case the tick must be dropped, not
// queued (§5, §7 — lock timeouts are recovered locally).
func (s *Scheduler) acquire(ctx context.Context, key StreamKey) bool {
	ch := s.lockFor(key)
	select {
	case <-ch:
		return true
	case <-time.After(lockTimeout):
		return false
	case <-ctx.Done():
		return false
	}
}

func (s *Scheduler) release(key StreamKey) {
	s.mu.Lock()
	ch := s.streamLocks[key]
	s.mu.Unlock()
	ch <- struct{}{}
}

// seen implements the duplicate-tick suppression check: true if this exact
// (stream, ts) was already processed within the last 5 minutes. It only
// checks — it does not record — so a tick dropped before it runs (lock
// timeout) never poisons the dedup slot; only markProcessed does that, once
// the tick has the stream lock and is about to run.
func (s *Scheduler) seen(key StreamKey, tsMillis int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.dedup[key]
	return ok && time.Since(e.recordedAt) < dedupTTL && e.lastTsMillis == tsMillis
}

// markProcessed records that (stream, ts) has now been run through the live
// engine, regardless of whether the tick itself returned an error — the
// engine was still invoked with this candle, so a re-delivery of the same
// boundary must still be suppressed.
func (s *Scheduler) markProcessed(key StreamKey, tsMillis int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dedup[key] = dedupEntry{lastTsMillis: tsMillis, recordedAt: time.Now()}
}

// Run starts one goroutine per job, each firing on its own period boundary
// plus Offset, until ctx is canceled or Shutdown is called.
func (s *Scheduler) Run(ctx context.Context, jobs []*Job) {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for _, job := range jobs {
		job := job
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runJob(runCtx, job)
		}()
	}
}

// Shutdown cancels all job goroutines and waits up to drainTimeout for
// in-flight ticks to finish. It does not itself close positions: the
// StopPolicy is advisory information surfaced to the caller, which owns the
// order-placement collaborator the core never calls directly at shutdown.
func (s *Scheduler) Shutdown() {
	if s.cancel != nil {
		s.cancel()
	}
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info().Msg("scheduler drained cleanly")
	case <-time.After(s.drainTimeout):
		s.logger.Warn().Msg("scheduler shutdown drain timeout elapsed, jobs may still be in flight")
	}
	if s.stopPolicy == StopLeaveOpen {
		s.logger.Info().Msg("stop policy is leave-open: any open positions remain untouched")
	} else {
		s.logger.Info().Msg("stop policy is force-close: operator must reconcile open positions out of band")
	}
}

func (s *Scheduler) runJob(ctx context.Context, job *Job) {
	ms, err := period.Millis(job.Key.Period)
	if err != nil {
		s.logger.Error().Err(err).Stringer("stream", job.Key).Msg("scheduler cannot start job: unknown period")
		return
	}
	periodDur := time.Duration(ms) * time.Millisecond

	for {
		wait := nextBoundaryOffset(time.Now(), periodDur, job.Offset)
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
		s.fireTick(ctx, job)
	}
}

// nextBoundaryOffset returns how long to sleep until the next period
// boundary (aligned to UTC) plus the configured offset.
func nextBoundaryOffset(now time.Time, periodDur, offset time.Duration) time.Duration {
	now = now.UTC()
	epoch := now.Truncate(periodDur)
	next := epoch.Add(periodDur).Add(offset)
	if !next.After(now) {
		next = next.Add(periodDur)
	}
	return next.Sub(now)
}

func (s *Scheduler) fireTick(ctx context.Context, job *Job) {
	tickCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	latest, ok, err := job.Source.FetchLatest(tickCtx, job.Key.Instrument, job.Key.Period, execution.FreshnessPolicy{MaxAge: time.Minute})
	if err != nil {
		s.logger.Warn().Err(err).Stringer("stream", job.Key).Msg("candle source fetch failed, tick aborted")
		return
	}
	if !ok {
		s.logger.Warn().Stringer("stream", job.Key).Msg("candle source had nothing fresh, tick aborted")
		return
	}
	s.ProcessTick(tickCtx, job, latest)
}

// ProcessTick runs the duplicate-suppression check, the per-stream lock
// acquisition, and the live engine tick for one already-fetched candle. It
// is exported so an external scheduler trigger (manual replay of a single
// tick, or a webhook-driven push source) can reuse the exact same path a
// timer-fired tick takes.
func (s *Scheduler) ProcessTick(ctx context.Context, job *Job, c candle.Candle) {
	if s.seen(job.Key, c.TsMillis) {
		s.logger.Debug().Stringer("stream", job.Key).Int64("ts", c.TsMillis).Msg("duplicate tick suppressed")
		return
	}
	if !s.acquire(ctx, job.Key) {
		s.logger.Warn().Stringer("stream", job.Key).Msg("lock acquisition timed out, tick dropped")
		return
	}
	defer s.release(job.Key)

	// Mark the boundary processed only now that the lock is held and the
	// tick is actually going to run the engine — a lock-timeout drop above
	// must never poison this slot, since the same boundary legitimately
	// needs to be retried.
	s.markProcessed(job.Key, c.TsMillis)

	if err := job.Engine.Tick(ctx, c); err != nil {
		s.logger.Warn().Err(err).Stringer("stream", job.Key).Msg("live tick failed, state preserved from last successful tick")
		return
	}
	s.logger.Info().Stringer("stream", job.Key).Int64("ts", c.TsMillis).Msg("live tick processed")
}
