// Package syncer keeps recently used map regions fresh in the background.
// The engine cycles idle → scheduled → syncing → (idle | retry-wait), with
// paused reachable from anywhere; online/visibility transitions trigger an
// immediate short-delay sync.
package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/hexframe/mapcache/cache"
)

// ErrSyncInFlight is returned by PerformSync when a cycle is already
// running. ForceSync bypasses the guard instead of queuing.
var ErrSyncInFlight = errors.New("sync already in progress")

// Phase is the engine's scheduling state, exposed for tests and diagnostics.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseScheduled Phase = "scheduled"
	PhaseSyncing   Phase = "syncing"
	PhaseRetryWait Phase = "retry-wait"
	PhasePaused    Phase = "paused"
)

// Engine periodically re-fetches the current center region plus a bounded
// set of recently loaded, still-fresh regions.
type Engine struct {
	cfg     Config
	store   *cache.Store
	regions cache.RegionService

	mu         sync.Mutex
	phase      Phase
	timer      *time.Timer
	started    bool
	paused     bool
	syncing    bool
	online     bool
	errorCount int
	bo         *backoff.ExponentialBackOff
}

// New builds an engine. It does nothing until Start.
func New(cfg Config, store *cache.Store, regions cache.RegionService) *Engine {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.RetryDelay
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxInterval = cfg.Interval
	bo.MaxElapsedTime = 0
	bo.Reset()
	return &Engine{
		cfg:     cfg,
		store:   store,
		regions: regions,
		phase:   PhaseIdle,
		online:  true,
		bo:      bo,
	}
}

// Start schedules the first sync one interval out.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return
	}
	e.started = true
	e.paused = false
	e.scheduleLocked(e.cfg.Interval, PhaseScheduled)
	log.Info().Dur("interval", e.cfg.Interval).Msg("background sync started")
}

// Stop cancels all pending work and forgets the started state.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelTimerLocked()
	e.started = false
	e.paused = false
	e.phase = PhaseIdle
}

// Pause cancels pending timers without altering the error counter. The
// engine stays started so Resume can pick up where it left off.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started {
		return
	}
	e.cancelTimerLocked()
	e.paused = true
	e.phase = PhasePaused
}

// Resume reschedules at the normal interval if the engine was started.
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started || !e.paused {
		return
	}
	e.paused = false
	e.scheduleLocked(e.cfg.Interval, PhaseScheduled)
}

// NotifyOnline records connectivity changes. Coming online while active
// triggers a short-delay sync.
func (e *Engine) NotifyOnline(online bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	wasOnline := e.online
	e.online = online
	if online && !wasOnline && e.started && !e.paused {
		e.scheduleLocked(e.cfg.OnlineDelay, PhaseScheduled)
	}
}

// NotifyVisible records visibility changes. Becoming visible while active
// triggers a short-delay sync.
func (e *Engine) NotifyVisible(visible bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if visible && e.started && !e.paused {
		e.scheduleLocked(e.cfg.OnlineDelay, PhaseScheduled)
	}
}

// CurrentPhase reports the current scheduling phase.
func (e *Engine) CurrentPhase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// ErrorCount reports consecutive failed cycles.
func (e *Engine) ErrorCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.errorCount
}

// PerformSync runs one cycle now. It fails fast with ErrSyncInFlight if a
// cycle is already running.
func (e *Engine) PerformSync(ctx context.Context) error {
	e.mu.Lock()
	if e.syncing {
		e.mu.Unlock()
		return ErrSyncInFlight
	}
	e.syncing = true
	e.phase = PhaseSyncing
	e.mu.Unlock()

	return e.finishSync(e.syncRegions(ctx))
}

// ForceSync runs one cycle now, bypassing the in-flight guard.
func (e *Engine) ForceSync(ctx context.Context) error {
	e.mu.Lock()
	e.syncing = true
	e.phase = PhaseSyncing
	e.mu.Unlock()

	return e.finishSync(e.syncRegions(ctx))
}

// syncRegions re-loads the current center plus the most recently loaded,
// still-fresh regions, bounded by MaxRegions to avoid overload.
func (e *Engine) syncRegions(ctx context.Context) error {
	state := e.store.State()
	depth := state.CacheConfig.MaxDepth

	targets := make([]string, 0, e.cfg.MaxRegions+1)
	if state.CurrentCenter != "" {
		targets = append(targets, state.CurrentCenter)
	}
	for _, key := range cache.RecentRegions(state, e.cfg.MaxRegions) {
		if key != state.CurrentCenter {
			targets = append(targets, key)
		}
	}

	for _, centerID := range targets {
		items, err := e.regions.FetchRegion(ctx, centerID, depth)
		if err != nil {
			syncCyclesTotal.WithLabelValues("failure").Inc()
			return err
		}
		e.store.Dispatch(cache.LoadRegion{Items: items, CenterCoordID: centerID, MaxDepth: depth})
	}
	syncCyclesTotal.WithLabelValues("success").Inc()
	return nil
}

// finishSync updates counters and reschedules according to the outcome.
func (e *Engine) finishSync(err error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.syncing = false

	if err == nil {
		e.errorCount = 0
		e.bo.Reset()
		e.phase = PhaseIdle
		if e.started && !e.paused {
			e.scheduleLocked(e.cfg.Interval, PhaseScheduled)
		}
		return nil
	}

	e.errorCount++
	syncFailuresTotal.Inc()
	if !e.started || e.paused {
		e.phase = PhaseIdle
		return err
	}
	if e.errorCount <= e.cfg.MaxRetries {
		delay := e.bo.NextBackOff()
		log.Warn().Err(err).Int("attempt", e.errorCount).Dur("retry_in", delay).Msg("sync failed, retrying")
		e.scheduleLocked(delay, PhaseRetryWait)
	} else {
		// Retries exhausted: degrade to normal-interval scheduling rather
		// than stopping forever.
		log.Warn().Err(err).Int("failures", e.errorCount).Msg("sync retries exhausted, falling back to normal interval")
		e.bo.Reset()
		e.scheduleLocked(e.cfg.Interval, PhaseScheduled)
	}
	return err
}

func (e *Engine) scheduleLocked(d time.Duration, phase Phase) {
	e.cancelTimerLocked()
	e.phase = phase
	e.timer = time.AfterFunc(d, func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.CycleTimeout)
		defer cancel()
		// A cycle already in flight just skips this tick.
		_ = e.PerformSync(ctx)
	})
}

func (e *Engine) cancelTimerLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}
