// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package poller runs the poll cycle: device status, state machine,
// catalog rebuilds and one recording sync per tick.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/ManuGH/camsync/internal/device"
	"github.com/ManuGH/camsync/internal/devstate"
	"github.com/ManuGH/camsync/internal/jobs"
	xglog "github.com/ManuGH/camsync/internal/log"
	"github.com/ManuGH/camsync/internal/metrics"
	"github.com/ManuGH/camsync/internal/recordings"
	"github.com/ManuGH/camsync/internal/telemetry"
)

// ErrTickInProgress is returned by Tick when another tick holds the gate.
var ErrTickInProgress = errors.New("poll tick already in progress")

// Defaults used when Config leaves a field zero.
const (
	DefaultPollInterval    = 5 * time.Second
	DefaultMinTickSpacing  = 2 * time.Second
	DefaultCatalogInterval = 60 * time.Second
)

// Catalog rebuild triggers.
const (
	TriggerInitial           = "initial"
	TriggerInterval          = "interval"
	TriggerRecordingFinished = "recording_finished"
	TriggerMotionCleared     = "motion_cleared"
)

// CatalogBuilder produces a fresh catalog.
type CatalogBuilder interface {
	Build(ctx context.Context) (*recordings.Catalog, error)
}

// RecordingSyncer mirrors at most one pending recording.
type RecordingSyncer interface {
	SyncOne(ctx context.Context, entries []*recordings.Entry) jobs.Result
}

// Listener is called with every published snapshot on the tick goroutine.
type Listener func(ctx context.Context, snap *Snapshot)

type Config struct {
	PollInterval    time.Duration
	MinTickSpacing  time.Duration
	CatalogInterval time.Duration
	Hysteresis      time.Duration
}

type Deps struct {
	Status  device.StatusSource
	Builder CatalogBuilder
	Syncer  RecordingSyncer
	Clock   func() time.Time
	Tracer  trace.Tracer
}

// Coordinator owns the device status, the operating-state machine and the
// catalog. Tick is safe to call from any goroutine; ticks never overlap.
type Coordinator struct {
	cfg  Config
	deps Deps

	gate    chan struct{}
	trigger chan struct{}
	limiter *rate.Limiter

	// Guarded by gate.
	machine     *devstate.Machine
	status      devstate.Status
	lastRebuild time.Time
	primed      bool

	// pendingRebuild holds a forced trigger whose rebuild has not succeeded.
	pendingRebuild string

	catalog     atomic.Pointer[recordings.Catalog]
	latest      atomic.Pointer[Snapshot]
	lastSuccess atomic.Pointer[time.Time]

	mu        sync.RWMutex
	listeners []Listener
}

func New(cfg Config, deps Deps) *Coordinator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MinTickSpacing <= 0 {
		cfg.MinTickSpacing = DefaultMinTickSpacing
	}
	if cfg.CatalogInterval <= 0 {
		cfg.CatalogInterval = DefaultCatalogInterval
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Tracer == nil {
		deps.Tracer = telemetry.Tracer("camsync/poller")
	}

	c := &Coordinator{
		cfg:     cfg,
		deps:    deps,
		gate:    make(chan struct{}, 1),
		trigger: make(chan struct{}, 1),
		limiter: rate.NewLimiter(rate.Every(cfg.MinTickSpacing), 1),
		machine: devstate.NewMachine(cfg.Hysteresis),
	}
	empty := recordings.Empty()
	c.catalog.Store(empty)
	c.latest.Store(NewSnapshot(context.Background(), devstate.StateIdle, devstate.Status{}, empty, time.Time{}))
	return c
}

// Latest returns the last published snapshot. It is never nil.
func (c *Coordinator) Latest() *Snapshot { return c.latest.Load() }

// Catalog returns the current catalog. It is never nil.
func (c *Coordinator) Catalog() *recordings.Catalog { return c.catalog.Load() }

// Busy reports whether a tick is running.
func (c *Coordinator) Busy() bool { return len(c.gate) > 0 }

// LastSuccess is the time of the last tick that polled the device
// successfully, or zero.
func (c *Coordinator) LastSuccess() time.Time {
	if t := c.lastSuccess.Load(); t != nil {
		return *t
	}
	return time.Time{}
}

// PollInterval is the effective run loop interval.
func (c *Coordinator) PollInterval() time.Duration { return c.cfg.PollInterval }

// Subscribe registers fn for every future snapshot.
func (c *Coordinator) Subscribe(fn Listener) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// Tick runs one poll cycle. A tick that arrives while another is running
// returns ErrTickInProgress; one that arrives sooner than MinTickSpacing
// after the previous tick does nothing. Both return the latest snapshot.
func (c *Coordinator) Tick(ctx context.Context) (*Snapshot, error) {
	select {
	case c.gate <- struct{}{}:
	default:
		metrics.IncPollTick("busy")
		return c.Latest(), ErrTickInProgress
	}
	defer func() { <-c.gate }()

	now := c.deps.Clock()
	if !c.limiter.AllowN(now, 1) {
		metrics.IncPollTick("throttled")
		logger := xglog.WithComponentFromContext(ctx, "poller")
		logger.Debug().
			Str(xglog.FieldEvent, "poll.tick.throttled").
			Msg("too soon to poll")
		return c.Latest(), nil
	}

	tickID := uuid.NewString()
	ctx = xglog.ContextWithTickID(ctx, tickID)
	ctx, span := c.deps.Tracer.Start(ctx, "poll.tick")
	defer span.End()

	start := time.Now()
	defer func() { metrics.ObservePollTick(time.Since(start)) }()

	logger := xglog.WithComponentFromContext(ctx, "poller")
	logger.Debug().Str(xglog.FieldEvent, "poll.tick.start").Msg("poll tick")

	wasRecording := c.status.Recording
	wasMotion := c.status.Motion.Triggered()

	kv, err := c.deps.Status.DevState(ctx)
	if err != nil {
		metrics.IncPollFailure("status")
		metrics.IncPollTick("failed")
		telemetry.RecordError(span, "status", err)
		logger.Warn().Err(err).Str(xglog.FieldEvent, "poll.status.failed").Msg("device status poll failed")
		return c.Latest(), fmt.Errorf("poll device status: %w", err)
	}

	st := devstate.ParseStatus(kv)
	prev := c.machine.State()
	state := c.machine.Next(st, now)
	c.status = st
	c.lastSuccess.Store(&now)
	if state != prev {
		logger.Info().
			Str(xglog.FieldEvent, "poll.state.changed").
			Str(xglog.FieldOldState, string(prev)).
			Str(xglog.FieldNewState, string(state)).
			Msg("operating state changed")
	}

	var trigger string
	switch {
	case wasRecording && !st.Recording:
		trigger = TriggerRecordingFinished
	case wasMotion && !st.Motion.Triggered():
		trigger = TriggerMotionCleared
	case c.pendingRebuild != "":
		trigger = c.pendingRebuild
	case c.lastRebuild.IsZero():
		trigger = TriggerInitial
	case now.Sub(c.lastRebuild) >= c.cfg.CatalogInterval:
		trigger = TriggerInterval
	}
	if trigger != "" {
		forced := trigger == TriggerRecordingFinished || trigger == TriggerMotionCleared
		switch ok := c.rebuild(ctx, logger, trigger, now); {
		case ok:
			c.pendingRebuild = ""
		case forced:
			c.pendingRebuild = trigger
		}
	}
	span.SetAttributes(telemetry.CatalogAttributes(trigger != "", trigger, c.Catalog().Len())...)

	if c.primed {
		res := c.deps.Syncer.SyncOne(ctx, c.Catalog().Entries())
		span.SetAttributes(telemetry.SyncAttributes(string(res.Outcome), res.Bytes)...)
		if res.Err != nil && res.Outcome != jobs.OutcomeNone {
			metrics.IncPollFailure("sync")
		}
	}
	c.primed = true

	snap := NewSnapshot(ctx, state, st, c.Catalog(), now)
	c.latest.Store(snap)
	c.publish(ctx, snap)

	metrics.IncPollTick("ok")
	metrics.SetLastSuccessfulPoll(now)
	metrics.SetOperatingState(string(state))
	metrics.SetAlarmLevel("motion", st.Motion.Int())
	metrics.SetAlarmLevel("sound", st.Sound.Int())
	metrics.SetAlarmLevel("io", st.IO.Int())
	span.SetAttributes(telemetry.TickAttributes(tickID, snap.DeviceID, string(state))...)

	logger.Debug().
		Str(xglog.FieldEvent, "poll.tick.done").
		Str(xglog.FieldNewState, string(state)).
		Int("captured_total", snap.CapturedTotal).
		Int("captured_today", snap.CapturedToday).
		Dur("elapsed", time.Since(start)).
		Msg("poll tick finished")
	return snap, nil
}

// rebuild swaps in a new catalog and reports success. On failure the
// previous catalog stays and the rebuild timer is left alone.
func (c *Coordinator) rebuild(ctx context.Context, logger zerolog.Logger, trigger string, now time.Time) bool {
	cat, err := c.deps.Builder.Build(ctx)
	if err != nil {
		metrics.IncCatalogRebuild("failed", trigger)
		metrics.IncPollFailure("catalog")
		logger.Warn().Err(err).
			Str(xglog.FieldEvent, "catalog.rebuild.failed").
			Str("trigger", trigger).
			Msg("catalog rebuild failed, keeping previous catalog")
		return false
	}
	c.catalog.Store(cat)
	c.lastRebuild = now
	metrics.IncCatalogRebuild("ok", trigger)
	metrics.RecordCatalog(cat.Len(), cat.CapturedToday())
	logger.Info().
		Str(xglog.FieldEvent, "catalog.rebuild.done").
		Str(xglog.FieldDeviceID, cat.DeviceID()).
		Str("trigger", trigger).
		Int("entries", cat.Len()).
		Int("captured_today", cat.CapturedToday()).
		Time("built_at", cat.BuiltAt()).
		Msg("catalog rebuilt")
	return true
}

func (c *Coordinator) publish(ctx context.Context, snap *Snapshot) {
	c.mu.RLock()
	listeners := append([]Listener(nil), c.listeners...)
	c.mu.RUnlock()
	for _, fn := range listeners {
		fn(ctx, snap)
	}
}
