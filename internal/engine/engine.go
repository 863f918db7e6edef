// Package engine runs the reflex tick loop: it drains stimuli, advances the
// affective state, evaluates the behavior mode and publishes one snapshot per tick.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danielpatrickdp/reflex-engine/internal/broadcast"
	"github.com/danielpatrickdp/reflex-engine/internal/profile"
	"github.com/danielpatrickdp/reflex-engine/internal/state"
	"github.com/danielpatrickdp/reflex-engine/internal/stimulus"
	"github.com/danielpatrickdp/reflex-engine/internal/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var errStopRequested = errors.New("stop requested")

const (
	statusNew int32 = iota
	statusRunning
	statusStopped
)

// #region engine
// Engine owns one robot's nervous state. Only the loop goroutine mutates it;
// everything else talks to the engine through the queue, the profile store and
// the broadcaster.
type Engine struct {
	id       string
	cfg      Config
	pipeline Pipeline
	profiles *profile.Store
	queue    *stimulus.Queue
	bus      *broadcast.Broadcaster
	logger   *zap.Logger
	metrics  *telemetry.Metrics
	ticks    <-chan time.Time

	lifecycle sync.Mutex
	status    atomic.Int32
	cancel    context.CancelCauseFunc
	done      chan struct{}

	st      state.NervousState
	current atomic.Pointer[state.Snapshot]

	ticked          atomic.Uint64
	applied         atomic.Uint64
	dropped         atomic.Uint64
	outOfRange      atomic.Uint64
	unknownKind     atomic.Uint64
	failSafes       atomic.Uint64
	startles        atomic.Uint64
	modeTransitions atomic.Uint64

	overflowLog rate.Sometimes
	rangeLog    rate.Sometimes
}

// New creates an engine around profiles. A nil store starts empty; a profile
// must then be set before Start.
func New(profiles *profile.Store, opts ...Option) (*Engine, error) {
	if profiles == nil {
		profiles = &profile.Store{}
	}
	e := &Engine{
		cfg:         DefaultConfig(),
		profiles:    profiles,
		logger:      zap.NewNop(),
		overflowLog: rate.Sometimes{First: 1, Interval: 5 * time.Second},
		rangeLog:    rate.Sometimes{First: 1, Interval: 5 * time.Second},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cfg.TickHz < 10 || e.cfg.TickHz > 30 {
		return nil, fmt.Errorf("tick rate %d Hz outside 10-30", e.cfg.TickHz)
	}
	if err := e.cfg.Mode.Validate(); err != nil {
		return nil, fmt.Errorf("mode config: %w", err)
	}
	e.cfg = e.cfg.normalized()
	if e.id == "" {
		e.id = uuid.NewString()
	}
	if e.metrics == nil {
		e.metrics = telemetry.New(nil)
	}
	e.pipeline = NewPipeline(e.cfg)
	e.queue = stimulus.NewQueue(e.cfg.QueueCapacity)
	e.bus = broadcast.New(e.logger.Named("broadcast"))
	e.logger = e.logger.With(zap.String("engine_id", e.id))
	return e, nil
}

// ID returns the engine instance id.
func (e *Engine) ID() string { return e.id }

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// Profiles exposes the profile store.
func (e *Engine) Profiles() *profile.Store { return e.profiles }

// #endregion engine

// #region lifecycle
// Start initializes the state from the active profile and launches the tick loop.
// Cancelling ctx stops the engine exactly like Stop.
func (e *Engine) Start(ctx context.Context) error {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	switch e.status.Load() {
	case statusRunning:
		return ErrAlreadyStarted
	case statusStopped:
		return ErrEngineStopped
	}
	if !e.profiles.Loaded() {
		return ErrNoProfile
	}

	now := time.Now()
	active := e.profiles.Active()
	e.st = InitialState(active, e.pipeline.Update, now)
	snap := snapshotOf(e.id, now, e.st, active, false, 0, nil)
	e.current.Store(&snap)

	ticks := e.ticks
	var ticker *time.Ticker
	if ticks == nil {
		ticker = time.NewTicker(e.cfg.TickPeriod())
		ticks = ticker.C
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})
	e.status.Store(statusRunning)

	go e.run(runCtx, ticks, ticker)

	e.logger.Info("engine started",
		zap.String("profile", active.Name),
		zap.Int("tick_hz", e.cfg.TickHz),
		zap.Float64("max_delta", e.pipeline.Update.MaxDeltaPerTick()))
	return nil
}

// Stop finishes the tick in progress, stops the loop and closes every
// subscription. It is idempotent.
func (e *Engine) Stop() error {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	if e.done == nil {
		if e.status.Swap(statusStopped) != statusStopped {
			return e.shutdown("stop before start")
		}
		return nil
	}
	e.cancel(errStopRequested)
	<-e.done
	return nil
}

// shutdown marks the engine stopped and closes the broadcaster, ending every
// subscription. Callers run it once: the loop on exit, or Stop if never started.
func (e *Engine) shutdown(cause string) error {
	e.status.Store(statusStopped)
	err := e.bus.Close()
	e.logger.Info("engine stopped", zap.String("cause", cause), zap.Uint64("ticks", e.ticked.Load()))
	return err
}

func (e *Engine) run(ctx context.Context, ticks <-chan time.Time, ticker *time.Ticker) {
	var cause string
	defer func() {
		_ = e.shutdown(cause)
		close(e.done)
	}()
	if ticker != nil {
		defer ticker.Stop()
	}

	buf := make([]stimulus.Stimulus, 0, e.cfg.QueueCapacity)
	for {
		select {
		case <-ctx.Done():
			cause = context.Cause(ctx).Error()
			return
		case now, ok := <-ticks:
			if !ok {
				cause = "tick source closed"
				return
			}
			buf = e.tick(now, buf[:0])
		}
	}
}

// #endregion lifecycle

// #region tick
func (e *Engine) tick(now time.Time, buf []stimulus.Stimulus) []stimulus.Stimulus {
	start := time.Now()

	buf = e.queue.Drain(buf)
	frame := Frame{Active: e.profiles.Active(), Stimuli: buf, Now: now}
	if p, ok := e.profiles.TakePending(); ok {
		frame.Pending = &p
	}

	out := e.pipeline.Advance(e.st, frame)
	e.st = out.State
	if out.Committed {
		e.profiles.Commit(out.Active)
	}

	snap := out.Snapshot(e.id)
	e.current.Store(&snap)
	e.bus.Publish(snap)

	e.observe(out, time.Since(start))
	return buf
}

func (e *Engine) observe(out Outcome, d time.Duration) {
	m := out.Update.Metrics
	e.ticked.Add(1)
	e.applied.Add(uint64(m.StimuliApplied))
	e.outOfRange.Add(uint64(m.OutOfRange))
	e.unknownKind.Add(uint64(m.UnknownKind))

	e.metrics.ObserveTick(d)
	e.metrics.StimuliApplied.Add(float64(m.StimuliApplied))
	e.metrics.OutOfRange.Add(float64(m.OutOfRange))
	e.metrics.UnknownKind.Add(float64(m.UnknownKind))
	e.metrics.ObserveScalars(out.State.Tension, out.State.Energy, out.State.Coherence, out.State.Curiosity)
	e.metrics.ObserveMode(string(out.State.Mode), modeNames)

	if m.OutOfRange > 0 {
		e.rangeLog.Do(func() {
			e.logger.Warn("stimulus out of range, clamped", zap.Int("count", m.OutOfRange))
		})
	}
	if out.Update.Startled {
		e.startles.Add(1)
		e.metrics.Startles.Inc()
	}

	for _, ev := range out.Events {
		switch ev.Kind {
		case state.EventModeChanged:
			e.modeTransitions.Add(1)
			e.metrics.ModeTransitions.WithLabelValues(ev.From, ev.To, ev.Rule).Inc()
			e.logger.Info("mode transition",
				zap.Uint64("tick", out.State.Tick),
				zap.String("from", ev.From),
				zap.String("to", ev.To),
				zap.String("rule", ev.Rule),
				zap.String("reason", ev.Reason))
		case state.EventFailSafe:
			e.failSafes.Add(1)
			e.metrics.FailSafes.Inc()
			e.logger.Error("invariant violated, forced protect",
				zap.Uint64("tick", out.State.Tick),
				zap.String("reason", ev.Reason))
		default:
			e.metrics.ProfileSwitches.WithLabelValues(string(ev.Kind)).Inc()
			e.logger.Info("profile "+string(ev.Kind),
				zap.String("from", ev.From),
				zap.String("to", ev.To),
				zap.Float64("progress", ev.Progress))
		}
	}

	if d > e.cfg.TickPeriod() {
		e.logger.Warn("tick overran its period", zap.Duration("took", d))
	}
}

var modeNames = func() []string {
	out := make([]string, len(state.Modes))
	for i, m := range state.Modes {
		out[i] = string(m)
	}
	return out
}()

// #endregion tick

// #region api
// SubmitStimulus enqueues s for the next tick. Intensity and valence are
// clamped there, not here; only an unknown kind is rejected.
func (e *Engine) SubmitStimulus(s stimulus.Stimulus) error {
	if err := e.live(); err != nil {
		return err
	}
	if !s.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, string(s.Kind))
	}
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now()
	}
	if e.queue.Push(s) {
		e.dropped.Add(1)
		e.metrics.StimuliDropped.Inc()
		e.overflowLog.Do(func() {
			e.logger.Warn("stimulus queue full, dropped oldest", zap.Int("capacity", e.cfg.QueueCapacity))
		})
	}
	return nil
}

// SetProfile validates p and schedules a smooth switch to it. Before Start the
// first profile becomes active directly.
func (e *Engine) SetProfile(p profile.Profile) error {
	if e.status.Load() == statusStopped {
		return ErrEngineStopped
	}
	if err := e.profiles.SetActive(p); err != nil {
		var verr *profile.ValidationError
		if errors.As(err, &verr) {
			e.logger.Warn("profile rejected", zap.String("profile", p.Name), zap.Error(err))
		}
		return err
	}
	return nil
}

// Subscribe registers a push consumer with the configured mailbox depth.
func (e *Engine) Subscribe(name string, c broadcast.Consumer) (*broadcast.Subscription, error) {
	return e.SubscribeDepth(name, c, e.cfg.SubscriberDepth)
}

// SubscribeDepth registers a push consumer with an explicit mailbox depth.
func (e *Engine) SubscribeDepth(name string, c broadcast.Consumer, depth int) (*broadcast.Subscription, error) {
	if e.status.Load() == statusStopped {
		return nil, ErrEngineStopped
	}
	return e.bus.Subscribe(name, c, depth)
}

// Watch registers a pull subscription drained with Subscription.Next.
func (e *Engine) Watch(name string, depth int) (*broadcast.Subscription, error) {
	if e.status.Load() == statusStopped {
		return nil, ErrEngineStopped
	}
	return e.bus.Pull(name, depth)
}

// Unsubscribe removes a consumer.
func (e *Engine) Unsubscribe(name string) error {
	if e.status.Load() == statusStopped {
		return ErrEngineStopped
	}
	return e.bus.Unsubscribe(name)
}

// CurrentSnapshot returns the latest published snapshot without blocking.
func (e *Engine) CurrentSnapshot() (state.Snapshot, error) {
	if err := e.live(); err != nil {
		return state.Snapshot{}, err
	}
	return *e.current.Load(), nil
}

// Stats returns the engine counters.
func (e *Engine) Stats() Stats {
	return Stats{
		EngineID:        e.id,
		Ticks:           e.ticked.Load(),
		StimuliApplied:  e.applied.Load(),
		StimuliDropped:  e.dropped.Load(),
		OutOfRange:      e.outOfRange.Load(),
		UnknownKind:     e.unknownKind.Load(),
		FailSafes:       e.failSafes.Load(),
		Startles:        e.startles.Load(),
		ModeTransitions: e.modeTransitions.Load(),
		QueueDepth:      e.queue.Len(),
		Broadcast:       e.bus.Stats(),
	}
}

func (e *Engine) live() error {
	switch e.status.Load() {
	case statusNew:
		return ErrEngineNotStarted
	case statusStopped:
		return ErrEngineStopped
	}
	return nil
}

// #endregion api
