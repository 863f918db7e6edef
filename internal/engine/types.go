package engine

import (
	"errors"
	"time"

	"github.com/danielpatrickdp/reflex-engine/internal/broadcast"
	"github.com/danielpatrickdp/reflex-engine/internal/eval"
	"github.com/danielpatrickdp/reflex-engine/internal/mode"
	"github.com/danielpatrickdp/reflex-engine/internal/stimulus"
	"github.com/danielpatrickdp/reflex-engine/internal/telemetry"
	"github.com/danielpatrickdp/reflex-engine/internal/update"
	"go.uber.org/zap"
)

// #region errors
var (
	// ErrEngineNotStarted is returned by ingress and query calls before Start.
	ErrEngineNotStarted = errors.New("engine not started")

	// ErrEngineStopped is returned by every call after Stop.
	ErrEngineStopped = errors.New("engine stopped")

	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("engine already started")

	// ErrNoProfile is returned by Start when no valid profile has been loaded.
	ErrNoProfile = errors.New("no active profile")

	// ErrUnknownKind is returned by SubmitStimulus for a kind outside the enum.
	ErrUnknownKind = errors.New("unknown stimulus kind")
)

// #endregion errors

// #region config
// Config holds the engine's tick rate, buffer sizes and the tuning of every stage.
type Config struct {
	TickHz          int
	QueueCapacity   int
	SubscriberDepth int // mailbox depth for Subscribe when the caller passes 0
	Update          update.Config
	Mode            mode.Config
	Eval            eval.EvalConfig
}

// DefaultConfig returns the 20 Hz configuration.
func DefaultConfig() Config {
	return Config{
		TickHz:          20,
		QueueCapacity:   stimulus.DefaultCapacity,
		SubscriberDepth: broadcast.DefaultDepth,
		Update:          update.DefaultConfig(),
		Mode:            mode.DefaultConfig(),
		Eval:            eval.DefaultEvalConfig(),
	}
}

// TickPeriod is the wall time between ticks.
func (c Config) TickPeriod() time.Duration {
	if c.TickHz <= 0 {
		return 50 * time.Millisecond
	}
	return time.Second / time.Duration(c.TickHz)
}

// normalized propagates the tick period to the stages that scale by it.
func (c Config) normalized() Config {
	period := c.TickPeriod()
	c.Update.TickPeriod = period
	c.Mode.TickPeriod = period
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = stimulus.DefaultCapacity
	}
	if c.SubscriberDepth <= 0 {
		c.SubscriberDepth = broadcast.DefaultDepth
	}
	if c.Update.KindWeights == nil {
		c.Update.KindWeights = update.DefaultKindWeights()
	}
	return c
}

// #endregion config

// #region stats
// Stats summarizes what the engine has done since Start.
type Stats struct {
	EngineID        string          `json:"engine_id"`
	Ticks           uint64          `json:"ticks"`
	StimuliApplied  uint64          `json:"stimuli_applied"`
	StimuliDropped  uint64          `json:"stimuli_dropped"`
	OutOfRange      uint64          `json:"out_of_range"`
	UnknownKind     uint64          `json:"unknown_kind"`
	FailSafes       uint64          `json:"fail_safes"`
	Startles        uint64          `json:"startles"`
	ModeTransitions uint64          `json:"mode_transitions"`
	QueueDepth      int             `json:"queue_depth"`
	Broadcast       broadcast.Stats `json:"broadcast"`
}

// #endregion stats

// #region options
// Option customizes an Engine.
type Option func(*Engine)

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithLogger sets the structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics sets the collector set; by default a private registry is used.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithTicks drives the loop from ch instead of a wall-clock ticker. Each
// received value runs one tick; its time becomes the tick's timestamp.
func WithTicks(ch <-chan time.Time) Option {
	return func(e *Engine) { e.ticks = ch }
}

// WithID fixes the engine id instead of generating one.
func WithID(id string) Option {
	return func(e *Engine) { e.id = id }
}

// #endregion options
