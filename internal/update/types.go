package update

import (
	"math"
	"time"

	"github.com/danielpatrickdp/reflex-engine/internal/profile"
	"github.com/danielpatrickdp/reflex-engine/internal/state"
	"github.com/danielpatrickdp/reflex-engine/internal/stimulus"
)

// #region input
// Input carries everything one tick consumes besides the previous state.
type Input struct {
	Profile profile.Profile // active profile; reactivity and baselines come from here
	Stimuli []stimulus.Stimulus
	Now     time.Time
}

// #endregion input

// #region kind-weight
// KindWeight scales how a stimulus kind feeds each scalar.
type KindWeight struct {
	Tension   float64 `yaml:"tension"`
	Energy    float64 `yaml:"energy"`
	Curiosity float64 `yaml:"curiosity"`
}

// DefaultKindWeights returns the per-kind weights. Proximity is the strongest startle cue.
func DefaultKindWeights() map[stimulus.Kind]KindWeight {
	return map[stimulus.Kind]KindWeight{
		stimulus.Proximity: {Tension: 1.0, Energy: 0.1, Curiosity: 0.4},
		stimulus.Touch:     {Tension: 0.9, Energy: 0.2, Curiosity: 0.3},
		stimulus.Sound:     {Tension: 0.8, Energy: 0.1, Curiosity: 0.5},
		stimulus.Voice:     {Tension: 0.6, Energy: 0.15, Curiosity: 0.6},
	}
}

// #endregion kind-weight

// #region update-config
// Config holds the tuning constants of the tick math.
type Config struct {
	TickPeriod        time.Duration
	DecayPerSecond    float64 // k = DecayPerSecond * tick period
	RecoveryFloor     float64 // lowest recovery_speed used for decay, keeps recovery finite
	CuriosityRest     float64 // curiosity rests at CuriosityRest * curiosity_drive
	CoherenceCoupling float64 // coherence moves against tension by this share
	SmoothnessBudget  float64 // max change per SmoothnessWindow
	SmoothnessWindow  time.Duration
	StartleThreshold  float64 // strict: tension must exceed it for a startle
	TransitionWindow  time.Duration
	TransitionEasing  state.Easing
	KindWeights       map[stimulus.Kind]KindWeight
}

// DefaultConfig returns the 20 Hz defaults.
func DefaultConfig() Config {
	return Config{
		TickPeriod:        50 * time.Millisecond,
		DecayPerSecond:    2.0,
		RecoveryFloor:     0.1,
		CuriosityRest:     0.2,
		CoherenceCoupling: 0.5,
		SmoothnessBudget:  0.15,
		SmoothnessWindow:  300 * time.Millisecond,
		StartleThreshold:  0.7,
		TransitionWindow:  2500 * time.Millisecond,
		TransitionEasing:  state.Linear,
		KindWeights:       DefaultKindWeights(),
	}
}

// MaxDeltaPerTick is the largest change any scalar may make in one tick
// outside of a startle (0.025 at 20 Hz).
func (c Config) MaxDeltaPerTick() float64 {
	if c.SmoothnessWindow <= 0 {
		return c.SmoothnessBudget
	}
	return c.SmoothnessBudget * float64(c.TickPeriod) / float64(c.SmoothnessWindow)
}

// DecayFactor is the per-tick fraction of the distance to baseline removed by decay.
func (c Config) DecayFactor(recoverySpeed float64) float64 {
	k := c.DecayPerSecond * c.TickPeriod.Seconds()
	return math.Min(1, k*math.Max(recoverySpeed, c.RecoveryFloor))
}

// TransitionTicks converts the transition window into whole ticks (at least one).
func (c Config) TransitionTicks() int {
	if c.TickPeriod <= 0 {
		return 1
	}
	n := int(math.Ceil(float64(c.TransitionWindow) / float64(c.TickPeriod)))
	if n < 1 {
		n = 1
	}
	return n
}

// #endregion update-config

// #region metrics
// Metrics captures telemetry from one tick.
type Metrics struct {
	StimuliApplied int
	OutOfRange     int
	UnknownKind    int
	Clipped        []state.Scalar // scalars held back by the smoothness bound
	MaxDelta       float64        // largest |change| of any scalar this tick
	PeakTension    float64        // highest pre-clip tension reached while folding stimuli
	UpdateTime     time.Duration
}

// #endregion metrics

// #region update-result
// Result bundles everything returned by Step.
type Result struct {
	State      state.NervousState
	Startled   bool // a stimulus pushed tension above the startle threshold this tick
	Stimulated bool // at least one stimulus with non-zero intensity was applied

	// Completed is set on the tick a transition window elapses; the caller commits it.
	Completed *profile.Profile
	Metrics   Metrics
}

// #endregion update-result
