package state

import (
	"time"

	"github.com/danielpatrickdp/reflex-engine/internal/profile"
)

// #region mode
// Mode is the discrete behavior state.
type Mode string

const (
	Calm    Mode = "calm"
	Active  Mode = "active"
	Spike   Mode = "spike"
	Protect Mode = "protect"
)

// Modes lists every valid mode.
var Modes = []Mode{Calm, Active, Spike, Protect}

// Valid reports whether m is one of the four defined modes.
func (m Mode) Valid() bool {
	switch m {
	case Calm, Active, Spike, Protect:
		return true
	}
	return false
}

// #endregion mode

// #region scalars
// Scalar indexes one of the four affective scalars.
type Scalar int

const (
	Tension Scalar = iota
	Energy
	Coherence
	Curiosity
	NumScalars
)

var scalarNames = [NumScalars]string{"tension", "energy", "coherence", "curiosity"}

func (s Scalar) String() string {
	if s < 0 || s >= NumScalars {
		return "unknown"
	}
	return scalarNames[s]
}

// Scalars are the four continuous affective values, each in [0,1].
type Scalars struct {
	Tension   float64 `json:"tension"`
	Energy    float64 `json:"energy"`
	Coherence float64 `json:"coherence"`
	Curiosity float64 `json:"curiosity"`
}

// At returns the value of scalar i.
func (s Scalars) At(i Scalar) float64 {
	switch i {
	case Tension:
		return s.Tension
	case Energy:
		return s.Energy
	case Coherence:
		return s.Coherence
	case Curiosity:
		return s.Curiosity
	}
	return 0
}

// Set assigns scalar i.
func (s *Scalars) Set(i Scalar, v float64) {
	switch i {
	case Tension:
		s.Tension = v
	case Energy:
		s.Energy = v
	case Coherence:
		s.Coherence = v
	case Curiosity:
		s.Curiosity = v
	}
}

// FromBaselines returns scalars resting at the profile's baselines, with curiosity at rest.
func FromBaselines(b profile.Baselines, curiosity float64) Scalars {
	return Scalars{Tension: b.Tension, Energy: b.Energy, Coherence: b.Coherence, Curiosity: curiosity}
}

// #endregion scalars

// #region transition
// Transition is an in-flight live personality switch.
type Transition struct {
	From           profile.Profile
	To             profile.Profile
	TotalTicks     int
	RemainingTicks int
	Easing         Easing
}

// Progress returns the completed fraction of the window in [0,1].
func (t *Transition) Progress() float64 {
	if t == nil || t.TotalTicks <= 0 {
		return 1
	}
	return 1 - float64(t.RemainingTicks)/float64(t.TotalTicks)
}

// #endregion transition

// #region nervous-state
// NervousState is the engine-owned runtime state. Only the tick loop mutates it.
type NervousState struct {
	Scalars
	Mode            Mode
	ModeEnteredTick uint64
	ModeEnteredAt   time.Time
	Tick            uint64
	Transition      *Transition

	// Carry holds the stimulus-driven part of a change that the smoothness
	// bound cut off; it is released on later ticks.
	Carry Scalars

	// Hold counters for the debounced transitions.
	AboveProtectTicks int
	BelowCalmTicks    int
}

// Clone returns a deep copy so snapshots never alias the live transition.
func (n NervousState) Clone() NervousState {
	if n.Transition != nil {
		t := *n.Transition
		n.Transition = &t
	}
	return n
}

// #endregion nervous-state

// #region snapshot
// Snapshot is one tick's immutable view of the engine, handed to consumers.
type Snapshot struct {
	EngineID string    `json:"engine_id"`
	Tick     uint64    `json:"tick"`
	At       time.Time `json:"at"`
	Scalars
	Mode               Mode               `json:"mode"`
	ModeEnteredTick    uint64             `json:"mode_entered_tick"`
	ModeEnteredAt      time.Time          `json:"mode_entered_at"`
	Expression         profile.Expression `json:"expression"`
	ProfileName        string             `json:"profile"`
	Startled           bool               `json:"startled"`
	Transitioning      bool               `json:"transitioning"`
	TransitionProgress float64            `json:"transition_progress"`
	TransitionTarget   string             `json:"transition_target,omitempty"`
	StimuliApplied     int                `json:"stimuli_applied"`
	Events             []Event            `json:"events,omitempty"`
}

// #endregion snapshot

// #region event
// EventKind names something that happened on a tick.
type EventKind string

const (
	EventModeChanged         EventKind = "mode_changed"
	EventTransitionStarted   EventKind = "transition_started"
	EventTransitionCompleted EventKind = "transition_completed"
	EventTransitionCancelled EventKind = "transition_cancelled"
	EventFailSafe            EventKind = "fail_safe"
)

// Event rides on the snapshot of the tick it happened on. Consumers that must
// see every event subscribe with a mailbox deeper than one.
type Event struct {
	Kind     EventKind `json:"kind"`
	From     string    `json:"from,omitempty"`
	To       string    `json:"to,omitempty"`
	Rule     string    `json:"rule,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	Progress float64   `json:"progress,omitempty"`
}

// #endregion event
