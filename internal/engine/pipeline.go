package engine

import (
	"time"

	"github.com/danielpatrickdp/reflex-engine/internal/eval"
	"github.com/danielpatrickdp/reflex-engine/internal/mode"
	"github.com/danielpatrickdp/reflex-engine/internal/profile"
	"github.com/danielpatrickdp/reflex-engine/internal/state"
	"github.com/danielpatrickdp/reflex-engine/internal/stimulus"
	"github.com/danielpatrickdp/reflex-engine/internal/update"
)

// #region pipeline
// Pipeline is the deterministic core of one tick. It holds no runtime state;
// the live engine and the replay harness both drive it.
type Pipeline struct {
	Update  update.Config
	Machine *mode.Machine
	Guard   *eval.EvalHarness
}

// NewPipeline builds the pipeline for cfg.
func NewPipeline(cfg Config) Pipeline {
	cfg = cfg.normalized()
	return Pipeline{
		Update:  cfg.Update,
		Machine: mode.NewMachine(cfg.Mode),
		Guard:   eval.NewEvalHarness(cfg.Eval),
	}
}

// Frame is everything a tick consumes besides the previous state.
type Frame struct {
	Active  profile.Profile
	Pending *profile.Profile // switch requested since the last tick
	Stimuli []stimulus.Stimulus
	Now     time.Time
}

// Outcome is the result of one Advance.
type Outcome struct {
	At       time.Time
	State    state.NervousState
	Update   update.Result
	Decision mode.Decision
	Guard    eval.EvalResult
	FailSafe bool

	// Active is the profile in force after the tick; it differs from the
	// frame's when a transition completed and Committed is set.
	Active    profile.Profile
	Committed bool
	Events    []state.Event
}

// InitialState returns the resting state for p: scalars at the baselines,
// curiosity at its rest point, mode calm.
func InitialState(p profile.Profile, cfg update.Config, now time.Time) state.NervousState {
	return state.NervousState{
		Scalars:       state.FromBaselines(p.Baselines, cfg.CuriosityRest*p.Reactivity.CuriosityDrive),
		Mode:          state.Calm,
		ModeEnteredAt: now,
	}
}

// Advance runs one tick: start any requested switch, update the scalars,
// check the invariants, then evaluate the mode.
func (p Pipeline) Advance(prev state.NervousState, f Frame) Outcome {
	var events []state.Event
	st := prev.Clone()

	if f.Pending != nil {
		target := *f.Pending
		if cancelled := update.BeginTransition(&st, f.Active, target, p.Update); cancelled != nil {
			events = append(events, state.Event{
				Kind:     state.EventTransitionCancelled,
				From:     f.Active.Name,
				To:       cancelled.To.Name,
				Progress: cancelled.Progress(),
			})
		}
		events = append(events, state.Event{
			Kind: state.EventTransitionStarted,
			From: f.Active.Name,
			To:   target.Name,
		})
	}

	res := update.Step(st, update.Input{Profile: f.Active, Stimuli: f.Stimuli, Now: f.Now}, p.Update)
	next := res.State

	active := f.Active
	committed := false
	if res.Completed != nil {
		events = append(events, state.Event{
			Kind: state.EventTransitionCompleted,
			From: active.Name,
			To:   res.Completed.Name,
		})
		active = *res.Completed
		committed = true
	}

	facts := mode.Facts{
		Startled:      res.Startled,
		Stimulated:    res.Stimulated,
		RecoverySpeed: active.Reactivity.RecoverySpeed,
		Now:           f.Now,
	}

	guard := p.Guard.Run(next)
	var d mode.Decision
	failSafe := false
	if !guard.Passed {
		eval.Repair(&next, active, p.Update.CuriosityRest*active.Reactivity.CuriosityDrive)
		d = p.Machine.FailSafe(&next, facts, guard.Reason)
		failSafe = true
	} else {
		d = p.Machine.Evaluate(&next, facts)
		failSafe = d.Rule == mode.RuleFailSafe
	}
	if failSafe {
		events = append(events, state.Event{
			Kind:   state.EventFailSafe,
			From:   string(d.From),
			To:     string(state.Protect),
			Rule:   string(mode.RuleFailSafe),
			Reason: d.Reason,
		})
	}
	if d.Changed() && d.From != d.To {
		events = append(events, state.Event{
			Kind:   state.EventModeChanged,
			From:   string(d.From),
			To:     string(d.To),
			Rule:   string(d.Rule),
			Reason: d.Reason,
		})
	}

	return Outcome{
		At:        f.Now,
		State:     next,
		Update:    res,
		Decision:  d,
		Guard:     guard,
		FailSafe:  failSafe,
		Active:    active,
		Committed: committed,
		Events:    events,
	}
}

// #endregion pipeline

// #region snapshot
// Snapshot renders the outcome for consumers.
func (o Outcome) Snapshot(engineID string) state.Snapshot {
	return snapshotOf(engineID, o.At, o.State, o.Active, o.Update.Startled, o.Update.Metrics.StimuliApplied, o.Events)
}

func snapshotOf(engineID string, at time.Time, st state.NervousState, active profile.Profile, startled bool, applied int, events []state.Event) state.Snapshot {
	snap := state.Snapshot{
		EngineID:        engineID,
		Tick:            st.Tick,
		At:              at,
		Scalars:         st.Scalars,
		Mode:            st.Mode,
		ModeEnteredTick: st.ModeEnteredTick,
		ModeEnteredAt:   st.ModeEnteredAt,
		Expression:      update.Expression(st, active),
		ProfileName:     active.Name,
		Startled:        startled,
		StimuliApplied:  applied,
		Events:          events,
	}
	if t := st.Transition; t != nil {
		snap.Transitioning = true
		snap.TransitionProgress = t.Progress()
		snap.TransitionTarget = t.To.Name
	}
	return snap
}

// #endregion snapshot
