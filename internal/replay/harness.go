package replay

import (
	"math"
	"time"

	"github.com/danielpatrickdp/reflex-engine/internal/engine"
	"github.com/danielpatrickdp/reflex-engine/internal/mode"
	"github.com/danielpatrickdp/reflex-engine/internal/profile"
	"github.com/danielpatrickdp/reflex-engine/internal/state"
	"github.com/danielpatrickdp/reflex-engine/internal/stimulus"
)

// #region types
// Step is what happens on one scripted tick.
type Step struct {
	Tick     uint64
	Stimuli  []stimulus.Stimulus
	SwitchTo *profile.Profile
}

// ReplayResult captures one tick of a replay.
type ReplayResult struct {
	Tick     uint64
	Snapshot state.Snapshot
	Decision mode.Decision
	FailSafe bool
	MaxDelta float64
}

// ReplaySummary aggregates a replay run.
type ReplaySummary struct {
	Ticks        int
	TicksPerMode map[state.Mode]int
	ModesVisited []state.Mode // in first-visit order, starting with the initial mode
	Transitions  []state.Event
	Startles     int
	FailSafes    int
	MaxDelta     float64 // largest per-tick change outside startle ticks
	PeakTension  float64
	CalmAt       int // first tick back in calm after leaving it or starting outside it; 0 if never
	MinEnergy    float64
	Final        state.Snapshot
}

// #endregion types

// #region replay
// Replay drives the tick pipeline over ticks ticks from start, applying the
// scripted stimuli and profile switches. It runs entirely in memory and uses
// a fixed clock, so the same inputs always produce the same results.
func Replay(start state.NervousState, active profile.Profile, script []Step, ticks int, cfg engine.Config) []ReplayResult {
	p := engine.NewPipeline(cfg)
	period := cfg.TickPeriod()
	epoch := time.Unix(0, 0).UTC()

	byTick := make(map[uint64]Step, len(script))
	for _, s := range script {
		byTick[s.Tick] = s
	}

	st := start
	target := active
	results := make([]ReplayResult, 0, ticks)
	for i := 1; i <= ticks; i++ {
		tick := st.Tick + 1
		now := epoch.Add(time.Duration(tick) * period)
		f := engine.Frame{Active: active, Now: now}
		if s, ok := byTick[tick]; ok {
			for _, stim := range s.Stimuli {
				stim.Timestamp = now
				f.Stimuli = append(f.Stimuli, stim)
			}
			if s.SwitchTo != nil && !s.SwitchTo.SameParameters(target) {
				next := *s.SwitchTo
				f.Pending = &next
				target = next
			}
		}

		out := p.Advance(st, f)
		delta := 0.0
		for k := state.Scalar(0); k < state.NumScalars; k++ {
			delta = math.Max(delta, math.Abs(out.State.At(k)-st.At(k)))
		}
		st = out.State
		active = out.Active

		results = append(results, ReplayResult{
			Tick:     out.State.Tick,
			Snapshot: out.Snapshot("replay"),
			Decision: out.Decision,
			FailSafe: out.FailSafe,
			MaxDelta: delta,
		})
	}
	return results
}

// #endregion replay

// #region summarize
// Summarize folds replay results into aggregate statistics. startMode is the
// mode before the first tick.
func Summarize(startMode state.Mode, results []ReplayResult) ReplaySummary {
	sum := ReplaySummary{
		Ticks:        len(results),
		TicksPerMode: make(map[state.Mode]int),
		ModesVisited: []state.Mode{startMode},
		MinEnergy:    1,
	}
	seen := map[state.Mode]bool{startMode: true}
	leftCalm := startMode != state.Calm

	for _, r := range results {
		s := r.Snapshot
		sum.TicksPerMode[s.Mode]++
		if !seen[s.Mode] {
			seen[s.Mode] = true
			sum.ModesVisited = append(sum.ModesVisited, s.Mode)
		}
		for _, ev := range s.Events {
			if ev.Kind == state.EventModeChanged {
				sum.Transitions = append(sum.Transitions, ev)
			}
		}
		if s.Startled {
			sum.Startles++
		} else {
			sum.MaxDelta = math.Max(sum.MaxDelta, r.MaxDelta)
		}
		if r.FailSafe {
			sum.FailSafes++
		}
		sum.PeakTension = math.Max(sum.PeakTension, s.Tension)
		sum.MinEnergy = math.Min(sum.MinEnergy, s.Energy)

		if s.Mode != state.Calm {
			leftCalm = true
		} else if leftCalm && sum.CalmAt == 0 {
			sum.CalmAt = int(s.Tick)
		}
	}
	if n := len(results); n > 0 {
		sum.Final = results[n-1].Snapshot
	}
	return sum
}

// #endregion summarize
