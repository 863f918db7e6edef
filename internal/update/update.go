package update

import (
	"math"
	"time"

	"github.com/danielpatrickdp/reflex-engine/internal/profile"
	"github.com/danielpatrickdp/reflex-engine/internal/state"
	"github.com/danielpatrickdp/reflex-engine/internal/stimulus"
)

// #region step
// Step is a pure function that advances the affective scalars by one tick:
// transition interpolation or decay, stimulus folding, then the smoothness bound.
// It does not evaluate the mode; see the mode package.
func Step(prev state.NervousState, in Input, cfg Config) Result {
	start := time.Now()

	next := prev.Clone()
	next.Tick = prev.Tick + 1
	p := in.Profile

	var completed *profile.Profile
	rate := cfg.DecayFactor(p.Reactivity.RecoverySpeed)

	// 1-2. Natural movement: interpolation toward the pending baselines, or decay.
	var natural state.Scalars
	if t := next.Transition; t != nil {
		frac := advanceTransition(t)
		to := t.To.Baselines
		natural.Tension = (to.Tension - prev.Tension) * frac
		natural.Energy = (to.Energy - prev.Energy) * frac
		natural.Coherence = (to.Coherence - prev.Coherence) * frac
		if t.RemainingTicks <= 0 {
			target := t.To
			completed = &target
			next.Transition = nil
		}
	} else {
		b := p.Baselines
		natural.Tension = (b.Tension - prev.Tension) * rate
		natural.Energy = (b.Energy - prev.Energy) * rate
		natural.Coherence = (b.Coherence - prev.Coherence) * rate
	}
	rest := cfg.CuriosityRest * p.Reactivity.CuriosityDrive
	natural.Curiosity = (rest - prev.Curiosity) * rate

	raw := prev.Scalars
	for i := state.Scalar(0); i < state.NumScalars; i++ {
		raw.Set(i, clamp01(raw.At(i)+natural.At(i)))
		natural.Set(i, raw.At(i)-prev.At(i))
	}

	// 3. Stimuli, oldest first. Unreleased impulse from earlier ticks comes first.
	var m Metrics
	impulse := prev.Carry
	startled, stimulated := false, false
	m.PeakTension = raw.Tension + impulse.Tension
	for _, s := range in.Stimuli {
		w, ok := cfg.KindWeights[s.Kind]
		if !ok {
			m.UnknownKind++
			continue
		}
		s, clamped := stimulus.Normalize(s)
		if clamped {
			m.OutOfRange++
		}
		effect := stimulusEffect(s, w, p.Reactivity, cfg.CoherenceCoupling)
		before := raw.Tension + impulse.Tension
		for i := state.Scalar(0); i < state.NumScalars; i++ {
			v := clamp01(raw.At(i) + impulse.At(i) + effect.At(i))
			impulse.Set(i, v-raw.At(i))
		}
		if s.Intensity > 0 {
			stimulated = true
			m.StimuliApplied++
		}
		tension := raw.Tension + impulse.Tension
		// A startle is a crossing: tension already above the threshold cannot startle again.
		if before <= cfg.StartleThreshold && tension > cfg.StartleThreshold {
			startled = true
		}
		m.PeakTension = math.Max(m.PeakTension, tension)
	}

	// 4. Smoothness. A startle is the only change allowed past the bound, and only for tension.
	maxDelta := cfg.MaxDeltaPerTick()
	var carry state.Scalars
	for i := state.Scalar(0); i < state.NumScalars; i++ {
		imp := impulse.At(i)
		total := natural.At(i) + imp
		applied := total
		if !(startled && i == state.Tension) {
			applied = clampRange(total, -maxDelta, maxDelta)
			if cut := total - applied; cut != 0 {
				m.Clipped = append(m.Clipped, i)
				if cut*imp > 0 {
					carry.Set(i, math.Copysign(math.Min(math.Abs(cut), math.Abs(imp)), imp))
				}
			}
		}
		v := clamp01(prev.At(i) + applied)
		next.Set(i, v)
		m.MaxDelta = math.Max(m.MaxDelta, math.Abs(v-prev.At(i)))
	}
	next.Carry = carry

	m.UpdateTime = time.Since(start)
	return Result{
		State:      next,
		Startled:   startled,
		Stimulated: stimulated,
		Completed:  completed,
		Metrics:    m,
	}
}

// #endregion step

// #region stimulus-effect
// stimulusEffect computes the signed per-scalar change one stimulus asks for.
// Positive valence raises tension and erodes coherence; negative valence does the reverse.
func stimulusEffect(s stimulus.Stimulus, w KindWeight, r profile.Reactivity, coupling float64) state.Scalars {
	d := s.Intensity * r.StartleSensitivity * w.Tension
	signed := d * s.Sign()
	return state.Scalars{
		Tension:   signed,
		Energy:    s.Intensity * w.Energy,
		Coherence: -signed * coupling,
		Curiosity: s.Intensity * r.CuriosityDrive * w.Curiosity,
	}
}

// #endregion stimulus-effect

// #region transition
// BeginTransition starts interpolating st toward the baselines of to. Any transition
// already in flight is cancelled and returned; the new one starts from the current values.
func BeginTransition(st *state.NervousState, from, to profile.Profile, cfg Config) *state.Transition {
	cancelled := st.Transition
	ticks := cfg.TransitionTicks()
	easing := cfg.TransitionEasing
	if easing == "" {
		easing = state.Linear
	}
	st.Transition = &state.Transition{
		From:           from,
		To:             to,
		TotalTicks:     ticks,
		RemainingTicks: ticks,
		Easing:         easing,
	}
	return cancelled
}

// advanceTransition consumes one tick of t and returns the fraction of the
// remaining distance to cover on this tick.
func advanceTransition(t *state.Transition) float64 {
	if t.RemainingTicks <= 0 {
		return 1
	}
	before := t.Easing.Apply(t.Progress())
	t.RemainingTicks--
	after := t.Easing.Apply(t.Progress())
	if before >= 1 {
		return 1
	}
	return (after - before) / (1 - before)
}

// Expression returns the expression multipliers consumers should use: the active
// profile's, blended toward the target's while a transition is in flight.
func Expression(st state.NervousState, active profile.Profile) profile.Expression {
	t := st.Transition
	if t == nil {
		return active.Expression
	}
	k := t.Easing.Apply(t.Progress())
	from, to := active.Expression, t.To.Expression
	return profile.Expression{
		Movement: lerp(from.Movement, to.Movement, k),
		Sound:    lerp(from.Sound, to.Sound, k),
		Light:    lerp(from.Light, to.Light, k),
	}
}

// #endregion transition

// #region helpers
func clamp01(v float64) float64 {
	return clampRange(v, 0, 1)
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// #endregion helpers
