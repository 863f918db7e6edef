package update

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/danielpatrickdp/reflex-engine/internal/profile"
	"github.com/danielpatrickdp/reflex-engine/internal/state"
	"github.com/danielpatrickdp/reflex-engine/internal/stimulus"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eps = 1e-9

func testProfile() profile.Profile {
	return profile.Profile{
		Name:       "test",
		Baselines:  profile.Baselines{Tension: 0.2, Energy: 0.3, Coherence: 0.7},
		Reactivity: profile.Reactivity{StartleSensitivity: 0.8, RecoverySpeed: 0.5, CuriosityDrive: 0.3},
		Expression: profile.Expression{Movement: 0.5, Sound: 0.5, Light: 0.5},
	}
}

func restingState(p profile.Profile, cfg Config) state.NervousState {
	return state.NervousState{
		Scalars: state.FromBaselines(p.Baselines, cfg.CuriosityRest*p.Reactivity.CuriosityDrive),
		Mode:    state.Calm,
	}
}

func TestMaxDeltaPerTick(t *testing.T) {
	cfg := DefaultConfig()
	assert.InDelta(t, 0.025, cfg.MaxDeltaPerTick(), eps)
	cfg.TickPeriod = 100 * time.Millisecond
	assert.InDelta(t, 0.05, cfg.MaxDeltaPerTick(), eps)
	assert.Equal(t, 25, cfg.TransitionTicks())
}

func TestStepDecayNeverOvershoots(t *testing.T) {
	cfg := DefaultConfig()
	p := testProfile()
	st := restingState(p, cfg)
	st.Tension = 0.9
	st.Energy = 0.0

	for i := 0; i < 400; i++ {
		r := Step(st, Input{Profile: p}, cfg)
		require.GreaterOrEqual(t, r.State.Tension, p.Baselines.Tension)
		require.LessOrEqual(t, r.State.Tension, st.Tension)
		require.LessOrEqual(t, r.State.Energy, p.Baselines.Energy)
		st = r.State
	}
	assert.InDelta(t, p.Baselines.Tension, st.Tension, 1e-6)
	assert.InDelta(t, p.Baselines.Energy, st.Energy, 1e-6)
}

func TestStepZeroIntensityIsNoOp(t *testing.T) {
	cfg := DefaultConfig()
	p := testProfile()
	st := restingState(p, cfg)
	st.Tension = 0.6

	plain := Step(st, Input{Profile: p}, cfg)
	zero := Step(st, Input{Profile: p, Stimuli: []stimulus.Stimulus{stimulus.New(stimulus.Touch, 0, time.Now())}}, cfg)

	if diff := cmp.Diff(plain.State, zero.State); diff != "" {
		t.Fatalf("zero-intensity stimulus changed state (-plain +zero):\n%s", diff)
	}
	assert.False(t, zero.Stimulated)
}

func TestStepStartleBypassesSmoothness(t *testing.T) {
	cfg := DefaultConfig()
	p := testProfile()
	st := restingState(p, cfg)

	r := Step(st, Input{Profile: p, Stimuli: []stimulus.Stimulus{stimulus.New(stimulus.Proximity, 0.9, time.Now())}}, cfg)

	assert.True(t, r.Startled)
	assert.GreaterOrEqual(t, r.State.Tension, 0.7)
	assert.InDelta(t, 0.92, r.State.Tension, eps)
	// Coherence is not exempt: it falls at the bounded rate and the rest is carried.
	assert.InDelta(t, p.Baselines.Coherence-cfg.MaxDeltaPerTick(), r.State.Coherence, eps)
	assert.Less(t, r.State.Carry.Coherence, 0.0)
	assert.Zero(t, r.State.Carry.Tension)
}

func TestStepThresholdIsStrict(t *testing.T) {
	cfg := DefaultConfig()
	p := profile.Profile{
		Baselines:  profile.Baselines{Tension: 0, Energy: 0, Coherence: 0.5},
		Reactivity: profile.Reactivity{StartleSensitivity: 1, RecoverySpeed: 0.5},
	}
	st := restingState(p, cfg)

	at := Step(st, Input{Profile: p, Stimuli: []stimulus.Stimulus{stimulus.New(stimulus.Proximity, 0.7, time.Now())}}, cfg)
	assert.False(t, at.Startled)
	assert.InDelta(t, cfg.MaxDeltaPerTick(), at.State.Tension, eps)

	above := Step(st, Input{Profile: p, Stimuli: []stimulus.Stimulus{stimulus.New(stimulus.Proximity, 0.7001, time.Now())}}, cfg)
	assert.True(t, above.Startled)
	assert.Greater(t, above.State.Tension, 0.7)
}

func TestStepStartleNeedsACrossing(t *testing.T) {
	cfg := DefaultConfig()
	p := testProfile()
	st := restingState(p, cfg)
	st.Tension = 0.95

	r := Step(st, Input{Profile: p, Stimuli: []stimulus.Stimulus{stimulus.New(stimulus.Sound, 0.05, time.Now())}}, cfg)
	assert.False(t, r.Startled, "tension already above threshold must not startle")
	assert.True(t, r.Stimulated)
	assert.LessOrEqual(t, math.Abs(r.State.Tension-st.Tension), cfg.MaxDeltaPerTick()+eps)

	// Two stimuli on one tick: the first crosses, the second starts above.
	st.Tension = 0.2
	r = Step(st, Input{Profile: p, Stimuli: []stimulus.Stimulus{
		stimulus.New(stimulus.Proximity, 0.9, time.Now()),
		stimulus.New(stimulus.Sound, 0.1, time.Now()),
	}}, cfg)
	assert.True(t, r.Startled)
}

func TestStepCarriesClippedStimulus(t *testing.T) {
	cfg := DefaultConfig()
	p := testProfile()
	st := restingState(p, cfg)
	st.Tension = 0.5

	soothe := stimulus.New(stimulus.Voice, 1.0, time.Now()).WithValence(-1)
	r := Step(st, Input{Profile: p, Stimuli: []stimulus.Stimulus{soothe}}, cfg)
	require.Contains(t, r.Metrics.Clipped, state.Tension)
	assert.InDelta(t, 0.5-cfg.MaxDeltaPerTick(), r.State.Tension, eps)
	assert.Less(t, r.State.Carry.Tension, 0.0)

	// Without further stimuli the carried impulse keeps tension falling at the bound.
	r2 := Step(r.State, Input{Profile: p}, cfg)
	assert.InDelta(t, r.State.Tension-cfg.MaxDeltaPerTick(), r2.State.Tension, eps)
}

func TestStepCountsOutOfRange(t *testing.T) {
	cfg := DefaultConfig()
	p := testProfile()
	st := restingState(p, cfg)

	r := Step(st, Input{Profile: p, Stimuli: []stimulus.Stimulus{
		stimulus.New(stimulus.Sound, 1.7, time.Now()),
		stimulus.New(stimulus.Voice, 0.2, time.Now()).WithValence(-4),
		{Kind: "smell", Intensity: 0.5},
	}}, cfg)
	assert.Equal(t, 2, r.Metrics.OutOfRange)
	assert.Equal(t, 1, r.Metrics.UnknownKind)
	assert.Equal(t, 2, r.Metrics.StimuliApplied)
}

func TestStepBoundedUnderRandomStimuli(t *testing.T) {
	cfg := DefaultConfig()
	rng := rand.New(rand.NewSource(7))
	maxDelta := cfg.MaxDeltaPerTick()

	for trial := 0; trial < 50; trial++ {
		p := profile.Profile{
			Baselines:  profile.Baselines{Tension: rng.Float64(), Energy: rng.Float64(), Coherence: rng.Float64()},
			Reactivity: profile.Reactivity{StartleSensitivity: rng.Float64(), RecoverySpeed: rng.Float64(), CuriosityDrive: rng.Float64()},
		}
		st := state.NervousState{Scalars: state.Scalars{
			Tension: rng.Float64(), Energy: rng.Float64(), Coherence: rng.Float64(), Curiosity: rng.Float64(),
		}}
		for tick := 0; tick < 200; tick++ {
			var in []stimulus.Stimulus
			for n := rng.Intn(3); n > 0; n-- {
				s := stimulus.New(stimulus.Kinds[rng.Intn(len(stimulus.Kinds))], rng.Float64(), time.Time{})
				if rng.Intn(2) == 0 {
					s = s.WithValence(rng.Float64()*2 - 1)
				}
				in = append(in, s)
			}
			r := Step(st, Input{Profile: p, Stimuli: in}, cfg)
			for i := state.Scalar(0); i < state.NumScalars; i++ {
				v := r.State.At(i)
				require.True(t, v >= 0 && v <= 1, "scalar %s out of range: %v", i, v)
				if r.Startled && i == state.Tension {
					continue
				}
				require.LessOrEqual(t, math.Abs(v-st.At(i)), maxDelta+eps, "scalar %s jumped", i)
			}
			st = r.State
		}
	}
}

func TestTransitionConvergesSmoothly(t *testing.T) {
	cfg := DefaultConfig()
	timid, _ := profile.Preset("timid")
	energetic, _ := profile.Preset("energetic")

	st := restingState(timid, cfg)
	st.Tension = 0.75
	BeginTransition(&st, timid, energetic, cfg)

	var completed *profile.Profile
	ticks := 0
	for completed == nil {
		r := Step(st, Input{Profile: timid}, cfg)
		for i := state.Scalar(0); i < state.NumScalars; i++ {
			require.LessOrEqual(t, math.Abs(r.State.At(i)-st.At(i)), cfg.MaxDeltaPerTick()+eps)
		}
		st = r.State
		completed = r.Completed
		ticks++
		require.LessOrEqual(t, ticks, 60)
	}
	assert.Equal(t, cfg.TransitionTicks(), ticks)
	assert.Equal(t, "energetic", completed.Name)
	assert.Nil(t, st.Transition)
	assert.InDelta(t, energetic.Baselines.Tension, st.Tension, 1e-9)
	assert.InDelta(t, energetic.Baselines.Energy, st.Energy, 1e-9)
	assert.InDelta(t, energetic.Baselines.Coherence, st.Coherence, 1e-9)
}

func TestBeginTransitionCancelsInFlight(t *testing.T) {
	cfg := DefaultConfig()
	calm, _ := profile.Preset("calm")
	zen, _ := profile.Preset("zen")
	playful, _ := profile.Preset("playful")

	st := restingState(calm, cfg)
	assert.Nil(t, BeginTransition(&st, calm, zen, cfg))
	st = Step(st, Input{Profile: calm}, cfg).State

	cancelled := BeginTransition(&st, calm, playful, cfg)
	require.NotNil(t, cancelled)
	assert.Equal(t, "zen", cancelled.To.Name)
	assert.InDelta(t, 1.0/float64(cfg.TransitionTicks()), cancelled.Progress(), eps)
	assert.Equal(t, "playful", st.Transition.To.Name)
}

func TestExpressionBlendsDuringTransition(t *testing.T) {
	cfg := DefaultConfig()
	from := testProfile()
	to := testProfile()
	to.Expression = profile.Expression{Movement: 1, Sound: 1, Light: 1}

	st := restingState(from, cfg)
	assert.Equal(t, from.Expression, Expression(st, from))

	BeginTransition(&st, from, to, cfg)
	for i := 0; i < cfg.TransitionTicks()/2; i++ {
		st = Step(st, Input{Profile: from}, cfg).State
	}
	e := Expression(st, from)
	assert.InDelta(t, 0.75, e.Movement, 1e-9)
}

func TestStepDeterministic(t *testing.T) {
	cfg := DefaultConfig()
	p := testProfile()
	st := restingState(p, cfg)
	in := Input{Profile: p, Stimuli: []stimulus.Stimulus{stimulus.New(stimulus.Sound, 0.4, time.Time{})}}

	r1 := Step(st, in, cfg)
	r2 := Step(st, in, cfg)
	if diff := cmp.Diff(r1.State, r2.State); diff != "" {
		t.Fatalf("non-deterministic step:\n%s", diff)
	}
}
