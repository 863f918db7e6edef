package engine

import (
	"math"
	"testing"
	"time"

	"github.com/danielpatrickdp/reflex-engine/internal/mode"
	"github.com/danielpatrickdp/reflex-engine/internal/profile"
	"github.com/danielpatrickdp/reflex-engine/internal/state"
	"github.com/danielpatrickdp/reflex-engine/internal/stimulus"
	"github.com/google/go-cmp/cmp"
)

func restingAt(p profile.Profile, m state.Mode, tension float64) state.NervousState {
	st := InitialState(p, DefaultConfig().Update, time.Unix(0, 0))
	st.Mode = m
	st.Tension = tension
	return st
}

// ticksToCalm advances until the mode is calm, feeding first on the first tick only.
func ticksToCalm(t *testing.T, p Pipeline, prof profile.Profile, st state.NervousState, first []stimulus.Stimulus, limit int) (int, state.NervousState) {
	t.Helper()
	now := time.Unix(0, 0)
	for n := 1; n <= limit; n++ {
		f := Frame{Active: prof, Now: now.Add(time.Duration(n) * 50 * time.Millisecond)}
		if n == 1 {
			f.Stimuli = first
		}
		st = p.Advance(st, f).State
		if st.Mode == state.Calm {
			return n, st
		}
	}
	t.Fatalf("did not reach calm within %d ticks (mode %s, tension %.3f)", limit, st.Mode, st.Tension)
	return 0, st
}

func TestSpikeRecoversWithinSixSeconds(t *testing.T) {
	p := NewPipeline(DefaultConfig())
	n, st := ticksToCalm(t, p, reference(), restingAt(reference(), state.Spike, 0.75), nil, 120)
	if st.Tension >= 0.3 {
		t.Fatalf("tension %.3f not below calm threshold", st.Tension)
	}
	t.Logf("calm after %d ticks", n)
}

func TestSoothingVoiceSpeedsRecovery(t *testing.T) {
	p := NewPipeline(DefaultConfig())
	prof := reference()

	baseline, _ := ticksToCalm(t, p, prof, restingAt(prof, state.Protect, 0.8), nil, 400)
	voice := stimulus.New(stimulus.Voice, 0.3, time.Unix(0, 0)).WithValence(-0.6)
	soothed, _ := ticksToCalm(t, p, prof, restingAt(prof, state.Protect, 0.8), []stimulus.Stimulus{voice}, 400)

	if soothed >= baseline {
		t.Fatalf("soothing voice should recover faster: %d ticks vs %d", soothed, baseline)
	}
}

func TestStartleThresholdBoundary(t *testing.T) {
	p := NewPipeline(DefaultConfig())
	prof := profile.Profile{
		Name:       "boundary",
		Baselines:  profile.Baselines{Tension: 0, Energy: 0, Coherence: 0.5},
		Reactivity: profile.Reactivity{StartleSensitivity: 1, RecoverySpeed: 0.5},
		Expression: profile.Expression{Movement: 0.5, Sound: 0.5, Light: 0.5},
	}

	at := p.Advance(restingAt(prof, state.Calm, 0), Frame{
		Active:  prof,
		Stimuli: []stimulus.Stimulus{stimulus.New(stimulus.Proximity, 0.7, time.Time{})},
	})
	if at.State.Mode != state.Calm || at.Update.Startled {
		t.Fatalf("intensity at threshold must not spike, got %s", at.State.Mode)
	}
	if math.Abs(at.State.Tension-0.025) > 1e-12 {
		t.Fatalf("expected clipped tension 0.025, got %v", at.State.Tension)
	}

	above := p.Advance(restingAt(prof, state.Calm, 0), Frame{
		Active:  prof,
		Stimuli: []stimulus.Stimulus{stimulus.New(stimulus.Proximity, 0.7001, time.Time{})},
	})
	if above.State.Mode != state.Spike {
		t.Fatalf("intensity above threshold must spike, got %s", above.State.Mode)
	}
}

func TestFaintSoundKeepsProtect(t *testing.T) {
	p := NewPipeline(DefaultConfig())
	prof := reference()
	out := p.Advance(restingAt(prof, state.Protect, 0.95), Frame{
		Active:  prof,
		Stimuli: []stimulus.Stimulus{stimulus.New(stimulus.Sound, 0.05, time.Time{})},
	})
	if out.State.Mode != state.Protect {
		t.Fatalf("faint sound demoted protect to %s (tension %.3f)", out.State.Mode, out.State.Tension)
	}
	if out.Update.Startled {
		t.Fatalf("tension already above the startle threshold must not startle")
	}
	for _, ev := range out.Events {
		if ev.Kind == state.EventModeChanged {
			t.Fatalf("unexpected mode change: %+v", ev)
		}
	}
}

func TestSustainedProximityEscalatesToProtect(t *testing.T) {
	cfg := DefaultConfig()
	p := NewPipeline(cfg)
	prof := reference()
	st := restingAt(prof, state.Calm, prof.Baselines.Tension)
	limit := p.Machine.Config().ProtectHoldTicks() + 1

	now := time.Unix(0, 0)
	for n := 1; n <= limit; n++ {
		now = now.Add(cfg.TickPeriod())
		st = p.Advance(st, Frame{
			Active:  prof,
			Now:     now,
			Stimuli: []stimulus.Stimulus{stimulus.New(stimulus.Proximity, 0.9, now)},
		}).State
		if n == 1 && st.Mode != state.Spike {
			t.Fatalf("first approach should spike, got %s", st.Mode)
		}
		if st.Mode == state.Protect {
			return
		}
	}
	t.Fatalf("still %s after %d ticks of proximity (tension %.3f)", st.Mode, limit, st.Tension)
}

func TestAdvanceFailSafeOnCorruptScalar(t *testing.T) {
	p := NewPipeline(DefaultConfig())
	st := restingAt(reference(), state.Active, 0.2)
	st.Energy = math.NaN()

	out := p.Advance(st, Frame{Active: reference()})
	if !out.FailSafe || out.Decision.Rule != mode.RuleFailSafe {
		t.Fatalf("expected fail-safe, got %+v", out.Decision)
	}
	if out.State.Mode != state.Protect {
		t.Fatalf("expected protect, got %s", out.State.Mode)
	}
	if out.State.Energy != reference().Baselines.Energy {
		t.Fatalf("energy not repaired: %v", out.State.Energy)
	}
	var sawFailSafe, sawChange bool
	for _, ev := range out.Events {
		sawFailSafe = sawFailSafe || ev.Kind == state.EventFailSafe
		sawChange = sawChange || ev.Kind == state.EventModeChanged
	}
	if !sawFailSafe || !sawChange {
		t.Fatalf("missing events: %+v", out.Events)
	}
}

func TestAdvanceFailSafeOnCorruptMode(t *testing.T) {
	p := NewPipeline(DefaultConfig())
	st := restingAt(reference(), state.Mode("sleepwalking"), 0.2)
	out := p.Advance(st, Frame{Active: reference()})
	if out.State.Mode != state.Protect || !out.FailSafe {
		t.Fatalf("expected protect after corrupt mode, got %s", out.State.Mode)
	}
}

func TestAdvanceIsDeterministic(t *testing.T) {
	run := func() []state.Snapshot {
		p := NewPipeline(DefaultConfig())
		prof := reference()
		st := InitialState(prof, p.Update, time.Unix(0, 0))
		var out []state.Snapshot
		for i := 0; i < 120; i++ {
			f := Frame{Active: prof, Now: time.Unix(0, int64(i)*int64(50*time.Millisecond))}
			switch i {
			case 5:
				f.Stimuli = []stimulus.Stimulus{stimulus.New(stimulus.Proximity, 0.95, f.Now)}
			case 40:
				f.Stimuli = []stimulus.Stimulus{stimulus.New(stimulus.Voice, 0.5, f.Now).WithValence(-1)}
			}
			o := p.Advance(st, f)
			st = o.State
			out = append(out, o.Snapshot("replay"))
		}
		return out
	}
	if diff := cmp.Diff(run(), run()); diff != "" {
		t.Fatalf("runs differ (-first +second):\n%s", diff)
	}
}
