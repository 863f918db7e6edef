package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/danielpatrickdp/reflex-engine/internal/engine"
	"github.com/danielpatrickdp/reflex-engine/internal/profile"
	"github.com/danielpatrickdp/reflex-engine/internal/state"
	"github.com/danielpatrickdp/reflex-engine/internal/stimulus"
)

// #region fixture-types
// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description string             `json:"description"`
	Profile     string             `json:"profile,omitempty"`      // preset name
	ProfileSpec *profile.Spec      `json:"profile_spec,omitempty"` // wins over Profile
	TickHz      int                `json:"tick_hz,omitempty"`
	Ticks       int                `json:"ticks"`
	Start       *FixtureStart      `json:"start,omitempty"`
	Script      []FixtureStep      `json:"script"`
	Expect      FixtureExpectation `json:"expect"`
}

// FixtureStart overrides parts of the resting start state.
type FixtureStart struct {
	Mode      string   `json:"mode,omitempty"`
	Tension   *float64 `json:"tension,omitempty"`
	Energy    *float64 `json:"energy,omitempty"`
	Coherence *float64 `json:"coherence,omitempty"`
	Curiosity *float64 `json:"curiosity,omitempty"`
}

// FixtureStep is one scripted stimulus or profile switch.
type FixtureStep struct {
	Tick      uint64   `json:"tick"`
	Kind      string   `json:"kind,omitempty"`
	Intensity float64  `json:"intensity,omitempty"`
	Valence   *float64 `json:"valence,omitempty"`
	SwitchTo  string   `json:"switch_to,omitempty"`
}

// FixtureExpectation is checked against the replay summary. Zero values are not checked.
type FixtureExpectation struct {
	FinalMode       string   `json:"final_mode,omitempty"`
	CalmWithin      int      `json:"calm_within,omitempty"`
	ModesVisited    []string `json:"modes_visited,omitempty"`
	MinEnergy       *float64 `json:"min_energy,omitempty"`
	MinActiveTicks  int      `json:"min_active_ticks,omitempty"`
	FinalProfile    string   `json:"final_profile,omitempty"`
	NoFailSafe      bool     `json:"no_fail_safe,omitempty"`
	SmoothnessBound bool     `json:"smoothness_bound,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader
// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// Build resolves the fixture into replay inputs.
func (f *Fixture) Build() (state.NervousState, profile.Profile, []Step, engine.Config, error) {
	cfg := engine.DefaultConfig()
	if f.TickHz > 0 {
		cfg.TickHz = f.TickHz
	}
	cfg.Update.TickPeriod = cfg.TickPeriod()
	cfg.Mode.TickPeriod = cfg.TickPeriod()

	active, err := f.profile()
	if err != nil {
		return state.NervousState{}, profile.Profile{}, nil, cfg, err
	}

	start := engine.InitialState(active, cfg.Update, time.Unix(0, 0).UTC())
	if s := f.Start; s != nil {
		if s.Mode != "" {
			m := state.Mode(s.Mode)
			if !m.Valid() {
				return start, active, nil, cfg, fmt.Errorf("start mode %q undefined", s.Mode)
			}
			start.Mode = m
		}
		setIf(&start.Tension, s.Tension)
		setIf(&start.Energy, s.Energy)
		setIf(&start.Coherence, s.Coherence)
		setIf(&start.Curiosity, s.Curiosity)
	}

	steps := make(map[uint64]*Step)
	var order []uint64
	for i, fs := range f.Script {
		st, ok := steps[fs.Tick]
		if !ok {
			st = &Step{Tick: fs.Tick}
			steps[fs.Tick] = st
			order = append(order, fs.Tick)
		}
		if fs.SwitchTo != "" {
			p, ok := profile.Preset(fs.SwitchTo)
			if !ok {
				return start, active, nil, cfg, fmt.Errorf("script[%d]: unknown preset %q", i, fs.SwitchTo)
			}
			st.SwitchTo = &p
		}
		if fs.Kind != "" {
			kind, err := stimulus.ParseKind(fs.Kind)
			if err != nil {
				return start, active, nil, cfg, fmt.Errorf("script[%d]: %w", i, err)
			}
			s := stimulus.New(kind, fs.Intensity, time.Time{})
			s.Valence = fs.Valence
			s.Source = "fixture"
			st.Stimuli = append(st.Stimuli, s)
		}
	}
	script := make([]Step, 0, len(order))
	for _, tick := range order {
		script = append(script, *steps[tick])
	}
	return start, active, script, cfg, nil
}

func (f *Fixture) profile() (profile.Profile, error) {
	if f.ProfileSpec != nil {
		return f.ProfileSpec.Profile()
	}
	if f.Profile == "" {
		return profile.Default(), nil
	}
	p, ok := profile.Preset(f.Profile)
	if !ok {
		return profile.Profile{}, fmt.Errorf("unknown preset %q", f.Profile)
	}
	return p, nil
}

func setIf(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

// #endregion fixture-loader

// #region run
// Run replays the fixture and checks its expectations. The returned strings
// describe every unmet expectation.
func (f *Fixture) Run() (ReplaySummary, []string, error) {
	start, active, script, cfg, err := f.Build()
	if err != nil {
		return ReplaySummary{}, nil, err
	}
	results := Replay(start, active, script, f.Ticks, cfg)
	sum := Summarize(start.Mode, results)
	return sum, f.Expect.Check(sum, cfg.Update.MaxDeltaPerTick()), nil
}

// Check compares a summary with the expectation.
func (e FixtureExpectation) Check(sum ReplaySummary, maxDelta float64) []string {
	var failures []string
	if e.FinalMode != "" && string(sum.Final.Mode) != e.FinalMode {
		failures = append(failures, fmt.Sprintf("final mode %s, want %s", sum.Final.Mode, e.FinalMode))
	}
	if e.CalmWithin > 0 && (sum.CalmAt == 0 || sum.CalmAt > e.CalmWithin) {
		failures = append(failures, fmt.Sprintf("calm at tick %d, want within %d", sum.CalmAt, e.CalmWithin))
	}
	if len(e.ModesVisited) > 0 {
		visited := make(map[state.Mode]bool, len(sum.ModesVisited))
		for _, m := range sum.ModesVisited {
			visited[m] = true
		}
		for _, m := range e.ModesVisited {
			if !visited[state.Mode(m)] {
				failures = append(failures, fmt.Sprintf("mode %s never visited", m))
			}
		}
	}
	if e.MinEnergy != nil && sum.MinEnergy < *e.MinEnergy {
		failures = append(failures, fmt.Sprintf("energy dropped to %.3f, want >= %.3f", sum.MinEnergy, *e.MinEnergy))
	}
	if e.MinActiveTicks > 0 && sum.TicksPerMode[state.Active] < e.MinActiveTicks {
		failures = append(failures, fmt.Sprintf("%d active ticks, want >= %d", sum.TicksPerMode[state.Active], e.MinActiveTicks))
	}
	if e.FinalProfile != "" && sum.Final.ProfileName != e.FinalProfile {
		failures = append(failures, fmt.Sprintf("final profile %s, want %s", sum.Final.ProfileName, e.FinalProfile))
	}
	if e.NoFailSafe && sum.FailSafes > 0 {
		failures = append(failures, fmt.Sprintf("%d fail-safes", sum.FailSafes))
	}
	if e.SmoothnessBound && sum.MaxDelta > maxDelta+1e-12 {
		failures = append(failures, fmt.Sprintf("max delta %.4f exceeds %.4f", sum.MaxDelta, maxDelta))
	}
	return failures
}

// #endregion run
