package eval

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/reflex-engine/internal/profile"
	"github.com/danielpatrickdp/reflex-engine/internal/state"
)

// #region eval-harness
// EvalHarness checks the runtime state invariants after each tick.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Run checks every scalar for range and finiteness, the carry for finiteness,
// the mode for membership in the enum, and the transition counters for consistency.
func (h *EvalHarness) Run(st state.NervousState) EvalResult {
	var metrics []EvalMetric
	var failReasons []string

	// 1. Scalars in [0,1]
	for i := state.Scalar(0); i < state.NumScalars; i++ {
		v := st.At(i)
		pass := finite(v) && v >= 0 && v <= 1
		metrics = append(metrics, EvalMetric{Name: i.String(), Value: v, Pass: pass})
		if !pass {
			failReasons = append(failReasons, fmt.Sprintf("%s %v outside [0,1]", i, v))
		}
	}

	// 2. Carry finite and bounded
	for i := state.Scalar(0); i < state.NumScalars; i++ {
		v := st.Carry.At(i)
		pass := finite(v) && math.Abs(v) <= h.config.MaxCarry
		metrics = append(metrics, EvalMetric{Name: "carry_" + i.String(), Value: v, Pass: pass})
		if !pass {
			failReasons = append(failReasons, fmt.Sprintf("carry %s %v not finite or unbounded", i, v))
		}
	}

	// 3. Mode in the enum
	modePass := st.Mode.Valid()
	metrics = append(metrics, EvalMetric{Name: "mode", Pass: modePass})
	if !modePass {
		failReasons = append(failReasons, fmt.Sprintf("mode %q undefined", string(st.Mode)))
	}

	// 4. Transition counters
	if t := st.Transition; t != nil {
		pass := t.TotalTicks > 0 && t.RemainingTicks >= 0 && t.RemainingTicks <= t.TotalTicks
		metrics = append(metrics, EvalMetric{Name: "transition", Value: float64(t.RemainingTicks), Pass: pass})
		if !pass {
			failReasons = append(failReasons, fmt.Sprintf("transition %d/%d ticks inconsistent", t.RemainingTicks, t.TotalTicks))
		}
	}

	reason := "all checks passed"
	if len(failReasons) > 0 {
		reason = fmt.Sprintf("eval failed: %s", failReasons[0])
		if len(failReasons) > 1 {
			reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
		}
	}

	return EvalResult{
		Passed:  len(failReasons) == 0,
		Metrics: metrics,
		Reason:  reason,
	}
}

// #endregion eval-harness

// #region repair
// Repair restores the numeric part of a state that failed Run: corrupt scalars
// return to the profile's resting values, a corrupt carry and any broken transition
// are dropped. The mode is left to the mode machine's fail-safe.
func Repair(st *state.NervousState, active profile.Profile, curiosityRest float64) {
	rest := state.FromBaselines(active.Baselines, curiosityRest)
	for i := state.Scalar(0); i < state.NumScalars; i++ {
		if v := st.At(i); !finite(v) || v < 0 || v > 1 {
			st.Set(i, rest.At(i))
		}
		if v := st.Carry.At(i); !finite(v) || math.Abs(v) > 1 {
			st.Carry = state.Scalars{}
		}
	}
	if t := st.Transition; t != nil && (t.TotalTicks <= 0 || t.RemainingTicks < 0 || t.RemainingTicks > t.TotalTicks) {
		st.Transition = nil
	}
}

// #endregion repair

// #region helpers
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// #endregion helpers
