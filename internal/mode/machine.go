package mode

import (
	"fmt"

	"github.com/danielpatrickdp/reflex-engine/internal/state"
)

// #region machine
// Machine evaluates the mode transition table once per tick.
type Machine struct {
	config Config
}

// NewMachine creates a machine with the given configuration.
func NewMachine(config Config) *Machine {
	return &Machine{config: config}
}

// Config returns the machine's configuration.
func (m *Machine) Config() Config {
	return m.config
}

// Evaluate applies the first matching rule to st, updating its mode and hold
// counters in place. Rules in priority order:
//
//	calm|active -> spike  startle this tick (spike and protect keep their mode)
//	spike -> protect      tension >= protect threshold for the hold window
//	spike|protect -> calm tension < calm threshold for the recovery hold
//	calm -> active        energy or curiosity above enter, tension below ceiling
//	active -> calm        energy and curiosity below exit, no stimulus this tick
//
// A mode outside the enum is first reset to protect, then evaluated normally.
func (m *Machine) Evaluate(st *state.NervousState, f Facts) Decision {
	if !st.Mode.Valid() {
		return m.FailSafe(st, f, fmt.Sprintf("corrupt mode %q", string(st.Mode)))
	}
	return m.evaluate(st, f)
}

// FailSafe forces protect after an invariant violation, then evaluates the
// table again so the tick still ends in a rule-consistent mode.
func (m *Machine) FailSafe(st *state.NervousState, f Facts, cause string) Decision {
	from := st.Mode
	m.enter(st, state.Protect, f)
	d := m.evaluate(st, f)
	action := ActionTransition
	if st.Mode == from {
		action = ActionHold
	}
	return Decision{
		Action: action,
		From:   from,
		To:     st.Mode,
		Rule:   RuleFailSafe,
		Reason: fmt.Sprintf("%s: reset to protect; then %s", cause, d.Reason),
	}
}

// #endregion machine

// #region evaluate
func (m *Machine) evaluate(st *state.NervousState, f Facts) Decision {
	c := m.config
	from := st.Mode

	// 1. Startle. It never de-escalates: protect stays protect, and a spike keeps
	// counting toward protect while its recovery hold restarts.
	if f.Startled {
		switch from {
		case state.Protect:
			st.BelowCalmTicks = 0
			return Decision{Action: ActionRetrigger, From: from, To: from, Rule: RuleStartle,
				Reason: fmt.Sprintf("startle held protect at tension %.3f", st.Tension)}
		case state.Spike:
			st.BelowCalmTicks = 0
			if m.sustained(st) {
				return m.transition(st, state.Protect, RuleSustained, f,
					fmt.Sprintf("tension >= %.2f for %d ticks", c.ProtectThreshold, c.ProtectHoldTicks()))
			}
			return Decision{Action: ActionRetrigger, From: from, To: from, Rule: RuleStartle,
				Reason: fmt.Sprintf("startle re-armed spike at tension %.3f", st.Tension)}
		}
		return m.transition(st, state.Spike, RuleStartle, f,
			fmt.Sprintf("stimulus pushed tension to %.3f (> %.2f)", st.Tension, c.SpikeThreshold))
	}

	switch from {
	case state.Spike, state.Protect:
		// 2. Sustained tension escalates a spike.
		if from == state.Spike && m.sustained(st) {
			return m.transition(st, state.Protect, RuleSustained, f,
				fmt.Sprintf("tension >= %.2f for %d ticks", c.ProtectThreshold, c.ProtectHoldTicks()))
		}
		// 3. Recovery.
		if st.Tension < c.CalmRecoveryThreshold {
			st.BelowCalmTicks++
		} else {
			st.BelowCalmTicks = 0
		}
		if hold := c.RecoveryHoldTicks(f.RecoverySpeed); st.BelowCalmTicks >= hold {
			return m.transition(st, state.Calm, RuleRecovered, f,
				fmt.Sprintf("tension < %.2f for %d ticks", c.CalmRecoveryThreshold, hold))
		}

	case state.Calm:
		// 4. Engagement.
		if (st.Energy > c.ActiveEnter || st.Curiosity > c.ActiveEnter) && st.Tension < c.ActiveTensionCeiling {
			return m.transition(st, state.Active, RuleEngaged, f,
				fmt.Sprintf("energy %.3f curiosity %.3f above %.2f", st.Energy, st.Curiosity, c.ActiveEnter))
		}

	case state.Active:
		// 5. Settling, decay only.
		if !f.Stimulated && st.Energy < c.ActiveExit && st.Curiosity < c.ActiveExit {
			return m.transition(st, state.Calm, RuleSettled, f,
				fmt.Sprintf("energy %.3f curiosity %.3f below %.2f", st.Energy, st.Curiosity, c.ActiveExit))
		}
	}

	return Decision{Action: ActionHold, From: from, To: from, Reason: "no rule matched"}
}

// #endregion evaluate

// #region helpers
func (m *Machine) transition(st *state.NervousState, to state.Mode, rule Rule, f Facts, reason string) Decision {
	from := st.Mode
	m.enter(st, to, f)
	return Decision{Action: ActionTransition, From: from, To: to, Rule: rule, Reason: reason}
}

// sustained advances the spike -> protect debounce and reports whether it elapsed.
func (m *Machine) sustained(st *state.NervousState) bool {
	if st.Tension >= m.config.ProtectThreshold {
		st.AboveProtectTicks++
	} else {
		st.AboveProtectTicks = 0
	}
	return st.AboveProtectTicks >= m.config.ProtectHoldTicks()
}

func (m *Machine) enter(st *state.NervousState, to state.Mode, f Facts) {
	st.Mode = to
	st.ModeEnteredTick = st.Tick
	st.ModeEnteredAt = f.Now
	st.AboveProtectTicks = 0
	st.BelowCalmTicks = 0
}

// #endregion helpers
