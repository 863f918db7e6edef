package mode

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/danielpatrickdp/reflex-engine/internal/state"
)

// #region rule
// Rule names the transition rule that fired.
type Rule string

const (
	RuleStartle   Rule = "startle"           // * -> spike
	RuleSustained Rule = "sustained_tension" // spike -> protect
	RuleRecovered Rule = "recovered"         // spike|protect -> calm
	RuleEngaged   Rule = "engaged"           // calm -> active
	RuleSettled   Rule = "settled"           // active -> calm
	RuleFailSafe  Rule = "fail_safe"         // corrupt -> protect
)

// #endregion rule

// #region facts
// Facts carries what the mode machine needs to know about the tick that just ran.
type Facts struct {
	Startled      bool
	Stimulated    bool
	RecoverySpeed float64
	Now           time.Time
}

// #endregion facts

// #region decision
// Action is what the machine did with the mode on one tick.
type Action string

const (
	ActionTransition Action = "transition" // entered a different mode
	ActionRetrigger  Action = "retrigger"  // startle inside spike or protect, mode kept
	ActionHold       Action = "hold"       // nothing fired
)

// Decision records what the mode machine decided on one tick.
type Decision struct {
	Action Action
	From   state.Mode
	To     state.Mode
	Rule   Rule
	Reason string
}

// Changed reports whether the mode differs after the tick.
func (d Decision) Changed() bool {
	return d.Action == ActionTransition
}

// #endregion decision

// #region mode-config
// Config holds the thresholds and hold windows of the mode machine.
type Config struct {
	SpikeThreshold        float64       // strict >, default 0.7
	ProtectThreshold      float64       // >=, default 0.85
	ProtectHold           time.Duration // default 300ms
	CalmRecoveryThreshold float64       // strict <, default 0.3
	RecoveryHoldFast      time.Duration // hold below calm threshold at recovery_speed 1.0
	RecoveryHoldSlow      time.Duration // hold at recovery_speed 0.0
	ActiveEnter           float64       // energy or curiosity strictly above, default 0.5
	ActiveExit            float64       // both strictly below, default 0.4
	ActiveTensionCeiling  float64       // tension must stay below to enter active
	TickPeriod            time.Duration
}

// DefaultConfig returns the 20 Hz defaults.
func DefaultConfig() Config {
	return Config{
		SpikeThreshold:        0.7,
		ProtectThreshold:      0.85,
		ProtectHold:           300 * time.Millisecond,
		CalmRecoveryThreshold: 0.3,
		RecoveryHoldFast:      1 * time.Second,
		RecoveryHoldSlow:      4 * time.Second,
		ActiveEnter:           0.5,
		ActiveExit:            0.4,
		ActiveTensionCeiling:  0.6,
		TickPeriod:            50 * time.Millisecond,
	}
}

// Validate checks the threshold ordering the machine relies on.
func (c Config) Validate() error {
	var errs []error
	if !(c.CalmRecoveryThreshold < c.SpikeThreshold && c.SpikeThreshold < c.ProtectThreshold) {
		errs = append(errs, fmt.Errorf("thresholds must satisfy calm %.2f < spike %.2f < protect %.2f",
			c.CalmRecoveryThreshold, c.SpikeThreshold, c.ProtectThreshold))
	}
	if !(c.ActiveExit < c.ActiveEnter) {
		errs = append(errs, fmt.Errorf("active exit %.2f must be below active enter %.2f", c.ActiveExit, c.ActiveEnter))
	}
	if c.RecoveryHoldFast > c.RecoveryHoldSlow {
		errs = append(errs, fmt.Errorf("recovery hold fast %s exceeds slow %s", c.RecoveryHoldFast, c.RecoveryHoldSlow))
	}
	if c.TickPeriod <= 0 {
		errs = append(errs, errors.New("tick period must be positive"))
	}
	return errors.Join(errs...)
}

// ProtectHoldTicks is the debounce for spike -> protect in ticks.
func (c Config) ProtectHoldTicks() int {
	return c.ticks(c.ProtectHold)
}

// RecoveryHoldTicks is the profile-scaled hold below the calm threshold in ticks.
func (c Config) RecoveryHoldTicks(recoverySpeed float64) int {
	rs := math.Max(0, math.Min(1, recoverySpeed))
	span := float64(c.RecoveryHoldSlow - c.RecoveryHoldFast)
	return c.ticks(c.RecoveryHoldFast + time.Duration(span*(1-rs)))
}

func (c Config) ticks(d time.Duration) int {
	if c.TickPeriod <= 0 {
		return 1
	}
	n := int(math.Ceil(float64(d)/float64(c.TickPeriod) - 1e-9))
	if n < 1 {
		n = 1
	}
	return n
}

// #endregion mode-config
