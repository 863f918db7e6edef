package profile

import (
	"fmt"
	"strings"
)

// #region profile
// Baselines are the resting values the engine decays toward.
type Baselines struct {
	Tension   float64 `json:"tension" yaml:"tension" validate:"gte=0,lte=1"`
	Energy    float64 `json:"energy" yaml:"energy" validate:"gte=0,lte=1"`
	Coherence float64 `json:"coherence" yaml:"coherence" validate:"gte=0,lte=1"`
}

// Reactivity scales stimulus impact and recovery.
type Reactivity struct {
	StartleSensitivity float64 `json:"startle_sensitivity" yaml:"startle_sensitivity" validate:"gte=0,lte=1"`
	RecoverySpeed      float64 `json:"recovery_speed" yaml:"recovery_speed" validate:"gte=0,lte=1"`
	CuriosityDrive     float64 `json:"curiosity_drive" yaml:"curiosity_drive" validate:"gte=0,lte=1"`
}

// Expression holds amplitude multipliers handed to output consumers.
// The mode machine never reads them.
type Expression struct {
	Movement float64 `json:"movement" yaml:"movement" validate:"gte=0,lte=1"`
	Sound    float64 `json:"sound" yaml:"sound" validate:"gte=0,lte=1"`
	Light    float64 `json:"light" yaml:"light" validate:"gte=0,lte=1"`
}

// Profile is an immutable personality configuration. It is replaced whole, never mutated.
type Profile struct {
	Name       string     `json:"name,omitempty" yaml:"name,omitempty"`
	Baselines  Baselines  `json:"baselines" yaml:"baselines"`
	Reactivity Reactivity `json:"reactivity" yaml:"reactivity"`
	Expression Expression `json:"expression" yaml:"expression"`
}

// SameParameters reports whether both profiles carry identical values for all nine parameters.
// Names are ignored.
func (p Profile) SameParameters(o Profile) bool {
	return p.Baselines == o.Baselines && p.Reactivity == o.Reactivity && p.Expression == o.Expression
}

// Params returns the nine parameters in canonical order, keyed by their flat names.
func (p Profile) Params() []Param {
	return []Param{
		{"tension_baseline", p.Baselines.Tension},
		{"energy_baseline", p.Baselines.Energy},
		{"coherence_baseline", p.Baselines.Coherence},
		{"startle_sensitivity", p.Reactivity.StartleSensitivity},
		{"recovery_speed", p.Reactivity.RecoverySpeed},
		{"curiosity_drive", p.Reactivity.CuriosityDrive},
		{"movement_expressiveness", p.Expression.Movement},
		{"sound_expressiveness", p.Expression.Sound},
		{"light_expressiveness", p.Expression.Light},
	}
}

// Param is one named profile parameter.
type Param struct {
	Name  string
	Value float64
}

// #endregion profile

// #region spec
// Spec is the flat, wire-facing form of a profile. Pointer fields make a missing
// parameter distinguishable from an explicit zero.
type Spec struct {
	Name                   string   `json:"name,omitempty" yaml:"name,omitempty"`
	TensionBaseline        *float64 `json:"tension_baseline" yaml:"tension_baseline" validate:"required,gte=0,lte=1"`
	EnergyBaseline         *float64 `json:"energy_baseline" yaml:"energy_baseline" validate:"required,gte=0,lte=1"`
	CoherenceBaseline      *float64 `json:"coherence_baseline" yaml:"coherence_baseline" validate:"required,gte=0,lte=1"`
	StartleSensitivity     *float64 `json:"startle_sensitivity" yaml:"startle_sensitivity" validate:"required,gte=0,lte=1"`
	RecoverySpeed          *float64 `json:"recovery_speed" yaml:"recovery_speed" validate:"required,gte=0,lte=1"`
	CuriosityDrive         *float64 `json:"curiosity_drive" yaml:"curiosity_drive" validate:"required,gte=0,lte=1"`
	MovementExpressiveness *float64 `json:"movement_expressiveness" yaml:"movement_expressiveness" validate:"required,gte=0,lte=1"`
	SoundExpressiveness    *float64 `json:"sound_expressiveness" yaml:"sound_expressiveness" validate:"required,gte=0,lte=1"`
	LightExpressiveness    *float64 `json:"light_expressiveness" yaml:"light_expressiveness" validate:"required,gte=0,lte=1"`
}

// SpecOf flattens a profile into its wire form.
func SpecOf(p Profile) Spec {
	f := func(v float64) *float64 { return &v }
	return Spec{
		Name:                   p.Name,
		TensionBaseline:        f(p.Baselines.Tension),
		EnergyBaseline:         f(p.Baselines.Energy),
		CoherenceBaseline:      f(p.Baselines.Coherence),
		StartleSensitivity:     f(p.Reactivity.StartleSensitivity),
		RecoverySpeed:          f(p.Reactivity.RecoverySpeed),
		CuriosityDrive:         f(p.Reactivity.CuriosityDrive),
		MovementExpressiveness: f(p.Expression.Movement),
		SoundExpressiveness:    f(p.Expression.Sound),
		LightExpressiveness:    f(p.Expression.Light),
	}
}

// #endregion spec

// #region validation-error
// FieldError describes one rejected parameter.
type FieldError struct {
	Field   string  `json:"field"`
	Value   float64 `json:"value"`
	Missing bool    `json:"missing,omitempty"`
}

func (f FieldError) String() string {
	if f.Missing {
		return fmt.Sprintf("parameter '%s' missing", f.Field)
	}
	return fmt.Sprintf("parameter '%s' out of bounds: %g (must be 0.0-1.0)", f.Field, f.Value)
}

// ValidationError reports every invalid parameter of a rejected profile.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}
	return "invalid profile: " + strings.Join(parts, "; ")
}

// #endregion validation-error
