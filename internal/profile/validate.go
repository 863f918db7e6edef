package profile

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// #region validator
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// #endregion validator

// #region to-profile
// Profile validates the spec and converts it. Invalid or missing parameters are
// reported as a *ValidationError, never clamped.
func (s Spec) Profile() (Profile, error) {
	if err := validate.Struct(s); err != nil {
		return Profile{}, toValidationError(err)
	}
	return Profile{
		Name: s.Name,
		Baselines: Baselines{
			Tension:   *s.TensionBaseline,
			Energy:    *s.EnergyBaseline,
			Coherence: *s.CoherenceBaseline,
		},
		Reactivity: Reactivity{
			StartleSensitivity: *s.StartleSensitivity,
			RecoverySpeed:      *s.RecoverySpeed,
			CuriosityDrive:     *s.CuriosityDrive,
		},
		Expression: Expression{
			Movement: *s.MovementExpressiveness,
			Sound:    *s.SoundExpressiveness,
			Light:    *s.LightExpressiveness,
		},
	}, nil
}

// Validate checks that all nine parameters of p are within [0,1].
func Validate(p Profile) error {
	_, err := SpecOf(p).Profile()
	return err
}

// #endregion to-profile

// #region helpers
func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		f := FieldError{Field: fe.Field()}
		if fe.Tag() == "required" {
			f.Missing = true
		} else {
			switch v := fe.Value().(type) {
			case float64:
				f.Value = v
			case *float64:
				if v != nil {
					f.Value = *v
				}
			}
		}
		out.Fields = append(out.Fields, f)
	}
	return out
}

// #endregion helpers
