package state

import "fmt"

// #region easing
// Easing shapes the progress curve of a personality transition.
type Easing string

const (
	Linear    Easing = "linear"
	EaseIn    Easing = "ease_in"
	EaseOut   Easing = "ease_out"
	EaseInOut Easing = "ease_in_out"
)

// ParseEasing accepts the easing names used in config files.
func ParseEasing(s string) (Easing, error) {
	switch e := Easing(s); e {
	case Linear, EaseIn, EaseOut, EaseInOut:
		return e, nil
	case "":
		return Linear, nil
	}
	return "", fmt.Errorf("unknown easing %q", s)
}

// Apply maps linear progress t in [0,1] onto the eased curve.
func (e Easing) Apply(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	switch e {
	case EaseIn:
		return t * t
	case EaseOut:
		return t * (2 - t)
	case EaseInOut:
		if t < 0.5 {
			return 2 * t * t
		}
		return -1 + (4-2*t)*t
	}
	return t
}

// #endregion easing
