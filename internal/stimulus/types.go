package stimulus

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// #region kind
// Kind enumerates the external event categories the engine understands.
type Kind string

const (
	Proximity Kind = "proximity"
	Sound     Kind = "sound"
	Touch     Kind = "touch"
	Voice     Kind = "voice"
)

// Kinds lists every kind in canonical order.
var Kinds = []Kind{Proximity, Sound, Touch, Voice}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case Proximity, Sound, Touch, Voice:
		return true
	}
	return false
}

// ParseKind converts a case-insensitive name into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("unknown stimulus kind %q", s)
	}
	return k, nil
}

// #endregion kind

// #region stimulus
// Stimulus is a transient external event, consumed at most once.
type Stimulus struct {
	Kind      Kind      `json:"kind"`
	Intensity float64   `json:"intensity"`
	Valence   *float64  `json:"valence,omitempty"` // nil means +1: raises tension
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source,omitempty"`
}

// New builds a stimulus with default (positive) valence.
func New(kind Kind, intensity float64, at time.Time) Stimulus {
	return Stimulus{Kind: kind, Intensity: intensity, Timestamp: at}
}

// WithValence returns a copy of s carrying valence v.
func (s Stimulus) WithValence(v float64) Stimulus {
	s.Valence = &v
	return s
}

// Sign returns the effective valence, +1 when none was given.
func (s Stimulus) Sign() float64 {
	if s.Valence == nil {
		return 1
	}
	return *s.Valence
}

// Normalize clamps intensity into [0,1] and valence into [-1,1]. Non-finite
// values become zero. The second result reports whether anything was out of range.
func Normalize(s Stimulus) (Stimulus, bool) {
	var clamped bool
	s.Intensity, clamped = clampRange(s.Intensity, 0, 1)
	if s.Valence != nil {
		v, vc := clampRange(*s.Valence, -1, 1)
		s.Valence = &v
		clamped = clamped || vc
	}
	return s, clamped
}

func clampRange(v, lo, hi float64) (float64, bool) {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return 0, true
	case v < lo:
		return lo, true
	case v > hi:
		return hi, true
	}
	return v, false
}

// #endregion stimulus
