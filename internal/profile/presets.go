package profile

import (
	"sort"
	"strings"
)

// #region presets
// preset builds a profile from the flat parameter tuple used by the preset table.
func preset(name string, tension, coherence, energy, startle, recovery, curiosity, movement, sound, light float64) Profile {
	return Profile{
		Name:       name,
		Baselines:  Baselines{Tension: tension, Energy: energy, Coherence: coherence},
		Reactivity: Reactivity{StartleSensitivity: startle, RecoverySpeed: recovery, CuriosityDrive: curiosity},
		Expression: Expression{Movement: movement, Sound: sound, Light: light},
	}
}

// builtin is keyed by lower-case name. Column order: tension, coherence, energy baselines;
// startle, recovery, curiosity; movement, sound, light.
var builtin = map[string]Profile{
	"curious":     preset("curious", 0.4, 0.6, 0.7, 0.6, 0.5, 0.9, 0.7, 0.6, 0.8),
	"timid":       preset("timid", 0.5, 0.4, 0.3, 0.9, 0.2, 0.4, 0.4, 0.2, 0.4),
	"calm":        preset("calm", 0.1, 0.9, 0.4, 0.2, 0.9, 0.5, 0.3, 0.2, 0.4),
	"energetic":   preset("energetic", 0.5, 0.6, 0.85, 0.6, 0.7, 0.8, 1.0, 0.9, 0.9),
	"grumpy":      preset("grumpy", 0.7, 0.3, 0.4, 0.7, 0.3, 0.2, 0.5, 0.4, 0.4),
	"mellow":      preset("mellow", 0.2, 0.7, 0.4, 0.2, 0.8, 0.4, 0.3, 0.2, 0.5),
	"zen":         preset("zen", 0.1, 0.9, 0.3, 0.1, 0.9, 0.3, 0.2, 0.1, 0.3),
	"playful":     preset("playful", 0.3, 0.6, 0.9, 0.5, 0.9, 0.8, 0.9, 0.8, 0.8),
	"cautious":    preset("cautious", 0.5, 0.7, 0.5, 0.6, 0.5, 0.6, 0.4, 0.3, 0.5),
	"excitable":   preset("excitable", 0.6, 0.5, 0.9, 0.8, 0.4, 0.8, 0.9, 0.9, 0.9),
	"adventurous": preset("adventurous", 0.3, 0.7, 0.8, 0.3, 0.7, 0.9, 0.8, 0.7, 0.8),
	"shy":         preset("shy", 0.6, 0.5, 0.3, 0.8, 0.3, 0.5, 0.2, 0.1, 0.3),
	"cheerful":    preset("cheerful", 0.2, 0.8, 0.8, 0.4, 0.8, 0.7, 0.8, 0.9, 0.9),
	"serious":     preset("serious", 0.4, 0.9, 0.6, 0.3, 0.6, 0.6, 0.5, 0.4, 0.5),
	"anxious":     preset("anxious", 0.8, 0.3, 0.6, 1.0, 0.2, 0.4, 0.6, 0.5, 0.6),
}

// Featured lists the presets offered by default in selection UIs.
var Featured = []string{"curious", "timid", "calm", "energetic", "grumpy", "mellow", "zen", "playful", "cautious"}

// Default returns the neutral profile with every parameter at 0.5.
func Default() Profile {
	return preset("default", 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5)
}

// Preset looks up a built-in preset by name, case-insensitively.
func Preset(name string) (Profile, bool) {
	p, ok := builtin[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// PresetNames returns all built-in preset names in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(builtin))
	for n := range builtin {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// #endregion presets
