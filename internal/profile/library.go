package profile

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// #region library
// LibraryFile is the on-disk YAML layout of a user preset library.
type LibraryFile struct {
	Selected string `yaml:"selected,omitempty"`
	Presets  []Spec `yaml:"presets"`
}

// Library is the set of built-in presets overlaid with user-defined ones.
type Library struct {
	selected string
	presets  map[string]Profile
}

// NewLibrary returns a library containing only the built-in presets.
func NewLibrary() *Library {
	l := &Library{presets: make(map[string]Profile, len(builtin))}
	for k, v := range builtin {
		l.presets[k] = v
	}
	return l
}

// LoadLibrary reads a YAML preset library. Every entry is validated; the first
// invalid entry rejects the whole file.
func LoadLibrary(path string) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read library: %w", err)
	}
	return ParseLibrary(data)
}

// ParseLibrary decodes a YAML preset library.
func ParseLibrary(data []byte) (*Library, error) {
	var f LibraryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse library: %w", err)
	}
	l := NewLibrary()
	for i, spec := range f.Presets {
		name := strings.ToLower(strings.TrimSpace(spec.Name))
		if name == "" {
			return nil, fmt.Errorf("preset %d: name is required", i)
		}
		p, err := spec.Profile()
		if err != nil {
			return nil, fmt.Errorf("preset %q: %w", name, err)
		}
		p.Name = name
		l.presets[name] = p
	}
	l.selected = strings.ToLower(strings.TrimSpace(f.Selected))
	if l.selected != "" {
		if _, ok := l.presets[l.selected]; !ok {
			return nil, fmt.Errorf("selected preset %q not defined", l.selected)
		}
	}
	return l, nil
}

// #endregion library

// #region lookup
// Get returns the named preset.
func (l *Library) Get(name string) (Profile, bool) {
	p, ok := l.presets[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// Selected returns the preset named by the file's selected key, if any.
func (l *Library) Selected() (Profile, bool) {
	if l.selected == "" {
		return Profile{}, false
	}
	return l.Get(l.selected)
}

// Names returns every preset name in sorted order.
func (l *Library) Names() []string {
	names := make([]string, 0, len(l.presets))
	for n := range l.presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// #endregion lookup
