package dashboard

import (
	"time"

	"github.com/danielpatrickdp/reflex-engine/internal/broadcast"
	"github.com/danielpatrickdp/reflex-engine/internal/engine"
	"github.com/danielpatrickdp/reflex-engine/internal/profile"
	"github.com/danielpatrickdp/reflex-engine/internal/state"
	"github.com/danielpatrickdp/reflex-engine/internal/stimulus"
)

// #region engine
// Engine is the part of the reflex engine the dashboard reads and drives.
type Engine interface {
	SubmitStimulus(stimulus.Stimulus) error
	SetProfile(profile.Profile) error
	CurrentSnapshot() (state.Snapshot, error)
	Watch(name string, depth int) (*broadcast.Subscription, error)
	Unsubscribe(name string) error
	Stats() engine.Stats
}

// #endregion engine

// #region config
// Config tunes the HTTP server.
type Config struct {
	Addr            string
	StreamDepth     int           // mailbox depth of each websocket viewer
	WriteTimeout    time.Duration // per websocket frame
	ShutdownTimeout time.Duration
}

// DefaultConfig returns the dashboard defaults.
func DefaultConfig() Config {
	return Config{
		Addr:            "localhost:8061",
		StreamDepth:     8,
		WriteTimeout:    2 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

// #endregion config

// #region payloads
// PresetList is the body of GET /api/presets.
type PresetList struct {
	Names    []string `json:"names"`
	Featured []string `json:"featured"`
}

// ErrorBody is returned with every non-2xx response.
type ErrorBody struct {
	Error  string               `json:"error"`
	Fields []profile.FieldError `json:"fields,omitempty"`
}

// #endregion payloads
