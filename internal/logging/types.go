package logging

import "time"

// #region event-entry
// EventEntry is a single row in the events table.
type EventEntry struct {
	RunID     string
	Tick      uint64
	Kind      string // mode_changed | transition_started | transition_completed | transition_cancelled | fail_safe
	From      string
	To        string
	Rule      string
	Reason    string
	Tension   float64
	Progress  float64
	CreatedAt time.Time
}

// #endregion event-entry

// #region recorder-config
// RecorderConfig controls how much of the snapshot stream is persisted.
type RecorderConfig struct {
	SampleEvery uint64 // keep every Nth snapshot; ticks with events are always kept
	Depth       int    // mailbox depth of the recorder subscription
}

// DefaultRecorderConfig keeps one snapshot per second at 20 Hz.
func DefaultRecorderConfig() RecorderConfig {
	return RecorderConfig{SampleEvery: 20, Depth: 256}
}

// #endregion recorder-config
