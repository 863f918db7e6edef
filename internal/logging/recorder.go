package logging

import (
	"sync/atomic"

	"github.com/danielpatrickdp/reflex-engine/internal/state"
	"go.uber.org/zap"
)

// #region recorder
// Recorder is a broadcast consumer that persists a sampled timeline of one run
// and every event riding on the snapshot stream.
type Recorder struct {
	store  *state.Store
	runID  string
	config RecorderConfig
	logger *zap.Logger

	recorded atomic.Uint64
	events   atomic.Uint64
	failures atomic.Uint64
}

// NewRecorder records into the run runID of store.
func NewRecorder(store *state.Store, runID string, config RecorderConfig, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.SampleEvery == 0 {
		config.SampleEvery = 1
	}
	return &Recorder{store: store, runID: runID, config: config, logger: logger}
}

// Consume persists s when it is sampled or carries events.
func (r *Recorder) Consume(s state.Snapshot) {
	if s.Tick%r.config.SampleEvery != 0 && len(s.Events) == 0 {
		return
	}
	if err := r.store.RecordSnapshot(r.runID, s); err != nil {
		r.failures.Add(1)
		r.logger.Warn("record snapshot failed", zap.Uint64("tick", s.Tick), zap.Error(err))
		return
	}
	r.recorded.Add(1)

	for _, ev := range s.Events {
		err := LogEvent(r.store.DB(), EventEntry{
			RunID:     r.runID,
			Tick:      s.Tick,
			Kind:      string(ev.Kind),
			From:      ev.From,
			To:        ev.To,
			Rule:      ev.Rule,
			Reason:    ev.Reason,
			Tension:   s.Tension,
			Progress:  ev.Progress,
			CreatedAt: s.At,
		})
		if err != nil {
			r.failures.Add(1)
			r.logger.Warn("record event failed", zap.String("kind", string(ev.Kind)), zap.Error(err))
			continue
		}
		r.events.Add(1)
	}
}

// Depth is the mailbox depth the recorder should be subscribed with.
func (r *Recorder) Depth() int { return r.config.Depth }

// Counts returns how many snapshots and events were written and how many writes failed.
func (r *Recorder) Counts() (snapshots, events, failures uint64) {
	return r.recorded.Load(), r.events.Load(), r.failures.Load()
}

// #endregion recorder
