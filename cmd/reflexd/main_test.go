package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielpatrickdp/reflex-engine/internal/logging"
	"github.com/danielpatrickdp/reflex-engine/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// execute runs the root command in-process and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	inspectFlags.run, inspectFlags.events, inspectFlags.kind, inspectFlags.jsonOut = "", false, "", false
	replayFlags.jsonOut = false
	presetsFlags.library = ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestPresetsTable(t *testing.T) {
	out, err := execute(t, "presets")
	require.NoError(t, err)
	assert.Contains(t, out, "energetic")
	assert.Contains(t, out, "anxious")
}

func TestPresetsYAML(t *testing.T) {
	out, err := execute(t, "presets", "zen")
	require.NoError(t, err)
	assert.Contains(t, out, "name: zen")
	assert.Contains(t, out, "recovery_speed: 0.9")

	_, err = execute(t, "presets", "nobody")
	assert.ErrorContains(t, err, "unknown preset")
}

func TestReplayCommand(t *testing.T) {
	fixture := filepath.Join("..", "..", "internal", "replay", "testdata", "spike_recovery.json")
	out, err := execute(t, "replay", fixture)
	require.NoError(t, err)
	assert.Contains(t, out, "PASS")
	assert.Contains(t, out, "final mode calm")

	out, err = execute(t, "replay", "--json", fixture)
	require.NoError(t, err)
	assert.Contains(t, out, `"final_mode": "calm"`)
}

func TestInspectCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timeline.db")
	store, err := state.NewStore(path)
	require.NoError(t, err)
	run, err := store.BeginRun("engine-1", "timid", 20)
	require.NoError(t, err)
	require.NoError(t, store.RecordSnapshot(run.RunID, state.Snapshot{
		Tick: 7, At: time.Now(), Mode: state.Spike, ProfileName: "timid", Startled: true,
		Scalars: state.Scalars{Tension: 0.82, Energy: 0.3, Coherence: 0.4, Curiosity: 0.1},
	}))
	require.NoError(t, logging.LogEvent(store.DB(), logging.EventEntry{
		RunID: run.RunID, Tick: 7, Kind: string(state.EventModeChanged),
		From: "calm", To: "spike", Rule: "startle", Tension: 0.82, CreatedAt: time.Now(),
	}))
	require.NoError(t, store.Close())

	out, err := execute(t, "inspect", "--db", path)
	require.NoError(t, err)
	assert.Contains(t, out, run.RunID)
	assert.Contains(t, out, "timid")

	out, err = execute(t, "inspect", "--db", path, "--run", run.RunID)
	require.NoError(t, err)
	assert.Contains(t, out, "spike")
	assert.Contains(t, out, "startled")

	out, err = execute(t, "inspect", "--db", path, "--run", run.RunID, "--events")
	require.NoError(t, err)
	assert.Contains(t, out, "mode_changed")
	assert.Contains(t, out, "startle")
}

func TestPokeRejectsBadInput(t *testing.T) {
	_, err := execute(t, "poke", "smell", "0.5", "--addr", "localhost:1")
	assert.Error(t, err)
	_, err = execute(t, "poke", "touch", "loud", "--addr", "localhost:1")
	assert.ErrorContains(t, err, "intensity")
}

func TestOpenFramesStopsWithContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sensors.jsonl")
	var lines bytes.Buffer
	for i := 0; i < 50; i++ {
		lines.WriteString(`{"distance_cm": 12}` + "\n")
	}
	require.NoError(t, os.WriteFile(path, lines.Bytes(), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	frames, err := openFrames(ctx, path, zap.NewNop())
	require.NoError(t, err)

	<-frames
	cancel()
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-frames:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("frame reader still running after cancel")
		}
	}
}
