package state

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/danielpatrickdp/reflex-engine/internal/profile"
)

func tempDB(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBeginAndListRuns(t *testing.T) {
	s := tempDB(t)

	run, err := s.BeginRun("engine-1", "curious", 20)
	if err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	if run.RunID == "" {
		t.Fatal("expected non-empty run ID")
	}
	if err := s.EndRun(run.RunID, time.Now()); err != nil {
		t.Fatalf("EndRun: %v", err)
	}

	runs, err := s.ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	if runs[0].ProfileName != "curious" || runs[0].TickHz != 20 {
		t.Fatalf("unexpected run: %+v", runs[0])
	}
	if runs[0].EndedAt.IsZero() {
		t.Fatal("expected ended_at to be set")
	}
}

func TestEndRunUnknown(t *testing.T) {
	s := tempDB(t)
	if err := s.EndRun("missing", time.Now()); err == nil {
		t.Fatal("expected error for unknown run")
	}
}

func TestRecordAndListSnapshots(t *testing.T) {
	s := tempDB(t)
	run, err := s.BeginRun("engine-1", "timid", 20)
	if err != nil {
		t.Fatalf("BeginRun: %v", err)
	}

	base := time.Now().UTC()
	for i := 1; i <= 3; i++ {
		snap := Snapshot{
			Tick:        uint64(i),
			At:          base.Add(time.Duration(i) * 50 * time.Millisecond),
			Scalars:     Scalars{Tension: 0.1 * float64(i), Energy: 0.3, Coherence: 0.7, Curiosity: 0.05},
			Mode:        Calm,
			ProfileName: "timid",
			Expression:  profile.Expression{Movement: 0.4, Sound: 0.2, Light: 0.4},
		}
		if i == 3 {
			snap.Mode = Spike
			snap.Startled = true
		}
		if err := s.RecordSnapshot(run.RunID, snap); err != nil {
			t.Fatalf("RecordSnapshot: %v", err)
		}
	}

	snaps, err := s.ListSnapshots(run.RunID, 2)
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snaps))
	}
	if snaps[0].Tick != 3 || snaps[0].Mode != Spike || !snaps[0].Startled {
		t.Fatalf("unexpected newest snapshot: %+v", snaps[0])
	}
	if want := 0.1 * float64(3); snaps[0].Tension != want {
		t.Fatalf("tension round trip: got %v", snaps[0].Tension)
	}
	if snaps[1].Expression.Movement != 0.4 {
		t.Fatalf("expression round trip: got %+v", snaps[1].Expression)
	}
}

func TestScalarEncoding(t *testing.T) {
	in := Scalars{Tension: 0.25, Energy: 1, Coherence: 0, Curiosity: 0.125}
	if got := decodeScalars(encodeScalars(in)); got != in {
		t.Fatalf("got %+v, want %+v", got, in)
	}
	if got := decodeScalars([]byte{1, 2}); got != (Scalars{}) {
		t.Fatalf("short blob should decode to zero, got %+v", got)
	}
}

func TestEasingEndpoints(t *testing.T) {
	for _, e := range []Easing{Linear, EaseIn, EaseOut, EaseInOut} {
		if e.Apply(0) != 0 || e.Apply(1) != 1 {
			t.Fatalf("%s: endpoints not fixed", e)
		}
		prev := 0.0
		for i := 1; i <= 20; i++ {
			v := e.Apply(float64(i) / 20)
			if v < prev {
				t.Fatalf("%s: not monotonic at %d", e, i)
			}
			prev = v
		}
	}
	if _, err := ParseEasing("bounce"); err == nil {
		t.Fatal("expected error for unknown easing")
	}
}
