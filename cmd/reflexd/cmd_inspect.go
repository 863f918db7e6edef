package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/danielpatrickdp/reflex-engine/internal/logging"
	"github.com/danielpatrickdp/reflex-engine/internal/state"
	"github.com/spf13/cobra"
)

var inspectFlags struct {
	db      string
	run     string
	last    int
	events  bool
	kind    string
	jsonOut bool
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show recorded runs, snapshots and events from a timeline database",
	RunE:  runInspect,
}

func init() {
	f := inspectCmd.Flags()
	f.StringVar(&inspectFlags.db, "db", "", "path to the timeline database (required)")
	f.StringVar(&inspectFlags.run, "run", "", "run id; lists runs when empty")
	f.IntVar(&inspectFlags.last, "last", 20, "show N most recent rows")
	f.BoolVar(&inspectFlags.events, "events", false, "show events instead of snapshots")
	f.StringVar(&inspectFlags.kind, "kind", "", "filter events by kind")
	f.BoolVar(&inspectFlags.jsonOut, "json", false, "output as JSON instead of a table")
	_ = inspectCmd.MarkFlagRequired("db")
}

func runInspect(cmd *cobra.Command, _ []string) error {
	store, err := state.NewStore(inspectFlags.db)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	out := cmd.OutOrStdout()
	switch {
	case inspectFlags.run == "":
		runs, err := store.ListRuns(inspectFlags.last)
		if err != nil {
			return err
		}
		if inspectFlags.jsonOut {
			return printJSON(out, runs)
		}
		printRuns(out, runs)
	case inspectFlags.events:
		events, err := logging.ListEvents(store.DB(), inspectFlags.run, inspectFlags.kind, inspectFlags.last)
		if err != nil {
			return err
		}
		if inspectFlags.jsonOut {
			return printJSON(out, events)
		}
		printEvents(out, events)
	default:
		snaps, err := store.ListSnapshots(inspectFlags.run, inspectFlags.last)
		if err != nil {
			return err
		}
		if inspectFlags.jsonOut {
			return printJSON(out, snaps)
		}
		printSnapshots(out, snaps)
	}
	return nil
}

func printRuns(w io.Writer, runs []state.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "no runs recorded")
		return
	}
	fmt.Fprintf(w, "%-36s  %-12s  %4s  %-20s  %s\n", "Run", "Profile", "Hz", "Started", "Ended")
	for _, r := range runs {
		ended := "-"
		if !r.EndedAt.IsZero() {
			ended = r.EndedAt.Format("2006-01-02T15:04:05Z")
		}
		fmt.Fprintf(w, "%-36s  %-12s  %4d  %-20s  %s\n",
			r.RunID, r.ProfileName, r.TickHz, r.StartedAt.Format("2006-01-02T15:04:05Z"), ended)
	}
}

func printSnapshots(w io.Writer, snaps []state.Snapshot) {
	if len(snaps) == 0 {
		fmt.Fprintln(w, "no snapshots recorded")
		return
	}
	fmt.Fprintf(w, "%8s  %-8s  %7s  %7s  %9s  %9s  %s\n", "Tick", "Mode", "Tension", "Energy", "Coherence", "Curiosity", "Flags")
	// newest first from the store; print chronologically
	for i := len(snaps) - 1; i >= 0; i-- {
		s := snaps[i]
		flags := ""
		if s.Startled {
			flags += "startled "
		}
		if s.Transitioning {
			flags += "transitioning"
		}
		fmt.Fprintf(w, "%8d  %-8s  %7.3f  %7.3f  %9.3f  %9.3f  %s\n",
			s.Tick, s.Mode, s.Tension, s.Energy, s.Coherence, s.Curiosity, flags)
	}
}

func printEvents(w io.Writer, events []logging.EventEntry) {
	if len(events) == 0 {
		fmt.Fprintln(w, "no events recorded")
		return
	}
	fmt.Fprintf(w, "%8s  %-22s  %-8s  %-8s  %-18s  %7s  %s\n", "Tick", "Kind", "From", "To", "Rule", "Tension", "Reason")
	for _, e := range events {
		fmt.Fprintf(w, "%8d  %-22s  %-8s  %-8s  %-18s  %7.3f  %s\n",
			e.Tick, e.Kind, e.From, e.To, e.Rule, e.Tension, e.Reason)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
