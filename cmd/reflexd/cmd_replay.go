package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/danielpatrickdp/reflex-engine/internal/replay"
	"github.com/spf13/cobra"
)

var replayFlags struct {
	jsonOut bool
}

var replayCmd = &cobra.Command{
	Use:   "replay fixture.json...",
	Short: "Replay stimulus fixtures through the tick pipeline and check their expectations",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runReplay,
}

func init() {
	replayCmd.Flags().BoolVar(&replayFlags.jsonOut, "json", false, "output summaries as JSON")
}

type replayReport struct {
	Fixture     string         `json:"fixture"`
	Description string         `json:"description"`
	Ticks       int            `json:"ticks"`
	TicksByMode map[string]int `json:"ticks_by_mode"`
	Transitions int            `json:"transitions"`
	Startles    int            `json:"startles"`
	FailSafes   int            `json:"fail_safes"`
	MaxDelta    float64        `json:"max_delta"`
	PeakTension float64        `json:"peak_tension"`
	CalmAt      int            `json:"calm_at,omitempty"`
	FinalMode   string         `json:"final_mode"`
	Failures    []string       `json:"failures,omitempty"`
}

func runReplay(cmd *cobra.Command, args []string) error {
	var reports []replayReport
	failed := 0
	for _, path := range args {
		f, err := replay.LoadFixture(path)
		if err != nil {
			return err
		}
		sum, failures, err := f.Run()
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if len(failures) > 0 {
			failed++
		}
		reports = append(reports, newReplayReport(path, f.Description, sum, failures))
	}

	out := cmd.OutOrStdout()
	if replayFlags.jsonOut {
		if err := printJSON(out, reports); err != nil {
			return err
		}
	} else {
		for _, r := range reports {
			printReplayReport(out, r)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d fixtures failed", failed, len(args))
	}
	return nil
}

func newReplayReport(path, desc string, sum replay.ReplaySummary, failures []string) replayReport {
	byMode := make(map[string]int, len(sum.TicksPerMode))
	for m, n := range sum.TicksPerMode {
		byMode[string(m)] = n
	}
	return replayReport{
		Fixture:     path,
		Description: desc,
		Ticks:       sum.Ticks,
		TicksByMode: byMode,
		Transitions: len(sum.Transitions),
		Startles:    sum.Startles,
		FailSafes:   sum.FailSafes,
		MaxDelta:    sum.MaxDelta,
		PeakTension: sum.PeakTension,
		CalmAt:      sum.CalmAt,
		FinalMode:   string(sum.Final.Mode),
		Failures:    failures,
	}
}

func printReplayReport(w io.Writer, r replayReport) {
	verdict := "PASS"
	if len(r.Failures) > 0 {
		verdict = "FAIL"
	}
	fmt.Fprintf(w, "%s  %s\n", verdict, r.Fixture)
	if r.Description != "" {
		fmt.Fprintf(w, "      %s\n", r.Description)
	}
	fmt.Fprintf(w, "      ticks %d  transitions %d  startles %d  fail-safes %d  max delta %.4f  peak tension %.3f\n",
		r.Ticks, r.Transitions, r.Startles, r.FailSafes, r.MaxDelta, r.PeakTension)

	modes := make([]string, 0, len(r.TicksByMode))
	for m := range r.TicksByMode {
		modes = append(modes, m)
	}
	sort.Strings(modes)
	for _, m := range modes {
		fmt.Fprintf(w, "      %-8s %5d ticks\n", m, r.TicksByMode[m])
	}
	if r.CalmAt > 0 {
		fmt.Fprintf(w, "      calm at tick %d\n", r.CalmAt)
	}
	fmt.Fprintf(w, "      final mode %s\n", r.FinalMode)
	for _, f := range r.Failures {
		fmt.Fprintf(w, "      - %s\n", f)
	}
}

