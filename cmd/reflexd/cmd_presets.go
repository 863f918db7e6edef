package main

import (
	"fmt"
	"io"

	"github.com/danielpatrickdp/reflex-engine/internal/profile"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var presetsFlags struct {
	library string
}

var presetsCmd = &cobra.Command{
	Use:   "presets [name]",
	Short: "List personality presets, or print one as YAML",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPresets,
}

func init() {
	presetsCmd.Flags().StringVar(&presetsFlags.library, "library", "", "YAML preset library to overlay on the built-ins")
}

func runPresets(cmd *cobra.Command, args []string) error {
	lib := profile.NewLibrary()
	if presetsFlags.library != "" {
		var err error
		if lib, err = profile.LoadLibrary(presetsFlags.library); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if len(args) == 1 {
		p, ok := lib.Get(args[0])
		if !ok {
			return fmt.Errorf("unknown preset %q", args[0])
		}
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(profile.SpecOf(p)); err != nil {
			return err
		}
		return enc.Close()
	}
	printPresetTable(out, lib)
	return nil
}

func printPresetTable(w io.Writer, lib *profile.Library) {
	fmt.Fprintf(w, "%-12s  %5s %5s %5s  %5s %5s %5s  %5s %5s %5s\n",
		"Preset", "Ten", "Ene", "Coh", "Stl", "Rec", "Cur", "Mov", "Snd", "Lgt")
	for _, name := range lib.Names() {
		p, _ := lib.Get(name)
		b, r, e := p.Baselines, p.Reactivity, p.Expression
		fmt.Fprintf(w, "%-12s  %5.2f %5.2f %5.2f  %5.2f %5.2f %5.2f  %5.2f %5.2f %5.2f\n",
			name, b.Tension, b.Energy, b.Coherence,
			r.StartleSensitivity, r.RecoverySpeed, r.CuriosityDrive,
			e.Movement, e.Sound, e.Light)
	}
	if sel, ok := lib.Selected(); ok {
		fmt.Fprintf(w, "\nselected: %s\n", sel.Name)
	}
}
