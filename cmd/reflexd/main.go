// reflexd runs the reflex engine and its tooling.
//
// Usage:
//
//	reflexd run [--config reflexd.yaml] [--sensors frames.jsonl|-]
//	reflexd replay fixture.json...
//	reflexd inspect --db reflex.db [--run id] [--events]
//	reflexd presets [name]
//	reflexd watch|poke|switch --addr host:port
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	config  string
	verbose bool
}

var rootCmd = &cobra.Command{
	Use:   "reflexd",
	Short: "Reflex engine for a companion robot",
	Long:  "reflexd turns sensor stimuli and a personality profile into a 20 Hz stream\nof affective state snapshots and behavior modes.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.config, "config", "", "YAML configuration file")
	pf.BoolVarP(&rootFlags.verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(presetsCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(pokeCmd)
	rootCmd.AddCommand(switchCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newLogger builds the process logger; --verbose switches to debug level.
func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}
