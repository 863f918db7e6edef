package main

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/danielpatrickdp/reflex-engine/internal/config"
	"github.com/danielpatrickdp/reflex-engine/internal/profile"
	"github.com/danielpatrickdp/reflex-engine/internal/remote"
	"github.com/danielpatrickdp/reflex-engine/internal/state"
	"github.com/danielpatrickdp/reflex-engine/internal/stimulus"
	"github.com/spf13/cobra"
	"google.golang.org/protobuf/encoding/protojson"
)

var remoteFlags struct {
	addr    string
	valence float64
	source  string
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream snapshots from a running reflexd as JSON lines",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

var pokeCmd = &cobra.Command{
	Use:   "poke kind intensity",
	Short: "Send one stimulus to a running reflexd",
	Args:  cobra.ExactArgs(2),
	RunE:  runPoke,
}

var switchCmd = &cobra.Command{
	Use:   "switch preset",
	Short: "Switch the personality of a running reflexd",
	Args:  cobra.ExactArgs(1),
	RunE:  runSwitch,
}

func init() {
	for _, c := range []*cobra.Command{watchCmd, pokeCmd, switchCmd} {
		c.Flags().StringVar(&remoteFlags.addr, "addr", "", "gRPC address (defaults to the configured one)")
	}
	pokeCmd.Flags().Float64Var(&remoteFlags.valence, "valence", 1, "valence in [-1,1]; negative soothes")
	pokeCmd.Flags().StringVar(&remoteFlags.source, "source", "cli", "source label")
}

func dialRemote() (*remote.Client, error) {
	addr := remoteFlags.addr
	if addr == "" {
		cfg, err := config.Load(rootFlags.config)
		if err != nil {
			return nil, err
		}
		addr = cfg.Remote.Addr
	}
	return remote.NewClient(addr)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	client, err := dialRemote()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	err = client.Watch(ctx, "", 0, func(s state.Snapshot) error {
		msg, err := remote.SnapshotStruct(s)
		if err != nil {
			return err
		}
		line, err := protojson.Marshal(msg)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "%s\n", line)
		return err
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func runPoke(cmd *cobra.Command, args []string) error {
	kind, err := stimulus.ParseKind(args[0])
	if err != nil {
		return err
	}
	intensity, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("intensity: %w", err)
	}
	client, err := dialRemote()
	if err != nil {
		return err
	}
	defer client.Close()

	s := stimulus.New(kind, intensity, time.Now()).WithValence(remoteFlags.valence)
	s.Source = remoteFlags.source
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()
	return client.SubmitStimulus(ctx, s)
}

func runSwitch(cmd *cobra.Command, args []string) error {
	p, ok := profile.Preset(args[0])
	if !ok {
		return fmt.Errorf("unknown preset %q", args[0])
	}
	client, err := dialRemote()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()
	if err := client.SetProfile(ctx, p); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "switching to %s\n", p.Name)
	return nil
}
