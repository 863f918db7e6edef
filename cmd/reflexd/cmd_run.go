package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielpatrickdp/reflex-engine/internal/config"
	"github.com/danielpatrickdp/reflex-engine/internal/dashboard"
	"github.com/danielpatrickdp/reflex-engine/internal/engine"
	"github.com/danielpatrickdp/reflex-engine/internal/logging"
	"github.com/danielpatrickdp/reflex-engine/internal/mapper"
	"github.com/danielpatrickdp/reflex-engine/internal/profile"
	"github.com/danielpatrickdp/reflex-engine/internal/remote"
	"github.com/danielpatrickdp/reflex-engine/internal/signals"
	"github.com/danielpatrickdp/reflex-engine/internal/state"
	"github.com/danielpatrickdp/reflex-engine/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var runFlags struct {
	sensors string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the engine with its recorder, mappers and servers",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&runFlags.sensors, "sensors", "", "JSON-lines sensor frames to feed the detector ('-' for stdin)")
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(rootFlags.config)
	if err != nil {
		return err
	}
	logger, err := newLogger(rootFlags.verbose)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ec, err := cfg.EngineConfig()
	if err != nil {
		return err
	}
	initial, ok := profile.Preset(cfg.Profile.Preset)
	if !ok {
		return fmt.Errorf("unknown preset %q", cfg.Profile.Preset)
	}
	profiles, err := profile.NewStore(initial)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	eng, err := engine.New(profiles,
		engine.WithConfig(ec),
		engine.WithLogger(logger),
		engine.WithMetrics(telemetry.New(reg)))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Storage.Path != "" {
		timeline, err := state.NewStore(cfg.Storage.Path)
		if err != nil {
			return err
		}
		defer timeline.Close()
		run, err := timeline.BeginRun(eng.ID(), initial.Name, ec.TickHz)
		if err != nil {
			return err
		}
		defer func() { _ = timeline.EndRun(run.RunID, time.Now()) }()

		rc := logging.DefaultRecorderConfig()
		rc.SampleEvery = uint64(cfg.Storage.SampleEvery)
		rec := logging.NewRecorder(timeline, run.RunID, rc, logger)
		if _, err := eng.SubscribeDepth("recorder", rec, rec.Depth()); err != nil {
			return err
		}
		logger.Info("recording timeline", zap.String("db", cfg.Storage.Path), zap.String("run_id", run.RunID))
	}

	outputs, err := mapper.Attach(eng, mapper.Outputs{})
	if err != nil {
		return err
	}

	if err := eng.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = eng.Stop() }()

	g, gctx := errgroup.WithContext(ctx)

	var grpcSrv *remote.Server
	if cfg.Remote.Addr != "" {
		lis, err := net.Listen("tcp", cfg.Remote.Addr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", cfg.Remote.Addr, err)
		}
		grpcSrv = remote.NewServer(eng, logger)
		g.Go(func() error { return grpcSrv.Serve(lis) })
	}

	if cfg.Dashboard.Addr != "" {
		dc := dashboard.DefaultConfig()
		dc.Addr = cfg.Dashboard.Addr
		dash := dashboard.New(eng, reg, dc, logger)
		dash.ServeOutputs(func() any { return outputs.Latest() })
		g.Go(func() error { return dash.Run(gctx) })
	}

	if cfg.Profile.Library != "" {
		w, err := profile.NewWatcher(cfg.Profile.Library, profiles, logger, nil)
		if err != nil {
			return err
		}
		g.Go(func() error { return w.Run(gctx) })
	}

	if runFlags.sensors != "" {
		frames, err := openFrames(gctx, runFlags.sensors, logger)
		if err != nil {
			return err
		}
		producer := signals.NewProducer(cfg.ProducerConfig())
		g.Go(func() error { return producer.Pump(gctx, frames, eng) })
	}

	// Streams end when the broadcaster closes, so the engine stops before the gRPC server drains.
	g.Go(func() error {
		<-gctx.Done()
		_ = eng.Stop()
		if grpcSrv != nil {
			grpcSrv.Stop()
		}
		return nil
	})

	err = g.Wait()
	st := eng.Stats()
	logger.Info("reflexd exiting",
		zap.Uint64("ticks", st.Ticks),
		zap.Uint64("stimuli_applied", st.StimuliApplied),
		zap.Uint64("stimuli_dropped", st.StimuliDropped),
		zap.Uint64("fail_safes", st.FailSafes))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// openFrames decodes JSON-lines sensor frames from path in the background.
// The channel closes at end of input or when ctx is done.
// The channel closes at end of input.
func openFrames(ctx context.Context, path string, logger *zap.Logger) (<-chan signals.Frame, error) {
	var r io.ReadCloser = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open sensors: %w", err)
		}
		r = f
	}
	frames := make(chan signals.Frame)
	stop := context.AfterFunc(ctx, func() { _ = r.Close() })
	go func() {
		defer close(frames)
		defer func() {
			if stop() {
				_ = r.Close()
			}
		}()
		sc := bufio.NewScanner(r)
		for line := 1; sc.Scan(); line++ {
			var f signals.Frame
			if err := json.Unmarshal(sc.Bytes(), &f); err != nil {
				logger.Warn("skipping sensor frame", zap.Int("line", line), zap.Error(err))
				continue
			}
			if f.At.IsZero() {
				f.At = time.Now()
			}
			select {
			case frames <- f:
			case <-ctx.Done():
				return
			}
		}
		if err := sc.Err(); err != nil && ctx.Err() == nil {
			logger.Warn("sensor input ended", zap.Error(err))
		}
	}()
	return frames, nil
}
