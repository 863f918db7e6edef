// Package config loads the reflexd configuration from YAML with environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/danielpatrickdp/reflex-engine/internal/engine"
	"github.com/danielpatrickdp/reflex-engine/internal/signals"
	"github.com/danielpatrickdp/reflex-engine/internal/state"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// #region defaults
// DefaultConfig returns the configuration reflexd runs with when no file is given.
func DefaultConfig() Config {
	ec := engine.DefaultConfig()
	sc := signals.DefaultProducerConfig()
	return Config{
		Engine: EngineConfig{
			TickHz:          ec.TickHz,
			QueueCapacity:   ec.QueueCapacity,
			SubscriberDepth: ec.SubscriberDepth,
		},
		Tuning: TuningConfig{
			Transition:       ec.Update.TransitionWindow,
			Easing:           string(ec.Update.TransitionEasing),
			StartleThreshold: ec.Update.StartleThreshold,
			ProtectThreshold: ec.Mode.ProtectThreshold,
			CalmThreshold:    ec.Mode.CalmRecoveryThreshold,
			ActiveEnter:      ec.Mode.ActiveEnter,
			ActiveExit:       ec.Mode.ActiveExit,
		},
		Profile:   ProfileConfig{Preset: "curious"},
		Storage:   StorageConfig{SampleEvery: 20},
		Remote:    RemoteConfig{Addr: "localhost:50061"},
		Dashboard: DashboardConfig{Addr: "localhost:8061"},
		Sensors:   SensorsConfig{NearCM: sc.NearCM, SoundFloor: sc.SoundFloor},
	}
}

// #endregion defaults

// #region load
// Load reads path over the defaults, applies environment overrides and validates
// the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := envOr("REFLEX_TICK_HZ", ""); v != "" {
		hz, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REFLEX_TICK_HZ: %w", err)
		}
		cfg.Engine.TickHz = hz
	}
	cfg.Storage.Path = envOr("REFLEX_DB", cfg.Storage.Path)
	cfg.Remote.Addr = envOr("REFLEX_GRPC_ADDR", cfg.Remote.Addr)
	cfg.Dashboard.Addr = envOr("REFLEX_HTTP_ADDR", cfg.Dashboard.Addr)
	cfg.Profile.Preset = envOr("REFLEX_PROFILE", cfg.Profile.Preset)
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion load

// #region validate
var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field ranges and the threshold ordering of the tuning block.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	ec, err := c.EngineConfig()
	if err != nil {
		return err
	}
	return ec.Mode.Validate()
}

// #endregion validate

// #region engine
// EngineConfig converts the file form into the engine's configuration.
func (c Config) EngineConfig() (engine.Config, error) {
	ec := engine.DefaultConfig()
	ec.TickHz = c.Engine.TickHz
	ec.QueueCapacity = c.Engine.QueueCapacity
	ec.SubscriberDepth = c.Engine.SubscriberDepth

	easing, err := state.ParseEasing(c.Tuning.Easing)
	if err != nil {
		return ec, err
	}
	ec.Update.TransitionEasing = easing
	ec.Update.TransitionWindow = c.Tuning.Transition
	ec.Update.StartleThreshold = c.Tuning.StartleThreshold
	ec.Mode.SpikeThreshold = c.Tuning.StartleThreshold
	ec.Mode.ProtectThreshold = c.Tuning.ProtectThreshold
	ec.Mode.CalmRecoveryThreshold = c.Tuning.CalmThreshold
	ec.Mode.ActiveEnter = c.Tuning.ActiveEnter
	ec.Mode.ActiveExit = c.Tuning.ActiveExit
	ec.Mode.TickPeriod = ec.TickPeriod()
	ec.Update.TickPeriod = ec.TickPeriod()
	return ec, nil
}

// ProducerConfig converts the sensors block into the detector configuration.
func (c Config) ProducerConfig() signals.ProducerConfig {
	pc := signals.DefaultProducerConfig()
	pc.NearCM = c.Sensors.NearCM
	pc.SoundFloor = c.Sensors.SoundFloor
	return pc
}

// #endregion engine
