package config

import "time"

// #region config
// Config is the reflexd configuration file.
type Config struct {
	Engine    EngineConfig    `yaml:"engine"`
	Tuning    TuningConfig    `yaml:"tuning"`
	Profile   ProfileConfig   `yaml:"profile"`
	Storage   StorageConfig   `yaml:"storage"`
	Remote    RemoteConfig    `yaml:"remote"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Sensors   SensorsConfig   `yaml:"sensors"`
}

// EngineConfig sizes the tick loop.
type EngineConfig struct {
	TickHz          int `yaml:"tick_hz" validate:"gte=10,lte=30"`
	QueueCapacity   int `yaml:"queue_capacity" validate:"gte=1"`
	SubscriberDepth int `yaml:"subscriber_depth" validate:"gte=1"`
}

// TuningConfig exposes the reaction constants that are safe to change.
type TuningConfig struct {
	Transition       time.Duration `yaml:"transition" validate:"gte=2s,lte=3s"`
	Easing           string        `yaml:"easing" validate:"oneof=linear ease_in ease_out ease_in_out"`
	StartleThreshold float64       `yaml:"startle_threshold" validate:"gt=0,lt=1"`
	ProtectThreshold float64       `yaml:"protect_threshold" validate:"gt=0,lte=1"`
	CalmThreshold    float64       `yaml:"calm_threshold" validate:"gt=0,lt=1"`
	ActiveEnter      float64       `yaml:"active_enter" validate:"gt=0,lt=1"`
	ActiveExit       float64       `yaml:"active_exit" validate:"gt=0,lt=1"`
}

// ProfileConfig selects the starting personality.
type ProfileConfig struct {
	Preset  string `yaml:"preset"`
	Library string `yaml:"library"` // optional YAML preset library, hot reloaded
}

// StorageConfig controls the sqlite timeline recorder. An empty path disables it.
type StorageConfig struct {
	Path        string `yaml:"path"`
	SampleEvery int    `yaml:"sample_every" validate:"gte=1"`
}

// RemoteConfig is the gRPC listener. An empty address disables it.
type RemoteConfig struct {
	Addr string `yaml:"addr"`
}

// DashboardConfig is the HTTP listener. An empty address disables it.
type DashboardConfig struct {
	Addr string `yaml:"addr"`
}

// SensorsConfig tunes the raw sensor detector.
type SensorsConfig struct {
	NearCM     float64 `yaml:"near_cm" validate:"gt=0"`
	SoundFloor float64 `yaml:"sound_floor" validate:"gte=0,lt=1"`
}

// #endregion config
