package signals

import (
	"time"

	"github.com/danielpatrickdp/reflex-engine/internal/stimulus"
)

// #region sink-interface
// Sink receives detected stimuli. The engine satisfies it.
type Sink interface {
	SubmitStimulus(stimulus.Stimulus) error
}

// #endregion sink-interface

// #region config
// ProducerConfig holds the detection thresholds and per-kind refractory periods.
type ProducerConfig struct {
	NearCM        float64 // obstacles closer than this produce proximity stimuli
	SoundFloor    float64 // sound level below this is ambient
	TouchStrength float64 // intensity of a touch onset
	MinIntensity  float64 // weaker detections are discarded
	Refractory    map[stimulus.Kind]time.Duration
	Source        string
}

// DefaultProducerConfig returns thresholds tuned for the ultrasonic sensor and
// the on-board microphone.
func DefaultProducerConfig() ProducerConfig {
	return ProducerConfig{
		NearCM:        40,
		SoundFloor:    0.2,
		TouchStrength: 0.6,
		MinIntensity:  0.05,
		Refractory: map[stimulus.Kind]time.Duration{
			stimulus.Proximity: 250 * time.Millisecond,
			stimulus.Sound:     200 * time.Millisecond,
			stimulus.Touch:     500 * time.Millisecond,
			stimulus.Voice:     time.Second,
		},
		Source: "sensors",
	}
}

// #endregion config

// #region input
// Frame is one poll of the robot's sensors. Nil readings are absent.
type Frame struct {
	At             time.Time `json:"at"`
	DistanceCM     *float64  `json:"distance_cm,omitempty"`
	SoundLevel     *float64  `json:"sound_level,omitempty"`     // [0,1]
	Touch          bool      `json:"touch"`
	VoiceSentiment *float64  `json:"voice_sentiment,omitempty"` // [-1,1], positive is friendly
}

// #endregion input
