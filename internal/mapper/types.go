package mapper

// #region motor
// MotorCommand is a pair of wheel speeds in [-100,100]; negative drives backward.
type MotorCommand struct {
	Left  int `json:"left"`
	Right int `json:"right"`
}

// #endregion motor

// #region led
// RGB is an 8-bit colour.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// LEDCommand drives the status LEDs.
type LEDCommand struct {
	Color      RGB     `json:"color"`
	Brightness float64 `json:"brightness"` // [0,1]
	Pulse      bool    `json:"pulse"`
}

// #endregion led

// #region drawing
// LineStyle is the pen behavior for the drawing arm.
type LineStyle struct {
	Mood              string  `json:"mood"`
	WidthMM           float64 `json:"width_mm"`    // 0.5-2.0
	WavinessMM        float64 `json:"waviness_mm"` // 0.0-5.0
	Speed             int     `json:"speed"`       // 10-100
	OscillationHz     float64 `json:"oscillation_hz"`
	PressureVariation float64 `json:"pressure_variation"`
	Pressure          int     `json:"pressure"` // 0-100
}

// #endregion drawing

// #region emotion
// Emotion is the voice and game-animation expression of the current mode.
type Emotion struct {
	PitchScale     float64 `json:"pitch_scale"`
	Tempo          float64 `json:"tempo"`
	LEDPattern     string  `json:"led_pattern"` // solid | pulse | flash | chase
	AnimationSpeed string  `json:"animation_speed"`
	SoundHz        int     `json:"sound_hz"` // 0 is silent, otherwise 100-5000
}

// #endregion emotion
