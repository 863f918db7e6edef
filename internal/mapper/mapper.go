// Package mapper turns snapshots into actuator commands. Every mapper is a
// pure function of one snapshot; Mapper wraps it as a broadcast consumer.
package mapper

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/danielpatrickdp/reflex-engine/internal/broadcast"
	"github.com/danielpatrickdp/reflex-engine/internal/state"
)

// #region mapper
// Mapper adapts a mapping function to a broadcast consumer and remembers the
// last command it produced.
type Mapper[T any] struct {
	fn     func(state.Snapshot) T
	out    func(T)
	latest atomic.Pointer[T]
}

// New wraps fn; out receives every command and may be nil.
func New[T any](fn func(state.Snapshot) T, out func(T)) *Mapper[T] {
	return &Mapper[T]{fn: fn, out: out}
}

// Consume maps s and forwards the command.
func (m *Mapper[T]) Consume(s state.Snapshot) {
	v := m.fn(s)
	m.latest.Store(&v)
	if m.out != nil {
		m.out(v)
	}
}

// Latest returns the last command, if any.
func (m *Mapper[T]) Latest() (T, bool) {
	if v := m.latest.Load(); v != nil {
		return *v, true
	}
	var zero T
	return zero, false
}

// #endregion mapper

// #region set
// Subscriber is the part of the engine the mappers attach to.
type Subscriber interface {
	Subscribe(name string, c broadcast.Consumer) (*broadcast.Subscription, error)
}

// Outputs receives the commands of each mapper. Nil entries only record Latest.
type Outputs struct {
	Motor   func(MotorCommand)
	LED     func(LEDCommand)
	Drawing func(LineStyle)
	Emotion func(Emotion)
}

// Set is the four standard mappers.
type Set struct {
	Motor   *Mapper[MotorCommand]
	LED     *Mapper[LEDCommand]
	Drawing *Mapper[LineStyle]
	Emotion *Mapper[Emotion]
}

// Attach subscribes the four mappers to sub as "motor", "led", "drawing" and "emotion".
func Attach(sub Subscriber, out Outputs) (*Set, error) {
	set := &Set{
		Motor:   New(ToMotor, out.Motor),
		LED:     New(ToLED, out.LED),
		Drawing: New(ToLineStyle, out.Drawing),
		Emotion: New(ToEmotion, out.Emotion),
	}
	for name, c := range map[string]broadcast.Consumer{
		"motor":   set.Motor,
		"led":     set.LED,
		"drawing": set.Drawing,
		"emotion": set.Emotion,
	} {
		if _, err := sub.Subscribe(name, c); err != nil {
			return nil, fmt.Errorf("attach %s mapper: %w", name, err)
		}
	}
	return set, nil
}

// Commands is the latest command of every mapper; nil before the first snapshot.
type Commands struct {
	Motor   *MotorCommand `json:"motor,omitempty"`
	LED     *LEDCommand   `json:"led,omitempty"`
	Drawing *LineStyle    `json:"drawing,omitempty"`
	Emotion *Emotion      `json:"emotion,omitempty"`
}

// Latest collects the last command of each mapper.
func (s *Set) Latest() Commands {
	return Commands{
		Motor:   s.Motor.latest.Load(),
		LED:     s.LED.latest.Load(),
		Drawing: s.Drawing.latest.Load(),
		Emotion: s.Emotion.latest.Load(),
	}
}

// #endregion set

// #region motor
// ToMotor maps mode and energy to wheel speeds, scaled by movement expressiveness.
// Spike freezes, protect backs away, active wanders, calm drifts.
func ToMotor(s state.Snapshot) MotorCommand {
	var left, right float64
	switch s.Mode {
	case state.Spike:
		left, right = 0, 0
	case state.Protect:
		left, right = -60, -60
	case state.Active:
		speed := 30 + 50*s.Energy
		turn := 0.4 * s.Curiosity * math.Sin(float64(s.Tick)*0.2)
		left, right = speed*(1+turn), speed*(1-turn)
	default:
		speed := 30 * s.Energy
		left, right = speed, speed
	}
	k := s.Expression.Movement
	return MotorCommand{Left: clampInt(left*k, -100, 100), Right: clampInt(right*k, -100, 100)}
}

// #endregion motor

// #region led
var modeColors = map[state.Mode]RGB{
	state.Calm:    {0, 100, 255},
	state.Active:  {0, 255, 100},
	state.Spike:   {255, 200, 0},
	state.Protect: {255, 0, 0},
}

var transitionColor = RGB{255, 255, 0}

// ToLED maps the mode to a colour scaled by light expressiveness. A personality
// switch in flight overrides the colour with a yellow pulse.
func ToLED(s state.Snapshot) LEDCommand {
	c, ok := modeColors[s.Mode]
	if !ok {
		c = modeColors[state.Protect]
	}
	pulse := s.Mode == state.Spike
	if s.Transitioning {
		c = transitionColor
		pulse = true
	}
	k := s.Expression.Light
	return LEDCommand{
		Color:      RGB{scale8(c.R, k), scale8(c.G, k), scale8(c.B, k)},
		Brightness: clamp01(0.3 + 0.7*math.Max(s.Tension, s.Energy)),
		Pulse:      pulse,
	}
}

// #endregion led

// #region drawing
type band struct {
	upTo                       float64
	mood                       string
	width, waviness, osc, pvar float64
	speed                      int
}

// Tension bands, checked in order; the last one catches everything else.
var bands = []band{
	{upTo: 0.3, mood: "calm", width: 0.6, waviness: 0.1, speed: 30, osc: 0.5, pvar: 0.1},
	{upTo: 0.6, mood: "active", width: 1.0, waviness: 0.8, speed: 55, osc: 1.5, pvar: 0.3},
	{upTo: 0.85, mood: "spike", width: 1.6, waviness: 2.5, speed: 85, osc: 3.5, pvar: 0.6},
	{upTo: math.Inf(1), mood: "protect", width: 1.8, waviness: 3.5, speed: 25, osc: 5.0, pvar: 0.8},
}

var modePressure = map[state.Mode]int{
	state.Calm:    40,
	state.Active:  60,
	state.Spike:   80,
	state.Protect: 90,
}

// ToLineStyle maps tension to a line style; pen pressure follows the mode.
func ToLineStyle(s state.Snapshot) LineStyle {
	b := bands[len(bands)-1]
	for _, cand := range bands {
		if s.Tension < cand.upTo {
			b = cand
			break
		}
	}
	pressure, ok := modePressure[s.Mode]
	if !ok {
		pressure = 50
	}
	return LineStyle{
		Mood:              b.mood,
		WidthMM:           b.width,
		WavinessMM:        b.waviness,
		Speed:             b.speed,
		OscillationHz:     b.osc,
		PressureVariation: b.pvar,
		Pressure:          pressure,
	}
}

// #endregion drawing

// #region emotion
type tone struct {
	pitch, tempo float64
	pattern      string
	speed        string
	hz           float64
}

var modeTones = map[state.Mode]tone{
	state.Calm:    {pitch: 0.9, tempo: 0.8, pattern: "solid", speed: "slow", hz: 440},
	state.Active:  {pitch: 1.1, tempo: 1.2, pattern: "chase", speed: "medium", hz: 660},
	state.Spike:   {pitch: 1.4, tempo: 1.6, pattern: "flash", speed: "fast", hz: 880},
	state.Protect: {pitch: 0.7, tempo: 0.6, pattern: "pulse", speed: "fast", hz: 220},
}

// ToEmotion maps the mode to voice tone and game animation. The sound frequency
// is scaled by sound expressiveness and kept within the buzzer's range.
func ToEmotion(s state.Snapshot) Emotion {
	t, ok := modeTones[s.Mode]
	if !ok {
		t = modeTones[state.Protect]
	}
	return Emotion{
		PitchScale:     t.pitch,
		Tempo:          t.tempo,
		LEDPattern:     t.pattern,
		AnimationSpeed: t.speed,
		SoundHz:        ScaleSound(t.hz, s.Expression.Sound),
	}
}

// ScaleSound scales a buzzer frequency by sound expressiveness into 100-5000 Hz.
// Zero stays silent.
func ScaleSound(hz, sound float64) int {
	if hz <= 0 {
		return 0
	}
	return int(math.Max(100, math.Min(5000, hz*(0.5+0.5*sound))))
}

// #endregion emotion

// #region helpers
func clampInt(v float64, lo, hi int) int {
	n := int(math.Round(v))
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func scale8(c uint8, k float64) uint8 {
	return uint8(math.Round(float64(c) * clamp01(k)))
}

// #endregion helpers
