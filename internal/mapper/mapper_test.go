package mapper

import (
	"testing"
	"time"

	"github.com/danielpatrickdp/reflex-engine/internal/broadcast"
	"github.com/danielpatrickdp/reflex-engine/internal/profile"
	"github.com/danielpatrickdp/reflex-engine/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshot(m state.Mode, tension, energy float64) state.Snapshot {
	return state.Snapshot{
		Mode:       m,
		Scalars:    state.Scalars{Tension: tension, Energy: energy, Coherence: 0.5, Curiosity: 0.3},
		Expression: profile.Expression{Movement: 1, Sound: 1, Light: 1},
	}
}

func TestMotorByMode(t *testing.T) {
	assert.Equal(t, MotorCommand{-60, -60}, ToMotor(snapshot(state.Protect, 0.9, 0.5)))
	assert.Equal(t, MotorCommand{0, 0}, ToMotor(snapshot(state.Spike, 0.8, 0.5)))
	assert.Equal(t, MotorCommand{15, 15}, ToMotor(snapshot(state.Calm, 0.1, 0.5)))

	active := ToMotor(snapshot(state.Active, 0.2, 0.8))
	assert.Greater(t, active.Left, 0)
	assert.Greater(t, active.Right, 0)
}

func TestMotorScaledByMovement(t *testing.T) {
	s := snapshot(state.Protect, 0.9, 0.5)
	s.Expression.Movement = 0.5
	assert.Equal(t, MotorCommand{-30, -30}, ToMotor(s))

	s.Expression.Movement = 0
	assert.Equal(t, MotorCommand{0, 0}, ToMotor(s))
}

func TestMotorStaysInRange(t *testing.T) {
	for tick := uint64(0); tick < 200; tick++ {
		s := snapshot(state.Active, 0.1, 1)
		s.Curiosity = 1
		s.Tick = tick
		m := ToMotor(s)
		assert.LessOrEqual(t, m.Left, 100)
		assert.GreaterOrEqual(t, m.Right, -100)
	}
}

func TestLEDColours(t *testing.T) {
	assert.Equal(t, RGB{0, 100, 255}, ToLED(snapshot(state.Calm, 0.1, 0.3)).Color)
	assert.Equal(t, RGB{255, 0, 0}, ToLED(snapshot(state.Protect, 0.9, 0.3)).Color)
	spike := ToLED(snapshot(state.Spike, 0.8, 0.3))
	assert.Equal(t, RGB{255, 200, 0}, spike.Color)
	assert.True(t, spike.Pulse)
	assert.InDelta(t, 0.3+0.7*0.8, spike.Brightness, 1e-12)

	switching := snapshot(state.Calm, 0.1, 0.3)
	switching.Transitioning = true
	led := ToLED(switching)
	assert.Equal(t, RGB{255, 255, 0}, led.Color)
	assert.True(t, led.Pulse)

	dim := snapshot(state.Calm, 0.1, 0.3)
	dim.Expression.Light = 0.5
	assert.Equal(t, RGB{0, 50, 128}, ToLED(dim).Color)
}

func TestLineStyleBands(t *testing.T) {
	cases := []struct {
		tension float64
		mood    string
		width   float64
	}{
		{0.1, "calm", 0.6},
		{0.3, "active", 1.0},
		{0.75, "spike", 1.6},
		{0.85, "protect", 1.8},
		{1.0, "protect", 1.8},
	}
	for _, tc := range cases {
		got := ToLineStyle(snapshot(state.Calm, tc.tension, 0.3))
		assert.Equal(t, tc.mood, got.Mood, "tension %v", tc.tension)
		assert.Equal(t, tc.width, got.WidthMM, "tension %v", tc.tension)
	}
	assert.Equal(t, 90, ToLineStyle(snapshot(state.Protect, 0.9, 0.3)).Pressure)
	assert.Equal(t, 40, ToLineStyle(snapshot(state.Calm, 0.1, 0.3)).Pressure)
}

func TestEmotionSound(t *testing.T) {
	e := ToEmotion(snapshot(state.Spike, 0.8, 0.3))
	assert.Equal(t, "flash", e.LEDPattern)
	assert.Equal(t, 880, e.SoundHz)

	quiet := snapshot(state.Protect, 0.9, 0.3)
	quiet.Expression.Sound = 0
	assert.Equal(t, 110, ToEmotion(quiet).SoundHz)

	assert.Equal(t, 0, ScaleSound(0, 1))
	assert.Equal(t, 100, ScaleSound(50, 0))
	assert.Equal(t, 5000, ScaleSound(9000, 1))
}

func TestUnknownModeFallsBackToProtect(t *testing.T) {
	s := snapshot(state.Mode("?"), 0.5, 0.5)
	assert.Equal(t, RGB{255, 0, 0}, ToLED(s).Color)
	assert.Equal(t, "pulse", ToEmotion(s).LEDPattern)
}

func TestAttachDeliversCommands(t *testing.T) {
	b := broadcast.New(nil)
	defer b.Close()

	got := make(chan MotorCommand, 8)
	set, err := Attach(subscriberFunc(func(name string, c broadcast.Consumer) (*broadcast.Subscription, error) {
		return b.Subscribe(name, c, 1)
	}), Outputs{Motor: func(m MotorCommand) { got <- m }})
	require.NoError(t, err)

	b.Publish(snapshot(state.Protect, 0.9, 0.5))
	select {
	case m := <-got:
		assert.Equal(t, MotorCommand{-60, -60}, m)
	case <-time.After(time.Second):
		t.Fatal("motor command not delivered")
	}
	require.Eventually(t, func() bool {
		_, ok := set.LED.Latest()
		return ok
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		c := set.Latest()
		return c.Motor != nil && c.LED != nil && c.Drawing != nil && c.Emotion != nil
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "protect", set.Latest().Drawing.Mood)

	_, err = Attach(subscriberFunc(func(name string, c broadcast.Consumer) (*broadcast.Subscription, error) {
		return b.Subscribe(name, c, 1)
	}), Outputs{})
	assert.ErrorIs(t, err, broadcast.ErrSubscriberExists)
}

type subscriberFunc func(string, broadcast.Consumer) (*broadcast.Subscription, error)

func (f subscriberFunc) Subscribe(name string, c broadcast.Consumer) (*broadcast.Subscription, error) {
	return f(name, c)
}
