// Package signals turns raw sensor frames into stimuli.
package signals

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/danielpatrickdp/reflex-engine/internal/stimulus"
	"golang.org/x/time/rate"
)

// #region producer
// Producer detects stimuli in sensor frames. Each kind has a refractory period
// so a lingering obstacle or a held touch does not flood the engine.
type Producer struct {
	config    ProducerConfig
	limiters  map[stimulus.Kind]*rate.Limiter
	lastTouch bool
}

// NewProducer creates a Producer. A kind without a refractory period fires on every frame.
func NewProducer(config ProducerConfig) *Producer {
	limiters := make(map[stimulus.Kind]*rate.Limiter, len(config.Refractory))
	for kind, d := range config.Refractory {
		if d > 0 {
			limiters[kind] = rate.NewLimiter(rate.Every(d), 1)
		}
	}
	return &Producer{config: config, limiters: limiters}
}

// #endregion producer

// #region produce
// Produce returns the stimuli detected in f, in kind order. It is not safe for
// concurrent use; one producer serves one sensor stream.
func (p *Producer) Produce(f Frame) []stimulus.Stimulus {
	var out []stimulus.Stimulus
	emit := func(kind stimulus.Kind, intensity float64, valence *float64) {
		if intensity < p.config.MinIntensity || !p.allow(kind, f.At) {
			return
		}
		s := stimulus.New(kind, math.Min(1, intensity), f.At)
		s.Valence = valence
		s.Source = p.config.Source
		out = append(out, s)
	}

	if d := f.DistanceCM; d != nil && *d >= 0 && *d < p.config.NearCM {
		emit(stimulus.Proximity, 1-*d/p.config.NearCM, nil)
	}
	if l := f.SoundLevel; l != nil && *l > p.config.SoundFloor {
		emit(stimulus.Sound, (*l-p.config.SoundFloor)/(1-p.config.SoundFloor), nil)
	}
	if f.Touch && !p.lastTouch {
		emit(stimulus.Touch, p.config.TouchStrength, nil)
	}
	p.lastTouch = f.Touch
	if v := f.VoiceSentiment; v != nil {
		// Friendly speech soothes; hostile speech raises tension.
		valence := -math.Max(-1, math.Min(1, *v))
		emit(stimulus.Voice, math.Abs(valence), &valence)
	}
	return out
}

func (p *Producer) allow(kind stimulus.Kind, at time.Time) bool {
	lim, ok := p.limiters[kind]
	if !ok {
		return true
	}
	if at.IsZero() {
		at = time.Now()
	}
	return lim.AllowN(at, 1)
}

// #endregion produce

// #region pump
// Pump feeds every frame from frames through the producer into sink until
// frames closes or ctx is done.
func (p *Producer) Pump(ctx context.Context, frames <-chan Frame, sink Sink) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f, ok := <-frames:
			if !ok {
				return nil
			}
			for _, s := range p.Produce(f) {
				if err := sink.SubmitStimulus(s); err != nil {
					return fmt.Errorf("submit %s stimulus: %w", s.Kind, err)
				}
			}
		}
	}
}

// #endregion pump
