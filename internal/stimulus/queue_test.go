package stimulus

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueDrainsOldestFirst(t *testing.T) {
	q := NewQueue(4)
	now := time.Now()
	for i := 0; i < 3; i++ {
		q.Push(New(Touch, float64(i)/10, now))
	}
	got := q.Drain(nil)
	require.Len(t, got, 3)
	assert.Equal(t, 0.0, got[0].Intensity)
	assert.Equal(t, 0.2, got[2].Intensity)
	assert.Equal(t, 0, q.Len())
}

func TestQueueDropsOldestOnOverflow(t *testing.T) {
	q := NewQueue(2)
	now := time.Now()
	assert.False(t, q.Push(New(Sound, 0.1, now)))
	assert.False(t, q.Push(New(Sound, 0.2, now)))
	assert.True(t, q.Push(New(Sound, 0.3, now)))

	got := q.Drain(nil)
	require.Len(t, got, 2)
	assert.Equal(t, 0.2, got[0].Intensity)
	assert.Equal(t, 0.3, got[1].Intensity)

	st := q.Stats()
	assert.Equal(t, uint64(3), st.Pushed)
	assert.Equal(t, uint64(1), st.Dropped)
	assert.Equal(t, uint64(2), st.Drained)
}

func TestQueueConcurrentProducers(t *testing.T) {
	q := NewQueue(1000)
	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				q.Push(New(Proximity, 0.5, time.Now()))
			}
		}()
	}
	wg.Wait()
	assert.Len(t, q.Drain(nil), 800)
	assert.Zero(t, q.Stats().Dropped)
}

func TestNormalize(t *testing.T) {
	s, clamped := Normalize(New(Voice, 1.4, time.Time{}).WithValence(-3))
	assert.True(t, clamped)
	assert.Equal(t, 1.0, s.Intensity)
	assert.Equal(t, -1.0, s.Sign())

	s, clamped = Normalize(New(Voice, math.NaN(), time.Time{}))
	assert.True(t, clamped)
	assert.Equal(t, 0.0, s.Intensity)

	s, clamped = Normalize(New(Touch, 0.4, time.Time{}))
	assert.False(t, clamped)
	assert.Equal(t, 1.0, s.Sign())
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Voice ")
	require.NoError(t, err)
	assert.Equal(t, Voice, k)
	_, err = ParseKind("smell")
	assert.Error(t, err)
}
