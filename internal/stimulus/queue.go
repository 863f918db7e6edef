package stimulus

import (
	"sync"
	"sync/atomic"
)

// DefaultCapacity is the queue depth used when none is configured.
const DefaultCapacity = 64

// #region queue
// Queue is a bounded multi-producer, single-consumer ring of stimuli.
// When full, the oldest entry is overwritten.
type Queue struct {
	mu   sync.Mutex
	buf  []Stimulus
	head int
	size int

	pushed  atomic.Uint64
	dropped atomic.Uint64
	drained atomic.Uint64
}

// QueueStats is a point-in-time view of queue counters.
type QueueStats struct {
	Pushed   uint64
	Dropped  uint64
	Drained  uint64
	Depth    int
	Capacity int
}

// NewQueue creates a queue holding at most capacity stimuli.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{buf: make([]Stimulus, capacity)}
}

// #endregion queue

// #region push
// Push enqueues s and reports whether an older stimulus was evicted to make room.
func (q *Queue) Push(s Stimulus) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pushed.Add(1)
	evicted := false
	if q.size == len(q.buf) {
		q.head = (q.head + 1) % len(q.buf)
		q.size--
		evicted = true
		q.dropped.Add(1)
	}
	q.buf[(q.head+q.size)%len(q.buf)] = s
	q.size++
	return evicted
}

// #endregion push

// #region drain
// Drain appends all queued stimuli to dst, oldest first, and empties the queue.
func (q *Queue) Drain(dst []Stimulus) []Stimulus {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := 0; i < q.size; i++ {
		idx := (q.head + i) % len(q.buf)
		dst = append(dst, q.buf[idx])
		q.buf[idx] = Stimulus{}
	}
	q.drained.Add(uint64(q.size))
	q.head, q.size = 0, 0
	return dst
}

// Len returns the current depth.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Stats returns the queue counters.
func (q *Queue) Stats() QueueStats {
	return QueueStats{
		Pushed:   q.pushed.Load(),
		Dropped:  q.dropped.Load(),
		Drained:  q.drained.Load(),
		Depth:    q.Len(),
		Capacity: len(q.buf),
	}
}

// #endregion drain
