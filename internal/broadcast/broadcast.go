// Package broadcast fans each tick's snapshot out to registered consumers.
//
// Publish never blocks the tick loop. Every subscriber owns a bounded mailbox;
// when it is full the oldest snapshot is dropped, so a slow consumer coalesces
// toward the latest state instead of falling behind.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/danielpatrickdp/reflex-engine/internal/state"
	"go.uber.org/zap"
)

var (
	// ErrSubscriberExists is returned when Subscribe is called with a duplicate name.
	ErrSubscriberExists = errors.New("subscriber name already exists")

	// ErrSubscriberNotFound is returned when Unsubscribe is called with an unknown name.
	ErrSubscriberNotFound = errors.New("subscriber name not found")

	// ErrClosed is returned when operations are attempted on a closed broadcaster or subscription.
	ErrClosed = errors.New("broadcaster is closed")
)

// DefaultDepth is the mailbox depth used when none is given: latest-only.
const DefaultDepth = 1

// #region consumer
// Consumer receives snapshots on its own goroutine.
type Consumer interface {
	Consume(state.Snapshot)
}

// ConsumerFunc adapts a function to Consumer.
type ConsumerFunc func(state.Snapshot)

// Consume calls f(s).
func (f ConsumerFunc) Consume(s state.Snapshot) { f(s) }

// #endregion consumer

// #region stats
// Stats contains global and per-subscriber counters.
type Stats struct {
	Published   uint64                     `json:"published"`
	Subscribers map[string]SubscriberStats `json:"subscribers"`
}

// SubscriberStats tracks one subscriber.
type SubscriberStats struct {
	Delivered uint64 `json:"delivered"`
	Dropped   uint64 `json:"dropped"`
	Panics    uint64 `json:"panics"`
	Depth     int    `json:"depth"`
}

// #endregion stats

// #region broadcaster
// Broadcaster distributes snapshots to named subscribers.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription
	closed bool
	wg     sync.WaitGroup
	logger *zap.Logger

	published atomic.Uint64
}

// New creates a broadcaster. logger may be nil.
func New(logger *zap.Logger) *Broadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{
		subs:   make(map[string]*Subscription),
		logger: logger,
	}
}

// Subscribe registers a push consumer served by a dedicated goroutine with a
// mailbox of depth snapshots (DefaultDepth when depth <= 0).
func (b *Broadcaster) Subscribe(name string, c Consumer, depth int) (*Subscription, error) {
	if c == nil {
		return nil, errors.New("consumer cannot be nil")
	}
	sub, err := b.add(name, depth)
	if err != nil {
		return nil, err
	}
	sub.consumer = c
	b.wg.Add(1)
	go b.serve(sub)
	return sub, nil
}

// Pull registers a subscription the caller drains itself with Next.
func (b *Broadcaster) Pull(name string, depth int) (*Subscription, error) {
	return b.add(name, depth)
}

func (b *Broadcaster) add(name string, depth int) (*Subscription, error) {
	if depth <= 0 {
		depth = DefaultDepth
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}
	if _, exists := b.subs[name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrSubscriberExists, name)
	}
	sub := newSubscription(name, depth)
	b.subs[name] = sub
	return sub, nil
}

// Unsubscribe removes a subscriber and stops its goroutine.
func (b *Broadcaster) Unsubscribe(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	sub, ok := b.subs[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSubscriberNotFound, name)
	}
	delete(b.subs, name)
	sub.close()
	return nil
}

// Publish offers s to every subscriber without blocking.
func (b *Broadcaster) Publish(s state.Snapshot) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	b.published.Add(1)
	for _, sub := range b.subs {
		sub.offer(s)
	}
}

// Stats returns a point-in-time view of the counters.
func (b *Broadcaster) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	st := Stats{
		Published:   b.published.Load(),
		Subscribers: make(map[string]SubscriberStats, len(b.subs)),
	}
	for name, sub := range b.subs {
		st.Subscribers[name] = sub.Stats()
	}
	return st
}

// Close stops every subscriber goroutine and waits for in-flight deliveries.
func (b *Broadcaster) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for _, sub := range b.subs {
		sub.close()
	}
	b.subs = nil
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}

func (b *Broadcaster) serve(sub *Subscription) {
	defer b.wg.Done()
	for {
		s, err := sub.Next(context.Background())
		if err != nil {
			return
		}
		b.deliver(sub, s)
	}
}

func (b *Broadcaster) deliver(sub *Subscription, s state.Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			sub.panics.Add(1)
			b.logger.Error("consumer panicked", zap.String("consumer", sub.name), zap.Any("panic", r))
		}
	}()
	sub.consumer.Consume(s)
	sub.delivered.Add(1)
}

// #endregion broadcaster

// #region subscription
// Subscription is one consumer's bounded mailbox.
type Subscription struct {
	name     string
	consumer Consumer
	depth    int

	mu     sync.Mutex
	queue  []state.Snapshot
	notify chan struct{}
	done   chan struct{}
	once   sync.Once

	delivered atomic.Uint64
	dropped   atomic.Uint64
	panics    atomic.Uint64
}

func newSubscription(name string, depth int) *Subscription {
	return &Subscription{
		name:   name,
		depth:  depth,
		queue:  make([]state.Snapshot, 0, depth),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Name returns the subscriber name.
func (s *Subscription) Name() string { return s.name }

// Done is closed when the subscription ends.
func (s *Subscription) Done() <-chan struct{} { return s.done }

func (s *Subscription) offer(snap state.Snapshot) {
	s.mu.Lock()
	if len(s.queue) == s.depth {
		copy(s.queue, s.queue[1:])
		s.queue = s.queue[:len(s.queue)-1]
		s.dropped.Add(1)
	}
	s.queue = append(s.queue, snap)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Next blocks until a snapshot is available, ctx is done, or the subscription closes.
// Pending snapshots are discarded once the subscription is closed.
func (s *Subscription) Next(ctx context.Context) (state.Snapshot, error) {
	for {
		select {
		case <-s.done:
			return state.Snapshot{}, ErrClosed
		default:
		}

		s.mu.Lock()
		if len(s.queue) > 0 {
			snap := s.queue[0]
			copy(s.queue, s.queue[1:])
			s.queue = s.queue[:len(s.queue)-1]
			s.mu.Unlock()
			if s.consumer == nil {
				s.delivered.Add(1)
			}
			return snap, nil
		}
		s.mu.Unlock()

		select {
		case <-s.notify:
		case <-s.done:
			return state.Snapshot{}, ErrClosed
		case <-ctx.Done():
			return state.Snapshot{}, ctx.Err()
		}
	}
}

// Stats returns this subscriber's counters.
func (s *Subscription) Stats() SubscriberStats {
	s.mu.Lock()
	depth := len(s.queue)
	s.mu.Unlock()
	return SubscriberStats{
		Delivered: s.delivered.Load(),
		Dropped:   s.dropped.Load(),
		Panics:    s.panics.Load(),
		Depth:     depth,
	}
}

func (s *Subscription) close() {
	s.once.Do(func() { close(s.done) })
}

// #endregion subscription
