package profile

import (
	"sync"
	"sync/atomic"
)

// #region store
// Store holds the active personality and at most one pending switch.
// The zero value is an empty store; the first accepted profile becomes active directly.
// Later profiles are parked as pending until the engine commits them.
type Store struct {
	mu      sync.Mutex // serializes writers of target and pending
	active  atomic.Pointer[Profile]
	pending atomic.Pointer[Profile]
	target  atomic.Pointer[Profile] // last accepted profile, pending or in flight
	version atomic.Uint64
}

// NewStore creates a store whose active profile is initial.
func NewStore(initial Profile) (*Store, error) {
	if err := Validate(initial); err != nil {
		return nil, err
	}
	s := &Store{}
	s.active.Store(&initial)
	s.target.Store(&initial)
	s.version.Store(1)
	return s, nil
}

// #endregion store

// #region accessors
// Loaded reports whether an active profile exists.
func (s *Store) Loaded() bool {
	return s.active.Load() != nil
}

// Active returns the last committed profile. It never blocks.
func (s *Store) Active() Profile {
	if p := s.active.Load(); p != nil {
		return *p
	}
	return Profile{}
}

// Pending returns the profile waiting to be interpolated toward, if any.
func (s *Store) Pending() (Profile, bool) {
	if p := s.pending.Load(); p != nil {
		return *p, true
	}
	return Profile{}, false
}

// Version counts committed profiles.
func (s *Store) Version() uint64 {
	return s.version.Load()
}

// #endregion accessors

// #region set-active
// SetActive validates p and hands it over as the pending transition target.
// A rejected profile leaves both the active and the pending profile untouched.
// Re-submitting the profile the engine is already heading to is a no-op.
func (s *Store) SetActive(p Profile) error {
	if err := Validate(p); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active.CompareAndSwap(nil, &p) {
		s.target.Store(&p)
		s.version.Add(1)
		return nil
	}
	if cur := s.target.Load(); cur != nil && cur.SameParameters(p) {
		return nil
	}
	s.target.Store(&p)
	s.pending.Store(&p)
	return nil
}

// TakePending removes and returns the pending profile. Only the tick loop calls it.
func (s *Store) TakePending() (Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p := s.pending.Swap(nil); p != nil {
		return *p, true
	}
	return Profile{}, false
}

// Commit makes p the active profile once its transition window has elapsed.
func (s *Store) Commit(p Profile) {
	s.active.Store(&p)
	s.version.Add(1)
}

// #endregion set-active
