package state

import "sync"

// Store owns the current AuthState. Subscribers are called synchronously, in
// dispatch order, with a private copy of the new state; they must not call
// Dispatch.
type Store struct {
	// dmu orders dispatches so subscribers never see states out of order.
	dmu sync.Mutex

	mu    sync.RWMutex
	state AuthState
	subs  map[int]func(AuthState)
	next  int
}

func NewStore() *Store {
	return &Store{state: Initial(), subs: make(map[int]func(AuthState))}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() AuthState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Dispatch reduces a into the current state, notifies subscribers and
// returns the new state.
func (s *Store) Dispatch(a Action) AuthState {
	s.dmu.Lock()
	defer s.dmu.Unlock()

	s.mu.Lock()
	s.state = Reduce(s.state, a)
	next := s.state.Clone()
	subs := make([]func(AuthState), 0, len(s.subs))
	for i := 0; i < s.next; i++ {
		if fn, ok := s.subs[i]; ok {
			subs = append(subs, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(next.Clone())
	}
	return next
}

// Subscribe registers fn and returns a function removing it.
func (s *Store) Subscribe(fn func(AuthState)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}
