package chat

import "sync"

// Subscription is the handle returned when a handler takes an event slot.
type Subscription struct {
	cancel func()
}

// Cancel releases the slot if this subscription still owns it. Safe to call
// more than once and on nil.
func (s *Subscription) Cancel() {
	if s != nil && s.cancel != nil {
		s.cancel()
	}
}

// slot holds at most one handler. Setting a new handler makes the previous
// subscription inert.
type slot[T any] struct {
	mu  sync.Mutex
	fn  func(T)
	gen uint64
}

func (s *slot[T]) set(fn func(T)) *Subscription {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.fn = fn
	s.mu.Unlock()

	return &Subscription{cancel: func() {
		s.mu.Lock()
		if s.gen == gen {
			s.fn = nil
		}
		s.mu.Unlock()
	}}
}

func (s *slot[T]) emit(v T) {
	s.mu.Lock()
	fn := s.fn
	s.mu.Unlock()
	if fn != nil {
		fn(v)
	}
}
