package resilience

import "sync"

type flightResult struct {
	value any
	err   error
}

type flight struct {
	done   chan struct{}
	result flightResult
}

// SingleFlight deduplicates concurrent calls that share a key. Only
// one caller executes fn; the rest block and receive the same result.
type SingleFlight struct {
	mu      sync.Mutex
	flights map[string]*flight
}

func NewSingleFlight() *SingleFlight {
	return &SingleFlight{flights: make(map[string]*flight)}
}

// Do runs fn once per in-flight key. shared reports whether the caller
// received another flight's result instead of executing fn itself.
func (s *SingleFlight) Do(key string, fn func() (any, error)) (value any, err error, shared bool) {
	s.mu.Lock()
	if existing, ok := s.flights[key]; ok {
		s.mu.Unlock()
		<-existing.done
		return existing.result.value, existing.result.err, true
	}

	current := &flight{done: make(chan struct{})}
	s.flights[key] = current
	s.mu.Unlock()

	current.result.value, current.result.err = fn()
	close(current.done)

	s.mu.Lock()
	delete(s.flights, key)
	s.mu.Unlock()

	return current.result.value, current.result.err, false
}
