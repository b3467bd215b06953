package scenario

import (
	"sync"
	"sync/atomic"
	"time"
)

// Store provides thread-safe access to the active scenario. Replacement is
// atomic and wholesale; readers never observe a partially-loaded scenario.
type Store struct {
	scenario atomic.Pointer[Scenario]
	mu       sync.Mutex // serializes fetch/load operations
}

// NewStore creates a new empty Store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the active scenario, or nil if none has been loaded.
func (s *Store) Get() *Scenario {
	return s.scenario.Load()
}

// Set atomically replaces the active scenario.
func (s *Store) Set(sc *Scenario) {
	s.scenario.Store(sc)
}

// AgeSeconds returns the age of the active scenario in seconds.
// Returns -1 if none is loaded.
func (s *Store) AgeSeconds() float64 {
	sc := s.scenario.Load()
	if sc == nil {
		return -1
	}
	return time.Since(sc.FetchedAt).Seconds()
}

// Lock acquires the load mutex for serializing load operations.
func (s *Store) Lock() {
	s.mu.Lock()
}

// Unlock releases the load mutex.
func (s *Store) Unlock() {
	s.mu.Unlock()
}
