package dropzone

import (
	"sync"

	"github.com/google/uuid"
)

// Sessions holds one Tracker per connected page.
type Sessions struct {
	runner     BatchRunner
	newOverlay func(id string) Overlay

	mu       sync.RWMutex
	trackers map[string]*Tracker
}

// NewSessions creates a registry whose trackers feed runner. newOverlay may
// be nil; otherwise it builds the overlay hook for each new session.
func NewSessions(runner BatchRunner, newOverlay func(id string) Overlay) *Sessions {
	return &Sessions{
		runner:     runner,
		newOverlay: newOverlay,
		trackers:   make(map[string]*Tracker),
	}
}

// Open starts a session and returns its id and tracker.
func (s *Sessions) Open() (string, *Tracker) {
	id := uuid.NewString()

	var overlay Overlay
	if s.newOverlay != nil {
		overlay = s.newOverlay(id)
	}
	t := NewTracker(s.runner, overlay)

	s.mu.Lock()
	s.trackers[id] = t
	s.mu.Unlock()
	return id, t
}

// Get returns the tracker for id.
func (s *Sessions) Get(id string) (*Tracker, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.trackers[id]
	return t, ok
}

// Close ends a session.
func (s *Sessions) Close(id string) {
	s.mu.Lock()
	delete(s.trackers, id)
	s.mu.Unlock()
}

// Len returns the number of open sessions.
func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.trackers)
}
