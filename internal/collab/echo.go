package collab

import (
	"sync"

	"github.com/dyluth/blueprints/pkg/blueprint"
)

// EchoSuppressor remembers the most recent locally sent point so that its
// round trip through the broker is not applied a second time.
//
// The marker is a single slot: points are sent one per pointer event and the
// echo is expected back before the next one is sent. Two identical points in
// flight at once are not distinguished.
type EchoSuppressor struct {
	mu     sync.Mutex
	marked *blueprint.Point
}

// MarkSent records p as the outstanding local point, replacing any previous
// marker.
func (s *EchoSuppressor) MarkSent(p blueprint.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = &p
}

// ShouldSuppress reports whether incoming is the echo of the marked point.
// A match consumes the marker; a mismatch leaves it in place.
func (s *EchoSuppressor) ShouldSuppress(incoming blueprint.Point) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.marked == nil || !s.marked.Equal(incoming) {
		return false
	}
	s.marked = nil
	return true
}

// Pending returns the outstanding marker, if any.
func (s *EchoSuppressor) Pending() (blueprint.Point, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.marked == nil {
		return blueprint.Point{}, false
	}
	return *s.marked, true
}

// Reset drops the marker.
func (s *EchoSuppressor) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = nil
}
