package watcher

// stabilityTracker detects stable plateaus in a sequence of file counts.
// It is a pure state machine fed one poll tick at a time - no timers, no
// I/O - so the plateau semantics are testable in isolation.
//
// A plateau is declared when the same count has been observed for
// `required` consecutive ticks, counting the tick that first reported it.
// The tracker arms on the first count change after Reset or after a
// declared plateau; it never fires for a count that has not changed since
// the last plateau. This keeps an idle empty directory from declaring
// "receive finished" over and over.
type stabilityTracker struct {
	required  int
	lastCount int
	rounds    int
	armed     bool
}

// newStabilityTracker creates a tracker requiring `required` consecutive
// equal counts. Values below one are treated as one.
func newStabilityTracker(required int) *stabilityTracker {
	if required < 1 {
		required = 1
	}
	return &stabilityTracker{required: required}
}

// Reset returns the tracker to its initial state (count zero, disarmed).
func (s *stabilityTracker) Reset() {
	s.lastCount = 0
	s.rounds = 0
	s.armed = false
}

// Observe records one poll tick's file count and reports whether a stable
// plateau was reached on this tick.
func (s *stabilityTracker) Observe(count int) bool {
	if count != s.lastCount {
		s.lastCount = count
		s.rounds = 1
		s.armed = true
	} else {
		s.rounds++
	}

	if s.armed && s.rounds >= s.required {
		s.armed = false
		return true
	}
	return false
}

// Rounds returns how many consecutive ticks have observed the current count.
func (s *stabilityTracker) Rounds() int {
	return s.rounds
}
