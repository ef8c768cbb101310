package trading

import "sync"

// StreakTracker counts consecutive winning closes per broker.
type StreakTracker struct {
	mu      sync.Mutex
	streaks map[string]int
}

// NewStreakTracker creates an empty tracker.
func NewStreakTracker() *StreakTracker {
	return &StreakTracker{streaks: make(map[string]int)}
}

// Record registers a close on brokerID and returns the new streak. A loss
// or flat close resets it.
func (s *StreakTracker) Record(brokerID string, win bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if win {
		s.streaks[brokerID]++
	} else {
		s.streaks[brokerID] = 0
	}
	return s.streaks[brokerID]
}

// Get returns the current streak of brokerID.
func (s *StreakTracker) Get(brokerID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streaks[brokerID]
}

// Reset clears the streak of brokerID.
func (s *StreakTracker) Reset(brokerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.streaks, brokerID)
}
