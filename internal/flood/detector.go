// Package flood counts consecutive messages per chat and flags the
// sender who crosses the configured limit.
package flood

import "sync"

type state struct {
	lastUser int64
	count    int
}

// Detector is safe for concurrent use. Counting state is in-memory
// only; a restart just resets everyone's streak.
type Detector struct {
	mu     sync.Mutex
	states map[int64]*state
}

func NewDetector() *Detector {
	return &Detector{states: make(map[int64]*state)}
}

// Observe records one message and reports whether the sender just
// crossed the limit. The streak resets on a trigger so each burst
// fires exactly once.
func (d *Detector) Observe(chatID, userID int64, limit int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if limit <= 0 {
		delete(d.states, chatID)
		return false
	}
	s, ok := d.states[chatID]
	if !ok || s.lastUser != userID {
		d.states[chatID] = &state{lastUser: userID, count: 1}
		return false
	}
	s.count++
	if s.count > limit {
		delete(d.states, chatID)
		return true
	}
	return false
}

// Reset clears the chat's streak, used when an exempt user speaks.
func (d *Detector) Reset(chatID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.states, chatID)
}
