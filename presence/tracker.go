// Package presence maintains the ephemeral typing-indicator set of a
// conversation. Entries have a visibility floor so bursty keystroke signals
// don't flicker, and an age ceiling so a peer that vanished without a
// "stopped typing" signal doesn't stay visible forever.
package presence

import (
	"sort"
	"sync"
	"time"

	"convsync/domain"
)

// ClearMode selects the removal policy for a typing entry.
type ClearMode int

const (
	// ClearRespectFloor removes the entry only once the minimum display
	// time has passed; earlier requests are simply ignored and the sweep
	// applies them once eligible.
	ClearRespectFloor ClearMode = iota
	// ClearForce removes the entry immediately.
	ClearForce
)

const (
	DefaultMinDisplayTime = 3 * time.Second
	DefaultMaxAge         = 8 * time.Second
	DefaultSweepInterval  = time.Second
)

type entry struct {
	user            domain.TypingUser
	minVisibleUntil time.Time
}

type Tracker struct {
	mu         sync.Mutex
	typing     map[string]entry
	minDisplay time.Duration
	maxAge     time.Duration

	now func() time.Time
}

func NewTracker(minDisplay, maxAge time.Duration) *Tracker {
	if minDisplay <= 0 {
		minDisplay = DefaultMinDisplayTime
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Tracker{
		typing:     make(map[string]entry),
		minDisplay: minDisplay,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// WithClock overrides the time source. Tests only.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// SetTyping inserts or refreshes a typing entry and restarts its
// visibility floor.
func (t *Tracker) SetTyping(userID, name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.typing[userID] = entry{
		user:            domain.TypingUser{ID: userID, Name: name, Timestamp: now},
		minVisibleUntil: now.Add(t.minDisplay),
	}
}

// Clear removes a typing entry according to the given mode.
func (t *Tracker) Clear(userID string, mode ClearMode) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.typing[userID]
	if !ok {
		return
	}
	if mode == ClearForce || !t.now().Before(e.minVisibleUntil) {
		delete(t.typing, userID)
	}
}

// Sweep evicts entries older than maxAge whose floor has passed.
// Returns the number of evicted entries.
func (t *Tracker) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	evicted := 0
	for id, e := range t.typing {
		if now.Sub(e.user.Timestamp) > t.maxAge && !now.Before(e.minVisibleUntil) {
			delete(t.typing, id)
			evicted++
		}
	}
	return evicted
}

// Typing returns the current set, oldest assertion first.
func (t *Tracker) Typing() []domain.TypingUser {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]domain.TypingUser, 0, len(t.typing))
	for _, e := range t.typing {
		out = append(out, e.user)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// IsTyping reports whether the user currently has a visible entry.
func (t *Tracker) IsTyping(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.typing[userID]
	return ok
}

func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.typing)
}
