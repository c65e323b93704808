package pipeline

import (
	"context"
	"sync"
)

// Tracker maps process ids to the cancel func of the encoder stage they guard.
// Entries are removed on completion, failure or cancellation.
type Tracker struct {
	mu      sync.Mutex
	entries map[string]context.CancelFunc
}

func NewTracker() *Tracker {
	return &Tracker{entries: make(map[string]context.CancelFunc)}
}

func (t *Tracker) Register(processID string, cancel context.CancelFunc) {
	t.mu.Lock()
	t.entries[processID] = cancel
	t.mu.Unlock()
}

// Cancel kills the tracked process. It returns false when the id is unknown or
// already finished.
func (t *Tracker) Cancel(processID string) bool {
	t.mu.Lock()
	cancel, ok := t.entries[processID]
	delete(t.entries, processID)
	t.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Remove drops the entry and reports whether it was still present. A false
// result after a successful stage means a cancel won the race.
func (t *Tracker) Remove(processID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[processID]
	delete(t.entries, processID)
	return ok
}

// Active returns the ids currently addressable by Cancel.
func (t *Tracker) Active() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]string, 0, len(t.entries))
	for id := range t.entries {
		ids = append(ids, id)
	}
	return ids
}
