package auction

import (
	"sync"
	"time"
)

// DefaultHighlightTTL is how long an auction stays marked as recently
// updated after a price event touches it.
const DefaultHighlightTTL = 3000 * time.Millisecond

// HighlightSet is the transient "recently updated" marker set used for UI
// feedback. Each membership expires independently, a fixed TTL after its own
// insertion; re-marking an id restarts its clock. Expiry is evaluated
// lazily against an injectable clock, so an entry whose auction has since
// been removed by a refetch simply ages out.
type HighlightSet struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	expiry map[string]time.Time
}

// NewHighlightSet creates a set with the given TTL. A zero TTL falls back to
// DefaultHighlightTTL.
func NewHighlightSet(ttl time.Duration) *HighlightSet {
	if ttl <= 0 {
		ttl = DefaultHighlightTTL
	}
	return &HighlightSet{
		ttl:    ttl,
		now:    time.Now,
		expiry: make(map[string]time.Time),
	}
}

// SetClock overrides the time source. Tests use this to simulate expiry
// without sleeping.
func (h *HighlightSet) SetClock(now func() time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.now = now
}

// Mark inserts or refreshes an id.
func (h *HighlightSet) Mark(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.expiry[id] = h.now().Add(h.ttl)
}

// Contains reports whether an id is still highlighted, pruning it if its
// TTL has elapsed.
func (h *HighlightSet) Contains(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	deadline, ok := h.expiry[id]
	if !ok {
		return false
	}
	if !h.now().Before(deadline) {
		delete(h.expiry, id)
		return false
	}
	return true
}

// Active returns the ids still within their TTL, pruning the rest.
func (h *HighlightSet) Active() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	out := make([]string, 0, len(h.expiry))
	for id, deadline := range h.expiry {
		if now.Before(deadline) {
			out = append(out, id)
		} else {
			delete(h.expiry, id)
		}
	}
	return out
}

// Clear drops all highlights. Called when a refetch replaces the list.
func (h *HighlightSet) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.expiry = make(map[string]time.Time)
}
