package auction

import (
	"sync"
)

// ListStore holds the canonical client-side auction collection. The stream
// reducer is the only writer besides ReplaceAll; everything else reads
// snapshots. Lookup by id goes through an index so targeted events stay O(1)
// however large the list grows within a session.
type ListStore struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]*Auction
}

// NewListStore creates an empty store.
func NewListStore() *ListStore {
	return &ListStore{
		byID: make(map[string]*Auction),
	}
}

// ReplaceAll swaps in a freshly fetched collection, discarding every cached
// record. Listing order is preserved.
func (s *ListStore) ReplaceAll(auctions []Auction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.order = make([]string, 0, len(auctions))
	s.byID = make(map[string]*Auction, len(auctions))
	for i := range auctions {
		a := auctions[i]
		if _, dup := s.byID[a.ID]; dup {
			continue
		}
		s.order = append(s.order, a.ID)
		s.byID[a.ID] = &a
	}
}

// Get returns a copy of the record with the given id.
func (s *ListStore) Get(id string) (Auction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.byID[id]
	if !ok {
		return Auction{}, false
	}
	return *a, true
}

// Update applies a mutation to the record with the given id, if cached.
// Returns false when the id is unknown; stream events for auctions the
// client has never fetched are dropped, not inserted.
func (s *ListStore) Update(id string, mutate func(*Auction)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return false
	}
	mutate(a)
	return true
}

// Snapshot returns a copy of the collection in listing order.
func (s *ListStore) Snapshot() []Auction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Auction, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.byID[id])
	}
	return out
}

// Len returns the number of cached auctions.
func (s *ListStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}
