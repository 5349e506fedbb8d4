package correlator

import (
	"sync"
	"time"
)

// Update is the most recent identity update observed for a customer.
type Update struct {
	ID        string
	Name      string
	Phone     string
	UpdatedAt time.Time
}

// Store keeps the latest update per customer id for the snapshot sweep to
// match bookings against.
type Store struct {
	mu sync.Mutex
	m  map[string]Update
}

func NewStore() *Store {
	return &Store{m: make(map[string]Update)}
}

func (s *Store) Put(u Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[u.ID] = u
}

func (s *Store) Lookup(customerID string) (Update, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.m[customerID]
	return u, ok
}
