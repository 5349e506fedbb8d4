package cache

import (
	"sync"
	"time"

	"github.com/DevJihwan/kimcady-refactored/internal/clock"
	"github.com/DevJihwan/kimcady-refactored/internal/domain"
)

// Snapshot is the TTL-bounded cache of the most recent full booking
// listing. The listing is replaced wholesale on each fetch; the only
// in-place mutation is Patch, which corrects a single entry's payment
// fields when an in-process event is known to be fresher than the fetch.
type Snapshot struct {
	mu        sync.Mutex
	clk       clock.Clock
	listing   []*domain.Booking
	byID      map[string]*domain.Booking
	fetchedAt time.Time
}

func NewSnapshot(clk clock.Clock) *Snapshot {
	return &Snapshot{clk: clk}
}

// Valid reports whether the cached listing is younger than maxAge.
func (s *Snapshot) Valid(maxAge time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listing == nil {
		return false
	}
	return s.clk.Now().Sub(s.fetchedAt) < maxAge
}

// Set replaces the cached listing atomically and bumps the fetch time.
func (s *Snapshot) Set(listing []domain.Booking) {
	byID := make(map[string]*domain.Booking, len(listing))
	ptrs := make([]*domain.Booking, len(listing))
	for i := range listing {
		b := listing[i]
		ptrs[i] = &b
		byID[b.BookID] = &b
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listing = ptrs
	s.byID = byID
	s.fetchedAt = s.clk.Now()
}

// Get returns the cached listing in upstream order, or ok=false when no
// listing has been fetched yet.
func (s *Snapshot) Get() ([]*domain.Booking, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listing == nil {
		return nil, false
	}
	return s.listing, true
}

// Lookup returns the cached entry for a booking id.
func (s *Snapshot) Lookup(bookID string) (*domain.Booking, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.byID[bookID]
	return b, ok
}

// Patch corrects a cached entry's payment fields in place and bumps the
// cache timestamp, so other events inside the same TTL window do not read
// the stale values. Reports whether the entry existed.
func (s *Snapshot) Patch(bookID string, amount int64, paid bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.byID[bookID]
	if !ok {
		return false
	}
	b.Amount = amount
	b.Paid = paid
	s.fetchedAt = s.clk.Now()
	return true
}
