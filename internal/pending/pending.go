package pending

import (
	"sync"
	"time"

	"github.com/DevJihwan/kimcady-refactored/internal/clock"
)

// Store holds transient records for events that arrived before their
// counterpart: a revenue event waiting for its booking, or a booking
// creation in flight that a revenue event may still patch. Records become
// invisible after their validity window and are dropped lazily.

// Revenue is payment data waiting for a booking to claim it.
type Revenue struct {
	RevenueID string
	BookIdx   string
	Amount    int64
	Finished  bool
	SeenAt    time.Time
}

// Booking is a creation in flight. A revenue event sharing its index may
// attach amount/paid to it until it is finalized.
type Booking struct {
	BookID    string
	BookIdx   string
	Amount    int64
	Paid      bool
	Attached  bool
	Finalized bool
	SeenAt    time.Time
}

type Store struct {
	mu       sync.Mutex
	clk      clock.Clock
	validity time.Duration

	revByID  map[string]*Revenue
	revByIdx map[string]*Revenue
	bookings map[string]*Booking // keyed by book_id
}

func NewStore(clk clock.Clock, validity time.Duration) *Store {
	return &Store{
		clk:      clk,
		validity: validity,
		revByID:  make(map[string]*Revenue),
		revByIdx: make(map[string]*Revenue),
		bookings: make(map[string]*Booking),
	}
}

func (s *Store) fresh(seenAt time.Time) bool {
	return s.clk.Now().Sub(seenAt) <= s.validity
}

// PutRevenue records a revenue event under both its revenue id and index so
// a booking arriving later can find it by either key.
func (s *Store) PutRevenue(revenueID, bookIdx string, amount int64, finished bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := &Revenue{
		RevenueID: revenueID,
		BookIdx:   bookIdx,
		Amount:    amount,
		Finished:  finished,
		SeenAt:    s.clk.Now(),
	}
	if revenueID != "" {
		s.revByID[revenueID] = r
	}
	if bookIdx != "" {
		s.revByIdx[bookIdx] = r
	}
}

// RevenueByIndex returns the pending revenue record for an index, if it is
// still within its validity window.
func (s *Store) RevenueByIndex(bookIdx string) (*Revenue, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.revByIdx[bookIdx]
	if !ok {
		return nil, false
	}
	if !s.fresh(r.SeenAt) {
		delete(s.revByIdx, bookIdx)
		delete(s.revByID, r.RevenueID)
		return nil, false
	}
	return r, true
}

// DropRevenue consumes a pending revenue record once a booking claims it.
func (s *Store) DropRevenue(r *Revenue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.revByIdx, r.BookIdx)
	delete(s.revByID, r.RevenueID)
}

// PutBooking registers a creation in flight.
func (s *Store) PutBooking(bookID, bookIdx string) *Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := &Booking{BookID: bookID, BookIdx: bookIdx, SeenAt: s.clk.Now()}
	s.bookings[bookID] = b
	return b
}

// BookingByIndex returns a still-valid, unfinalized creation matching the
// index, so a revenue event can attach its payment data.
func (s *Store) BookingByIndex(bookIdx string) (*Booking, bool) {
	if bookIdx == "" {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, b := range s.bookings {
		if b.Finalized || !s.fresh(b.SeenAt) {
			delete(s.bookings, id)
			continue
		}
		if b.BookIdx == bookIdx {
			return b, true
		}
	}
	return nil, false
}

// Attach sets the payment data on an in-flight creation.
func (s *Store) Attach(b *Booking, amount int64, paid bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.Amount = amount
	b.Paid = paid
	b.Attached = true
}

// Finalize consumes an in-flight creation and returns any payment data a
// revenue event attached while the creation was suspended.
func (s *Store) Finalize(bookID string) (amount int64, paid, attached bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[bookID]
	if !ok {
		return 0, false, false
	}
	b.Finalized = true
	delete(s.bookings, bookID)
	return b.Amount, b.Paid, b.Attached
}
