package ledger

import "sync"

// Identity maps a booking's revenue identifiers and upstream index to its
// external booking id. No identifier maps to more than one booking at a
// time; a later link overwrites an earlier one because the upstream reuses
// indexes.
type Identity struct {
	mu        sync.Mutex
	byRevenue map[string]string
	byIndex   map[string]string
}

func NewIdentity() *Identity {
	return &Identity{
		byRevenue: make(map[string]string),
		byIndex:   make(map[string]string),
	}
}

func (l *Identity) LinkIndex(idx, bookID string) {
	if idx == "" || bookID == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byIndex[idx] = bookID
}

func (l *Identity) ByIndex(idx string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id, ok := l.byIndex[idx]
	return id, ok
}

func (l *Identity) LinkRevenue(revenueID, bookID string) {
	if revenueID == "" || bookID == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byRevenue[revenueID] = bookID
}

// ByRevenueOrIndex resolves a booking id, preferring the revenue link and
// falling back to the index link.
func (l *Identity) ByRevenueOrIndex(revenueID, idx string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if id, ok := l.byRevenue[revenueID]; ok && revenueID != "" {
		return id, true
	}
	if id, ok := l.byIndex[idx]; ok && idx != "" {
		return id, true
	}
	return "", false
}
