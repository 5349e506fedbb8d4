package dedup

import (
	"log"
	"sync"
)

// Memory tracks forwarded ids for the process lifetime. Each set is cleared
// once it grows past the threshold; the downstream receiver is idempotent,
// so the worst case after clearing is a redundant call, not a duplicate
// booking.
type Memory struct {
	mu        sync.Mutex
	threshold int
	created   map[string]struct{}
	canceled  map[string]struct{}
}

func NewMemory(threshold int) *Memory {
	if threshold <= 0 {
		threshold = 1000
	}
	return &Memory{
		threshold: threshold,
		created:   make(map[string]struct{}),
		canceled:  make(map[string]struct{}),
	}
}

func (m *Memory) MarkCreated(bookID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.created) >= m.threshold {
		log.Printf("[dedup] clearing create set (%d entries)", len(m.created))
		m.created = make(map[string]struct{})
	}
	m.created[bookID] = struct{}{}
	return nil
}

func (m *Memory) MarkCanceled(bookID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.canceled) >= m.threshold {
		log.Printf("[dedup] clearing cancel set (%d entries)", len(m.canceled))
		m.canceled = make(map[string]struct{})
	}
	m.canceled[bookID] = struct{}{}
	return nil
}

func (m *Memory) Created(bookID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.created[bookID]
	return ok
}

func (m *Memory) Canceled(bookID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.canceled[bookID]
	return ok
}

func (m *Memory) Forwarded(bookID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.created[bookID]; ok {
		return true
	}
	_, ok := m.canceled[bookID]
	return ok
}

func (m *Memory) Close() error { return nil }
