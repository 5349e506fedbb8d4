package ledger

import (
	"log"
	"sync"

	"github.com/DevJihwan/kimcady-refactored/internal/domain"
)

// Payments holds the latest known amount and paid flag per booking,
// independent of which stream last updated it. Every mutation is a single
// atomic replace; there is no read-modify-write across a suspension point.
type Payments struct {
	mu      sync.Mutex
	records map[string]domain.PaymentRecord
}

func NewPayments() *Payments {
	return &Payments{records: make(map[string]domain.PaymentRecord)}
}

// Seed records a speculative amount derived from a confirmation blob, only
// if nothing is recorded for the booking yet. The paid flag starts false.
func (p *Payments) Seed(bookID string, amount int64) {
	if bookID == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.records[bookID]; ok {
		return
	}
	p.records[bookID] = domain.PaymentRecord{Amount: amount, Source: domain.SourceConfirmation}
}

// SetAuthoritative replaces the record with snapshot values. A snapshot may
// revert a paid flag that an earlier signal set; that conflict is logged,
// and the snapshot still wins.
func (p *Payments) SetAuthoritative(bookID string, amount int64, paid bool) {
	if bookID == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if prev, ok := p.records[bookID]; ok && prev.Paid && !paid {
		log.Printf("[ledger] paid flag conflict book_id=%s: %s said paid, snapshot says unpaid", bookID, prev.Source)
	}
	p.records[bookID] = domain.PaymentRecord{Amount: amount, Paid: paid, Source: domain.SourceSnapshot}
}

// SetFromRevenue replaces the amount from a revenue event. The paid flag is
// the OR of the existing flag and the event's finished flag.
func (p *Payments) SetFromRevenue(bookID string, amount int64, finished bool) {
	if bookID == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	paid := finished
	if prev, ok := p.records[bookID]; ok && prev.Paid {
		paid = true
	}
	p.records[bookID] = domain.PaymentRecord{Amount: amount, Paid: paid, Source: domain.SourceRevenue}
}

func (p *Payments) Get(bookID string) (domain.PaymentRecord, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, ok := p.records[bookID]
	return rec, ok
}
