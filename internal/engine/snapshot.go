package engine

import (
	"context"
	"log"
	"sort"

	"github.com/DevJihwan/kimcady-refactored/internal/domain"
	"github.com/DevJihwan/kimcady-refactored/internal/events"
)

// refreshSnapshot fetches a fresh full listing unless the cache is still
// within its TTL. A failed fetch leaves the cache as it was; the caller
// proceeds with speculative values.
func (e *Engine) refreshSnapshot(ctx context.Context) error {
	if e.cache.Valid(e.cfg.SnapshotTTL) {
		return nil
	}
	recs, err := e.fetch.Fetch(ctx)
	if err != nil {
		return err
	}
	e.setListing(recs)
	return nil
}

func (e *Engine) setListing(recs []events.BookingRecord) []domain.Booking {
	listing := make([]domain.Booking, len(recs))
	for i, r := range recs {
		b := r.Booking()
		listing[i] = b
		e.ids.LinkIndex(b.BookIdx, b.BookID)
	}
	e.cache.Set(listing)
	return listing
}

// HandleSnapshot processes a full listing: the cache is replaced, then
// cancellations are swept before app bookings, so a booking that is
// simultaneously cancelable and createable is never double-forwarded.
func (e *Engine) HandleSnapshot(ctx context.Context, snap events.Snapshot) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	listing := e.setListing(snap.Results)

	// Cancellation sweep. One booking's failure must not block the rest.
	for i := range listing {
		b := &listing[i]
		if !domain.Canceled(b.State) || e.dedup.Forwarded(b.BookID) {
			continue
		}
		e.forwardCancel(ctx, b.BookID, canceledBy(b))
	}

	// App-booking sweep.
	for i := range listing {
		b, ok := e.cache.Lookup(listing[i].BookID)
		if !ok || b.Origin != domain.OriginApp || e.dedup.Forwarded(b.BookID) {
			continue
		}

		amount, paid := e.resolvePayment(b)
		if amount != b.Amount || paid != b.Paid {
			e.cache.Patch(b.BookID, amount, paid)
			e.pay.SetAuthoritative(b.BookID, amount, paid)
		}

		if !e.matchedCustomer(b) && !b.Immediate {
			// Not yet actionable; a later snapshot will revisit it.
			continue
		}
		if domain.Canceled(b.State) {
			e.forwardCancel(ctx, b.BookID, canceledBy(b))
			continue
		}
		if b.State == domain.StateSuccess || b.Immediate {
			e.forwardCreate(ctx, payloadFrom(b, amount, paid), false)
		}
	}
	return nil
}

// resolvePayment reconciles the payment view of a cached booking: the
// snapshot's own values, overridden by a revenue-sourced ledger entry, then
// by a still-valid pending revenue record, which is claimed on first use.
func (e *Engine) resolvePayment(b *domain.Booking) (int64, bool) {
	amount, paid := b.Amount, b.Paid
	if rec, ok := e.pay.Get(b.BookID); ok && rec.Source == domain.SourceRevenue {
		amount = rec.Amount
		paid = paid || rec.Paid
	}
	if r, ok := e.pend.RevenueByIndex(b.BookIdx); ok {
		amount = r.Amount
		paid = paid || r.Finished
		e.ids.LinkRevenue(r.RevenueID, b.BookID)
		e.pay.SetFromRevenue(b.BookID, amount, paid)
		e.pend.DropRevenue(r)
		log.Printf("[engine] book_id=%s claimed pending revenue %s", b.BookID, r.RevenueID)
	}
	return amount, paid
}

// matchedCustomer reports whether a recent customer-identity update is
// associated with this booking's customer action: the update falls within
// the match window of the booking's own last update, or, absent a precise
// booking timestamp, the update itself is no older than the window.
func (e *Engine) matchedCustomer(b *domain.Booking) bool {
	if b.CustomerID == "" {
		return false
	}
	cu, ok := e.customers.Lookup(b.CustomerID)
	if !ok {
		return false
	}
	if !b.CustomerUpdatedAt.IsZero() {
		d := b.CustomerUpdatedAt.Sub(cu.UpdatedAt)
		if d < 0 {
			d = -d
		}
		return d <= e.cfg.CustomerMatchWindow
	}
	return e.clk.Now().Sub(cu.UpdatedAt) <= e.cfg.CustomerMatchWindow
}

// ForwardCustomerBookings re-runs reconciliation for one customer after the
// deferred correlation delay. Only runs against a still-valid snapshot.
func (e *Engine) ForwardCustomerBookings(ctx context.Context, customerID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.cache.Valid(e.cfg.SnapshotTTL) {
		log.Printf("[engine] customer=%s no valid snapshot, skipping correlation run", customerID)
		return
	}
	listing, _ := e.cache.Get()

	var own []*domain.Booking
	for _, b := range listing {
		if b.CustomerID == customerID && b.State == domain.StateSuccess && !e.dedup.Forwarded(b.BookID) {
			own = append(own, b)
		}
	}
	sort.Slice(own, func(i, j int) bool { return own[i].UpdatedAt.After(own[j].UpdatedAt) })

	for _, b := range own {
		amount, paid := e.resolvePayment(b)
		e.forwardCreate(ctx, payloadFrom(b, amount, paid), false)
	}
}

func canceledBy(b *domain.Booking) string {
	if b.Origin == domain.OriginApp {
		return "customer"
	}
	return "store"
}
