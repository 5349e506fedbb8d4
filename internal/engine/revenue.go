package engine

import (
	"context"
	"log"

	"github.com/DevJihwan/kimcady-refactored/internal/events"
)

// HandleRevenue processes a payment event. Both the payment-create and
// payment-update entry points land here; they differ only in routing key.
// Resolution order: a booking already linked by revenue id or index is
// updated directly; otherwise the amount is attached to a creation still in
// flight; in all cases a pending entry is kept so a booking arriving later
// can still find this payment data.
func (e *Engine) HandleRevenue(ctx context.Context, ev events.Revenue) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if bookID, ok := e.ids.ByRevenueOrIndex(ev.RevenueID, ev.BookIdx); ok {
		e.ids.LinkRevenue(ev.RevenueID, bookID)
		e.pay.SetFromRevenue(bookID, ev.Amount, ev.Finished)

		rec, _ := e.pay.Get(bookID)
		if entry, hit := e.cache.Lookup(bookID); hit && (entry.Amount != rec.Amount || entry.Paid != rec.Paid) {
			e.cache.Patch(bookID, rec.Amount, rec.Paid)
		}

		// A booking already forwarded gets the corrected amount pushed
		// downstream as an update.
		if e.dedup.Created(bookID) {
			if entry, hit := e.cache.Lookup(bookID); hit {
				e.forwardUpdate(ctx, payloadFrom(entry, rec.Amount, rec.Paid))
			}
		}
	} else if pb, pending := e.pend.BookingByIndex(ev.BookIdx); pending {
		e.pend.Attach(pb, ev.Amount, ev.Finished)
		log.Printf("[engine] attached revenue %s to in-flight booking book_id=%s", ev.RevenueID, pb.BookID)
	}

	e.pend.PutRevenue(ev.RevenueID, ev.BookIdx, ev.Amount, ev.Finished)
	return nil
}
