package engine

import (
	"context"
	"log"

	"github.com/DevJihwan/kimcady-refactored/internal/domain"
	"github.com/DevJihwan/kimcady-refactored/internal/events"
)

// HandleConfirmation processes a raw booking confirmation captured from the
// upstream form traffic and forwards it as a create call.
func (e *Engine) HandleConfirmation(ctx context.Context, ev events.Confirmation) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ev.State != domain.StateSuccess {
		log.Printf("[engine] confirmation book_id=%s state=%s not actionable, skipping", ev.BookID, ev.State)
		return nil
	}

	info, err := events.ParseBookingInfo(ev.BookingInfo)
	if err != nil {
		log.Printf("[engine] book_id=%s: %v, proceeding without blob", ev.BookID, err)
	}

	// Speculative seed: only the first writer for a booking id sticks.
	if info.Amount > 0 {
		e.pay.Seed(ev.BookID, info.Amount)
	}
	if info.BookIdx != "" {
		e.ids.LinkIndex(info.BookIdx, ev.BookID)
	}

	// Register the creation in flight so a revenue event arriving during
	// the snapshot fetch can still patch its payment data.
	e.pend.PutBooking(ev.BookID, info.BookIdx)

	if err := e.refreshSnapshot(ctx); err != nil {
		log.Printf("[engine] snapshot refresh failed, using speculative values: %v", err)
	}

	if entry, ok := e.cache.Lookup(ev.BookID); ok {
		e.pay.SetAuthoritative(ev.BookID, entry.Amount, entry.Paid)
		log.Printf("[engine] book_id=%s payment from snapshot amount=%d paid=%t", ev.BookID, entry.Amount, entry.Paid)
	} else if r, ok := e.pend.RevenueByIndex(info.BookIdx); ok {
		e.ids.LinkRevenue(r.RevenueID, ev.BookID)
		e.pay.SetFromRevenue(ev.BookID, r.Amount, r.Finished)
		e.pend.DropRevenue(r)
		log.Printf("[engine] book_id=%s payment from pending revenue amount=%d", ev.BookID, r.Amount)
	} else {
		log.Printf("[engine] book_id=%s payment speculative", ev.BookID)
	}

	start, err := events.ParseTime(info.StartStr)
	if err != nil {
		log.Printf("[engine] book_id=%s: %v", ev.BookID, err)
	}
	end, err := events.ParseTime(info.EndStr)
	if err != nil {
		log.Printf("[engine] book_id=%s: %v", ev.BookID, err)
	}

	rec, _ := e.pay.Get(ev.BookID)
	amount, paid := rec.Amount, rec.Paid

	// Pick up anything a revenue event attached while we were suspended on
	// the fetch. The ledger's snapshot value still wins if one was set.
	if aAmount, aPaid, attached := e.pend.Finalize(ev.BookID); attached && rec.Source != domain.SourceSnapshot {
		amount, paid = aAmount, aPaid
		e.pay.SetFromRevenue(ev.BookID, aAmount, aPaid)
	}

	p := domain.CreatePayload{
		BookID:    ev.BookID,
		Name:      info.Name,
		Phone:     info.Phone,
		PartySize: info.PartySize,
		Holes:     info.Holes,
		Room:      ev.Room,
		Start:     start,
		End:       end,
		Amount:    amount,
		Paid:      paid,
		Immediate: false,
	}
	e.forwardCreate(ctx, p, true)
	return nil
}
