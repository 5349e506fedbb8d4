package engine

import (
	"context"
	"errors"
	"log"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/DevJihwan/kimcady-refactored/internal/domain"
	"github.com/DevJihwan/kimcady-refactored/internal/events"
)

func payloadFrom(b *domain.Booking, amount int64, paid bool) domain.CreatePayload {
	return domain.CreatePayload{
		BookID:    b.BookID,
		Name:      b.Name,
		Phone:     b.Phone,
		PartySize: b.PartySize,
		Holes:     b.Holes,
		Room:      b.Room,
		Start:     b.Start,
		End:       b.End,
		Amount:    amount,
		Paid:      paid,
		Immediate: b.Immediate,
	}
}

// forwardCreate sends a create call downstream. When markAlways is set the
// booking is recorded in the create set even if the call fails (the
// confirmation path; at-least-once comes from source redelivery, not from
// internal retry). Otherwise only a successful call is recorded, so a later
// event may retry the booking.
func (e *Engine) forwardCreate(ctx context.Context, p domain.CreatePayload, markAlways bool) bool {
	ctx, span := e.tracer.Start(ctx, "downstream.create",
		trace.WithAttributes(attribute.String("book_id", p.BookID)))
	err := e.conn.Create(ctx, p)
	span.End()

	if err != nil {
		log.Printf("[engine] create failed book_id=%s: %v", p.BookID, err)
		if markAlways {
			_ = e.dedup.MarkCreated(p.BookID)
		}
		return false
	}
	if err := e.dedup.MarkCreated(p.BookID); err != nil {
		log.Printf("[engine] dedup mark failed book_id=%s: %v", p.BookID, err)
	}
	e.publish(ctx, events.RKReconcileCreated, map[string]any{
		"book_id": p.BookID, "amount": p.Amount, "paid": p.Paid,
	})
	return true
}

// forwardCancel sends a cancel call downstream. An "already canceled"
// response from the receiver counts as success.
func (e *Engine) forwardCancel(ctx context.Context, bookID, canceledBy string) bool {
	ctx, span := e.tracer.Start(ctx, "downstream.cancel",
		trace.WithAttributes(attribute.String("book_id", bookID)))
	err := e.conn.Cancel(ctx, bookID, canceledBy)
	span.End()

	if err != nil && !errors.Is(err, domain.ErrAlreadyCanceled) {
		log.Printf("[engine] cancel failed book_id=%s: %v", bookID, err)
		return false
	}
	if errors.Is(err, domain.ErrAlreadyCanceled) {
		log.Printf("[engine] book_id=%s already canceled downstream", bookID)
	}
	if err := e.dedup.MarkCanceled(bookID); err != nil {
		log.Printf("[engine] dedup mark failed book_id=%s: %v", bookID, err)
	}
	e.publish(ctx, events.RKReconcileCanceled, map[string]any{
		"book_id": bookID, "canceled_by": canceledBy,
	})
	return true
}

func (e *Engine) forwardUpdate(ctx context.Context, p domain.CreatePayload) {
	ctx, span := e.tracer.Start(ctx, "downstream.update",
		trace.WithAttributes(attribute.String("book_id", p.BookID)))
	err := e.conn.Update(ctx, p)
	span.End()

	if err != nil {
		log.Printf("[engine] update failed book_id=%s: %v", p.BookID, err)
		return
	}
	e.publish(ctx, events.RKReconcileUpdated, map[string]any{
		"book_id": p.BookID, "amount": p.Amount, "paid": p.Paid,
	})
}

func (e *Engine) publish(ctx context.Context, key string, v any) {
	if e.pub == nil {
		return
	}
	if err := e.pub.PublishJSON(ctx, key, v); err != nil {
		log.Printf("[engine] publish %s failed: %v", key, err)
	}
}
