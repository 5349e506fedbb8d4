package consumer

import (
	"context"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/DevJihwan/kimcady-refactored/internal/correlator"
	"github.com/DevJihwan/kimcady-refactored/internal/engine"
	"github.com/DevJihwan/kimcady-refactored/internal/events"
	"github.com/DevJihwan/kimcady-refactored/pkg/mq"
)

// Keys lists every routing key the reconciler consumes.
var Keys = []string{
	events.RKConfirmation,
	events.RKSnapshot,
	events.RKCustomer,
	events.RKRevenueCreated,
	events.RKRevenueUpdated,
}

// Consumer dispatches captured events to the engine and correlator. Every
// delivery is acked: a malformed event is logged and dropped, and a handler
// error is logged but never requeued — redelivery of the underlying signal
// comes from the capture source, not from an internal retry loop.
type Consumer struct {
	eng  *engine.Engine
	corr *correlator.Correlator
	cons *mq.Consumer
}

func New(eng *engine.Engine, corr *correlator.Correlator, cons *mq.Consumer) *Consumer {
	return &Consumer{eng: eng, corr: corr, cons: cons}
}

func (c *Consumer) Run(ctx context.Context) error {
	msgs, err := c.cons.Deliveries(ctx)
	if err != nil {
		return err
	}
	go func() {
		for d := range msgs {
			c.handle(ctx, d)
			_ = d.Ack(false)
		}
	}()
	return nil
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	switch d.RoutingKey {
	case events.RKConfirmation:
		ev, err := events.MustUnmarshal[events.Confirmation](d.Body)
		if err != nil {
			log.Printf("[consumer] confirmation: %v", err)
			return
		}
		if err := c.eng.HandleConfirmation(ctx, ev); err != nil {
			log.Printf("[consumer] confirmation book_id=%s: %v", ev.BookID, err)
		}

	case events.RKSnapshot:
		ev, err := events.MustUnmarshal[events.Snapshot](d.Body)
		if err != nil {
			log.Printf("[consumer] snapshot: %v", err)
			return
		}
		if err := c.eng.HandleSnapshot(ctx, ev); err != nil {
			log.Printf("[consumer] snapshot: %v", err)
		}

	case events.RKCustomer:
		ev, err := events.MustUnmarshal[events.Customer](d.Body)
		if err != nil {
			log.Printf("[consumer] customer: %v", err)
			return
		}
		c.corr.Observe(ev)

	case events.RKRevenueCreated, events.RKRevenueUpdated:
		ev, err := events.MustUnmarshal[events.Revenue](d.Body)
		if err != nil {
			log.Printf("[consumer] revenue: %v", err)
			return
		}
		if err := c.eng.HandleRevenue(ctx, ev); err != nil {
			log.Printf("[consumer] revenue idx=%s: %v", ev.BookIdx, err)
		}

	default:
		log.Printf("[consumer] skip unknown key=%s", d.RoutingKey)
	}
}
