package correlator

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/DevJihwan/kimcady-refactored/internal/clock"
	"github.com/DevJihwan/kimcady-refactored/internal/events"
)

// Forwarder re-runs reconciliation for a customer's bookings. Implemented
// by the engine.
type Forwarder interface {
	ForwardCustomerBookings(ctx context.Context, customerID string)
}

type Config struct {
	// Freshness rejects identity updates older than this as non-actionable.
	Freshness time.Duration
	// Delay is how long to wait before correlating, so a fresh snapshot is
	// likely cached by then.
	Delay time.Duration
	// Cooldown prevents re-queuing the same customer id after a run, to
	// avoid reprocessing storms from rapid repeated identity events.
	Cooldown time.Duration
}

// Correlator delays processing of a customer-identity event until a fresh
// snapshot is likely available, then re-runs reconciliation for that
// customer's bookings.
type Correlator struct {
	clk   clock.Clock
	store *Store
	fwd   Forwarder
	cfg   Config

	mu       sync.Mutex
	queued   map[string]bool
	cooldown map[string]time.Time
}

func New(clk clock.Clock, store *Store, fwd Forwarder, cfg Config) *Correlator {
	return &Correlator{
		clk:      clk,
		store:    store,
		fwd:      fwd,
		cfg:      cfg,
		queued:   make(map[string]bool),
		cooldown: make(map[string]time.Time),
	}
}

// Observe handles one customer-identity event. Re-entry for an already
// queued customer id is a no-op.
func (c *Correlator) Observe(ev events.Customer) {
	if ev.ID == "" {
		return
	}
	latest := ev.LatestUpdate()
	if latest.IsZero() || c.clk.Now().Sub(latest) > c.cfg.Freshness {
		log.Printf("[correlator] customer=%s update too old, skipping", ev.ID)
		return
	}
	c.store.Put(Update{ID: ev.ID, Name: ev.Name, Phone: ev.Phone, UpdatedAt: latest})

	c.mu.Lock()
	if c.queued[ev.ID] {
		c.mu.Unlock()
		return
	}
	if until, ok := c.cooldown[ev.ID]; ok && c.clk.Now().Before(until) {
		c.mu.Unlock()
		log.Printf("[correlator] customer=%s in cooldown, skipping", ev.ID)
		return
	}
	c.queued[ev.ID] = true
	c.mu.Unlock()

	id := ev.ID
	c.clk.AfterFunc(c.cfg.Delay, func() { c.fire(id) })
}

func (c *Correlator) fire(customerID string) {
	c.fwd.ForwardCustomerBookings(context.Background(), customerID)

	c.mu.Lock()
	delete(c.queued, customerID)
	c.cooldown[customerID] = c.clk.Now().Add(c.cfg.Cooldown)
	c.mu.Unlock()
}
