package engine

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/DevJihwan/kimcady-refactored/internal/cache"
	"github.com/DevJihwan/kimcady-refactored/internal/clock"
	"github.com/DevJihwan/kimcady-refactored/internal/correlator"
	"github.com/DevJihwan/kimcady-refactored/internal/dedup"
	"github.com/DevJihwan/kimcady-refactored/internal/domain"
	"github.com/DevJihwan/kimcady-refactored/internal/events"
	"github.com/DevJihwan/kimcady-refactored/internal/ledger"
	"github.com/DevJihwan/kimcady-refactored/internal/pending"
)

// Connector forwards reconciled bookings to the downstream system. Every
// call is idempotent on the receiving side. Cancel returns
// domain.ErrAlreadyCanceled when the receiver has already canceled the
// booking; that is treated as success.
type Connector interface {
	Create(ctx context.Context, p domain.CreatePayload) error
	Cancel(ctx context.Context, bookID, canceledBy string) error
	Update(ctx context.Context, p domain.CreatePayload) error
}

// ListingFetcher fetches the full booking listing from the external system.
type ListingFetcher interface {
	Fetch(ctx context.Context) ([]events.BookingRecord, error)
}

// OutcomePublisher announces reconciliation outcomes. Satisfied by
// *mq.Publisher. May be nil; outcomes are then not announced.
type OutcomePublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

type Config struct {
	SnapshotTTL         time.Duration
	CustomerMatchWindow time.Duration
}

// Engine is the reconciliation context shared by all stream handlers.
// Handlers arrive from the queue consumer, HTTP ingest and the correlator's
// timer goroutine; a single mutex serializes them end to end, which keeps
// the dedup check-then-forward sequence atomic and makes cached booking
// entries safe to hand around by pointer. Last-writer-wins ordering between
// handlers is accepted, since payment and booking values are idempotent
// snapshots, not counters.
type Engine struct {
	mu        sync.Mutex
	clk       clock.Clock
	ids       *ledger.Identity
	pay       *ledger.Payments
	cache     *cache.Snapshot
	dedup     dedup.Store
	pend      *pending.Store
	customers *correlator.Store

	conn   Connector
	fetch  ListingFetcher
	pub    OutcomePublisher
	cfg    Config
	tracer trace.Tracer
}

func New(
	clk clock.Clock,
	ids *ledger.Identity,
	pay *ledger.Payments,
	snap *cache.Snapshot,
	ded dedup.Store,
	pend *pending.Store,
	customers *correlator.Store,
	conn Connector,
	fetch ListingFetcher,
	pub OutcomePublisher,
	cfg Config,
) *Engine {
	return &Engine{
		clk:       clk,
		ids:       ids,
		pay:       pay,
		cache:     snap,
		dedup:     ded,
		pend:      pend,
		customers: customers,
		conn:      conn,
		fetch:     fetch,
		pub:       pub,
		cfg:       cfg,
		tracer:    otel.Tracer("reconciler"),
	}
}
