package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DevJihwan/kimcady-refactored/internal/cache"
	"github.com/DevJihwan/kimcady-refactored/internal/clock"
	"github.com/DevJihwan/kimcady-refactored/internal/correlator"
	"github.com/DevJihwan/kimcady-refactored/internal/dedup"
	"github.com/DevJihwan/kimcady-refactored/internal/domain"
	"github.com/DevJihwan/kimcady-refactored/internal/events"
	"github.com/DevJihwan/kimcady-refactored/internal/ledger"
	"github.com/DevJihwan/kimcady-refactored/internal/pending"
)

type fakeConnector struct {
	creates   []domain.CreatePayload
	cancels   []string
	updates   []domain.CreatePayload
	createErr error
	cancelErr error
}

func (f *fakeConnector) Create(_ context.Context, p domain.CreatePayload) error {
	f.creates = append(f.creates, p)
	return f.createErr
}

func (f *fakeConnector) Cancel(_ context.Context, bookID, _ string) error {
	f.cancels = append(f.cancels, bookID)
	return f.cancelErr
}

func (f *fakeConnector) Update(_ context.Context, p domain.CreatePayload) error {
	f.updates = append(f.updates, p)
	return nil
}

type fakeFetcher struct {
	recs  []events.BookingRecord
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(context.Context) ([]events.BookingRecord, error) {
	f.calls++
	return f.recs, f.err
}

type harness struct {
	eng       *Engine
	clk       *clock.Fake
	conn      *fakeConnector
	fetch     *fakeFetcher
	ded       *dedup.Memory
	customers *correlator.Store
	pend      *pending.Store
	pay       *ledger.Payments
}

var t0 = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newHarness(t *testing.T) *harness {
	t.Helper()
	clk := clock.NewFake(t0)
	conn := &fakeConnector{}
	fetch := &fakeFetcher{}
	ded := dedup.NewMemory(1000)
	customers := correlator.NewStore()
	pend := pending.NewStore(clk, 10*time.Second)
	pay := ledger.NewPayments()

	eng := New(clk, ledger.NewIdentity(), pay, cache.NewSnapshot(clk), ded, pend,
		customers, conn, fetch, nil, Config{
			SnapshotTTL:         time.Minute,
			CustomerMatchWindow: time.Minute,
		})
	return &harness{eng: eng, clk: clk, conn: conn, fetch: fetch, ded: ded, customers: customers, pend: pend, pay: pay}
}

func TestConfirmationCreatesWithSpeculativeAmount(t *testing.T) {
	h := newHarness(t)

	err := h.eng.HandleConfirmation(context.Background(), events.Confirmation{
		BookID:      "B1",
		Room:        "5",
		State:       "success",
		BookingInfo: `{"amount":10000,"start_datetime":"2024-01-01T10:00:00+09:00"}`,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(h.conn.creates) != 1 {
		t.Fatalf("expected 1 create, got %d", len(h.conn.creates))
	}
	p := h.conn.creates[0]
	if p.BookID != "B1" || p.Room != "5" || p.Amount != 10000 || p.Paid {
		t.Fatalf("unexpected payload: %+v", p)
	}
	wantStart := time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC)
	if !p.Start.Equal(wantStart) {
		t.Fatalf("expected UTC start %v, got %v", wantStart, p.Start)
	}
	if p.Immediate {
		t.Fatal("confirmation creates are never immediate")
	}
	if !h.ded.Created("B1") {
		t.Fatal("booking must land in the create set")
	}
}

func TestConfirmationNonSuccessDiscarded(t *testing.T) {
	h := newHarness(t)

	_ = h.eng.HandleConfirmation(context.Background(), events.Confirmation{
		BookID: "B1", State: "pending",
	})
	if len(h.conn.creates) != 0 || h.fetch.calls != 0 {
		t.Fatal("non-success confirmation must be discarded before any work")
	}
}

func TestConfirmationMalformedBlobDegrades(t *testing.T) {
	h := newHarness(t)

	err := h.eng.HandleConfirmation(context.Background(), events.Confirmation{
		BookID: "B1", State: "success", BookingInfo: `{broken`,
	})
	if err != nil {
		t.Fatalf("malformed blob must not abort the event: %v", err)
	}
	if len(h.conn.creates) != 1 {
		t.Fatalf("expected create despite malformed blob, got %d", len(h.conn.creates))
	}
	if h.conn.creates[0].Amount != 0 {
		t.Fatalf("expected zero amount, got %d", h.conn.creates[0].Amount)
	}
}

func TestSnapshotOverridesSpeculativeAmount(t *testing.T) {
	h := newHarness(t)
	h.fetch.recs = []events.BookingRecord{
		{BookID: "B1", State: "success", Amount: 12000, Paid: true},
	}

	_ = h.eng.HandleConfirmation(context.Background(), events.Confirmation{
		BookID: "B1", State: "success", BookingInfo: `{"amount":10000}`,
	})

	if len(h.conn.creates) != 1 {
		t.Fatalf("expected 1 create, got %d", len(h.conn.creates))
	}
	p := h.conn.creates[0]
	if p.Amount != 12000 || !p.Paid {
		t.Fatalf("snapshot values must win, got amount=%d paid=%t", p.Amount, p.Paid)
	}
}

func TestConfirmationDedupRecordedOnTransportFailure(t *testing.T) {
	h := newHarness(t)
	h.conn.createErr = errors.New("downstream unavailable")

	_ = h.eng.HandleConfirmation(context.Background(), events.Confirmation{
		BookID: "B1", State: "success",
	})

	if !h.ded.Created("B1") {
		t.Fatal("confirmation path records the id even when the call fails")
	}
}

func TestSnapshotFetchSkippedWithinTTL(t *testing.T) {
	h := newHarness(t)

	_ = h.eng.HandleConfirmation(context.Background(), events.Confirmation{BookID: "B1", State: "success"})
	_ = h.eng.HandleConfirmation(context.Background(), events.Confirmation{BookID: "B2", State: "success"})
	if h.fetch.calls != 1 {
		t.Fatalf("second event within TTL must reuse the cache, got %d fetches", h.fetch.calls)
	}

	h.clk.Advance(time.Minute)
	_ = h.eng.HandleConfirmation(context.Background(), events.Confirmation{BookID: "B3", State: "success"})
	if h.fetch.calls != 2 {
		t.Fatalf("event at TTL must refetch, got %d fetches", h.fetch.calls)
	}
}

func TestSnapshotCancelSweep(t *testing.T) {
	h := newHarness(t)

	snap := events.Snapshot{Results: []events.BookingRecord{
		{BookID: "B2", State: "canceling"},
	}}
	_ = h.eng.HandleSnapshot(context.Background(), snap)

	if len(h.conn.cancels) != 1 || h.conn.cancels[0] != "B2" {
		t.Fatalf("expected exactly one cancel for B2, got %v", h.conn.cancels)
	}

	// Replaying the snapshot must not cancel again.
	_ = h.eng.HandleSnapshot(context.Background(), snap)
	if len(h.conn.cancels) != 1 {
		t.Fatalf("duplicate cancel forwarded: %v", h.conn.cancels)
	}
}

func TestCancelWinsOverCreate(t *testing.T) {
	h := newHarness(t)
	// Cancelable and createable at once: app booking, immediate, canceling.
	snap := events.Snapshot{Results: []events.BookingRecord{
		{BookID: "B1", State: "canceling", BookType: "app", Immediate: true},
	}}
	_ = h.eng.HandleSnapshot(context.Background(), snap)

	if len(h.conn.cancels) != 1 {
		t.Fatalf("expected exactly one cancel, got %v", h.conn.cancels)
	}
	if len(h.conn.creates) != 0 {
		t.Fatalf("create must never follow a cancel in the same sweep: %v", h.conn.creates)
	}
}

func TestAlreadyCanceledTreatedAsSuccess(t *testing.T) {
	h := newHarness(t)
	h.conn.cancelErr = domain.ErrAlreadyCanceled

	_ = h.eng.HandleSnapshot(context.Background(), events.Snapshot{Results: []events.BookingRecord{
		{BookID: "B2", State: "canceled"},
	}})

	if !h.ded.Canceled("B2") {
		t.Fatal("already-canceled response must still mark the booking")
	}
}

func TestCancelFailureIsolatedPerBooking(t *testing.T) {
	h := newHarness(t)
	h.conn.cancelErr = errors.New("boom")

	_ = h.eng.HandleSnapshot(context.Background(), events.Snapshot{Results: []events.BookingRecord{
		{BookID: "B1", State: "canceling"},
		{BookID: "B2", State: "canceling"},
	}})

	if len(h.conn.cancels) != 2 {
		t.Fatalf("one booking's failure must not halt the sweep, got %v", h.conn.cancels)
	}
	if h.ded.Canceled("B1") || h.ded.Canceled("B2") {
		t.Fatal("failed cancels must stay retryable by a later snapshot")
	}
}

func TestAppBookingCreatedWhenCustomerMatched(t *testing.T) {
	h := newHarness(t)
	h.customers.Put(correlator.Update{ID: "C1", UpdatedAt: t0})

	bookingUpd := t0.Add(59 * time.Second).Format(time.RFC3339)
	_ = h.eng.HandleSnapshot(context.Background(), events.Snapshot{Results: []events.BookingRecord{
		{
			BookID: "B1", BookIdx: "7", State: "success", BookType: "app",
			Amount: 8000, CustomerID: "C1",
			InfoSet: []events.CustomerInfo{{UpdDate: bookingUpd}},
		},
	}})

	if len(h.conn.creates) != 1 {
		t.Fatalf("59s apart must match, got %d creates", len(h.conn.creates))
	}
	if h.conn.creates[0].Amount != 8000 {
		t.Fatalf("unexpected amount %d", h.conn.creates[0].Amount)
	}
}

func TestAppBookingUnmatchedOutsideWindow(t *testing.T) {
	h := newHarness(t)
	h.customers.Put(correlator.Update{ID: "C1", UpdatedAt: t0})

	bookingUpd := t0.Add(61 * time.Second).Format(time.RFC3339)
	_ = h.eng.HandleSnapshot(context.Background(), events.Snapshot{Results: []events.BookingRecord{
		{
			BookID: "B1", State: "success", BookType: "app",
			CustomerID: "C1",
			InfoSet:    []events.CustomerInfo{{UpdDate: bookingUpd}},
		},
	}})

	if len(h.conn.creates) != 0 {
		t.Fatalf("61s apart must not match, got %v", h.conn.creates)
	}
}

func TestCustomerMatchFallbackWindowInclusive(t *testing.T) {
	h := newHarness(t)
	h.customers.Put(correlator.Update{ID: "C1", UpdatedAt: t0})
	h.clk.Advance(time.Minute)

	// No per-booking customer timestamp: the update's own age decides.
	_ = h.eng.HandleSnapshot(context.Background(), events.Snapshot{Results: []events.BookingRecord{
		{BookID: "B1", State: "success", BookType: "app", CustomerID: "C1"},
	}})

	if len(h.conn.creates) != 1 {
		t.Fatalf("an update aged exactly the window must still match, got %d creates", len(h.conn.creates))
	}
}

func TestConcurrentSnapshotsCancelOnce(t *testing.T) {
	h := newHarness(t)
	snap := events.Snapshot{Results: []events.BookingRecord{
		{BookID: "B2", State: "canceling"},
	}}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.eng.HandleSnapshot(context.Background(), snap)
		}()
	}
	wg.Wait()

	if len(h.conn.cancels) != 1 {
		t.Fatalf("expected exactly one cancel for B2, got %v", h.conn.cancels)
	}
}

func TestConcurrentRevenueAndCorrelationRuns(t *testing.T) {
	h := newHarness(t)
	_ = h.eng.setListing([]events.BookingRecord{
		{BookID: "B1", BookIdx: "7", State: "success", CustomerID: "C1", Amount: 1000},
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			_ = h.eng.HandleRevenue(context.Background(), events.Revenue{
				RevenueID: "R1", BookIdx: "7",
				Amount: int64(9000 + i%2*100), Finished: true,
			})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			h.eng.ForwardCustomerBookings(context.Background(), "C1")
		}
	}()
	wg.Wait()

	if len(h.conn.creates) != 1 {
		t.Fatalf("expected exactly one create for B1, got %d", len(h.conn.creates))
	}
	entry, ok := h.eng.cache.Lookup("B1")
	if !ok || !entry.Paid {
		t.Fatalf("cache entry not patched: %+v", entry)
	}
}

func TestImmediateBookingCreatedWithoutMatch(t *testing.T) {
	h := newHarness(t)

	_ = h.eng.HandleSnapshot(context.Background(), events.Snapshot{Results: []events.BookingRecord{
		{BookID: "B1", State: "success", BookType: "app", Immediate: true, Amount: 3000},
	}})

	if len(h.conn.creates) != 1 {
		t.Fatalf("immediate app booking needs no customer match, got %d creates", len(h.conn.creates))
	}
	if !h.conn.creates[0].Immediate {
		t.Fatal("immediate flag must carry into the payload")
	}
}

func TestPendingRevenueCorrelation(t *testing.T) {
	h := newHarness(t)

	// Revenue first: index 7 is not linked to anything yet.
	_ = h.eng.HandleRevenue(context.Background(), events.Revenue{
		RevenueID: "R1", BookIdx: "7", Amount: 5500, Finished: true,
	})
	if len(h.conn.creates) != 0 {
		t.Fatal("revenue alone must not forward anything")
	}

	// Booking creation sharing the index arrives within the window.
	h.clk.Advance(5 * time.Second)
	_ = h.eng.HandleConfirmation(context.Background(), events.Confirmation{
		BookID: "B7", State: "success", BookingInfo: `{"book_idx":"7"}`,
	})

	if len(h.conn.creates) != 1 {
		t.Fatalf("expected 1 create, got %d", len(h.conn.creates))
	}
	p := h.conn.creates[0]
	if p.Amount != 5500 || !p.Paid {
		t.Fatalf("creation must carry the pending revenue data, got amount=%d paid=%t", p.Amount, p.Paid)
	}
}

func TestPendingRevenueExpires(t *testing.T) {
	h := newHarness(t)

	_ = h.eng.HandleRevenue(context.Background(), events.Revenue{
		RevenueID: "R1", BookIdx: "7", Amount: 5500, Finished: true,
	})
	h.clk.Advance(11 * time.Second)
	_ = h.eng.HandleConfirmation(context.Background(), events.Confirmation{
		BookID: "B7", State: "success", BookingInfo: `{"book_idx":"7"}`,
	})

	if len(h.conn.creates) != 1 {
		t.Fatalf("expected 1 create, got %d", len(h.conn.creates))
	}
	if h.conn.creates[0].Amount != 0 {
		t.Fatalf("expired pending revenue must be ignored, got %d", h.conn.creates[0].Amount)
	}
}

func TestRevenueUpdatesForwardedBooking(t *testing.T) {
	h := newHarness(t)
	h.fetch.recs = []events.BookingRecord{
		{BookID: "B1", BookIdx: "7", State: "success", Amount: 10000},
	}

	_ = h.eng.HandleConfirmation(context.Background(), events.Confirmation{
		BookID: "B1", State: "success", BookingInfo: `{"book_idx":"7"}`,
	})
	if len(h.conn.creates) != 1 {
		t.Fatalf("expected 1 create, got %d", len(h.conn.creates))
	}

	_ = h.eng.HandleRevenue(context.Background(), events.Revenue{
		RevenueID: "R1", BookIdx: "7", Amount: 9000, Finished: true,
	})

	if len(h.conn.updates) != 1 {
		t.Fatalf("expected 1 update, got %d", len(h.conn.updates))
	}
	if h.conn.updates[0].Amount != 9000 || !h.conn.updates[0].Paid {
		t.Fatalf("update must carry the revenue values: %+v", h.conn.updates[0])
	}

	// The cache entry was corrected in place too.
	entry, ok := h.eng.cache.Lookup("B1")
	if !ok || entry.Amount != 9000 || !entry.Paid {
		t.Fatalf("cache entry not patched: %+v", entry)
	}
}

func TestForwardCustomerBookings(t *testing.T) {
	h := newHarness(t)

	older := t0.Add(-time.Hour).Format(time.RFC3339)
	newer := t0.Add(-time.Minute).Format(time.RFC3339)
	_ = h.eng.setListing([]events.BookingRecord{
		{BookID: "B1", State: "success", CustomerID: "C1", UpdDate: older, Amount: 1000},
		{BookID: "B2", State: "success", CustomerID: "C1", UpdDate: newer, Amount: 2000},
		{BookID: "B3", State: "success", CustomerID: "C2"},
		{BookID: "B4", State: "canceled", CustomerID: "C1"},
	})
	_ = h.ded.MarkCreated("B0") // unrelated

	h.eng.ForwardCustomerBookings(context.Background(), "C1")

	if len(h.conn.creates) != 2 {
		t.Fatalf("expected C1's two success bookings, got %v", h.conn.creates)
	}
	if h.conn.creates[0].BookID != "B2" || h.conn.creates[1].BookID != "B1" {
		t.Fatalf("expected descending last-update order, got %v", h.conn.creates)
	}

	// A second run forwards nothing new.
	h.eng.ForwardCustomerBookings(context.Background(), "C1")
	if len(h.conn.creates) != 2 {
		t.Fatalf("reruns must be idempotent, got %d creates", len(h.conn.creates))
	}
}

func TestForwardCustomerBookingsNeedsValidSnapshot(t *testing.T) {
	h := newHarness(t)
	_ = h.eng.setListing([]events.BookingRecord{
		{BookID: "B1", State: "success", CustomerID: "C1"},
	})
	h.clk.Advance(time.Minute)

	h.eng.ForwardCustomerBookings(context.Background(), "C1")
	if len(h.conn.creates) != 0 {
		t.Fatal("a stale snapshot must not drive correlation creates")
	}
}

func TestFetchFailureProceedsSpeculatively(t *testing.T) {
	h := newHarness(t)
	h.fetch.err = errors.New("no session")

	_ = h.eng.HandleConfirmation(context.Background(), events.Confirmation{
		BookID: "B1", State: "success", BookingInfo: `{"amount":7000}`,
	})

	if len(h.conn.creates) != 1 || h.conn.creates[0].Amount != 7000 {
		t.Fatalf("fetch failure must fall back to speculative values: %v", h.conn.creates)
	}
}
