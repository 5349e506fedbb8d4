package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/DevJihwan/kimcady-refactored/internal/domain"
)

// Routing keys delivered by the capture layer.
const (
	RKConfirmation   = "capture.confirmation"
	RKSnapshot       = "capture.snapshot"
	RKCustomer       = "capture.customer"
	RKRevenueCreated = "capture.revenue.created"
	RKRevenueUpdated = "capture.revenue.updated"
)

// Routing keys published after a reconciliation outcome.
const (
	RKReconcileCreated  = "reconcile.created"
	RKReconcileCanceled = "reconcile.canceled"
	RKReconcileUpdated  = "reconcile.updated"
)

// Confirmation is a raw booking confirmation captured from the upstream
// form traffic. BookingInfo is an embedded JSON blob that may be absent or
// malformed; parse it with ParseBookingInfo.
type Confirmation struct {
	BookID      string `json:"book_id"`
	Room        string `json:"room"`
	State       string `json:"state"`
	BookingInfo string `json:"bookingInfo,omitempty"`
}

// BookingInfo carries the richer optional fields of a confirmation event.
type BookingInfo struct {
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	PartySize int    `json:"person"`
	Holes     int    `json:"hole"`
	BookIdx   string `json:"book_idx"`
	Amount    int64  `json:"amount"`
	StartStr  string `json:"start_datetime"`
	EndStr    string `json:"end_datetime"`
}

// Snapshot is a full listing of current bookings, used as ground truth.
type Snapshot struct {
	Results []BookingRecord `json:"results"`
}

// BookingRecord is one booking as the upstream listing reports it.
type BookingRecord struct {
	BookID    string `json:"book_id"`
	BookIdx   string `json:"book_idx"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	PartySize int    `json:"person"`
	Holes     int    `json:"hole"`
	Room      string `json:"room"`
	State     string `json:"state"`
	BookType  string `json:"book_type"`
	Immediate bool   `json:"is_immediate"`
	Amount    int64  `json:"amount"`
	Paid      bool   `json:"is_paid"`

	CustomerID string         `json:"customer_id"`
	UpdDate    string         `json:"upd_date"`
	StartStr   string         `json:"start_datetime"`
	EndStr     string         `json:"end_datetime"`
	InfoSet    []CustomerInfo `json:"customerinfo_set"`
}

// Customer is a customer-identity record.
type Customer struct {
	ID      string         `json:"id"`
	Name    string         `json:"name,omitempty"`
	Phone   string         `json:"phone,omitempty"`
	InfoSet []CustomerInfo `json:"customerinfo_set,omitempty"`
}

type CustomerInfo struct {
	UpdDate string `json:"upd_date"`
}

// Revenue is a payment/revenue event keyed by the upstream booking index.
type Revenue struct {
	RevenueID string `json:"revenue_id"`
	BookIdx   string `json:"book_idx"`
	Amount    int64  `json:"amount"`
	Finished  bool   `json:"finished"`
}

func MustUnmarshal[T any](b []byte) (T, error) {
	var t T
	if err := json.Unmarshal(b, &t); err != nil {
		var zero T
		return zero, fmt.Errorf("decode payload failed: %w", err)
	}
	return t, nil
}

// ParseBookingInfo decodes the embedded confirmation blob. A malformed blob
// degrades to the zero value; the caller logs and proceeds without it.
func ParseBookingInfo(raw string) (BookingInfo, error) {
	var info BookingInfo
	if raw == "" {
		return info, nil
	}
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		return BookingInfo{}, fmt.Errorf("decode bookingInfo blob: %w", err)
	}
	return info, nil
}

// ParseTime normalizes upstream timestamps to UTC. The capture layer emits
// RFC3339 with a local offset; the listing sometimes uses a bare
// "2006-01-02 15:04:05" form, which is taken as already UTC.
func ParseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t.UTC(), nil
}

// Booking converts a listing record into the reconciled domain shape.
// Unparseable timestamps are left at their zero value.
func (r BookingRecord) Booking() domain.Booking {
	b := domain.Booking{
		BookID:     r.BookID,
		BookIdx:    r.BookIdx,
		Name:       r.Name,
		Phone:      r.Phone,
		PartySize:  r.PartySize,
		Holes:      r.Holes,
		Room:       r.Room,
		State:      r.State,
		Origin:     r.BookType,
		Immediate:  r.Immediate,
		Source:     domain.SourceSnapshot,
		Amount:     r.Amount,
		Paid:       r.Paid,
		CustomerID: r.CustomerID,
	}
	b.UpdatedAt, _ = ParseTime(r.UpdDate)
	b.Start, _ = ParseTime(r.StartStr)
	b.End, _ = ParseTime(r.EndStr)
	if len(r.InfoSet) > 0 {
		b.CustomerUpdatedAt, _ = ParseTime(r.InfoSet[0].UpdDate)
	}
	return b
}

// LatestUpdate returns the most recent upd_date in the customer's info set.
func (c Customer) LatestUpdate() time.Time {
	var latest time.Time
	for _, info := range c.InfoSet {
		if t, err := ParseTime(info.UpdDate); err == nil && t.After(latest) {
			latest = t
		}
	}
	return latest
}
