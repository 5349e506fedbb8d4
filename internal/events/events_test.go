package events

import (
	"testing"
	"time"
)

func TestParseBookingInfo(t *testing.T) {
	info, err := ParseBookingInfo(`{"amount":10000,"person":4,"hole":18,"start_datetime":"2024-01-01T10:00:00+09:00"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Amount != 10000 || info.PartySize != 4 || info.Holes != 18 {
		t.Fatalf("unexpected fields: %+v", info)
	}
}

func TestParseBookingInfoMalformed(t *testing.T) {
	info, err := ParseBookingInfo(`{not json`)
	if err == nil {
		t.Fatal("expected error for malformed blob")
	}
	if info != (BookingInfo{}) {
		t.Fatalf("malformed blob must degrade to zero value, got %+v", info)
	}
}

func TestParseBookingInfoEmpty(t *testing.T) {
	info, err := ParseBookingInfo("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info != (BookingInfo{}) {
		t.Fatalf("expected zero value, got %+v", info)
	}
}

func TestParseTimeLocalOffset(t *testing.T) {
	got, err := ParseTime("2024-01-01T10:00:00+09:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if got.Location() != time.UTC {
		t.Fatalf("expected UTC location, got %v", got.Location())
	}
}

func TestParseTimeBareForm(t *testing.T) {
	got, err := ParseTime("2024-01-01 01:00:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestBookingRecordConversion(t *testing.T) {
	r := BookingRecord{
		BookID:     "B1",
		BookIdx:    "7",
		State:      "success",
		BookType:   "app",
		Amount:     9000,
		Paid:       true,
		CustomerID: "C1",
		UpdDate:    "2024-01-01T10:00:00+09:00",
		InfoSet:    []CustomerInfo{{UpdDate: "2024-01-01T09:30:00+09:00"}},
	}
	b := r.Booking()
	if b.BookID != "B1" || b.BookIdx != "7" || !b.Paid || b.Amount != 9000 {
		t.Fatalf("unexpected booking: %+v", b)
	}
	if b.Origin != "app" {
		t.Fatalf("expected app origin, got %q", b.Origin)
	}
	if b.UpdatedAt.IsZero() || b.CustomerUpdatedAt.IsZero() {
		t.Fatal("timestamps should be parsed")
	}
}

func TestCustomerLatestUpdate(t *testing.T) {
	c := Customer{
		ID: "C1",
		InfoSet: []CustomerInfo{
			{UpdDate: "2024-01-01T10:00:00Z"},
			{UpdDate: "2024-01-01T11:00:00Z"},
			{UpdDate: "2024-01-01T09:00:00Z"},
		},
	}
	got := c.LatestUpdate()
	want := time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
