package domain

import (
	"errors"
	"time"
)

// Booking states as reported by the upstream listing.
const (
	StateDefault   = "pending"
	StateSuccess   = "success"
	StateCanceling = "canceling"
	StateCanceled  = "canceled"
)

// OriginApp marks bookings created through the companion mobile channel.
const OriginApp = "app"

// Event streams that can touch a booking.
const (
	SourceConfirmation = "confirmation"
	SourceSnapshot     = "snapshot"
	SourceRevenue      = "revenue"
)

// ErrAlreadyCanceled is the distinguished downstream response for a cancel
// call whose target the receiver has already canceled. Treated as success.
var ErrAlreadyCanceled = errors.New("booking already canceled downstream")

// Booking is the reconciled view of one reservation across all streams.
// BookID is the stable primary key; BookIdx is the upstream's internal index
// and may only be learned after the booking is first observed.
type Booking struct {
	BookID    string
	BookIdx   string
	Name      string
	Phone     string
	PartySize int
	Holes     int
	Room      string
	State     string
	Origin    string
	Immediate bool
	Source    string

	Amount int64
	Paid   bool

	CustomerID        string
	CustomerUpdatedAt time.Time
	UpdatedAt         time.Time

	Start time.Time
	End   time.Time
}

// PaymentRecord is the latest known amount and paid flag for a booking,
// tagged with the stream that last wrote it.
type PaymentRecord struct {
	Amount int64
	Paid   bool
	Source string
}

// CreatePayload is the normalized body of a downstream create/update call.
type CreatePayload struct {
	BookID    string    `json:"book_id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	PartySize int       `json:"person"`
	Holes     int       `json:"hole"`
	Room      string    `json:"room"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Amount    int64     `json:"amount"`
	Paid      bool      `json:"paid"`
	Immediate bool      `json:"immediate"`
}

// Canceled reports whether the state is one of the two cancel states.
func Canceled(state string) bool {
	return state == StateCanceling || state == StateCanceled
}
