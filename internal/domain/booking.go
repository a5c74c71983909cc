package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Booking represents a guest reservation on a listing.
// Bookings are owned by the listings catalog; payments only read them.
type Booking struct {
	ID          int64
	ListingID   int64
	GuestName   string
	GuestEmail  string // empty when the guest left none
	StartDate   time.Time
	EndDate     time.Time
	TotalAmount decimal.Decimal
	CreatedAt   time.Time
}
