package repository

import (
	"context"

	"travelpay/internal/domain"
)

// BookingRepository defines the read operations payments need on bookings.
type BookingRepository interface {
	// GetByID retrieves a booking by ID.
	GetByID(ctx context.Context, id int64) (*domain.Booking, error)
}
