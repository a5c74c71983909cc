package memory

import (
	"context"
	"sync"

	"travelpay/internal/domain"
	"travelpay/internal/repository"
)

// BookingRepository is an in-memory booking lookup, seeded with Add.
type BookingRepository struct {
	mu       sync.RWMutex
	bookings map[int64]domain.Booking
}

// NewBookingRepository creates an empty in-memory booking repository.
func NewBookingRepository() *BookingRepository {
	return &BookingRepository{bookings: make(map[int64]domain.Booking)}
}

// Add stores or replaces a booking.
func (r *BookingRepository) Add(booking *domain.Booking) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bookings[booking.ID] = *booking
}

// GetByID retrieves a booking by ID.
func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &b, nil
}
