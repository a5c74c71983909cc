package postgres

import (
	"context"
	"database/sql"
	"errors"

	"travelpay/internal/domain"
	"travelpay/internal/repository"
)

// BookingRepository implements repository.BookingRepository using PostgreSQL.
type BookingRepository struct {
	q Querier
}

// NewBookingRepository creates a new BookingRepository.
func NewBookingRepository(db *sql.DB) *BookingRepository {
	return &BookingRepository{q: db}
}

// GetByID retrieves a booking by ID.
func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	query := `
		SELECT id, listing_id, guest_name, COALESCE(guest_email, ''), start_date, end_date, total_amount, created_at
		FROM bookings WHERE id = $1
	`

	var booking domain.Booking
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&booking.ID,
		&booking.ListingID,
		&booking.GuestName,
		&booking.GuestEmail,
		&booking.StartDate,
		&booking.EndDate,
		&booking.TotalAmount,
		&booking.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return &booking, nil
}
