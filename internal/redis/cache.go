package redis

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"travelpay/internal/domain"
	"travelpay/internal/repository"
)

// BookingCacheTTL bounds how stale a cached guest email may be.
const BookingCacheTTL = 5 * time.Minute

const bookingCachePrefix = "cache:booking:"

// CachedBooking represents a cached booking entity.
type CachedBooking struct {
	ID          int64           `json:"id"`
	ListingID   int64           `json:"listing_id"`
	GuestName   string          `json:"guest_name"`
	GuestEmail  string          `json:"guest_email"`
	StartDate   time.Time       `json:"start_date"`
	EndDate     time.Time       `json:"end_date"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	CreatedAt   time.Time       `json:"created_at"`
}

// CacheStore handles entity caching in Redis.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// GetBooking retrieves a booking from cache. A miss returns nil, nil.
func (s *CacheStore) GetBooking(ctx context.Context, bookingID int64) (*CachedBooking, error) {
	data, err := s.client.Get(ctx, bookingKey(bookingID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Cache miss
		}
		return nil, err
	}

	var booking CachedBooking
	if err := json.Unmarshal(data, &booking); err != nil {
		return nil, err
	}
	return &booking, nil
}

// SetBooking stores a booking in cache.
func (s *CacheStore) SetBooking(ctx context.Context, booking *CachedBooking) error {
	data, err := json.Marshal(booking)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, bookingKey(booking.ID), data, BookingCacheTTL).Err()
}

func bookingKey(id int64) string {
	return bookingCachePrefix + strconv.FormatInt(id, 10)
}

// CachedBookingRepository is a read-through cache in front of a booking
// repository. Cache failures fall back to the underlying repository.
type CachedBookingRepository struct {
	next  repository.BookingRepository
	cache *CacheStore
}

// NewCachedBookingRepository wraps next with cache.
func NewCachedBookingRepository(next repository.BookingRepository, cache *CacheStore) *CachedBookingRepository {
	return &CachedBookingRepository{next: next, cache: cache}
}

// GetByID retrieves a booking, preferring the cache.
func (r *CachedBookingRepository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	cached, err := r.cache.GetBooking(ctx, id)
	if err != nil {
		log.Printf("[cache] booking %d lookup failed: %v", id, err)
	}
	if cached != nil {
		return &domain.Booking{
			ID:          cached.ID,
			ListingID:   cached.ListingID,
			GuestName:   cached.GuestName,
			GuestEmail:  cached.GuestEmail,
			StartDate:   cached.StartDate,
			EndDate:     cached.EndDate,
			TotalAmount: cached.TotalAmount,
			CreatedAt:   cached.CreatedAt,
		}, nil
	}

	booking, err := r.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := r.cache.SetBooking(ctx, &CachedBooking{
		ID:          booking.ID,
		ListingID:   booking.ListingID,
		GuestName:   booking.GuestName,
		GuestEmail:  booking.GuestEmail,
		StartDate:   booking.StartDate,
		EndDate:     booking.EndDate,
		TotalAmount: booking.TotalAmount,
		CreatedAt:   booking.CreatedAt,
	}); err != nil {
		log.Printf("[cache] booking %d store failed: %v", id, err)
	}

	return booking, nil
}
