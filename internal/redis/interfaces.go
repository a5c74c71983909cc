package redis

import (
	"context"
	"time"

	"travelpay/internal/repository"
)

// LockStoreInterface defines the interface for distributed locking.
type LockStoreInterface interface {
	AcquirePaymentLock(ctx context.Context, paymentID string, ttl time.Duration) (string, bool, error)
	ReleasePaymentLock(ctx context.Context, paymentID, token string) error
}

// Ensure concrete types implement interfaces.
var (
	_ LockStoreInterface           = (*LockStore)(nil)
	_ repository.BookingRepository = (*CachedBookingRepository)(nil)
)
