package repository

import (
	"context"

	"travelpay/internal/domain"
)

// PaymentRepository defines the persistence operations for payments.
type PaymentRepository interface {
	// Create persists a new payment.
	Create(ctx context.Context, payment *domain.Payment) error

	// GetByID retrieves a payment by ID.
	GetByID(ctx context.Context, id string) (*domain.Payment, error)

	// GetByTransactionReference retrieves a payment by its gateway-assigned reference.
	GetByTransactionReference(ctx context.Context, ref string) (*domain.Payment, error)

	// GetByTxRef retrieves a payment by the tx_ref sent to the gateway.
	GetByTxRef(ctx context.Context, txRef string) (*domain.Payment, error)

	// FindByGatewayResponse returns the oldest payment whose stored raw gateway
	// response contains fragment. Best effort only; never a primary lookup.
	FindByGatewayResponse(ctx context.Context, fragment string) (*domain.Payment, error)

	// Update persists status, transaction reference, tx_ref, raw response and
	// updated_at atomically, but only while the stored status still equals
	// expected. It reports whether the write was applied.
	Update(ctx context.Context, payment *domain.Payment, expected domain.PaymentStatus) (bool, error)
}
