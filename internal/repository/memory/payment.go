// Package memory provides an in-process payment store for development and tests.
package memory

import (
	"context"
	"strings"
	"sync"

	"travelpay/internal/domain"
	"travelpay/internal/repository"
)

type record struct {
	mu      sync.Mutex
	payment domain.Payment
}

func (r *record) snapshot() *domain.Payment {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.payment
	return &p
}

// PaymentRepository keeps payments in memory. Each payment carries its own
// mutex so updates on distinct payments never contend.
type PaymentRepository struct {
	records sync.Map // id -> *record
	byRef   sync.Map // transaction reference -> id
	byTxRef sync.Map // tx_ref -> id
}

// NewPaymentRepository creates an empty in-memory payment repository.
func NewPaymentRepository() *PaymentRepository {
	return &PaymentRepository{}
}

// Create persists a new payment.
func (r *PaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	if _, loaded := r.records.LoadOrStore(payment.ID, &record{payment: *payment}); loaded {
		return repository.ErrDuplicate
	}
	if payment.TxRef != "" {
		if _, loaded := r.byTxRef.LoadOrStore(payment.TxRef, payment.ID); loaded {
			r.records.Delete(payment.ID)
			return repository.ErrDuplicate
		}
	}
	return nil
}

// GetByID retrieves a payment by ID.
func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	v, ok := r.records.Load(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return v.(*record).snapshot(), nil
}

// GetByTransactionReference retrieves a payment by its gateway-assigned reference.
func (r *PaymentRepository) GetByTransactionReference(ctx context.Context, ref string) (*domain.Payment, error) {
	return r.lookup(ctx, &r.byRef, ref)
}

// GetByTxRef retrieves a payment by the tx_ref sent to the gateway.
func (r *PaymentRepository) GetByTxRef(ctx context.Context, txRef string) (*domain.Payment, error) {
	return r.lookup(ctx, &r.byTxRef, txRef)
}

// FindByGatewayResponse scans stored raw responses for fragment as a whole JSON
// string value, case-insensitively, and returns the oldest match. "ref-1" does
// not match "ref-10", but any field carrying the value does.
func (r *PaymentRepository) FindByGatewayResponse(ctx context.Context, fragment string) (*domain.Payment, error) {
	needle := `"` + strings.ToLower(fragment) + `"`
	var found *domain.Payment

	r.records.Range(func(_, v any) bool {
		p := v.(*record).snapshot()
		if p.GatewayResponse == "" || !strings.Contains(strings.ToLower(p.GatewayResponse), needle) {
			return true
		}
		if found == nil || p.CreatedAt.Before(found.CreatedAt) {
			found = p
		}
		return true
	})

	if found == nil {
		return nil, repository.ErrNotFound
	}
	return found, nil
}

// Update writes the mutable fields of payment if the stored status still equals expected.
func (r *PaymentRepository) Update(ctx context.Context, payment *domain.Payment, expected domain.PaymentStatus) (bool, error) {
	v, ok := r.records.Load(payment.ID)
	if !ok {
		return false, repository.ErrNotFound
	}
	rec := v.(*record)

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.payment.Status != expected {
		return false, nil
	}

	rec.payment.Status = payment.Status
	rec.payment.GatewayResponse = payment.GatewayResponse
	rec.payment.UpdatedAt = payment.UpdatedAt
	if rec.payment.TransactionReference == "" && payment.TransactionReference != "" {
		rec.payment.TransactionReference = payment.TransactionReference
		r.byRef.LoadOrStore(payment.TransactionReference, payment.ID)
	}
	if rec.payment.TxRef == "" && payment.TxRef != "" {
		rec.payment.TxRef = payment.TxRef
		r.byTxRef.LoadOrStore(payment.TxRef, payment.ID)
	}

	return true, nil
}

func (r *PaymentRepository) lookup(ctx context.Context, index *sync.Map, key string) (*domain.Payment, error) {
	id, ok := index.Load(key)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.GetByID(ctx, id.(string))
}
