package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus represents the current status of a payment.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// ErrInvalidTransition is returned when a status change would leave a terminal state
// or move a payment back to pending.
var ErrInvalidTransition = errors.New("invalid payment status transition")

// IsTerminal reports whether no further transition is allowed from s.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed
}

// Valid reports whether s is one of the known statuses.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed:
		return true
	}
	return false
}

// Payment represents a payment for a booking, mediated by the payment gateway.
type Payment struct {
	ID        string
	BookingID *int64
	Amount    decimal.Decimal
	Currency  string
	Status    PaymentStatus

	// TransactionReference is assigned by the gateway once it accepts initiation.
	// It is never cleared or reassigned.
	TransactionReference string

	// TxRef is the caller-side reference sent to the gateway (booking_{B}_pay_{P}).
	TxRef string

	// GatewayResponse holds the last raw gateway payload, kept for audit only.
	GatewayResponse string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewPayment returns a payment in pending status.
func NewPayment(id string, bookingID *int64, amount decimal.Decimal, currency string, now time.Time) *Payment {
	return &Payment{
		ID:        id,
		BookingID: bookingID,
		Amount:    amount,
		Currency:  currency,
		Status:    PaymentStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo moves a pending payment to a terminal status and records the raw
// gateway payload that caused the change.
func (p *Payment) TransitionTo(status PaymentStatus, raw string, now time.Time) error {
	if p.Status != PaymentStatusPending || !status.IsTerminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, status)
	}
	p.Status = status
	p.GatewayResponse = raw
	p.UpdatedAt = now
	return nil
}

// AttachReference records the gateway-assigned transaction reference.
// An already attached reference is never replaced.
func (p *Payment) AttachReference(ref, raw string, now time.Time) error {
	if p.TransactionReference != "" && p.TransactionReference != ref {
		return fmt.Errorf("%w: reference already set", ErrInvalidTransition)
	}
	p.TransactionReference = ref
	p.GatewayResponse = raw
	p.UpdatedAt = now
	return nil
}

// BookingTxRef builds the gateway tx_ref for a payment attempt.
func BookingTxRef(bookingID int64, paymentID string) string {
	return fmt.Sprintf("booking_%d_pay_%s", bookingID, paymentID)
}
