package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func newTestPayment() *Payment {
	bookingID := int64(42)
	return NewPayment("pay-1", &bookingID, decimal.RequireFromString("100.00"), "ETB", time.Now())
}

func TestPayment_CreatedPending(t *testing.T) {
	t.Parallel()

	p := newTestPayment()
	if p.Status != PaymentStatusPending {
		t.Fatalf("expected status %s, got %s", PaymentStatusPending, p.Status)
	}
	if !p.CreatedAt.Equal(p.UpdatedAt) {
		t.Error("expected created_at == updated_at on creation")
	}
}

func TestPayment_TransitionFromPending(t *testing.T) {
	t.Parallel()

	for _, target := range []PaymentStatus{PaymentStatusCompleted, PaymentStatusFailed} {
		p := newTestPayment()
		later := p.UpdatedAt.Add(time.Minute)

		if err := p.TransitionTo(target, `{"status":"success"}`, later); err != nil {
			t.Fatalf("transition to %s: unexpected error: %v", target, err)
		}
		if p.Status != target {
			t.Errorf("expected status %s, got %s", target, p.Status)
		}
		if !p.UpdatedAt.Equal(later) {
			t.Error("expected updated_at to move on transition")
		}
		if p.GatewayResponse != `{"status":"success"}` {
			t.Errorf("unexpected raw response %q", p.GatewayResponse)
		}
	}
}

func TestPayment_TerminalStatesNeverChange(t *testing.T) {
	t.Parallel()

	terminal := []PaymentStatus{PaymentStatusCompleted, PaymentStatusFailed}
	targets := []PaymentStatus{PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed}

	for _, from := range terminal {
		for _, to := range targets {
			p := newTestPayment()
			p.Status = from

			err := p.TransitionTo(to, "raw", time.Now())
			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("%s -> %s: expected ErrInvalidTransition, got %v", from, to, err)
			}
			if p.Status != from {
				t.Errorf("%s -> %s: status changed to %s", from, to, p.Status)
			}
		}
	}
}

func TestPayment_CannotTransitionToPending(t *testing.T) {
	t.Parallel()

	p := newTestPayment()
	if err := p.TransitionTo(PaymentStatusPending, "", time.Now()); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestPayment_ReferenceNeverReassigned(t *testing.T) {
	t.Parallel()

	p := newTestPayment()
	if err := p.AttachReference("ref-1", "{}", time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Re-attaching the same reference is harmless.
	if err := p.AttachReference("ref-1", "{}", time.Now()); err != nil {
		t.Fatalf("unexpected error re-attaching same reference: %v", err)
	}

	if err := p.AttachReference("ref-2", "{}", time.Now()); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if p.TransactionReference != "ref-1" {
		t.Errorf("expected reference ref-1, got %s", p.TransactionReference)
	}
}

func TestPaymentStatus_Valid(t *testing.T) {
	t.Parallel()

	for _, s := range []PaymentStatus{PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed} {
		if !s.Valid() {
			t.Errorf("expected %s to be valid", s)
		}
	}
	if PaymentStatus("refunded").Valid() {
		t.Error("expected unknown status to be invalid")
	}
}

func TestBookingTxRef(t *testing.T) {
	t.Parallel()

	if got := BookingTxRef(42, "abc"); got != "booking_42_pay_abc" {
		t.Errorf("unexpected tx_ref %q", got)
	}
}
