package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"travelpay/internal/domain"
	"travelpay/internal/repository"
)

var paymentRowColumns = []string{
	"id", "booking_id", "amount", "currency", "status",
	"transaction_reference", "tx_ref", "gateway_response", "created_at", "updated_at",
}

func newMockRepo(t *testing.T) (*PaymentRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPaymentRepository(db), mock
}

func TestPaymentRepository_Create(t *testing.T) {
	repo, mock := newMockRepo(t)

	bookingID := int64(42)
	now := time.Now()
	p := domain.NewPayment("pay-1", &bookingID, decimal.RequireFromString("100.00"), "ETB", now)
	p.TxRef = "booking_42_pay_pay-1"

	mock.ExpectExec("INSERT INTO payments").
		WithArgs("pay-1", int64(42), sqlmock.AnyArg(), "ETB", domain.PaymentStatusPending, "booking_42_pay_pay-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPaymentRepository_CreateDuplicate(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("INSERT INTO payments").
		WillReturnError(&pq.Error{Code: uniqueViolation})

	p := domain.NewPayment("pay-1", nil, decimal.NewFromInt(5), "ETB", time.Now())
	if err := repo.Create(context.Background(), p); !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestPaymentRepository_GetByTransactionReference(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Now()
	mock.ExpectQuery("FROM payments WHERE transaction_reference = \\$1").
		WithArgs("ref-1").
		WillReturnRows(sqlmock.NewRows(paymentRowColumns).
			AddRow("pay-1", int64(42), "100.00", "ETB", "pending", "ref-1", "booking_42_pay_pay-1", "{}", now, now))

	p, err := repo.GetByTransactionReference(context.Background(), "ref-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != "pay-1" || p.TransactionReference != "ref-1" || p.Status != domain.PaymentStatusPending {
		t.Errorf("unexpected payment %+v", p)
	}
	if p.BookingID == nil || *p.BookingID != 42 {
		t.Errorf("unexpected booking id %v", p.BookingID)
	}
	if !p.Amount.Equal(decimal.RequireFromString("100")) {
		t.Errorf("unexpected amount %s", p.Amount)
	}
}

func TestPaymentRepository_GetByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("FROM payments WHERE id = \\$1").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(paymentRowColumns))

	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPaymentRepository_FindByGatewayResponseEscapesPattern(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Now()
	mock.ExpectQuery("gateway_response ILIKE").
		WithArgs(`"ref\_1\%"`).
		WillReturnRows(sqlmock.NewRows(paymentRowColumns).
			AddRow("pay-1", nil, "10.00", "ETB", "pending", "", "", `{"ref":"ref_1%"}`, now, now))

	p, err := repo.FindByGatewayResponse(context.Background(), "ref_1%")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.BookingID != nil {
		t.Errorf("expected nil booking id, got %v", *p.BookingID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPaymentRepository_GetRejectsUnknownStatus(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Now()
	mock.ExpectQuery("FROM payments WHERE id = \\$1").
		WithArgs("pay-1").
		WillReturnRows(sqlmock.NewRows(paymentRowColumns).
			AddRow("pay-1", nil, "10.00", "ETB", "refunded", "", "", "{}", now, now))

	p, err := repo.GetByID(context.Background(), "pay-1")
	if err == nil {
		t.Fatalf("expected error for unknown status, got %+v", p)
	}
	if errors.Is(err, repository.ErrNotFound) {
		t.Errorf("unknown status must not read as not found: %v", err)
	}
}

func TestPaymentRepository_UpdateAppliesWhenStatusMatches(t *testing.T) {
	repo, mock := newMockRepo(t)

	p := domain.NewPayment("pay-1", nil, decimal.NewFromInt(10), "ETB", time.Now())
	_ = p.TransitionTo(domain.PaymentStatusCompleted, `{"status":"success"}`, time.Now())

	mock.ExpectExec("UPDATE payments").
		WithArgs(domain.PaymentStatusCompleted, "", "", `{"status":"success"}`, sqlmock.AnyArg(), "pay-1", domain.PaymentStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	applied, err := repo.Update(context.Background(), p, domain.PaymentStatusPending)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !applied {
		t.Error("expected update to be applied")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPaymentRepository_UpdateLosesCompareAndSet(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Now()
	p := domain.NewPayment("pay-1", nil, decimal.NewFromInt(10), "ETB", now)
	_ = p.TransitionTo(domain.PaymentStatusFailed, "{}", now)

	mock.ExpectExec("UPDATE payments").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FROM payments WHERE id = \\$1").
		WithArgs("pay-1").
		WillReturnRows(sqlmock.NewRows(paymentRowColumns).
			AddRow("pay-1", nil, "10.00", "ETB", "completed", "ref-1", "", "{}", now, now))

	applied, err := repo.Update(context.Background(), p, domain.PaymentStatusPending)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if applied {
		t.Error("expected update not to be applied")
	}
}

func TestPaymentRepository_UpdateMissingRow(t *testing.T) {
	repo, mock := newMockRepo(t)

	p := domain.NewPayment("ghost", nil, decimal.NewFromInt(10), "ETB", time.Now())

	mock.ExpectExec("UPDATE payments").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FROM payments WHERE id = \\$1").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(paymentRowColumns))

	if _, err := repo.Update(context.Background(), p, domain.PaymentStatusPending); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBookingRepository_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery("FROM bookings WHERE id = \\$1").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "listing_id", "guest_name", "guest_email", "start_date", "end_date", "total_amount", "created_at"}).
			AddRow(int64(42), int64(7), "Abebe", "a@b.com", now, now.Add(48*time.Hour), "250.00", now))

	b, err := NewBookingRepository(db).GetByID(context.Background(), 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.GuestEmail != "a@b.com" || b.ListingID != 7 {
		t.Errorf("unexpected booking %+v", b)
	}
}
