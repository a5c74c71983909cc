package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"travelpay/internal/domain"
	"travelpay/internal/repository"
)

const uniqueViolation = "23505"

const paymentColumns = `id, booking_id, amount, currency, status,
	COALESCE(transaction_reference, ''), COALESCE(tx_ref, ''), COALESCE(gateway_response, ''),
	created_at, updated_at`

// PaymentRepository is a PostgreSQL implementation of repository.PaymentRepository.
type PaymentRepository struct {
	q Querier
}

// NewPaymentRepository creates a new PostgreSQL payment repository.
func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{q: db}
}

// Create persists a new payment.
func (r *PaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (id, booking_id, amount, currency, status, tx_ref, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8)
	`

	var bookingID sql.NullInt64
	if payment.BookingID != nil {
		bookingID = sql.NullInt64{Int64: *payment.BookingID, Valid: true}
	}

	_, err := r.q.ExecContext(ctx, query,
		payment.ID,
		bookingID,
		payment.Amount,
		payment.Currency,
		payment.Status,
		payment.TxRef,
		payment.CreatedAt,
		payment.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return repository.ErrDuplicate
		}
		return err
	}

	return nil
}

// GetByID retrieves a payment by ID.
func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	return r.getOne(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
}

// GetByTransactionReference retrieves a payment by its gateway-assigned reference.
func (r *PaymentRepository) GetByTransactionReference(ctx context.Context, ref string) (*domain.Payment, error) {
	return r.getOne(ctx, `SELECT `+paymentColumns+` FROM payments WHERE transaction_reference = $1`, ref)
}

// GetByTxRef retrieves a payment by the tx_ref sent to the gateway.
func (r *PaymentRepository) GetByTxRef(ctx context.Context, txRef string) (*domain.Payment, error) {
	return r.getOne(ctx, `SELECT `+paymentColumns+` FROM payments WHERE tx_ref = $1`, txRef)
}

// FindByGatewayResponse returns the oldest payment whose raw gateway response
// holds fragment as a whole JSON string value, case-insensitively, so "ref-1"
// does not match "ref-10". It is a best-effort scan: any field with that value
// matches. LIKE metacharacters in fragment are matched literally.
func (r *PaymentRepository) FindByGatewayResponse(ctx context.Context, fragment string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments
		WHERE gateway_response ILIKE '%' || $1 || '%' ESCAPE '\'
		ORDER BY created_at ASC
		LIMIT 1`
	return r.getOne(ctx, query, escapeLike(`"`+fragment+`"`))
}

// Update writes the mutable fields of a payment if its stored status still
// equals expected. The transaction reference is only written while unset.
func (r *PaymentRepository) Update(ctx context.Context, payment *domain.Payment, expected domain.PaymentStatus) (bool, error) {
	query := `
		UPDATE payments
		SET status = $1,
			transaction_reference = COALESCE(transaction_reference, NULLIF($2, '')),
			tx_ref = COALESCE(tx_ref, NULLIF($3, '')),
			gateway_response = $4,
			updated_at = $5
		WHERE id = $6 AND status = $7
	`

	result, err := r.q.ExecContext(ctx, query,
		payment.Status,
		payment.TransactionReference,
		payment.TxRef,
		payment.GatewayResponse,
		payment.UpdatedAt,
		payment.ID,
		expected,
	)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	if rowsAffected == 0 {
		// Distinguish a lost compare-and-set from a missing row.
		if _, err := r.GetByID(ctx, payment.ID); err != nil {
			return false, err
		}
		return false, nil
	}

	return true, nil
}

func (r *PaymentRepository) getOne(ctx context.Context, query string, arg any) (*domain.Payment, error) {
	var (
		payment   domain.Payment
		bookingID sql.NullInt64
	)
	err := r.q.QueryRowContext(ctx, query, arg).Scan(
		&payment.ID,
		&bookingID,
		&payment.Amount,
		&payment.Currency,
		&payment.Status,
		&payment.TransactionReference,
		&payment.TxRef,
		&payment.GatewayResponse,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	if !payment.Status.Valid() {
		return nil, fmt.Errorf("payment %s has unknown status %q", payment.ID, payment.Status)
	}

	if bookingID.Valid {
		id := bookingID.Int64
		payment.BookingID = &id
	}

	return &payment, nil
}

func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, c := range s {
		if c == '%' || c == '_' || c == '\\' {
			out = append(out, '\\')
		}
		out = append(out, c)
	}
	return string(out)
}
