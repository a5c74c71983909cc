package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"travelpay/internal/config"
	"travelpay/internal/domain"
	"travelpay/internal/gateway"
	"travelpay/internal/redis"
	"travelpay/internal/repository"
)

const (
	paymentLockTTL  = 30 * time.Second
	paymentLockWait = 2 * time.Second
	lockRetryDelay  = 50 * time.Millisecond
)

// maxPaymentAmount is the largest amount the payments.amount NUMERIC(10,2) column holds.
var maxPaymentAmount = decimal.RequireFromString("99999999.99")

// Gateway is the payment gateway as seen by the payment service.
type Gateway interface {
	Configured() bool
	Initialize(ctx context.Context, req gateway.InitializeRequest) (*gateway.InitResult, error)
	Verify(ctx context.Context, transactionID string) (*gateway.VerifyResult, error)
}

// ConfirmationDispatcher schedules a payment confirmation without waiting for delivery.
type ConfirmationDispatcher interface {
	Enqueue(ctx context.Context, paymentID string) error
}

// PaymentService drives the payment state machine against the gateway.
type PaymentService struct {
	paymentRepo repository.PaymentRepository
	bookingRepo repository.BookingRepository
	gateway     Gateway
	dispatcher  ConfirmationDispatcher
	locker      redis.LockStoreInterface // optional

	currency    string
	callbackURL string
	now         func() time.Time
}

// NewPaymentService creates a new PaymentService. locker and dispatcher may be nil.
func NewPaymentService(
	paymentRepo repository.PaymentRepository,
	bookingRepo repository.BookingRepository,
	gw Gateway,
	dispatcher ConfirmationDispatcher,
	locker redis.LockStoreInterface,
	cfg config.GatewayConfig,
) *PaymentService {
	return &PaymentService{
		paymentRepo: paymentRepo,
		bookingRepo: bookingRepo,
		gateway:     gw,
		dispatcher:  dispatcher,
		locker:      locker,
		currency:    cfg.DefaultCurrency,
		callbackURL: cfg.CallbackURL,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// InitiatePaymentRequest contains the parameters for starting a checkout.
type InitiatePaymentRequest struct {
	BookingID   int64
	Amount      decimal.Decimal
	Email       string
	FirstName   string
	LastName    string
	CallbackURL string
}

// InitiatePaymentResult is returned once the gateway created a checkout session.
// The payment is still pending at this point.
type InitiatePaymentResult struct {
	PaymentID     string
	PaymentURL    string
	TransactionID string
}

// InitiatePayment creates a pending payment and requests a hosted checkout for it.
func (s *PaymentService) InitiatePayment(ctx context.Context, req InitiatePaymentRequest) (*InitiatePaymentResult, error) {
	if err := validateInitiate(&req); err != nil {
		return nil, err
	}

	booking, err := s.bookingRepo.GetByID(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	payment := domain.NewPayment(id, &booking.ID, req.Amount.Round(2), s.currency, s.now())
	payment.TxRef = domain.BookingTxRef(booking.ID, id)

	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}

	if !s.gateway.Configured() {
		s.markFailed(ctx, payment, textRaw("missing gateway secret key"))
		return nil, ErrMisconfigured
	}

	callbackURL := req.CallbackURL
	if callbackURL == "" {
		callbackURL = s.callbackURL
	}

	res, err := s.gateway.Initialize(ctx, gateway.InitializeRequest{
		Amount:      payment.Amount,
		Currency:    payment.Currency,
		Email:       req.Email,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		CallbackURL: callbackURL,
		TxRef:       payment.TxRef,
	})
	if err != nil {
		if errors.Is(err, gateway.ErrMissingCredentials) {
			s.markFailed(ctx, payment, textRaw("missing gateway secret key"))
			return nil, ErrMisconfigured
		}
		raw := errorRaw(err)
		s.markFailed(ctx, payment, raw)
		return nil, &GatewayError{Kind: ErrGatewayUnavailable, Message: err.Error(), Details: raw, Cause: err}
	}

	if res.Outcome != gateway.InitAccepted {
		s.markFailed(ctx, payment, res.Raw)
		return nil, &GatewayError{Kind: ErrGatewayRejected, Message: res.Message, Details: res.Raw}
	}

	if err := payment.AttachReference(res.Reference, string(res.Raw), s.now()); err != nil {
		return nil, err
	}
	applied, err := s.paymentRepo.Update(ctx, payment, domain.PaymentStatusPending)
	if err != nil {
		return nil, fmt.Errorf("record transaction reference: %w", err)
	}
	if !applied {
		// Already settled by a racing verification; it stays reachable by tx_ref.
		log.Printf("[payment] %s left pending before reference %s was recorded", payment.ID, res.Reference)
	}

	return &InitiatePaymentResult{
		PaymentID:     payment.ID,
		PaymentURL:    res.PaymentURL,
		TransactionID: res.Reference,
	}, nil
}

// VerifyPaymentResult is the gateway-interpreted outcome of a verification.
type VerifyPaymentResult struct {
	Status  domain.PaymentStatus // completed or failed
	Payment *domain.Payment      // nil when no local payment matched the identifier
	Data    json.RawMessage
}

// VerifyPayment asks the gateway for the outcome of a transaction and
// reconciles the matching local payment, if any.
func (s *PaymentService) VerifyPayment(ctx context.Context, identifier string) (*VerifyPaymentResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, ErrMissingTransactionID
	}

	if !s.gateway.Configured() {
		return nil, ErrMisconfigured
	}

	res, err := s.gateway.Verify(ctx, identifier)
	if err != nil {
		if errors.Is(err, gateway.ErrMissingCredentials) {
			return nil, ErrMisconfigured
		}
		return nil, &GatewayError{Kind: ErrGatewayUnavailable, Message: err.Error(), Details: errorRaw(err), Cause: err}
	}

	var target domain.PaymentStatus
	switch res.Outcome {
	case gateway.VerifySuccess:
		target = domain.PaymentStatusCompleted
	case gateway.VerifyFailed:
		target = domain.PaymentStatusFailed
	default:
		return nil, &GatewayError{
			Kind:    ErrIndeterminate,
			Message: fmt.Sprintf("gateway status %q", res.GatewayStatus),
			Details: res.Raw,
		}
	}

	payment, err := s.findPayment(ctx, identifier)
	if err != nil {
		return nil, err
	}

	if payment != nil {
		payment, err = s.reconcile(ctx, payment, target, res.Raw)
		if err != nil {
			return nil, err
		}
	}

	return &VerifyPaymentResult{
		Status:  target,
		Payment: payment,
		Data:    res.Raw,
	}, nil
}

// GetPayment retrieves a payment by ID.
func (s *PaymentService) GetPayment(ctx context.Context, paymentID string) (*domain.Payment, error) {
	if paymentID == "" {
		return nil, ErrInvalidPaymentID
	}

	return s.paymentRepo.GetByID(ctx, paymentID)
}

// findPayment resolves an identifier to a local payment: gateway reference,
// then tx_ref, then a best-effort scan of stored raw responses. A miss is nil, nil.
func (s *PaymentService) findPayment(ctx context.Context, identifier string) (*domain.Payment, error) {
	lookups := []func(context.Context, string) (*domain.Payment, error){
		s.paymentRepo.GetByTransactionReference,
		s.paymentRepo.GetByTxRef,
		s.paymentRepo.FindByGatewayResponse,
	}

	for _, lookup := range lookups {
		payment, err := lookup(ctx, identifier)
		if err == nil {
			return payment, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("lookup payment %q: %w", identifier, err)
		}
	}

	return nil, nil
}

// reconcile applies the gateway outcome to a payment. Only a pending payment
// moves; terminal payments are returned unchanged. The confirmation is
// dispatched only by the caller whose compare-and-set won.
func (s *PaymentService) reconcile(ctx context.Context, payment *domain.Payment, target domain.PaymentStatus, raw json.RawMessage) (*domain.Payment, error) {
	unlock := s.lockPayment(ctx, payment.ID)
	defer unlock()

	current, err := s.paymentRepo.GetByID(ctx, payment.ID)
	if err != nil {
		return nil, err
	}

	if current.Status.IsTerminal() {
		if current.Status != target {
			log.Printf("[payment] %s is %s, gateway reports %s; keeping terminal state", current.ID, current.Status, target)
		}
		return current, nil
	}

	if err := current.TransitionTo(target, string(raw), s.now()); err != nil {
		return nil, err
	}

	applied, err := s.paymentRepo.Update(ctx, current, domain.PaymentStatusPending)
	if err != nil {
		return nil, fmt.Errorf("update payment %s: %w", current.ID, err)
	}
	if !applied {
		return s.paymentRepo.GetByID(ctx, current.ID)
	}

	if target == domain.PaymentStatusCompleted {
		s.dispatchConfirmation(ctx, current.ID)
	}

	return current, nil
}

// markFailed moves a pending payment to failed. Store errors are logged: the
// caller is already reporting a more specific failure.
func (s *PaymentService) markFailed(ctx context.Context, payment *domain.Payment, raw json.RawMessage) {
	if err := payment.TransitionTo(domain.PaymentStatusFailed, string(raw), s.now()); err != nil {
		log.Printf("[payment] %s: %v", payment.ID, err)
		return
	}
	if _, err := s.paymentRepo.Update(ctx, payment, domain.PaymentStatusPending); err != nil {
		log.Printf("[payment] failed to mark %s failed: %v", payment.ID, err)
	}
}

func (s *PaymentService) dispatchConfirmation(ctx context.Context, paymentID string) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Enqueue(ctx, paymentID); err != nil {
		log.Printf("[payment] confirmation for %s not scheduled: %v", paymentID, err)
	}
}

// lockPayment takes the distributed lock for a payment, waiting briefly.
// Lock trouble is logged and ignored; the store's compare-and-set still holds.
func (s *PaymentService) lockPayment(ctx context.Context, paymentID string) func() {
	noop := func() {}
	if s.locker == nil {
		return noop
	}

	deadline := time.Now().Add(paymentLockWait)
	for {
		token, ok, err := s.locker.AcquirePaymentLock(ctx, paymentID, paymentLockTTL)
		if err != nil {
			log.Printf("[payment] lock %s unavailable: %v", paymentID, err)
			return noop
		}
		if ok {
			return func() {
				releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
				defer cancel()
				if err := s.locker.ReleasePaymentLock(releaseCtx, paymentID, token); err != nil {
					log.Printf("[payment] lock %s release failed: %v", paymentID, err)
				}
			}
		}
		if time.Now().After(deadline) {
			log.Printf("[payment] lock %s busy, continuing without it", paymentID)
			return noop
		}

		select {
		case <-ctx.Done():
			return noop
		case <-time.After(lockRetryDelay):
		}
	}
}

func validateInitiate(req *InitiatePaymentRequest) error {
	if req.BookingID <= 0 {
		return ErrInvalidBookingID
	}

	if !req.Amount.IsPositive() || !req.Amount.Equal(req.Amount.Round(2)) || req.Amount.GreaterThan(maxPaymentAmount) {
		return ErrInvalidPaymentAmount
	}

	req.Email = strings.TrimSpace(req.Email)
	addr, err := mail.ParseAddress(req.Email)
	if req.Email == "" || err != nil || addr.Address != req.Email {
		return ErrInvalidEmail
	}

	req.CallbackURL = strings.TrimSpace(req.CallbackURL)
	if req.CallbackURL != "" {
		u, err := url.Parse(req.CallbackURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return ErrInvalidCallbackURL
		}
	}

	return nil
}

// errorRaw returns the diagnostic payload of a gateway call error.
func errorRaw(err error) json.RawMessage {
	var gwErr *gateway.Error
	if errors.As(err, &gwErr) {
		return gwErr.Raw()
	}
	return textRaw(err.Error())
}

func textRaw(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}
