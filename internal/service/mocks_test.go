package service_test

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"travelpay/internal/config"
	"travelpay/internal/domain"
	"travelpay/internal/gateway"
	"travelpay/internal/repository/memory"
	"travelpay/internal/service"
)

// ──────────────────────────────────────────────
// MOCK GATEWAY
// ──────────────────────────────────────────────

// MockGateway is a scripted payment gateway.
type MockGateway struct {
	mu sync.Mutex

	Unconfigured bool

	InitResult *gateway.InitResult
	InitError  error
	LastInit   gateway.InitializeRequest

	// VerifyResults maps an identifier to its scripted outcome.
	VerifyResults map[string]*gateway.VerifyResult
	VerifyError   error
	VerifyDelay   time.Duration

	// Counters for verification
	InitCallCount   int32
	VerifyCallCount int32
}

// NewMockGateway creates a gateway that accepts every initialization as ref-1.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		InitResult: &gateway.InitResult{
			Outcome:    gateway.InitAccepted,
			PaymentURL: "https://checkout.chapa.co/checkout/payment/ref-1",
			Reference:  "ref-1",
			Raw:        json.RawMessage(`{"status":"success","data":{"checkout_url":"https://checkout.chapa.co/checkout/payment/ref-1"}}`),
		},
		VerifyResults: make(map[string]*gateway.VerifyResult),
	}
}

// Succeed scripts a successful verification for id.
func (m *MockGateway) Succeed(id string) {
	m.script(id, gateway.VerifySuccess, "success")
}

// Fail scripts a failed verification for id.
func (m *MockGateway) Fail(id string) {
	m.script(id, gateway.VerifyFailed, "failed")
}

func (m *MockGateway) script(id string, outcome gateway.VerifyOutcome, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.VerifyResults[id] = &gateway.VerifyResult{
		Outcome:       outcome,
		GatewayStatus: status,
		Raw:           json.RawMessage(`{"status":"success","data":{"status":"` + status + `","reference":"` + id + `"}}`),
	}
}

func (m *MockGateway) Configured() bool {
	return !m.Unconfigured
}

func (m *MockGateway) Initialize(ctx context.Context, req gateway.InitializeRequest) (*gateway.InitResult, error) {
	atomic.AddInt32(&m.InitCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastInit = req
	if m.InitError != nil {
		return nil, m.InitError
	}
	return m.InitResult, nil
}

func (m *MockGateway) Verify(ctx context.Context, transactionID string) (*gateway.VerifyResult, error) {
	atomic.AddInt32(&m.VerifyCallCount, 1)
	if m.VerifyDelay > 0 {
		time.Sleep(m.VerifyDelay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.VerifyError != nil {
		return nil, m.VerifyError
	}
	if res, ok := m.VerifyResults[transactionID]; ok {
		return res, nil
	}
	return &gateway.VerifyResult{
		Outcome: gateway.VerifyIndeterminate,
		Raw:     json.RawMessage(`{"status":"failed","message":"Invalid transaction"}`),
	}, nil
}

// ──────────────────────────────────────────────
// MOCK DISPATCHER
// ──────────────────────────────────────────────

// MockDispatcher records scheduled confirmations.
type MockDispatcher struct {
	mu         sync.Mutex
	paymentIDs []string

	EnqueueCallCount int32
	EnqueueError     error
}

func (m *MockDispatcher) Enqueue(ctx context.Context, paymentID string) error {
	atomic.AddInt32(&m.EnqueueCallCount, 1)
	if m.EnqueueError != nil {
		return m.EnqueueError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paymentIDs = append(m.paymentIDs, paymentID)
	return nil
}

// Scheduled returns the payment IDs enqueued so far.
func (m *MockDispatcher) Scheduled() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.paymentIDs...)
}

// ──────────────────────────────────────────────
// MOCK PAYMENT REPOSITORY
// ──────────────────────────────────────────────

// MockPaymentRepository is the in-memory repository with a record of created IDs.
type MockPaymentRepository struct {
	*memory.PaymentRepository

	mu      sync.Mutex
	created []string
}

// NewMockPaymentRepository creates an empty mock payment repository.
func NewMockPaymentRepository() *MockPaymentRepository {
	return &MockPaymentRepository{PaymentRepository: memory.NewPaymentRepository()}
}

func (m *MockPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	if err := m.PaymentRepository.Create(ctx, payment); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, payment.ID)
	return nil
}

// Created returns the IDs of created payments in order.
func (m *MockPaymentRepository) Created() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.created...)
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is an in-process payment lock.
type MockLockStore struct {
	mu    sync.Mutex
	held  map[string]string
	seq   int
	Error error

	AcquireCallCount int32
	ReleaseCallCount int32
}

// NewMockLockStore creates an empty lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{held: make(map[string]string)}
}

func (m *MockLockStore) AcquirePaymentLock(ctx context.Context, paymentID string, ttl time.Duration) (string, bool, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	if m.Error != nil {
		return "", false, m.Error
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.held[paymentID]; ok {
		return "", false, nil
	}
	m.seq++
	token := strconv.Itoa(m.seq)
	m.held[paymentID] = token
	return token, true, nil
}

func (m *MockLockStore) ReleasePaymentLock(ctx context.Context, paymentID, token string) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[paymentID] == token {
		delete(m.held, paymentID)
	}
	return nil
}

// ──────────────────────────────────────────────
// FIXTURE
// ──────────────────────────────────────────────

type fixture struct {
	payments   *MockPaymentRepository
	bookings   *memory.BookingRepository
	gateway    *MockGateway
	dispatcher *MockDispatcher
	locks      *MockLockStore
	service    *service.PaymentService
}

func newFixture() *fixture {
	f := &fixture{
		payments:   NewMockPaymentRepository(),
		bookings:   memory.NewBookingRepository(),
		gateway:    NewMockGateway(),
		dispatcher: &MockDispatcher{},
		locks:      NewMockLockStore(),
	}
	f.bookings.Add(&domain.Booking{
		ID:          42,
		ListingID:   7,
		GuestName:   "Abebe Bikila",
		GuestEmail:  "abebe@example.com",
		TotalAmount: decimal.RequireFromString("100.00"),
	})
	f.service = service.NewPaymentService(f.payments, f.bookings, f.gateway, f.dispatcher, f.locks, defaultGatewayConfig())
	return f
}

func defaultGatewayConfig() config.GatewayConfig {
	return config.GatewayConfig{
		CallbackURL:     "https://api.example.com/payment/verify",
		DefaultCurrency: "ETB",
	}
}

func validInitiateRequest() service.InitiatePaymentRequest {
	return service.InitiatePaymentRequest{
		BookingID: 42,
		Amount:    decimal.RequireFromString("100.00"),
		Email:     "abebe@example.com",
		FirstName: "Abebe",
		LastName:  "Bikila",
	}
}
