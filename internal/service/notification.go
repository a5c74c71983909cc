package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/smtp"
	"strings"
	"sync"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"

	"travelpay/internal/config"
	"travelpay/internal/domain"
	"travelpay/internal/repository"
)

const deliveryTimeout = 30 * time.Second

var (
	// ErrQueueFull is returned by Enqueue when no queue slot is free.
	ErrQueueFull = errors.New("notification queue full")

	// ErrDispatcherClosed is returned by Enqueue after Shutdown.
	ErrDispatcherClosed = errors.New("notification dispatcher closed")
)

// Message is an outbound email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct{}

// Send logs msg.
func (LogMailer) Send(ctx context.Context, msg Message) error {
	log.Printf("[NOTIFICATION] To=%s, Subject=%s, Body=%q", msg.To, msg.Subject, msg.Body)
	return nil
}

// SMTPMailer sends messages through an SMTP relay.
type SMTPMailer struct {
	addr string
	from string
	auth smtp.Auth
}

// NewSMTPMailer creates an SMTPMailer. Auth is only used when a user is set.
func NewSMTPMailer(cfg config.NotificationConfig) *SMTPMailer {
	m := &SMTPMailer{addr: cfg.SMTPAddr, from: cfg.From}
	if cfg.SMTPUser != "" {
		host := cfg.SMTPAddr
		if i := strings.LastIndex(host, ":"); i >= 0 {
			host = host[:i]
		}
		m.auth = smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPassword, host)
	}
	return m
}

// Send delivers msg.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(msg.Body)

	return smtp.SendMail(m.addr, m.auth, m.from, []string{msg.To}, []byte(b.String()))
}

// NotificationDispatcher delivers payment confirmations from a bounded queue
// with a fixed pool of workers. Delivery failures are logged and dropped.
type NotificationDispatcher struct {
	paymentRepo repository.PaymentRepository
	bookingRepo repository.BookingRepository
	mailer      Mailer
	nrApp       *newrelic.Application

	mu     sync.RWMutex
	closed bool
	queue  chan string
	wg     sync.WaitGroup
}

// NewNotificationDispatcher creates a dispatcher and starts its workers.
// nrApp may be nil.
func NewNotificationDispatcher(
	paymentRepo repository.PaymentRepository,
	bookingRepo repository.BookingRepository,
	mailer Mailer,
	cfg config.NotificationConfig,
	nrApp *newrelic.Application,
) *NotificationDispatcher {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	queueSize := cfg.QueueSize
	if queueSize < 1 {
		queueSize = 1
	}

	d := &NotificationDispatcher{
		paymentRepo: paymentRepo,
		bookingRepo: bookingRepo,
		mailer:      mailer,
		nrApp:       nrApp,
		queue:       make(chan string, queueSize),
	}

	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}

	return d
}

// Enqueue schedules a confirmation for paymentID. It never blocks.
func (d *NotificationDispatcher) Enqueue(ctx context.Context, paymentID string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrDispatcherClosed
	}

	select {
	case d.queue <- paymentID:
		return nil
	default:
		return ErrQueueFull
	}
}

// Shutdown stops accepting work and waits for queued confirmations to drain,
// or for ctx to end.
func (d *NotificationDispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *NotificationDispatcher) worker() {
	defer d.wg.Done()
	for paymentID := range d.queue {
		d.process(paymentID)
	}
}

func (d *NotificationDispatcher) process(paymentID string) {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	var txn *newrelic.Transaction
	if d.nrApp != nil {
		txn = d.nrApp.StartTransaction("notification/payment-confirmation")
		defer txn.End()
		ctx = newrelic.NewContext(ctx, txn)
	}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("[notification] panic sending confirmation for %s: %v", paymentID, r)
		}
	}()

	sent, err := d.SendPaymentConfirmation(ctx, paymentID)
	if err != nil {
		log.Printf("[notification] confirmation for %s failed: %v", paymentID, err)
		txn.NoticeError(err)
		return
	}
	if !sent {
		log.Printf("[notification] confirmation for %s skipped: no recipient", paymentID)
	}
}

// SendPaymentConfirmation emails the guest of the payment's booking. It reports
// false, without error, when there is nobody to write to.
func (d *NotificationDispatcher) SendPaymentConfirmation(ctx context.Context, paymentID string) (bool, error) {
	payment, err := d.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	if payment.BookingID == nil {
		return false, nil
	}

	booking, err := d.bookingRepo.GetByID(ctx, *payment.BookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	if booking.GuestEmail == "" {
		return false, nil
	}

	if err := d.mailer.Send(ctx, Message{
		To:      booking.GuestEmail,
		Subject: "Payment Confirmation",
		Body:    FormatConfirmation(payment, booking),
	}); err != nil {
		return false, err
	}

	return true, nil
}

// FormatConfirmation formats the confirmation email body.
func FormatConfirmation(payment *domain.Payment, booking *domain.Booking) string {
	return fmt.Sprintf("Your payment for booking #%d was successful. Amount: %s %s.", booking.ID, payment.Amount.StringFixed(2), payment.Currency) + `

=====================================
        PAYMENT RECEIPT
=====================================
Payment ID:  ` + payment.ID + `
Reference:   ` + payment.TransactionReference + `
Guest:       ` + booking.GuestName + `
Stay:        ` + formatStay(booking) + `
Paid on:     ` + payment.UpdatedAt.Format("Jan 02, 2006 3:04 PM") + `
=====================================
`
}

func formatStay(b *domain.Booking) string {
	if b.StartDate.IsZero() || b.EndDate.IsZero() {
		return "-"
	}
	return b.StartDate.Format("Jan 02, 2006") + " - " + b.EndDate.Format("Jan 02, 2006")
}
