package service

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrInvalidBookingID is returned when booking ID is missing or not positive.
	ErrInvalidBookingID = errors.New("invalid booking id")

	// ErrInvalidPaymentAmount is returned when payment amount is missing or not positive.
	ErrInvalidPaymentAmount = errors.New("invalid payment amount")

	// ErrInvalidEmail is returned when the payer email is missing or malformed.
	ErrInvalidEmail = errors.New("invalid email")

	// ErrInvalidCallbackURL is returned when a supplied callback URL is not absolute http(s).
	ErrInvalidCallbackURL = errors.New("invalid callback url")

	// ErrInvalidPaymentID is returned when payment ID is empty.
	ErrInvalidPaymentID = errors.New("invalid payment id")

	// ErrMissingTransactionID is returned when verification has no identifier.
	ErrMissingTransactionID = errors.New("transaction_id, reference or tx_ref is required")

	// ErrMisconfigured is returned when gateway credentials are absent.
	ErrMisconfigured = errors.New("payment gateway is not configured")

	// ErrGatewayUnavailable is returned on transport-level gateway failures.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	// ErrGatewayRejected is returned when the gateway explicitly declines initiation.
	ErrGatewayRejected = errors.New("payment gateway rejected the request")

	// ErrIndeterminate is returned when a verify response cannot be interpreted.
	ErrIndeterminate = errors.New("unexpected response from payment gateway")
)

// GatewayError carries one of ErrGatewayUnavailable, ErrGatewayRejected or
// ErrIndeterminate together with the raw gateway payload.
type GatewayError struct {
	Kind    error
	Message string
	Details json.RawMessage
	Cause   error
}

func (e *GatewayError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%v: %s", e.Kind, e.Message)
	}
	return e.Kind.Error()
}

// Is matches the error kind.
func (e *GatewayError) Is(target error) bool { return target == e.Kind }

func (e *GatewayError) Unwrap() error { return e.Cause }
