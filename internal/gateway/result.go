package gateway

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnavailable is matched by every transport-level failure: network
	// errors, timeouts and non-2xx responses.
	ErrUnavailable = errors.New("payment gateway unavailable")

	// ErrMissingCredentials is returned when the client has no secret key.
	ErrMissingCredentials = errors.New("payment gateway credentials not configured")
)

// Error describes a transport-level gateway failure.
type Error struct {
	Op         string
	StatusCode int    // zero when no response was received
	Body       []byte // response body for non-2xx replies
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("gateway %s: unexpected status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes every *Error match ErrUnavailable.
func (e *Error) Is(target error) bool { return target == ErrUnavailable }

// Raw returns the response body, or the error text when there was none, as JSON.
func (e *Error) Raw() json.RawMessage {
	if len(e.Body) > 0 {
		return rawJSON(e.Body)
	}
	return rawJSON([]byte(e.Error()))
}

// InitializeRequest carries the fields of a hosted checkout request.
type InitializeRequest struct {
	Amount      decimal.Decimal
	Currency    string
	Email       string
	FirstName   string
	LastName    string
	CallbackURL string
	TxRef       string
}

// InitOutcome tells whether the gateway created a checkout session.
type InitOutcome int

const (
	InitAccepted InitOutcome = iota + 1
	InitRejected
)

func (o InitOutcome) String() string {
	switch o {
	case InitAccepted:
		return "accepted"
	case InitRejected:
		return "rejected"
	}
	return "unknown"
}

// InitResult is the interpreted answer to an initialize call.
type InitResult struct {
	Outcome    InitOutcome
	PaymentURL string
	Reference  string // gateway reference, falls back to the echoed tx_ref
	Message    string // gateway message on rejection
	Raw        json.RawMessage
}

// VerifyOutcome is the tri-state result of verifying a transaction.
type VerifyOutcome int

const (
	VerifySuccess VerifyOutcome = iota + 1
	VerifyFailed
	// VerifyIndeterminate covers malformed bodies and absent or unrecognized
	// status values. It must never be read as success.
	VerifyIndeterminate
)

func (o VerifyOutcome) String() string {
	switch o {
	case VerifySuccess:
		return "success"
	case VerifyFailed:
		return "failed"
	case VerifyIndeterminate:
		return "indeterminate"
	}
	return "unknown"
}

// VerifyResult is the interpreted answer to a verify call.
type VerifyResult struct {
	Outcome       VerifyOutcome
	GatewayStatus string // data.status as reported, may be empty
	Raw           json.RawMessage
}

// rawJSON returns body unchanged if it is valid JSON, otherwise body as a JSON string.
func rawJSON(body []byte) json.RawMessage {
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	quoted, _ := json.Marshal(string(body))
	return quoted
}
