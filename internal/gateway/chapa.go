// Package gateway talks to the Chapa payment gateway HTTP API.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"

	"travelpay/internal/config"
)

const maxBodyBytes = 1 << 20

// ChapaClient is a stateless adapter over the Chapa transaction API.
type ChapaClient struct {
	httpClient *http.Client
	baseURL    string
	secretKey  string
}

// NewChapaClient creates a client. Outbound calls are traced by New Relic when
// the request context carries a transaction.
func NewChapaClient(cfg config.GatewayConfig) *ChapaClient {
	return &ChapaClient{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: newrelic.NewRoundTripper(http.DefaultTransport),
		},
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		secretKey: cfg.SecretKey,
	}
}

// Configured reports whether a secret key was supplied.
func (c *ChapaClient) Configured() bool {
	return c.secretKey != ""
}

type initializePayload struct {
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Email       string `json:"email"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	CallbackURL string `json:"callback_url"`
	TxRef       string `json:"tx_ref"`
}

type initializeResponse struct {
	Status  string          `json:"status"`
	Message json.RawMessage `json:"message"`
	Data    *struct {
		PaymentURL  string `json:"payment_url"`
		CheckoutURL string `json:"checkout_url"`
		Reference   string `json:"reference"`
		TxRef       string `json:"tx_ref"`
	} `json:"data"`
}

// Initialize requests a hosted checkout session.
// Transport failures are returned as *Error; business rejections as an InitRejected result.
func (c *ChapaClient) Initialize(ctx context.Context, req InitializeRequest) (*InitResult, error) {
	if !c.Configured() {
		return nil, ErrMissingCredentials
	}

	payload, err := json.Marshal(initializePayload{
		Amount:      req.Amount.StringFixed(2),
		Currency:    req.Currency,
		Email:       req.Email,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		CallbackURL: req.CallbackURL,
		TxRef:       req.TxRef,
	})
	if err != nil {
		return nil, fmt.Errorf("encode initialize request: %w", err)
	}

	body, err := c.do(ctx, "initialize", http.MethodPost, c.baseURL+"/transaction/initialize", payload)
	if err != nil {
		return nil, err
	}

	result := &InitResult{Outcome: InitRejected, Raw: rawJSON(body)}

	var resp initializeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		result.Message = "malformed initialize response"
		return result, nil
	}
	result.Message = messageText(resp.Message)

	if resp.Status != "success" || resp.Data == nil {
		return result, nil
	}

	paymentURL := resp.Data.PaymentURL
	if paymentURL == "" {
		paymentURL = resp.Data.CheckoutURL
	}
	reference := resp.Data.Reference
	if reference == "" {
		reference = resp.Data.TxRef
	}
	if paymentURL == "" || reference == "" {
		result.Message = "initialize response missing checkout url or reference"
		return result, nil
	}

	result.Outcome = InitAccepted
	result.PaymentURL = paymentURL
	result.Reference = reference
	return result, nil
}

type verifyResponse struct {
	Status string `json:"status"`
	Data   *struct {
		Status string `json:"status"`
	} `json:"data"`
}

// Verify queries the gateway for the outcome of a transaction.
func (c *ChapaClient) Verify(ctx context.Context, transactionID string) (*VerifyResult, error) {
	if !c.Configured() {
		return nil, ErrMissingCredentials
	}

	body, err := c.do(ctx, "verify", http.MethodGet, c.baseURL+"/transaction/verify/"+url.PathEscape(transactionID), nil)
	if err != nil {
		return nil, err
	}

	result := &VerifyResult{Outcome: VerifyIndeterminate, Raw: rawJSON(body)}

	var resp verifyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return result, nil
	}
	if resp.Status != "success" || resp.Data == nil {
		return result, nil
	}

	result.GatewayStatus = resp.Data.Status
	result.Outcome = interpretVerifyStatus(resp.Data.Status)
	return result, nil
}

func interpretVerifyStatus(status string) VerifyOutcome {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "success", "completed":
		return VerifySuccess
	case "failed", "failure", "cancelled", "canceled", "declined", "expired", "reversed":
		return VerifyFailed
	default:
		return VerifyIndeterminate
	}
}

// do issues one request and returns the 2xx body. Anything else becomes *Error.
func (c *ChapaClient) do(ctx context.Context, op, method, endpoint string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, &Error{Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &Error{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Op: op, StatusCode: resp.StatusCode, Body: body}
	}

	log.Printf("[gateway] %s status=%d duration=%s", op, resp.StatusCode, time.Since(start))
	return body, nil
}

// messageText flattens Chapa's message field, which is either a string or an object.
func messageText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
