package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"travelpay/internal/domain"
	"travelpay/internal/service"
)

// PaymentService is the subset of service.PaymentService the handler needs.
type PaymentService interface {
	InitiatePayment(ctx context.Context, req service.InitiatePaymentRequest) (*service.InitiatePaymentResult, error)
	VerifyPayment(ctx context.Context, identifier string) (*service.VerifyPaymentResult, error)
	GetPayment(ctx context.Context, paymentID string) (*domain.Payment, error)
}

// PaymentHandler handles HTTP requests for payments.
type PaymentHandler struct {
	paymentService PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentService PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// InitiatePaymentRequest is the HTTP request body for starting a checkout.
// Amount accepts both a decimal string and a JSON number.
type InitiatePaymentRequest struct {
	BookingID   int64           `json:"booking_id"`
	Amount      decimal.Decimal `json:"amount"`
	FirstName   string          `json:"first_name"`
	LastName    string          `json:"last_name"`
	Email       string          `json:"email"`
	CallbackURL string          `json:"callback_url"`
	RedirectURL string          `json:"redirect_url"`
}

// InitiatePaymentResponse is the HTTP response for a created checkout.
type InitiatePaymentResponse struct {
	PaymentURL    string `json:"payment_url"`
	TransactionID string `json:"transaction_id"`
}

// VerifyPaymentResponse is the HTTP response for a verification.
type VerifyPaymentResponse struct {
	Status        string          `json:"status"`
	Data          json.RawMessage `json:"data"`
	PaymentID     string          `json:"payment_id,omitempty"`
	PaymentStatus string          `json:"payment_status,omitempty"`
}

// PaymentResponse is the HTTP response for a stored payment.
type PaymentResponse struct {
	ID                   string    `json:"id"`
	BookingID            *int64    `json:"booking_id"`
	Amount               string    `json:"amount"`
	Currency             string    `json:"currency"`
	Status               string    `json:"status"`
	TransactionReference string    `json:"transaction_reference,omitempty"`
	TxRef                string    `json:"tx_ref,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// InitiatePayment handles POST /payment/initiate
func (h *PaymentHandler) InitiatePayment(c *gin.Context) {
	var req InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	callbackURL := req.CallbackURL
	if callbackURL == "" {
		callbackURL = req.RedirectURL
	}

	result, err := h.paymentService.InitiatePayment(c.Request.Context(), service.InitiatePaymentRequest{
		BookingID:   req.BookingID,
		Amount:      req.Amount,
		Email:       req.Email,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		CallbackURL: callbackURL,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, InitiatePaymentResponse{
		PaymentURL:    result.PaymentURL,
		TransactionID: result.TransactionID,
	})
}

// VerifyPayment handles GET /payment/verify
func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	identifier := firstQuery(c, "transaction_id", "reference", "tx_ref", "trx_ref")

	result, err := h.paymentService.VerifyPayment(c.Request.Context(), identifier)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := VerifyPaymentResponse{
		Status: string(result.Status),
		Data:   result.Data,
	}
	if result.Payment != nil {
		resp.PaymentID = result.Payment.ID
		resp.PaymentStatus = string(result.Payment.Status)
	}

	respondJSON(c, http.StatusOK, resp)
}

// GetPayment handles GET /payments/:id
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	payment, err := h.paymentService.GetPayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, PaymentResponse{
		ID:                   payment.ID,
		BookingID:            payment.BookingID,
		Amount:               payment.Amount.StringFixed(2),
		Currency:             payment.Currency,
		Status:               string(payment.Status),
		TransactionReference: payment.TransactionReference,
		TxRef:                payment.TxRef,
		CreatedAt:            payment.CreatedAt,
		UpdatedAt:            payment.UpdatedAt,
	})
}

func firstQuery(c *gin.Context, keys ...string) string {
	for _, key := range keys {
		if v := c.Query(key); v != "" {
			return v
		}
	}
	return ""
}
