package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"travelpay/internal/repository"
	"travelpay/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string          `json:"error"`
	Details json.RawMessage `json:"details,omitempty"`
}

// respondError sends an error response with the appropriate HTTP status code.
// Gateway errors carry the raw gateway payload as details.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	resp := ErrorResponse{Error: err.Error()}

	var gwErr *service.GatewayError
	if errors.As(err, &gwErr) {
		resp.Details = gwErr.Details
	}

	if code == http.StatusInternalServerError {
		_ = c.Error(err)
		log.Printf("[handler] %s %s: %v", c.Request.Method, c.FullPath(), err)
		if !errors.Is(err, service.ErrMisconfigured) {
			resp.Error = "internal server error"
		}
	}

	c.JSON(code, resp)
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidBookingID),
		errors.Is(err, service.ErrInvalidPaymentAmount),
		errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrInvalidCallbackURL),
		errors.Is(err, service.ErrInvalidPaymentID),
		errors.Is(err, service.ErrMissingTransactionID):
		return http.StatusBadRequest

	// Gateway answered, but not with something we can act on
	case errors.Is(err, service.ErrGatewayRejected),
		errors.Is(err, service.ErrIndeterminate):
		return http.StatusBadRequest

	// Gateway unreachable
	case errors.Is(err, service.ErrGatewayUnavailable):
		return http.StatusBadGateway

	// Misconfiguration and everything else
	default:
		return http.StatusInternalServerError
	}
}
