package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"servicedesk/internal/mpesa"
	"servicedesk/internal/phone"
	"servicedesk/internal/repository"
	"servicedesk/internal/service"
)

// SuccessResponse is the envelope for every successful response.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

var errInvalidBody = errors.New("invalid request body")

// respondError sends an error response with the appropriate HTTP status code.
// Server-side failures never echo the underlying error to the client.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)

	if code >= http.StatusInternalServerError {
		_ = c.Error(err)

		msg := "Internal server error"
		if isPaymentProviderError(err) {
			msg = "Failed to initiate payment"
		}
		c.JSON(code, ErrorResponse{Error: msg, Details: "Please try again later"})
		return
	}

	resp := ErrorResponse{Error: err.Error()}

	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		resp = ErrorResponse{Error: "Missing required fields", Details: strings.Join(verr.Fields, ", ")}
	case errors.Is(err, repository.ErrNotFound):
		resp = ErrorResponse{Error: "Not found", Details: c.Request.URL.Path}
	case errors.Is(err, errInvalidBody):
		resp = ErrorResponse{Error: "Invalid request body", Details: strings.TrimPrefix(err.Error(), errInvalidBody.Error()+": ")}
	}

	c.JSON(code, resp)
}

// respondJSON sends a success envelope with the given status code.
func respondJSON(c *gin.Context, code int, data any, message string) {
	c.JSON(code, SuccessResponse{Success: true, Data: data, Message: message})
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, service.ErrUnknownCorrelationID):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, errInvalidBody),
		errors.Is(err, service.ErrUnknownServiceType),
		errors.Is(err, service.ErrPriceUnavailable),
		errors.Is(err, service.ErrInvalidPrice),
		errors.Is(err, service.ErrInvalidServiceRequestID),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrPaymentAlreadyCompleted),
		errors.Is(err, service.ErrRequestCancelled),
		errors.Is(err, phone.ErrInvalidPhoneNumber),
		errors.Is(err, mpesa.ErrMalformedCallback):
		return http.StatusBadRequest

	// Conflict errors
	case errors.Is(err, repository.ErrDuplicate),
		errors.Is(err, service.ErrPaymentInProgress),
		errors.Is(err, service.ErrInvalidStatusTransition):
		return http.StatusConflict

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}

func isPaymentProviderError(err error) bool {
	return mpesa.IsProviderError(err) || errors.Is(err, mpesa.ErrInvalidPushRequest)
}
