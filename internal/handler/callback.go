package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"servicedesk/internal/mpesa"
	"servicedesk/internal/service"
)

const maxCallbackBody = 64 << 10

// CallbackHandler handles provider payment callbacks.
type CallbackHandler struct {
	callbackService *service.CallbackService
	logger          *zap.Logger
}

// NewCallbackHandler creates a new CallbackHandler.
func NewCallbackHandler(callbackService *service.CallbackService, logger *zap.Logger) *CallbackHandler {
	return &CallbackHandler{
		callbackService: callbackService,
		logger:          logger,
	}
}

// CallbackResponse acknowledges a processed callback.
type CallbackResponse struct {
	CheckoutRequestID string `json:"checkoutRequestId"`
	ServiceRequestID  string `json:"serviceRequestId"`
	PaymentStatus     string `json:"paymentStatus"`
	Status            string `json:"status"`
}

// Handle handles POST /payment-callback
func (h *CallbackHandler) Handle(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxCallbackBody)
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid callback payload", Details: "unreadable body"})
		return
	}

	cb, err := mpesa.ParseCallback(body)
	if err != nil {
		h.logger.Warn("rejected malformed payment callback",
			zap.String("client_ip", c.ClientIP()),
			zap.Error(err),
		)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid callback payload", Details: err.Error()})
		return
	}

	result, err := h.callbackService.Reconcile(c.Request.Context(), service.OutcomeFromCallback(cb))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, CallbackResponse{
		CheckoutRequestID: result.Attempt.CheckoutRequestID,
		ServiceRequestID:  result.Request.ID,
		PaymentStatus:     string(result.Request.PaymentStatus),
		Status:            string(result.Request.Status),
	}, "Callback processed")
}
