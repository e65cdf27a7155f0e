package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"servicedesk/internal/domain"
	"servicedesk/internal/service"
)

// PaymentHandler handles HTTP requests for payments.
type PaymentHandler struct {
	paymentService *service.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentService *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// InitiatePaymentRequest is the HTTP request body for initiating a payment.
type InitiatePaymentRequest struct {
	ServiceRequestID string `json:"serviceRequestId" binding:"required"`
	PhoneNumber      string `json:"phoneNumber" binding:"required"`
}

// InitiatePaymentResponse is the HTTP response for initiating a payment.
type InitiatePaymentResponse struct {
	ServiceRequestID string `json:"serviceRequestId"`
	CorrelationID    string `json:"correlationId"`
	MerchantID       string `json:"merchantId"`
	Amount           int64  `json:"amount"`
	PhoneNumber      string `json:"phoneNumber"`
	CustomerMessage  string `json:"customerMessage,omitempty"`
}

// PaymentStatusResponse is the HTTP response for a payment status lookup.
type PaymentStatusResponse struct {
	ServiceRequestID string                   `json:"serviceRequestId"`
	PaymentStatus    string                   `json:"paymentStatus"`
	Status           string                   `json:"status"`
	PaymentReference string                   `json:"paymentReference,omitempty"`
	Amount           int64                    `json:"amount"`
	UpdatedAt        time.Time                `json:"updatedAt"`
	Attempts         []PaymentAttemptResponse `json:"attempts"`
}

// PaymentAttemptResponse is one entry in a request's payment history.
type PaymentAttemptResponse struct {
	CheckoutRequestID string    `json:"checkoutRequestId"`
	Status            string    `json:"status"`
	ResultCode        *int      `json:"resultCode,omitempty"`
	ResultDesc        string    `json:"resultDesc,omitempty"`
	ReceiptNumber     string    `json:"receiptNumber,omitempty"`
	PaidAmount        int64     `json:"paidAmount,omitempty"`
	TransactionDate   string    `json:"transactionDate,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

// Initiate handles POST /initiate-payment
func (h *PaymentHandler) Initiate(c *gin.Context) {
	var req InitiatePaymentRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}

	result, err := h.paymentService.Initiate(c.Request.Context(), service.InitiatePaymentRequest{
		ServiceRequestID: req.ServiceRequestID,
		PhoneNumber:      req.PhoneNumber,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, InitiatePaymentResponse{
		ServiceRequestID: result.ServiceRequestID,
		CorrelationID:    result.CorrelationID,
		MerchantID:       result.MerchantID,
		Amount:           result.Amount,
		PhoneNumber:      result.PhoneNumber,
		CustomerMessage:  result.CustomerMessage,
	}, "Payment prompt sent to phone")
}

// Status handles GET /payment-status/:id
func (h *PaymentHandler) Status(c *gin.Context) {
	status, err := h.paymentService.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toPaymentStatusResponse(status), "")
}

func toPaymentStatusResponse(status *service.PaymentStatus) PaymentStatusResponse {
	sr := status.Request
	resp := PaymentStatusResponse{
		ServiceRequestID: sr.ID,
		PaymentStatus:    string(sr.PaymentStatus),
		Status:           string(sr.Status),
		PaymentReference: sr.PaymentReference,
		Amount:           sr.Amount,
		UpdatedAt:        sr.UpdatedAt,
		Attempts:         make([]PaymentAttemptResponse, 0, len(status.Attempts)),
	}
	for _, a := range status.Attempts {
		resp.Attempts = append(resp.Attempts, toPaymentAttemptResponse(a))
	}
	return resp
}

func toPaymentAttemptResponse(a *domain.PaymentAttempt) PaymentAttemptResponse {
	return PaymentAttemptResponse{
		CheckoutRequestID: a.CheckoutRequestID,
		Status:            string(a.Status),
		ResultCode:        a.ResultCode,
		ResultDesc:        a.ResultDesc,
		ReceiptNumber:     a.ReceiptNumber,
		PaidAmount:        a.PaidAmount,
		TransactionDate:   a.TransactionDate,
		CreatedAt:         a.CreatedAt,
	}
}
