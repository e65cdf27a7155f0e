package domain

import "time"

// PaymentStatus represents the current status of a payment.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// PaymentAttempt is one STK push sent for a service request. A request may
// accumulate several attempts when the customer retries.
type PaymentAttempt struct {
	ID                string
	ServiceRequestID  string
	CheckoutRequestID string
	MerchantRequestID string
	PhoneNumber       string
	Amount            int64
	Status            PaymentStatus

	// ResultCode is nil until the provider reports an outcome.
	ResultCode    *int
	ResultDesc    string
	ReceiptNumber string

	// Reported by the provider on a successful callback.
	PaidAmount      int64
	TransactionDate string
	PayerPhone      string

	CreatedAt time.Time
	UpdatedAt time.Time
}
