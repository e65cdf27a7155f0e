// Package events publishes payment outcome events for downstream consumers.
package events

import (
	"context"
	"time"
)

// PaymentEventType names a payment outcome.
type PaymentEventType string

const (
	PaymentCompleted PaymentEventType = "payment.completed"
	PaymentFailed    PaymentEventType = "payment.failed"
)

// PaymentEvent is emitted once per attempt outcome.
type PaymentEvent struct {
	Type              PaymentEventType `json:"type"`
	ServiceRequestID  string           `json:"service_request_id"`
	ServiceType       string           `json:"service_type"`
	SubService        string           `json:"sub_service"`
	CheckoutRequestID string           `json:"checkout_request_id"`
	Amount            int64            `json:"amount"`
	ResultCode        int              `json:"result_code"`
	ResultDesc        string           `json:"result_desc,omitempty"`
	ReceiptNumber     string           `json:"receipt_number,omitempty"`
	PaymentStatus     string           `json:"payment_status"`
	Status            string           `json:"status"`
	Source            string           `json:"source"`
	Timestamp         time.Time        `json:"timestamp"`
}

// Publisher sends payment events.
type Publisher interface {
	Publish(ctx context.Context, event PaymentEvent) error
	Close() error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, PaymentEvent) error { return nil }

func (NopPublisher) Close() error { return nil }
