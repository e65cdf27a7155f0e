package repository

import (
	"context"
	"time"

	"servicedesk/internal/domain"
)

// PaymentAttemptRepository defines the persistence operations for payment attempts.
// Attempts are created through ServiceRequestRepository.AttachPaymentAttempt.
type PaymentAttemptRepository interface {
	// GetByCheckoutRequestID retrieves an attempt by the provider's correlation id.
	GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*domain.PaymentAttempt, error)

	// ListByServiceRequest returns all attempts for a request, newest first.
	ListByServiceRequest(ctx context.Context, serviceRequestID string) ([]*domain.PaymentAttempt, error)

	// ListPending returns pending attempts created between createdAfter and
	// createdBefore, oldest first.
	ListPending(ctx context.Context, createdAfter, createdBefore time.Time, limit int) ([]*domain.PaymentAttempt, error)

	// RecordResult overwrites the outcome fields of an attempt.
	RecordResult(ctx context.Context, attempt *domain.PaymentAttempt) error
}
