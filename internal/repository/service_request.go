package repository

import (
	"context"

	"servicedesk/internal/domain"
)

// ServiceRequestRepository defines the persistence operations for service requests.
type ServiceRequestRepository interface {
	// Create persists a new service request.
	Create(ctx context.Context, req *domain.ServiceRequest) error

	// GetByID retrieves a service request by ID.
	GetByID(ctx context.Context, id string) (*domain.ServiceRequest, error)

	// AttachPaymentAttempt stores a new attempt and makes it the request's
	// current payment reference, resetting payment status to pending. Both
	// writes happen atomically. When the request has been paid in the
	// meantime the attempt is still stored but the request is left alone and
	// ErrAlreadyPaid is returned.
	AttachPaymentAttempt(ctx context.Context, attempt *domain.PaymentAttempt) error

	// UpdatePaymentStatus overwrites the payment and fulfillment status.
	UpdatePaymentStatus(ctx context.Context, id string, paymentStatus domain.PaymentStatus, status domain.RequestStatus) error

	// UpdateStatus overwrites the fulfillment status.
	UpdateStatus(ctx context.Context, id string, status domain.RequestStatus) error
}
