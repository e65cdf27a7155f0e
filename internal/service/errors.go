package service

import (
	"errors"
	"strings"
)

var (
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrUnknownServiceType is returned when the service type is not supported.
	ErrUnknownServiceType = errors.New("unknown service type")

	// ErrPriceUnavailable is returned when no price exists for a sub-service.
	ErrPriceUnavailable = errors.New("price not available for this service")

	// ErrInvalidPrice is returned when a price is not a positive integer.
	ErrInvalidPrice = errors.New("price must be a positive integer")

	// ErrInvalidServiceRequestID is returned when the service request ID is empty.
	ErrInvalidServiceRequestID = errors.New("invalid service request id")

	// ErrPaymentAlreadyCompleted is returned when initiating payment for a paid request.
	ErrPaymentAlreadyCompleted = errors.New("payment already completed for this service request")

	// ErrRequestCancelled is returned when initiating payment for a cancelled request.
	ErrRequestCancelled = errors.New("service request has been cancelled")

	// ErrPaymentInProgress is returned when another initiation holds the request lock.
	ErrPaymentInProgress = errors.New("payment initiation already in progress")

	// ErrInvalidStatus is returned when a request status is not recognised.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrInvalidStatusTransition is returned when a status change is not allowed.
	ErrInvalidStatusTransition = errors.New("status transition not allowed")

	// ErrUnknownCorrelationID is returned when no payment attempt matches a callback.
	ErrUnknownCorrelationID = errors.New("no payment attempt matches this checkout request id")

	// ErrPersistence is returned when a store write fails after side effects occurred.
	ErrPersistence = errors.New("failed to persist payment state")
)

// ValidationError lists the request fields that are missing or invalid.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

// Is makes errors.Is(err, ErrValidation) true.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
