package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"servicedesk/internal/domain"
	"servicedesk/internal/mpesa"
	"servicedesk/internal/phone"
	"servicedesk/internal/redis"
	"servicedesk/internal/repository"
)

// PaymentGateway is the interface for the STK push provider.
type PaymentGateway interface {
	InitiatePayment(ctx context.Context, req mpesa.PushRequest) (*mpesa.PushResult, error)
	QueryPayment(ctx context.Context, checkoutRequestID string) (*mpesa.QueryResult, error)
}

const (
	accountReferencePrefix = "SR"
	accountReferenceIDLen  = 10
	maxDescriptionLen      = 13
)

// PaymentService handles payment initiation.
type PaymentService struct {
	requestRepo repository.ServiceRequestRepository
	attemptRepo repository.PaymentAttemptRepository
	gateway     PaymentGateway
	locks       redis.LockStoreInterface
	lockTTL     time.Duration
	logger      *zap.Logger
}

// NewPaymentService creates a new PaymentService. locks may be nil, in which
// case concurrent initiations for one request are not serialized.
func NewPaymentService(
	requestRepo repository.ServiceRequestRepository,
	attemptRepo repository.PaymentAttemptRepository,
	gateway PaymentGateway,
	locks redis.LockStoreInterface,
	lockTTL time.Duration,
	logger *zap.Logger,
) *PaymentService {
	if lockTTL <= 0 {
		lockTTL = mpesa.LockTTL(mpesa.DefaultTimeout)
	}
	return &PaymentService{
		requestRepo: requestRepo,
		attemptRepo: attemptRepo,
		gateway:     gateway,
		locks:       locks,
		lockTTL:     lockTTL,
		logger:      logger,
	}
}

// InitiatePaymentRequest contains the parameters for initiating a payment.
type InitiatePaymentRequest struct {
	ServiceRequestID string
	PhoneNumber      string
}

// InitiatePaymentResult is returned once the provider has accepted the push.
type InitiatePaymentResult struct {
	ServiceRequestID string
	CorrelationID    string
	MerchantID       string
	Amount           int64
	PhoneNumber      string
	CustomerMessage  string
}

// Initiate sends an STK push for the request's stored amount and records the
// attempt as the request's current payment reference.
func (s *PaymentService) Initiate(ctx context.Context, req InitiatePaymentRequest) (*InitiatePaymentResult, error) {
	var missing []string
	if strings.TrimSpace(req.ServiceRequestID) == "" {
		missing = append(missing, "serviceRequestId")
	}
	if strings.TrimSpace(req.PhoneNumber) == "" {
		missing = append(missing, "phoneNumber")
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Fields: missing}
	}

	msisdn, err := phone.Normalize(req.PhoneNumber)
	if err != nil {
		return nil, err
	}

	release, err := s.lock(ctx, req.ServiceRequestID)
	if err != nil {
		return nil, err
	}
	defer release()

	sr, err := s.requestRepo.GetByID(ctx, req.ServiceRequestID)
	if err != nil {
		return nil, err
	}

	if sr.IsPaid() {
		return nil, ErrPaymentAlreadyCompleted
	}
	if sr.Status == domain.RequestStatusCancelled {
		return nil, ErrRequestCancelled
	}

	push := mpesa.PushRequest{
		PhoneNumber:      msisdn,
		Amount:           sr.Amount,
		AccountReference: AccountReference(sr.ID),
		Description:      Description(sr.ServiceType),
	}

	result, err := s.gateway.InitiatePayment(ctx, push)
	if err != nil {
		s.logger.Error("stk push failed",
			zap.String("service_request_id", sr.ID),
			zap.String("phone", phone.Mask(msisdn)),
			zap.Int64("amount", sr.Amount),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to initiate payment: %w", err)
	}

	now := time.Now().UTC()
	attempt := &domain.PaymentAttempt{
		ID:                uuid.New().String(),
		ServiceRequestID:  sr.ID,
		CheckoutRequestID: result.CheckoutRequestID,
		MerchantRequestID: result.MerchantRequestID,
		PhoneNumber:       msisdn,
		Amount:            sr.Amount,
		Status:            domain.PaymentStatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.requestRepo.AttachPaymentAttempt(ctx, attempt); err != nil {
		if errors.Is(err, repository.ErrAlreadyPaid) {
			// Paid by an earlier prompt while this one was in flight.
			s.logger.Warn("stk push sent for request paid meanwhile",
				zap.String("service_request_id", sr.ID),
				zap.String("checkout_request_id", result.CheckoutRequestID),
				zap.String("merchant_request_id", result.MerchantRequestID),
			)
			return nil, ErrPaymentAlreadyCompleted
		}
		// The customer has a prompt on their phone that we cannot correlate.
		s.logger.Error("stk push accepted but attempt not recorded",
			zap.String("service_request_id", sr.ID),
			zap.String("checkout_request_id", result.CheckoutRequestID),
			zap.String("merchant_request_id", result.MerchantRequestID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	s.logger.Info("stk push initiated",
		zap.String("service_request_id", sr.ID),
		zap.String("checkout_request_id", result.CheckoutRequestID),
		zap.String("phone", phone.Mask(msisdn)),
		zap.Int64("amount", sr.Amount),
	)

	return &InitiatePaymentResult{
		ServiceRequestID: sr.ID,
		CorrelationID:    result.CheckoutRequestID,
		MerchantID:       result.MerchantRequestID,
		Amount:           sr.Amount,
		PhoneNumber:      msisdn,
		CustomerMessage:  result.CustomerMessage,
	}, nil
}

// PaymentStatus is the payment view of a service request.
type PaymentStatus struct {
	Request  *domain.ServiceRequest
	Attempts []*domain.PaymentAttempt
}

// Status returns the request's payment state and its attempt history.
func (s *PaymentService) Status(ctx context.Context, serviceRequestID string) (*PaymentStatus, error) {
	if strings.TrimSpace(serviceRequestID) == "" {
		return nil, ErrInvalidServiceRequestID
	}

	sr, err := s.requestRepo.GetByID(ctx, serviceRequestID)
	if err != nil {
		return nil, err
	}

	attempts, err := s.attemptRepo.ListByServiceRequest(ctx, serviceRequestID)
	if err != nil {
		return nil, err
	}

	return &PaymentStatus{Request: sr, Attempts: attempts}, nil
}

// lock takes the per-request initiation lock and returns its release func.
func (s *PaymentService) lock(ctx context.Context, serviceRequestID string) (func(), error) {
	if s.locks == nil {
		return func() {}, nil
	}

	token, ok, err := s.locks.AcquirePaymentLock(ctx, serviceRequestID, s.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire payment lock: %w", err)
	}
	if !ok {
		return nil, ErrPaymentInProgress
	}

	return func() {
		// Release even if the request context was cancelled mid-push.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.locks.ReleasePaymentLock(releaseCtx, serviceRequestID, token); err != nil {
			s.logger.Warn("failed to release payment lock",
				zap.String("service_request_id", serviceRequestID),
				zap.Error(err),
			)
		}
	}, nil
}

// AccountReference derives the provider account reference from a request id.
func AccountReference(serviceRequestID string) string {
	compact := strings.ToUpper(strings.ReplaceAll(serviceRequestID, "-", ""))
	if len(compact) > accountReferenceIDLen {
		compact = compact[:accountReferenceIDLen]
	}
	return accountReferencePrefix + compact
}

// Description is the transaction description shown on the customer's prompt.
func Description(serviceType domain.ServiceType) string {
	desc := serviceType.Label() + " fee"
	if len(desc) > maxDescriptionLen {
		desc = desc[:maxDescriptionLen]
	}
	return desc
}
