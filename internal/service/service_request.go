package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"servicedesk/internal/domain"
	"servicedesk/internal/repository"
)

// ServiceRequestService handles service request operations.
type ServiceRequestService struct {
	requestRepo repository.ServiceRequestRepository
	pricing     *PricingService
	logger      *zap.Logger
}

// NewServiceRequestService creates a new ServiceRequestService.
func NewServiceRequestService(
	requestRepo repository.ServiceRequestRepository,
	pricing *PricingService,
	logger *zap.Logger,
) *ServiceRequestService {
	return &ServiceRequestService{
		requestRepo: requestRepo,
		pricing:     pricing,
		logger:      logger,
	}
}

// SubmitRequest contains the parameters for submitting a service request.
// It carries no amount; the amount always comes from pricing.
type SubmitRequest struct {
	ServiceType    string
	SubService     string
	FullName       string
	Email          string
	Phone          string
	NationalID     string
	ServiceDetails map[string]any
}

// Submit prices and stores a new service request.
func (s *ServiceRequestService) Submit(ctx context.Context, req SubmitRequest) (*domain.ServiceRequest, error) {
	fields := map[string]string{
		"serviceType": strings.TrimSpace(req.ServiceType),
		"subService":  strings.TrimSpace(req.SubService),
		"fullName":    strings.TrimSpace(req.FullName),
		"email":       strings.TrimSpace(req.Email),
		"phone":       strings.TrimSpace(req.Phone),
		"nationalId":  strings.TrimSpace(req.NationalID),
	}

	var missing []string
	for _, name := range []string{"serviceType", "subService", "fullName", "email", "phone", "nationalId"} {
		if fields[name] == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Fields: missing}
	}

	serviceType := domain.ServiceType(fields["serviceType"])
	if !serviceType.Valid() {
		return nil, ErrUnknownServiceType
	}

	amount, err := s.pricing.Resolve(ctx, serviceType, fields["subService"])
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sr := &domain.ServiceRequest{
		ID:             uuid.New().String(),
		ServiceType:    serviceType,
		SubService:     fields["subService"],
		FullName:       fields["fullName"],
		Email:          fields["email"],
		Phone:          fields["phone"],
		NationalID:     fields["nationalId"],
		ServiceDetails: req.ServiceDetails,
		Amount:         amount,
		PaymentStatus:  domain.PaymentStatusPending,
		Status:         domain.RequestStatusSubmitted,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.requestRepo.Create(ctx, sr); err != nil {
		return nil, err
	}

	s.logger.Info("service request submitted",
		zap.String("service_request_id", sr.ID),
		zap.String("service_type", string(sr.ServiceType)),
		zap.String("sub_service", sr.SubService),
		zap.Int64("amount", sr.Amount),
	)

	return sr, nil
}

// Get retrieves a service request by ID.
func (s *ServiceRequestService) Get(ctx context.Context, id string) (*domain.ServiceRequest, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrInvalidServiceRequestID
	}
	return s.requestRepo.GetByID(ctx, id)
}

// UpdateStatus moves a request through its fulfillment lifecycle.
func (s *ServiceRequestService) UpdateStatus(ctx context.Context, id string, status domain.RequestStatus) (*domain.ServiceRequest, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrInvalidServiceRequestID
	}
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	sr, err := s.requestRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if sr.Status == status {
		return sr, nil
	}
	if !sr.CanTransitionTo(status) {
		return nil, ErrInvalidStatusTransition
	}

	if err := s.requestRepo.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}

	s.logger.Info("service request status changed",
		zap.String("service_request_id", id),
		zap.String("from", string(sr.Status)),
		zap.String("to", string(status)),
	)

	sr.Status = status
	sr.UpdatedAt = time.Now().UTC()
	return sr, nil
}
