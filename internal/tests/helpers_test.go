package tests

import (
	"time"

	"go.uber.org/zap"

	"servicedesk/internal/domain"
	"servicedesk/internal/service"
)

// harness wires the services over mocks.
type harness struct {
	requestRepo *MockServiceRequestRepository
	attemptRepo *MockPaymentAttemptRepository
	pricingRepo *MockPricingRepository
	cache       *MockPriceCache
	locks       *MockLockStore
	gateway     *MockGateway
	publisher   *MockPublisher

	pricing   *service.PricingService
	requests  *service.ServiceRequestService
	payments  *service.PaymentService
	callbacks *service.CallbackService
}

func newHarness() *harness {
	logger := zap.NewNop()

	h := &harness{
		attemptRepo: NewMockPaymentAttemptRepository(),
		pricingRepo: NewMockPricingRepository(),
		cache:       NewMockPriceCache(),
		locks:       NewMockLockStore(),
		gateway:     NewMockGateway(),
		publisher:   NewMockPublisher(),
	}
	h.requestRepo = NewMockServiceRequestRepository(h.attemptRepo)

	h.pricingRepo.AddEntry(domain.ServiceTypeKRA, "PIN Registration", 500)
	h.pricingRepo.AddEntry(domain.ServiceTypeComputerRepair, "Diagnostics", 500)

	notifications := service.NewNotificationService(h.publisher, logger)
	h.pricing = service.NewPricingService(h.pricingRepo, h.cache, logger)
	h.requests = service.NewServiceRequestService(h.requestRepo, h.pricing, logger)
	h.payments = service.NewPaymentService(h.requestRepo, h.attemptRepo, h.gateway, h.locks, time.Minute, logger)
	h.callbacks = service.NewCallbackService(h.requestRepo, h.attemptRepo, notifications, logger)
	return h
}

// addRequest stores a submitted, unpaid KRA request.
func (h *harness) addRequest(id string) *domain.ServiceRequest {
	now := time.Now().UTC()
	sr := &domain.ServiceRequest{
		ID:            id,
		ServiceType:   domain.ServiceTypeKRA,
		SubService:    "PIN Registration",
		FullName:      "Jane Wanjiku",
		Email:         "jane@example.com",
		Phone:         "0712345678",
		NationalID:    "12345678",
		Amount:        500,
		PaymentStatus: domain.PaymentStatusPending,
		Status:        domain.RequestStatusSubmitted,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	h.requestRepo.AddRequest(sr)
	return sr
}

// addAttempt stores a pending attempt and makes it the request's current reference.
func (h *harness) addAttempt(serviceRequestID, checkoutRequestID string, createdAt time.Time) {
	h.attemptRepo.AddAttempt(&domain.PaymentAttempt{
		ID:                "attempt-" + checkoutRequestID,
		ServiceRequestID:  serviceRequestID,
		CheckoutRequestID: checkoutRequestID,
		PhoneNumber:       "254712345678",
		Amount:            500,
		Status:            domain.PaymentStatusPending,
		CreatedAt:         createdAt,
		UpdatedAt:         createdAt,
	})

	h.requestRepo.mu.Lock()
	h.requestRepo.requests[serviceRequestID].PaymentReference = checkoutRequestID
	h.requestRepo.mu.Unlock()
}

func validSubmit() service.SubmitRequest {
	return service.SubmitRequest{
		ServiceType:    "KRA",
		SubService:     "PIN Registration",
		FullName:       "Jane Wanjiku",
		Email:          "jane@example.com",
		Phone:          "0712345678",
		NationalID:     "12345678",
		ServiceDetails: map[string]any{"kraPin": "A012345678Z"},
	}
}

func zapNop() *zap.Logger {
	return zap.NewNop()
}
