package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"servicedesk/internal/domain"
	"servicedesk/internal/events"
)

// NotificationService announces payment outcomes to downstream consumers.
// Delivery is best effort: a failed publish is logged and never fails the
// reconciliation that produced it.
type NotificationService struct {
	publisher events.Publisher
	logger    *zap.Logger
}

// NewNotificationService creates a new NotificationService. A nil publisher
// drops events.
func NewNotificationService(publisher events.Publisher, logger *zap.Logger) *NotificationService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &NotificationService{
		publisher: publisher,
		logger:    logger,
	}
}

// NotifyPaymentCompleted announces a successful attempt.
func (s *NotificationService) NotifyPaymentCompleted(ctx context.Context, sr *domain.ServiceRequest, attempt *domain.PaymentAttempt, source string) {
	s.send(ctx, buildPaymentEvent(events.PaymentCompleted, sr, attempt, source))
}

// NotifyPaymentFailed announces a failed or cancelled attempt.
func (s *NotificationService) NotifyPaymentFailed(ctx context.Context, sr *domain.ServiceRequest, attempt *domain.PaymentAttempt, source string) {
	s.send(ctx, buildPaymentEvent(events.PaymentFailed, sr, attempt, source))
}

func (s *NotificationService) send(ctx context.Context, event events.PaymentEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish payment event",
			zap.String("type", string(event.Type)),
			zap.String("service_request_id", event.ServiceRequestID),
			zap.String("checkout_request_id", event.CheckoutRequestID),
			zap.Error(err),
		)
		return
	}

	s.logger.Info("payment event published",
		zap.String("type", string(event.Type)),
		zap.String("service_request_id", event.ServiceRequestID),
	)
}

func buildPaymentEvent(eventType events.PaymentEventType, sr *domain.ServiceRequest, attempt *domain.PaymentAttempt, source string) events.PaymentEvent {
	event := events.PaymentEvent{
		Type:              eventType,
		ServiceRequestID:  sr.ID,
		ServiceType:       string(sr.ServiceType),
		SubService:        sr.SubService,
		CheckoutRequestID: attempt.CheckoutRequestID,
		Amount:            attempt.Amount,
		ResultDesc:        attempt.ResultDesc,
		ReceiptNumber:     attempt.ReceiptNumber,
		PaymentStatus:     string(sr.PaymentStatus),
		Status:            string(sr.Status),
		Source:            source,
		Timestamp:         time.Now().UTC(),
	}
	if attempt.ResultCode != nil {
		event.ResultCode = *attempt.ResultCode
	}
	return event
}
