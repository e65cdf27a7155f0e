package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"servicedesk/internal/domain"
	"servicedesk/internal/mpesa"
	"servicedesk/internal/repository"
)

// Outcome sources.
const (
	SourceCallback = "callback"
	SourceQuery    = "query"
)

// PaymentOutcome is a definitive result for one STK push, from either the
// provider callback or a status query.
type PaymentOutcome struct {
	CheckoutRequestID string
	MerchantRequestID string
	ResultCode        int
	ResultDesc        string
	Amount            int64
	ReceiptNumber     string
	TransactionDate   string
	PhoneNumber       string
	Source            string
}

// Succeeded reports whether the customer paid.
func (o PaymentOutcome) Succeeded() bool {
	return o.ResultCode == 0
}

// OutcomeFromCallback converts a parsed provider callback.
func OutcomeFromCallback(cb *mpesa.CallbackResult) PaymentOutcome {
	return PaymentOutcome{
		CheckoutRequestID: cb.CheckoutRequestID,
		MerchantRequestID: cb.MerchantRequestID,
		ResultCode:        cb.ResultCode,
		ResultDesc:        cb.ResultDesc,
		Amount:            cb.Amount,
		ReceiptNumber:     cb.ReceiptNumber,
		TransactionDate:   cb.TransactionDate,
		PhoneNumber:       cb.PhoneNumber,
		Source:            SourceCallback,
	}
}

// ReconcileResult is the state after an outcome has been applied.
type ReconcileResult struct {
	Request *domain.ServiceRequest
	Attempt *domain.PaymentAttempt

	// Changed is false when the outcome had already been applied.
	Changed bool
}

// CallbackService applies provider outcomes to attempts and requests.
type CallbackService struct {
	requestRepo   repository.ServiceRequestRepository
	attemptRepo   repository.PaymentAttemptRepository
	notifications *NotificationService
	logger        *zap.Logger
}

// NewCallbackService creates a new CallbackService.
func NewCallbackService(
	requestRepo repository.ServiceRequestRepository,
	attemptRepo repository.PaymentAttemptRepository,
	notifications *NotificationService,
	logger *zap.Logger,
) *CallbackService {
	return &CallbackService{
		requestRepo:   requestRepo,
		attemptRepo:   attemptRepo,
		notifications: notifications,
		logger:        logger,
	}
}

// Reconcile applies an outcome. Reapplying the same outcome leaves state
// unchanged, and a completed payment is never downgraded.
func (s *CallbackService) Reconcile(ctx context.Context, outcome PaymentOutcome) (*ReconcileResult, error) {
	if strings.TrimSpace(outcome.CheckoutRequestID) == "" {
		return nil, &ValidationError{Fields: []string{"CheckoutRequestID"}}
	}

	log := s.logger.With(
		zap.String("checkout_request_id", outcome.CheckoutRequestID),
		zap.Int("result_code", outcome.ResultCode),
		zap.String("source", outcome.Source),
	)

	attempt, err := s.attemptRepo.GetByCheckoutRequestID(ctx, outcome.CheckoutRequestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Warn("payment outcome for unknown checkout request id")
			return nil, ErrUnknownCorrelationID
		}
		return nil, err
	}

	sr, err := s.requestRepo.GetByID(ctx, attempt.ServiceRequestID)
	if err != nil {
		return nil, err
	}
	log = log.With(zap.String("service_request_id", sr.ID))

	if attempt.Status == domain.PaymentStatusCompleted && !outcome.Succeeded() {
		log.Warn("ignoring failure for completed payment attempt")
		return &ReconcileResult{Request: sr, Attempt: attempt}, nil
	}

	if outcome.Succeeded() && outcome.Amount > 0 && outcome.Amount != attempt.Amount {
		log.Warn("paid amount differs from requested amount",
			zap.Int64("requested", attempt.Amount),
			zap.Int64("paid", outcome.Amount),
		)
	}

	changed := applyOutcome(attempt, outcome)
	if changed {
		attempt.UpdatedAt = time.Now().UTC()
		if err := s.attemptRepo.RecordResult(ctx, attempt); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
	}

	paymentStatus, status := nextRequestState(sr, attempt, outcome)
	if paymentStatus != sr.PaymentStatus || status != sr.Status {
		if err := s.requestRepo.UpdatePaymentStatus(ctx, sr.ID, paymentStatus, status); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		sr.PaymentStatus = paymentStatus
		sr.Status = status
		sr.UpdatedAt = attempt.UpdatedAt
		changed = true
	}

	if !changed {
		log.Info("payment outcome already applied")
		return &ReconcileResult{Request: sr, Attempt: attempt}, nil
	}

	if sr.PaymentReference != attempt.CheckoutRequestID {
		log.Warn("payment outcome for superseded attempt",
			zap.String("current_payment_reference", sr.PaymentReference),
		)
	}

	if outcome.Succeeded() {
		log.Info("payment completed", zap.String("receipt_number", attempt.ReceiptNumber))
		s.notifications.NotifyPaymentCompleted(ctx, sr, attempt, outcome.Source)
	} else {
		log.Info("payment failed", zap.String("result_desc", outcome.ResultDesc))
		s.notifications.NotifyPaymentFailed(ctx, sr, attempt, outcome.Source)
	}

	return &ReconcileResult{Request: sr, Attempt: attempt, Changed: true}, nil
}

// applyOutcome overwrites the attempt's result fields and reports whether any
// of them changed.
func applyOutcome(attempt *domain.PaymentAttempt, outcome PaymentOutcome) bool {
	status := domain.PaymentStatusFailed
	if outcome.Succeeded() {
		status = domain.PaymentStatusCompleted
	}

	// Metadata only arrives on callbacks; a later query answer keeps it.
	receipt := orString(outcome.ReceiptNumber, attempt.ReceiptNumber)
	transactionDate := orString(outcome.TransactionDate, attempt.TransactionDate)
	payerPhone := orString(outcome.PhoneNumber, attempt.PayerPhone)
	paidAmount := attempt.PaidAmount
	if outcome.Amount > 0 {
		paidAmount = outcome.Amount
	}

	unchanged := attempt.Status == status &&
		attempt.ResultCode != nil && *attempt.ResultCode == outcome.ResultCode &&
		attempt.ResultDesc == outcome.ResultDesc &&
		attempt.ReceiptNumber == receipt &&
		attempt.TransactionDate == transactionDate &&
		attempt.PayerPhone == payerPhone &&
		attempt.PaidAmount == paidAmount
	if unchanged {
		return false
	}

	code := outcome.ResultCode
	attempt.Status = status
	attempt.ResultCode = &code
	attempt.ResultDesc = outcome.ResultDesc
	attempt.ReceiptNumber = receipt
	attempt.TransactionDate = transactionDate
	attempt.PayerPhone = payerPhone
	attempt.PaidAmount = paidAmount
	return true
}

func orString(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

// nextRequestState returns the request's payment and fulfillment status after
// the attempt's outcome.
func nextRequestState(sr *domain.ServiceRequest, attempt *domain.PaymentAttempt, outcome PaymentOutcome) (domain.PaymentStatus, domain.RequestStatus) {
	if outcome.Succeeded() {
		status := sr.Status
		if status == domain.RequestStatusSubmitted {
			status = domain.RequestStatusProcessing
		}
		return domain.PaymentStatusCompleted, status
	}

	if sr.IsPaid() || sr.PaymentReference != attempt.CheckoutRequestID {
		return sr.PaymentStatus, sr.Status
	}
	return domain.PaymentStatusFailed, sr.Status
}
