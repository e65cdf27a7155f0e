package tests

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"servicedesk/internal/domain"
	"servicedesk/internal/service"
)

type initiateResult struct {
	result *service.InitiatePaymentResult
	err    error
}

// startBlockedInitiation re-initiates sr-1 and returns once the push has
// reached the provider and is held there.
func startBlockedInitiation(t *testing.T, h *harness) <-chan initiateResult {
	t.Helper()
	h.gateway.Block = make(chan struct{})

	done := make(chan initiateResult, 1)
	go func() {
		result, err := h.payments.Initiate(context.Background(), service.InitiatePaymentRequest{
			ServiceRequestID: "sr-1",
			PhoneNumber:      "0712345678",
		})
		done <- initiateResult{result: result, err: err}
	}()

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&h.gateway.InitiateCallCount) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("initiation never reached the provider")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return done
}

func TestReinitiation_SuccessForPreviousAttemptDuringPush(t *testing.T) {
	h := newHarness()
	h.addRequest("sr-1")
	h.addAttempt("sr-1", "ws_CO_old", time.Now().Add(-time.Minute))

	done := startBlockedInitiation(t, h)

	if _, err := h.callbacks.Reconcile(context.Background(), successOutcome("ws_CO_old")); err != nil {
		t.Fatalf("unexpected reconcile error: %v", err)
	}

	close(h.gateway.Block)
	res := <-done
	if !errors.Is(res.err, service.ErrPaymentAlreadyCompleted) {
		t.Fatalf("expected ErrPaymentAlreadyCompleted, got %v", res.err)
	}

	sr := h.requestRepo.GetRequest("sr-1")
	if sr.PaymentStatus != domain.PaymentStatusCompleted || sr.Status != domain.RequestStatusProcessing {
		t.Errorf("expected completed/processing after re-initiation, got %s/%s", sr.PaymentStatus, sr.Status)
	}
	if sr.PaymentReference != "ws_CO_old" {
		t.Errorf("expected reference to stay on the paid attempt, got %s", sr.PaymentReference)
	}

	// The second prompt is still recorded so its callback can be matched.
	if h.attemptRepo.GetAttempt("ws_CO_001") == nil {
		t.Fatal("expected the in-flight attempt to be recorded")
	}
	if _, err := h.callbacks.Reconcile(context.Background(), failureOutcome("ws_CO_001", 1032)); err != nil {
		t.Fatalf("unexpected reconcile error: %v", err)
	}
	if got := h.requestRepo.GetRequest("sr-1").PaymentStatus; got != domain.PaymentStatusCompleted {
		t.Errorf("paid request downgraded to %s", got)
	}
}

func TestReinitiation_FailureForPreviousAttemptDuringPush(t *testing.T) {
	h := newHarness()
	h.addRequest("sr-1")
	h.addAttempt("sr-1", "ws_CO_old", time.Now().Add(-time.Minute))

	done := startBlockedInitiation(t, h)

	if _, err := h.callbacks.Reconcile(context.Background(), failureOutcome("ws_CO_old", 1037)); err != nil {
		t.Fatalf("unexpected reconcile error: %v", err)
	}

	close(h.gateway.Block)
	res := <-done
	if res.err != nil {
		t.Fatalf("unexpected initiation error: %v", res.err)
	}

	sr := h.requestRepo.GetRequest("sr-1")
	if sr.PaymentStatus != domain.PaymentStatusPending || sr.PaymentReference != res.result.CorrelationID {
		t.Errorf("expected pending on the new attempt, got %s ref=%s", sr.PaymentStatus, sr.PaymentReference)
	}

	// A late duplicate of the old failure does not touch the new attempt.
	if _, err := h.callbacks.Reconcile(context.Background(), failureOutcome("ws_CO_old", 1037)); err != nil {
		t.Fatalf("unexpected reconcile error: %v", err)
	}
	if got := h.requestRepo.GetRequest("sr-1").PaymentStatus; got != domain.PaymentStatusPending {
		t.Errorf("expected pending, got %s", got)
	}
	if got := h.attemptRepo.GetAttempt(res.result.CorrelationID).Status; got != domain.PaymentStatusPending {
		t.Errorf("expected new attempt pending, got %s", got)
	}

	if _, err := h.callbacks.Reconcile(context.Background(), successOutcome(res.result.CorrelationID)); err != nil {
		t.Fatalf("unexpected reconcile error: %v", err)
	}
	if got := h.requestRepo.GetRequest("sr-1").PaymentStatus; got != domain.PaymentStatusCompleted {
		t.Errorf("expected completed, got %s", got)
	}
}
