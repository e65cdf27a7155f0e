package tests

import (
	"context"
	"testing"
	"time"

	"servicedesk/internal/domain"
	"servicedesk/internal/mpesa"
	"servicedesk/internal/service"
)

func newSweeper(h *harness) *service.PaymentSweeper {
	return service.NewPaymentSweeper(h.attemptRepo, h.gateway, h.callbacks, service.SweeperConfig{
		Interval:  10 * time.Millisecond,
		MinAge:    2 * time.Minute,
		MaxAge:    time.Hour,
		BatchSize: 10,
	}, zapNop())
}

func TestSweeper_ReconcilesDefinitiveResults(t *testing.T) {
	h := newHarness()
	h.addRequest("paid")
	h.addRequest("cancelled")
	h.addRequest("waiting")
	h.addAttempt("paid", "ws_CO_paid", time.Now().Add(-10*time.Minute))
	h.addAttempt("cancelled", "ws_CO_cancelled", time.Now().Add(-10*time.Minute))
	h.addAttempt("waiting", "ws_CO_waiting", time.Now().Add(-10*time.Minute))

	h.gateway.SetQueryResult("ws_CO_paid", &mpesa.QueryResult{CheckoutRequestID: "ws_CO_paid", ResultCode: "0", ResultDesc: "The service request is processed successfully."})
	h.gateway.SetQueryResult("ws_CO_cancelled", &mpesa.QueryResult{CheckoutRequestID: "ws_CO_cancelled", ResultCode: "1032", ResultDesc: "Request cancelled by user"})

	n, err := newSweeper(h).SweepOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 reconciled, got %d", n)
	}

	if got := h.requestRepo.GetRequest("paid"); got.PaymentStatus != domain.PaymentStatusCompleted || got.Status != domain.RequestStatusProcessing {
		t.Errorf("expected paid request completed/processing, got %s/%s", got.PaymentStatus, got.Status)
	}
	if got := h.requestRepo.GetRequest("cancelled").PaymentStatus; got != domain.PaymentStatusFailed {
		t.Errorf("expected failed, got %s", got)
	}
	if got := h.requestRepo.GetRequest("waiting").PaymentStatus; got != domain.PaymentStatusPending {
		t.Errorf("expected still pending, got %s", got)
	}

	for _, ev := range h.publisher.Events() {
		if ev.Source != service.SourceQuery {
			t.Errorf("expected query source, got %s", ev.Source)
		}
	}
}

func TestSweeper_SkipsAttemptsOutsideWindow(t *testing.T) {
	h := newHarness()
	h.addRequest("fresh")
	h.addRequest("stale")
	h.addAttempt("fresh", "ws_CO_fresh", time.Now().Add(-30*time.Second))
	h.addAttempt("stale", "ws_CO_stale", time.Now().Add(-2*time.Hour))

	if _, err := newSweeper(h).SweepOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.gateway.QueryCallCount != 0 {
		t.Errorf("expected no queries, got %d", h.gateway.QueryCallCount)
	}
}

func TestSweeper_QueryErrorsAreSkipped(t *testing.T) {
	h := newHarness()
	h.addRequest("sr-1")
	h.addAttempt("sr-1", "ws_CO_1", time.Now().Add(-10*time.Minute))
	h.gateway.QueryError = mpesa.ErrUpstreamUnavailable

	n, err := newSweeper(h).SweepOnce(context.Background())
	if err != nil {
		t.Fatalf("query errors must not abort the sweep: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 reconciled, got %d", n)
	}
	if got := h.requestRepo.GetRequest("sr-1").PaymentStatus; got != domain.PaymentStatusPending {
		t.Errorf("expected pending, got %s", got)
	}
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	h := newHarness()
	h.addRequest("sr-1")
	h.addAttempt("sr-1", "ws_CO_1", time.Now().Add(-10*time.Minute))
	h.gateway.SetQueryResult("ws_CO_1", &mpesa.QueryResult{CheckoutRequestID: "ws_CO_1", ResultCode: "0"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		newSweeper(h).Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for h.requestRepo.GetRequest("sr-1").PaymentStatus != domain.PaymentStatusCompleted {
		if time.Now().After(deadline) {
			t.Fatal("sweeper never reconciled the attempt")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
