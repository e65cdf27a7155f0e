package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"servicedesk/internal/mpesa"
	"servicedesk/internal/phone"
	"servicedesk/internal/repository"
	"servicedesk/internal/service"
)

func TestMapErrorToHTTPStatus(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected int
	}{
		{"not found", repository.ErrNotFound, http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("load: %w", repository.ErrNotFound), http.StatusNotFound},
		{"unknown correlation id", service.ErrUnknownCorrelationID, http.StatusNotFound},
		{"validation", &service.ValidationError{Fields: []string{"email"}}, http.StatusBadRequest},
		{"unknown service type", service.ErrUnknownServiceType, http.StatusBadRequest},
		{"price unavailable", service.ErrPriceUnavailable, http.StatusBadRequest},
		{"already paid", service.ErrPaymentAlreadyCompleted, http.StatusBadRequest},
		{"cancelled", service.ErrRequestCancelled, http.StatusBadRequest},
		{"bad phone", phone.ErrInvalidPhoneNumber, http.StatusBadRequest},
		{"malformed callback", mpesa.ErrMalformedCallback, http.StatusBadRequest},
		{"duplicate", repository.ErrDuplicate, http.StatusConflict},
		{"in progress", service.ErrPaymentInProgress, http.StatusConflict},
		{"bad transition", service.ErrInvalidStatusTransition, http.StatusConflict},
		{"provider", fmt.Errorf("failed to initiate payment: %w", mpesa.ErrUpstreamUnavailable), http.StatusInternalServerError},
		{"persistence", service.ErrPersistence, http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := mapErrorToHTTPStatus(tc.err); got != tc.expected {
				t.Errorf("expected %d, got %d", tc.expected, got)
			}
		})
	}
}

func TestRespondError_HidesServerErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)

	testCases := []struct {
		name    string
		err     error
		message string
	}{
		{"provider", fmt.Errorf("failed to initiate payment: %w", &mpesa.ProviderError{HTTPStatus: http.StatusBadRequest, Code: "400.002.02", Message: "Bad Request - Invalid PhoneNumber"}), "Failed to initiate payment"},
		{"persistence", fmt.Errorf("%w: connection reset", service.ErrPersistence), "Internal server error"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)
			c.Request = httptest.NewRequest(http.MethodPost, "/initiate-payment", nil)

			respondError(c, tc.err)

			var resp ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("invalid body: %v", err)
			}
			if rec.Code != http.StatusInternalServerError || resp.Error != tc.message {
				t.Errorf("expected 500 %q, got %d %q", tc.message, rec.Code, resp.Error)
			}
			if resp.Details != "Please try again later" {
				t.Errorf("unexpected details %q", resp.Details)
			}
		})
	}
}

func TestRespondError_EnumeratesMissingFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/service-request", nil)

	respondError(c, &service.ValidationError{Fields: []string{"fullName", "email"}})

	var resp ErrorResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if rec.Code != http.StatusBadRequest || resp.Details != "fullName, email" {
		t.Errorf("unexpected response %d %+v", rec.Code, resp)
	}
}
