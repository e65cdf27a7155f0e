package mpesa

import (
	"errors"
	"fmt"
)

var (
	// ErrCredentials is returned when the consumer key or secret is not configured.
	ErrCredentials = errors.New("mpesa consumer key and secret are not configured")

	// ErrUpstreamAuth is returned when the provider rejects our credentials.
	ErrUpstreamAuth = errors.New("mpesa rejected the credential exchange")

	// ErrUpstreamUnavailable is returned on timeouts, transport failures and 5xx responses.
	ErrUpstreamUnavailable = errors.New("mpesa is unavailable")

	// ErrInvalidCallbackURL is returned when the configured callback URL cannot
	// be reached by the provider.
	ErrInvalidCallbackURL = errors.New("invalid mpesa callback url")

	// ErrInvalidPushRequest is returned when a push request fails local validation.
	ErrInvalidPushRequest = errors.New("invalid stk push request")

	// ErrMalformedCallback is returned when a callback payload lacks the expected shape.
	ErrMalformedCallback = errors.New("malformed stk callback")
)

// ProviderError carries the provider's own code and message for a failed call.
type ProviderError struct {
	HTTPStatus int
	Code       string
	Message    string
	cause      error
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("mpesa error (http %d, code %s): %s", e.HTTPStatus, e.Code, e.Message)
	}
	return fmt.Sprintf("mpesa error (http %d): %s", e.HTTPStatus, e.Message)
}

// Unwrap exposes ErrUpstreamAuth or ErrUpstreamUnavailable when the status
// code implies one.
func (e *ProviderError) Unwrap() error {
	return e.cause
}
