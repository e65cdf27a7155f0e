package mpesa

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Code is a provider response or result code. The provider sends these as
// JSON strings on some endpoints and as numbers on others.
type Code string

// UnmarshalJSON accepts "0", 0 and null.
func (c *Code) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Code(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("code must be a string or number: %w", err)
	}
	*c = Code(n.String())
	return nil
}

// IsSuccess reports whether the code is the provider's success code.
func (c Code) IsSuccess() bool {
	return c == "0"
}

// AccessToken is a short-lived bearer credential.
type AccessToken struct {
	Value     string
	ExpiresIn time.Duration
}

// PushRequest asks the provider to prompt a phone for payment.
type PushRequest struct {
	PhoneNumber      string
	Amount           int64
	AccountReference string
	Description      string
}

// PushResult is the provider's acceptance of a push request.
type PushResult struct {
	CheckoutRequestID   string
	MerchantRequestID   string
	ResponseDescription string
	CustomerMessage     string
}

// QueryResult is the provider's answer to a push status query.
type QueryResult struct {
	CheckoutRequestID string
	MerchantRequestID string
	ResultCode        string
	ResultDesc        string

	// Pending is true when the provider is still waiting on the customer.
	Pending bool
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   Code   `json:"expires_in"`
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkQueryRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

// providerResponse covers both the success and the error body shapes of the
// push and query endpoints.
type providerResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        Code   `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
	ResultCode          Code   `json:"ResultCode"`
	ResultDesc          string `json:"ResultDesc"`

	RequestID    string `json:"requestId"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

func (r *providerResponse) message() string {
	switch {
	case r.ErrorMessage != "":
		return r.ErrorMessage
	case r.ResponseDescription != "":
		return r.ResponseDescription
	default:
		return "no message from provider"
	}
}
