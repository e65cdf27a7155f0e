package mpesa

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// CallbackEnvelope is the outer shape of an STK callback. Pointers let us
// tell a missing object from an empty one.
type CallbackEnvelope struct {
	Body *CallbackBody `json:"Body"`
}

// CallbackBody wraps the stkCallback object.
type CallbackBody struct {
	StkCallback *StkCallback `json:"stkCallback"`
}

// StkCallback is the provider's result for one push.
type StkCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        *Code             `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata,omitempty"`
}

// CallbackMetadata holds the Name/Value items sent on success.
type CallbackMetadata struct {
	Item []CallbackMetadataItem `json:"Item"`
}

// CallbackMetadataItem is a single metadata entry.
type CallbackMetadataItem struct {
	Name  string `json:"Name"`
	Value any    `json:"Value,omitempty"`
}

// CallbackResult is a validated, flattened callback.
type CallbackResult struct {
	CheckoutRequestID string
	MerchantRequestID string
	ResultCode        int
	ResultDesc        string
	Amount            int64
	ReceiptNumber     string
	TransactionDate   string
	PhoneNumber       string
}

// Succeeded reports whether the customer completed the payment.
func (r *CallbackResult) Succeeded() bool {
	return r.ResultCode == 0
}

// ParseCallback decodes and validates a raw callback body.
func ParseCallback(data []byte) (*CallbackResult, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var env CallbackEnvelope
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: invalid json: %v", ErrMalformedCallback, err)
	}

	if env.Body == nil {
		return nil, fmt.Errorf("%w: missing Body", ErrMalformedCallback)
	}
	cb := env.Body.StkCallback
	if cb == nil {
		return nil, fmt.Errorf("%w: missing Body.stkCallback", ErrMalformedCallback)
	}
	if strings.TrimSpace(cb.CheckoutRequestID) == "" {
		return nil, fmt.Errorf("%w: missing CheckoutRequestID", ErrMalformedCallback)
	}
	if cb.ResultCode == nil || *cb.ResultCode == "" {
		return nil, fmt.Errorf("%w: missing ResultCode", ErrMalformedCallback)
	}

	code, err := strconv.Atoi(string(*cb.ResultCode))
	if err != nil {
		return nil, fmt.Errorf("%w: non-numeric ResultCode %q", ErrMalformedCallback, *cb.ResultCode)
	}

	result := &CallbackResult{
		CheckoutRequestID: cb.CheckoutRequestID,
		MerchantRequestID: cb.MerchantRequestID,
		ResultCode:        code,
		ResultDesc:        cb.ResultDesc,
	}

	if cb.CallbackMetadata != nil {
		for _, item := range cb.CallbackMetadata.Item {
			value := metadataString(item.Value)
			switch item.Name {
			case "Amount":
				if f, err := strconv.ParseFloat(value, 64); err == nil {
					result.Amount = int64(f)
				}
			case "MpesaReceiptNumber":
				result.ReceiptNumber = value
			case "TransactionDate":
				result.TransactionDate = value
			case "PhoneNumber":
				result.PhoneNumber = value
			}
		}
	}

	return result, nil
}

func metadataString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
