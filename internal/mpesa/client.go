// Package mpesa is a client for the Daraja STK Push API: access tokens,
// push initiation, push status queries and callback parsing.
package mpesa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"servicedesk/internal/phone"
)

const (
	tokenPath = "/oauth/v1/generate?grant_type=client_credentials"
	pushPath  = "/mpesa/stkpush/v1/processrequest"
	queryPath = "/mpesa/stkpushquery/v1/query"

	// DefaultTransactionType is the paybill transaction type.
	DefaultTransactionType = "CustomerPayBillOnline"

	// DefaultTimeout bounds every provider call.
	DefaultTimeout = 30 * time.Second

	// queryPendingCode is returned by the query endpoint while the customer
	// has not yet answered the prompt.
	queryPendingCode = "500.001.1001"

	maxResponseBytes = 1 << 20
)

// Config holds provider credentials and endpoints.
type Config struct {
	BaseURL         string
	ConsumerKey     string
	ConsumerSecret  string
	ShortCode       string
	PassKey         string
	CallbackURL     string
	CallbackToken   string
	TransactionType string
	Timeout         time.Duration
	Location        *time.Location
}

// Client talks to the provider over HTTPS.
type Client struct {
	cfg        Config
	httpClient *http.Client
	now        func() time.Time
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTransport sets the HTTP round tripper, e.g. an instrumented one.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		if rt != nil {
			c.httpClient.Transport = rt
		}
	}
}

// WithClock overrides the clock used for request timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a new provider client.
func NewClient(cfg Config, logger *zap.Logger, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.TransactionType == "" {
		cfg.TransactionType = DefaultTransactionType
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LockTTL returns how long an initiation may hold the per-request lock for a
// provider timeout: token fetch plus push, with a margin. A non-positive
// timeout means DefaultTimeout, as in NewClient.
func LockTTL(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return 2*timeout + 5*time.Second
}

// FetchAccessToken exchanges the consumer key and secret for a bearer token.
// Tokens are never cached; every payment call fetches its own.
func (c *Client) FetchAccessToken(ctx context.Context) (*AccessToken, error) {
	if c.cfg.ConsumerKey == "" || c.cfg.ConsumerSecret == "" {
		return nil, ErrCredentials
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+tokenPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build token request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: token request failed: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read token response: %v", ErrUpstreamUnavailable, err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		c.logger.Warn("mpesa token exchange rejected",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body))
		return nil, fmt.Errorf("%w: token endpoint returned %d", ErrUpstreamAuth, resp.StatusCode)
	default:
		return nil, fmt.Errorf("%w: token endpoint returned %d", ErrUpstreamUnavailable, resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("%w: undecodable token response: %v", ErrUpstreamUnavailable, err)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty access token", ErrUpstreamAuth)
	}

	token := &AccessToken{Value: tr.AccessToken}
	if secs, err := strconv.Atoi(string(tr.ExpiresIn)); err == nil {
		token.ExpiresIn = time.Duration(secs) * time.Second
	}
	return token, nil
}

// InitiatePayment sends an STK push to the customer's phone. The phone
// number must already be normalized.
func (c *Client) InitiatePayment(ctx context.Context, pr PushRequest) (*PushResult, error) {
	if err := c.validatePush(pr); err != nil {
		return nil, err
	}

	// Checked again here because config can be reloaded between startup and send.
	if err := ValidateCallbackURL(c.cfg.CallbackURL); err != nil {
		return nil, err
	}

	token, err := c.FetchAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := Timestamp(c.now().In(c.cfg.Location))
	payload := stkPushRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          Password(c.cfg.ShortCode, c.cfg.PassKey, timestamp),
		Timestamp:         timestamp,
		TransactionType:   c.cfg.TransactionType,
		Amount:            pr.Amount,
		PartyA:            pr.PhoneNumber,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       pr.PhoneNumber,
		CallBackURL:       c.callbackURL(),
		AccountReference:  pr.AccountReference,
		TransactionDesc:   pr.Description,
	}

	status, resp, err := c.postJSON(ctx, pushPath, token.Value, payload)
	if err != nil {
		return nil, err
	}

	if status != http.StatusOK || !resp.ResponseCode.IsSuccess() || resp.CheckoutRequestID == "" {
		perr := providerError(status, resp)
		c.logger.Error("mpesa stk push rejected",
			zap.Int("status", status),
			zap.String("code", perr.Code),
			zap.String("message", perr.Message),
			zap.String("phone", phone.Mask(pr.PhoneNumber)),
			zap.String("account_reference", pr.AccountReference))
		return nil, perr
	}

	c.logger.Info("mpesa stk push accepted",
		zap.String("checkout_request_id", resp.CheckoutRequestID),
		zap.String("merchant_request_id", resp.MerchantRequestID),
		zap.String("phone", phone.Mask(pr.PhoneNumber)),
		zap.Int64("amount", pr.Amount))

	return &PushResult{
		CheckoutRequestID:   resp.CheckoutRequestID,
		MerchantRequestID:   resp.MerchantRequestID,
		ResponseDescription: resp.ResponseDescription,
		CustomerMessage:     resp.CustomerMessage,
	}, nil
}

// QueryPayment asks the provider for the outcome of an earlier push.
func (c *Client) QueryPayment(ctx context.Context, checkoutRequestID string) (*QueryResult, error) {
	if checkoutRequestID == "" {
		return nil, fmt.Errorf("%w: checkout request id is required", ErrInvalidPushRequest)
	}

	token, err := c.FetchAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := Timestamp(c.now().In(c.cfg.Location))
	payload := stkQueryRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          Password(c.cfg.ShortCode, c.cfg.PassKey, timestamp),
		Timestamp:         timestamp,
		CheckoutRequestID: checkoutRequestID,
	}

	status, resp, err := c.postJSON(ctx, queryPath, token.Value, payload)
	if err != nil {
		return nil, err
	}

	if resp.ErrorCode == queryPendingCode {
		return &QueryResult{CheckoutRequestID: checkoutRequestID, Pending: true}, nil
	}

	if status != http.StatusOK || !resp.ResponseCode.IsSuccess() || resp.ResultCode == "" {
		return nil, providerError(status, resp)
	}

	return &QueryResult{
		CheckoutRequestID: checkoutRequestID,
		MerchantRequestID: resp.MerchantRequestID,
		ResultCode:        string(resp.ResultCode),
		ResultDesc:        resp.ResultDesc,
	}, nil
}

func (c *Client) validatePush(pr PushRequest) error {
	if pr.Amount <= 0 {
		return fmt.Errorf("%w: amount must be a positive integer", ErrInvalidPushRequest)
	}
	if normalized, err := phone.Normalize(pr.PhoneNumber); err != nil || normalized != pr.PhoneNumber {
		return fmt.Errorf("%w: phone number must be in 254XXXXXXXXX format", ErrInvalidPushRequest)
	}
	if pr.AccountReference == "" {
		return fmt.Errorf("%w: account reference is required", ErrInvalidPushRequest)
	}
	if c.cfg.ShortCode == "" || c.cfg.PassKey == "" {
		return fmt.Errorf("%w: short code and passkey must be configured", ErrCredentials)
	}
	return nil
}

// callbackURL appends the shared callback token so the webhook handler can
// tell provider calls from forged ones.
func (c *Client) callbackURL() string {
	if c.cfg.CallbackToken == "" {
		return c.cfg.CallbackURL
	}
	u, err := url.Parse(c.cfg.CallbackURL)
	if err != nil {
		return c.cfg.CallbackURL
	}
	q := u.Query()
	q.Set("token", c.cfg.CallbackToken)
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Client) postJSON(ctx context.Context, path, bearer string, payload any) (int, *providerResponse, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: failed to read response: %v", ErrUpstreamUnavailable, err)
	}

	var pr providerResponse
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &pr); err != nil {
			if resp.StatusCode >= http.StatusInternalServerError {
				return resp.StatusCode, nil, fmt.Errorf("%w: provider returned %d", ErrUpstreamUnavailable, resp.StatusCode)
			}
			return resp.StatusCode, nil, &ProviderError{
				HTTPStatus: resp.StatusCode,
				Message:    "undecodable provider response",
			}
		}
	}
	return resp.StatusCode, &pr, nil
}

func providerError(status int, resp *providerResponse) *ProviderError {
	perr := &ProviderError{
		HTTPStatus: status,
		Code:       resp.ErrorCode,
		Message:    resp.message(),
	}
	if perr.Code == "" {
		perr.Code = string(resp.ResponseCode)
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		perr.cause = ErrUpstreamAuth
	case status >= http.StatusInternalServerError:
		perr.cause = ErrUpstreamUnavailable
	}
	return perr
}

// IsProviderError reports whether err came back from the provider rather than
// from local validation.
func IsProviderError(err error) bool {
	var perr *ProviderError
	return errors.As(err, &perr) ||
		errors.Is(err, ErrCredentials) ||
		errors.Is(err, ErrUpstreamAuth) ||
		errors.Is(err, ErrUpstreamUnavailable) ||
		errors.Is(err, ErrInvalidCallbackURL)
}
