package mpesa

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

const (
	testKey       = "consumer-key"
	testSecret    = "consumer-secret"
	testShortCode = "174379"
	testPassKey   = "passkey"
	testCallback  = "https://portal.example.co.ke/payment-callback"
)

// fakeProvider records what the client sent and replies with canned bodies.
type fakeProvider struct {
	tokenStatus int
	tokenBody   string
	pushStatus  int
	pushBody    string
	queryStatus int
	queryBody   string
	delay       time.Duration

	tokenCalls atomic.Int32
	pushCalls  atomic.Int32
	queryCalls atomic.Int32

	lastAuth  atomic.Value
	lastPush  atomic.Value
	lastQuery atomic.Value
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		tokenStatus: http.StatusOK,
		tokenBody:   `{"access_token":"tok-123","expires_in":"3599"}`,
		pushStatus:  http.StatusOK,
		pushBody:    `{"MerchantRequestID":"29115-34620561-1","CheckoutRequestID":"ws_CO_191220191020363925","ResponseCode":"0","ResponseDescription":"Success. Request accepted for processing","CustomerMessage":"Success. Request accepted for processing"}`,
		queryStatus: http.StatusOK,
		queryBody:   `{"ResponseCode":"0","ResponseDescription":"The service request has been accepted successsfully","MerchantRequestID":"29115-34620561-1","CheckoutRequestID":"ws_CO_191220191020363925","ResultCode":"0","ResultDesc":"The service request is processed successfully."}`,
	}
}

func (f *fakeProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	w.Header().Set("Content-Type", "application/json")

	switch r.URL.Path {
	case "/oauth/v1/generate":
		f.tokenCalls.Add(1)
		f.lastAuth.Store(r.Header.Get("Authorization"))
		w.WriteHeader(f.tokenStatus)
		_, _ = w.Write([]byte(f.tokenBody))
	case "/mpesa/stkpush/v1/processrequest":
		f.pushCalls.Add(1)
		var body stkPushRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.lastPush.Store(body)
		f.lastAuth.Store(r.Header.Get("Authorization"))
		w.WriteHeader(f.pushStatus)
		_, _ = w.Write([]byte(f.pushBody))
	case "/mpesa/stkpushquery/v1/query":
		f.queryCalls.Add(1)
		var body stkQueryRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.lastQuery.Store(body)
		w.WriteHeader(f.queryStatus)
		_, _ = w.Write([]byte(f.queryBody))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:        baseURL,
		ConsumerKey:    testKey,
		ConsumerSecret: testSecret,
		ShortCode:      testShortCode,
		PassKey:        testPassKey,
		CallbackURL:    testCallback,
		Timeout:        2 * time.Second,
	}
}

func fixedClock() time.Time {
	return time.Date(2024, time.March, 5, 9, 7, 3, 0, time.UTC)
}

func newTestClient(t *testing.T, f *fakeProvider, mutate func(*Config)) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	cfg := testConfig(srv.URL)
	if mutate != nil {
		mutate(&cfg)
	}
	return NewClient(cfg, zap.NewNop(), WithClock(fixedClock))
}

func validPush() PushRequest {
	return PushRequest{
		PhoneNumber:      "254712345678",
		Amount:           500,
		AccountReference: "SR1234567890",
		Description:      "KRA fee",
	}
}

func TestFetchAccessToken_UsesBasicAuth(t *testing.T) {
	f := newFakeProvider()
	client := newTestClient(t, f, nil)

	token, err := client.FetchAccessToken(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if token.Value != "tok-123" {
		t.Errorf("expected token tok-123, got %s", token.Value)
	}
	if token.ExpiresIn != 3599*time.Second {
		t.Errorf("expected expiry 3599s, got %s", token.ExpiresIn)
	}

	want := "Basic " + base64.StdEncoding.EncodeToString([]byte(testKey+":"+testSecret))
	if got := f.lastAuth.Load(); got != want {
		t.Errorf("expected Authorization %q, got %q", want, got)
	}
}

func TestFetchAccessToken_MissingCredentials_FailsClosed(t *testing.T) {
	f := newFakeProvider()
	client := newTestClient(t, f, func(c *Config) {
		c.ConsumerKey = ""
		c.ConsumerSecret = ""
	})

	_, err := client.FetchAccessToken(context.Background())
	if !errors.Is(err, ErrCredentials) {
		t.Fatalf("expected ErrCredentials, got %v", err)
	}
	if f.tokenCalls.Load() != 0 {
		t.Errorf("expected no call to the provider, got %d", f.tokenCalls.Load())
	}
}

func TestFetchAccessToken_ErrorTaxonomy(t *testing.T) {
	testCases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"bad request", http.StatusBadRequest, `{"errorMessage":"Invalid Authentication passed"}`, ErrUpstreamAuth},
		{"unauthorized", http.StatusUnauthorized, ``, ErrUpstreamAuth},
		{"server error", http.StatusInternalServerError, ``, ErrUpstreamUnavailable},
		{"bad gateway", http.StatusBadGateway, `<html></html>`, ErrUpstreamUnavailable},
		{"rate limited", http.StatusTooManyRequests, `{"errorMessage":"Spike arrest violation"}`, ErrUpstreamUnavailable},
		{"not found", http.StatusNotFound, ``, ErrUpstreamUnavailable},
		{"empty token", http.StatusOK, `{"access_token":""}`, ErrUpstreamAuth},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFakeProvider()
			f.tokenStatus = tc.status
			f.tokenBody = tc.body
			client := newTestClient(t, f, nil)

			_, err := client.FetchAccessToken(context.Background())
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestFetchAccessToken_Timeout(t *testing.T) {
	f := newFakeProvider()
	f.delay = 200 * time.Millisecond
	client := newTestClient(t, f, func(c *Config) {
		c.Timeout = 20 * time.Millisecond
	})

	_, err := client.FetchAccessToken(context.Background())
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable on timeout, got %v", err)
	}
}

func TestInitiatePayment_SendsSignedRequest(t *testing.T) {
	f := newFakeProvider()
	client := newTestClient(t, f, nil)

	result, err := client.InitiatePayment(context.Background(), validPush())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.CheckoutRequestID != "ws_CO_191220191020363925" {
		t.Errorf("unexpected checkout request id %s", result.CheckoutRequestID)
	}
	if result.MerchantRequestID != "29115-34620561-1" {
		t.Errorf("unexpected merchant request id %s", result.MerchantRequestID)
	}

	body := f.lastPush.Load().(stkPushRequest)
	if body.Timestamp != "20240305090703" {
		t.Errorf("unexpected timestamp %s", body.Timestamp)
	}
	wantPassword := base64.StdEncoding.EncodeToString([]byte(testShortCode + testPassKey + "20240305090703"))
	if body.Password != wantPassword {
		t.Errorf("unexpected password %s", body.Password)
	}
	if body.BusinessShortCode != testShortCode || body.PartyB != testShortCode {
		t.Errorf("expected short code in BusinessShortCode and PartyB, got %+v", body)
	}
	if body.PartyA != "254712345678" || body.PhoneNumber != "254712345678" {
		t.Errorf("expected phone in PartyA and PhoneNumber, got %+v", body)
	}
	if body.Amount != 500 {
		t.Errorf("expected amount 500, got %d", body.Amount)
	}
	if body.TransactionType != DefaultTransactionType {
		t.Errorf("unexpected transaction type %s", body.TransactionType)
	}
	if body.CallBackURL != testCallback {
		t.Errorf("unexpected callback url %s", body.CallBackURL)
	}
	if body.AccountReference != "SR1234567890" || body.TransactionDesc != "KRA fee" {
		t.Errorf("unexpected reference/description %+v", body)
	}
	if got := f.lastAuth.Load(); got != "Bearer tok-123" {
		t.Errorf("expected bearer token on push, got %q", got)
	}
}

func TestInitiatePayment_FetchesFreshTokenAndPasswordPerCall(t *testing.T) {
	f := newFakeProvider()
	srv := httptest.NewServer(f)
	defer srv.Close()

	now := fixedClock()
	client := NewClient(testConfig(srv.URL), zap.NewNop(), WithClock(func() time.Time {
		now = now.Add(time.Second)
		return now
	}))

	if _, err := client.InitiatePayment(context.Background(), validPush()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first := f.lastPush.Load().(stkPushRequest)

	if _, err := client.InitiatePayment(context.Background(), validPush()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second := f.lastPush.Load().(stkPushRequest)

	if f.tokenCalls.Load() != 2 {
		t.Errorf("expected one token fetch per push, got %d", f.tokenCalls.Load())
	}
	if first.Timestamp == second.Timestamp || first.Password == second.Password {
		t.Errorf("expected timestamp and password to be recomputed, got %s/%s", first.Timestamp, second.Timestamp)
	}
}

func TestInitiatePayment_AcceptsNumericResponseCode(t *testing.T) {
	f := newFakeProvider()
	f.pushBody = `{"MerchantRequestID":"m-1","CheckoutRequestID":"ws_CO_1","ResponseCode":0,"ResponseDescription":"ok"}`
	client := newTestClient(t, f, nil)

	result, err := client.InitiatePayment(context.Background(), validPush())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.CheckoutRequestID != "ws_CO_1" {
		t.Errorf("unexpected checkout request id %s", result.CheckoutRequestID)
	}
}

func TestInitiatePayment_ProviderRejection(t *testing.T) {
	testCases := []struct {
		name      string
		status    int
		body      string
		wantCode  string
		wantCause error
	}{
		{
			name:     "non-zero response code",
			status:   http.StatusOK,
			body:     `{"MerchantRequestID":"m-1","CheckoutRequestID":"ws_CO_1","ResponseCode":"1","ResponseDescription":"Rejected"}`,
			wantCode: "1",
		},
		{
			name:     "bad request error body",
			status:   http.StatusBadRequest,
			body:     `{"requestId":"r-1","errorCode":"400.002.02","errorMessage":"Bad Request - Invalid PhoneNumber"}`,
			wantCode: "400.002.02",
		},
		{
			name:      "invalid token",
			status:    http.StatusUnauthorized,
			body:      `{"requestId":"r-1","errorCode":"404.001.03","errorMessage":"Invalid Access Token"}`,
			wantCode:  "404.001.03",
			wantCause: ErrUpstreamAuth,
		},
		{
			name:      "server error",
			status:    http.StatusInternalServerError,
			body:      `{"requestId":"r-1","errorCode":"500.001.1001","errorMessage":"Unable to lock subscriber"}`,
			wantCode:  "500.001.1001",
			wantCause: ErrUpstreamUnavailable,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFakeProvider()
			f.pushStatus = tc.status
			f.pushBody = tc.body
			client := newTestClient(t, f, nil)

			_, err := client.InitiatePayment(context.Background(), validPush())

			var perr *ProviderError
			if !errors.As(err, &perr) {
				t.Fatalf("expected *ProviderError, got %v", err)
			}
			if perr.Code != tc.wantCode {
				t.Errorf("expected code %s, got %s", tc.wantCode, perr.Code)
			}
			if perr.Message == "" {
				t.Error("expected provider message to be carried")
			}
			if tc.wantCause != nil && !errors.Is(err, tc.wantCause) {
				t.Errorf("expected error to wrap %v", tc.wantCause)
			}
			if !IsProviderError(err) {
				t.Error("expected IsProviderError to be true")
			}
		})
	}
}

func TestInitiatePayment_LocalValidation_NoNetworkCall(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*PushRequest)
	}{
		{"zero amount", func(p *PushRequest) { p.Amount = 0 }},
		{"negative amount", func(p *PushRequest) { p.Amount = -5 }},
		{"un-normalized phone", func(p *PushRequest) { p.PhoneNumber = "0712345678" }},
		{"garbage phone", func(p *PushRequest) { p.PhoneNumber = "12345" }},
		{"missing reference", func(p *PushRequest) { p.AccountReference = "" }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFakeProvider()
			client := newTestClient(t, f, nil)

			req := validPush()
			tc.mutate(&req)

			_, err := client.InitiatePayment(context.Background(), req)
			if !errors.Is(err, ErrInvalidPushRequest) {
				t.Errorf("expected ErrInvalidPushRequest, got %v", err)
			}
			if f.tokenCalls.Load() != 0 || f.pushCalls.Load() != 0 {
				t.Error("expected no provider calls")
			}
		})
	}
}

func TestInitiatePayment_InvalidCallbackURL_NoNetworkCall(t *testing.T) {
	f := newFakeProvider()
	client := newTestClient(t, f, func(c *Config) {
		c.CallbackURL = "http://localhost:8080/payment-callback"
	})

	_, err := client.InitiatePayment(context.Background(), validPush())
	if !errors.Is(err, ErrInvalidCallbackURL) {
		t.Fatalf("expected ErrInvalidCallbackURL, got %v", err)
	}
	if f.tokenCalls.Load() != 0 || f.pushCalls.Load() != 0 {
		t.Error("expected no provider calls")
	}
}

func TestInitiatePayment_AppendsCallbackToken(t *testing.T) {
	f := newFakeProvider()
	client := newTestClient(t, f, func(c *Config) {
		c.CallbackToken = "s3cret"
	})

	if _, err := client.InitiatePayment(context.Background(), validPush()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	body := f.lastPush.Load().(stkPushRequest)
	u, err := url.Parse(body.CallBackURL)
	if err != nil {
		t.Fatalf("callback url did not parse: %v", err)
	}
	if u.Query().Get("token") != "s3cret" {
		t.Errorf("expected token query parameter, got %s", body.CallBackURL)
	}
	if u.Host != "portal.example.co.ke" || u.Path != "/payment-callback" {
		t.Errorf("expected host and path preserved, got %s", body.CallBackURL)
	}
}

func TestQueryPayment(t *testing.T) {
	t.Run("definitive result", func(t *testing.T) {
		f := newFakeProvider()
		client := newTestClient(t, f, nil)

		result, err := client.QueryPayment(context.Background(), "ws_CO_191220191020363925")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Pending {
			t.Error("expected a definitive result")
		}
		if result.ResultCode != "0" {
			t.Errorf("expected result code 0, got %s", result.ResultCode)
		}
		body := f.lastQuery.Load().(stkQueryRequest)
		if body.CheckoutRequestID != "ws_CO_191220191020363925" {
			t.Errorf("unexpected checkout request id %s", body.CheckoutRequestID)
		}
	})

	t.Run("still processing", func(t *testing.T) {
		f := newFakeProvider()
		f.queryStatus = http.StatusInternalServerError
		f.queryBody = `{"requestId":"r-1","errorCode":"500.001.1001","errorMessage":"The transaction is being processed"}`
		client := newTestClient(t, f, nil)

		result, err := client.QueryPayment(context.Background(), "ws_CO_1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.Pending {
			t.Error("expected pending result")
		}
	})

	t.Run("cancelled by user", func(t *testing.T) {
		f := newFakeProvider()
		f.queryBody = `{"ResponseCode":"0","CheckoutRequestID":"ws_CO_1","ResultCode":"1032","ResultDesc":"Request cancelled by user"}`
		client := newTestClient(t, f, nil)

		result, err := client.QueryPayment(context.Background(), "ws_CO_1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.ResultCode != "1032" {
			t.Errorf("expected result code 1032, got %s", result.ResultCode)
		}
	})

	t.Run("missing id", func(t *testing.T) {
		f := newFakeProvider()
		client := newTestClient(t, f, nil)

		if _, err := client.QueryPayment(context.Background(), ""); !errors.Is(err, ErrInvalidPushRequest) {
			t.Errorf("expected ErrInvalidPushRequest, got %v", err)
		}
	})
}

func TestLockTTL(t *testing.T) {
	testCases := []struct {
		timeout  time.Duration
		expected time.Duration
	}{
		{10 * time.Second, 25 * time.Second},
		{0, 2*DefaultTimeout + 5*time.Second},
		{-time.Second, 2*DefaultTimeout + 5*time.Second},
	}

	for _, tc := range testCases {
		if got := LockTTL(tc.timeout); got != tc.expected {
			t.Errorf("LockTTL(%s) = %s, want %s", tc.timeout, got, tc.expected)
		}
	}
}
