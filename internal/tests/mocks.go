package tests

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"servicedesk/internal/domain"
	"servicedesk/internal/events"
	"servicedesk/internal/mpesa"
	"servicedesk/internal/repository"
)

// ──────────────────────────────────────────────
// MOCK SERVICE REQUEST REPOSITORY
// ──────────────────────────────────────────────

// MockServiceRequestRepository is a mock implementation of ServiceRequestRepository.
type MockServiceRequestRepository struct {
	mu       sync.RWMutex
	requests map[string]*domain.ServiceRequest
	attempts *MockPaymentAttemptRepository

	// Counters for verification
	CreateCallCount              int32
	AttachCallCount              int32
	UpdatePaymentStatusCallCount int32
	UpdateStatusCallCount        int32

	// Error injection
	CreateError              error
	AttachError              error
	UpdatePaymentStatusError error
}

// NewMockServiceRequestRepository creates a new mock service request
// repository. Attached attempts are stored in attempts.
func NewMockServiceRequestRepository(attempts *MockPaymentAttemptRepository) *MockServiceRequestRepository {
	return &MockServiceRequestRepository{
		requests: make(map[string]*domain.ServiceRequest),
		attempts: attempts,
	}
}

// AddRequest adds a service request to the mock repository.
func (m *MockServiceRequestRepository) AddRequest(sr *domain.ServiceRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[sr.ID] = sr
}

func (m *MockServiceRequestRepository) Create(ctx context.Context, sr *domain.ServiceRequest) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.requests[sr.ID]; exists {
		return repository.ErrDuplicate
	}
	copy := *sr
	m.requests[sr.ID] = &copy
	return nil
}

func (m *MockServiceRequestRepository) GetByID(ctx context.Context, id string) (*domain.ServiceRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sr, ok := m.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	// Return a copy to avoid mutation issues.
	copy := *sr
	return &copy, nil
}

func (m *MockServiceRequestRepository) AttachPaymentAttempt(ctx context.Context, attempt *domain.PaymentAttempt) error {
	atomic.AddInt32(&m.AttachCallCount, 1)
	if m.AttachError != nil {
		return m.AttachError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	sr, ok := m.requests[attempt.ServiceRequestID]
	if !ok {
		return repository.ErrNotFound
	}
	if err := m.attempts.insert(attempt); err != nil {
		return err
	}
	if sr.PaymentStatus == domain.PaymentStatusCompleted {
		return repository.ErrAlreadyPaid
	}
	sr.PaymentReference = attempt.CheckoutRequestID
	sr.PaymentStatus = domain.PaymentStatusPending
	sr.UpdatedAt = attempt.UpdatedAt
	return nil
}

func (m *MockServiceRequestRepository) UpdatePaymentStatus(ctx context.Context, id string, paymentStatus domain.PaymentStatus, status domain.RequestStatus) error {
	atomic.AddInt32(&m.UpdatePaymentStatusCallCount, 1)
	if m.UpdatePaymentStatusError != nil {
		return m.UpdatePaymentStatusError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	sr, ok := m.requests[id]
	if !ok {
		return repository.ErrNotFound
	}
	sr.PaymentStatus = paymentStatus
	sr.Status = status
	sr.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MockServiceRequestRepository) UpdateStatus(ctx context.Context, id string, status domain.RequestStatus) error {
	atomic.AddInt32(&m.UpdateStatusCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	sr, ok := m.requests[id]
	if !ok {
		return repository.ErrNotFound
	}
	sr.Status = status
	sr.UpdatedAt = time.Now().UTC()
	return nil
}

// GetRequest returns a copy of the stored request for test assertions.
func (m *MockServiceRequestRepository) GetRequest(id string) *domain.ServiceRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sr, ok := m.requests[id]
	if !ok {
		return nil
	}
	copy := *sr
	return &copy
}

// CountRequests returns the number of stored requests.
func (m *MockServiceRequestRepository) CountRequests() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// ──────────────────────────────────────────────
// MOCK PAYMENT ATTEMPT REPOSITORY
// ──────────────────────────────────────────────

// MockPaymentAttemptRepository is a mock implementation of PaymentAttemptRepository.
type MockPaymentAttemptRepository struct {
	mu       sync.RWMutex
	attempts map[string]*domain.PaymentAttempt // keyed by checkout request id

	// Counters for verification
	RecordResultCallCount int32

	// Error injection
	RecordResultError error
	ListPendingError  error
}

// NewMockPaymentAttemptRepository creates a new mock payment attempt repository.
func NewMockPaymentAttemptRepository() *MockPaymentAttemptRepository {
	return &MockPaymentAttemptRepository{
		attempts: make(map[string]*domain.PaymentAttempt),
	}
}

// AddAttempt adds an attempt to the mock repository.
func (m *MockPaymentAttemptRepository) AddAttempt(attempt *domain.PaymentAttempt) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts[attempt.CheckoutRequestID] = attempt
}

func (m *MockPaymentAttemptRepository) insert(attempt *domain.PaymentAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.attempts[attempt.CheckoutRequestID]; exists {
		return repository.ErrDuplicate
	}
	copy := *attempt
	m.attempts[attempt.CheckoutRequestID] = &copy
	return nil
}

func (m *MockPaymentAttemptRepository) GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*domain.PaymentAttempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	attempt, ok := m.attempts[checkoutRequestID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *attempt
	return &copy, nil
}

func (m *MockPaymentAttemptRepository) ListByServiceRequest(ctx context.Context, serviceRequestID string) ([]*domain.PaymentAttempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.PaymentAttempt
	for _, a := range m.attempts {
		if a.ServiceRequestID == serviceRequestID {
			copy := *a
			result = append(result, &copy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (m *MockPaymentAttemptRepository) ListPending(ctx context.Context, createdAfter, createdBefore time.Time, limit int) ([]*domain.PaymentAttempt, error) {
	if m.ListPendingError != nil {
		return nil, m.ListPendingError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.PaymentAttempt
	for _, a := range m.attempts {
		if a.Status == domain.PaymentStatusPending && a.CreatedAt.After(createdAfter) && a.CreatedAt.Before(createdBefore) {
			copy := *a
			result = append(result, &copy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MockPaymentAttemptRepository) RecordResult(ctx context.Context, attempt *domain.PaymentAttempt) error {
	atomic.AddInt32(&m.RecordResultCallCount, 1)
	if m.RecordResultError != nil {
		return m.RecordResultError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.attempts[attempt.CheckoutRequestID]; !ok {
		return repository.ErrNotFound
	}
	copy := *attempt
	m.attempts[attempt.CheckoutRequestID] = &copy
	return nil
}

// GetAttempt returns a copy of the stored attempt for test assertions.
func (m *MockPaymentAttemptRepository) GetAttempt(checkoutRequestID string) *domain.PaymentAttempt {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[checkoutRequestID]
	if !ok {
		return nil
	}
	copy := *a
	return &copy
}

// CountAttempts returns the number of stored attempts.
func (m *MockPaymentAttemptRepository) CountAttempts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.attempts)
}

// ──────────────────────────────────────────────
// MOCK PRICING REPOSITORY
// ──────────────────────────────────────────────

// MockPricingRepository is a mock implementation of PricingRepository.
type MockPricingRepository struct {
	mu      sync.RWMutex
	entries map[string]*domain.PricingEntry

	// Counters for verification
	GetCallCount    int32
	CreateCallCount int32
	UpsertCallCount int32

	// Error injection
	GetError   error
	CountError error
}

// NewMockPricingRepository creates a new mock pricing repository.
func NewMockPricingRepository() *MockPricingRepository {
	return &MockPricingRepository{
		entries: make(map[string]*domain.PricingEntry),
	}
}

func pricingKey(serviceType domain.ServiceType, subService string) string {
	return string(serviceType) + "|" + subService
}

// AddEntry adds a pricing entry to the mock repository.
func (m *MockPricingRepository) AddEntry(serviceType domain.ServiceType, subService string, price int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[pricingKey(serviceType, subService)] = &domain.PricingEntry{
		ServiceType: serviceType,
		SubService:  subService,
		Price:       price,
		UpdatedAt:   time.Now().UTC(),
	}
}

func (m *MockPricingRepository) Get(ctx context.Context, serviceType domain.ServiceType, subService string) (*domain.PricingEntry, error) {
	atomic.AddInt32(&m.GetCallCount, 1)
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[pricingKey(serviceType, subService)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *e
	return &copy, nil
}

func (m *MockPricingRepository) List(ctx context.Context, serviceType domain.ServiceType) ([]*domain.PricingEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.PricingEntry
	for _, e := range m.entries {
		if serviceType == "" || e.ServiceType == serviceType {
			copy := *e
			result = append(result, &copy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return pricingKey(result[i].ServiceType, result[i].SubService) < pricingKey(result[j].ServiceType, result[j].SubService)
	})
	return result, nil
}

func (m *MockPricingRepository) Count(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

func (m *MockPricingRepository) Create(ctx context.Context, entry *domain.PricingEntry) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pricingKey(entry.ServiceType, entry.SubService)
	if _, exists := m.entries[key]; exists {
		return repository.ErrDuplicate
	}
	copy := *entry
	m.entries[key] = &copy
	return nil
}

func (m *MockPricingRepository) Upsert(ctx context.Context, entry *domain.PricingEntry) error {
	atomic.AddInt32(&m.UpsertCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *entry
	m.entries[pricingKey(entry.ServiceType, entry.SubService)] = &copy
	return nil
}

// ──────────────────────────────────────────────
// MOCK PRICE CACHE
// ──────────────────────────────────────────────

// MockPriceCache is a mock implementation of PriceCacheInterface.
type MockPriceCache struct {
	mu     sync.Mutex
	prices map[string]int64

	// Counters
	GetCallCount        int32
	SetCallCount        int32
	InvalidateCallCount int32

	// Error injection
	GetError error
	SetError error
}

// NewMockPriceCache creates a new mock price cache.
func NewMockPriceCache() *MockPriceCache {
	return &MockPriceCache{
		prices: make(map[string]int64),
	}
}

func (m *MockPriceCache) GetPrice(ctx context.Context, serviceType domain.ServiceType, subService string) (int64, bool, error) {
	atomic.AddInt32(&m.GetCallCount, 1)
	if m.GetError != nil {
		return 0, false, m.GetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	price, ok := m.prices[pricingKey(serviceType, subService)]
	return price, ok, nil
}

func (m *MockPriceCache) SetPrice(ctx context.Context, entry *domain.PricingEntry) error {
	atomic.AddInt32(&m.SetCallCount, 1)
	if m.SetError != nil {
		return m.SetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[pricingKey(entry.ServiceType, entry.SubService)] = entry.Price
	return nil
}

func (m *MockPriceCache) InvalidatePrice(ctx context.Context, serviceType domain.ServiceType, subService string) error {
	atomic.AddInt32(&m.InvalidateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.prices, pricingKey(serviceType, subService))
	return nil
}

// IsCached reports whether a price is cached (for test assertions).
func (m *MockPriceCache) IsCached(serviceType domain.ServiceType, subService string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.prices[pricingKey(serviceType, subService)]
	return ok
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is a mock implementation of LockStoreInterface.
type MockLockStore struct {
	mu    sync.Mutex
	locks map[string]string // key -> token
	seq   int

	// Counters
	AcquireCallCount int32
	ReleaseCallCount int32

	// Error injection
	AcquireError error

	// Force lock failure
	ForceAcquireFailure bool
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{
		locks: make(map[string]string),
	}
}

func (m *MockLockStore) AcquirePaymentLock(ctx context.Context, serviceRequestID string, ttl time.Duration) (string, bool, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	if m.AcquireError != nil {
		return "", false, m.AcquireError
	}
	if m.ForceAcquireFailure {
		return "", false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := "lock:payment:" + serviceRequestID
	if _, held := m.locks[key]; held {
		return "", false, nil
	}
	m.seq++
	token := fmt.Sprintf("token-%d", m.seq)
	m.locks[key] = token
	return token, true, nil
}

func (m *MockLockStore) ReleasePaymentLock(ctx context.Context, serviceRequestID, token string) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	key := "lock:payment:" + serviceRequestID
	if m.locks[key] == token {
		delete(m.locks, key)
	}
	return nil
}

// IsLocked checks if a request is locked (for test assertions).
func (m *MockLockStore) IsLocked(serviceRequestID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, held := m.locks["lock:payment:"+serviceRequestID]
	return held
}

// ──────────────────────────────────────────────
// MOCK PAYMENT GATEWAY
// ──────────────────────────────────────────────

// MockGateway is a mock STK push provider.
type MockGateway struct {
	mu     sync.Mutex
	seq    int
	pushes []mpesa.PushRequest

	// Control behavior
	InitiateError error
	QueryError    error
	QueryResults  map[string]*mpesa.QueryResult

	// Block, when set, is received from before InitiatePayment returns.
	Block chan struct{}

	// Counters
	InitiateCallCount int32
	QueryCallCount    int32
}

// NewMockGateway creates a new mock gateway.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		QueryResults: make(map[string]*mpesa.QueryResult),
	}
}

func (m *MockGateway) InitiatePayment(ctx context.Context, req mpesa.PushRequest) (*mpesa.PushResult, error) {
	atomic.AddInt32(&m.InitiateCallCount, 1)
	if m.Block != nil {
		<-m.Block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pushes = append(m.pushes, req)
	if m.InitiateError != nil {
		return nil, m.InitiateError
	}
	m.seq++
	return &mpesa.PushResult{
		CheckoutRequestID:   fmt.Sprintf("ws_CO_%03d", m.seq),
		MerchantRequestID:   fmt.Sprintf("29115-%03d", m.seq),
		ResponseDescription: "Success. Request accepted for processing",
		CustomerMessage:     "Success. Request accepted for processing",
	}, nil
}

func (m *MockGateway) QueryPayment(ctx context.Context, checkoutRequestID string) (*mpesa.QueryResult, error) {
	atomic.AddInt32(&m.QueryCallCount, 1)
	if m.QueryError != nil {
		return nil, m.QueryError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.QueryResults[checkoutRequestID]; ok {
		return r, nil
	}
	return &mpesa.QueryResult{CheckoutRequestID: checkoutRequestID, Pending: true}, nil
}

// SetQueryResult sets the provider's answer for a checkout id.
func (m *MockGateway) SetQueryResult(checkoutRequestID string, result *mpesa.QueryResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.QueryResults[checkoutRequestID] = result
}

// LastPush returns the most recent push request.
func (m *MockGateway) LastPush() (mpesa.PushRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pushes) == 0 {
		return mpesa.PushRequest{}, false
	}
	return m.pushes[len(m.pushes)-1], true
}

// ──────────────────────────────────────────────
// MOCK EVENT PUBLISHER
// ──────────────────────────────────────────────

// MockPublisher records published events.
type MockPublisher struct {
	mu     sync.Mutex
	events []events.PaymentEvent

	// Error injection
	PublishError error
}

// NewMockPublisher creates a new mock publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, event events.PaymentEvent) error {
	if m.PublishError != nil {
		return m.PublishError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *MockPublisher) Close() error { return nil }

// Events returns a copy of the published events.
func (m *MockPublisher) Events() []events.PaymentEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]events.PaymentEvent, len(m.events))
	copy(out, m.events)
	return out
}

// ──────────────────────────────────────────────
// HELPER ERRORS
// ──────────────────────────────────────────────

var ErrMockTimeout = errors.New("mock: operation timeout")
