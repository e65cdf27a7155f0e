package redis

import (
	"context"
	"time"

	"servicedesk/internal/domain"
)

// PriceCacheInterface defines the interface for pricing cache operations.
type PriceCacheInterface interface {
	GetPrice(ctx context.Context, serviceType domain.ServiceType, subService string) (int64, bool, error)
	SetPrice(ctx context.Context, entry *domain.PricingEntry) error
	InvalidatePrice(ctx context.Context, serviceType domain.ServiceType, subService string) error
}

// LockStoreInterface defines the interface for distributed locking.
type LockStoreInterface interface {
	AcquirePaymentLock(ctx context.Context, serviceRequestID string, ttl time.Duration) (string, bool, error)
	ReleasePaymentLock(ctx context.Context, serviceRequestID, token string) error
}

// Ensure concrete types implement interfaces.
var (
	_ PriceCacheInterface = (*PriceCache)(nil)
	_ LockStoreInterface  = (*LockStore)(nil)
)
