package repository

import (
	"context"

	"servicedesk/internal/domain"
)

// PricingRepository defines the persistence operations for the price list.
type PricingRepository interface {
	// Get retrieves the price for a sub-service.
	Get(ctx context.Context, serviceType domain.ServiceType, subService string) (*domain.PricingEntry, error)

	// List returns entries, filtered by service type when it is non-empty.
	List(ctx context.Context, serviceType domain.ServiceType) ([]*domain.PricingEntry, error)

	// Count returns the number of entries.
	Count(ctx context.Context) (int, error)

	// Create inserts a new entry. Returns ErrDuplicate if the pair exists.
	Create(ctx context.Context, entry *domain.PricingEntry) error

	// Upsert inserts or replaces the price of an entry.
	Upsert(ctx context.Context, entry *domain.PricingEntry) error
}
