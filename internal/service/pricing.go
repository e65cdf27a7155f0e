package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"servicedesk/internal/domain"
	"servicedesk/internal/redis"
	"servicedesk/internal/repository"
)

// PricingService resolves and maintains sub-service prices. The repository is
// authoritative; the cache is optional and only shortens reads.
type PricingService struct {
	repo   repository.PricingRepository
	cache  redis.PriceCacheInterface
	logger *zap.Logger
}

// NewPricingService creates a new PricingService. cache may be nil.
func NewPricingService(repo repository.PricingRepository, cache redis.PriceCacheInterface, logger *zap.Logger) *PricingService {
	return &PricingService{
		repo:   repo,
		cache:  cache,
		logger: logger,
	}
}

// Resolve returns the price of a sub-service.
func (s *PricingService) Resolve(ctx context.Context, serviceType domain.ServiceType, subService string) (int64, error) {
	if !serviceType.Valid() {
		return 0, ErrUnknownServiceType
	}
	subService = strings.TrimSpace(subService)
	if subService == "" {
		return 0, ErrPriceUnavailable
	}

	if s.cache != nil {
		price, ok, err := s.cache.GetPrice(ctx, serviceType, subService)
		if err != nil {
			s.logger.Warn("price cache read failed",
				zap.String("service_type", string(serviceType)),
				zap.String("sub_service", subService),
				zap.Error(err),
			)
		} else if ok {
			return price, nil
		}
	}

	entry, err := s.repo.Get(ctx, serviceType, subService)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, ErrPriceUnavailable
		}
		return 0, fmt.Errorf("failed to load price: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.SetPrice(ctx, entry); err != nil {
			s.logger.Warn("price cache write failed", zap.Error(err))
		}
	}

	return entry.Price, nil
}

// ListPrices returns the price list, optionally restricted to one service type.
func (s *PricingService) ListPrices(ctx context.Context, serviceType domain.ServiceType) ([]*domain.PricingEntry, error) {
	if serviceType != "" && !serviceType.Valid() {
		return nil, ErrUnknownServiceType
	}
	return s.repo.List(ctx, serviceType)
}

// CreatePrice adds a new entry. Fails with repository.ErrDuplicate when the
// sub-service is already priced.
func (s *PricingService) CreatePrice(ctx context.Context, entry domain.PricingEntry) (*domain.PricingEntry, error) {
	if err := validateEntry(&entry); err != nil {
		return nil, err
	}
	entry.UpdatedAt = time.Now().UTC()

	if err := s.repo.Create(ctx, &entry); err != nil {
		return nil, err
	}

	s.invalidate(ctx, &entry)
	return &entry, nil
}

// UpdatePrice sets the price of an entry, creating it if needed.
func (s *PricingService) UpdatePrice(ctx context.Context, entry domain.PricingEntry) (*domain.PricingEntry, error) {
	if err := validateEntry(&entry); err != nil {
		return nil, err
	}
	entry.UpdatedAt = time.Now().UTC()

	if err := s.repo.Upsert(ctx, &entry); err != nil {
		return nil, err
	}

	s.invalidate(ctx, &entry)
	s.logger.Info("price updated",
		zap.String("service_type", string(entry.ServiceType)),
		zap.String("sub_service", entry.SubService),
		zap.Int64("price", entry.Price),
	)
	return &entry, nil
}

// Seed loads the default catalog into an empty store and returns the number of
// entries written. A non-empty store is left untouched.
func (s *PricingService) Seed(ctx context.Context) (int, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count prices: %w", err)
	}
	if n > 0 {
		return 0, nil
	}

	seeded := 0
	now := time.Now().UTC()
	for _, entry := range domain.DefaultCatalog() {
		entry.UpdatedAt = now
		if err := s.repo.Create(ctx, &entry); err != nil {
			// Another instance seeded concurrently.
			if errors.Is(err, repository.ErrDuplicate) {
				continue
			}
			return seeded, fmt.Errorf("failed to seed price %s/%s: %w", entry.ServiceType, entry.SubService, err)
		}
		seeded++
	}

	return seeded, nil
}

func (s *PricingService) invalidate(ctx context.Context, entry *domain.PricingEntry) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidatePrice(ctx, entry.ServiceType, entry.SubService); err != nil {
		s.logger.Warn("price cache invalidation failed",
			zap.String("service_type", string(entry.ServiceType)),
			zap.String("sub_service", entry.SubService),
			zap.Error(err),
		)
	}
}

func validateEntry(entry *domain.PricingEntry) error {
	entry.SubService = strings.TrimSpace(entry.SubService)

	var missing []string
	if entry.ServiceType == "" {
		missing = append(missing, "serviceType")
	}
	if entry.SubService == "" {
		missing = append(missing, "subService")
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}

	if !entry.ServiceType.Valid() {
		return ErrUnknownServiceType
	}
	if entry.Price <= 0 {
		return ErrInvalidPrice
	}
	return nil
}
