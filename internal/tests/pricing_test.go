package tests

import (
	"context"
	"errors"
	"testing"

	"servicedesk/internal/domain"
	"servicedesk/internal/repository"
	"servicedesk/internal/service"
)

func TestPricing_ResolveKnownSubService(t *testing.T) {
	h := newHarness()

	price, err := h.pricing.Resolve(context.Background(), domain.ServiceTypeKRA, "PIN Registration")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if price != 500 {
		t.Errorf("expected 500, got %d", price)
	}
}

func TestPricing_ResolvePopulatesCacheThenServesFromIt(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	if _, err := h.pricing.Resolve(ctx, domain.ServiceTypeKRA, "PIN Registration"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !h.cache.IsCached(domain.ServiceTypeKRA, "PIN Registration") {
		t.Fatal("expected price to be cached after first read")
	}

	if _, err := h.pricing.Resolve(ctx, domain.ServiceTypeKRA, "PIN Registration"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.pricingRepo.GetCallCount != 1 {
		t.Errorf("expected one store read, got %d", h.pricingRepo.GetCallCount)
	}
}

func TestPricing_CacheErrorFallsBackToStore(t *testing.T) {
	h := newHarness()
	h.cache.GetError = ErrMockTimeout

	price, err := h.pricing.Resolve(context.Background(), domain.ServiceTypeKRA, "PIN Registration")
	if err != nil {
		t.Fatalf("cache failure must not fail pricing: %v", err)
	}
	if price != 500 {
		t.Errorf("expected 500, got %d", price)
	}
}

func TestPricing_ResolveErrors(t *testing.T) {
	h := newHarness()

	testCases := []struct {
		name        string
		serviceType domain.ServiceType
		subService  string
		want        error
	}{
		{"unknown service type", "PASSPORT", "New Passport", service.ErrUnknownServiceType},
		{"unknown sub-service", domain.ServiceTypeKRA, "Unlisted", service.ErrPriceUnavailable},
		{"empty sub-service", domain.ServiceTypeKRA, "  ", service.ErrPriceUnavailable},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.pricing.Resolve(context.Background(), tc.serviceType, tc.subService)
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestPricing_UpdatePriceInvalidatesCache(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	if _, err := h.pricing.Resolve(ctx, domain.ServiceTypeKRA, "PIN Registration"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := h.pricing.UpdatePrice(ctx, domain.PricingEntry{
		ServiceType: domain.ServiceTypeKRA,
		SubService:  "PIN Registration",
		Price:       650,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.cache.IsCached(domain.ServiceTypeKRA, "PIN Registration") {
		t.Error("expected cache entry to be invalidated")
	}

	price, err := h.pricing.Resolve(ctx, domain.ServiceTypeKRA, "PIN Registration")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if price != 650 {
		t.Errorf("expected updated price 650, got %d", price)
	}
}

func TestPricing_CreatePriceDuplicate(t *testing.T) {
	h := newHarness()

	_, err := h.pricing.CreatePrice(context.Background(), domain.PricingEntry{
		ServiceType: domain.ServiceTypeKRA,
		SubService:  "PIN Registration",
		Price:       700,
	})
	if !errors.Is(err, repository.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
}

func TestPricing_CreatePriceValidation(t *testing.T) {
	h := newHarness()

	testCases := []struct {
		name  string
		entry domain.PricingEntry
		want  error
	}{
		{"missing sub-service", domain.PricingEntry{ServiceType: domain.ServiceTypeHR, Price: 100}, service.ErrValidation},
		{"unknown type", domain.PricingEntry{ServiceType: "FOO", SubService: "Bar", Price: 100}, service.ErrUnknownServiceType},
		{"zero price", domain.PricingEntry{ServiceType: domain.ServiceTypeHR, SubService: "Audit", Price: 0}, service.ErrInvalidPrice},
		{"negative price", domain.PricingEntry{ServiceType: domain.ServiceTypeHR, SubService: "Audit", Price: -5}, service.ErrInvalidPrice},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.pricing.CreatePrice(context.Background(), tc.entry)
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestPricing_ListFiltersByServiceType(t *testing.T) {
	h := newHarness()

	entries, err := h.pricing.ListPrices(context.Background(), domain.ServiceTypeKRA)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].SubService != "PIN Registration" {
		t.Errorf("expected only the KRA entry, got %+v", entries)
	}

	if _, err := h.pricing.ListPrices(context.Background(), "NOPE"); !errors.Is(err, service.ErrUnknownServiceType) {
		t.Errorf("expected ErrUnknownServiceType, got %v", err)
	}
}

func TestPricing_SeedOnlyWhenEmpty(t *testing.T) {
	ctx := context.Background()

	h := newHarness()
	seeded, err := h.pricing.Seed(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seeded != 0 {
		t.Errorf("expected non-empty store to be left alone, seeded %d", seeded)
	}

	empty := NewMockPricingRepository()
	svc := service.NewPricingService(empty, nil, zapNop())
	seeded, err = svc.Seed(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seeded != len(domain.DefaultCatalog()) {
		t.Errorf("expected %d entries seeded, got %d", len(domain.DefaultCatalog()), seeded)
	}

	again, err := svc.Seed(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again != 0 {
		t.Errorf("expected second seed to be a no-op, seeded %d", again)
	}

	price, err := svc.Resolve(ctx, domain.ServiceTypeKRA, "PIN Registration")
	if err != nil || price != 500 {
		t.Errorf("expected seeded KRA PIN Registration = 500, got %d (%v)", price, err)
	}
}

func TestDefaultCatalog_PositiveUniquePrices(t *testing.T) {
	seen := make(map[string]bool)
	for _, e := range domain.DefaultCatalog() {
		if !e.ServiceType.Valid() {
			t.Errorf("invalid service type %q", e.ServiceType)
		}
		if e.Price <= 0 {
			t.Errorf("%s/%s has non-positive price %d", e.ServiceType, e.SubService, e.Price)
		}
		key := pricingKey(e.ServiceType, e.SubService)
		if seen[key] {
			t.Errorf("duplicate catalog entry %s", key)
		}
		seen[key] = true
	}
}
