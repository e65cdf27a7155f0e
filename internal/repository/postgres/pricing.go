package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"servicedesk/internal/domain"
	"servicedesk/internal/repository"
)

// PricingRepository is a PostgreSQL implementation of repository.PricingRepository.
type PricingRepository struct {
	q Querier
}

// NewPricingRepository creates a new PostgreSQL pricing repository.
func NewPricingRepository(db *sql.DB) *PricingRepository {
	return &PricingRepository{q: db}
}

// Get retrieves the price for a sub-service.
func (r *PricingRepository) Get(ctx context.Context, serviceType domain.ServiceType, subService string) (*domain.PricingEntry, error) {
	query := `
		SELECT service_type, sub_service, price, updated_at
		FROM pricing WHERE service_type = $1 AND sub_service = $2
	`

	var entry domain.PricingEntry
	err := r.q.QueryRowContext(ctx, query, serviceType, subService).Scan(
		&entry.ServiceType,
		&entry.SubService,
		&entry.Price,
		&entry.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return &entry, nil
}

// List returns entries, filtered by service type when it is non-empty.
func (r *PricingRepository) List(ctx context.Context, serviceType domain.ServiceType) ([]*domain.PricingEntry, error) {
	query := `
		SELECT service_type, sub_service, price, updated_at
		FROM pricing
		WHERE ($1::text = '' OR service_type = $1::text)
		ORDER BY service_type, sub_service
	`

	rows, err := r.q.QueryContext(ctx, query, string(serviceType))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.PricingEntry
	for rows.Next() {
		var entry domain.PricingEntry
		if err := rows.Scan(&entry.ServiceType, &entry.SubService, &entry.Price, &entry.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

// Count returns the number of entries.
func (r *PricingRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM pricing`).Scan(&n)
	return n, err
}

// Create inserts a new entry.
func (r *PricingRepository) Create(ctx context.Context, entry *domain.PricingEntry) error {
	query := `
		INSERT INTO pricing (service_type, sub_service, price, updated_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.q.ExecContext(ctx, query, entry.ServiceType, entry.SubService, entry.Price, updatedAt(entry))
	if isUniqueViolation(err) {
		return repository.ErrDuplicate
	}
	return err
}

// Upsert inserts or replaces the price of an entry.
func (r *PricingRepository) Upsert(ctx context.Context, entry *domain.PricingEntry) error {
	query := `
		INSERT INTO pricing (service_type, sub_service, price, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (service_type, sub_service)
		DO UPDATE SET price = EXCLUDED.price, updated_at = EXCLUDED.updated_at
	`

	_, err := r.q.ExecContext(ctx, query, entry.ServiceType, entry.SubService, entry.Price, updatedAt(entry))
	return err
}

func updatedAt(entry *domain.PricingEntry) time.Time {
	if entry.UpdatedAt.IsZero() {
		return time.Now().UTC()
	}
	return entry.UpdatedAt
}
