package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"servicedesk/internal/domain"
	"servicedesk/internal/repository"
)

// ServiceRequestRepository is a PostgreSQL implementation of repository.ServiceRequestRepository.
type ServiceRequestRepository struct {
	db *sql.DB
	q  Querier
}

// NewServiceRequestRepository creates a new PostgreSQL service request repository.
func NewServiceRequestRepository(db *sql.DB) *ServiceRequestRepository {
	return &ServiceRequestRepository{db: db, q: db}
}

// NewServiceRequestRepositoryWithTx creates a service request repository using a transaction.
func NewServiceRequestRepositoryWithTx(tx *sql.Tx) *ServiceRequestRepository {
	return &ServiceRequestRepository{q: tx}
}

const serviceRequestColumns = `id, service_type, sub_service, full_name, email, phone, national_id, service_details, amount, payment_reference, payment_status, status, created_at, updated_at`

// Create persists a new service request.
func (r *ServiceRequestRepository) Create(ctx context.Context, req *domain.ServiceRequest) error {
	query := `
		INSERT INTO service_requests (` + serviceRequestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	details, err := json.Marshal(detailsOrEmpty(req.ServiceDetails))
	if err != nil {
		return fmt.Errorf("failed to encode service details: %w", err)
	}

	_, err = r.q.ExecContext(ctx, query,
		req.ID,
		req.ServiceType,
		req.SubService,
		req.FullName,
		req.Email,
		req.Phone,
		req.NationalID,
		details,
		req.Amount,
		toNullString(req.PaymentReference),
		req.PaymentStatus,
		req.Status,
		req.CreatedAt,
		req.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return repository.ErrDuplicate
	}
	return err
}

// GetByID retrieves a service request by ID.
func (r *ServiceRequestRepository) GetByID(ctx context.Context, id string) (*domain.ServiceRequest, error) {
	query := `SELECT ` + serviceRequestColumns + ` FROM service_requests WHERE id = $1`
	return scanServiceRequest(r.q.QueryRowContext(ctx, query, id))
}

// AttachPaymentAttempt inserts the attempt and points the request at it.
func (r *ServiceRequestRepository) AttachPaymentAttempt(ctx context.Context, attempt *domain.PaymentAttempt) error {
	if r.db == nil {
		return r.attachPaymentAttempt(ctx, &PaymentAttemptRepository{q: r.q}, attempt)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	err = NewServiceRequestRepositoryWithTx(tx).attachPaymentAttempt(ctx, NewPaymentAttemptRepositoryWithTx(tx), attempt)
	if err != nil && !errors.Is(err, repository.ErrAlreadyPaid) {
		_ = tx.Rollback()
		return err
	}

	// A paid request keeps its state but the attempt row is kept so a later
	// callback for it can still be matched.
	if cerr := tx.Commit(); cerr != nil {
		return cerr
	}
	return err
}

func (r *ServiceRequestRepository) attachPaymentAttempt(ctx context.Context, attempts *PaymentAttemptRepository, attempt *domain.PaymentAttempt) error {
	if err := attempts.create(ctx, attempt); err != nil {
		return err
	}

	update := `
		UPDATE service_requests
		SET payment_reference = $1, payment_status = $2, updated_at = $3
		WHERE id = $4 AND payment_status <> $5
	`

	result, err := r.q.ExecContext(ctx, update,
		attempt.CheckoutRequestID,
		domain.PaymentStatusPending,
		attempt.UpdatedAt,
		attempt.ServiceRequestID,
		domain.PaymentStatusCompleted,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected > 0 {
		return nil
	}

	// Nothing matched: the request is gone or was paid since it was read.
	var status domain.PaymentStatus
	err = r.q.QueryRowContext(ctx, `SELECT payment_status FROM service_requests WHERE id = $1`, attempt.ServiceRequestID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return repository.ErrNotFound
		}
		return err
	}
	if status == domain.PaymentStatusCompleted {
		return repository.ErrAlreadyPaid
	}
	return repository.ErrNotFound
}

// UpdatePaymentStatus overwrites the payment and fulfillment status.
func (r *ServiceRequestRepository) UpdatePaymentStatus(ctx context.Context, id string, paymentStatus domain.PaymentStatus, status domain.RequestStatus) error {
	query := `UPDATE service_requests SET payment_status = $1, status = $2, updated_at = $3 WHERE id = $4`

	result, err := r.q.ExecContext(ctx, query, paymentStatus, status, time.Now().UTC(), id)
	if err != nil {
		return err
	}

	return expectOneRow(result, repository.ErrNotFound)
}

// UpdateStatus overwrites the fulfillment status.
func (r *ServiceRequestRepository) UpdateStatus(ctx context.Context, id string, status domain.RequestStatus) error {
	query := `UPDATE service_requests SET status = $1, updated_at = $2 WHERE id = $3`

	result, err := r.q.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return err
	}

	return expectOneRow(result, repository.ErrNotFound)
}

func scanServiceRequest(row *sql.Row) (*domain.ServiceRequest, error) {
	var req domain.ServiceRequest
	var details []byte
	var paymentReference sql.NullString

	err := row.Scan(
		&req.ID,
		&req.ServiceType,
		&req.SubService,
		&req.FullName,
		&req.Email,
		&req.Phone,
		&req.NationalID,
		&details,
		&req.Amount,
		&paymentReference,
		&req.PaymentStatus,
		&req.Status,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	if paymentReference.Valid {
		req.PaymentReference = paymentReference.String
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &req.ServiceDetails); err != nil {
			return nil, fmt.Errorf("failed to decode service details: %w", err)
		}
	}

	return &req, nil
}

func detailsOrEmpty(details map[string]any) map[string]any {
	if details == nil {
		return map[string]any{}
	}
	return details
}
