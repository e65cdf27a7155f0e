package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"servicedesk/internal/domain"
	"servicedesk/internal/repository"
)

// PaymentAttemptRepository is a PostgreSQL implementation of repository.PaymentAttemptRepository.
type PaymentAttemptRepository struct {
	q Querier
}

// NewPaymentAttemptRepository creates a new PostgreSQL payment attempt repository.
func NewPaymentAttemptRepository(db *sql.DB) *PaymentAttemptRepository {
	return &PaymentAttemptRepository{q: db}
}

// NewPaymentAttemptRepositoryWithTx creates a payment attempt repository using a transaction.
func NewPaymentAttemptRepositoryWithTx(tx *sql.Tx) *PaymentAttemptRepository {
	return &PaymentAttemptRepository{q: tx}
}

const paymentAttemptColumns = `id, service_request_id, checkout_request_id, merchant_request_id, phone_number, amount, status, result_code, result_desc, receipt_number, paid_amount, transaction_date, payer_phone, created_at, updated_at`

// create inserts a new pending attempt.
func (r *PaymentAttemptRepository) create(ctx context.Context, attempt *domain.PaymentAttempt) error {
	query := `
		INSERT INTO payment_attempts (id, service_request_id, checkout_request_id, merchant_request_id, phone_number, amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.q.ExecContext(ctx, query,
		attempt.ID,
		attempt.ServiceRequestID,
		attempt.CheckoutRequestID,
		toNullString(attempt.MerchantRequestID),
		attempt.PhoneNumber,
		attempt.Amount,
		attempt.Status,
		attempt.CreatedAt,
		attempt.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return repository.ErrDuplicate
	}
	return err
}

// GetByCheckoutRequestID retrieves an attempt by the provider's correlation id.
func (r *PaymentAttemptRepository) GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*domain.PaymentAttempt, error) {
	query := `SELECT ` + paymentAttemptColumns + ` FROM payment_attempts WHERE checkout_request_id = $1`

	attempt, err := scanPaymentAttempt(r.q.QueryRowContext(ctx, query, checkoutRequestID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return attempt, nil
}

// ListByServiceRequest returns all attempts for a request, newest first.
func (r *PaymentAttemptRepository) ListByServiceRequest(ctx context.Context, serviceRequestID string) ([]*domain.PaymentAttempt, error) {
	query := `
		SELECT ` + paymentAttemptColumns + `
		FROM payment_attempts WHERE service_request_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.q.QueryContext(ctx, query, serviceRequestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []*domain.PaymentAttempt
	for rows.Next() {
		attempt, err := scanPaymentAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, attempt)
	}
	return attempts, rows.Err()
}

// ListPending returns pending attempts created in the given window, oldest first.
func (r *PaymentAttemptRepository) ListPending(ctx context.Context, createdAfter, createdBefore time.Time, limit int) ([]*domain.PaymentAttempt, error) {
	query := `
		SELECT ` + paymentAttemptColumns + `
		FROM payment_attempts
		WHERE status = $1 AND created_at > $2 AND created_at < $3
		ORDER BY created_at ASC
		LIMIT $4
	`

	rows, err := r.q.QueryContext(ctx, query, domain.PaymentStatusPending, createdAfter, createdBefore, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []*domain.PaymentAttempt
	for rows.Next() {
		attempt, err := scanPaymentAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, attempt)
	}
	return attempts, rows.Err()
}

// RecordResult overwrites the outcome fields of an attempt.
func (r *PaymentAttemptRepository) RecordResult(ctx context.Context, attempt *domain.PaymentAttempt) error {
	query := `
		UPDATE payment_attempts
		SET status = $1, result_code = $2, result_desc = $3, receipt_number = $4,
			paid_amount = $5, transaction_date = $6, payer_phone = $7, updated_at = $8
		WHERE id = $9
	`

	var resultCode sql.NullInt64
	if attempt.ResultCode != nil {
		resultCode = sql.NullInt64{Int64: int64(*attempt.ResultCode), Valid: true}
	}
	var paidAmount sql.NullInt64
	if attempt.PaidAmount > 0 {
		paidAmount = sql.NullInt64{Int64: attempt.PaidAmount, Valid: true}
	}

	result, err := r.q.ExecContext(ctx, query,
		attempt.Status,
		resultCode,
		toNullString(attempt.ResultDesc),
		toNullString(attempt.ReceiptNumber),
		paidAmount,
		toNullString(attempt.TransactionDate),
		toNullString(attempt.PayerPhone),
		attempt.UpdatedAt,
		attempt.ID,
	)
	if err != nil {
		return err
	}

	return expectOneRow(result, repository.ErrNotFound)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPaymentAttempt(row rowScanner) (*domain.PaymentAttempt, error) {
	var attempt domain.PaymentAttempt
	var merchantRequestID, resultDesc, receiptNumber, transactionDate, payerPhone sql.NullString
	var resultCode, paidAmount sql.NullInt64

	if err := row.Scan(
		&attempt.ID,
		&attempt.ServiceRequestID,
		&attempt.CheckoutRequestID,
		&merchantRequestID,
		&attempt.PhoneNumber,
		&attempt.Amount,
		&attempt.Status,
		&resultCode,
		&resultDesc,
		&receiptNumber,
		&paidAmount,
		&transactionDate,
		&payerPhone,
		&attempt.CreatedAt,
		&attempt.UpdatedAt,
	); err != nil {
		return nil, err
	}

	attempt.MerchantRequestID = merchantRequestID.String
	attempt.ResultDesc = resultDesc.String
	attempt.ReceiptNumber = receiptNumber.String
	attempt.PaidAmount = paidAmount.Int64
	attempt.TransactionDate = transactionDate.String
	attempt.PayerPhone = payerPhone.String
	if resultCode.Valid {
		code := int(resultCode.Int64)
		attempt.ResultCode = &code
	}

	return &attempt, nil
}
