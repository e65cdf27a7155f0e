package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"servicedesk/internal/repository"
)

// SweeperConfig contains pending-payment sweeper configuration.
type SweeperConfig struct {
	Interval  time.Duration // How often to poll
	MinAge    time.Duration // Leave younger attempts to the callback
	MaxAge    time.Duration // Give up on older attempts
	BatchSize int
}

// DefaultSweeperConfig returns the default sweeper configuration.
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Interval:  time.Minute,
		MinAge:    2 * time.Minute,
		MaxAge:    24 * time.Hour,
		BatchSize: 50,
	}
}

// PaymentSweeper recovers outcomes whose callback never arrived by querying
// the provider for pending attempts.
type PaymentSweeper struct {
	attemptRepo repository.PaymentAttemptRepository
	gateway     PaymentGateway
	callbacks   *CallbackService
	cfg         SweeperConfig
	logger      *zap.Logger
	now         func() time.Time
}

// NewPaymentSweeper creates a new PaymentSweeper.
func NewPaymentSweeper(
	attemptRepo repository.PaymentAttemptRepository,
	gateway PaymentGateway,
	callbacks *CallbackService,
	cfg SweeperConfig,
	logger *zap.Logger,
) *PaymentSweeper {
	def := DefaultSweeperConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.MinAge <= 0 {
		cfg.MinAge = def.MinAge
	}
	if cfg.MaxAge <= cfg.MinAge {
		cfg.MaxAge = def.MaxAge
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	return &PaymentSweeper{
		attemptRepo: attemptRepo,
		gateway:     gateway,
		callbacks:   callbacks,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// Run sweeps on every tick until ctx is cancelled.
func (s *PaymentSweeper) Run(ctx context.Context) {
	s.logger.Info("payment sweeper started", zap.Duration("interval", s.cfg.Interval))

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("payment sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("payment sweep failed", zap.Error(err))
			}
		}
	}
}

// SweepOnce queries every eligible pending attempt once and returns how many
// outcomes were reconciled.
func (s *PaymentSweeper) SweepOnce(ctx context.Context) (int, error) {
	now := s.now().UTC()
	attempts, err := s.attemptRepo.ListPending(ctx, now.Add(-s.cfg.MaxAge), now.Add(-s.cfg.MinAge), s.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(attempts) == 0 {
		s.logger.Debug("no pending payment attempts to sweep")
		return 0, nil
	}

	reconciled := 0
	for _, attempt := range attempts {
		if ctx.Err() != nil {
			return reconciled, ctx.Err()
		}

		log := s.logger.With(
			zap.String("checkout_request_id", attempt.CheckoutRequestID),
			zap.String("service_request_id", attempt.ServiceRequestID),
		)

		result, err := s.gateway.QueryPayment(ctx, attempt.CheckoutRequestID)
		if err != nil {
			log.Warn("payment status query failed", zap.Error(err))
			continue
		}
		if result.Pending {
			log.Debug("payment still pending at provider")
			continue
		}

		code, err := strconv.Atoi(result.ResultCode)
		if err != nil {
			log.Warn("non-numeric result code from status query", zap.String("result_code", result.ResultCode))
			continue
		}

		_, err = s.callbacks.Reconcile(ctx, PaymentOutcome{
			CheckoutRequestID: attempt.CheckoutRequestID,
			MerchantRequestID: result.MerchantRequestID,
			ResultCode:        code,
			ResultDesc:        result.ResultDesc,
			Source:            SourceQuery,
		})
		if err != nil {
			log.Error("failed to reconcile queried payment outcome", zap.Error(err))
			continue
		}
		reconciled++
	}

	s.logger.Info("payment sweep finished",
		zap.Int("pending", len(attempts)),
		zap.Int("reconciled", reconciled),
	)
	return reconciled, nil
}
