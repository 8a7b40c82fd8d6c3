package payouts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sagwira/reuni-engine/internal/audit"
	"github.com/sagwira/reuni-engine/internal/metrics"
	"github.com/sagwira/reuni-engine/internal/payments"
	"github.com/sagwira/reuni-engine/internal/retry"
	"github.com/sagwira/reuni-engine/internal/traces"
)

// Service implements payout tracking and retry.
type Service struct {
	store    Store
	rail     payments.Rail
	audit    audit.Recorder
	notifier Notifier
	logger   *slog.Logger

	// retry policy for rail calls during an admin-driven retry
	maxAttempts int
	baseDelay   time.Duration
}

// NewService creates a new payout service.
func NewService(store Store, rail payments.Rail, rec audit.Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:       store,
		rail:        rail,
		audit:       rec,
		logger:      logger,
		maxAttempts: 3,
		baseDelay:   500 * time.Millisecond,
	}
}

// WithNotifier wires payout event publishing.
func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifier = n
	return s
}

// CreateForTransaction opens a payout for a settled sale and pushes it
// to the rail. A rail failure leaves the record failed for a later
// retry; the payout record itself always exists once this returns.
func (s *Service) CreateForTransaction(ctx context.Context, sellerID, transactionID string, amountPence int64) (string, error) {
	p := newPayout(sellerID, transactionID, amountPence)
	if err := s.store.Create(ctx, p); err != nil {
		return "", fmt.Errorf("failed to create payout: %w", err)
	}

	if err := s.dispatch(ctx, p.ID, StatusPending); err != nil {
		s.logger.Error("initial payout dispatch failed", "payout_id", p.ID, "error", err)
	}
	return p.ID, nil
}

// dispatch pushes a payout in the given current status to the rail and
// records the outcome. The idempotency key depends only on the payout
// ID, so replays of the same payout never double-pay.
func (s *Service) dispatch(ctx context.Context, payoutID string, from Status) error {
	p, err := s.store.Get(ctx, payoutID)
	if err != nil {
		return err
	}

	state, railErr := s.rail.CreatePayout(ctx, payments.PayoutParams{
		AmountPence:     p.AmountPence,
		SellerAccountID: p.SellerID,
		Method:          p.Method,
		IdempotencyKey:  "payout:" + p.ID,
	})
	now := time.Now()

	if railErr != nil {
		if _, err := s.store.UpdateState(ctx, payoutID, from, StateUpdate{
			Status:         StatusFailed,
			FailureMessage: "payment rail error",
		}, now); err != nil {
			return err
		}
		return railErr
	}

	upd := StateUpdate{Status: railStatus(state.Status), StripePayoutID: state.PayoutID}
	if !state.ArrivalDate.IsZero() {
		d := state.ArrivalDate
		upd.ArrivalDate = &d
	}
	if upd.Status == StatusPaid {
		upd.PaidAt = &now
	}
	if upd.Status == StatusFailed {
		upd.FailureMessage = state.FailureMessage
	}

	updated, err := s.store.UpdateState(ctx, payoutID, from, upd, now)
	if err != nil {
		return err
	}
	if updated.Status == StatusPaid && s.notifier != nil {
		s.notifier.PayoutPaid(updated)
	}
	return nil
}

// Retry re-attempts a failed payout. Retrying a paid or in-transit
// payout is a conflict, never a silent no-op. The audit record is
// written before the rail is touched and its failure fails the retry.
func (s *Service) Retry(ctx context.Context, payoutID string) (*Payout, error) {
	ctx, span := traces.StartSpan(ctx, "payouts.Retry", traces.PayoutID(payoutID))
	defer span.End()

	p, err := s.store.Get(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	if p.Status != StatusFailed {
		return nil, fmt.Errorf("%w: payout is %s", ErrNotRetryable, p.Status)
	}

	if err := audit.Record(ctx, s.audit, audit.ActionRetryPayout, payoutID, ""); err != nil {
		return nil, err
	}

	err = retry.Do(ctx, s.maxAttempts, s.baseDelay, func() error {
		dispatchErr := s.dispatch(ctx, payoutID, StatusFailed)
		if dispatchErr == nil {
			return nil
		}
		if !payments.IsRetryable(dispatchErr) {
			return retry.Permanent(dispatchErr)
		}
		return dispatchErr
	})

	updated, getErr := s.store.Get(ctx, payoutID)
	if getErr != nil {
		return nil, getErr
	}
	if err != nil {
		metrics.PayoutRetriesTotal.WithLabelValues("failed").Inc()
		return updated, fmt.Errorf("payout retry failed: %w", err)
	}

	metrics.PayoutRetriesTotal.WithLabelValues(string(updated.Status)).Inc()
	s.logger.Info("payout retried", "payout_id", payoutID, "status", updated.Status)
	return updated, nil
}

// Reconcile polls the rail for in-transit payouts and records arrivals
// and late failures. Driven by the background timer.
func (s *Service) Reconcile(ctx context.Context) int {
	inTransit, err := s.store.ListByStatus(ctx, StatusInTransit, 100)
	if err != nil {
		s.logger.Error("payout reconcile failed to list", "error", err)
		return 0
	}

	updated := 0
	for _, p := range inTransit {
		if p.StripePayoutID == "" {
			continue
		}
		state, err := s.rail.GetPayout(ctx, p.SellerID, p.StripePayoutID)
		if err != nil {
			continue
		}

		status := railStatus(state.Status)
		if status == p.Status {
			continue
		}
		now := time.Now()
		upd := StateUpdate{Status: status}
		if status == StatusPaid {
			upd.PaidAt = &now
		}
		if status == StatusFailed {
			upd.FailureMessage = state.FailureMessage
		}
		reconciled, err := s.store.UpdateState(ctx, p.ID, StatusInTransit, upd, now)
		if err != nil {
			continue
		}
		if reconciled.Status == StatusPaid && s.notifier != nil {
			s.notifier.PayoutPaid(reconciled)
		}
		updated++
	}
	if updated > 0 {
		s.logger.Info("reconciled in-transit payouts", "count", updated)
	}
	return updated
}

// Get returns a payout by ID.
func (s *Service) Get(ctx context.Context, id string) (*Payout, error) {
	return s.store.Get(ctx, id)
}

// ListBySeller returns a seller's payouts, newest first.
func (s *Service) ListBySeller(ctx context.Context, sellerID string, limit int) ([]*Payout, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.ListBySeller(ctx, sellerID, limit)
}

// ListFailed returns payouts awaiting a retry.
func (s *Service) ListFailed(ctx context.Context, limit int) ([]*Payout, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.ListByStatus(ctx, StatusFailed, limit)
}

// railStatus maps the rail's payout status onto ours.
func railStatus(s string) Status {
	switch s {
	case payments.PayoutStatusPaid:
		return StatusPaid
	case payments.PayoutStatusInTransit:
		return StatusInTransit
	case payments.PayoutStatusFailed:
		return StatusFailed
	default:
		return StatusPending
	}
}
