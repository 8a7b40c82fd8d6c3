package disputes

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sagwira/reuni-engine/internal/audit"
	"github.com/sagwira/reuni-engine/internal/metrics"
	"github.com/sagwira/reuni-engine/internal/settlement"
)

// Service implements the dispute workflow.
type Service struct {
	store    Store
	txns     TransactionProvider
	refunder Refunder
	notifier Notifier
	audit    audit.Recorder
	logger   *slog.Logger
}

// NewService creates a new dispute service.
func NewService(store Store, txns TransactionProvider, rec audit.Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		txns:   txns,
		audit:  rec,
		logger: logger,
	}
}

// WithRefunder wires refund-carrying resolutions through settlement.
func (s *Service) WithRefunder(r Refunder) *Service {
	s.refunder = r
	return s
}

// WithNotifier wires dispute event publishing.
func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifier = n
	return s
}

// File opens a dispute against a transaction. Only the buyer or seller
// of the transaction may report it; the other party is the reported
// user. The transaction must be a settled sale (completed, or disputed
// from an earlier resolved case) and may carry at most one open dispute
// at a time. It is flagged disputed while the case is open.
func (s *Service) File(ctx context.Context, txnID, reporterID string, dtype Type, description string) (*Dispute, error) {
	if _, ok := typePriority[dtype]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, dtype)
	}

	txn, err := s.txns.Get(ctx, txnID)
	if err != nil {
		return nil, err
	}
	if txn.Status != settlement.StatusCompleted && txn.Status != settlement.StatusDisputed {
		return nil, fmt.Errorf("%w: transaction is %s", ErrNotDisputable, txn.Status)
	}

	var reported string
	switch reporterID {
	case txn.BuyerID:
		reported = txn.SellerID
	case txn.SellerID:
		reported = txn.BuyerID
	default:
		return nil, ErrUnauthorized
	}

	existing, err := s.store.ListByTransaction(ctx, txnID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing disputes: %w", err)
	}
	for _, prev := range existing {
		if !prev.IsTerminal() {
			return nil, fmt.Errorf("%w: %s", ErrDuplicate, prev.ID)
		}
	}

	d := newDispute(txnID, reporterID, reported, dtype, description)
	if err := s.store.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("failed to create dispute: %w", err)
	}

	if _, err := s.txns.MarkDisputed(ctx, txnID); err != nil {
		// A transaction still flagged from an earlier case keeps its
		// status; the new dispute holds the queue entry.
		s.logger.Warn("could not flag transaction as disputed",
			"transaction_id", txnID, "dispute_id", d.ID, "error", err)
	}

	metrics.DisputesTotal.WithLabelValues(string(StatusOpen)).Inc()
	if s.notifier != nil {
		s.notifier.DisputeOpened(d)
	}
	return d, nil
}

// Investigate moves an open dispute into investigation. Privileged.
func (s *Service) Investigate(ctx context.Context, disputeID string) (*Dispute, error) {
	if err := audit.Record(ctx, s.audit, audit.ActionUpdateDisputeStatus, disputeID, "investigating"); err != nil {
		return nil, err
	}

	d, err := s.store.TransitionStatus(ctx, disputeID, StatusOpen, StatusInvestigating, "", time.Now())
	if err != nil {
		return nil, err
	}
	metrics.DisputesTotal.WithLabelValues(string(StatusInvestigating)).Inc()
	return d, nil
}

// Resolve ends a dispute with a written resolution, optionally
// refunding the buyer. The refund runs through settlement and writes
// its own audit record, so a refund-carrying resolution leaves two
// audit entries.
func (s *Service) Resolve(ctx context.Context, disputeID, resolution string, withRefund bool) (*Dispute, error) {
	if strings.TrimSpace(resolution) == "" {
		return nil, ErrEmptyResolution
	}

	d, err := s.store.Get(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if d.IsTerminal() {
		return nil, ErrTerminal
	}

	if err := audit.Record(ctx, s.audit, audit.ActionResolveDispute, disputeID, resolution); err != nil {
		return nil, err
	}

	updated, err := s.store.TransitionStatus(ctx, disputeID, d.Status, StatusResolved, resolution, time.Now())
	if err != nil {
		return nil, err
	}

	if withRefund {
		if s.refunder == nil {
			return updated, fmt.Errorf("resolution requires a refund but no refunder is configured")
		}
		if _, err := s.refunder.Refund(ctx, d.TransactionID, "dispute "+disputeID+" resolved: "+resolution); err != nil {
			// The dispute is resolved; the refund is the part to chase.
			s.logger.Error("refund for resolved dispute failed",
				"dispute_id", disputeID, "transaction_id", d.TransactionID, "error", err)
			return updated, fmt.Errorf("dispute resolved but refund failed: %w", err)
		}
	} else {
		if _, err := s.txns.ClearDispute(ctx, d.TransactionID); err != nil {
			s.logger.Warn("could not clear disputed flag",
				"transaction_id", d.TransactionID, "error", err)
		}
	}

	metrics.DisputesTotal.WithLabelValues(string(StatusResolved)).Inc()
	if s.notifier != nil {
		s.notifier.DisputeResolved(updated)
	}
	return updated, nil
}

// Close ends a dispute without remedy. No resolution text is required.
func (s *Service) Close(ctx context.Context, disputeID string) (*Dispute, error) {
	d, err := s.store.Get(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if d.IsTerminal() {
		return nil, ErrTerminal
	}

	if err := audit.Record(ctx, s.audit, audit.ActionUpdateDisputeStatus, disputeID, "closed"); err != nil {
		return nil, err
	}

	updated, err := s.store.TransitionStatus(ctx, disputeID, d.Status, StatusClosed, "", time.Now())
	if err != nil {
		return nil, err
	}

	if _, err := s.txns.ClearDispute(ctx, d.TransactionID); err != nil {
		s.logger.Warn("could not clear disputed flag",
			"transaction_id", d.TransactionID, "error", err)
	}

	metrics.DisputesTotal.WithLabelValues(string(StatusClosed)).Inc()
	return updated, nil
}

// Get returns a dispute by ID.
func (s *Service) Get(ctx context.Context, id string) (*Dispute, error) {
	return s.store.Get(ctx, id)
}

// ListByStatus returns the moderation queue for a status.
func (s *Service) ListByStatus(ctx context.Context, status Status, limit int) ([]*Dispute, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.ListByStatus(ctx, status, limit)
}

// ListByTransaction returns all disputes raised against a transaction.
func (s *Service) ListByTransaction(ctx context.Context, txnID string) ([]*Dispute, error) {
	return s.store.ListByTransaction(ctx, txnID)
}

// ListByReporter returns disputes filed by a user, newest first.
func (s *Service) ListByReporter(ctx context.Context, reporterID string, limit int) ([]*Dispute, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.ListByReporter(ctx, reporterID, limit)
}
