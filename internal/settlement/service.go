package settlement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sagwira/reuni-engine/internal/audit"
	"github.com/sagwira/reuni-engine/internal/fees"
	"github.com/sagwira/reuni-engine/internal/metrics"
	"github.com/sagwira/reuni-engine/internal/offers"
	"github.com/sagwira/reuni-engine/internal/payments"
	"github.com/sagwira/reuni-engine/internal/traces"
)

// Service implements transaction settlement and refunds.
type Service struct {
	store     Store
	inventory Inventory
	rail      payments.Rail
	schedule  fees.Schedule
	payouts   PayoutCreator
	offers    OfferCompleter
	notifier  Notifier
	audit     audit.Recorder
	logger    *slog.Logger
}

// NewService creates a new settlement service.
func NewService(store Store, inventory Inventory, rail payments.Rail, schedule fees.Schedule, rec audit.Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		inventory: inventory,
		rail:      rail,
		schedule:  schedule,
		audit:     rec,
		logger:    logger,
	}
}

// WithPayouts wires the payout record opened for each settled sale.
func (s *Service) WithPayouts(pc PayoutCreator) *Service {
	s.payouts = pc
	return s
}

// WithOffers wires completion of source offers after settlement.
func (s *Service) WithOffers(oc OfferCompleter) *Service {
	s.offers = oc
	return s
}

// WithNotifier wires settlement event publishing.
func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifier = n
	return s
}

// SettleOffer settles an accepted offer at the offered amount. The
// idempotency key is derived from the offer ID so a retried settlement
// of the same acceptance never charges the buyer twice.
func (s *Service) SettleOffer(ctx context.Context, o *offers.Offer) (string, error) {
	if o.Status != offers.StatusAccepted {
		return "", fmt.Errorf("%w: offer %s is %s, not accepted", ErrConflict, o.ID, o.Status)
	}
	txn, err := s.settle(ctx, o.BuyerID, o.SellerID, o.ListingID, o.ID, o.AmountPence, "", "charge:offer:"+o.ID)
	if err != nil {
		return "", err
	}
	return txn.ID, nil
}

// Purchase settles a direct buy of a listing at its listed price.
func (s *Service) Purchase(ctx context.Context, listingID, buyerID, paymentMethodID string) (*Transaction, error) {
	listing, err := s.inventory.Get(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if !listing.Available() {
		return nil, fmt.Errorf("listing %s: not available", listingID)
	}
	if buyerID == listing.SellerID {
		return nil, fmt.Errorf("listing %s: cannot buy your own listing", listingID)
	}
	return s.settle(ctx, buyerID, listing.SellerID, listingID, "", listing.PricePence, paymentMethodID, "")
}

// settle runs the all-or-nothing pipeline: charge, consume inventory,
// record, open payout. A failure after the charge compensates by
// reversing it; a failure after consumption also restores the ticket.
func (s *Service) settle(ctx context.Context, buyerID, sellerID, listingID, offerID string, pricePence int64, paymentMethodID, chargeKey string) (*Transaction, error) {
	ctx, span := traces.StartSpan(ctx, "settlement.settle",
		traces.ListingID(listingID),
		traces.AmountPence(pricePence),
	)
	defer span.End()

	breakdown, err := s.schedule.Compute(pricePence)
	if err != nil {
		return nil, err
	}

	txn := newTransaction(buyerID, sellerID, listingID, offerID,
		breakdown.BuyerTotalPence, breakdown.PlatformFeePence, breakdown.SellerPayoutPence)
	if chargeKey == "" {
		chargeKey = "charge:" + txn.ID
	}

	// Seller IDs double as the rail's connected account IDs; the wider
	// platform provisions the account when the seller onboards.
	charge, err := s.rail.ConfirmCharge(ctx, payments.ChargeParams{
		AmountPence:         breakdown.BuyerTotalPence,
		ApplicationFeePence: breakdown.PlatformFeePence,
		SellerAccountID:     sellerID,
		PaymentMethodID:     paymentMethodID,
		Description:         "Ticket sale " + listingID,
		IdempotencyKey:      chargeKey,
	})
	if err != nil {
		metrics.SettlementsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("charge failed: %w", err)
	}
	txn.PaymentIntentID = charge.PaymentIntentID
	txn.TransferID = charge.TransferID

	if err := s.inventory.Consume(ctx, listingID); err != nil {
		s.compensateCharge(ctx, txn)
		metrics.SettlementsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("inventory consume failed: %w", err)
	}

	if err := s.store.Create(ctx, txn); err != nil {
		if restoreErr := s.inventory.Restore(ctx, listingID); restoreErr != nil {
			s.logger.Error("failed to restore inventory after aborted settlement",
				"listing_id", listingID, "error", restoreErr)
		}
		s.compensateCharge(ctx, txn)
		metrics.SettlementsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("failed to record transaction: %w", err)
	}

	completed, err := s.store.TransitionStatus(ctx, txn.ID, StatusPending, StatusCompleted, time.Now())
	if err != nil {
		// The record exists and the money moved; leave it pending for
		// reconciliation rather than reversing a good charge.
		s.logger.Error("failed to complete transaction", "transaction_id", txn.ID, "error", err)
		return txn, nil
	}

	metrics.SettlementsTotal.WithLabelValues("completed").Inc()
	metrics.PlatformFeePence.Add(float64(breakdown.PlatformFeePence))

	if s.notifier != nil {
		s.notifier.SaleSettled(completed)
	}
	if s.payouts != nil {
		if _, err := s.payouts.CreateForTransaction(ctx, sellerID, completed.ID, completed.SellerPayoutPence); err != nil {
			s.logger.Error("failed to open payout for settled transaction",
				"transaction_id", completed.ID, "error", err)
		}
	}
	if offerID != "" && s.offers != nil {
		if err := s.offers.MarkCompleted(ctx, offerID); err != nil {
			s.logger.Error("failed to complete source offer",
				"offer_id", offerID, "transaction_id", completed.ID, "error", err)
		}
	}
	return completed, nil
}

// compensateCharge reverses an already-confirmed charge after a later
// settlement step failed. Best effort: a failed reversal is logged for
// manual reconciliation, never retried inline.
func (s *Service) compensateCharge(ctx context.Context, txn *Transaction) {
	if txn.PaymentIntentID == "" {
		return
	}
	_, err := s.rail.RefundCharge(ctx, txn.PaymentIntentID, 0, "settlement_aborted", "refund:"+txn.ID)
	if err != nil {
		s.logger.Error("failed to reverse charge after aborted settlement",
			"payment_intent_id", txn.PaymentIntentID, "error", err)
	}
}

// Refund reverses a completed (or disputed) transaction. The audit
// record is written first; a mutation without its audit trail must not
// happen, so an audit failure fails the whole refund.
func (s *Service) Refund(ctx context.Context, txnID, reason string) (*Transaction, error) {
	ctx, span := traces.StartSpan(ctx, "settlement.Refund", traces.TransactionID(txnID))
	defer span.End()

	txn, err := s.store.Get(ctx, txnID)
	if err != nil {
		return nil, err
	}
	switch txn.Status {
	case StatusCompleted, StatusDisputed:
	case StatusRefunded:
		return nil, fmt.Errorf("%w: transaction already refunded", ErrConflict)
	default:
		return nil, ErrNotRefundable
	}

	if err := audit.Record(ctx, s.audit, audit.ActionRefundTransaction, txnID, reason); err != nil {
		return nil, err
	}

	if _, err := s.rail.RefundCharge(ctx, txn.PaymentIntentID, 0, reason, "refund:"+txn.ID); err != nil {
		return nil, fmt.Errorf("refund failed: %w", err)
	}

	if reason != "" {
		if err := s.store.SetRefundReason(ctx, txnID, reason); err != nil {
			s.logger.Error("failed to record refund reason", "transaction_id", txnID, "error", err)
		}
	}

	updated, err := s.store.TransitionStatus(ctx, txnID, txn.Status, StatusRefunded, time.Now())
	if err != nil {
		return nil, err
	}
	metrics.RefundsTotal.Inc()
	return updated, nil
}

// MarkDisputed flags a completed transaction while a dispute is open.
func (s *Service) MarkDisputed(ctx context.Context, txnID string) (*Transaction, error) {
	return s.store.TransitionStatus(ctx, txnID, StatusCompleted, StatusDisputed, time.Now())
}

// ClearDispute returns a disputed transaction to completed after a
// dispute ends without a refund.
func (s *Service) ClearDispute(ctx context.Context, txnID string) (*Transaction, error) {
	return s.store.TransitionStatus(ctx, txnID, StatusDisputed, StatusCompleted, time.Now())
}

// Get returns a transaction by ID.
func (s *Service) Get(ctx context.Context, id string) (*Transaction, error) {
	return s.store.Get(ctx, id)
}

// ListByBuyer returns a buyer's transactions, newest first.
func (s *Service) ListByBuyer(ctx context.Context, buyerID string, limit int) ([]*Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.ListByBuyer(ctx, buyerID, limit)
}

// ListBySeller returns a seller's transactions, newest first.
func (s *Service) ListBySeller(ctx context.Context, sellerID string, limit int) ([]*Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.ListBySeller(ctx, sellerID, limit)
}
