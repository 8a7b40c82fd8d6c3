package offers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sagwira/reuni-engine/internal/fees"
	"github.com/sagwira/reuni-engine/internal/metrics"
)

// Service implements offer business logic.
type Service struct {
	store    Store
	listings ListingProvider
	schedule fees.Schedule
	expiry   time.Duration
	settler  Settler
	notifier Notifier
	logger   *slog.Logger
}

// NewService creates a new offer service.
func NewService(store Store, lp ListingProvider, schedule fees.Schedule, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		listings: lp,
		schedule: schedule,
		expiry:   DefaultExpiry,
		logger:   logger,
	}
}

// WithSettler wires the settlement layer invoked when a seller accepts.
func (s *Service) WithSettler(st Settler) *Service {
	s.settler = st
	return s
}

// WithNotifier wires real-time event publishing.
func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifier = n
	return s
}

// WithExpiry overrides the default 12h offer lifetime.
func (s *Service) WithExpiry(d time.Duration) *Service {
	if d > 0 {
		s.expiry = d
	}
	return s
}

// Create validates and persists a new pending offer.
func (s *Service) Create(ctx context.Context, listingID, buyerID string, amountPence int64) (*Offer, error) {
	listing, err := s.listings.Get(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if !listing.Available() {
		return nil, ErrListingUnavailable
	}
	if buyerID == listing.SellerID {
		return nil, ErrSelfOffer
	}

	min := fees.MinOffer(listing.PricePence)
	max := fees.MaxOffer(listing.PricePence)
	if amountPence < min {
		return nil, &BoundsError{Err: ErrOfferTooLow, MinOfferPence: min, MaxOfferPence: max}
	}
	if amountPence > max {
		return nil, &BoundsError{Err: ErrOfferTooHigh, MinOfferPence: min, MaxOfferPence: max}
	}

	if _, err := s.store.GetPendingByBuyerAndListing(ctx, buyerID, listingID); err == nil {
		return nil, ErrDuplicatePending
	}

	pending, err := s.store.CountPendingByBuyer(ctx, buyerID)
	if err != nil {
		return nil, fmt.Errorf("failed to count pending offers: %w", err)
	}
	if pending >= MaxPendingPerBuyer {
		return nil, ErrTooManyPending
	}

	o := newOffer(listingID, buyerID, listing.SellerID, amountPence, listing.PricePence, s.expiry)
	if err := s.store.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("failed to create offer: %w", err)
	}

	metrics.OffersCreatedTotal.Inc()
	if s.notifier != nil {
		s.notifier.OfferCreated(o)
	}
	return o, nil
}

// Respond lets the listing seller accept or decline a pending offer.
// Accept triggers settlement; the offer stays accepted if settlement
// fails and moves to completed when the sale clears.
func (s *Service) Respond(ctx context.Context, offerID, actorID string, accept bool) (*Offer, error) {
	o, err := s.store.Get(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if actorID != o.SellerID {
		return nil, ErrUnauthorized
	}
	if o.Status != StatusPending {
		return nil, ErrConflict
	}

	to := StatusDeclined
	action := "decline"
	if accept {
		to = StatusAccepted
		action = "accept"
	}

	updated, err := s.store.TransitionStatus(ctx, offerID, StatusPending, to, time.Now())
	if err != nil {
		return nil, err
	}

	metrics.OffersRespondedTotal.WithLabelValues(action).Inc()
	if s.notifier != nil {
		s.notifier.OfferResponded(updated)
	}

	if accept && s.settler != nil {
		txnID, err := s.settler.SettleOffer(ctx, updated)
		if err != nil {
			// The offer stays accepted; settlement can be retried
			// against it without the seller responding again.
			s.logger.Error("settlement failed for accepted offer",
				"offer_id", updated.ID, "error", err)
			return updated, fmt.Errorf("offer accepted but settlement failed: %w", err)
		}
		s.logger.Info("offer settled", "offer_id", updated.ID, "transaction_id", txnID)
		return s.store.Get(ctx, offerID)
	}
	return updated, nil
}

// Withdraw lets the buyer cancel their own still-pending offer.
func (s *Service) Withdraw(ctx context.Context, offerID, actorID string) (*Offer, error) {
	o, err := s.store.Get(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if actorID != o.BuyerID {
		return nil, ErrUnauthorized
	}
	if o.Status != StatusPending {
		return nil, ErrConflict
	}

	updated, err := s.store.TransitionStatus(ctx, offerID, StatusPending, StatusWithdrawn, time.Now())
	if err != nil {
		return nil, err
	}
	metrics.OffersWithdrawnTotal.Inc()
	return updated, nil
}

// MarkCompleted moves an accepted offer to completed once its sale has
// settled. Called by the settlement layer, never by a client request.
func (s *Service) MarkCompleted(ctx context.Context, offerID string) error {
	_, err := s.store.TransitionStatus(ctx, offerID, StatusAccepted, StatusCompleted, time.Now())
	return err
}

// SweepExpired expires pending offers past their deadline. Each
// transition is a compare-and-set from pending, so an accept that lands
// between the list and the write wins and the sweep skips that offer.
func (s *Service) SweepExpired(ctx context.Context, now time.Time) int {
	expired, err := s.store.ListExpired(ctx, now, 100)
	if err != nil {
		s.logger.Error("expiry sweep failed to list offers", "error", err)
		return 0
	}

	swept := 0
	for _, o := range expired {
		updated, err := s.store.TransitionStatus(ctx, o.ID, StatusPending, StatusExpired, now)
		if err != nil {
			// ErrConflict means someone responded first. Not our offer
			// to expire any more.
			continue
		}
		swept++
		metrics.OffersExpiredTotal.Inc()
		if s.notifier != nil {
			s.notifier.OfferExpired(updated)
		}
	}
	if swept > 0 {
		s.logger.Info("expired stale offers", "count", swept)
	}
	return swept
}

// Get returns an offer by ID.
func (s *Service) Get(ctx context.Context, id string) (*Offer, error) {
	return s.store.Get(ctx, id)
}

// ListByBuyer returns a buyer's offers, newest first.
func (s *Service) ListByBuyer(ctx context.Context, buyerID string, limit int) ([]*Offer, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.ListByBuyer(ctx, buyerID, limit)
}

// ListByListing returns all offers on a listing, newest first.
func (s *Service) ListByListing(ctx context.Context, listingID string, limit int) ([]*Offer, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.ListByListing(ctx, listingID, limit)
}
