// Package offers implements price negotiation on ticket listings.
//
// Flow:
//  1. Buyer submits an offer on an available listing (floor 50%, ceiling
//     110% of the listed price)
//  2. Seller accepts or declines; unanswered offers expire after 12 hours
//     via a background sweep
//  3. The buyer may withdraw a still-pending offer at any time
//  4. On accept the settlement layer charges the buyer and the offer is
//     marked completed once the sale clears
//
// Every status transition is a compare-and-set keyed on the current
// status, so a sweep racing an in-flight accept never overwrites a
// terminal state.
package offers

import (
	"context"
	"errors"
	"time"

	"github.com/sagwira/reuni-engine/internal/fees"
	"github.com/sagwira/reuni-engine/internal/idgen"
	"github.com/sagwira/reuni-engine/internal/listings"
)

var (
	ErrNotFound           = errors.New("offer not found")
	ErrConflict           = errors.New("offer status changed since read")
	ErrUnauthorized       = errors.New("not authorized for this operation")
	ErrSelfOffer          = errors.New("cannot make an offer on your own listing")
	ErrDuplicatePending   = errors.New("buyer already has a pending offer on this listing")
	ErrTooManyPending     = errors.New("buyer has too many pending offers")
	ErrOfferTooLow        = errors.New("offer is below the minimum for this listing")
	ErrOfferTooHigh       = errors.New("offer is above the maximum for this listing")
	ErrListingUnavailable = errors.New("listing is not available for offers")
)

// BoundsError carries the listing's allowed offer range alongside
// ErrOfferTooLow or ErrOfferTooHigh, so clients get the actual bounds
// rather than parsing them out of the message.
type BoundsError struct {
	Err           error
	MinOfferPence int64
	MaxOfferPence int64
}

func (e *BoundsError) Error() string {
	if errors.Is(e.Err, ErrOfferTooLow) {
		return e.Err.Error() + ": minimum is " + fees.FormatGBP(e.MinOfferPence)
	}
	return e.Err.Error() + ": maximum is " + fees.FormatGBP(e.MaxOfferPence)
}

func (e *BoundsError) Unwrap() error { return e.Err }

// Status represents the state of an offer.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusDeclined  Status = "declined"
	StatusExpired   Status = "expired"
	StatusWithdrawn Status = "withdrawn"
	StatusCompleted Status = "completed"
)

// DefaultExpiry is how long an offer stays open without a seller response.
const DefaultExpiry = 12 * time.Hour

// MaxPendingPerBuyer caps how many unanswered offers a buyer may hold
// across all listings.
const MaxPendingPerBuyer = 10

// Offer is a buyer's bid on a listing. OriginalPricePence snapshots the
// listing price at creation time and never changes afterwards, so floor
// and ceiling checks stay meaningful if the seller reprices.
type Offer struct {
	ID                 string     `json:"id"`
	ListingID          string     `json:"listingId"`
	BuyerID            string     `json:"buyerId"`
	SellerID           string     `json:"sellerId"`
	AmountPence        int64      `json:"amountPence"`
	OriginalPricePence int64      `json:"originalPricePence"`
	Status             Status     `json:"status"`
	ExpiresAt          time.Time  `json:"expiresAt"`
	AcceptedAt         *time.Time `json:"acceptedAt,omitempty"`
	DeclinedAt         *time.Time `json:"declinedAt,omitempty"`
	WithdrawnAt        *time.Time `json:"withdrawnAt,omitempty"`
	ExpiredAt          *time.Time `json:"expiredAt,omitempty"`
	CompletedAt        *time.Time `json:"completedAt,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// IsTerminal returns true once the offer can no longer change hands.
// Accepted offers are not terminal: they still move to completed when
// settlement clears.
func (o *Offer) IsTerminal() bool {
	switch o.Status {
	case StatusDeclined, StatusExpired, StatusWithdrawn, StatusCompleted:
		return true
	}
	return false
}

// Store persists offers. TransitionStatus is the only mutation after
// creation: it writes the new status and its timestamp only if the row
// still holds the expected current status, returning ErrConflict when it
// does not.
type Store interface {
	Create(ctx context.Context, o *Offer) error
	Get(ctx context.Context, id string) (*Offer, error)
	TransitionStatus(ctx context.Context, id string, from, to Status, at time.Time) (*Offer, error)

	ListByBuyer(ctx context.Context, buyerID string, limit int) ([]*Offer, error)
	ListByListing(ctx context.Context, listingID string, limit int) ([]*Offer, error)
	GetPendingByBuyerAndListing(ctx context.Context, buyerID, listingID string) (*Offer, error)
	CountPendingByBuyer(ctx context.Context, buyerID string) (int, error)
	ListExpired(ctx context.Context, before time.Time, limit int) ([]*Offer, error)
}

// ListingProvider fetches the listing an offer targets.
type ListingProvider interface {
	Get(ctx context.Context, id string) (*listings.Listing, error)
}

// Settler turns an accepted offer into a charged, settled transaction.
type Settler interface {
	SettleOffer(ctx context.Context, o *Offer) (string, error)
}

// Notifier publishes offer lifecycle events to connected clients.
type Notifier interface {
	OfferCreated(o *Offer)
	OfferResponded(o *Offer)
	OfferExpired(o *Offer)
}

func newOffer(listingID, buyerID, sellerID string, amountPence, originalPricePence int64, expiry time.Duration) *Offer {
	now := time.Now()
	return &Offer{
		ID:                 idgen.WithPrefix("ofr_"),
		ListingID:          listingID,
		BuyerID:            buyerID,
		SellerID:           sellerID,
		AmountPence:        amountPence,
		OriginalPricePence: originalPricePence,
		Status:             StatusPending,
		ExpiresAt:          now.Add(expiry),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// applyTransition stamps the timestamp field that matches the target
// status. Stores call this after a successful compare-and-set so memory
// and Postgres rows stay shaped the same.
func applyTransition(o *Offer, to Status, at time.Time) {
	o.Status = to
	o.UpdatedAt = at
	switch to {
	case StatusAccepted:
		o.AcceptedAt = &at
	case StatusDeclined:
		o.DeclinedAt = &at
	case StatusWithdrawn:
		o.WithdrawnAt = &at
	case StatusExpired:
		o.ExpiredAt = &at
	case StatusCompleted:
		o.CompletedAt = &at
	}
}
