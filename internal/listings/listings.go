// Package listings holds the engine's read-model of ticket listings.
//
// Listings are owned by the wider platform; the engine only needs
// enough of them to validate offers and consume inventory when a sale
// settles. Records here are a projection, never the system of record
// for presentation data.
package listings

import (
	"context"
	"errors"
	"time"

	"github.com/sagwira/reuni-engine/internal/idgen"
)

var (
	ErrNotFound     = errors.New("listing not found")
	ErrNotAvailable = errors.New("listing is not available")
	ErrSoldOut      = errors.New("listing has no remaining tickets")
)

// Status represents the sale state of a listing.
type Status string

const (
	StatusAvailable Status = "available"
	StatusSold      Status = "sold"
	StatusWithdrawn Status = "withdrawn"
)

// Listing is a ticket offered for resale at a price.
type Listing struct {
	ID         string    `json:"id"`
	SellerID   string    `json:"sellerId"`
	EventName  string    `json:"eventName,omitempty"`
	PricePence int64     `json:"pricePence"`
	Quantity   int       `json:"quantity"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Available reports whether the listing can currently be sold.
func (l *Listing) Available() bool {
	return l.Status == StatusAvailable && l.Quantity > 0
}

// Store persists the listing projection.
type Store interface {
	Create(ctx context.Context, l *Listing) error
	Get(ctx context.Context, id string) (*Listing, error)

	// Consume decrements the available quantity by one, marking the
	// listing sold when the last ticket goes. It fails with
	// ErrNotAvailable/ErrSoldOut if the listing cannot be consumed,
	// checked atomically against the current row.
	Consume(ctx context.Context, id string) error

	// Restore re-adds one ticket, used to compensate a failed settlement
	// after inventory was already consumed.
	Restore(ctx context.Context, id string) error

	ListBySeller(ctx context.Context, sellerID string, limit int) ([]*Listing, error)
}

// NewListing builds a listing projection row with a generated ID.
func NewListing(sellerID, eventName string, pricePence int64, quantity int) *Listing {
	now := time.Now()
	return &Listing{
		ID:         idgen.WithPrefix("lst_"),
		SellerID:   sellerID,
		EventName:  eventName,
		PricePence: pricePence,
		Quantity:   quantity,
		Status:     StatusAvailable,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
