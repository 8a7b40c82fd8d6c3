// Package settlement turns accepted offers and direct purchases into
// charged, recorded transactions.
//
// Settlement is all-or-nothing from the caller's perspective: the
// payment rail confirms the charge before any record exists, and a
// failure at any later step compensates (refund the charge, restore the
// ticket) rather than leaving a partial transaction behind. Completed
// transactions are immutable history; a refund flips the status and
// stamps a timestamp but never rewrites the amounts.
package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/sagwira/reuni-engine/internal/idgen"
	"github.com/sagwira/reuni-engine/internal/listings"
)

var (
	ErrNotFound      = errors.New("transaction not found")
	ErrConflict      = errors.New("transaction status changed since read")
	ErrNotRefundable = errors.New("only completed transactions can be refunded")
)

// Status represents the state of a transaction.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusRefunded  Status = "refunded"
	StatusDisputed  Status = "disputed"
)

// Transaction records a settled sale. AmountPence is the gross charge to
// the buyer; SellerPayoutPence + PlatformFeePence always equals it.
type Transaction struct {
	ID                string     `json:"id"`
	BuyerID           string     `json:"buyerId"`
	SellerID          string     `json:"sellerId"`
	ListingID         string     `json:"listingId"`
	OfferID           string     `json:"offerId,omitempty"`
	AmountPence       int64      `json:"amountPence"`
	PlatformFeePence  int64      `json:"platformFeePence"`
	SellerPayoutPence int64      `json:"sellerPayoutPence"`
	Status            Status     `json:"status"`
	PaymentIntentID   string     `json:"paymentIntentId,omitempty"`
	TransferID        string     `json:"transferId,omitempty"`
	RefundReason      string     `json:"refundReason,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	CompletedAt       *time.Time `json:"completedAt,omitempty"`
	RefundedAt        *time.Time `json:"refundedAt,omitempty"`
}

// Notifier publishes settlement events to interested clients.
type Notifier interface {
	SaleSettled(t *Transaction)
}

// Store persists transactions. Status changes after creation go through
// TransitionStatus, a compare-and-set on the current status.
type Store interface {
	Create(ctx context.Context, t *Transaction) error
	Get(ctx context.Context, id string) (*Transaction, error)
	TransitionStatus(ctx context.Context, id string, from, to Status, at time.Time) (*Transaction, error)

	// SetRefundReason records why a transaction was reversed. Amounts
	// stay untouched.
	SetRefundReason(ctx context.Context, id, reason string) error

	ListByBuyer(ctx context.Context, buyerID string, limit int) ([]*Transaction, error)
	ListBySeller(ctx context.Context, sellerID string, limit int) ([]*Transaction, error)
}

// Inventory consumes and restores listing stock.
type Inventory interface {
	Get(ctx context.Context, id string) (*listings.Listing, error)
	Consume(ctx context.Context, id string) error
	Restore(ctx context.Context, id string) error
}

// PayoutCreator opens a seller payout for a settled transaction.
type PayoutCreator interface {
	CreateForTransaction(ctx context.Context, sellerID, transactionID string, amountPence int64) (string, error)
}

// OfferCompleter marks the source offer completed once its sale clears.
type OfferCompleter interface {
	MarkCompleted(ctx context.Context, offerID string) error
}

func newTransaction(buyerID, sellerID, listingID, offerID string, amount, fee, payout int64) *Transaction {
	return &Transaction{
		ID:                idgen.WithPrefix("txn_"),
		BuyerID:           buyerID,
		SellerID:          sellerID,
		ListingID:         listingID,
		OfferID:           offerID,
		AmountPence:       amount,
		PlatformFeePence:  fee,
		SellerPayoutPence: payout,
		Status:            StatusPending,
		CreatedAt:         time.Now(),
	}
}
