// Package payouts tracks seller payouts derived from settled sales and
// drives them through the payment rail.
//
// Lifecycle: pending → in_transit → paid, with any leg allowed to land
// in failed. Failed payouts may be retried any number of times; the
// retry reuses an idempotency key derived from the payout ID so the
// rail never pays twice. Paid is terminal and retrying it is rejected.
package payouts

import (
	"context"
	"errors"
	"time"

	"github.com/sagwira/reuni-engine/internal/idgen"
)

var (
	ErrNotFound = errors.New("payout not found")
	ErrConflict = errors.New("payout status changed since read")
	// ErrNotRetryable rejects retries of payouts that are not failed.
	ErrNotRetryable = errors.New("only failed payouts can be retried")
)

// Status represents the state of a payout.
type Status string

const (
	StatusPending   Status = "pending"
	StatusInTransit Status = "in_transit"
	StatusPaid      Status = "paid"
	StatusFailed    Status = "failed"
)

// Payout methods supported by the rail.
const (
	MethodStandard = "standard"
	MethodInstant  = "instant"
)

// Payout is a push of settled funds to a seller's bank account.
type Payout struct {
	ID             string     `json:"id"`
	SellerID       string     `json:"sellerId"`
	TransactionID  string     `json:"transactionId"`
	AmountPence    int64      `json:"amountPence"`
	Status         Status     `json:"status"`
	Method         string     `json:"method"`
	StripePayoutID string     `json:"stripePayoutId,omitempty"`
	FailureMessage string     `json:"failureMessage,omitempty"`
	ArrivalDate    *time.Time `json:"arrivalDate,omitempty"`
	PaidAt         *time.Time `json:"paidAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// StateUpdate carries the rail-derived fields written alongside a
// status transition.
type StateUpdate struct {
	Status         Status
	StripePayoutID string
	FailureMessage string
	ArrivalDate    *time.Time
	PaidAt         *time.Time
}

// Notifier publishes payout lifecycle events to interested clients.
type Notifier interface {
	PayoutPaid(p *Payout)
}

// Store persists payouts. UpdateState is a compare-and-set on the
// current status, same discipline as the offer and transaction stores.
type Store interface {
	Create(ctx context.Context, p *Payout) error
	Get(ctx context.Context, id string) (*Payout, error)
	UpdateState(ctx context.Context, id string, from Status, upd StateUpdate, at time.Time) (*Payout, error)

	ListBySeller(ctx context.Context, sellerID string, limit int) ([]*Payout, error)
	ListByStatus(ctx context.Context, status Status, limit int) ([]*Payout, error)
}

func newPayout(sellerID, transactionID string, amountPence int64) *Payout {
	now := time.Now()
	return &Payout{
		ID:            idgen.WithPrefix("po_"),
		SellerID:      sellerID,
		TransactionID: transactionID,
		AmountPence:   amountPence,
		Status:        StatusPending,
		Method:        MethodStandard,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// applyState is shared by the memory and Postgres stores so both shape
// rows identically after a transition.
func applyState(p *Payout, upd StateUpdate, at time.Time) {
	p.Status = upd.Status
	p.UpdatedAt = at
	if upd.StripePayoutID != "" {
		p.StripePayoutID = upd.StripePayoutID
	}
	p.FailureMessage = upd.FailureMessage
	if upd.ArrivalDate != nil {
		p.ArrivalDate = upd.ArrivalDate
	}
	if upd.PaidAt != nil {
		p.PaidAt = upd.PaidAt
	}
}
