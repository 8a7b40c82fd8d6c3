// Package payments wraps the external payment rail (Stripe).
//
// The rail actually moves money; this engine only ever confirms
// charges, reverses them, and pushes payouts. Every call that could
// double-move money takes an idempotency key supplied by the caller so
// retries are safe. Rail failures are reported as *RailError and never
// leak provider detail to end users.
package payments

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Payout states as reported by the rail.
const (
	PayoutStatusPending   = "pending"
	PayoutStatusInTransit = "in_transit"
	PayoutStatusPaid      = "paid"
	PayoutStatusFailed    = "failed"
)

// RailError is a failure talking to the payment rail. Retryable errors
// (timeouts, 5xx, rate limits) may be retried with backoff; others are
// permanent for the attempted operation.
type RailError struct {
	Op        string
	Retryable bool
	Err       error
}

func (e *RailError) Error() string {
	return fmt.Sprintf("payment rail %s failed: %v", e.Op, e.Err)
}

func (e *RailError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a rail failure worth retrying.
func IsRetryable(err error) bool {
	var re *RailError
	return errors.As(err, &re) && re.Retryable
}

// Charge is a confirmed buyer charge with its destination transfer.
type Charge struct {
	PaymentIntentID string
	TransferID      string
}

// ChargeParams describes a destination charge: the buyer pays
// AmountPence, the platform keeps ApplicationFeePence, and the rest is
// transferred to the seller's connected account.
type ChargeParams struct {
	AmountPence         int64
	ApplicationFeePence int64
	SellerAccountID     string
	PaymentMethodID     string
	Description         string
	IdempotencyKey      string
}

// PayoutParams describes a push of settled funds to a seller's bank.
type PayoutParams struct {
	AmountPence     int64
	SellerAccountID string
	Method          string // "standard" or "instant"
	IdempotencyKey  string
}

// PayoutState is the rail's view of a payout.
type PayoutState struct {
	PayoutID       string
	Status         string
	ArrivalDate    time.Time
	FailureMessage string
}

// Rail is the outbound interface to the payment platform.
type Rail interface {
	// ConfirmCharge charges the buyer and sets up the seller transfer.
	// A nil error means the money moved; there is no partial success.
	ConfirmCharge(ctx context.Context, p ChargeParams) (*Charge, error)

	// RefundCharge reverses a confirmed charge, in full when
	// amountPence is 0.
	RefundCharge(ctx context.Context, paymentIntentID string, amountPence int64, reason, idempotencyKey string) (refundID string, err error)

	// CreatePayout pushes funds from the seller's connected account to
	// their bank. Calling twice with the same idempotency key performs
	// at most one payout.
	CreatePayout(ctx context.Context, p PayoutParams) (*PayoutState, error)

	// GetPayout fetches the current state of a payout.
	GetPayout(ctx context.Context, sellerAccountID, payoutID string) (*PayoutState, error)
}
