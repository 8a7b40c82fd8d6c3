package payments

import (
	"context"
	"errors"
	"time"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
)

// DefaultCallTimeout bounds every rail call. Timeouts surface as
// retryable RailErrors; the local record stays unchanged until the rail
// answers.
const DefaultCallTimeout = 30 * time.Second

// StripeRail is the production Rail implementation backed by Stripe
// destination charges and Connect payouts.
type StripeRail struct {
	api     *client.API
	timeout time.Duration
}

// NewStripeRail creates a Stripe-backed payment rail.
func NewStripeRail(secretKey string) *StripeRail {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeRail{api: api, timeout: DefaultCallTimeout}
}

func (r *StripeRail) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

func (r *StripeRail) ConfirmCharge(ctx context.Context, p ChargeParams) (*Charge, error) {
	ctx, cancel := r.callCtx(ctx)
	defer cancel()

	params := &stripe.PaymentIntentParams{
		Amount:               stripe.Int64(p.AmountPence),
		Currency:             stripe.String(string(stripe.CurrencyGBP)),
		ApplicationFeeAmount: stripe.Int64(p.ApplicationFeePence),
		Description:          stripe.String(p.Description),
		PaymentMethod:        stripe.String(p.PaymentMethodID),
		Confirm:              stripe.Bool(true),
		TransferData: &stripe.PaymentIntentTransferDataParams{
			Destination: stripe.String(p.SellerAccountID),
		},
	}
	params.Context = ctx
	if p.IdempotencyKey != "" {
		params.SetIdempotencyKey(p.IdempotencyKey)
	}

	pi, err := r.api.PaymentIntents.New(params)
	if err != nil {
		return nil, railErr("confirm_charge", err)
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return nil, &RailError{Op: "confirm_charge", Retryable: false,
			Err: errors.New("payment intent not succeeded: " + string(pi.Status))}
	}

	charge := &Charge{PaymentIntentID: pi.ID}
	if pi.LatestCharge != nil && pi.LatestCharge.Transfer != nil {
		charge.TransferID = pi.LatestCharge.Transfer.ID
	}
	return charge, nil
}

func (r *StripeRail) RefundCharge(ctx context.Context, paymentIntentID string, amountPence int64, reason, idempotencyKey string) (string, error) {
	ctx, cancel := r.callCtx(ctx)
	defer cancel()

	params := &stripe.RefundParams{
		PaymentIntent:        stripe.String(paymentIntentID),
		ReverseTransfer:      stripe.Bool(true),
		RefundApplicationFee: stripe.Bool(true),
	}
	params.Context = ctx
	if amountPence > 0 {
		params.Amount = stripe.Int64(amountPence)
	}
	if reason != "" {
		params.AddMetadata("reason", reason)
	}
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}

	ref, err := r.api.Refunds.New(params)
	if err != nil {
		return "", railErr("refund_charge", err)
	}
	return ref.ID, nil
}

func (r *StripeRail) CreatePayout(ctx context.Context, p PayoutParams) (*PayoutState, error) {
	ctx, cancel := r.callCtx(ctx)
	defer cancel()

	method := p.Method
	if method == "" {
		method = "standard"
	}

	params := &stripe.PayoutParams{
		Amount:   stripe.Int64(p.AmountPence),
		Currency: stripe.String(string(stripe.CurrencyGBP)),
		Method:   stripe.String(method),
	}
	params.Context = ctx
	params.SetStripeAccount(p.SellerAccountID)
	if p.IdempotencyKey != "" {
		params.SetIdempotencyKey(p.IdempotencyKey)
	}

	po, err := r.api.Payouts.New(params)
	if err != nil {
		return nil, railErr("create_payout", err)
	}
	return payoutState(po), nil
}

func (r *StripeRail) GetPayout(ctx context.Context, sellerAccountID, payoutID string) (*PayoutState, error) {
	ctx, cancel := r.callCtx(ctx)
	defer cancel()

	params := &stripe.PayoutParams{}
	params.Context = ctx
	params.SetStripeAccount(sellerAccountID)

	po, err := r.api.Payouts.Get(payoutID, params)
	if err != nil {
		return nil, railErr("get_payout", err)
	}
	return payoutState(po), nil
}

func payoutState(po *stripe.Payout) *PayoutState {
	state := &PayoutState{
		PayoutID:       po.ID,
		FailureMessage: po.FailureMessage,
	}
	if po.ArrivalDate > 0 {
		state.ArrivalDate = time.Unix(po.ArrivalDate, 0)
	}
	switch po.Status {
	case stripe.PayoutStatusPaid:
		state.Status = PayoutStatusPaid
	case stripe.PayoutStatusInTransit:
		state.Status = PayoutStatusInTransit
	case stripe.PayoutStatusFailed, stripe.PayoutStatusCanceled:
		state.Status = PayoutStatusFailed
	default:
		state.Status = PayoutStatusPending
	}
	return state
}

// railErr classifies a stripe-go error. Timeouts, rate limits and 5xx
// responses are retryable; card/validation failures are not.
func railErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &RailError{Op: op, Retryable: true, Err: err}
	}

	var se *stripe.Error
	if errors.As(err, &se) {
		retryable := se.HTTPStatusCode >= 500 || se.HTTPStatusCode == 429
		return &RailError{Op: op, Retryable: retryable, Err: err}
	}

	// Network-level failure with no HTTP response: retryable.
	return &RailError{Op: op, Retryable: true, Err: err}
}
