package payments

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sagwira/reuni-engine/internal/idgen"
)

// FakeRail is an in-memory Rail for demo mode and tests. It honours
// idempotency keys the way the real rail does: replaying a key returns
// the original result instead of moving money twice.
type FakeRail struct {
	mu sync.Mutex

	charges map[string]*Charge      // idempotency key → charge
	payouts map[string]*PayoutState // idempotency key → payout
	byID    map[string]*PayoutState // payout ID → payout
	refunds map[string]string       // idempotency key → refund ID

	// FailCharges / FailPayouts force the next calls to fail.
	FailCharges int
	FailPayouts int

	// PayoutStatus is the status assigned to new payouts
	// (default in_transit).
	PayoutStatus string

	ChargeCalls int
	PayoutCalls int
	RefundCalls int
}

// NewFakeRail creates a fake payment rail.
func NewFakeRail() *FakeRail {
	return &FakeRail{
		charges: make(map[string]*Charge),
		payouts: make(map[string]*PayoutState),
		byID:    make(map[string]*PayoutState),
		refunds: make(map[string]string),
	}
}

func (f *FakeRail) ConfirmCharge(_ context.Context, p ChargeParams) (*Charge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ChargeCalls++

	if c, ok := f.charges[p.IdempotencyKey]; ok && p.IdempotencyKey != "" {
		cp := *c
		return &cp, nil
	}
	if f.FailCharges > 0 {
		f.FailCharges--
		return nil, &RailError{Op: "confirm_charge", Retryable: true, Err: errors.New("rail unavailable")}
	}

	c := &Charge{
		PaymentIntentID: idgen.WithPrefix("pi_"),
		TransferID:      idgen.WithPrefix("tr_"),
	}
	if p.IdempotencyKey != "" {
		f.charges[p.IdempotencyKey] = c
	}
	cp := *c
	return &cp, nil
}

func (f *FakeRail) RefundCharge(_ context.Context, paymentIntentID string, _ int64, _ string, idempotencyKey string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RefundCalls++

	if id, ok := f.refunds[idempotencyKey]; ok && idempotencyKey != "" {
		return id, nil
	}
	if paymentIntentID == "" {
		return "", &RailError{Op: "refund_charge", Retryable: false, Err: errors.New("unknown payment intent")}
	}

	id := idgen.WithPrefix("re_")
	if idempotencyKey != "" {
		f.refunds[idempotencyKey] = id
	}
	return id, nil
}

func (f *FakeRail) CreatePayout(_ context.Context, p PayoutParams) (*PayoutState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PayoutCalls++

	if st, ok := f.payouts[p.IdempotencyKey]; ok && p.IdempotencyKey != "" {
		cp := *st
		return &cp, nil
	}
	if f.FailPayouts > 0 {
		f.FailPayouts--
		return nil, &RailError{Op: "create_payout", Retryable: true, Err: errors.New("rail unavailable")}
	}

	status := f.PayoutStatus
	if status == "" {
		status = PayoutStatusInTransit
	}
	st := &PayoutState{
		PayoutID:    idgen.WithPrefix("fpo_"),
		Status:      status,
		ArrivalDate: time.Now().Add(48 * time.Hour),
	}
	if p.IdempotencyKey != "" {
		f.payouts[p.IdempotencyKey] = st
	}
	f.byID[st.PayoutID] = st
	cp := *st
	return &cp, nil
}

func (f *FakeRail) GetPayout(_ context.Context, _, payoutID string) (*PayoutState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	st, ok := f.byID[payoutID]
	if !ok {
		return nil, &RailError{Op: "get_payout", Retryable: false, Err: errors.New("payout not found")}
	}
	cp := *st
	return &cp, nil
}

// SettlePayout marks a fake payout as paid (for tests and demo mode).
func (f *FakeRail) SettlePayout(payoutID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st, ok := f.byID[payoutID]; ok {
		st.Status = PayoutStatusPaid
	}
}
