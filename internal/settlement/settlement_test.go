package settlement

import (
	"context"
	"errors"
	"testing"

	"github.com/sagwira/reuni-engine/internal/audit"
	"github.com/sagwira/reuni-engine/internal/fees"
	"github.com/sagwira/reuni-engine/internal/listings"
	"github.com/sagwira/reuni-engine/internal/offers"
	"github.com/sagwira/reuni-engine/internal/payments"
)

type testEnv struct {
	svc  *Service
	rail *payments.FakeRail
	ls   *listings.MemoryStore
	rec  *audit.MemoryRecorder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	rail := payments.NewFakeRail()
	ls := listings.NewMemoryStore()
	rec := audit.NewMemoryRecorder()
	svc := NewService(NewMemoryStore(), ls, rail, fees.DefaultSchedule(), rec, nil)
	return &testEnv{svc: svc, rail: rail, ls: ls, rec: rec}
}

func seedListing(t *testing.T, ls *listings.MemoryStore, sellerID string, pricePence int64, qty int) *listings.Listing {
	t.Helper()
	l := listings.NewListing(sellerID, "Reunion Tour", pricePence, qty)
	if err := ls.Create(context.Background(), l); err != nil {
		t.Fatalf("seed listing: %v", err)
	}
	return l
}

func acceptedOffer(listingID string, amountPence int64) *offers.Offer {
	return &offers.Offer{
		ID:                 "ofr_test",
		ListingID:          listingID,
		BuyerID:            "buyer-1",
		SellerID:           "seller-1",
		AmountPence:        amountPence,
		OriginalPricePence: 10000,
		Status:             offers.StatusAccepted,
	}
}

// A £60 accepted offer settles as fee £7 (£1 flat + 10%), buyer charged
// £67 gross, seller payout £60.
func TestSettleOffer_FeeSplit(t *testing.T) {
	env := newTestEnv(t)
	l := seedListing(t, env.ls, "seller-1", 10000, 1)

	txnID, err := env.svc.SettleOffer(context.Background(), acceptedOffer(l.ID, 6000))
	if err != nil {
		t.Fatalf("settle: %v", err)
	}

	txn, err := env.svc.Get(context.Background(), txnID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if txn.AmountPence != 6700 {
		t.Errorf("expected gross 6700, got %d", txn.AmountPence)
	}
	if txn.PlatformFeePence != 700 {
		t.Errorf("expected fee 700, got %d", txn.PlatformFeePence)
	}
	if txn.SellerPayoutPence != 6000 {
		t.Errorf("expected payout 6000, got %d", txn.SellerPayoutPence)
	}
	if txn.SellerPayoutPence+txn.PlatformFeePence != txn.AmountPence {
		t.Error("payout + fee must equal amount")
	}
	if txn.Status != StatusCompleted || txn.CompletedAt == nil {
		t.Errorf("expected completed, got %s", txn.Status)
	}
	if txn.PaymentIntentID == "" || txn.TransferID == "" {
		t.Error("rail references not attached")
	}

	// Inventory consumed: single-ticket listing is now sold.
	got, _ := env.ls.Get(context.Background(), l.ID)
	if got.Status != listings.StatusSold {
		t.Errorf("expected listing sold, got %s", got.Status)
	}
}

func TestSettleOffer_RejectsNonAccepted(t *testing.T) {
	env := newTestEnv(t)
	l := seedListing(t, env.ls, "seller-1", 10000, 1)

	o := acceptedOffer(l.ID, 6000)
	o.Status = offers.StatusPending
	if _, err := env.svc.SettleOffer(context.Background(), o); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
	if env.rail.ChargeCalls != 0 {
		t.Error("no charge should be attempted for a non-accepted offer")
	}
}

func TestSettle_RailFailureLeavesNoRecord(t *testing.T) {
	env := newTestEnv(t)
	l := seedListing(t, env.ls, "seller-1", 10000, 1)
	env.rail.FailCharges = 1

	_, err := env.svc.SettleOffer(context.Background(), acceptedOffer(l.ID, 6000))
	if err == nil {
		t.Fatal("expected settlement failure")
	}
	var railErr *payments.RailError
	if !errors.As(err, &railErr) {
		t.Errorf("expected rail error, got %v", err)
	}

	// Inventory untouched, no transaction created.
	got, _ := env.ls.Get(context.Background(), l.ID)
	if got.Quantity != 1 || got.Status != listings.StatusAvailable {
		t.Errorf("inventory must be untouched, got qty=%d status=%s", got.Quantity, got.Status)
	}
	if env.rail.RefundCalls != 0 {
		t.Error("nothing to refund when the charge never happened")
	}
}

func TestSettle_ConsumeFailureReversesCharge(t *testing.T) {
	env := newTestEnv(t)
	l := seedListing(t, env.ls, "seller-1", 10000, 1)

	// Sell the only ticket out from under the settlement.
	if err := env.ls.Consume(context.Background(), l.ID); err != nil {
		t.Fatalf("consume: %v", err)
	}

	_, err := env.svc.SettleOffer(context.Background(), acceptedOffer(l.ID, 6000))
	if err == nil {
		t.Fatal("expected settlement failure")
	}
	if env.rail.ChargeCalls != 1 {
		t.Errorf("expected 1 charge attempt, got %d", env.rail.ChargeCalls)
	}
	if env.rail.RefundCalls != 1 {
		t.Errorf("charge must be reversed after consume failure, got %d refunds", env.rail.RefundCalls)
	}
}

func TestSettleOffer_RetrySameOfferChargesOnce(t *testing.T) {
	env := newTestEnv(t)
	l := seedListing(t, env.ls, "seller-1", 10000, 2)
	o := acceptedOffer(l.ID, 6000)

	id1, err := env.svc.SettleOffer(context.Background(), o)
	if err != nil {
		t.Fatalf("first settle: %v", err)
	}
	id2, err := env.svc.SettleOffer(context.Background(), o)
	if err != nil {
		t.Fatalf("second settle: %v", err)
	}

	// The rail saw two calls but honoured the idempotency key, so both
	// settlements reference the same confirmed charge.
	if env.rail.ChargeCalls != 2 {
		t.Errorf("expected 2 charge calls, got %d", env.rail.ChargeCalls)
	}
	t1, _ := env.svc.Get(context.Background(), id1)
	t2, _ := env.svc.Get(context.Background(), id2)
	if t1.PaymentIntentID != t2.PaymentIntentID {
		t.Errorf("retried settlement must reuse the original charge: %s vs %s",
			t1.PaymentIntentID, t2.PaymentIntentID)
	}
}

func TestPurchase_DirectBuyAtListedPrice(t *testing.T) {
	env := newTestEnv(t)
	l := seedListing(t, env.ls, "seller-1", 4500, 1) // £45

	txn, err := env.svc.Purchase(context.Background(), l.ID, "buyer-1", "pm_card")
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	// £45 → fee £1 + £4.50 = £5.50, gross £50.50.
	if txn.PlatformFeePence != 550 {
		t.Errorf("expected fee 550, got %d", txn.PlatformFeePence)
	}
	if txn.AmountPence != 5050 {
		t.Errorf("expected gross 5050, got %d", txn.AmountPence)
	}
	if txn.SellerPayoutPence != 4500 {
		t.Errorf("expected payout 4500, got %d", txn.SellerPayoutPence)
	}
}

func TestPurchase_Guards(t *testing.T) {
	env := newTestEnv(t)
	l := seedListing(t, env.ls, "seller-1", 4500, 1)

	if _, err := env.svc.Purchase(context.Background(), l.ID, "seller-1", ""); err == nil {
		t.Error("seller must not buy their own listing")
	}
	if _, err := env.svc.Purchase(context.Background(), "lst_nope", "buyer-1", ""); !errors.Is(err, listings.ErrNotFound) {
		t.Errorf("expected listings.ErrNotFound, got %v", err)
	}
}

func TestRefund(t *testing.T) {
	env := newTestEnv(t)
	l := seedListing(t, env.ls, "seller-1", 10000, 1)
	txnID, err := env.svc.SettleOffer(context.Background(), acceptedOffer(l.ID, 6000))
	if err != nil {
		t.Fatalf("settle: %v", err)
	}

	ctx := audit.WithActor(context.Background(), "admin", "admin-1")
	txn, err := env.svc.Refund(ctx, txnID, "fake ticket")
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if txn.Status != StatusRefunded || txn.RefundedAt == nil {
		t.Errorf("expected refunded, got %s", txn.Status)
	}
	if txn.RefundReason != "fake ticket" {
		t.Errorf("reason not recorded: %q", txn.RefundReason)
	}

	// Amounts are immutable through the refund.
	if txn.AmountPence != 6700 || txn.PlatformFeePence != 700 {
		t.Error("refund must not rewrite amounts")
	}

	// The privileged action is audited.
	actions := env.rec.Actions()
	if len(actions) != 1 || actions[0].Action != audit.ActionRefundTransaction {
		t.Fatalf("expected one refund audit action, got %+v", actions)
	}
	if actions[0].ActorID != "admin-1" {
		t.Errorf("expected actor admin-1, got %s", actions[0].ActorID)
	}

	// A second refund conflicts.
	if _, err := env.svc.Refund(ctx, txnID, "again"); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict on double refund, got %v", err)
	}
}

type failingRecorder struct{}

func (failingRecorder) Record(context.Context, *audit.Action) error {
	return errors.New("audit store down")
}
func (failingRecorder) Find(context.Context, audit.Query) ([]*audit.Action, error) {
	return nil, nil
}

func TestRefund_AuditFailureAbortsRefund(t *testing.T) {
	rail := payments.NewFakeRail()
	ls := listings.NewMemoryStore()
	svc := NewService(NewMemoryStore(), ls, rail, fees.DefaultSchedule(), failingRecorder{}, nil)

	l := seedListing(t, ls, "seller-1", 10000, 1)
	txnID, err := svc.SettleOffer(context.Background(), acceptedOffer(l.ID, 6000))
	if err != nil {
		t.Fatalf("settle: %v", err)
	}

	_, err = svc.Refund(context.Background(), txnID, "reason")
	if !errors.Is(err, audit.ErrWriteFailed) {
		t.Fatalf("expected audit.ErrWriteFailed, got %v", err)
	}

	// The transaction is untouched and no money moved.
	txn, _ := svc.Get(context.Background(), txnID)
	if txn.Status != StatusCompleted {
		t.Errorf("transaction must stay completed, got %s", txn.Status)
	}
	if rail.RefundCalls != 0 {
		t.Error("rail must not be called when the audit write fails")
	}
}

func TestMarkDisputedAndClear(t *testing.T) {
	env := newTestEnv(t)
	l := seedListing(t, env.ls, "seller-1", 10000, 1)
	txnID, _ := env.svc.SettleOffer(context.Background(), acceptedOffer(l.ID, 6000))

	txn, err := env.svc.MarkDisputed(context.Background(), txnID)
	if err != nil {
		t.Fatalf("mark disputed: %v", err)
	}
	if txn.Status != StatusDisputed {
		t.Errorf("expected disputed, got %s", txn.Status)
	}

	// Disputed transactions are still refundable.
	ctx := audit.WithActor(context.Background(), "admin", "admin-1")
	refunded, err := env.svc.Refund(ctx, txnID, "fake ticket")
	if err != nil {
		t.Fatalf("refund disputed: %v", err)
	}
	if refunded.Status != StatusRefunded {
		t.Errorf("expected refunded, got %s", refunded.Status)
	}

	// And a dispute on a refunded transaction cannot be re-flagged.
	if _, err := env.svc.MarkDisputed(context.Background(), txnID); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

type recordingPayouts struct {
	calls  int
	seller string
	amount int64
}

func (r *recordingPayouts) CreateForTransaction(_ context.Context, sellerID, _ string, amountPence int64) (string, error) {
	r.calls++
	r.seller = sellerID
	r.amount = amountPence
	return "po_test", nil
}

func TestSettle_OpensPayout(t *testing.T) {
	env := newTestEnv(t)
	pc := &recordingPayouts{}
	env.svc.WithPayouts(pc)

	l := seedListing(t, env.ls, "seller-1", 10000, 1)
	if _, err := env.svc.SettleOffer(context.Background(), acceptedOffer(l.ID, 6000)); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if pc.calls != 1 {
		t.Fatalf("expected 1 payout, got %d", pc.calls)
	}
	if pc.seller != "seller-1" || pc.amount != 6000 {
		t.Errorf("payout for wrong seller/amount: %s %d", pc.seller, pc.amount)
	}
}
