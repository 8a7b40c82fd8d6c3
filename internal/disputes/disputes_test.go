package disputes

import (
	"context"
	"errors"
	"testing"

	"github.com/sagwira/reuni-engine/internal/audit"
	"github.com/sagwira/reuni-engine/internal/fees"
	"github.com/sagwira/reuni-engine/internal/listings"
	"github.com/sagwira/reuni-engine/internal/offers"
	"github.com/sagwira/reuni-engine/internal/payments"
	"github.com/sagwira/reuni-engine/internal/settlement"
)

type testEnv struct {
	svc  *Service
	stl  *settlement.Service
	rec  *audit.MemoryRecorder
	rail *payments.FakeRail
	ls   *listings.MemoryStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	rail := payments.NewFakeRail()
	ls := listings.NewMemoryStore()
	rec := audit.NewMemoryRecorder()
	stl := settlement.NewService(settlement.NewMemoryStore(), ls, rail, fees.DefaultSchedule(), rec, nil)
	svc := NewService(NewMemoryStore(), stl, rec, nil).WithRefunder(stl)
	return &testEnv{svc: svc, stl: stl, rec: rec, rail: rail, ls: ls}
}

// settleSale produces a completed transaction between buyer-1 and
// seller-1 with the default £100 listing.
func settleSale(t *testing.T, env *testEnv) string {
	t.Helper()
	l := listings.NewListing("seller-1", "Reunion Tour", 10000, 1)
	if err := env.ls.Create(context.Background(), l); err != nil {
		t.Fatalf("seed listing: %v", err)
	}
	o := &offers.Offer{
		ID: "ofr_test", ListingID: l.ID, BuyerID: "buyer-1", SellerID: "seller-1",
		AmountPence: 6000, OriginalPricePence: 10000, Status: offers.StatusAccepted,
	}
	txnID, err := env.stl.SettleOffer(context.Background(), o)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	return txnID
}

func TestFile(t *testing.T) {
	env := newTestEnv(t)
	txnID := settleSale(t, env)

	d, err := env.svc.File(context.Background(), txnID, "buyer-1", TypeFakeTicket, "barcode did not scan")
	if err != nil {
		t.Fatalf("file: %v", err)
	}
	if d.Status != StatusOpen {
		t.Errorf("expected open, got %s", d.Status)
	}
	if d.Priority != PriorityUrgent {
		t.Errorf("fake_ticket must be urgent, got %s", d.Priority)
	}
	if d.ReportedUserID != "seller-1" {
		t.Errorf("reported user must be the other party, got %s", d.ReportedUserID)
	}

	// The transaction is flagged while the dispute is open.
	txn, _ := env.stl.Get(context.Background(), txnID)
	if txn.Status != settlement.StatusDisputed {
		t.Errorf("expected disputed transaction, got %s", txn.Status)
	}
}

func TestFile_Guards(t *testing.T) {
	env := newTestEnv(t)
	txnID := settleSale(t, env)

	// Strangers cannot file.
	if _, err := env.svc.File(context.Background(), txnID, "rando", TypeOther, ""); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}

	// Unknown dispute type.
	if _, err := env.svc.File(context.Background(), txnID, "buyer-1", Type("bad_vibes"), ""); !errors.Is(err, ErrInvalidType) {
		t.Errorf("expected ErrInvalidType, got %v", err)
	}

	// Unknown transaction.
	if _, err := env.svc.File(context.Background(), "txn_nope", "buyer-1", TypeOther, ""); !errors.Is(err, settlement.ErrNotFound) {
		t.Errorf("expected settlement.ErrNotFound, got %v", err)
	}
}

func TestFile_OneOpenDisputePerTransaction(t *testing.T) {
	env := newTestEnv(t)
	txnID := settleSale(t, env)

	first, err := env.svc.File(context.Background(), txnID, "buyer-1", TypeWrongTicket, "wrong seat block")
	if err != nil {
		t.Fatalf("file: %v", err)
	}

	// A second complaint joins the existing case, it does not open a new one.
	if _, err := env.svc.File(context.Background(), txnID, "buyer-1", TypeOther, "still wrong"); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if _, err := env.svc.File(context.Background(), txnID, "seller-1", TypeOther, "buyer abusive"); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for the other party too, got %v", err)
	}

	all, _ := env.svc.ListByTransaction(context.Background(), txnID)
	if len(all) != 1 {
		t.Fatalf("expected 1 dispute on the transaction, got %d", len(all))
	}

	// Once the case is terminal a fresh dispute may be filed.
	if _, err := env.svc.Close(context.Background(), first.ID); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := env.svc.File(context.Background(), txnID, "buyer-1", TypeSellerUnresponsive, "no reply since"); err != nil {
		t.Fatalf("file after terminal dispute: %v", err)
	}
}

func TestFile_RejectsRefundedTransaction(t *testing.T) {
	env := newTestEnv(t)
	txnID := settleSale(t, env)

	if _, err := env.stl.Refund(context.Background(), txnID, "event cancelled"); err != nil {
		t.Fatalf("refund: %v", err)
	}

	_, err := env.svc.File(context.Background(), txnID, "buyer-1", TypeCancelledEvent, "already refunded")
	if !errors.Is(err, ErrNotDisputable) {
		t.Fatalf("expected ErrNotDisputable, got %v", err)
	}

	all, _ := env.svc.ListByTransaction(context.Background(), txnID)
	if len(all) != 0 {
		t.Fatalf("no dispute should exist on a refunded transaction, got %d", len(all))
	}
}

func TestPriorityMapping(t *testing.T) {
	cases := map[Type]Priority{
		TypeFakeTicket:            PriorityUrgent,
		TypeReusedTicket:          PriorityUrgent,
		TypeTicketRejectedAtVenue: PriorityUrgent,
		TypeInvalidBarcode:        PriorityHigh,
		TypeWrongTicket:           PriorityHigh,
		TypeSellerUnresponsive:    PriorityMedium,
		TypeCancelledEvent:        PriorityMedium,
		TypeOther:                 PriorityLow,
	}
	for dtype, want := range cases {
		got, ok := PriorityFor(dtype)
		if !ok || got != want {
			t.Errorf("PriorityFor(%s) = %s, want %s", dtype, got, want)
		}
	}
}

func TestResolve_RequiresResolutionText(t *testing.T) {
	env := newTestEnv(t)
	txnID := settleSale(t, env)
	d, _ := env.svc.File(context.Background(), txnID, "buyer-1", TypeWrongTicket, "")

	if _, err := env.svc.Resolve(context.Background(), d.ID, "", false); !errors.Is(err, ErrEmptyResolution) {
		t.Errorf("expected ErrEmptyResolution, got %v", err)
	}
	if _, err := env.svc.Resolve(context.Background(), d.ID, "   ", false); !errors.Is(err, ErrEmptyResolution) {
		t.Errorf("expected ErrEmptyResolution for whitespace, got %v", err)
	}

	// The dispute is untouched.
	got, _ := env.svc.Get(context.Background(), d.ID)
	if got.Status != StatusOpen {
		t.Errorf("dispute must stay open, got %s", got.Status)
	}
}

func TestResolve_WithoutRefundClearsFlag(t *testing.T) {
	env := newTestEnv(t)
	txnID := settleSale(t, env)
	d, _ := env.svc.File(context.Background(), txnID, "buyer-1", TypeSellerUnresponsive, "")

	resolved, err := env.svc.Resolve(context.Background(), d.ID, "seller responded, ticket delivered", false)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Status != StatusResolved || resolved.ResolvedAt == nil {
		t.Errorf("resolve not recorded: %s", resolved.Status)
	}
	if resolved.Resolution == "" {
		t.Error("resolution text not recorded")
	}

	txn, _ := env.stl.Get(context.Background(), txnID)
	if txn.Status != settlement.StatusCompleted {
		t.Errorf("transaction must return to completed, got %s", txn.Status)
	}

	// Terminal: no way out of resolved.
	if _, err := env.svc.Close(context.Background(), d.ID); !errors.Is(err, ErrTerminal) {
		t.Errorf("expected ErrTerminal, got %v", err)
	}
}

func TestClose_NoResolutionRequired(t *testing.T) {
	env := newTestEnv(t)
	txnID := settleSale(t, env)
	d, _ := env.svc.File(context.Background(), txnID, "seller-1", TypeOther, "buyer abusive")

	closed, err := env.svc.Close(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.Status != StatusClosed || closed.ResolvedAt == nil {
		t.Errorf("close not recorded: %s", closed.Status)
	}
	if closed.Resolution != "" {
		t.Errorf("close must not require resolution text, got %q", closed.Resolution)
	}
}

// End to end: report, investigate, resolve with refund. The transaction
// ends refunded and the audit log holds one entry for the dispute
// resolution and one for the refund.
func TestResolveWithRefund_EndToEnd(t *testing.T) {
	env := newTestEnv(t)
	txnID := settleSale(t, env)

	d, err := env.svc.File(context.Background(), txnID, "buyer-1", TypeFakeTicket, "ticket was a screenshot")
	if err != nil {
		t.Fatalf("file: %v", err)
	}

	ctx := audit.WithActor(context.Background(), "admin", "admin-1")

	investigating, err := env.svc.Investigate(ctx, d.ID)
	if err != nil {
		t.Fatalf("investigate: %v", err)
	}
	if investigating.Status != StatusInvestigating {
		t.Errorf("expected investigating, got %s", investigating.Status)
	}

	resolved, err := env.svc.Resolve(ctx, d.ID, "confirmed fake, refunding buyer", true)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Status != StatusResolved {
		t.Errorf("expected resolved, got %s", resolved.Status)
	}

	txn, _ := env.stl.Get(context.Background(), txnID)
	if txn.Status != settlement.StatusRefunded {
		t.Errorf("expected refunded transaction, got %s", txn.Status)
	}

	var resolveActions, refundActions int
	for _, a := range env.rec.Actions() {
		switch a.Action {
		case audit.ActionResolveDispute:
			resolveActions++
		case audit.ActionRefundTransaction:
			refundActions++
		}
	}
	if resolveActions != 1 || refundActions != 1 {
		t.Errorf("expected one resolve and one refund audit action, got %d/%d",
			resolveActions, refundActions)
	}
}

func TestInvestigate_AuditFailureAborts(t *testing.T) {
	env := newTestEnv(t)
	txnID := settleSale(t, env)
	d, _ := env.svc.File(context.Background(), txnID, "buyer-1", TypeOther, "")

	svc := NewService(env.svc.store, env.stl, failingRecorder{}, nil)
	if _, err := svc.Investigate(context.Background(), d.ID); !errors.Is(err, audit.ErrWriteFailed) {
		t.Fatalf("expected audit.ErrWriteFailed, got %v", err)
	}

	got, _ := env.svc.Get(context.Background(), d.ID)
	if got.Status != StatusOpen {
		t.Errorf("dispute must stay open when the audit write fails, got %s", got.Status)
	}
}

type failingRecorder struct{}

func (failingRecorder) Record(context.Context, *audit.Action) error {
	return errors.New("audit store down")
}
func (failingRecorder) Find(context.Context, audit.Query) ([]*audit.Action, error) {
	return nil, nil
}

func TestQueueOrdering(t *testing.T) {
	env := newTestEnv(t)

	store := NewMemoryStore()
	low := newDispute("txn_1", "u1", "u2", TypeOther, "")
	urgent := newDispute("txn_2", "u1", "u2", TypeFakeTicket, "")
	medium := newDispute("txn_3", "u1", "u2", TypeCancelledEvent, "")
	for _, d := range []*Dispute{low, urgent, medium} {
		if err := store.Create(context.Background(), d); err != nil {
			t.Fatal(err)
		}
	}

	svc := NewService(store, env.stl, env.rec, nil)
	queue, err := svc.ListByStatus(context.Background(), StatusOpen, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(queue) != 3 {
		t.Fatalf("expected 3 disputes, got %d", len(queue))
	}
	if queue[0].ID != urgent.ID || queue[1].ID != medium.ID || queue[2].ID != low.ID {
		t.Errorf("queue must order urgent first: %s %s %s",
			queue[0].Priority, queue[1].Priority, queue[2].Priority)
	}
}
