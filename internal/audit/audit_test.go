package audit

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/sagwira/reuni-engine/internal/pagination"
)

func TestRecord_UsesContextActor(t *testing.T) {
	rec := NewMemoryRecorder()
	ctx := WithActor(context.Background(), "admin", "admin_1")

	if err := Record(ctx, rec, ActionRefundTransaction, "txn_abc", "buyer never received ticket"); err != nil {
		t.Fatalf("record: %v", err)
	}

	actions := rec.Actions()
	if len(actions) != 1 {
		t.Fatalf("expected 1 action, got %d", len(actions))
	}
	a := actions[0]
	if a.ActorID != "admin_1" || a.ActorType != "admin" {
		t.Errorf("unexpected actor: %s/%s", a.ActorType, a.ActorID)
	}
	if a.Action != ActionRefundTransaction || a.TargetID != "txn_abc" {
		t.Errorf("unexpected action: %+v", a)
	}
	if a.ID == 0 {
		t.Error("expected assigned ID")
	}
}

func TestRecord_DefaultsToSystemActor(t *testing.T) {
	rec := NewMemoryRecorder()

	if err := Record(context.Background(), rec, ActionRetryPayout, "po_1", ""); err != nil {
		t.Fatalf("record: %v", err)
	}

	a := rec.Actions()[0]
	if a.ActorType != "system" {
		t.Errorf("expected system actor, got %s", a.ActorType)
	}
}

type failingRecorder struct{}

func (failingRecorder) Record(context.Context, *Action) error {
	return errors.New("disk full")
}
func (failingRecorder) Find(context.Context, Query) ([]*Action, error) { return nil, nil }

func TestRecord_WriteFailureIsFatal(t *testing.T) {
	err := Record(context.Background(), failingRecorder{}, ActionRetryPayout, "po_1", "")
	if !errors.Is(err, ErrWriteFailed) {
		t.Errorf("expected ErrWriteFailed, got %v", err)
	}
}

func TestFind_Filters(t *testing.T) {
	rec := NewMemoryRecorder()
	ctx := WithActor(context.Background(), "admin", "admin_1")

	_ = Record(ctx, rec, ActionRetryPayout, "po_1", "")
	_ = Record(ctx, rec, ActionRefundTransaction, "txn_1", "fraud")
	_ = Record(WithActor(context.Background(), "admin", "admin_2"), rec, ActionRetryPayout, "po_2", "")

	byActor, err := rec.Find(context.Background(), Query{ActorID: "admin_1"})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(byActor) != 2 {
		t.Errorf("expected 2 actions for admin_1, got %d", len(byActor))
	}

	byTarget, _ := rec.Find(context.Background(), Query{TargetID: "txn_1"})
	if len(byTarget) != 1 || byTarget[0].Action != ActionRefundTransaction {
		t.Errorf("unexpected target filter result: %+v", byTarget)
	}

	byAction, _ := rec.Find(context.Background(), Query{Action: ActionRetryPayout})
	if len(byAction) != 2 {
		t.Errorf("expected 2 retry_payout actions, got %d", len(byAction))
	}

	future, _ := rec.Find(context.Background(), Query{From: time.Now().Add(time.Hour)})
	if len(future) != 0 {
		t.Errorf("expected no actions in the future, got %d", len(future))
	}
}

func TestFind_NewestFirst(t *testing.T) {
	rec := NewMemoryRecorder()
	_ = Record(context.Background(), rec, ActionRetryPayout, "po_1", "")
	_ = Record(context.Background(), rec, ActionRetryPayout, "po_2", "")

	actions, _ := rec.Find(context.Background(), Query{})
	if len(actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(actions))
	}
	if actions[0].TargetID != "po_2" {
		t.Errorf("expected newest first, got %s", actions[0].TargetID)
	}
}

func TestFind_CursorPagination(t *testing.T) {
	rec := NewMemoryRecorder()
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		_ = rec.Record(context.Background(), &Action{
			ActorID:   "admin_1",
			ActorType: "admin",
			Action:    ActionRetryPayout,
			TargetID:  "po_" + string(rune('a'+i)),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}

	first, err := rec.Find(context.Background(), Query{Limit: 2})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(first))
	}
	if first[0].TargetID != "po_e" || first[1].TargetID != "po_d" {
		t.Fatalf("unexpected first page: %s, %s", first[0].TargetID, first[1].TargetID)
	}

	last := first[len(first)-1]
	cursor, err := pagination.Decode(pagination.Encode(last.CreatedAt, strconv.FormatInt(last.ID, 10)))
	if err != nil {
		t.Fatalf("decode cursor: %v", err)
	}

	second, err := rec.Find(context.Background(), Query{Limit: 2, Cursor: cursor})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(second) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(second))
	}
	if second[0].TargetID != "po_c" || second[1].TargetID != "po_b" {
		t.Errorf("unexpected second page: %s, %s", second[0].TargetID, second[1].TargetID)
	}
}
