package listings

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestListing(id string, qty int) *Listing {
	now := time.Now()
	return &Listing{
		ID:         id,
		SellerID:   "seller_1",
		EventName:  "Reading Festival",
		PricePence: 6000,
		Quantity:   qty,
		Status:     StatusAvailable,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestConsume_DecrementsAndSellsOut(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	if err := store.Create(ctx, newTestListing("lst_1", 2)); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := store.Consume(ctx, "lst_1"); err != nil {
		t.Fatalf("first consume: %v", err)
	}
	l, _ := store.Get(ctx, "lst_1")
	if l.Quantity != 1 || l.Status != StatusAvailable {
		t.Fatalf("after first consume: qty=%d status=%s", l.Quantity, l.Status)
	}

	if err := store.Consume(ctx, "lst_1"); err != nil {
		t.Fatalf("second consume: %v", err)
	}
	l, _ = store.Get(ctx, "lst_1")
	if l.Quantity != 0 || l.Status != StatusSold {
		t.Fatalf("last ticket should mark listing sold: qty=%d status=%s", l.Quantity, l.Status)
	}

	if err := store.Consume(ctx, "lst_1"); !errors.Is(err, ErrNotAvailable) {
		t.Fatalf("expected ErrNotAvailable on sold listing, got %v", err)
	}
}

func TestConsume_NotFound(t *testing.T) {
	store := NewMemoryStore()
	if err := store.Consume(context.Background(), "lst_missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestConsume_WithdrawnListing(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	l := newTestListing("lst_w", 3)
	l.Status = StatusWithdrawn
	_ = store.Create(ctx, l)

	if err := store.Consume(ctx, "lst_w"); !errors.Is(err, ErrNotAvailable) {
		t.Fatalf("expected ErrNotAvailable, got %v", err)
	}
}

func TestRestore_ReopensSoldListing(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_ = store.Create(ctx, newTestListing("lst_r", 1))

	if err := store.Consume(ctx, "lst_r"); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if err := store.Restore(ctx, "lst_r"); err != nil {
		t.Fatalf("restore: %v", err)
	}

	l, _ := store.Get(ctx, "lst_r")
	if l.Quantity != 1 || l.Status != StatusAvailable {
		t.Fatalf("restore should reopen the listing: qty=%d status=%s", l.Quantity, l.Status)
	}
}

func TestAvailable(t *testing.T) {
	l := newTestListing("lst_a", 1)
	if !l.Available() {
		t.Error("available listing with stock should report available")
	}
	l.Quantity = 0
	if l.Available() {
		t.Error("zero-quantity listing should not report available")
	}
	l.Quantity = 1
	l.Status = StatusWithdrawn
	if l.Available() {
		t.Error("withdrawn listing should not report available")
	}
}

func TestListBySeller_NewestFirstAndLimited(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		l := newTestListing("lst_"+string(rune('a'+i)), 1)
		l.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		_ = store.Create(ctx, l)
	}

	result, err := store.ListBySeller(ctx, "seller_1", 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("expected 2 listings, got %d", len(result))
	}
	if result[0].ID != "lst_c" {
		t.Errorf("expected newest first, got %s", result[0].ID)
	}
}
