package fees

import "testing"

func TestCompute_StandardSchedule(t *testing.T) {
	s := DefaultSchedule()

	// £100.00 ticket: 10% = £10.00, fee = £11.00, buyer pays £111.00.
	b, err := s.Compute(10000)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if b.PercentageFeePence != 1000 {
		t.Errorf("expected percentage fee 1000, got %d", b.PercentageFeePence)
	}
	if b.PlatformFeePence != 1100 {
		t.Errorf("expected platform fee 1100, got %d", b.PlatformFeePence)
	}
	if b.BuyerTotalPence != 11100 {
		t.Errorf("expected buyer total 11100, got %d", b.BuyerTotalPence)
	}
	if b.SellerPayoutPence != 10000 {
		t.Errorf("expected seller payout 10000, got %d", b.SellerPayoutPence)
	}
}

func TestCompute_RoundsHalfUp(t *testing.T) {
	s := DefaultSchedule()

	// £0.05 → 10% = 0.5p → rounds up to 1p.
	b, err := s.Compute(5)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if b.PercentageFeePence != 1 {
		t.Errorf("expected 0.5p to round up to 1, got %d", b.PercentageFeePence)
	}

	// £0.04 → 10% = 0.4p → rounds down to 0p.
	b, err = s.Compute(4)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if b.PercentageFeePence != 0 {
		t.Errorf("expected 0.4p to round down to 0, got %d", b.PercentageFeePence)
	}
}

func TestCompute_SplitAlwaysBalances(t *testing.T) {
	s := DefaultSchedule()
	for _, price := range []int64{0, 1, 49, 99, 101, 2500, 6000, 9999, 123456} {
		b, err := s.Compute(price)
		if err != nil {
			t.Fatalf("compute(%d): %v", price, err)
		}
		if b.BuyerTotalPence != b.PricePence+b.PlatformFeePence {
			t.Errorf("price %d: buyer total %d != price+fee %d",
				price, b.BuyerTotalPence, b.PricePence+b.PlatformFeePence)
		}
		if b.PlatformFeePence != b.FlatFeePence+b.PercentageFeePence {
			t.Errorf("price %d: fee components do not sum", price)
		}
	}
}

func TestCompute_NegativePrice(t *testing.T) {
	if _, err := DefaultSchedule().Compute(-1); err != ErrNegativePrice {
		t.Errorf("expected ErrNegativePrice, got %v", err)
	}
}

func TestOfferBounds(t *testing.T) {
	// £100 listing: floor £50, ceiling £110.
	if got := MinOffer(10000); got != 5000 {
		t.Errorf("expected min offer 5000, got %d", got)
	}
	if got := MaxOffer(10000); got != 11000 {
		t.Errorf("expected max offer 11000, got %d", got)
	}

	// Odd pence round half-up.
	if got := MinOffer(101); got != 51 {
		t.Errorf("expected min offer 51, got %d", got)
	}
}

func TestFormatGBP(t *testing.T) {
	cases := map[int64]string{
		0:     "£0.00",
		5:     "£0.05",
		5300:  "£53.00",
		11100: "£111.00",
		-250:  "-£2.50",
	}
	for pence, want := range cases {
		if got := FormatGBP(pence); got != want {
			t.Errorf("FormatGBP(%d) = %s, want %s", pence, got, want)
		}
	}
}
