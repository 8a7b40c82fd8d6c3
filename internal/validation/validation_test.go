package validation

import "testing"

func TestIsValidID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"ofr_1b2c3d", true},
		{"lst_abc", true},
		{"buyer-42", true},
		{"seller.7", true},
		{"a", true},
		{"", false},
		{"_leading", false},
		{"has space", false},
		{"semi;colon", false},
		{"../etc/passwd", false},
		{string(make([]byte, 200)), false},
	}

	for _, tt := range tests {
		if got := IsValidID(tt.id); got != tt.valid {
			t.Errorf("IsValidID(%q) = %v, want %v", tt.id, got, tt.valid)
		}
	}
}

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"  hello  ", 100, "hello"},
		{"toolong", 4, "tool"},
		{"null\x00byte", 100, "nullbyte"},
		{"", 100, ""},
	}

	for _, tt := range tests {
		if got := SanitizeString(tt.in, tt.maxLen); got != tt.want {
			t.Errorf("SanitizeString(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	errs := Validate(
		Required("buyerId", ""),
		Required("listingId", "lst_1"),
		ValidID("listingId", "lst_1"),
		PositivePence("amountPence", 0),
	)

	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %d: %v", len(errs), errs)
	}
	if errs[0].Field != "buyerId" {
		t.Errorf("first error field = %q, want buyerId", errs[0].Field)
	}
	if errs[1].Field != "amountPence" {
		t.Errorf("second error field = %q, want amountPence", errs[1].Field)
	}
}

func TestValidateAllPass(t *testing.T) {
	errs := Validate(
		Required("sellerId", "seller-1"),
		ValidID("sellerId", "seller-1"),
		PositivePence("pricePence", 5000),
		MaxLength("reason", "short", 100),
	)
	if len(errs) != 0 {
		t.Errorf("expected no errors, got %v", errs)
	}
}

func TestMaxLength(t *testing.T) {
	if err := MaxLength("note", string(make([]byte, 101)), 100)(); err == nil {
		t.Error("expected error for over-length value")
	}
	if err := MaxLength("note", "ok", 100)(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
