package wallet

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

var testPricing = Pricing{
	"/summarize/logs": "0.02",
	"/validate/csv":   "0.01",
}

func testIssuer(now time.Time) *Issuer {
	is := NewIssuer(testPricing, "0xPAY", 300*time.Second)
	is.Now = func() time.Time { return now }
	return is
}

func TestIssue_Fields(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	inv, err := testIssuer(now).Issue("/summarize/logs")
	if err != nil {
		t.Fatal(err)
	}
	if inv.Path != "/summarize/logs" || inv.Price != "0.02" || inv.PayTo != "0xPAY" {
		t.Errorf("unexpected terms: %+v", inv)
	}
	if inv.IssuedAt != "2025-06-01T12:00:00Z" {
		t.Errorf("issued_at = %s", inv.IssuedAt)
	}
	if inv.ExpiresAt != "2025-06-01T12:05:00Z" {
		t.Errorf("expires_at = %s", inv.ExpiresAt)
	}
	// 16 random bytes, hex encoded
	if len(inv.InvoiceID) != 32 || len(inv.Nonce) != 32 {
		t.Errorf("token lengths: invoice_id=%d nonce=%d", len(inv.InvoiceID), len(inv.Nonce))
	}
	if inv.Domain != Domain || inv.Asset != "local-usdc" || inv.Chain != "local" {
		t.Errorf("unexpected invoice metadata: %+v", inv)
	}
}

func TestIssue_UnknownRoute(t *testing.T) {
	_, err := testIssuer(time.Now()).Issue("/not/gated")
	if !errors.Is(err, ErrUnknownRoute) {
		t.Fatalf("expected ErrUnknownRoute, got %v", err)
	}
}

func TestIssue_FreshTokens(t *testing.T) {
	is := testIssuer(time.Now())
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		inv, err := is.Issue("/validate/csv")
		if err != nil {
			t.Fatal(err)
		}
		if seen[inv.InvoiceID] || seen[inv.Nonce] {
			t.Fatal("token collision")
		}
		seen[inv.InvoiceID] = true
		seen[inv.Nonce] = true
	}
}

func TestCanonicalMessage_Format(t *testing.T) {
	inv := Invoice{
		InvoiceID: "abc",
		Path:      "/summarize/logs",
		Price:     "0.02",
		PayTo:     "0xPAY",
		Nonce:     "n1",
		ExpiresAt: "2025-06-01T12:05:00Z",
	}
	want := "x402-local-wallet|invoice_id=abc|path=/summarize/logs|price=0.02|pay_to=0xPAY|nonce=n1|expires_at=2025-06-01T12:05:00Z"
	if got := CanonicalMessage(inv); got != want {
		t.Errorf("canonical message:\n got %q\nwant %q", got, want)
	}
}

// The canonical message must survive a round trip through the challenge
// response JSON byte for byte, or client signatures would never verify.
func TestCanonicalMessage_JSONRoundTrip(t *testing.T) {
	inv, err := testIssuer(time.Now()).Issue("/summarize/logs")
	if err != nil {
		t.Fatal(err)
	}
	before := CanonicalMessage(inv)

	b, err := json.Marshal(inv)
	if err != nil {
		t.Fatal(err)
	}
	var decoded Invoice
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatal(err)
	}
	if after := CanonicalMessage(decoded); after != before {
		t.Errorf("canonical message changed across JSON round trip:\n before %q\n after  %q", before, after)
	}
}

func TestPricing_PriceFor(t *testing.T) {
	price, err := testPricing.PriceFor("/validate/csv")
	if err != nil || price != "0.01" {
		t.Fatalf("got (%q, %v)", price, err)
	}
	if _, err := testPricing.PriceFor("/healthz"); !errors.Is(err, ErrUnknownRoute) {
		t.Fatalf("expected ErrUnknownRoute, got %v", err)
	}
}
