package wallet

import (
	"context"
	"encoding/hex"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
)

func testVerifier() *Verifier {
	return NewVerifier(testPricing, "0xPAY", NewMemoryLedger())
}

func issueAt(t *testing.T, path string, now time.Time) Invoice {
	t.Helper()
	inv, err := testIssuer(now).Issue(path)
	if err != nil {
		t.Fatal(err)
	}
	return inv
}

// signProof builds a valid proof over inv with a fresh key.
func signProof(t *testing.T, inv Invoice) Proof {
	t.Helper()
	priv, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	sig, err := crypto.Sign(HashMessage([]byte(CanonicalMessage(inv))), priv)
	if err != nil {
		t.Fatal(err)
	}
	sig[64] += 27
	return Proof{
		Invoice:   inv,
		Payer:     crypto.PubkeyToAddress(priv.PublicKey).Hex(),
		Signature: "0x" + hex.EncodeToString(sig),
	}
}

func TestVerify_AcceptedThenReplayed(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	v := testVerifier()
	proof := signProof(t, issueAt(t, "/summarize/logs", now))

	payer, reason := v.Verify(context.Background(), proof, "/summarize/logs", now.Add(10*time.Second))
	if reason != ReasonNone {
		t.Fatalf("expected accept, got %s", reason)
	}
	if !strings.EqualFold(payer, proof.Payer) {
		t.Errorf("payer = %s, want %s", payer, proof.Payer)
	}

	_, reason = v.Verify(context.Background(), proof, "/summarize/logs", now.Add(20*time.Second))
	if reason != ReasonReplayed {
		t.Fatalf("expected Replayed, got %q", reason)
	}
}

func TestVerify_PathMismatch(t *testing.T) {
	now := time.Now()
	v := testVerifier()
	proof := signProof(t, issueAt(t, "/summarize/logs", now))

	_, reason := v.Verify(context.Background(), proof, "/validate/csv", now)
	if reason != ReasonPathMismatch {
		t.Fatalf("expected PathMismatch, got %q", reason)
	}
}

func TestVerify_TermsMismatch(t *testing.T) {
	now := time.Now()
	v := testVerifier()

	// An invoice for the cheaper route, path rewritten to the pricier
	// one and re-signed: path matches but price does not.
	inv := issueAt(t, "/validate/csv", now)
	inv.Path = "/summarize/logs"
	proof := signProof(t, inv)
	_, reason := v.Verify(context.Background(), proof, "/summarize/logs", now)
	if reason != ReasonTermsMismatch {
		t.Fatalf("wrong price: expected TermsMismatch, got %q", reason)
	}

	// Stale pay-to.
	inv2 := issueAt(t, "/summarize/logs", now)
	inv2.PayTo = "0xOLDPAY"
	proof2 := signProof(t, inv2)
	_, reason = v.Verify(context.Background(), proof2, "/summarize/logs", now)
	if reason != ReasonTermsMismatch {
		t.Fatalf("wrong pay_to: expected TermsMismatch, got %q", reason)
	}
}

func TestVerify_Expired(t *testing.T) {
	issued := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	v := testVerifier()
	proof := signProof(t, issueAt(t, "/summarize/logs", issued))

	// Correctly signed but past expires_at (TTL 300s, submitted at +400s).
	_, reason := v.Verify(context.Background(), proof, "/summarize/logs", issued.Add(400*time.Second))
	if reason != ReasonExpired {
		t.Fatalf("expected Expired, got %q", reason)
	}
}

// Tampering with any invoice field without re-signing must fail
// signature recovery, not some later check.
func TestVerify_TamperedInvoice(t *testing.T) {
	now := time.Now()
	v := testVerifier()

	proof := signProof(t, issueAt(t, "/summarize/logs", now))
	proof.Invoice.Nonce = "someone-elses-nonce"

	_, reason := v.Verify(context.Background(), proof, "/summarize/logs", now)
	if reason != ReasonInvalidSignature {
		t.Fatalf("expected InvalidSignature, got %q", reason)
	}
}

func TestVerify_WrongPayerClaim(t *testing.T) {
	now := time.Now()
	v := testVerifier()

	proof := signProof(t, issueAt(t, "/summarize/logs", now))
	proof.Payer = "0x000000000000000000000000000000000000dEaD"

	_, reason := v.Verify(context.Background(), proof, "/summarize/logs", now)
	if reason != ReasonInvalidSignature {
		t.Fatalf("expected InvalidSignature, got %q", reason)
	}
}

// A rejection from checks 1-4 must not consume the nonce: the same
// invoice is still redeemable once the client fixes its mistake.
func TestVerify_RejectionDoesNotConsumeNonce(t *testing.T) {
	now := time.Now()
	v := testVerifier()
	proof := signProof(t, issueAt(t, "/summarize/logs", now))

	if _, reason := v.Verify(context.Background(), proof, "/validate/csv", now); reason != ReasonPathMismatch {
		t.Fatalf("setup: expected PathMismatch, got %q", reason)
	}
	if _, reason := v.Verify(context.Background(), proof, "/summarize/logs", now); reason != ReasonNone {
		t.Fatalf("nonce was consumed by a rejected attempt: %q", reason)
	}
}

func TestVerify_ConcurrentSameProof(t *testing.T) {
	now := time.Now()
	v := testVerifier()
	proof := signProof(t, issueAt(t, "/summarize/logs", now))

	const workers = 16
	var wg sync.WaitGroup
	reasons := make(chan Reason, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, reason := v.Verify(context.Background(), proof, "/summarize/logs", now)
			reasons <- reason
		}()
	}
	wg.Wait()
	close(reasons)

	accepted, replayed := 0, 0
	for reason := range reasons {
		switch reason {
		case ReasonNone:
			accepted++
		case ReasonReplayed:
			replayed++
		default:
			t.Fatalf("unexpected reason %q", reason)
		}
	}
	if accepted != 1 || replayed != workers-1 {
		t.Fatalf("got %d accepted / %d replayed, want 1 / %d", accepted, replayed, workers-1)
	}
}

type unavailableLedger struct{}

func (unavailableLedger) Redeem(context.Context, string, time.Duration) error {
	return ErrLedgerUnavailable
}

// Ledger-store failure must fail closed, never admit.
func TestVerify_LedgerUnavailable(t *testing.T) {
	now := time.Now()
	v := NewVerifier(testPricing, "0xPAY", unavailableLedger{})
	proof := signProof(t, issueAt(t, "/summarize/logs", now))

	_, reason := v.Verify(context.Background(), proof, "/summarize/logs", now)
	if reason != ReasonLedgerUnavailable {
		t.Fatalf("expected LedgerUnavailable, got %q", reason)
	}
}
