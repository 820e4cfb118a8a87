package wallet

import (
	"context"
	"strings"
	"time"
)

// Reason names why a proof was rejected. The values are part of the
// client contract and stable across versions.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonPathMismatch      Reason = "PathMismatch"
	ReasonTermsMismatch     Reason = "TermsMismatch"
	ReasonExpired           Reason = "Expired"
	ReasonInvalidSignature  Reason = "InvalidSignature"
	ReasonReplayed          Reason = "Replayed"
	ReasonLedgerUnavailable Reason = "LedgerUnavailable"
	ReasonMalformedProof    Reason = "MalformedProof"
)

// SecurityRelevant reports whether repeated rejections with this reason
// indicate tampering or race attempts rather than a client mistake.
func (r Reason) SecurityRelevant() bool {
	return r == ReasonInvalidSignature || r == ReasonReplayed
}

// Verifier validates proofs against the configured terms and the nonce
// ledger.
type Verifier struct {
	Pricing Pricing
	PayTo   string
	Ledger  Ledger

	// RetainMargin keeps a nonce record blocked past invoice expiry, so
	// a replay submitted just before expiry and processed just after is
	// still rejected.
	RetainMargin time.Duration
}

func NewVerifier(pricing Pricing, payTo string, ledger Ledger) *Verifier {
	return &Verifier{Pricing: pricing, PayTo: payTo, Ledger: ledger, RetainMargin: time.Minute}
}

// Verify runs the ordered checks. The first failing check determines
// the reported reason. Only the final nonce redemption has a side
// effect: a rejection from any earlier check never consumes the nonce,
// so a client that retried with stale terms can still redeem a
// correctly reissued invoice.
func (v *Verifier) Verify(ctx context.Context, proof Proof, requestPath string, now time.Time) (string, Reason) {
	inv := proof.Invoice

	// 1. The invoice must be for this exact route.
	if inv.Path != requestPath {
		return "", ReasonPathMismatch
	}

	// 2. Price and payee must match the current configured terms, so a
	// stale or cross-route invoice cannot be redeemed.
	price, err := v.Pricing.PriceFor(requestPath)
	if err != nil || inv.Price != price || inv.PayTo != v.PayTo {
		return "", ReasonTermsMismatch
	}

	// 3. Expiry.
	expiresAt, err := inv.ExpiresAtTime()
	if err != nil {
		return "", ReasonMalformedProof
	}
	if now.After(expiresAt) {
		return "", ReasonExpired
	}

	// 4. The recovered signer must be the claimed payer.
	recovered, err := RecoverSigner(CanonicalMessage(inv), proof.Signature)
	if err != nil {
		return "", ReasonInvalidSignature
	}
	if !strings.EqualFold(recovered.Hex(), proof.Payer) {
		return "", ReasonInvalidSignature
	}

	// 5. Redeem the nonce, last and exactly once.
	retain := expiresAt.Sub(now) + v.RetainMargin
	switch err := v.Ledger.Redeem(ctx, inv.Nonce, retain); err {
	case nil:
	case ErrNonceReplayed:
		return "", ReasonReplayed
	default:
		return "", ReasonLedgerUnavailable
	}

	return recovered.Hex(), ReasonNone
}
