package wallet

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

const (
	// Domain is the fixed prefix of every canonical message. It is part
	// of the wire contract: clients sign exactly this format.
	Domain = "x402-local-wallet"

	defaultAsset = "local-usdc"
	defaultChain = "local"

	// timeLayout is the timestamp format used inside invoices. The
	// strings are carried verbatim into the canonical message, so the
	// layout is frozen alongside it.
	timeLayout = "2006-01-02T15:04:05Z"
)

// Invoice is a server-issued, time-bounded offer: pay price to pay_to
// for one call to path. All fields are immutable once issued.
type Invoice struct {
	InvoiceID string `json:"invoice_id"`
	Path      string `json:"path"`
	Price     string `json:"price"`
	PayTo     string `json:"pay_to"`
	Nonce     string `json:"nonce"`
	IssuedAt  string `json:"issued_at"`
	ExpiresAt string `json:"expires_at"`
	Asset     string `json:"asset"`
	Chain     string `json:"chain"`
	Domain    string `json:"domain"`
}

// ExpiresAtTime parses the invoice expiry timestamp.
func (inv Invoice) ExpiresAtTime() (time.Time, error) {
	return time.Parse(timeLayout, inv.ExpiresAt)
}

// CanonicalMessage derives the exact string a client signs. Fields are
// taken verbatim from the invoice; any re-encoding would break every
// signature. Frozen format, do not touch.
func CanonicalMessage(inv Invoice) string {
	return fmt.Sprintf("%s|invoice_id=%s|path=%s|price=%s|pay_to=%s|nonce=%s|expires_at=%s",
		Domain, inv.InvoiceID, inv.Path, inv.Price, inv.PayTo, inv.Nonce, inv.ExpiresAt)
}

// Issuer creates invoices for gated routes.
type Issuer struct {
	Pricing Pricing
	PayTo   string
	TTL     time.Duration

	// Now is swappable for tests.
	Now func() time.Time
}

func NewIssuer(pricing Pricing, payTo string, ttl time.Duration) *Issuer {
	return &Issuer{Pricing: pricing, PayTo: payTo, TTL: ttl, Now: time.Now}
}

// Issue creates a fresh invoice for path. invoice_id and nonce carry
// 128 bits of entropy each; a predictable nonce would defeat replay
// protection.
func (is *Issuer) Issue(path string) (Invoice, error) {
	price, err := is.Pricing.PriceFor(path)
	if err != nil {
		return Invoice{}, err
	}
	id, err := newToken()
	if err != nil {
		return Invoice{}, err
	}
	nonce, err := newToken()
	if err != nil {
		return Invoice{}, err
	}
	issuedAt := is.Now().UTC()
	return Invoice{
		InvoiceID: id,
		Path:      path,
		Price:     price,
		PayTo:     is.PayTo,
		Nonce:     nonce,
		IssuedAt:  issuedAt.Format(timeLayout),
		ExpiresAt: issuedAt.Add(is.TTL).Format(timeLayout),
		Asset:     defaultAsset,
		Chain:     defaultChain,
		Domain:    Domain,
	}, nil
}

// newToken returns 16 bytes of crypto/rand entropy, hex-encoded.
func newToken() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}
