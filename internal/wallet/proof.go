package wallet

import (
	"encoding/base64"
	"encoding/json"
	"errors"
)

// ProofHeader carries the base64-encoded JSON proof on retried requests.
const ProofHeader = "X-X402-Proof"

// ErrMalformedProof means the proof header could not be decoded into a
// structurally complete proof. Terminal: the client must restart the
// flow with a fresh invoice.
var ErrMalformedProof = errors.New("malformed proof")

// Proof is the client-constructed envelope: the invoice it received,
// the claimed signer, and a signature over the canonical message.
type Proof struct {
	Invoice   Invoice `json:"invoice"`
	Payer     string  `json:"payer"`
	Signature string  `json:"signature"`
}

// DecodeProof parses a proof header value. Base64-wrapped JSON is the
// documented form; bare JSON is accepted for hand-rolled clients.
func DecodeProof(raw string) (Proof, error) {
	var p Proof
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		decoded = []byte(raw)
	}
	if err := json.Unmarshal(decoded, &p); err != nil {
		return Proof{}, ErrMalformedProof
	}
	if p.Invoice.InvoiceID == "" || p.Invoice.Nonce == "" || p.Payer == "" || p.Signature == "" {
		return Proof{}, ErrMalformedProof
	}
	return p, nil
}

// EncodeProof is the inverse of DecodeProof, used by tests and the demo
// client.
func EncodeProof(p Proof) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}
