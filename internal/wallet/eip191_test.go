package wallet

import (
	"encoding/hex"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
)

func TestHashMessage_Deterministic(t *testing.T) {
	msg := []byte("hello wallet")
	h1 := HashMessage(msg)
	h2 := HashMessage(msg)
	if string(h1) != string(h2) {
		t.Fatal("HashMessage is not deterministic")
	}
	if len(h1) != 32 {
		t.Fatalf("expected 32 bytes, got %d", len(h1))
	}
}

func TestHashMessage_DifferentMessages(t *testing.T) {
	if string(HashMessage([]byte("foo"))) == string(HashMessage([]byte("bar"))) {
		t.Fatal("different messages produced the same hash")
	}
}

// TestRecoverSigner_Valid is the core test: sign a message with a known
// key, recover the address, and verify it matches.
func TestRecoverSigner_Valid(t *testing.T) {
	privKey, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	expected := crypto.PubkeyToAddress(privKey.PublicKey)

	msg := "x402-local-wallet|invoice_id=abc|path=/x|price=0.01|pay_to=0xP|nonce=n|expires_at=T"
	sig, err := crypto.Sign(HashMessage([]byte(msg)), privKey)
	if err != nil {
		t.Fatal(err)
	}
	// crypto.Sign returns V in {0,1}; Ethereum convention is {27,28}
	sig[64] += 27

	got, err := RecoverSigner(msg, "0x"+hex.EncodeToString(sig))
	if err != nil {
		t.Fatalf("RecoverSigner error: %v", err)
	}
	if got != expected {
		t.Errorf("got %s, want %s", got.Hex(), expected.Hex())
	}
}

// TestRecoverSigner_V0and1 verifies that V in {0,1} (without +27) also works.
func TestRecoverSigner_V0and1(t *testing.T) {
	privKey, _ := crypto.GenerateKey()
	expected := crypto.PubkeyToAddress(privKey.PublicKey)

	msg := "test message"
	sig, _ := crypto.Sign(HashMessage([]byte(msg)), privKey)
	// Leave V as 0 or 1 (no +27)

	got, err := RecoverSigner(msg, hex.EncodeToString(sig))
	if err != nil {
		t.Fatalf("RecoverSigner error: %v", err)
	}
	if got != expected {
		t.Errorf("got %s, want %s", got.Hex(), expected.Hex())
	}
}

// TestRecoverSigner_WrongMessage verifies that signing one message and
// recovering with a different message returns a different address.
func TestRecoverSigner_WrongMessage(t *testing.T) {
	privKey, _ := crypto.GenerateKey()
	expected := crypto.PubkeyToAddress(privKey.PublicKey)

	sig, _ := crypto.Sign(HashMessage([]byte("original message")), privKey)
	sig[64] += 27

	wrong, err := RecoverSigner("tampered message", hex.EncodeToString(sig))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wrong == expected {
		t.Error("tampered message should not recover the original signer")
	}
}

func TestRecoverSigner_MalformedHex(t *testing.T) {
	_, err := RecoverSigner("msg", "0xZZZZ")
	if !errors.Is(err, ErrMalformedSignature) {
		t.Fatalf("expected ErrMalformedSignature, got %v", err)
	}
}

func TestRecoverSigner_WrongLength(t *testing.T) {
	_, err := RecoverSigner("msg", "0xdeadbeef")
	if !errors.Is(err, ErrMalformedSignature) {
		t.Fatalf("expected ErrMalformedSignature, got %v", err)
	}
}
