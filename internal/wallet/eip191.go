package wallet

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	// ErrMalformedSignature means the signature encoding is structurally
	// invalid (bad hex, wrong length).
	ErrMalformedSignature = errors.New("malformed signature")

	// ErrInvalidSignature means the signature does not verify against
	// the message.
	ErrInvalidSignature = errors.New("invalid signature")
)

// HashMessage constructs the EIP-191 prefixed hash:
// keccak256("\x19Ethereum Signed Message:\n" + len(msg) + msg)
func HashMessage(msg []byte) []byte {
	prefix := fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(msg))
	return crypto.Keccak256([]byte(prefix), msg)
}

// RecoverSigner extracts the signer address from a hex-encoded EIP-191
// signature over message. The signature must be 65 bytes (R || S || V),
// with V in {0,1} or {27,28}. Pure and deterministic.
func RecoverSigner(message string, sigHex string) (common.Address, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: signature is not hex", ErrMalformedSignature)
	}
	if len(sig) != 65 {
		return common.Address{}, fmt.Errorf("%w: got %d bytes, want 65", ErrMalformedSignature, len(sig))
	}
	hash := HashMessage([]byte(message))

	// Normalize V: Ethereum uses 27/28, ecrecover expects 0/1
	sigCopy := make([]byte, 65)
	copy(sigCopy, sig)
	if sigCopy[64] >= 27 {
		sigCopy[64] -= 27
	}

	pub, err := crypto.SigToPub(hash, sigCopy)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: ecrecover: %v", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
