package wallet

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrNonceReplayed means the nonce was already redeemed.
	ErrNonceReplayed = errors.New("nonce already redeemed")

	// ErrLedgerUnavailable means the backing store could not answer.
	// Callers must fail closed on this error.
	ErrLedgerUnavailable = errors.New("nonce ledger unavailable")
)

// Ledger records redeemed invoice nonces. Redeem is the single
// synchronization point of the whole gate: it must be atomic, so that
// under concurrent calls with the same nonce exactly one caller
// succeeds. Get/set are deliberately not exposed.
type Ledger interface {
	// Redeem marks nonce as redeemed and keeps the record for retain.
	// Returns nil on first redemption, ErrNonceReplayed if the nonce
	// was already marked, ErrLedgerUnavailable on store failure.
	Redeem(ctx context.Context, nonce string, retain time.Duration) error
}

// MemoryLedger is the in-process Ledger, suitable for single-instance
// deployments only.
type MemoryLedger struct {
	mu       sync.Mutex
	redeemed map[string]time.Time // nonce -> retain-until

	now func() time.Time
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		redeemed: make(map[string]time.Time),
		now:      time.Now,
	}
}

// Redeem does the check-and-mark under one lock; never split into a
// separate read and write.
func (l *MemoryLedger) Redeem(_ context.Context, nonce string, retain time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.redeemed[nonce]; ok {
		return ErrNonceReplayed
	}
	l.redeemed[nonce] = l.now().Add(retain)
	return nil
}

// ExpireBefore drops records whose retention window ended before
// threshold. Purely a memory optimization; safe to run concurrently
// with Redeem and never touches records still inside their window.
func (l *MemoryLedger) ExpireBefore(threshold time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for nonce, until := range l.redeemed {
		if until.Before(threshold) {
			delete(l.redeemed, nonce)
			removed++
		}
	}
	return removed
}

// Len reports the number of retained records.
func (l *MemoryLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.redeemed)
}
