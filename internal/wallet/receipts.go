package wallet

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const receiptKeyPrefix = "x402:receipt:"

// Receipt confirms one admitted request. Opaque to clients; the gate
// echoes the id in the success response headers.
type Receipt struct {
	ReceiptID  string `json:"receipt_id"`
	InvoiceID  string `json:"invoice_id"`
	Payer      string `json:"payer"`
	Path       string `json:"path"`
	Price      string `json:"price"`
	RedeemedAt string `json:"redeemed_at"`
}

// ReceiptStore persists receipts for later lookup.
type ReceiptStore interface {
	Save(ctx context.Context, r Receipt, retain time.Duration) error
	Get(ctx context.Context, receiptID string) (*Receipt, error)
}

// MemoryReceipts is the in-process store.
type MemoryReceipts struct {
	mu       sync.Mutex
	receipts map[string]Receipt
	until    map[string]time.Time

	now func() time.Time
}

func NewMemoryReceipts() *MemoryReceipts {
	return &MemoryReceipts{
		receipts: make(map[string]Receipt),
		until:    make(map[string]time.Time),
		now:      time.Now,
	}
}

func (s *MemoryReceipts) Save(_ context.Context, r Receipt, retain time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receipts[r.ReceiptID] = r
	s.until[r.ReceiptID] = s.now().Add(retain)
	return nil
}

func (s *MemoryReceipts) Get(_ context.Context, receiptID string) (*Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.receipts[receiptID]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

// ExpireBefore drops receipts whose retention ended before threshold.
func (s *MemoryReceipts) ExpireBefore(threshold time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, until := range s.until {
		if until.Before(threshold) {
			delete(s.receipts, id)
			delete(s.until, id)
			removed++
		}
	}
	return removed
}

// RedisReceipts stores each receipt as a TTL-bounded hash.
type RedisReceipts struct {
	rdb *redis.Client
}

func NewRedisReceipts(rdb *redis.Client) *RedisReceipts {
	return &RedisReceipts{rdb: rdb}
}

func (s *RedisReceipts) Save(ctx context.Context, r Receipt, retain time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, redisCallTimeout)
	defer cancel()

	key := receiptKeyPrefix + r.ReceiptID
	if err := s.rdb.HSet(ctx, key,
		"receipt_id", r.ReceiptID,
		"invoice_id", r.InvoiceID,
		"payer", r.Payer,
		"path", r.Path,
		"price", r.Price,
		"redeemed_at", r.RedeemedAt,
	).Err(); err != nil {
		return err
	}
	return s.rdb.Expire(ctx, key, retain).Err()
}

func (s *RedisReceipts) Get(ctx context.Context, receiptID string) (*Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, redisCallTimeout)
	defer cancel()

	vals, err := s.rdb.HGetAll(ctx, receiptKeyPrefix+receiptID).Result()
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, nil
	}
	return &Receipt{
		ReceiptID:  vals["receipt_id"],
		InvoiceID:  vals["invoice_id"],
		Payer:      vals["payer"],
		Path:       vals["path"],
		Price:      vals["price"],
		RedeemedAt: vals["redeemed_at"],
	}, nil
}
