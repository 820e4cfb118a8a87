package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const nonceKeyPrefix = "x402:nonce:"

// redisCallTimeout bounds every ledger round trip so a slow store
// cannot stall request handling.
const redisCallTimeout = 2 * time.Second

// RedisLedger is the shared-store Ledger for multi-instance
// deployments. Redemption is a single SET NX, atomic on the server, so
// the guarantee holds across processes.
type RedisLedger struct {
	rdb *redis.Client
}

func NewRedisLedger(rdb *redis.Client) *RedisLedger {
	return &RedisLedger{rdb: rdb}
}

func (l *RedisLedger) Redeem(ctx context.Context, nonce string, retain time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, redisCallTimeout)
	defer cancel()

	set, err := l.rdb.SetNX(ctx, nonceKeyPrefix+nonce, 1, retain).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	if !set {
		return ErrNonceReplayed
	}
	return nil
}
