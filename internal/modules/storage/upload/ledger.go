package upload

import (
	"context"
	"strconv"
	"time"

	redispkg "github.com/komuness/core/internal/pkg/redis"
	"github.com/redis/go-redis/v9"
)

// LedgerKey is the sorted set of provisional upload keys, scored by upload time in ms.
var LedgerKey = redispkg.Key("uploads", "provisional")

// Ledger tracks uploads that are not yet referenced by a committed record.
type Ledger struct {
	rdb *redis.Client
}

func NewLedger(rdb *redis.Client) *Ledger {
	return &Ledger{rdb: rdb}
}

func (l *Ledger) MarkProvisional(ctx context.Context, at time.Time, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	score := float64(at.UnixMilli())
	members := make([]redis.Z, 0, len(keys))
	for _, k := range keys {
		members = append(members, redis.Z{Score: score, Member: k})
	}
	return l.rdb.ZAdd(ctx, LedgerKey, members...).Err()
}

// Commit marks uploads as owned by a durable record.
func (l *Ledger) Commit(ctx context.Context, keys ...string) error {
	return l.Forget(ctx, keys...)
}

func (l *Ledger) Forget(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	members := make([]interface{}, len(keys))
	for i, k := range keys {
		members[i] = k
	}
	return l.rdb.ZRem(ctx, LedgerKey, members...).Err()
}

// Expired lists up to limit provisional keys recorded at or before cutoff.
func (l *Ledger) Expired(ctx context.Context, cutoff time.Time, limit int64) ([]string, error) {
	return l.rdb.ZRangeByScore(ctx, LedgerKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(cutoff.UnixMilli(), 10),
		Count: limit,
	}).Result()
}

func (l *Ledger) Pending(ctx context.Context) (int64, error) {
	return l.rdb.ZCard(ctx, LedgerKey).Result()
}
