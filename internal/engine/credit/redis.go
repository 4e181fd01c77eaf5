package credit

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "credits:"

// debitScript seeds a missing balance with the starting amount, then decrements only when the
// balance covers the debit. Returns {ok, balance}.
var debitScript = redis.NewScript(`
local b = redis.call("GET", KEYS[1])
if not b then
	b = tonumber(ARGV[2])
	redis.call("SET", KEYS[1], b)
else
	b = tonumber(b)
end
local amount = tonumber(ARGV[1])
if b < amount then
	return {0, b}
end
return {1, redis.call("DECRBY", KEYS[1], amount)}
`)

var creditScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	redis.call("SET", KEYS[1], ARGV[2])
end
return redis.call("INCRBY", KEYS[1], ARGV[1])
`)

// RedisLedger stores one integer counter per user under "credits:<userId>".
type RedisLedger struct {
	client   redis.UniversalClient
	starting int64
}

// NewRedisLedger works with a client, a ring or a cluster client.
func NewRedisLedger(client redis.UniversalClient, starting int64) *RedisLedger {
	return &RedisLedger{client: client, starting: starting}
}

func key(userID string) string {
	return keyPrefix + userID
}

func (l *RedisLedger) Balance(ctx context.Context, userID string) (int64, error) {
	b, err := l.client.Get(ctx, key(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return l.starting, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return b, nil
}

func (l *RedisLedger) Debit(ctx context.Context, userID string, amount int64) (int64, error) {
	if amount < 0 {
		return 0, ErrInvalidAmount
	}
	res, err := debitScript.Run(ctx, l.client, []string{key(userID)}, amount, l.starting).Int64Slice()
	if err != nil {
		return 0, fmt.Errorf("debit credits: %w", err)
	}
	if len(res) != 2 {
		return 0, fmt.Errorf("debit credits: unexpected script reply %v", res)
	}
	if res[0] == 0 {
		return res[1], &InsufficientError{Required: amount, Available: res[1]}
	}
	return res[1], nil
}

func (l *RedisLedger) Refund(ctx context.Context, userID string, amount int64) (int64, error) {
	return l.add(ctx, userID, amount)
}

func (l *RedisLedger) Grant(ctx context.Context, userID string, amount int64) (int64, error) {
	return l.add(ctx, userID, amount)
}

func (l *RedisLedger) add(ctx context.Context, userID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	b, err := creditScript.Run(ctx, l.client, []string{key(userID)}, amount, l.starting).Int64()
	if err != nil {
		return 0, fmt.Errorf("credit balance: %w", err)
	}
	return b, nil
}
