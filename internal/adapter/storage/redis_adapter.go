package storage

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	stockKeyPrefix    = "stock:"
	idempotencyKeyTTL = 24 * time.Hour
)

// setStockScript keeps the newest mirrored value: a write older than the
// stored timestamp is ignored, so out-of-order notifications cannot regress it.
var setStockScript = redis.NewScript(`
local key = KEYS[1]
local stock = ARGV[1]
local ts = tonumber(ARGV[2])

local current = redis.call('HGET', key, 'ts')
if current and tonumber(current) > ts then
	return 0
end

redis.call('HSET', key, 'stock', stock, 'ts', ARGV[2])
return 1
`)

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// SetStock mirrors the stock committed at `at` for catalog reads. The order
// path never reads it back.
func (r *RedisAdapter) SetStock(ctx context.Context, productID int64, stock int, at time.Time) error {
	key := stockKey(productID)
	return setStockScript.Run(ctx, r.client, []string{key}, stock, at.UnixMicro()).Err()
}

// GetStock returns the mirrored value; ok is false when nothing is mirrored.
func (r *RedisAdapter) GetStock(ctx context.Context, productID int64) (stock int, ok bool, err error) {
	stock, err = r.client.HGet(ctx, stockKey(productID), "stock").Int()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return stock, true, nil
}

func stockKey(productID int64) string {
	return stockKeyPrefix + strconv.FormatInt(productID, 10)
}
