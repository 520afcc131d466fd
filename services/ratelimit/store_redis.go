package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps request history in sorted sets scored by unix
// nanoseconds, so every deployment instance sees the same counts. Block
// marks are plain keys with a TTL.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func historyKey(identifier string) string {
	return fmt.Sprintf("ratelimit:history:%s", identifier)
}

func blockKey(identifier string) string {
	return fmt.Sprintf("ratelimit:block:%s", identifier)
}

func (r *RedisStore) Record(ctx context.Context, identifier string, ts time.Time) error {
	key := historyKey(identifier)
	pipe := r.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score: float64(ts.UnixNano()),
		// Unique member so simultaneous requests do not collapse into one.
		Member: uuid.NewString(),
	})
	pipe.Expire(ctx, key, historyRetention)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisStore) CountSince(ctx context.Context, identifier string, since time.Time) (int, error) {
	min := strconv.FormatInt(since.UnixNano(), 10)
	count, err := r.client.ZCount(ctx, historyKey(identifier), min, "+inf").Result()
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (r *RedisStore) Prune(ctx context.Context, identifier string, cutoff time.Time) error {
	max := strconv.FormatInt(cutoff.UnixNano()-1, 10)
	return r.client.ZRemRangeByScore(ctx, historyKey(identifier), "-inf", max).Err()
}

func (r *RedisStore) Block(ctx context.Context, identifier string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, blockKey(identifier), until.UTC().Format(time.RFC3339Nano), ttl).Err()
}

func (r *RedisStore) BlockedUntil(ctx context.Context, identifier string) (time.Time, bool, error) {
	raw, err := r.client.Get(ctx, blockKey(identifier)).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	until, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, err
	}
	return until, true, nil
}
