package fabric

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is the optional production backend for the state fabric,
// grounded on original_source/model/agents/redis_state.py's real-Redis
// option and the rest of the example pack's go-redis/v9 usage.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing go-redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) HashSet(ctx context.Context, key string, fields map[string]float64) error {
	if len(fields) == 0 {
		return nil
	}
	flat := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		flat[k] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return r.client.HSet(ctx, key, flat).Err()
}

func (r *RedisStore) HashGet(ctx context.Context, key string) (map[string]float64, bool, error) {
	raw, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, false, err
	}
	if len(raw) == 0 {
		return nil, false, nil
	}
	out := make(map[string]float64, len(raw))
	for k, v := range raw {
		f, _ := strconv.ParseFloat(v, 64)
		out[k] = f
	}
	return out, true, nil
}

func (r *RedisStore) StringSet(ctx context.Context, key string, value string) error {
	return r.client.Set(ctx, key, value, 0).Err()
}

func (r *RedisStore) StringGet(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisStore) ListAppend(ctx context.Context, key string, value string) error {
	return r.client.RPush(ctx, key, value).Err()
}

func (r *RedisStore) ListRange(ctx context.Context, key string) ([]string, error) {
	return r.client.LRange(ctx, key, 0, -1).Result()
}

func (r *RedisStore) ListDrain(ctx context.Context, key string) ([]string, error) {
	pipe := r.client.TxPipeline()
	rangeCmd := pipe.LRange(ctx, key, 0, -1)
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	return rangeCmd.Val(), nil
}

func (r *RedisStore) IncrFloat(ctx context.Context, key string, delta float64) (float64, error) {
	return r.client.IncrByFloat(ctx, key, delta).Result()
}

func (r *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if ttl <= 0 {
		return r.client.Persist(ctx, key).Err()
	}
	return r.client.Expire(ctx, key, ttl).Err()
}

func (r *RedisStore) Flush(ctx context.Context) error {
	return r.client.FlushDB(ctx).Err()
}
