package mem

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "exampattern:token:"

// RedisTokens shares tokens across instances; expiry is left to redis TTLs.
type RedisTokens struct {
	client *redis.Client
}

var _ TokenStore = (*RedisTokens)(nil)

func NewRedisTokens(client *redis.Client) *RedisTokens {
	return &RedisTokens{client: client}
}

func (r *RedisTokens) Set(ctx context.Context, token string, value string, ttl time.Duration) error {
	return r.client.Set(ctx, redisKeyPrefix+token, value, ttl).Err()
}

func (r *RedisTokens) Consume(ctx context.Context, token string) (string, error) {
	v, err := r.client.GetDel(ctx, redisKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

func (r *RedisTokens) Peek(ctx context.Context, token string) (string, bool, error) {
	v, err := r.client.Get(ctx, redisKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}
