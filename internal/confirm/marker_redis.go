package confirm

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// clearScript deletes the key only if it still holds the caller's token.
const clearScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

type RedisMarker struct {
	client   redis.Cmdable
	ttl      time.Duration
	newToken func() string
}

func NewRedisMarker(client redis.Cmdable, ttl time.Duration) *RedisMarker {
	return &RedisMarker{
		client:   client,
		ttl:      ttl,
		newToken: uuid.NewString,
	}
}

func (r *RedisMarker) TrySet(ctx context.Context, key string) (string, bool, error) {
	token := r.newToken()

	ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("set marker %s: %w", key, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (r *RedisMarker) Clear(ctx context.Context, key, token string) error {
	if err := r.client.Eval(ctx, clearScript, []string{key}, token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("clear marker %s: %w", key, err)
	}
	return nil
}
