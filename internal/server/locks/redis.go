package locks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/educhain/internal/common"
	"github.com/redis/go-redis/v9"
)

const lockKeyPrefix = "educhain:lock:"

// releaseScript deletes the key only while it still holds our token, so a
// lock that expired and was re-acquired elsewhere is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker shares locks between server instances. A lock expires after
// ttl even if its holder never releases it.
type RedisLocker struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisLocker(client redis.Cmdable, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl}
}

func (r *RedisLocker) TryLock(ctx context.Context, key string) (func(), bool, error) {
	token, err := common.MakeRandHexString(16)
	if err != nil {
		return nil, false, err
	}

	k := lockKeyPrefix + key
	ok, err := r.client.SetNX(ctx, k, token, r.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = releaseScript.Run(ctx, r.client, []string{k}, token).Err()
		})
	}, true, nil
}
