package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Defaults for RedisLocker.
const (
	DefaultLockTTL   = 5 * time.Second
	DefaultRetryWait = 25 * time.Millisecond
	keyPrefix        = "storefinder:lock:"
)

// ErrNotHeld is logged when an unlock finds the lock expired or taken over.
var ErrNotHeld = errors.New("lock no longer held")

// unlockScript deletes the key only if it still carries our token.
var unlockScript = goredis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisLocker is a Locker shared across processes through Redis.
// Each lock is a SET NX PX key holding a random token; the TTL bounds how long
// a crashed holder can block others.
type RedisLocker struct {
	rdb       goredis.UniversalClient
	ttl       time.Duration
	retryWait time.Duration
}

// NewRedisLocker creates a locker on rdb. Non-positive durations take the defaults.
func NewRedisLocker(rdb goredis.UniversalClient, ttl, retryWait time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	if retryWait <= 0 {
		retryWait = DefaultRetryWait
	}
	return &RedisLocker{rdb: rdb, ttl: ttl, retryWait: retryWait}
}

// Lock polls SET NX until it wins or ctx is done.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := keyPrefix + key
	token := uuid.NewString()

	for {
		ok, err := l.rdb.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			break
		}
		t := time.NewTimer(l.retryWait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		n, err := unlockScript.Run(ctx, l.rdb, []string{redisKey}, token).Int()
		if err != nil {
			slog.Warn("lock_release_failed", "key", key, "error", err)
			return
		}
		if n == 0 {
			slog.Warn("lock_release_failed", "key", key, "error", ErrNotHeld)
		}
	}, nil
}
