package locks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/giovaniif/e-commerce/inventory/domain"
)

const (
	lockKeyPrefix      = "inventory:lock:"
	defaultLockTTL     = 10 * time.Second
	defaultRetryPeriod = 25 * time.Millisecond
)

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// KeyedLockRedis is the multi-process variant of KeyedLockMemory. Each key is
// a lease (SET NX with TTL) owned by a random token; unlock deletes the key
// only while the token still matches.
type KeyedLockRedis struct {
	client  *redis.Client
	ttl     time.Duration
	timeout time.Duration
	retry   time.Duration
}

func NewKeyedLockRedis(client *redis.Client, ttl time.Duration, timeout time.Duration) *KeyedLockRedis {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &KeyedLockRedis{
		client:  client,
		ttl:     ttl,
		timeout: timeout,
		retry:   defaultRetryPeriod,
	}
}

func (l *KeyedLockRedis) key(key string) string {
	return lockKeyPrefix + key
}

func (l *KeyedLockRedis) Acquire(ctx context.Context, keys ...string) (func(), error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	token := uuid.NewString()
	ordered := orderKeys(keys)
	held := make([]string, 0, len(ordered))
	for _, key := range ordered {
		if err := l.acquireOne(ctx, key, token); err != nil {
			l.unlock(held, token)
			return nil, err
		}
		held = append(held, key)
	}

	var once sync.Once
	return func() { once.Do(func() { l.unlock(held, token) }) }, nil
}

func (l *KeyedLockRedis) acquireOne(ctx context.Context, key string, token string) error {
	for {
		_, err := l.client.SetArgs(ctx, l.key(key), token, redis.SetArgs{Mode: "NX", TTL: l.ttl}).Result()
		if err == nil {
			return nil
		}
		if err != redis.Nil {
			if ctx.Err() != nil {
				return l.waitError(ctx, key)
			}
			return fmt.Errorf("redis set: %w", err)
		}

		timer := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return l.waitError(ctx, key)
		case <-timer.C:
		}
	}
}

func (l *KeyedLockRedis) waitError(ctx context.Context, key string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.NewBusyError(fmt.Sprintf("lock %s not acquired", key))
	}
	return ctx.Err()
}

// unlock runs on a fresh context so a cancelled request still frees its keys.
func (l *KeyedLockRedis) unlock(held []string, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(held) - 1; i >= 0; i-- {
		_ = unlockScript.Run(ctx, l.client, []string{l.key(held[i])}, token).Err()
	}
}
