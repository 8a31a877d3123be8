package distributed

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lock is a Redis-backed mutual exclusion guard, used to keep overlapping
// crawler runs from double-inserting cameras. The holder renews the key at
// half TTL so a crashed holder frees the lock automatically.
type Lock struct {
	client *redis.Client
	key    string
	value  string
	ttl    time.Duration

	stopRenew chan struct{}
	stopOnce  sync.Once
}

func NewLock(client *redis.Client, key string, ttl time.Duration) *Lock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Lock{
		client:    client,
		key:       key,
		value:     lockValue(),
		ttl:       ttl,
		stopRenew: make(chan struct{}),
	}
}

func lockValue() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// TryLock attempts a non-blocking acquire.
func (l *Lock) TryLock(ctx context.Context) (bool, error) {
	acquired, err := l.client.SetNX(ctx, l.key, l.value, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %q: %w", l.key, err)
	}
	if acquired {
		go l.renew(ctx)
	}
	return acquired, nil
}

// Unlock releases the lock if this instance still holds it.
func (l *Lock) Unlock(ctx context.Context) error {
	l.stopOnce.Do(func() { close(l.stopRenew) })

	// Delete only our own value so an expired-and-reacquired lock is left
	// alone.
	script := `
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`
	result, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Result()
	if err != nil {
		return fmt.Errorf("release lock %q: %w", l.key, err)
	}
	if n, ok := result.(int64); ok && n == 0 {
		return fmt.Errorf("lock %q was not held by this instance", l.key)
	}
	return nil
}

func (l *Lock) renew(ctx context.Context) {
	ticker := time.NewTicker(l.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopRenew:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			current, err := l.client.Get(ctx, l.key).Result()
			if err != nil || current != l.value {
				return
			}
			l.client.Expire(ctx, l.key, l.ttl)
		}
	}
}
