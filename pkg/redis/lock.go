package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when another process owns the lock
var ErrLockHeld = errors.New("lock held by another owner")

// Lock is a single-owner lease backed by SET NX PX.
// ⭐ SSOT: 프로세스 간 리밸런스 중복 실행 방지는 여기서만
type Lock struct {
	client *Client
	prefix string
}

// NewLock creates a new lock helper
func NewLock(client *Client, prefix string) *Lock {
	return &Lock{client: client, prefix: prefix}
}

// releaseScript deletes the key only if the caller still owns it
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

func (l *Lock) key(name string) string {
	return fmt.Sprintf("%s:lock:%s", l.prefix, name)
}

// Acquire takes the named lease for ttl. When Redis is disabled the lock is
// always granted; in-process overlap is handled by the scheduler.
func (l *Lock) Acquire(ctx context.Context, name, owner string, ttl time.Duration) error {
	if !l.client.Enabled() {
		return nil
	}

	ok, err := l.client.Redis().SetNX(ctx, l.key(name), owner, ttl).Result()
	if err != nil {
		return fmt.Errorf("lock acquire %s: %w", name, err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", name, ErrLockHeld)
	}
	return nil
}

// Release drops the lease if owner still holds it
func (l *Lock) Release(ctx context.Context, name, owner string) error {
	if !l.client.Enabled() {
		return nil
	}

	if err := releaseScript.Run(ctx, l.client.Redis(), []string{l.key(name)}, owner).Err(); err != nil {
		return fmt.Errorf("lock release %s: %w", name, err)
	}
	return nil
}
