// internal/lock/redis.go
package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "project-sync:lock:"

// ErrNotAcquired is returned when another holder owns the lock.
var ErrNotAcquired = errors.New("lock is held by another owner")

// releaseScript deletes the key only if it still carries our token, so an
// expired lease never removes a lock that someone else has since taken.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker hands out short-lived exclusive leases stored in Redis.
type RedisLocker struct {
	client *redis.Client
}

// NewRedisLocker creates a locker backed by client.
func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

// Lease is a held lock. It expires on its own after the TTL it was taken with.
type Lease struct {
	client *redis.Client
	key    string
	token  string
}

// Acquire takes the named lock for ttl. It returns ErrNotAcquired when the lock is already held.
func (l *RedisLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (*Lease, error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}
	key := keyPrefix + name

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("lock.Acquire: %w", err)
	}
	if !ok {
		return nil, ErrNotAcquired
	}
	return &Lease{client: l.client, key: key, token: token}, nil
}

// Release gives the lock back. Releasing a lease that already expired is not an error.
func (le *Lease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, le.client, []string{le.key}, le.token).Err(); err != nil {
		return fmt.Errorf("lock.Release: %w", err)
	}
	return nil
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("lock.newToken: %w", err)
	}
	return hex.EncodeToString(b), nil
}
