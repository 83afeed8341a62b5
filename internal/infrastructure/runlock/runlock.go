// Package runlock keeps at most one pipeline run in flight.
package runlock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"NewsDigest/internal/ports"
)

const defaultTTL = 15 * time.Minute

// releaseScript deletes the lock only while it still belongs to the caller.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGuard is a ports.RunGuard shared across processes. The lock expires
// after ttl so a crashed run cannot block later ones forever.
type RedisGuard struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

var _ ports.RunGuard = (*RedisGuard)(nil)

// NewRedisGuard connects to addr and guards key.
func NewRedisGuard(addr, key string, ttl time.Duration) *RedisGuard {
	return NewRedisGuardWithClient(redis.NewClient(&redis.Options{Addr: addr}), key, ttl)
}

// NewRedisGuardWithClient guards key using an existing client.
func NewRedisGuardWithClient(client *redis.Client, key string, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if key == "" {
		key = "newsdigest:run-lock"
	}
	return &RedisGuard{client: client, key: key, ttl: ttl}
}

// Ping checks connectivity.
func (g *RedisGuard) Ping(ctx context.Context) error {
	return g.client.Ping(ctx).Err()
}

// TryAcquire takes the lock for runID if nobody holds it.
func (g *RedisGuard) TryAcquire(ctx context.Context, runID string) (bool, error) {
	ok, err := g.client.SetNX(ctx, g.key, runID, g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire run lock: %w", err)
	}
	return ok, nil
}

// Release frees the lock if runID still holds it.
func (g *RedisGuard) Release(ctx context.Context, runID string) error {
	if err := releaseScript.Run(ctx, g.client, []string{g.key}, runID).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release run lock: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (g *RedisGuard) Close() error {
	return g.client.Close()
}

// LocalGuard is an in-process ports.RunGuard.
type LocalGuard struct {
	mu     sync.Mutex
	holder string
}

var _ ports.RunGuard = (*LocalGuard)(nil)

// NewLocalGuard returns an unlocked guard.
func NewLocalGuard() *LocalGuard {
	return &LocalGuard{}
}

// TryAcquire takes the lock for runID if nobody holds it.
func (g *LocalGuard) TryAcquire(_ context.Context, runID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.holder != "" {
		return false, nil
	}
	g.holder = runID
	return true, nil
}

// Release frees the lock if runID holds it.
func (g *LocalGuard) Release(_ context.Context, runID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.holder == runID {
		g.holder = ""
	}
	return nil
}
