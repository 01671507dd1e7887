package lock

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// releaseScript deletes a key only if the caller's token still owns it,
// so a lock that already expired and was re-acquired by someone else is
// never released out from under them.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`

// extendScript mirrors releaseScript's ownership check for TTL refresh.
const extendScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	return 0
end
`

// RedisLock is a single-node Redis-backed Lock, for coordinator
// deployments with more than one instance sharing task leases (§4.4).
// It does not implement multi-node Redlock fencing; a single Redis
// instance (or a Sentinel/Cluster client configured for consistency) is
// assumed to be the source of truth, matching the teacher's treatment
// of Redis as a single logical backend rather than a quorum member.
type RedisLock struct {
	client    *goredis.Client
	id        string
	keyPrefix string
}

// NewRedisLock wires a Lock backed by client, namespacing keys under
// keyPrefix+"lock:".
func NewRedisLock(client *goredis.Client, id, keyPrefix string) *RedisLock {
	return &RedisLock{client: client, id: id, keyPrefix: keyPrefix}
}

func (l *RedisLock) key(k string) string {
	return l.keyPrefix + "lock:" + k
}

// ID returns this locker's unique identifier, used as the lock's value
// so ownership can be verified on release and extend.
func (l *RedisLock) ID() string {
	return l.id
}

// Acquire sets the key with NX so only the first caller succeeds.
func (l *RedisLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key(key), l.id, ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Release runs releaseScript so only the owning token can delete the key.
func (l *RedisLock) Release(ctx context.Context, key string) error {
	res, err := l.client.Eval(ctx, releaseScript, []string{l.key(key)}, l.id).Result()
	if err != nil {
		return err
	}
	if n, _ := res.(int64); n == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// Extend refreshes the TTL if this locker still owns the key.
func (l *RedisLock) Extend(ctx context.Context, key string, ttl time.Duration) error {
	res, err := l.client.Eval(ctx, extendScript, []string{l.key(key)}, l.id, ttl.Milliseconds()).Result()
	if err != nil {
		return err
	}
	if n, _ := res.(int64); n == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// IsHeld reports whether any locker currently holds key.
func (l *RedisLock) IsHeld(ctx context.Context, key string) (bool, error) {
	n, err := l.client.Exists(ctx, l.key(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// WithLock acquires key, runs fn, and releases the lock regardless of
// fn's outcome.
func (l *RedisLock) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error {
	ok, err := l.Acquire(ctx, key, ttl)
	if err != nil {
		return err
	}
	if !ok {
		return ErrLockHeld
	}
	defer l.Release(ctx, key)
	return fn(ctx)
}

var _ Locker = (*RedisLock)(nil)
