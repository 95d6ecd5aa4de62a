package catalog

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockTimeout is returned when a lock could not be acquired in time.
var ErrLockTimeout = errors.New("catalog lock wait timed out")

// Locker serializes fetch-mutate-write cycles to cut down conflict retries.
// It is an optimisation only: the document version token remains the
// correctness check, since other processes may not share the lock.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// NopLocker never blocks.
type NopLocker struct{}

func (NopLocker) Lock(context.Context, string) (func(), error) { return func() {}, nil }

// DefaultLockWait bounds how long a mutation queues behind another one.
const DefaultLockWait = 30 * time.Second

// LocalLocker serializes mutations within one process. A waiter gives up
// with ErrLockTimeout after wait, even when its context never ends.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
	wait  time.Duration
}

func NewLocalLocker(wait time.Duration) *LocalLocker {
	if wait <= 0 {
		wait = DefaultLockWait
	}
	return &LocalLocker{slots: make(map[string]chan struct{}), wait: wait}
}

func (l *LocalLocker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	ch := l.slot(key)
	timer := time.NewTimer(l.wait)
	defer timer.Stop()
	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-ch }) }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrLockTimeout
	}
}

// releaseScript deletes the lock key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker is a lease lock (SET NX PX) shared by every instance that
// talks to the same Redis. The lease expires on its own if a holder dies.
type RedisLocker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	wait   time.Duration
	poll   time.Duration
}

func NewRedisLocker(client *redis.Client, ttl, wait time.Duration) *RedisLocker {
	return &RedisLocker{client: client, prefix: "catalog:lock:", ttl: ttl, wait: wait, poll: 50 * time.Millisecond}
}

func (r *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	k := r.prefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(r.wait)
	for {
		ok, err := r.client.SetNX(ctx, k, token, r.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			var once sync.Once
			return func() {
				once.Do(func() {
					_ = releaseScript.Run(context.Background(), r.client, []string{k}, token).Err()
				})
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.poll):
		}
	}
}
