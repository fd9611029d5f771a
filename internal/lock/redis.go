// Package lock provides the order-scoped mutex that serializes refund
// validation and execution across processes.
package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/refund-orchestrator/internal/interfaces"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/telemetry"
)

// releaseScript deletes the key only if we still own it, so a lock that
// expired and was taken by someone else is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript pushes the expiry out only while we still own the key.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

type RedisLocker struct {
	client   redis.UniversalClient
	wait     time.Duration
	interval time.Duration
}

// NewRedisLocker returns a locker that keeps retrying a held key for up to
// wait before giving up.
func NewRedisLocker(client redis.UniversalClient, wait time.Duration) *RedisLocker {
	return &RedisLocker{client: client, wait: wait, interval: 100 * time.Millisecond}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return l.hold(key, token, ttl), nil
		}
		if !time.Now().Before(deadline) {
			return nil, interfaces.ErrLockHeld
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.interval):
		}
	}
}

// hold keeps the lock alive for as long as it is held. A gateway call can
// outlast ttl; the key is re-armed every ttl/3 until the returned release
// func runs.
func (l *RedisLocker) hold(key, token string, ttl time.Duration) func() {
	period := ttl / 3
	if period <= 0 {
		return func() { l.release(key, token) }
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.watch(key, token, ttl, period, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			l.release(key, token)
		})
	}
}

func (l *RedisLocker) watch(key, token string, ttl, period time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), period)
		ok, err := l.extend(ctx, key, token, ttl)
		cancel()
		if err != nil {
			telemetry.Logger.Warn("Failed to extend lock", zap.String("key", key), zap.Error(err))
			continue
		}
		if !ok {
			telemetry.Logger.Error("Lock lost while held", zap.String("key", key))
			return
		}
	}
}

func (l *RedisLocker) extend(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	n, err := extendScript.Run(ctx, l.client, []string{key}, token, ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (l *RedisLocker) release(key, token string) {
	// The caller's context may already be canceled; release regardless.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil && err != redis.Nil {
		telemetry.Logger.Warn("Failed to release lock", zap.String("key", key), zap.Error(err))
	}
}
