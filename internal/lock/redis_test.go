package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/akylbek/payment-system/refund-orchestrator/internal/interfaces"
)

func newLocker(t *testing.T, wait time.Duration) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	l := NewRedisLocker(client, wait)
	l.interval = 10 * time.Millisecond
	return l, mr
}

func TestAcquireAndRelease(t *testing.T) {
	ctx := context.Background()
	l, mr := newLocker(t, 0)

	release, err := l.Acquire(ctx, "refund_lock:order:1", time.Minute)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !mr.Exists("refund_lock:order:1") {
		t.Fatal("lock key not set")
	}

	if _, err := l.Acquire(ctx, "refund_lock:order:1", time.Minute); !errors.Is(err, interfaces.ErrLockHeld) {
		t.Fatalf("second Acquire: expected ErrLockHeld, got %v", err)
	}

	release()
	if mr.Exists("refund_lock:order:1") {
		t.Fatal("lock key still set after release")
	}

	release2, err := l.Acquire(ctx, "refund_lock:order:1", time.Minute)
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	release2()
}

func TestReleaseLeavesForeignLock(t *testing.T) {
	ctx := context.Background()
	l, mr := newLocker(t, 0)

	release, err := l.Acquire(ctx, "k", time.Second)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	// Lock expired and another worker took it.
	mr.FastForward(2 * time.Second)
	if err := mr.Set("k", "someone-else"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	release()
	if got, _ := mr.Get("k"); got != "someone-else" {
		t.Errorf("foreign lock value = %q, want untouched", got)
	}
}

func TestAcquireWaitsForRelease(t *testing.T) {
	ctx := context.Background()
	l, _ := newLocker(t, 2*time.Second)

	release, err := l.Acquire(ctx, "k", time.Minute)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	go func() {
		time.Sleep(50 * time.Millisecond)
		release()
	}()

	release2, err := l.Acquire(ctx, "k", time.Minute)
	if err != nil {
		t.Fatalf("waiting Acquire: %v", err)
	}
	release2()
}

func TestAcquireHonoursContext(t *testing.T) {
	l, _ := newLocker(t, time.Minute)

	release, err := l.Acquire(context.Background(), "k", time.Minute)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := l.Acquire(ctx, "k", time.Minute); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestHeldLockOutlivesTTL(t *testing.T) {
	ctx := context.Background()
	l, mr := newLocker(t, 0)

	release, err := l.Acquire(ctx, "k", 300*time.Millisecond)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	// Most of the TTL is gone; the holder must re-arm it before it lapses.
	mr.FastForward(250 * time.Millisecond)
	deadline := time.Now().Add(2 * time.Second)
	for mr.TTL("k") <= 50*time.Millisecond {
		if time.Now().After(deadline) {
			t.Fatalf("TTL never extended: %v", mr.TTL("k"))
		}
		time.Sleep(10 * time.Millisecond)
	}

	mr.FastForward(250 * time.Millisecond)
	if !mr.Exists("k") {
		t.Fatal("lock expired while held")
	}

	release()
	if mr.Exists("k") {
		t.Fatal("lock key still set after release")
	}
	release()
}

func TestExtendRequiresOwnership(t *testing.T) {
	ctx := context.Background()
	l, mr := newLocker(t, 0)

	if err := mr.Set("k", "someone-else"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	ok, err := l.extend(ctx, "k", "mine", time.Minute)
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	if ok {
		t.Error("extended a lock owned by someone else")
	}
	if ttl := mr.TTL("k"); ttl != 0 {
		t.Errorf("foreign key TTL = %v, want none", ttl)
	}
}
