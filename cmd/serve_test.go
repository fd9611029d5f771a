package main

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestGoUntilDoneWaitsForShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var finished atomic.Bool
	wait := goUntilDone(ctx, "test worker", func(ctx context.Context) error {
		<-ctx.Done()
		// Finish the in-flight job after cancellation.
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
		return nil
	})

	cancel()
	wait()
	if !finished.Load() {
		t.Fatal("wait returned before the worker finished")
	}
}

func TestGoUntilDoneAfterEarlyFailure(t *testing.T) {
	wait := goUntilDone(context.Background(), "test worker", func(context.Context) error {
		return errors.New("kafka unreachable")
	})

	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("wait blocked on a worker that already stopped")
	}
}
