package threading_test

import (
	"context"
	"testing"
	"time"

	"erpcgo/threading"
)

func TestSemaphoreAcquireRelease(t *testing.T) {
	sem := threading.NewSemaphore(2)
	ctx := context.Background()

	if err := sem.Acquire(ctx); err != nil {
		t.Fatalf("Acquire 1: %v", err)
	}
	if err := sem.Acquire(ctx); err != nil {
		t.Fatalf("Acquire 2: %v", err)
	}
	if sem.TryAcquire() {
		t.Fatal("TryAcquire succeeded with no permits left")
	}

	sem.Release()
	if !sem.TryAcquire() {
		t.Fatal("TryAcquire failed after a Release freed a permit")
	}
}

func TestSemaphoreAcquireBlocksUntilTimeout(t *testing.T) {
	sem := threading.NewSemaphore(1)
	if err := sem.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := sem.Acquire(ctx); err == nil {
		t.Fatal("Acquire should have blocked until ctx timed out")
	}
}

func TestSemaphoreReleaseWithoutAcquirePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Release without a matching Acquire should panic")
		}
	}()
	threading.NewSemaphore(1).Release()
}

func TestThreadJoinWaitsForCompletion(t *testing.T) {
	done := make(chan struct{})
	th := threading.Start(func() {
		time.Sleep(10 * time.Millisecond)
		close(done)
	})

	if th.Done() {
		t.Fatal("thread reported done before its function returned")
	}
	if err := th.Join(context.Background()); err != nil {
		t.Fatalf("Join: %v", err)
	}
	select {
	case <-done:
	default:
		t.Fatal("Join returned before the thread's function actually finished")
	}
	if !th.Done() {
		t.Fatal("thread should report done after Join returns")
	}
}

func TestThreadJoinRespectsContext(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	th := threading.Start(func() { <-block })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := th.Join(ctx); err == nil {
		t.Fatal("Join should have returned ctx.Err() before the thread finished")
	}
}
