package storage_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"erpcgo/storage"
)

func TestCellConstructOnce(t *testing.T) {
	var c storage.Cell[int]
	calls := 0
	build := func() int {
		calls++
		return 42
	}
	if v := c.Construct(build); v != 42 {
		t.Fatalf("got %d, want 42", v)
	}
	if v := c.Construct(build); v != 42 {
		t.Fatalf("got %d, want 42", v)
	}
	if calls != 1 {
		t.Fatalf("build called %d times, want 1", calls)
	}

	c.Destroy(nil)
	if _, ok := c.Get(); ok {
		t.Fatal("cell still reports constructed after Destroy")
	}
	if v := c.Construct(build); v != 42 || calls != 2 {
		t.Fatalf("rebuild after Destroy failed: v=%d calls=%d", v, calls)
	}
}

func TestQueueFIFO(t *testing.T) {
	q := storage.NewQueue[int](2)
	ctx := context.Background()

	if err := q.Put(ctx, 1); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := q.Put(ctx, 2); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !q.Full() {
		t.Fatal("expected queue to be full")
	}
	if q.TryPut(3) {
		t.Fatal("TryPut should fail when full")
	}

	v, err := q.Get(ctx)
	if err != nil || v != 1 {
		t.Fatalf("Get: v=%d err=%v, want 1", v, err)
	}
	v, err = q.Get(ctx)
	if err != nil || v != 2 {
		t.Fatalf("Get: v=%d err=%v, want 2", v, err)
	}
	if !q.Empty() {
		t.Fatal("expected queue to be empty")
	}
}

func TestQueueBlocksUntilPut(t *testing.T) {
	q := storage.NewQueue[string](1)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(10 * time.Millisecond)
		_ = q.Put(context.Background(), "hello")
	}()

	v, err := q.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != "hello" {
		t.Fatalf("got %q, want hello", v)
	}
	wg.Wait()
}

func TestQueueGetRespectsContext(t *testing.T) {
	q := storage.NewQueue[int](1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := q.Get(ctx); err == nil {
		t.Fatal("expected context deadline error on empty queue")
	}
}
