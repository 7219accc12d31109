package hooks_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"erpcgo/hooks"
)

func TestPipelineRunPreOrderAndAbort(t *testing.T) {
	var order []int
	boom := errors.New("boom")
	p := &hooks.Pipeline{
		Pre: []hooks.PreAction{
			func(ctx context.Context, serviceID, methodID uint8) error {
				order = append(order, 1)
				return nil
			},
			func(ctx context.Context, serviceID, methodID uint8) error {
				order = append(order, 2)
				return boom
			},
			func(ctx context.Context, serviceID, methodID uint8) error {
				order = append(order, 3)
				return nil
			},
		},
	}

	err := p.RunPre(context.Background(), 1, 2)
	if err != boom {
		t.Fatalf("RunPre err = %v, want boom", err)
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("RunPre ran %v, want [1 2] (stop at first error)", order)
	}
}

func TestPipelineRunPostNeverAborts(t *testing.T) {
	calls := 0
	p := &hooks.Pipeline{
		Post: []hooks.PostAction{
			func(ctx context.Context, serviceID, methodID uint8, callErr error) { calls++ },
			func(ctx context.Context, serviceID, methodID uint8, callErr error) { calls++ },
		},
	}
	p.RunPost(context.Background(), 1, 2, errors.New("some call error"))
	if calls != 2 {
		t.Fatalf("RunPost ran %d actions, want 2", calls)
	}
}

func TestNilPipelineIsANoop(t *testing.T) {
	var p *hooks.Pipeline
	if err := p.RunPre(context.Background(), 0, 0); err != nil {
		t.Fatalf("nil Pipeline RunPre returned %v, want nil", err)
	}
	p.RunPost(context.Background(), 0, 0, errors.New("ignored"))
}

func TestRateLimitPreActionSharesOneLimiter(t *testing.T) {
	pre := hooks.RateLimitPreAction(1, 2)
	ctx := context.Background()

	if err := pre(ctx, 0, 0); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if err := pre(ctx, 0, 0); err != nil {
		t.Fatalf("second call: %v", err)
	}
	if err := pre(ctx, 0, 0); err == nil {
		t.Fatal("third call should have exceeded the burst of 2")
	}
}

func TestWatchdogFiresOnlyWhenPostMissesTheDeadline(t *testing.T) {
	var timedOut atomic.Bool
	pre, post := hooks.Watchdog(func(serviceID, methodID uint8) { timedOut.Store(true) })

	// post runs well inside the deadline: the real timer pre started must
	// be stopped, not merely have its result ignored.
	fastCtx, fastCancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer fastCancel()
	if err := pre(fastCtx, 1, 1); err != nil {
		t.Fatalf("pre: %v", err)
	}
	post(fastCtx, 1, 1, nil)
	time.Sleep(250 * time.Millisecond)
	if timedOut.Load() {
		t.Fatal("Watchdog fired after post cancelled it before the deadline")
	}

	// Here nothing ever calls post before the deadline elapses — a
	// wrapped *errs.StatusError reaching post, as every real transport in
	// this tree produces, must not be required for the timer to fire.
	slowCtx, slowCancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer slowCancel()
	if err := pre(slowCtx, 2, 2); err != nil {
		t.Fatalf("pre: %v", err)
	}
	time.Sleep(60 * time.Millisecond)
	if !timedOut.Load() {
		t.Fatal("Watchdog did not fire once its own timer elapsed")
	}
}
