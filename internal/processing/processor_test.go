package processing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestPoolRunsJobs(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}
	done := make(chan struct{}, 3)
	pool := New(func(_ context.Context, id string) error {
		mu.Lock()
		seen[id] = true
		mu.Unlock()
		done <- struct{}{}
		return nil
	}, 2, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	for _, id := range []string{"d-1", "d-2", "d-3"} {
		if err := pool.Dispatch(ctx, id); err != nil {
			t.Fatalf("dispatch %s: %v", id, err)
		}
	}
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for jobs")
		}
	}
	cancel()
	pool.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 3 {
		t.Fatalf("expected 3 jobs handled, got %v", seen)
	}
}

func TestPoolFullQueue(t *testing.T) {
	// Workers are never started, so the buffer (1 worker * 4) fills up.
	pool := New(func(context.Context, string) error { return nil }, 1, zap.NewNop())
	for i := 0; i < 4; i++ {
		if err := pool.Dispatch(context.Background(), "d"); err != nil {
			t.Fatalf("dispatch %d: %v", i, err)
		}
	}
	if err := pool.Dispatch(context.Background(), "overflow"); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}
