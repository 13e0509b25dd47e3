package tuning

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunPoolStopsAfterFirstError(t *testing.T) {
	boom := errors.New("boom")
	var calls atomic.Int32
	items := make([]int, 100)
	_, err := runPool(context.Background(), 1, items, func(_ context.Context, idx int, _ int) (int, error) {
		calls.Add(1)
		if idx == 3 {
			return 0, boom
		}
		return idx, nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if got := calls.Load(); got != 4 {
		t.Fatalf("expected 4 calls before stopping, got %d", got)
	}
}

func TestRunPoolCancelsInFlightItems(t *testing.T) {
	boom := errors.New("boom")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	items := make([]int, 6)
	start := time.Now()
	_, err := runPool(ctx, len(items), items, func(ctx context.Context, idx int, _ int) (int, error) {
		if idx == len(items)-1 {
			return 0, boom
		}
		<-ctx.Done()
		return 0, ctx.Err()
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom ahead of cancelled items, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("pool waited %s for cancelled items", elapsed)
	}
}

func TestRunPoolReportsParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := runPool(ctx, 2, []int{1, 2, 3}, func(context.Context, int, int) (int, error) {
		return 0, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}
