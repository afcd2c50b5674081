package pipeline_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/scratchlab/sb3-metrics-pipeline/internal/pipeline"
)

func TestDispatchDeliversEveryItemOnce(t *testing.T) {
	t.Parallel()

	items := make([]int, 100)
	for i := range items {
		items[i] = i
	}

	var got []int
	err := pipeline.Dispatch(context.Background(), items,
		func(n int) int { return n },
		func(n int) error {
			got = append(got, n)
			return nil
		},
		pipeline.DispatchOptions{Workers: 8, ChunkSize: 4},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != len(items) {
		t.Fatalf("expected %d results, got %d", len(items), len(got))
	}
	sort.Ints(got)
	for i, n := range got {
		if n != i {
			t.Fatalf("missing or duplicated result near %d: %v", i, got[:i+1])
		}
	}
}

func TestDispatchBoundsConcurrency(t *testing.T) {
	t.Parallel()

	const workers = 3
	var inFlight, peak atomic.Int64

	err := pipeline.Dispatch(context.Background(), make([]struct{}, 50),
		func(struct{}) struct{} {
			cur := inFlight.Add(1)
			for {
				p := peak.Load()
				if cur <= p || peak.CompareAndSwap(p, cur) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inFlight.Add(-1)
			return struct{}{}
		},
		func(struct{}) error { return nil },
		pipeline.DispatchOptions{Workers: workers},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p := peak.Load(); p > workers {
		t.Fatalf("concurrency exceeded bound: peak=%d", p)
	}
}

func TestDispatchConsumerErrorStopsSubmission(t *testing.T) {
	t.Parallel()

	boom := errors.New("schema drift")
	var processed atomic.Int64
	delivered := 0

	err := pipeline.Dispatch(context.Background(), make([]int, 1000),
		func(n int) int {
			processed.Add(1)
			return n
		},
		func(int) error {
			delivered++
			if delivered == 1 {
				return boom
			}
			return nil
		},
		pipeline.DispatchOptions{Workers: 2},
	)
	if !errors.Is(err, boom) {
		t.Fatalf("expected consumer error, got %v", err)
	}
	if delivered != 1 {
		t.Fatalf("results must not be delivered after a fatal consumer error, got %d", delivered)
	}
	if p := processed.Load(); p >= 1000 {
		t.Fatalf("submission should have stopped early, processed %d", p)
	}
}

func TestDispatchCancelDrainsInFlight(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	var mu sync.Mutex
	var delivered []int
	started := make(chan struct{}, 1)

	err := pipeline.Dispatch(ctx, []int{1, 2, 3, 4, 5},
		func(n int) int {
			if n == 1 {
				// Interrupt while the first item is mid-flight.
				select {
				case started <- struct{}{}:
				default:
				}
				cancel()
				time.Sleep(10 * time.Millisecond)
			}
			return n
		},
		func(n int) error {
			mu.Lock()
			delivered = append(delivered, n)
			mu.Unlock()
			return nil
		},
		pipeline.DispatchOptions{Workers: 1},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(delivered) == 0 {
		t.Fatalf("the in-flight item must still be delivered after cancel")
	}
	if delivered[0] != 1 {
		t.Fatalf("unexpected first delivery: %v", delivered)
	}
	if len(delivered) == 5 {
		t.Fatalf("cancel should have prevented some submissions")
	}
}

func TestDispatchEmptyInput(t *testing.T) {
	t.Parallel()

	err := pipeline.Dispatch(context.Background(), nil,
		func(n int) int { return n },
		func(int) error { return errors.New("must not be called") },
		pipeline.DispatchOptions{},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
