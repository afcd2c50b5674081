package pipeline

import (
	"context"
	"runtime"
	"sync"
)

// DispatchOptions configures the worker pool.
type DispatchOptions struct {
	// Workers bounds concurrent invocations. <=0 means min(GOMAXPROCS, 8):
	// the pool also bounds metadata-API load, so it stays small by default.
	Workers int

	// ChunkSize buffers submissions ahead of the workers. <=0 means unbuffered.
	ChunkSize int
}

func (o DispatchOptions) withDefaults() DispatchOptions {
	if o.Workers <= 0 {
		o.Workers = min(runtime.GOMAXPROCS(0), 8)
	}
	if o.ChunkSize < 0 {
		o.ChunkSize = 0
	}
	return o
}

// Dispatch runs fn over all items with bounded concurrency and hands each
// result to onResult on the caller's goroutine, in completion order.
//
// Guarantees:
//   - every submitted item yields exactly one result;
//   - cancelling ctx stops submission of new items, while items already
//     picked up by a worker run to completion and are still delivered;
//   - a non-nil error from onResult stops submission and is returned after
//     in-flight items drain. Later results are discarded, not delivered.
func Dispatch[In any, Out any](
	ctx context.Context,
	items []In,
	fn func(In) Out,
	onResult func(Out) error,
	opts DispatchOptions,
) error {
	opts = opts.withDefaults()

	subCtx, stopSubmitting := context.WithCancel(ctx)
	defer stopSubmitting()

	jobs := make(chan In, opts.ChunkSize)
	done := make(chan Out, opts.Workers)

	var wg sync.WaitGroup
	for i := 0; i < opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range jobs {
				done <- fn(item)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, item := range items {
			if subCtx.Err() != nil {
				return
			}
			select {
			case jobs <- item:
			case <-subCtx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(done)
	}()

	var firstErr error
	for out := range done {
		if firstErr != nil {
			continue
		}
		if err := onResult(out); err != nil {
			firstErr = err
			stopSubmitting()
		}
	}
	return firstErr
}
