// Package concurrency bounds the number of in-flight subschema dispatches a
// single Composer run may have outstanding at once, adapted from the
// teacher's concurrencylimiter package (context-carried semaphore) to the
// composer's goroutine-per-dispatch model (SPEC_FULL.md §4.3, spec.md §5).
package concurrency

import "context"

type semaphore chan struct{}

func makeSemaphore(maxInFlight int) semaphore {
	return make(chan struct{}, maxInFlight)
}

func (s semaphore) acquire(ctx context.Context) error {
	select {
	case s <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s semaphore) release() {
	<-s
}

type limiterKey struct{}

// WithLimiter attaches a dispatch-concurrency limiter to ctx. A Composer
// dispatching many follow-up fetches for a large stitched array acquires a
// token per fetch via Acquire and releases it when the fetch completes,
// bounding how many subschema calls are outstanding at once regardless of
// how wide the fan-out is.
func WithLimiter(ctx context.Context, maxInFlight int) context.Context {
	if maxInFlight <= 0 {
		return ctx
	}
	return context.WithValue(ctx, limiterKey{}, makeSemaphore(maxInFlight))
}

// Acquire blocks until a dispatch token is available or ctx is cancelled. If
// ctx carries no limiter, Acquire is a no-op (unbounded concurrency).
func Acquire(ctx context.Context) error {
	sem, ok := ctx.Value(limiterKey{}).(semaphore)
	if !ok {
		return nil
	}
	return sem.acquire(ctx)
}

// Release returns a token acquired by Acquire. Safe to call even if ctx
// carries no limiter.
func Release(ctx context.Context) {
	sem, ok := ctx.Value(limiterKey{}).(semaphore)
	if !ok {
		return
	}
	sem.release()
}
