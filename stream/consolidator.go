// Package stream implements the Stream Consolidator (spec.md §4.4): it
// merges a dynamically growing set of lazy incremental-payload sequences
// into one fair, ordered-per-source stream, and itself satisfies
// subschema.Source so a subscription's single lazy sequence and a query's
// consolidated follow-up stream are consumed identically by the gateway
// (SPEC_FULL.md "Subscription fan-in").
package stream

import (
	"context"
	"sync"

	"github.com/stitchgql/federate/subschema"
)

// Processor transforms or filters each payload as it is emitted. Returning
// keep == false drops the payload from the consolidated stream entirely.
type Processor func(subschema.IncrementalPayload) (out subschema.IncrementalPayload, keep bool)

// item carries one source's payload (or its terminal error) through the
// fan-in channel.
type item struct {
	payload subschema.IncrementalPayload
	err     error
}

// Consolidator fans in N subschema.Source sequences into one. Safe for
// concurrent AddSource/Next/Close calls.
type Consolidator struct {
	processor Processor

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu       sync.Mutex
	closed   bool
	active   int
	allDone  chan struct{} // closed once closed==true and active drops to 0
	doneOnce sync.Once

	out chan item
}

// NewConsolidator builds an empty Consolidator. Sources may be added any
// time before Close via AddSource.
func NewConsolidator() *Consolidator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Consolidator{
		baseCtx:    ctx,
		baseCancel: cancel,
		allDone:    make(chan struct{}),
		out:        make(chan item),
	}
}

// SetProcessor installs a per-item transform/filter. Must be called before
// any source starts emitting (i.e. before the first AddSource), since it is
// read without a lock from each source's pump goroutine.
func (c *Consolidator) SetProcessor(p Processor) {
	c.processor = p
}

// AddSource registers a new lazy sequence to fan in. A no-op once Close has
// been called.
func (c *Consolidator) AddSource(src subschema.Source) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		src.Close()
		return
	}
	c.active++
	c.mu.Unlock()

	go c.pump(src)
}

func (c *Consolidator) pump(src subschema.Source) {
	defer c.finishSource(src)

	for {
		payload, ok, err := src.Next(c.baseCtx)
		if err != nil {
			select {
			case c.out <- item{err: err}:
			case <-c.baseCtx.Done():
			}
			return
		}
		if !ok {
			return
		}

		if c.processor != nil {
			var keep bool
			payload, keep = c.processor(payload)
			if !keep {
				continue
			}
		}

		select {
		case c.out <- item{payload: payload}:
		case <-c.baseCtx.Done():
			return
		}
	}
}

func (c *Consolidator) finishSource(src subschema.Source) {
	src.Close()

	c.mu.Lock()
	c.active--
	done := c.closed && c.active == 0
	c.mu.Unlock()

	if done {
		c.doneOnce.Do(func() { close(c.allDone) })
	}
}

// Next implements subschema.Source: it blocks until some source has a
// payload, the consolidator is closed and every held source has exhausted
// (ok == false, the "final termination value" of spec.md §4.4), or ctx is
// cancelled.
func (c *Consolidator) Next(ctx context.Context) (subschema.IncrementalPayload, bool, error) {
	select {
	case it := <-c.out:
		return it.payload, true, it.err
	case <-c.allDone:
		return subschema.IncrementalPayload{HasNext: false}, false, nil
	case <-ctx.Done():
		return subschema.IncrementalPayload{}, false, ctx.Err()
	}
}

// Close stops accepting new sources. Once every currently-held source has
// exhausted, Next begins returning ok == false. Close does not itself cancel
// in-flight sources; use Cancel for that.
func (c *Consolidator) Close() error {
	c.mu.Lock()
	c.closed = true
	done := c.active == 0
	c.mu.Unlock()

	if done {
		c.doneOnce.Do(func() { close(c.allDone) })
	}
	return nil
}

// Cancel implements spec.md §5 "Cancellation": drains pending in-flight
// reads and calls the return hook (Close) on every underlying source, then
// marks the consolidator closed.
func (c *Consolidator) Cancel() {
	c.baseCancel()
	c.Close()
}
