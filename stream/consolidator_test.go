package stream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitchgql/federate/subschema"
)

type fakeSource struct {
	items  []subschema.IncrementalPayload
	idx    int
	closed bool
}

func (f *fakeSource) Next(ctx context.Context) (subschema.IncrementalPayload, bool, error) {
	if f.idx >= len(f.items) {
		return subschema.IncrementalPayload{}, false, nil
	}
	p := f.items[f.idx]
	f.idx++
	return p, true, nil
}

func (f *fakeSource) Close() error {
	f.closed = true
	return nil
}

func TestConsolidator_FansInAndTerminates(t *testing.T) {
	c := NewConsolidator()

	src1 := &fakeSource{items: []subschema.IncrementalPayload{{HasNext: true}, {HasNext: false}}}
	src2 := &fakeSource{items: []subschema.IncrementalPayload{{HasNext: false}}}

	c.AddSource(src1)
	c.AddSource(src2)
	require.NoError(t, c.Close())

	ctx := context.Background()
	var got int
	for {
		_, ok, err := c.Next(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		got++
	}

	assert.Equal(t, 3, got)
	assert.True(t, src1.closed)
	assert.True(t, src2.closed)
}

func TestConsolidator_AddSourceAfterCloseIsClosedImmediately(t *testing.T) {
	c := NewConsolidator()
	require.NoError(t, c.Close())

	late := &fakeSource{items: []subschema.IncrementalPayload{{HasNext: false}}}
	c.AddSource(late)

	assert.True(t, late.closed)
}

type blockingSource struct {
	closed chan struct{}
}

func (b *blockingSource) Next(ctx context.Context) (subschema.IncrementalPayload, bool, error) {
	<-ctx.Done()
	return subschema.IncrementalPayload{}, false, ctx.Err()
}

func (b *blockingSource) Close() error {
	close(b.closed)
	return nil
}

func TestConsolidator_CancelCallsReturnHookOnBlockedSources(t *testing.T) {
	c := NewConsolidator()
	blocked := &blockingSource{closed: make(chan struct{})}
	c.AddSource(blocked)

	c.Cancel()

	select {
	case <-blocked.closed:
	case <-time.After(time.Second):
		t.Fatal("expected Close to be called on the blocked source after Cancel")
	}
}

func TestConsolidator_ProcessorCanFilter(t *testing.T) {
	c := NewConsolidator()
	c.SetProcessor(func(p subschema.IncrementalPayload) (subschema.IncrementalPayload, bool) {
		return p, len(p.Incremental) > 0
	})

	src := &fakeSource{items: []subschema.IncrementalPayload{
		{HasNext: true},
		{HasNext: true, Incremental: []subschema.IncrementalItem{{Path: []interface{}{"a"}}}},
	}}
	c.AddSource(src)
	require.NoError(t, c.Close())

	ctx := context.Background()
	p, ok, err := c.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, p.Incremental, 1)

	_, ok, err = c.Next(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}
