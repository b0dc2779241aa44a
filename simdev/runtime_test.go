package simdev

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SamuelMarks/taskflow/device"
)

// recorder collects markers from ops running on multiple lanes.
type recorder struct {
	mu      sync.Mutex
	entries []string
}

func (r *recorder) mark(s string) device.Op {
	return func(context.Context) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.entries = append(r.entries, s)
		return nil
	}
}

func (r *recorder) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.entries))
	copy(out, r.entries)
	return out
}

func TestLanesAllocation(t *testing.T) {
	rt := New()
	defer rt.Close()

	pool, err := rt.Lanes(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, pool, 3)
	for i, l := range pool {
		assert.Equal(t, i, l.Index())
	}

	_, err = rt.Lanes(context.Background(), 0)
	assert.Error(t, err)
}

func TestLaneExecutesInIssueOrder(t *testing.T) {
	rt := New()
	defer rt.Close()
	pool, err := rt.Lanes(context.Background(), 1)
	require.NoError(t, err)

	rec := &recorder{}
	for _, s := range []string{"a", "b", "c", "d"} {
		pool[0].Async(rec.mark(s))
	}
	require.NoError(t, rt.Sync(context.Background()))
	assert.Equal(t, []string{"a", "b", "c", "d"}, rec.got())
}

func TestEventsOrderAcrossLanes(t *testing.T) {
	rt := New()
	defer rt.Close()
	pool, err := rt.Lanes(context.Background(), 2)
	require.NoError(t, err)

	rec := &recorder{}
	ev := rt.NewEvent()

	// Lane 1 must not run its op until lane 0 signals.
	pool[1].Wait(ev)
	pool[1].Async(rec.mark("after"))
	pool[0].Async(rec.mark("before"))
	pool[0].Signal(ev)

	require.NoError(t, rt.Sync(context.Background()))
	assert.Equal(t, []string{"before", "after"}, rec.got())
}

func TestFaultSurfacesAtSyncAndClears(t *testing.T) {
	rt := New()
	defer rt.Close()
	pool, err := rt.Lanes(context.Background(), 2)
	require.NoError(t, err)

	boom := errors.New("boom")
	rec := &recorder{}
	pool[1].Async(func(context.Context) error { return boom })

	err = rt.Sync(context.Background())
	require.Error(t, err)
	var devErr *device.Error
	require.ErrorAs(t, err, &devErr)
	assert.Equal(t, 1, devErr.Lane)
	assert.ErrorIs(t, err, boom)

	// The fault is consumed; the next launch starts clean.
	pool[0].Async(rec.mark("ok"))
	require.NoError(t, rt.Sync(context.Background()))
	assert.Equal(t, []string{"ok"}, rec.got())
}

func TestFaultSkipsRemainingOps(t *testing.T) {
	rt := New()
	defer rt.Close()
	pool, err := rt.Lanes(context.Background(), 1)
	require.NoError(t, err)

	rec := &recorder{}
	pool[0].Async(func(context.Context) error { return errors.New("boom") })
	pool[0].Async(rec.mark("unreachable"))

	require.Error(t, rt.Sync(context.Background()))
	assert.Empty(t, rec.got())
}

func TestCaptureRecordsInsteadOfExecuting(t *testing.T) {
	rt := New()
	defer rt.Close()
	pool, err := rt.Lanes(context.Background(), 1)
	require.NoError(t, err)

	rec := &recorder{}
	tok, err := rt.BeginCapture(pool[0])
	require.NoError(t, err)

	pool[0].Async(rec.mark("captured-1"))
	pool[0].Async(rec.mark("captured-2"))

	ops, err := rt.EndCapture(tok)
	require.NoError(t, err)
	require.Len(t, ops, 2)

	// Nothing ran during the session.
	require.NoError(t, rt.Sync(context.Background()))
	assert.Empty(t, rec.got())

	// Replaying the recording executes in issue order.
	for _, op := range ops {
		require.NoError(t, op(context.Background()))
	}
	assert.Equal(t, []string{"captured-1", "captured-2"}, rec.got())
}

func TestCaptureProtocolErrors(t *testing.T) {
	rt := New()
	defer rt.Close()
	pool, err := rt.Lanes(context.Background(), 1)
	require.NoError(t, err)

	tok, err := rt.BeginCapture(pool[0])
	require.NoError(t, err)

	// Nested sessions on one lane are rejected.
	_, err = rt.BeginCapture(pool[0])
	assert.Error(t, err)

	_, err = rt.EndCapture(tok)
	require.NoError(t, err)

	// A token cannot be closed twice.
	_, err = rt.EndCapture(tok)
	assert.Error(t, err)

	_, err = rt.EndCapture(nil)
	assert.Error(t, err)
}

func TestCloseRejectsFurtherUse(t *testing.T) {
	rt := New()
	_, err := rt.Lanes(context.Background(), 1)
	require.NoError(t, err)

	require.NoError(t, rt.Close())
	require.NoError(t, rt.Close()) // idempotent

	_, err = rt.Lanes(context.Background(), 1)
	assert.ErrorIs(t, err, device.ErrClosed)
	assert.ErrorIs(t, rt.Sync(context.Background()), device.ErrClosed)
}

func TestSyncHonorsContext(t *testing.T) {
	rt := New()
	pool, err := rt.Lanes(context.Background(), 1)
	require.NoError(t, err)

	// Block the lane on an event nobody signals.
	pool[0].Wait(rt.NewEvent())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = rt.Sync(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// Close unblocks the stuck lane so shutdown is clean.
	require.NoError(t, rt.Close())
}
