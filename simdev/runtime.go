// Package simdev provides the in-process reference implementation of
// device.Runtime. Each lane is a goroutine draining an ordered command
// queue, so work on one lane executes in issue order while distinct
// lanes genuinely run concurrently. Cross-lane ordering is expressed
// only through events, mirroring the stream/event model of vendor
// runtimes.
package simdev

import (
	"context"
	"fmt"
	"sync"

	"github.com/SamuelMarks/taskflow/device"
	"github.com/SamuelMarks/taskflow/internal/ctxlog"
)

// queueDepth bounds how far ahead a caller can issue work on one lane
// before Async blocks. Large enough that compiled programs enqueue
// without backpressure in practice.
const queueDepth = 256

// Runtime is a simulated device context. The zero value is not usable;
// call New.
type Runtime struct {
	mu     sync.Mutex
	lanes  []*lane
	closed bool
	fault  *device.Error // first execution failure since the last Sync
	done   chan struct{} // closed by Close, unblocks stuck waits
}

// New creates an open simulated runtime with no lanes allocated yet.
func New() *Runtime {
	return &Runtime{done: make(chan struct{})}
}

// Lanes allocates a pool of n lanes. Each allocation starts n fresh
// goroutines; lanes live until the runtime is closed.
func (r *Runtime) Lanes(ctx context.Context, n int) ([]device.Lane, error) {
	if n <= 0 {
		return nil, fmt.Errorf("simdev: lane pool size must be positive, got %d", n)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, device.ErrClosed
	}
	out := make([]device.Lane, n)
	for i := 0; i < n; i++ {
		l := &lane{
			rt:   r,
			idx:  len(r.lanes),
			cmds: make(chan command, queueDepth),
		}
		l.wg.Add(1)
		go l.drain()
		r.lanes = append(r.lanes, l)
		out[i] = l
	}
	ctxlog.FromContext(ctx).Debug("Allocated simulated lane pool.", "lanes", n, "total", len(r.lanes))
	return out, nil
}

// NewEvent creates an unsignaled one-shot event.
func (r *Runtime) NewEvent() device.Event {
	return &event{ch: make(chan struct{})}
}

// Sync flushes every lane and blocks until all issued work has drained,
// then reports the first execution failure observed since the previous
// Sync. The fault is cleared on return so later launches start clean.
func (r *Runtime) Sync(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return device.ErrClosed
	}
	lanes := make([]*lane, len(r.lanes))
	copy(lanes, r.lanes)
	r.mu.Unlock()

	flushed := make([]chan struct{}, len(lanes))
	for i, l := range lanes {
		ch := make(chan struct{})
		flushed[i] = ch
		l.cmds <- command{kind: cmdFlush, flush: ch}
	}
	for _, ch := range flushed {
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	r.mu.Lock()
	fault := r.fault
	r.fault = nil
	r.mu.Unlock()
	if fault != nil {
		ctxlog.FromContext(ctx).Debug("Sync observed a lane fault.", "lane", fault.Lane, "error", fault.Err)
		return fault
	}
	return nil
}

// Close stops all lane goroutines and rejects further use. Pending work
// already issued on a lane is drained before its goroutine exits.
func (r *Runtime) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	lanes := r.lanes
	close(r.done)
	r.mu.Unlock()

	for _, l := range lanes {
		close(l.cmds)
		l.wg.Wait()
	}
	return nil
}

// recordFault stores the first failure since the last Sync. Later
// failures on any lane are dropped; the runtime reports one fatal error
// per launch, like the vendor runtimes it stands in for.
func (r *Runtime) recordFault(laneIdx int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fault == nil {
		r.fault = &device.Error{Lane: laneIdx, Err: err}
	}
}

func (r *Runtime) faulted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fault != nil
}
