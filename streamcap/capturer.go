// Package streamcap implements stream-capture task graphs: it records
// sequences of asynchronous device operations issued through an opaque
// capture handle, assembles them into a dependency graph, and compiles
// that graph into an executable whose operations are spread across a
// pool of hardware lanes for maximum concurrency.
//
// A Capturer owns one capture graph, a bounded lane pool and at most one
// compiled executable. Building the graph is single-threaded per
// Capturer; callers sharing one Capturer across goroutines must
// serialize access themselves. The compiled executable, once launched,
// runs genuinely in parallel across lanes.
package streamcap

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/SamuelMarks/taskflow/capgraph"
	"github.com/SamuelMarks/taskflow/device"
	"github.com/SamuelMarks/taskflow/internal/ctxlog"
	"github.com/SamuelMarks/taskflow/internal/execgraph"
	"github.com/SamuelMarks/taskflow/simdev"
)

// DefaultLanes is the lane pool size used when Config.Lanes is zero.
const DefaultLanes = 4

// Config controls Capturer construction.
type Config struct {
	// Runtime is the device context the capturer allocates its lane pool
	// under. A Capturer must not outlive its runtime. When nil, the
	// capturer creates and owns a simulated runtime, closing it on
	// Release.
	Runtime device.Runtime

	// Lanes bounds the lane pool. Layers wider than the pool reuse lanes
	// cyclically; correctness is unaffected, some independent work just
	// serializes. Defaults to DefaultLanes.
	Lanes int
}

type offloadState int

const (
	notOffloaded offloadState = iota
	offloadedExplicitly
)

// Capturer is the top-level owner of a capture graph, its lane pool and
// the compiled executable cache.
type Capturer struct {
	rt     device.Runtime
	ownsRT bool
	graph  *capgraph.Graph
	pool   []device.Lane

	// exec is the compiled executable; nil means Absent. Any rebind or
	// topology edit resets it to nil, forcing lazy recompilation on the
	// next offload.
	exec *execgraph.Graph

	state    offloadState
	executed bool
	children []any

	compiles int
	launches int
}

// New creates a Capturer and allocates its lane pool. Release must be
// called when the capturer is no longer needed.
func New(ctx context.Context, cfg Config) (*Capturer, error) {
	rt := cfg.Runtime
	ownsRT := false
	if rt == nil {
		rt = simdev.New()
		ownsRT = true
	}
	lanes := cfg.Lanes
	if lanes <= 0 {
		lanes = DefaultLanes
	}

	pool, err := rt.Lanes(ctx, lanes)
	if err != nil {
		if ownsRT {
			rt.Close()
		}
		return nil, fmt.Errorf("streamcap: allocating lane pool: %w", err)
	}
	ctxlog.FromContext(ctx).Debug("Capturer created.", "lanes", lanes)

	return &Capturer{
		rt:     rt,
		ownsRT: ownsRT,
		graph:  capgraph.New(),
		pool:   pool,
	}, nil
}

// Capture opens a capture session, invokes body with the session lane,
// and packages everything the body issued via Lane.Async into a new
// node. The body must only issue asynchronous operations against the
// provided lane; altering other lane state is a protocol violation that
// surfaces, at best, as a downstream device error.
//
// The recording lane is arbitrary: execution lanes are assigned per
// compilation by the optimizer, not at capture time.
func (c *Capturer) Capture(body func(device.Lane) error) (NodeHandle, error) {
	ops, err := c.record(body)
	if err != nil {
		return NodeHandle{}, err
	}
	id := c.graph.AddNode(ops, "")
	c.invalidate()
	return NodeHandle{c: c, id: id}, nil
}

// record runs one capture session on the pool's recording lane and
// returns the recorded operation sequence.
func (c *Capturer) record(body func(device.Lane) error) ([]device.Op, error) {
	lane := c.pool[0]
	tok, err := c.rt.BeginCapture(lane)
	if err != nil {
		return nil, fmt.Errorf("streamcap: opening capture session: %w", err)
	}
	bodyErr := body(lane)
	ops, endErr := c.rt.EndCapture(tok)
	if bodyErr != nil {
		return nil, fmt.Errorf("streamcap: capture body failed: %w", bodyErr)
	}
	if endErr != nil {
		return nil, fmt.Errorf("streamcap: closing capture session: %w", endErr)
	}
	return ops, nil
}

// invalidate discards the compiled executable. The next offload
// recompiles against the graph's current topology and bindings.
func (c *Capturer) invalidate() {
	c.exec = nil
}

// Graph exposes the underlying capture graph for read-only inspection.
func (c *Capturer) Graph() *capgraph.Graph { return c.graph }

// Executed reports whether this capturer has offloaded at least once.
func (c *Capturer) Executed() bool { return c.executed }

// Clear discards every node and edge along with any compiled executable.
func (c *Capturer) Clear() {
	c.graph.Clear()
	c.invalidate()
}

// Release destroys the capturer: child capturers are closed in reverse
// creation order, the executable cache is dropped, and a runtime the
// capturer created itself is closed. The capturer must not be used
// afterwards.
func (c *Capturer) Release(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	var errs []error
	for i := len(c.children) - 1; i >= 0; i-- {
		if closer, ok := c.children[i].(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("streamcap: closing child %d: %w", i, err))
			}
		}
	}
	c.children = nil
	c.invalidate()
	if c.ownsRT {
		if err := c.rt.Close(); err != nil {
			errs = append(errs, fmt.Errorf("streamcap: closing runtime: %w", err))
		}
	}
	logger.Debug("Capturer released.", "errors", len(errs))
	return errors.Join(errs...)
}
