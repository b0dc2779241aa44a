package streamcap

import (
	"context"
	"fmt"

	"github.com/SamuelMarks/taskflow/internal/ctxlog"
	"github.com/SamuelMarks/taskflow/internal/execgraph"
	"github.com/SamuelMarks/taskflow/laneopt"
)

// Offload compiles the capture graph if no valid executable is cached,
// launches it, and blocks until the lane pool's work completes. The
// barrier is synchronous only for the calling goroutine; recorded
// operations run concurrently across lanes as dictated by the
// assignment. Device failures during compilation or launch surface here
// as *device.Error and are not retried.
func (c *Capturer) Offload(ctx context.Context) error {
	if err := c.ensureCompiled(ctx); err != nil {
		return err
	}
	if err := c.exec.Launch(ctx); err != nil {
		return err
	}
	c.launches++
	c.executed = true
	c.state = offloadedExplicitly
	return nil
}

// OffloadN calls Offload count times, stopping at the first failure.
// Compilation happens at most once across all launches as long as no
// rebind or topology edit intervenes.
func (c *Capturer) OffloadN(ctx context.Context, count int) error {
	for i := 0; i < count; i++ {
		if err := c.Offload(ctx); err != nil {
			return fmt.Errorf("offload %d of %d: %w", i+1, count, err)
		}
	}
	return nil
}

// OffloadUntil launches repeatedly until pred reports true. The
// predicate is evaluated after each launch; side effects inside it, such
// as advancing counters the graph's kernels read, are expected.
func (c *Capturer) OffloadUntil(ctx context.Context, pred func() bool) error {
	for {
		if err := c.Offload(ctx); err != nil {
			return err
		}
		if pred() {
			return nil
		}
	}
}

// ensureCompiled runs the lane optimizer and builds the executable when
// the cache is absent. A cached executable is reused untouched.
func (c *Capturer) ensureCompiled(ctx context.Context) error {
	if c.exec != nil {
		return nil
	}
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Executable cache absent, compiling.", "nodes", c.graph.Len())

	asg, err := laneopt.Plan(ctx, c.graph, len(c.pool))
	if err != nil {
		return fmt.Errorf("streamcap: planning lane assignment: %w", err)
	}
	exec, err := execgraph.Compile(ctx, c.graph, asg, c.rt, c.pool)
	if err != nil {
		return fmt.Errorf("streamcap: compiling executable graph: %w", err)
	}
	c.exec = exec
	c.compiles++
	logger.Debug("Executable graph cached.", "compilations", c.compiles)
	return nil
}

// Assignment returns the lane assignment of the cached executable, or
// nil when the cache is absent. Intended for reporting and diagnostics.
func (c *Capturer) Assignment() *laneopt.Assignment {
	if c.exec == nil {
		return nil
	}
	return c.exec.Assignment()
}
