package streamcap

import (
	"fmt"

	"github.com/SamuelMarks/taskflow/device"
)

// Rebinding replaces a node's recorded operations in place. The node's
// identity and every precedence edge are preserved; the compiled
// executable, if any, is discarded so the next offload recompiles.
// Rebinds must not race an in-flight offload on the same capturer; that
// precondition is the caller's to enforce.

// RebindOn re-captures the node from a new body, as Capture would.
func (c *Capturer) RebindOn(h NodeHandle, body func(device.Lane) error) error {
	if h.c != c {
		return fmt.Errorf("%w: handle does not belong to this capturer", ErrInvalidNode)
	}
	ops, err := c.record(body)
	if err != nil {
		return err
	}
	return c.rebind(h, ops)
}

// RebindKernel replaces the node's recording with a kernel call built
// from the given shape, function and arguments.
func (c *Capturer) RebindKernel(h NodeHandle, cfg LaunchConfig, fn KernelFunc, args ...any) error {
	if fn == nil {
		return fmt.Errorf("streamcap: kernel function must not be nil")
	}
	return c.RebindOn(h, func(lane device.Lane) error {
		lane.Async(kernelOp(cfg, fn, args))
		return nil
	})
}

// RebindCopy replaces the node's recording with a copy of count bytes
// from src to dst.
func (c *Capturer) RebindCopy(h NodeHandle, dst, src []byte, count int) error {
	if err := checkCopy(dst, src, count); err != nil {
		return err
	}
	return c.RebindOn(h, func(lane device.Lane) error {
		lane.Async(copyOp(dst, src, count))
		return nil
	})
}

// RebindMemset replaces the node's recording with a fill of the first
// count bytes of dst.
func (c *Capturer) RebindMemset(h NodeHandle, dst []byte, value byte, count int) error {
	if err := checkFill(dst, count); err != nil {
		return err
	}
	return c.RebindOn(h, func(lane device.Lane) error {
		lane.Async(fillOp(dst, value, count))
		return nil
	})
}

func (c *Capturer) rebind(h NodeHandle, ops []device.Op) error {
	if err := c.graph.SetOps(h.id, ops); err != nil {
		return err
	}
	c.invalidate()
	return nil
}
