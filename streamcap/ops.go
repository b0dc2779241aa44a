package streamcap

import (
	"context"
	"fmt"

	"github.com/SamuelMarks/taskflow/device"
)

// LaunchConfig describes the execution shape requested for a kernel
// node. The simulated runtime has no thread hierarchy to honor; the
// shape is carried through so rebinding a kernel to a different shape is
// observable and so real runtimes can consume it.
type LaunchConfig struct {
	Grid  int
	Block int
}

// KernelFunc is the body of a kernel node, invoked once per launch with
// the configured shape and the arguments bound at creation or rebind
// time.
type KernelFunc func(ctx context.Context, cfg LaunchConfig, args []any) error

// Kernel adds a node that invokes fn with the given shape and arguments.
// It is a thin wrapper over Capture that issues the single matching
// async call itself.
func (c *Capturer) Kernel(cfg LaunchConfig, fn KernelFunc, args ...any) (NodeHandle, error) {
	if fn == nil {
		return NodeHandle{}, fmt.Errorf("streamcap: kernel function must not be nil")
	}
	return c.Capture(func(lane device.Lane) error {
		lane.Async(kernelOp(cfg, fn, args))
		return nil
	})
}

// Copy adds a node that copies count bytes from src to dst when the
// compiled graph runs.
func (c *Capturer) Copy(dst, src []byte, count int) (NodeHandle, error) {
	if err := checkCopy(dst, src, count); err != nil {
		return NodeHandle{}, err
	}
	return c.Capture(func(lane device.Lane) error {
		lane.Async(copyOp(dst, src, count))
		return nil
	})
}

// Memset adds a node that sets the first count bytes of dst to value
// when the compiled graph runs.
func (c *Capturer) Memset(dst []byte, value byte, count int) (NodeHandle, error) {
	if err := checkFill(dst, count); err != nil {
		return NodeHandle{}, err
	}
	return c.Capture(func(lane device.Lane) error {
		lane.Async(fillOp(dst, value, count))
		return nil
	})
}

func kernelOp(cfg LaunchConfig, fn KernelFunc, args []any) device.Op {
	return func(ctx context.Context) error {
		return fn(ctx, cfg, args)
	}
}

func copyOp(dst, src []byte, count int) device.Op {
	return func(context.Context) error {
		copy(dst[:count], src[:count])
		return nil
	}
}

func fillOp(dst []byte, value byte, count int) device.Op {
	return func(context.Context) error {
		for i := 0; i < count; i++ {
			dst[i] = value
		}
		return nil
	}
}

func checkCopy(dst, src []byte, count int) error {
	if count < 0 || count > len(dst) || count > len(src) {
		return fmt.Errorf("streamcap: copy count %d out of range (dst %d, src %d)", count, len(dst), len(src))
	}
	return nil
}

func checkFill(dst []byte, count int) error {
	if count < 0 || count > len(dst) {
		return fmt.Errorf("streamcap: memset count %d out of range (dst %d)", count, len(dst))
	}
	return nil
}
