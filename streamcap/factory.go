package streamcap

import (
	"github.com/SamuelMarks/taskflow/device"
)

// Factory is the capability a child capturer receives over its parent's
// graph and lane pool. It exposes the node-creation and rebind surface
// without handing out ownership: nodes created through a Factory land in
// the parent's graph and are compiled and offloaded by the parent.
type Factory struct {
	c *Capturer
}

// Capture records a new node in the parent's graph. See Capturer.Capture.
func (f *Factory) Capture(body func(device.Lane) error) (NodeHandle, error) {
	return f.c.Capture(body)
}

// Kernel adds a kernel node to the parent's graph. See Capturer.Kernel.
func (f *Factory) Kernel(cfg LaunchConfig, fn KernelFunc, args ...any) (NodeHandle, error) {
	return f.c.Kernel(cfg, fn, args...)
}

// Copy adds a copy node to the parent's graph. See Capturer.Copy.
func (f *Factory) Copy(dst, src []byte, count int) (NodeHandle, error) {
	return f.c.Copy(dst, src, count)
}

// Memset adds a fill node to the parent's graph. See Capturer.Memset.
func (f *Factory) Memset(dst []byte, value byte, count int) (NodeHandle, error) {
	return f.c.Memset(dst, value, count)
}

// RebindOn re-captures a node owned by the parent. See Capturer.RebindOn.
func (f *Factory) RebindOn(h NodeHandle, body func(device.Lane) error) error {
	return f.c.RebindOn(h, body)
}

// MakeChild constructs a user-defined capturer scoped to parent. The
// build function receives the parent's Factory capability and typically
// stores it for later node-creation calls; stateful helpers (handles to
// a domain-library context, say) persist across those calls. The parent
// registers the child and, on Release, closes children implementing
// io.Closer in reverse creation order.
func MakeChild[T any](parent *Capturer, build func(*Factory) (T, error)) (T, error) {
	child, err := build(&Factory{c: parent})
	if err != nil {
		var zero T
		return zero, err
	}
	parent.children = append(parent.children, child)
	return child, nil
}
