package streamcap

import "github.com/SamuelMarks/taskflow/capgraph"

// Structural errors are synchronous: they are reported at the call that
// caused them and never surface later at offload time. Device failures,
// by contrast, surface as *device.Error at whichever offload triggered
// compilation or launch.
var (
	// ErrCycle rejects an edge addition that would make the graph
	// cyclic.
	ErrCycle = capgraph.ErrCycle

	// ErrInvalidNode rejects a rebind or precedence operation that
	// references a node not owned by this capturer.
	ErrInvalidNode = capgraph.ErrInvalidNode
)
