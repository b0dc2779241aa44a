package streamcap

import (
	"fmt"

	"github.com/SamuelMarks/taskflow/capgraph"
)

// NodeHandle refers to one node of a capturer's graph. Handles are only
// minted by the capturer that owns the node; passing a handle to another
// capturer's operations fails with ErrInvalidNode.
type NodeHandle struct {
	c  *Capturer
	id capgraph.NodeID
}

// ID returns the node's identity within its owning graph.
func (h NodeHandle) ID() capgraph.NodeID { return h.id }

// Precede adds the constraint that h completes before each of the given
// nodes starts. An edge that would close a cycle is rejected with
// ErrCycle and the graph is unchanged; edges added by earlier arguments
// of the same call remain.
func (h NodeHandle) Precede(others ...NodeHandle) error {
	for _, o := range others {
		if err := h.c.addEdge(h, o); err != nil {
			return err
		}
	}
	return nil
}

// Succeed adds the constraint that h starts only after each of the given
// nodes completes.
func (h NodeHandle) Succeed(others ...NodeHandle) error {
	for _, o := range others {
		if err := h.c.addEdge(o, h); err != nil {
			return err
		}
	}
	return nil
}

// Name labels the node for logs and error messages and returns the
// handle for chaining.
func (h NodeHandle) Name(label string) NodeHandle {
	if h.c != nil {
		// A handle minted by this capturer always resolves; the error
		// path only exists for the zero handle, filtered above.
		_ = h.c.graph.SetLabel(h.id, label)
	}
	return h
}

// addEdge validates handle ownership, adds u -> v, and invalidates the
// compiled executable on success.
func (c *Capturer) addEdge(u, v NodeHandle) error {
	if u.c != c || v.c != c {
		return fmt.Errorf("%w: handle does not belong to this capturer", ErrInvalidNode)
	}
	if err := c.graph.AddEdge(u.id, v.id); err != nil {
		return err
	}
	c.invalidate()
	return nil
}

// RemoveEdges deletes every incoming and outgoing edge of the node,
// keeping the node and its recorded operations. Typically used after a
// rebind to restructure downstream topology.
func (c *Capturer) RemoveEdges(h NodeHandle) error {
	if h.c != c {
		return fmt.Errorf("%w: handle does not belong to this capturer", ErrInvalidNode)
	}
	if err := c.graph.RemoveAllEdgesFrom(h.id); err != nil {
		return err
	}
	c.invalidate()
	return nil
}
