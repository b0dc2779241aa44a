// Package capgraph holds the logical DAG of deferred device operations
// built up during a capture session. Nodes carry recorded operation
// sequences; edges carry precedence constraints. The graph is always
// acyclic: any edge addition that would close a cycle is rejected and
// leaves the graph untouched.
package capgraph

import (
	"fmt"
	"sort"
	"sync"

	"github.com/SamuelMarks/taskflow/device"
)

// NodeID identifies a node within its owning graph. IDs are assigned in
// insertion order and are never reused; rebinding replaces a node's
// recorded operations in place and keeps the ID stable.
type NodeID int

// Node is one captured unit of work plus its precedence edge sets.
type Node struct {
	id    NodeID
	label string
	ops   []device.Op
	preds map[NodeID]struct{}
	succs map[NodeID]struct{}
}

// ID returns the node's graph-unique identity.
func (n *Node) ID() NodeID { return n.id }

// Label returns the node's human-readable name, if one was set.
func (n *Node) Label() string { return n.label }

// Ops returns the node's recorded operation sequence.
func (n *Node) Ops() []device.Op { return n.ops }

// Preds returns the node's predecessor IDs in ascending order.
func (n *Node) Preds() []NodeID { return sortedIDs(n.preds) }

// Succs returns the node's successor IDs in ascending order.
func (n *Node) Succs() []NodeID { return sortedIDs(n.succs) }

func sortedIDs(set map[NodeID]struct{}) []NodeID {
	out := make([]NodeID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Graph is an insertion-ordered collection of capture nodes. One graph
// is owned exclusively by one capturer; concurrent mutation must be
// serialized by the caller, but reads during compilation are guarded so
// the compiler can snapshot safely.
type Graph struct {
	mu    sync.Mutex
	nodes []*Node
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{}
}

// AddNode appends a node holding the given recorded operations and
// returns its identity. Nodes are never deleted individually; Clear is
// the only way to discard them.
func (g *Graph) AddNode(ops []device.Op, label string) NodeID {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := &Node{
		id:    NodeID(len(g.nodes)),
		label: label,
		ops:   ops,
		preds: make(map[NodeID]struct{}),
		succs: make(map[NodeID]struct{}),
	}
	g.nodes = append(g.nodes, n)
	return n.id
}

// Node returns the node with the given ID, or false if the ID is not
// owned by this graph.
func (g *Graph) Node(id NodeID) (*Node, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.node(id)
}

func (g *Graph) node(id NodeID) (*Node, bool) {
	if id < 0 || int(id) >= len(g.nodes) {
		return nil, false
	}
	return g.nodes[id], true
}

// SetOps replaces a node's recorded operations in place, preserving its
// identity and every edge. This is the graph half of rebinding.
func (g *Graph) SetOps(id NodeID, ops []device.Op) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.node(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrInvalidNode, id)
	}
	n.ops = ops
	return nil
}

// SetLabel sets a node's human-readable name.
func (g *Graph) SetLabel(id NodeID, label string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.node(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrInvalidNode, id)
	}
	n.label = label
	return nil
}

// AddEdge adds the precedence constraint u -> v. The edge is rejected
// with ErrCycle if v already precedes u, directly or transitively; the
// check is full reachability, not adjacency. On any error the graph is
// unchanged.
func (g *Graph) AddEdge(u, v NodeID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	from, ok := g.node(u)
	if !ok {
		return fmt.Errorf("%w: source %d", ErrInvalidNode, u)
	}
	to, ok := g.node(v)
	if !ok {
		return fmt.Errorf("%w: destination %d", ErrInvalidNode, v)
	}
	if u == v {
		return fmt.Errorf("%w: self edge %d -> %d", ErrCycle, u, v)
	}
	if g.reaches(v, u) {
		return fmt.Errorf("%w: %d already precedes %d", ErrCycle, v, u)
	}

	to.preds[u] = struct{}{}
	from.succs[v] = struct{}{}
	return nil
}

// RemoveAllEdgesFrom detaches the node from the graph's topology,
// deleting every incoming and outgoing edge while keeping the node and
// its recorded operations. Used by callers restructuring a rebound
// node's neighborhood.
func (g *Graph) RemoveAllEdgesFrom(id NodeID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.node(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrInvalidNode, id)
	}
	for p := range n.preds {
		delete(g.nodes[p].succs, id)
	}
	for s := range n.succs {
		delete(g.nodes[s].preds, id)
	}
	n.preds = make(map[NodeID]struct{})
	n.succs = make(map[NodeID]struct{})
	return nil
}

// Clear discards every node and edge.
func (g *Graph) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes = nil
}

// Len reports the number of nodes.
func (g *Graph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.nodes)
}

// Nodes returns the nodes in insertion order. The compiler relies on
// this order being stable for deterministic lane assignment.
func (g *Graph) Nodes() []*Node {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Reaches reports whether to is reachable from from along precedence
// edges.
func (g *Graph) Reaches(from, to NodeID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reaches(from, to)
}

// reaches is an iterative DFS over successor edges. Callers hold g.mu.
func (g *Graph) reaches(from, to NodeID) bool {
	if from == to {
		return true
	}
	seen := make(map[NodeID]struct{})
	stack := []NodeID{from}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := seen[cur]; ok {
			continue
		}
		seen[cur] = struct{}{}
		for s := range g.nodes[cur].succs {
			if s == to {
				return true
			}
			stack = append(stack, s)
		}
	}
	return false
}
