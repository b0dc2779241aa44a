// Package laneopt assigns capture nodes to a bounded pool of execution
// lanes. The pass maximizes cross-lane concurrency while preserving
// every recorded dependency, emitting an explicit synchronization edge
// wherever a node's predecessor lands on a different lane.
//
// The pass is deterministic: given the same node insertion order, edge
// set and pool size, two compilations produce identical assignments.
package laneopt

import (
	"context"
	"fmt"
	"sort"

	"github.com/SamuelMarks/taskflow/capgraph"
	"github.com/SamuelMarks/taskflow/internal/ctxlog"
)

// Sync orders the start of To (on lane ToLane) after the completion of
// From (on lane FromLane). The compiled graph waits on From's completion
// marker before issuing To's operations.
type Sync struct {
	From     capgraph.NodeID
	To       capgraph.NodeID
	FromLane int
	ToLane   int
}

// Assignment is the optimizer's output: a node-to-lane mapping plus the
// cross-lane synchronization edges the executable graph must honor.
type Assignment struct {
	// Lane maps each node to its pool index.
	Lane map[capgraph.NodeID]int
	// Layers holds the topological layering, each layer in insertion
	// order. Sources sit in layer 0; a node's layer is one past its
	// deepest predecessor.
	Layers [][]capgraph.NodeID
	// Syncs lists the cross-lane ordering constraints, in the
	// deterministic order the pass visits destination nodes.
	Syncs []Sync
}

// Plan computes a lane assignment for the graph's current topology.
// Lane indices refer to a pool of laneCount lanes; if a layer is wider
// than the pool, lanes are reused cyclically, which serializes some
// independent work but never imposes a spurious sync between
// same-lane nodes.
func Plan(ctx context.Context, g *capgraph.Graph, laneCount int) (*Assignment, error) {
	if laneCount <= 0 {
		return nil, fmt.Errorf("laneopt: lane pool size must be positive, got %d", laneCount)
	}
	logger := ctxlog.FromContext(ctx)

	nodes := g.Nodes()
	layers, err := layer(nodes)
	if err != nil {
		return nil, err
	}
	logger.Debug("Topological layering complete.", "nodes", len(nodes), "layers", len(layers))

	asg := &Assignment{
		Lane:   make(map[capgraph.NodeID]int, len(nodes)),
		Layers: layers,
	}
	byID := make(map[capgraph.NodeID]*capgraph.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID()] = n
	}

	loads := make([]int, laneCount)
	for _, lay := range layers {
		// Lanes already handed out in this layer; a predecessor
		// preference only holds while its lane is unclaimed here, so
		// sibling nodes spread out instead of serializing behind one
		// parent.
		claimed := make(map[int]bool, laneCount)

		for _, id := range lay {
			n := byID[id]
			lane := -1

			if pref, ok := preferredLane(n, byID, asg.Lane); ok && !claimed[pref] {
				lane = pref
			} else {
				lane = pickLane(loads, claimed)
			}

			asg.Lane[id] = lane
			claimed[lane] = true
			loads[lane]++

			for _, p := range n.Preds() {
				if asg.Lane[p] != lane {
					asg.Syncs = append(asg.Syncs, Sync{
						From:     p,
						To:       id,
						FromLane: asg.Lane[p],
						ToLane:   lane,
					})
				}
			}
		}
	}

	logger.Debug("Lane assignment complete.", "lanes", laneCount, "syncs", len(asg.Syncs))
	return asg, nil
}

// preferredLane returns the lane of the node's sole predecessor, or of
// its highest-fan-out predecessor when there are several. Ties go to the
// lower node ID so the choice is stable.
func preferredLane(n *capgraph.Node, byID map[capgraph.NodeID]*capgraph.Node, lanes map[capgraph.NodeID]int) (int, bool) {
	preds := n.Preds()
	if len(preds) == 0 {
		return 0, false
	}
	best := preds[0]
	bestFan := len(byID[best].Succs())
	for _, p := range preds[1:] {
		if fan := len(byID[p].Succs()); fan > bestFan {
			best, bestFan = p, fan
		}
	}
	return lanes[best], true
}

// pickLane chooses the lowest-index unclaimed lane with the fewest nodes
// assigned so far. When every lane is claimed (layer wider than the
// pool) the claim set is ignored and lanes are reused cyclically.
func pickLane(loads []int, claimed map[int]bool) int {
	best := -1
	for i, load := range loads {
		if claimed[i] {
			continue
		}
		if best == -1 || load < loads[best] {
			best = i
		}
	}
	if best == -1 {
		for i, load := range loads {
			if best == -1 || load < loads[best] {
				best = i
			}
		}
	}
	return best
}

// layer partitions the nodes into topological layers via Kahn's
// algorithm. Within a layer nodes keep insertion order. An unprocessable
// remainder means the graph is cyclic, which AddEdge is supposed to have
// prevented.
func layer(nodes []*capgraph.Node) ([][]capgraph.NodeID, error) {
	depth := make(map[capgraph.NodeID]int, len(nodes))
	remaining := make(map[capgraph.NodeID]int, len(nodes))
	byID := make(map[capgraph.NodeID]*capgraph.Node, len(nodes))

	var ready []capgraph.NodeID
	for _, n := range nodes {
		byID[n.ID()] = n
		remaining[n.ID()] = len(n.Preds())
		if remaining[n.ID()] == 0 {
			depth[n.ID()] = 0
			ready = append(ready, n.ID())
		}
	}

	processed := 0
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		processed++
		for _, s := range byID[id].Succs() {
			if d := depth[id] + 1; d > depth[s] {
				depth[s] = d
			}
			remaining[s]--
			if remaining[s] == 0 {
				ready = append(ready, s)
			}
		}
	}
	if processed != len(nodes) {
		return nil, fmt.Errorf("laneopt: graph is not acyclic (%d of %d nodes unreachable from sources)", len(nodes)-processed, len(nodes))
	}

	maxDepth := -1
	for _, d := range depth {
		if d > maxDepth {
			maxDepth = d
		}
	}
	layers := make([][]capgraph.NodeID, maxDepth+1)
	for _, n := range nodes {
		d := depth[n.ID()]
		layers[d] = append(layers[d], n.ID())
	}
	for _, lay := range layers {
		sort.Slice(lay, func(i, j int) bool { return lay[i] < lay[j] })
	}
	return layers, nil
}
