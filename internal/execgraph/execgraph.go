// Package execgraph compiles a capture graph plus a lane assignment into
// an immutable, launch-ready artifact: one ordered instruction program
// per lane, with explicit wait/signal pairs wherever the optimizer
// recorded a cross-lane dependency.
package execgraph

import (
	"context"
	"fmt"
	"sync"

	"github.com/SamuelMarks/taskflow/capgraph"
	"github.com/SamuelMarks/taskflow/device"
	"github.com/SamuelMarks/taskflow/internal/ctxlog"
	"github.com/SamuelMarks/taskflow/laneopt"
)

type instrKind int

const (
	instrWait instrKind = iota
	instrRun
	instrSignal
)

// instr is one entry in a lane's program. Wait and signal reference a
// sync edge by index; the concrete events are instantiated per launch
// because completion markers are single-use.
type instr struct {
	kind  instrKind
	sync  int
	node  capgraph.NodeID
	label string
	ops   []device.Op
}

// Graph is the compiled executable artifact. It is immutable: topology
// edits and rebinds on the owning capturer discard it and compile a new
// one. A Graph may be launched any number of times.
type Graph struct {
	programs [][]instr
	syncs    []laneopt.Sync
	pool     []device.Lane
	rt       device.Runtime
	asg      *laneopt.Assignment
}

// Compile builds per-lane programs from the graph's current topology and
// the given assignment. Within a lane, nodes are ordered by layer and
// then insertion order; each node is preceded by a wait per incoming
// cross-lane edge and followed by a signal per outgoing one. Because
// every wait targets a strictly lower layer, the programs cannot
// deadlock against each other.
func Compile(ctx context.Context, g *capgraph.Graph, asg *laneopt.Assignment, rt device.Runtime, pool []device.Lane) (*Graph, error) {
	if len(pool) == 0 {
		return nil, fmt.Errorf("execgraph: empty lane pool")
	}
	logger := ctxlog.FromContext(ctx)

	waitsFor := make(map[capgraph.NodeID][]int)
	signalsFor := make(map[capgraph.NodeID][]int)
	for i, s := range asg.Syncs {
		waitsFor[s.To] = append(waitsFor[s.To], i)
		signalsFor[s.From] = append(signalsFor[s.From], i)
	}

	eg := &Graph{
		programs: make([][]instr, len(pool)),
		syncs:    asg.Syncs,
		pool:     pool,
		rt:       rt,
		asg:      asg,
	}

	for _, layer := range asg.Layers {
		for _, id := range layer {
			n, ok := g.Node(id)
			if !ok {
				return nil, fmt.Errorf("execgraph: assignment references unknown node %d", id)
			}
			lane, ok := asg.Lane[id]
			if !ok || lane < 0 || lane >= len(pool) {
				return nil, fmt.Errorf("execgraph: node %d has no valid lane assignment", id)
			}
			prog := eg.programs[lane]
			for _, s := range waitsFor[id] {
				prog = append(prog, instr{kind: instrWait, sync: s})
			}
			prog = append(prog, instr{kind: instrRun, node: id, label: n.Label(), ops: n.Ops()})
			for _, s := range signalsFor[id] {
				prog = append(prog, instr{kind: instrSignal, sync: s})
			}
			eg.programs[lane] = prog
		}
	}

	logger.Debug("Executable graph compiled.", "lanes", len(pool), "syncs", len(eg.syncs))
	return eg, nil
}

// Assignment exposes the lane assignment the graph was compiled from.
func (eg *Graph) Assignment() *laneopt.Assignment { return eg.asg }

// Launch instantiates fresh events for every sync edge, issues each
// lane's program concurrently, and blocks until the runtime has drained
// all lanes. The call is a synchronous barrier for the calling
// goroutine only; recorded operations still run concurrently across
// lanes as dictated by the assignment.
func (eg *Graph) Launch(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Launching executable graph.", "lanes", len(eg.programs))

	events := make([]device.Event, len(eg.syncs))
	for i := range events {
		events[i] = eg.rt.NewEvent()
	}

	// One issuing goroutine per lane: a lane whose queue backs up behind
	// a wait must not stall issuance on its siblings.
	var wg sync.WaitGroup
	for i, prog := range eg.programs {
		wg.Add(1)
		go func(lane device.Lane, prog []instr) {
			defer wg.Done()
			for _, ins := range prog {
				switch ins.kind {
				case instrWait:
					lane.Wait(events[ins.sync])
				case instrRun:
					for _, op := range ins.ops {
						lane.Async(bind(ctx, op, ins))
					}
				case instrSignal:
					lane.Signal(events[ins.sync])
				}
			}
		}(eg.pool[i], prog)
	}
	wg.Wait()

	if err := eg.rt.Sync(ctx); err != nil {
		return fmt.Errorf("execgraph: launch failed: %w", err)
	}
	logger.Debug("Launch complete.")
	return nil
}

// bind threads the launch context into a recorded op and tags failures
// with the owning node. Cancellation is honored at op boundaries; an op
// already running is never interrupted.
func bind(ctx context.Context, op device.Op, ins instr) device.Op {
	return func(context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := op(ctx); err != nil {
			if ins.label != "" {
				return fmt.Errorf("node %q: %w", ins.label, err)
			}
			return fmt.Errorf("node %d: %w", ins.node, err)
		}
		return nil
	}
}
