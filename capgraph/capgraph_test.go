package capgraph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SamuelMarks/taskflow/device"
)

func noop() []device.Op {
	return []device.Op{func(context.Context) error { return nil }}
}

func TestNew(t *testing.T) {
	g := New()
	require.NotNil(t, g)
	assert.Zero(t, g.Len())
	assert.Empty(t, g.Nodes())
}

func TestAddNode(t *testing.T) {
	g := New()

	a := g.AddNode(noop(), "a")
	b := g.AddNode(noop(), "")

	assert.Equal(t, NodeID(0), a)
	assert.Equal(t, NodeID(1), b)
	assert.Equal(t, 2, g.Len())

	nodes := g.Nodes()
	require.Len(t, nodes, 2)
	assert.Equal(t, "a", nodes[0].Label())
	assert.Empty(t, nodes[1].Label())
	assert.Len(t, nodes[0].Ops(), 1)
}

func TestNodeLookup(t *testing.T) {
	g := New()
	a := g.AddNode(noop(), "a")

	n, ok := g.Node(a)
	require.True(t, ok)
	assert.Equal(t, a, n.ID())

	_, ok = g.Node(NodeID(42))
	assert.False(t, ok)
	_, ok = g.Node(NodeID(-1))
	assert.False(t, ok)
}

func TestAddEdge(t *testing.T) {
	t.Run("success case", func(t *testing.T) {
		g := New()
		a := g.AddNode(noop(), "a")
		b := g.AddNode(noop(), "b")

		require.NoError(t, g.AddEdge(a, b))

		na, _ := g.Node(a)
		nb, _ := g.Node(b)
		assert.Equal(t, []NodeID{b}, na.Succs())
		assert.Equal(t, []NodeID{a}, nb.Preds())
	})

	t.Run("unknown nodes", func(t *testing.T) {
		g := New()
		a := g.AddNode(noop(), "a")

		err := g.AddEdge(NodeID(9), a)
		assert.ErrorIs(t, err, ErrInvalidNode)

		err = g.AddEdge(a, NodeID(9))
		assert.ErrorIs(t, err, ErrInvalidNode)
	})

	t.Run("self edge", func(t *testing.T) {
		g := New()
		a := g.AddNode(noop(), "a")
		assert.ErrorIs(t, g.AddEdge(a, a), ErrCycle)
	})
}

func TestAddEdgeCycleRejection(t *testing.T) {
	g := New()
	a := g.AddNode(noop(), "a")
	b := g.AddNode(noop(), "b")
	c := g.AddNode(noop(), "c")

	require.NoError(t, g.AddEdge(a, b))
	require.NoError(t, g.AddEdge(b, c))

	// c -> a closes a cycle through transitive reachability, not mere
	// adjacency.
	err := g.AddEdge(c, a)
	require.ErrorIs(t, err, ErrCycle)

	// The failed addition must leave the graph unchanged.
	na, _ := g.Node(a)
	nc, _ := g.Node(c)
	assert.Empty(t, na.Preds())
	assert.Empty(t, nc.Succs())

	// The reverse constraint is still addable in any order consistent
	// with eventual acyclicity.
	assert.NoError(t, g.AddEdge(a, c))
}

func TestReaches(t *testing.T) {
	g := New()
	a := g.AddNode(noop(), "a")
	b := g.AddNode(noop(), "b")
	c := g.AddNode(noop(), "c")
	d := g.AddNode(noop(), "d")

	require.NoError(t, g.AddEdge(a, b))
	require.NoError(t, g.AddEdge(b, c))

	assert.True(t, g.Reaches(a, c))
	assert.True(t, g.Reaches(a, a))
	assert.False(t, g.Reaches(c, a))
	assert.False(t, g.Reaches(a, d))
}

func TestSetOpsPreservesIdentityAndEdges(t *testing.T) {
	g := New()
	a := g.AddNode(noop(), "a")
	b := g.AddNode(noop(), "b")
	require.NoError(t, g.AddEdge(a, b))

	replacement := []device.Op{
		func(context.Context) error { return nil },
		func(context.Context) error { return nil },
	}
	require.NoError(t, g.SetOps(b, replacement))

	nb, _ := g.Node(b)
	assert.Len(t, nb.Ops(), 2)
	assert.Equal(t, []NodeID{a}, nb.Preds())

	assert.ErrorIs(t, g.SetOps(NodeID(7), replacement), ErrInvalidNode)
}

func TestRemoveAllEdgesFrom(t *testing.T) {
	g := New()
	a := g.AddNode(noop(), "a")
	b := g.AddNode(noop(), "b")
	c := g.AddNode(noop(), "c")
	require.NoError(t, g.AddEdge(a, b))
	require.NoError(t, g.AddEdge(b, c))

	require.NoError(t, g.RemoveAllEdgesFrom(b))

	na, _ := g.Node(a)
	nb, _ := g.Node(b)
	nc, _ := g.Node(c)
	assert.Empty(t, na.Succs())
	assert.Empty(t, nb.Preds())
	assert.Empty(t, nb.Succs())
	assert.Empty(t, nc.Preds())
	// The node itself survives.
	assert.Equal(t, 3, g.Len())

	assert.ErrorIs(t, g.RemoveAllEdgesFrom(NodeID(5)), ErrInvalidNode)
}

func TestClear(t *testing.T) {
	g := New()
	g.AddNode(noop(), "a")
	g.AddNode(noop(), "b")
	g.Clear()
	assert.Zero(t, g.Len())

	// IDs restart after an explicit clear.
	assert.Equal(t, NodeID(0), g.AddNode(noop(), "fresh"))
}

func TestSetLabel(t *testing.T) {
	g := New()
	a := g.AddNode(noop(), "")
	require.NoError(t, g.SetLabel(a, "relabeled"))
	n, _ := g.Node(a)
	assert.Equal(t, "relabeled", n.Label())

	assert.ErrorIs(t, g.SetLabel(NodeID(3), "x"), ErrInvalidNode)
}
