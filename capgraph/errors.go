package capgraph

import "errors"

var (
	// ErrCycle is returned by AddEdge when the requested edge would make
	// the graph cyclic. The graph is left unchanged.
	ErrCycle = errors.New("capgraph: edge would create a cycle")

	// ErrInvalidNode is returned when an operation references a node ID
	// not owned by the graph.
	ErrInvalidNode = errors.New("capgraph: invalid node reference")
)
