// Package config defines the declarative pipeline model consumed by the
// capturerun tool and its HCL loader. The library surface never touches
// this package; it exists so benchmark-style graphs can be described in
// files instead of code.
package config

import "fmt"

// Model is the root of a loaded configuration file.
type Model struct {
	Pipelines []Pipeline `hcl:"pipeline,block"`
}

// Pipeline declares one capture graph plus its execution parameters.
type Pipeline struct {
	Name    string `hcl:"name,label"`
	Lanes   int    `hcl:"lanes,optional"`
	Repeats int    `hcl:"repeats,optional"`

	Nodes []Node `hcl:"node,block"`
}

// Node declares one capture node. Op selects the primitive; the
// remaining attributes apply per-op (size/value for memset, size for
// copy, grid/block/size for kernel, sleep_ms for sleep).
type Node struct {
	Name      string   `hcl:"name,label"`
	Op        string   `hcl:"op"`
	Size      int      `hcl:"size,optional"`
	Value     int      `hcl:"value,optional"`
	Grid      int      `hcl:"grid,optional"`
	Block     int      `hcl:"block,optional"`
	SleepMS   int      `hcl:"sleep_ms,optional"`
	DependsOn []string `hcl:"depends_on,optional"`
}

// ops lists the node kinds the runner can build.
var ops = map[string]bool{
	"memset": true,
	"copy":   true,
	"kernel": true,
	"sleep":  true,
}

// Validate checks structural invariants the HCL schema cannot express:
// known ops, unique node names, resolvable dependencies and sane sizes.
func (m *Model) Validate() error {
	if len(m.Pipelines) == 0 {
		return fmt.Errorf("config: no pipeline blocks found")
	}
	for i := range m.Pipelines {
		if err := m.Pipelines[i].validate(); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) validate() error {
	if p.Lanes < 0 {
		return fmt.Errorf("config: pipeline %q: lanes must not be negative", p.Name)
	}
	if p.Repeats < 0 {
		return fmt.Errorf("config: pipeline %q: repeats must not be negative", p.Name)
	}
	if len(p.Nodes) == 0 {
		return fmt.Errorf("config: pipeline %q declares no nodes", p.Name)
	}

	seen := make(map[string]bool, len(p.Nodes))
	for _, n := range p.Nodes {
		if !ops[n.Op] {
			return fmt.Errorf("config: pipeline %q node %q: unknown op %q", p.Name, n.Name, n.Op)
		}
		if seen[n.Name] {
			return fmt.Errorf("config: pipeline %q: duplicate node name %q", p.Name, n.Name)
		}
		seen[n.Name] = true
		if n.Size < 0 {
			return fmt.Errorf("config: pipeline %q node %q: size must not be negative", p.Name, n.Name)
		}
		if n.Value < 0 || n.Value > 255 {
			return fmt.Errorf("config: pipeline %q node %q: value must fit in a byte", p.Name, n.Name)
		}
	}
	for _, n := range p.Nodes {
		for _, dep := range n.DependsOn {
			if !seen[dep] {
				return fmt.Errorf("config: pipeline %q node %q: unknown dependency %q", p.Name, n.Name, dep)
			}
		}
	}
	return nil
}
