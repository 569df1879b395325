// Package graph defines the intermediate representation shared by every
// stage of the Ember pipeline: an ordered node sequence, a weight map, and
// the declared input/output boundary.
//
// The IR is pure data. Transformations never mutate a graph a caller still
// holds; they Clone first and return the new value. Three invariants hold
// across every transformation:
//
//   - every node input resolves to a graph input, a weight, or another
//     node's output (no dangling references)
//   - node output names are globally unique
//   - the declared boundary stays resolvable, with unchanged shapes
package graph

import (
	"github.com/born-ml/ember/internal/tensor"
)

// ValueInfo declares one named, typed, shaped tensor at the graph boundary.
type ValueInfo struct {
	Name  string
	DType tensor.DataType
	Shape tensor.Shape
}

// Clone returns a copy of the value declaration.
func (v ValueInfo) Clone() ValueInfo {
	return ValueInfo{Name: v.Name, DType: v.DType, Shape: v.Shape.Clone()}
}

// QuantParams is the affine mapping between float and fixed-point values:
// real = scale * (quantized - zero_point).
type QuantParams struct {
	Scale     float64 `json:"scale"`
	ZeroPoint int     `json:"zero_point"`
}

// QuantRecord describes a completed quantization run, stored in graph
// metadata for the code generator.
type QuantRecord struct {
	Mode               string `json:"mode"`
	Symmetric          bool   `json:"symmetric"`
	CalibrationSamples int    `json:"calibration_samples"`
	EngineVersion      string `json:"engine_version"`
}

// Metadata carries diagnostics and code-generation hints. It is never used
// for transformation correctness.
type Metadata struct {
	// Source names the producing framework ("onnx", "pytorch", ...).
	Source string `json:"source,omitempty"`
	// Props holds free-form annotations.
	Props map[string]string `json:"props,omitempty"`
	// Quantization is set once weights have been quantized.
	Quantization *QuantRecord `json:"quantization,omitempty"`
	// ActivationQuant maps layer name to runtime activation parameters.
	ActivationQuant map[string]QuantParams `json:"activation_quantization,omitempty"`
	// MemoryPools maps tensor name to its assigned pool id.
	MemoryPools map[string]int `json:"memory_pools,omitempty"`
	// PoolCount is the number of distinct pools assigned.
	PoolCount int `json:"pool_count,omitempty"`
}

// Clone returns a deep copy of the metadata.
func (m Metadata) Clone() Metadata {
	out := Metadata{Source: m.Source, PoolCount: m.PoolCount}
	if m.Props != nil {
		out.Props = make(map[string]string, len(m.Props))
		for k, v := range m.Props {
			out.Props[k] = v
		}
	}
	if m.Quantization != nil {
		q := *m.Quantization
		out.Quantization = &q
	}
	if m.ActivationQuant != nil {
		out.ActivationQuant = make(map[string]QuantParams, len(m.ActivationQuant))
		for k, v := range m.ActivationQuant {
			out.ActivationQuant[k] = v
		}
	}
	if m.MemoryPools != nil {
		out.MemoryPools = make(map[string]int, len(m.MemoryPools))
		for k, v := range m.MemoryPools {
			out.MemoryPools[k] = v
		}
	}
	return out
}

// Graph is the central IR entity: an ordered operation sequence plus the
// weights and boundary declarations it references.
type Graph struct {
	Name     string
	Nodes    []*Node
	Weights  map[string]*tensor.Tensor
	Inputs   []ValueInfo
	Outputs  []ValueInfo
	Metadata Metadata
}

// New creates an empty graph.
func New(name string) *Graph {
	return &Graph{
		Name:    name,
		Weights: make(map[string]*tensor.Tensor),
	}
}

// Clone returns a deep copy: nodes, attributes, weight tensors, boundary
// declarations, and metadata. Passes clone before rewriting so the caller's
// graph is never aliased.
func (g *Graph) Clone() *Graph {
	out := &Graph{
		Name:     g.Name,
		Nodes:    make([]*Node, len(g.Nodes)),
		Weights:  make(map[string]*tensor.Tensor, len(g.Weights)),
		Inputs:   make([]ValueInfo, len(g.Inputs)),
		Outputs:  make([]ValueInfo, len(g.Outputs)),
		Metadata: g.Metadata.Clone(),
	}
	for i, n := range g.Nodes {
		out.Nodes[i] = n.Clone()
	}
	for name, w := range g.Weights {
		out.Weights[name] = w.Clone()
	}
	for i, v := range g.Inputs {
		out.Inputs[i] = v.Clone()
	}
	for i, v := range g.Outputs {
		out.Outputs[i] = v.Clone()
	}
	return out
}

// Producers maps every node output name to its producing node.
func (g *Graph) Producers() map[string]*Node {
	producers := make(map[string]*Node)
	for _, n := range g.Nodes {
		for _, out := range n.Outputs {
			producers[out] = n
		}
	}
	return producers
}

// NodeByName returns the node with the given name, or nil.
func (g *Graph) NodeByName(name string) *Node {
	for _, n := range g.Nodes {
		if n.Name == name {
			return n
		}
	}
	return nil
}

// IsInput reports whether name is a declared graph input.
func (g *Graph) IsInput(name string) bool {
	for _, in := range g.Inputs {
		if in.Name == name {
			return true
		}
	}
	return false
}

// IsWeight reports whether name refers to a weight tensor.
func (g *Graph) IsWeight(name string) bool {
	_, ok := g.Weights[name]
	return ok
}

// Resolvable reports whether name has a producer: a graph input, a weight,
// or some node's output.
func (g *Graph) Resolvable(name string) bool {
	if g.IsInput(name) || g.IsWeight(name) {
		return true
	}
	for _, n := range g.Nodes {
		for _, out := range n.Outputs {
			if out == name {
				return true
			}
		}
	}
	return false
}

// OutputNames returns the names of the graph's outputs. Declared outputs
// are authoritative; when none are declared the last node's outputs are
// assumed, which is a legacy fallback that cannot represent multi-output
// graphs and should not be relied on by new importers.
func (g *Graph) OutputNames() []string {
	if len(g.Outputs) > 0 {
		names := make([]string, len(g.Outputs))
		for i, out := range g.Outputs {
			names[i] = out.Name
		}
		return names
	}
	if len(g.Nodes) > 0 {
		last := g.Nodes[len(g.Nodes)-1]
		return append([]string(nil), last.Outputs...)
	}
	return nil
}

// NumParams returns the total number of weight elements.
func (g *Graph) NumParams() int64 {
	var n int64
	for _, w := range g.Weights {
		n += int64(w.NumElements())
	}
	return n
}

// WeightBytes returns the total weight storage in bytes.
func (g *Graph) WeightBytes() int64 {
	var n int64
	for _, w := range g.Weights {
		n += int64(w.ByteSize())
	}
	return n
}
