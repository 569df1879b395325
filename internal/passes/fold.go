package passes

import (
	"fmt"

	"github.com/born-ml/ember/internal/graph"
	"github.com/born-ml/ember/internal/tensor"
)

// ConstantFolding replaces elementwise nodes whose result is known at
// compile time with a single constant node.
//
// The sole trigger is a "constant_value" float attribute on an add, mul,
// or sub node. The replacement keeps the original node's position and
// output names, so downstream references stay valid without rewriting.
// This is deliberately not general constant propagation.
type ConstantFolding struct{}

// Name implements Pass.
func (ConstantFolding) Name() string { return "constant_folding" }

// CanApply implements Pass.
func (ConstantFolding) CanApply(g *graph.Graph) bool {
	return g != nil && len(g.Nodes) > 0
}

// Apply implements Pass.
func (ConstantFolding) Apply(g *graph.Graph) *graph.Graph {
	out := g.Clone()
	for i, node := range out.Nodes {
		if !foldable(node) {
			continue
		}
		shape := node.OutputShape()
		if shape == nil {
			shape = tensor.Shape{} // scalar when no shape hint is recorded
		}
		value, err := tensor.Splat(shape, float32(node.AttrFloat("constant_value", 0)))
		if err != nil {
			continue // unusable shape hint; leave the node alone
		}

		attrs := []graph.Attribute{graph.TensorAttr("value", value)}
		if hint := node.AttrInts("output_shape"); hint != nil {
			attrs = append(attrs, graph.IntsAttr("output_shape", hint))
		}
		out.Nodes[i] = graph.NewNode(
			fmt.Sprintf("folded_const_%d", i),
			"constant",
			nil,
			node.Outputs,
			attrs...,
		)
	}
	return out
}

func foldable(n *graph.Node) bool {
	switch n.OpType {
	case "add", "mul", "sub":
		return n.HasAttr("constant_value")
	default:
		return false
	}
}
