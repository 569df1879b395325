package passes

import "github.com/born-ml/ember/internal/graph"

// LayerFusion collapses adjacent fusible node pairs into single nodes.
//
// Two fixed patterns are recognized: conv2d followed by relu, and conv2d
// followed by batch_norm. Matching is strictly positional: only nodes i
// and i+1 are ever considered, and the second node must consume the
// first's output. The fused node keeps the conv's name, position, and
// output names; consumers of the removed node are rewired to the conv.
//
// For conv+batch_norm the normalization parameters are recorded as
// attributes on the conv node. The arithmetic fold into the convolution
// weights happens at code generation, not here.
type LayerFusion struct{}

// Name implements Pass.
func (LayerFusion) Name() string { return "layer_fusion" }

// CanApply implements Pass.
func (LayerFusion) CanApply(g *graph.Graph) bool {
	return g != nil && len(g.Nodes) >= 2
}

// Apply implements Pass.
func (LayerFusion) Apply(g *graph.Graph) *graph.Graph {
	out := g.Clone()
	declared := make(map[string]bool, len(out.Outputs))
	for _, o := range out.Outputs {
		declared[o.Name] = true
	}

	i := 0
	for i < len(out.Nodes)-1 {
		first, second := out.Nodes[i], out.Nodes[i+1]
		switch {
		case fusible(first, second, "relu", declared):
			first.SetAttr(graph.StringAttr("activation", "relu"))
			first.SetAttr(graph.BoolAttr("fused", true))
		case fusible(first, second, "batch_norm", declared):
			first.SetAttr(graph.BoolAttr("batch_norm_folded", true))
			first.SetAttr(graph.FloatAttr("bn_scale", second.AttrFloat("scale", 1.0)))
			first.SetAttr(graph.FloatAttr("bn_bias", second.AttrFloat("bias", 0.0)))
			first.SetAttr(graph.FloatAttr("bn_mean", second.AttrFloat("mean", 0.0)))
			first.SetAttr(graph.FloatAttr("bn_var", second.AttrFloat("var", 1.0)))
		default:
			i++
			continue
		}
		rewire(out.Nodes[i+2:], second.Outputs, first.Outputs)
		out.Nodes = append(out.Nodes[:i+1], out.Nodes[i+2:]...)
		// The fused node may pair with its new successor; rescan at i.
	}
	return out
}

// fusible reports whether first (a conv2d) and second (of secondType) form
// a fusible pair. The second node's output must not be a declared graph
// output: fusing would rename the boundary.
func fusible(first, second *graph.Node, secondType string, declared map[string]bool) bool {
	if first.OpType != "conv2d" || second.OpType != secondType {
		return false
	}
	if len(first.Outputs) == 0 || len(second.Outputs) == 0 {
		return false
	}
	for _, out := range second.Outputs {
		if declared[out] {
			return false
		}
	}
	for _, in := range second.Inputs {
		for _, out := range first.Outputs {
			if in == out {
				return true
			}
		}
	}
	return false
}

// rewire replaces references to the removed node's outputs with the kept
// node's outputs in every downstream node.
func rewire(downstream []*graph.Node, removed, kept []string) {
	if len(removed) == 0 || len(kept) == 0 {
		return
	}
	replacement := make(map[string]string, len(removed))
	for j, name := range removed {
		k := j
		if k >= len(kept) {
			k = len(kept) - 1
		}
		replacement[name] = kept[k]
	}
	for _, n := range downstream {
		for j, in := range n.Inputs {
			if repl, ok := replacement[in]; ok {
				n.Inputs[j] = repl
			}
		}
	}
}
