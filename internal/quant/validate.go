package quant

import "github.com/born-ml/ember/internal/graph"

// Issue describes a quantization consistency problem. Issues are
// reported, never fatal: code generation can fall back to float math for
// the offending layers, so a partially quantized graph still compiles.
type Issue struct {
	Layer  string
	Detail string
}

func (i Issue) String() string {
	if i.Layer == "" {
		return i.Detail
	}
	return i.Layer + ": " + i.Detail
}

// Check inspects a quantized graph for layers marked quantized without
// the parameters code generation needs, and for missing activation
// parameters.
func Check(g *graph.Graph) []Issue {
	var issues []Issue
	for _, n := range g.Nodes {
		if !weightBearing(n.OpType) || !n.AttrBool("weight_quantized", false) {
			continue
		}
		if n.AttrFloats("weight_scales") == nil {
			issues = append(issues, Issue{Layer: n.Name, Detail: "missing weight_scales"})
		}
		if n.AttrInts("weight_zero_points") == nil {
			issues = append(issues, Issue{Layer: n.Name, Detail: "missing weight_zero_points"})
		}
	}
	if g.Metadata.ActivationQuant == nil {
		issues = append(issues, Issue{Detail: "no activation quantization parameters recorded"})
	}
	return issues
}

func weightBearing(opType string) bool {
	switch opType {
	case "conv2d", "dense", "linear":
		return true
	default:
		return false
	}
}
