// Package analyze estimates the inference cost of a graph: per-operation
// multiply-accumulate counts, parameter and activation memory, and
// dataflow depth. The estimates drive bottleneck detection and the
// optimization recommendations surfaced by the CLI.
//
// All figures are static estimates derived from boundary declarations,
// weight shapes, and output_shape hints. A node whose shapes are unknown
// contributes zero rather than a guess.
package analyze

import (
	"fmt"
	"sort"
	"strings"

	"github.com/born-ml/ember/internal/graph"
	"github.com/born-ml/ember/internal/parallel"
	"github.com/born-ml/ember/internal/tensor"
)

// NodeCost is the estimated cost of one operation.
type NodeCost struct {
	Name   string `json:"name"`
	OpType string `json:"op_type"`
	MACs   int64  `json:"macs"`
	Params int64  `json:"params"`
}

// Bottleneck flags a node consuming an outsized share of the compute.
// Severity is "medium" above the bottleneck share and "high" above the
// severe share.
type Bottleneck struct {
	Name       string  `json:"name"`
	OpType     string  `json:"op_type"`
	MACPercent float64 `json:"mac_percent"`
	Severity   string  `json:"severity"`
}

// Report is the full cost analysis of one graph.
type Report struct {
	Name                string       `json:"name"`
	TotalMACs           int64        `json:"total_macs"`
	TotalParams         int64        `json:"total_params"`
	WeightBytes         int64        `json:"weight_bytes"`
	PeakActivationBytes int64        `json:"peak_activation_bytes"`
	Depth               int          `json:"depth"`
	PerNode             []NodeCost   `json:"per_node"`
	Bottlenecks         []Bottleneck `json:"bottlenecks,omitempty"`
	Recommendations     []string     `json:"recommendations,omitempty"`
}

const (
	bottleneckShare = 20.0
	severeShare     = 50.0

	quantizeMACLimit = 1_000_000_000
	memoryLimit      = 100 << 20
	fusionDepthLimit = 50
)

// Analyze computes the cost report for g. Per-node costs are independent,
// so the node loop runs through the parallel helper under cfg.
func Analyze(g *graph.Graph, cfg parallel.Config) *Report {
	r := &Report{
		Name:        g.Name,
		TotalParams: g.NumParams(),
		WeightBytes: g.WeightBytes(),
	}
	shapes := shapeTable(g)

	r.PerNode = make([]NodeCost, len(g.Nodes))
	parallel.For(len(g.Nodes), func(i int) {
		n := g.Nodes[i]
		r.PerNode[i] = NodeCost{
			Name:   n.Name,
			OpType: n.OpType,
			MACs:   nodeMACs(n, shapes),
			Params: nodeParams(n, g),
		}
	}, cfg)

	for _, c := range r.PerNode {
		r.TotalMACs += c.MACs
	}
	r.Depth = dataflowDepth(g)
	r.PeakActivationBytes = peakActivation(g, shapes)
	r.Bottlenecks = findBottlenecks(r.PerNode, r.TotalMACs)
	r.Recommendations = recommend(r)
	return r
}

// shapeTable maps every tensor name with a known shape: boundary
// declarations, weight tensors, and output_shape hints, in that order of
// precedence.
func shapeTable(g *graph.Graph) map[string]tensor.Shape {
	shapes := make(map[string]tensor.Shape)
	for _, in := range g.Inputs {
		if in.Shape != nil {
			shapes[in.Name] = in.Shape
		}
	}
	for _, out := range g.Outputs {
		if out.Shape != nil {
			shapes[out.Name] = out.Shape
		}
	}
	for name, w := range g.Weights {
		if _, ok := shapes[name]; !ok {
			shapes[name] = w.Shape()
		}
	}
	for _, n := range g.Nodes {
		hint := n.OutputShape()
		if hint == nil {
			continue
		}
		for _, out := range n.Outputs {
			if _, ok := shapes[out]; !ok {
				shapes[out] = hint
			}
		}
	}
	return shapes
}

func nodeMACs(n *graph.Node, shapes map[string]tensor.Shape) int64 {
	var in, out tensor.Shape
	var inOK, outOK bool
	if len(n.Inputs) > 0 {
		in, inOK = shapes[n.Inputs[0]]
	}
	if len(n.Outputs) > 0 {
		out, outOK = shapes[n.Outputs[0]]
	}

	switch n.OpType {
	case "conv1d", "conv2d":
		if !inOK || !outOK || len(in) < 3 || len(out) < 3 {
			return 0
		}
		return elemCount(out) * posDim(in[1]) * kernelArea(n)
	case "dense", "linear", "matmul":
		if !inOK || !outOK || len(in) < 2 || len(out) < 2 {
			return 0
		}
		batch := max(posDim(in[0]), posDim(out[0]))
		m := posDim(out[len(out)-2])
		nCols := posDim(out[len(out)-1])
		k := posDim(in[len(in)-1])
		return batch * m * nCols * k
	case "batch_norm":
		// Normalize, scale, shift, and the running-stat read: 4 per element.
		if !inOK {
			return 0
		}
		return elemCount(in) * 4
	case "relu", "sigmoid", "tanh":
		if !inOK {
			return 0
		}
		return elemCount(in)
	case "add", "sub", "mul", "div":
		if !outOK {
			return 0
		}
		return elemCount(out)
	case "max_pool2d", "avg_pool2d":
		if !outOK {
			return 0
		}
		return elemCount(out) * kernelArea(n)
	default:
		if !outOK {
			return 0
		}
		return elemCount(out)
	}
}

func nodeParams(n *graph.Node, g *graph.Graph) int64 {
	var p int64
	for _, in := range n.Inputs {
		if w, ok := g.Weights[in]; ok {
			p += int64(w.NumElements())
		}
	}
	return p
}

// dataflowDepth is the longest producer chain, counted in nodes. Node
// order is execution order, so one forward scan suffices.
func dataflowDepth(g *graph.Graph) int {
	byTensor := make(map[string]int)
	deepest := 0
	for _, n := range g.Nodes {
		d := 1
		for _, in := range n.Inputs {
			if pd, ok := byTensor[in]; ok && pd+1 > d {
				d = pd + 1
			}
		}
		for _, out := range n.Outputs {
			byTensor[out] = d
		}
		if d > deepest {
			deepest = d
		}
	}
	return deepest
}

// peakActivation is the largest per-step activation footprint: the bytes
// of a node's non-weight inputs plus its outputs. Activations are float32
// until quantization, 4 bytes each.
func peakActivation(g *graph.Graph, shapes map[string]tensor.Shape) int64 {
	var peak int64
	for _, n := range g.Nodes {
		var step int64
		for _, in := range n.Inputs {
			if g.IsWeight(in) {
				continue
			}
			if s, ok := shapes[in]; ok {
				step += elemCount(s) * 4
			}
		}
		for _, out := range n.Outputs {
			if s, ok := shapes[out]; ok {
				step += elemCount(s) * 4
			}
		}
		if step > peak {
			peak = step
		}
	}
	return peak
}

func findBottlenecks(costs []NodeCost, total int64) []Bottleneck {
	if total == 0 {
		return nil
	}
	var out []Bottleneck
	for _, c := range costs {
		pct := float64(c.MACs) / float64(total) * 100
		if pct <= bottleneckShare {
			continue
		}
		severity := "medium"
		if pct > severeShare {
			severity = "high"
		}
		out = append(out, Bottleneck{
			Name:       c.Name,
			OpType:     c.OpType,
			MACPercent: pct,
			Severity:   severity,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].MACPercent > out[j].MACPercent })
	return out
}

func recommend(r *Report) []string {
	var recs []string
	if r.TotalMACs > quantizeMACLimit {
		recs = append(recs, "Consider quantization to reduce computational cost")
	}
	if r.WeightBytes+r.PeakActivationBytes > memoryLimit {
		recs = append(recs, "Model has high memory requirements for embedded deployment")
	}
	if r.Depth > fusionDepthLimit {
		recs = append(recs, "Deep model could benefit from layer fusion")
	}
	return recs
}

// Summary renders the report as the text block printed by the CLI.
func (r *Report) Summary() string {
	lines := []string{
		"=== Model Summary ===",
		fmt.Sprintf("Graph: %s", r.Name),
		fmt.Sprintf("Operations: %d", len(r.PerNode)),
		fmt.Sprintf("Parameters: %d", r.TotalParams),
		fmt.Sprintf("Weight Size: %.2f MB", float64(r.WeightBytes)/(1<<20)),
		fmt.Sprintf("Estimated MACs: %d", r.TotalMACs),
		fmt.Sprintf("Peak Activation Memory: %.2f MB", float64(r.PeakActivationBytes)/(1<<20)),
		fmt.Sprintf("Depth: %d layers", r.Depth),
	}

	if len(r.PerNode) > 0 {
		lines = append(lines, "", "=== Layer Types ===")
		counts := make(map[string]int)
		for _, c := range r.PerNode {
			counts[c.OpType]++
		}
		types := make([]string, 0, len(counts))
		for t := range counts {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			lines = append(lines, fmt.Sprintf("%s: %d", t, counts[t]))
		}
	}

	if len(r.Bottlenecks) > 0 {
		lines = append(lines, "", "=== Bottlenecks ===")
		for _, b := range r.Bottlenecks {
			lines = append(lines, fmt.Sprintf("%s (%s): %.1f%% of MACs [%s]", b.Name, b.OpType, b.MACPercent, b.Severity))
		}
	}

	if len(r.Recommendations) > 0 {
		lines = append(lines, "", "=== Recommendations ===")
		for _, rec := range r.Recommendations {
			lines = append(lines, "- "+rec)
		}
	}
	return strings.Join(lines, "\n")
}

func elemCount(s tensor.Shape) int64 {
	n := int64(1)
	for _, d := range s {
		if d > 0 {
			n *= int64(d)
		}
	}
	return n
}

// kernelArea multiplies out the kernel_size attribute, defaulting to 3x3
// when the importer recorded none.
func kernelArea(n *graph.Node) int64 {
	dims := n.AttrInts("kernel_size")
	if len(dims) == 0 {
		return 9
	}
	area := int64(1)
	for _, d := range dims {
		if d > 0 {
			area *= d
		}
	}
	return area
}

func posDim(d int) int64 {
	if d > 0 {
		return int64(d)
	}
	return 1
}
