// Package validate checks a graph against the structural contract the
// rest of the pipeline assumes: a non-empty node sequence, a declared
// boundary, schema-conformant operations, and fully resolvable data flow.
//
// Checks collect findings instead of failing fast, so one run reports
// everything wrong with a model. Errors make a graph unfit for
// compilation; warnings are advisory and never block.
package validate

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/born-ml/ember/internal/graph"
	"github.com/born-ml/ember/internal/ops"
	"github.com/born-ml/ember/internal/tensor"
)

// Result collects the findings of one validation run.
type Result struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Valid reports whether the run found no errors.
func (r Result) Valid() bool {
	return len(r.Errors) == 0
}

// String renders the result as the multi-line report the CLI prints.
func (r Result) String() string {
	var b strings.Builder
	if r.Valid() {
		b.WriteString("validation passed")
	} else {
		fmt.Fprintf(&b, "validation failed: %d error(s)", len(r.Errors))
	}
	for _, e := range r.Errors {
		fmt.Fprintf(&b, "\n  error: %s", e)
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(&b, "\n  warning: %s", w)
	}
	return b.String()
}

// Node and weight names outside these patterns cannot become C
// identifiers without mangling, so the code generator may rename them.
var (
	nodeNamePattern   = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)
	weightNamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_./]*$`)
)

// Validate runs every structural check against g and collects the
// findings. The graph is never mutated.
func Validate(g *graph.Graph) Result {
	var res Result
	if g == nil {
		res.Errors = append(res.Errors, "graph is nil")
		return res
	}
	checkStructure(g, &res)
	checkNodes(g, &res)
	checkDataFlow(g, &res)
	checkWeightData(g, &res)
	checkUnusedWeights(g, &res)
	checkBoundary(g, &res)
	checkNaming(g, &res)
	return res
}

// ValidateEmbedded runs Validate plus the embedded-deployment checks:
// model size, dynamic boundary shapes, and operations with no
// size-constrained kernel. The extra findings are all warnings.
func ValidateEmbedded(g *graph.Graph) Result {
	res := Validate(g)
	if g == nil {
		return res
	}
	checkEmbedded(g, &res)
	return res
}

func checkStructure(g *graph.Graph, res *Result) {
	if len(g.Nodes) == 0 {
		res.Errors = append(res.Errors, "graph has no computational nodes")
	}
	if len(g.Inputs) == 0 {
		res.Errors = append(res.Errors, "graph has no defined inputs")
	}
	if len(g.Outputs) == 0 {
		res.Errors = append(res.Errors, "graph has no defined outputs")
	}
}

func checkNodes(g *graph.Graph, res *Result) {
	for i, n := range g.Nodes {
		if n == nil {
			res.Errors = append(res.Errors, fmt.Sprintf("node %d: nil", i))
			continue
		}
		if n.Name == "" {
			res.Errors = append(res.Errors, fmt.Sprintf("node %d: missing name", i))
		}
		if n.OpType == "" {
			res.Errors = append(res.Errors, fmt.Sprintf("node %q: missing op type", n.Name))
			continue
		}
		schema, ok := ops.Lookup(n.OpType)
		if !ok {
			res.Errors = append(res.Errors, fmt.Sprintf("node %q: unsupported operation %q", n.Name, n.OpType))
			continue
		}
		if len(n.Inputs) < schema.MinInputs {
			res.Errors = append(res.Errors, fmt.Sprintf("node %q: too few inputs (%d < %d)",
				n.Name, len(n.Inputs), schema.MinInputs))
		} else if len(n.Inputs) > schema.MaxInputs {
			res.Errors = append(res.Errors, fmt.Sprintf("node %q: too many inputs (%d > %d)",
				n.Name, len(n.Inputs), schema.MaxInputs))
		}
		if len(n.Outputs) != schema.Outputs {
			res.Errors = append(res.Errors, fmt.Sprintf("node %q: expected %d outputs, got %d",
				n.Name, schema.Outputs, len(n.Outputs)))
		}
		for _, req := range schema.RequiredAttrs {
			if !n.HasAttr(req) {
				res.Errors = append(res.Errors, fmt.Sprintf("node %q: missing required attribute %q", n.Name, req))
			}
		}
		known := make(map[string]bool, len(schema.RequiredAttrs)+len(schema.OptionalAttrs))
		for _, a := range schema.RequiredAttrs {
			known[a] = true
		}
		for _, a := range schema.OptionalAttrs {
			known[a] = true
		}
		for _, a := range n.Attributes {
			// Attributes stamped by optimization and quantization
			// passes are legitimate on any operation.
			if known[a.Name] || ops.GeneratedAttrs[a.Name] {
				continue
			}
			res.Warnings = append(res.Warnings, fmt.Sprintf("node %q: unknown attribute %q", n.Name, a.Name))
		}
	}
}

func checkDataFlow(g *graph.Graph, res *Result) {
	producedBy := make(map[string]string, len(g.Nodes))
	for _, n := range g.Nodes {
		if n == nil {
			continue
		}
		for _, out := range n.Outputs {
			if prev, dup := producedBy[out]; dup {
				res.Errors = append(res.Errors, fmt.Sprintf("output %q produced by both %q and %q", out, prev, n.Name))
				continue
			}
			producedBy[out] = n.Name
		}
	}
	resolvable := func(name string) bool {
		if _, ok := producedBy[name]; ok {
			return true
		}
		return g.IsInput(name) || g.IsWeight(name)
	}
	for _, n := range g.Nodes {
		if n == nil {
			continue
		}
		for _, in := range n.Inputs {
			if !resolvable(in) {
				res.Errors = append(res.Errors, fmt.Sprintf("node %q: dangling input %q", n.Name, in))
			}
		}
	}
	for _, out := range g.Outputs {
		if out.Name == "" {
			continue // reported by the boundary check
		}
		if !resolvable(out.Name) {
			res.Errors = append(res.Errors, fmt.Sprintf("graph output %q is not produced", out.Name))
		}
	}
}

func checkWeightData(g *graph.Graph, res *Result) {
	for _, name := range sortedWeightNames(g) {
		w := g.Weights[name]
		if w == nil {
			res.Errors = append(res.Errors, fmt.Sprintf("weight %q: nil tensor", name))
			continue
		}
		if w.NumElements() == 0 || w.ByteSize() == 0 {
			res.Errors = append(res.Errors, fmt.Sprintf("weight %q: empty tensor", name))
		}
		if w.HasNonFinite() {
			res.Errors = append(res.Errors, fmt.Sprintf("weight %q: contains non-finite values", name))
		}
	}
}

func checkUnusedWeights(g *graph.Graph, res *Result) {
	referenced := make(map[string]bool)
	for _, n := range g.Nodes {
		if n == nil {
			continue
		}
		for _, in := range n.Inputs {
			if g.IsWeight(in) {
				referenced[in] = true
			}
		}
	}
	for _, name := range sortedWeightNames(g) {
		if !referenced[name] {
			res.Warnings = append(res.Warnings, fmt.Sprintf("unused weight %q", name))
		}
	}
}

func checkBoundary(g *graph.Graph, res *Result) {
	for i, in := range g.Inputs {
		if in.Name == "" {
			res.Errors = append(res.Errors, fmt.Sprintf("input %d: missing name", i))
		}
		if in.Shape == nil {
			res.Errors = append(res.Errors, fmt.Sprintf("input %d: missing shape", i))
		}
	}
	for i, out := range g.Outputs {
		if out.Name == "" {
			res.Errors = append(res.Errors, fmt.Sprintf("output %d: missing name", i))
		}
		if out.Shape == nil {
			res.Errors = append(res.Errors, fmt.Sprintf("output %d: missing shape", i))
		}
	}
}

func checkNaming(g *graph.Graph, res *Result) {
	for _, n := range g.Nodes {
		if n == nil || n.Name == "" {
			continue
		}
		if !nodeNamePattern.MatchString(n.Name) {
			res.Warnings = append(res.Warnings, fmt.Sprintf("node name %q does not follow naming conventions", n.Name))
		}
	}
	for _, name := range sortedWeightNames(g) {
		if !weightNamePattern.MatchString(name) {
			res.Warnings = append(res.Warnings, fmt.Sprintf("weight name %q does not follow naming conventions", name))
		}
	}
}

// Deployment limits for microcontroller-class targets.
const (
	maxEmbeddedParams = 10_000_000
	maxEmbeddedBytes  = 100 << 20
)

// Recurrent and attention operations have no static-memory kernel in the
// generated runtime.
var embeddedUnsupported = map[string]bool{
	"lstm":        true,
	"gru":         true,
	"attention":   true,
	"transformer": true,
}

func checkEmbedded(g *graph.Graph, res *Result) {
	if p := g.NumParams(); p > maxEmbeddedParams {
		res.Warnings = append(res.Warnings, fmt.Sprintf("large model: %d parameters may be challenging for embedded deployment", p))
	}
	if b := g.WeightBytes(); b > maxEmbeddedBytes {
		res.Warnings = append(res.Warnings, fmt.Sprintf("large model size: %.1fMB may exceed embedded memory constraints",
			float64(b)/(1<<20)))
	}
	for _, in := range g.Inputs {
		if dynamicShape(in.Shape) {
			res.Warnings = append(res.Warnings, fmt.Sprintf("input %q has dynamic dimensions; embedded deployment needs static shapes", in.Name))
		}
	}
	for _, out := range g.Outputs {
		if dynamicShape(out.Shape) {
			res.Warnings = append(res.Warnings, fmt.Sprintf("output %q has dynamic dimensions; embedded deployment needs static shapes", out.Name))
		}
	}
	seen := make(map[string]bool)
	for _, n := range g.Nodes {
		if n != nil && embeddedUnsupported[n.OpType] {
			seen[n.OpType] = true
		}
	}
	flagged := make([]string, 0, len(seen))
	for op := range seen {
		flagged = append(flagged, op)
	}
	sort.Strings(flagged)
	for _, op := range flagged {
		res.Warnings = append(res.Warnings, fmt.Sprintf("operation %q may not be optimized for embedded deployment", op))
	}
}

func dynamicShape(s tensor.Shape) bool {
	for _, d := range s {
		if d <= 0 {
			return true
		}
	}
	return false
}

func sortedWeightNames(g *graph.Graph) []string {
	names := make([]string, 0, len(g.Weights))
	for name := range g.Weights {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
