package passes

import "github.com/born-ml/ember/internal/graph"

// DeadCodeElimination removes nodes that cannot reach the graph's outputs.
//
// Reachability is a mark-and-sweep walking backward from the declared
// output names (or, for graphs without declarations, the last node's
// outputs) through node inputs. Names that resolve to weights or graph
// inputs terminate the walk. Survivor order is preserved and the weights
// map is left untouched, so DCE is idempotent.
type DeadCodeElimination struct{}

// Name implements Pass.
func (DeadCodeElimination) Name() string { return "dead_code_elimination" }

// CanApply implements Pass.
func (DeadCodeElimination) CanApply(g *graph.Graph) bool {
	return g != nil && len(g.Nodes) > 0
}

// Apply implements Pass.
func (DeadCodeElimination) Apply(g *graph.Graph) *graph.Graph {
	out := g.Clone()
	roots := out.OutputNames()
	if len(roots) == 0 {
		return out
	}

	producers := out.Producers()
	live := make(map[*graph.Node]bool, len(out.Nodes))
	seen := make(map[string]bool, len(out.Nodes))
	stack := append([]string(nil), roots...)
	for len(stack) > 0 {
		name := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[name] {
			continue
		}
		seen[name] = true

		producer, ok := producers[name]
		if !ok {
			continue // weight or graph input
		}
		if live[producer] {
			continue
		}
		live[producer] = true
		stack = append(stack, producer.Inputs...)
	}

	kept := out.Nodes[:0]
	for _, n := range out.Nodes {
		if live[n] {
			kept = append(kept, n)
		}
	}
	out.Nodes = kept
	return out
}
