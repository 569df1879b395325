package passes

import (
	"sort"

	"github.com/born-ml/ember/internal/graph"
)

// MemoryPoolAssignment tags every node-produced tensor with a memory pool
// id so the code generator can share static buffers between tensors whose
// live ranges do not overlap.
//
// A tensor's live range runs from the index of the node producing it to
// the index of its last consumer. Declared graph outputs stay live to the
// end of the program. Assignment is a linear scan in creation order with
// first-fit pool selection; the pool count is valid but not guaranteed
// minimal. Weights and graph inputs are static and never pooled.
type MemoryPoolAssignment struct{}

type liveRange struct {
	name  string
	start int
	end   int
}

// Name implements Pass.
func (MemoryPoolAssignment) Name() string { return "memory_pool_assignment" }

// CanApply implements Pass.
func (MemoryPoolAssignment) CanApply(g *graph.Graph) bool {
	return g != nil && len(g.Nodes) > 0
}

// Apply implements Pass.
func (MemoryPoolAssignment) Apply(g *graph.Graph) *graph.Graph {
	out := g.Clone()
	ranges := liveRanges(out)
	sort.SliceStable(ranges, func(a, b int) bool { return ranges[a].start < ranges[b].start })

	var pools [][]liveRange
	assignment := make(map[string]int, len(ranges))
	for _, r := range ranges {
		id := -1
		for candidate, pool := range pools {
			if disjoint(pool, r) {
				id = candidate
				break
			}
		}
		if id < 0 {
			pools = append(pools, nil)
			id = len(pools) - 1
		}
		pools[id] = append(pools[id], r)
		assignment[r.name] = id
	}

	out.Metadata.MemoryPools = assignment
	out.Metadata.PoolCount = len(pools)
	return out
}

// liveRanges computes creation and last-use indices for every tensor name
// produced by a node, in production order.
func liveRanges(g *graph.Graph) []liveRange {
	last := len(g.Nodes) - 1
	declared := make(map[string]bool)
	for _, name := range g.OutputNames() {
		declared[name] = true
	}

	byName := make(map[string]int, len(g.Nodes))
	var ranges []liveRange
	for i, n := range g.Nodes {
		for _, out := range n.Outputs {
			if _, dup := byName[out]; dup {
				continue
			}
			end := i
			if declared[out] {
				end = last
			}
			byName[out] = len(ranges)
			ranges = append(ranges, liveRange{name: out, start: i, end: end})
		}
		for _, in := range n.Inputs {
			if j, ok := byName[in]; ok && i > ranges[j].end {
				ranges[j].end = i
			}
		}
	}
	return ranges
}

// disjoint reports whether r overlaps none of the ranges already in pool.
func disjoint(pool []liveRange, r liveRange) bool {
	for _, s := range pool {
		if !(r.end < s.start || r.start > s.end) {
			return false
		}
	}
	return true
}
