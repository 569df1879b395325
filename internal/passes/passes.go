// Package passes implements the graph optimization pipeline: an ordered
// sequence of pure rewrite passes selected by an integer optimization level.
//
// Every pass consumes a graph and returns a new one; the input graph is
// never mutated, so callers can hold onto intermediate results safely.
// Levels are cumulative: the pass list for level N is a strict prefix of
// the list for level N+1.
package passes

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/born-ml/ember/internal/graph"
)

// MaxLevel is the highest supported optimization level.
const MaxLevel = 3

// ErrInvalidLevel reports an optimization level outside [0, MaxLevel].
var ErrInvalidLevel = errors.New("optimization level out of range")

// Pass is a single graph-rewrite step.
//
// Apply must be pure: it returns a new graph and leaves its argument
// untouched. Passes never fail; on input they cannot improve they return
// an equivalent graph.
type Pass interface {
	Name() string
	CanApply(g *graph.Graph) bool
	Apply(g *graph.Graph) *graph.Graph
}

// ForLevel returns the ordered pass list for an optimization level.
//
//	0: none
//	1: constant folding
//	2: + layer fusion, dead code elimination
//	3: + memory pool assignment
func ForLevel(level int) ([]Pass, error) {
	if level < 0 || level > MaxLevel {
		return nil, fmt.Errorf("%w: %d (want 0..%d)", ErrInvalidLevel, level, MaxLevel)
	}
	all := []Pass{
		ConstantFolding{},
		LayerFusion{},
		DeadCodeElimination{},
		MemoryPoolAssignment{},
	}
	prefix := [MaxLevel + 1]int{0, 1, 3, 4}
	return all[:prefix[level]], nil
}

// Run applies the passes for the given level in order and returns the
// resulting graph. Passes whose CanApply predicate rejects the current
// graph are skipped. A pass whose output no longer resolves the graph's
// declared boundary is discarded with a warning; the pipeline continues
// from the last good graph.
func Run(g *graph.Graph, level int, logger *zap.Logger) (*graph.Graph, error) {
	selected, err := ForLevel(level)
	if err != nil {
		return nil, err
	}
	return RunPasses(g, selected, logger), nil
}

// RunPasses applies an explicit pass list in order. Most callers want Run.
func RunPasses(g *graph.Graph, selected []Pass, logger *zap.Logger) *graph.Graph {
	if logger == nil {
		logger = zap.NewNop()
	}
	current := g
	for _, p := range selected {
		if !p.CanApply(current) {
			logger.Debug("pass skipped", zap.String("pass", p.Name()))
			continue
		}
		next := p.Apply(current)
		if err := checkIntegrity(next); err != nil {
			logger.Warn("pass result discarded: graph integrity violated",
				zap.String("pass", p.Name()),
				zap.Error(err))
			continue
		}
		logger.Info("pass applied",
			zap.String("pass", p.Name()),
			zap.Int("nodes_before", len(current.Nodes)),
			zap.Int("nodes_after", len(next.Nodes)))
		current = next
	}
	return current
}

// checkIntegrity verifies the invariants every pass must preserve: no
// dangling node inputs and a resolvable declared boundary.
func checkIntegrity(g *graph.Graph) error {
	if g == nil {
		return errors.New("pass returned nil graph")
	}
	for _, n := range g.Nodes {
		for _, in := range n.Inputs {
			if !g.Resolvable(in) {
				return fmt.Errorf("node %q input %q does not resolve", n.Name, in)
			}
		}
	}
	for _, out := range g.Outputs {
		if !g.Resolvable(out.Name) {
			return fmt.Errorf("declared output %q does not resolve", out.Name)
		}
	}
	return nil
}

// Stats summarizes the effect of an optimization run.
type Stats struct {
	NodesBefore  int `json:"nodes_before"`
	NodesAfter   int `json:"nodes_after"`
	NodesRemoved int `json:"nodes_removed"`
	PoolCount    int `json:"pool_count"`
}

// CollectStats compares a graph before and after optimization.
func CollectStats(before, after *graph.Graph) Stats {
	s := Stats{}
	if before != nil {
		s.NodesBefore = len(before.Nodes)
	}
	if after != nil {
		s.NodesAfter = len(after.Nodes)
		s.PoolCount = after.Metadata.PoolCount
	}
	s.NodesRemoved = s.NodesBefore - s.NodesAfter
	return s
}
