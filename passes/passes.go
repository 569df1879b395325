// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package passes provides the public API for ember's graph optimization
// pipeline.
//
// Optimization levels select a fixed pass prefix:
//
//	0: no optimization
//	1: constant folding
//	2: + layer fusion, dead code elimination
//	3: + memory pool assignment
//
// Example:
//
//	optimized, err := passes.Run(g, 2, logger)
package passes

import (
	"go.uber.org/zap"

	"github.com/born-ml/ember/internal/graph"
	"github.com/born-ml/ember/internal/passes"
)

// Type aliases for public API

// Pass is one graph-to-graph optimization.
type Pass = passes.Pass

// Stats summarizes the effect of an optimization run.
type Stats = passes.Stats

// MaxLevel is the highest supported optimization level.
const MaxLevel = passes.MaxLevel

// Run applies the passes for the given level in order. A nil logger
// means silent.
func Run(g *graph.Graph, level int, logger *zap.Logger) (*graph.Graph, error) {
	return passes.Run(g, level, logger)
}

// ForLevel returns the pass list an optimization level selects.
func ForLevel(level int) ([]Pass, error) {
	return passes.ForLevel(level)
}

// CollectStats compares a graph before and after optimization.
func CollectStats(before, after *graph.Graph) Stats {
	return passes.CollectStats(before, after)
}
