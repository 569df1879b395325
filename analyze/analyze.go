// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package analyze provides the public API for ember's static model
// analysis: per-layer compute cost, memory footprint, bottlenecks, and
// deployment recommendations.
//
// Example:
//
//	report := analyze.Analyze(g)
//	fmt.Println(report.Summary())
package analyze

import (
	"github.com/born-ml/ember/internal/analyze"
	"github.com/born-ml/ember/internal/graph"
	"github.com/born-ml/ember/internal/parallel"
)

// Type aliases for public API

// Report is the full analysis of one graph.
type Report = analyze.Report

// NodeCost is the static cost estimate for one node.
type NodeCost = analyze.NodeCost

// Bottleneck flags a node that dominates total compute.
type Bottleneck = analyze.Bottleneck

// Analyze computes the static cost report for g.
func Analyze(g *graph.Graph) *Report {
	return analyze.Analyze(g, parallel.DefaultConfig())
}
