// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package quant provides the public API for ember's post-training
// quantization engine.
//
// Weights are quantized per output channel; activation ranges come from
// calibration samples run through a lightweight range-propagation pass.
// The input graph is never modified.
//
// Example:
//
//	quantized, err := quant.Quantize(g, quant.ModeInt8, samples, true)
package quant

import (
	"github.com/born-ml/ember/internal/graph"
	"github.com/born-ml/ember/internal/parallel"
	"github.com/born-ml/ember/internal/quant"
	"github.com/born-ml/ember/internal/tensor"
)

// Type aliases for public API

// Mode selects the integer representation.
type Mode = quant.Mode

// Quantization modes.
const (
	ModeInt8  Mode = quant.ModeInt8
	ModeUInt8 Mode = quant.ModeUInt8
	ModeInt16 Mode = quant.ModeInt16
	ModeInt32 Mode = quant.ModeInt32
)

// Engine drives weight quantization, activation calibration, and
// validation for one graph at a time.
type Engine = quant.Engine

// Stats summarizes the effect of a quantization run.
type Stats = quant.Stats

// Issue is one finding from quantization validation.
type Issue = quant.Issue

// ParseMode maps a mode name ("int8", "uint8", ...) to its constant.
func ParseMode(s string) (Mode, error) {
	return quant.ParseMode(s)
}

// NewEngine builds an engine for a mode and scheme.
func NewEngine(mode Mode, symmetric bool) *Engine {
	return quant.NewEngine(mode, symmetric, parallel.DefaultConfig(), nil)
}

// Quantize produces a quantized copy of g in one shot.
func Quantize(g *graph.Graph, mode Mode, samples []*tensor.Tensor, symmetric bool) (*graph.Graph, error) {
	return quant.Quantize(g, mode, samples, symmetric)
}

// Check looks for numerically suspect parameters in a quantized graph.
func Check(g *graph.Graph) []Issue {
	return quant.Check(g)
}

// CollectStats counts quantized layers and estimates the weight storage
// reduction relative to float32.
func CollectStats(quantized *graph.Graph) Stats {
	return quant.CollectStats(quantized)
}
