// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package quant provides post-training quantization for Ember graphs.
//
// # Overview
//
// Quantization maps float32 weights and activation ranges onto integer grids
// so generated code can run fixed-point kernels on MCU targets:
//   - per-channel weight quantization for conv2d, dense, and linear nodes
//   - fixed int32 asymmetric bias quantization
//   - activation range calibration from representative input samples
//
// # Modes
//
// Four widths are supported: int8, uint8, int16, and int32. Weights use the
// configured mode; biases always quantize to int32 regardless.
//
// # Basic Usage
//
//	quantized, err := quant.Quantize(g, quant.ModeInt8, samples, true)
//	if err != nil {
//	    return err
//	}
//	stats := quant.CollectStats(quantized)
//	fmt.Printf("%.1fx smaller\n", stats.CompressionRatio)
//
// The input graph is never mutated. Quantize returns a rewritten clone
// carrying integer weight tensors and per-channel parameters on the node
// attributes, with a quantization record in the graph metadata.
//
// # Calibration
//
// With no samples the engine falls back to conservative per-op default
// ranges and logs a warning. Supplying representative inputs tightens the
// recorded activation ranges.
package quant
