// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package compile provides the public API for ember's end-to-end
// pipeline: validation, optimization, quantization, and C++ code
// generation for an embedded target.
//
// Example:
//
//	cfg := compile.DefaultConfig()
//	cfg.Target = "cortex-m"
//	res, err := compile.Compile(g, cfg, calibrationSamples)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.WriteFile("model_cortex_m.cpp", res.Source, 0o644)
//	os.WriteFile("model_cortex_m.h", res.Header, 0o644)
package compile

import (
	"github.com/born-ml/ember/internal/compile"
	"github.com/born-ml/ember/internal/graph"
	"github.com/born-ml/ember/internal/tensor"
)

// Type aliases for public API

// Config selects the target, optimization level, and quantization
// scheme for one compilation.
type Config = compile.Config

// Result is the output of one compilation.
type Result = compile.Result

// Compilation errors.
var (
	ErrNilGraph      = compile.ErrNilGraph
	ErrInvalidConfig = compile.ErrInvalidConfig
	ErrInvalidGraph  = compile.ErrInvalidGraph
)

// DefaultConfig is the generic-target, level-2, symmetric-int8 setup.
func DefaultConfig() Config {
	return compile.DefaultConfig()
}

// Compile runs the full pipeline over g. The calibration samples may be
// nil; activation ranges then fall back to weight-derived defaults.
func Compile(g *graph.Graph, cfg Config, calibration []*tensor.Tensor) (*Result, error) {
	return compile.Compile(g, cfg, calibration)
}
