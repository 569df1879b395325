// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package compile wires the full Ember pipeline behind one call.
//
// # Overview
//
// Compile takes a float32 graph and produces C source and header text for an
// embedded target. The stages run in a fixed order:
//   - structural validation
//   - graph optimization at the configured level
//   - post-training quantization (optional)
//   - C code generation for the target
//
// # Basic Usage
//
//	cfg := compile.DefaultConfig()
//	cfg.Target = "cortex-m"
//	res, err := compile.Compile(g, cfg, samples)
//	if err != nil {
//	    return err
//	}
//	_ = os.WriteFile("model_cortex_m.cpp", res.Source, 0o644)
//	_ = os.WriteFile("model_cortex_m.h", res.Header, 0o644)
//
// # Optimization Levels
//
// Level 0 disables optimization and level 1 folds constants. Level 2 adds
// layer fusion and dead code elimination. Level 3 additionally assigns
// static memory pools for activation buffers.
//
// # Diagnostics
//
// Warnings never halt a compile. They flow through the zap logger carried in
// Config.Logger; leave it nil for silence.
package compile
