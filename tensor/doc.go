// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the value-tensor type shared by every stage of the
// Ember compiler.
//
// # Overview
//
// A Tensor couples a data type, a shape, and a flat byte buffer. Graphs own
// their tensors exclusively: constructors copy the slices they are given and
// Clone performs a deep copy, so two graphs never alias the same buffer.
//
// # Data Types
//
// The element type enum is closed:
//   - Float32 (the working type for all scale arithmetic)
//   - Int8, UInt8, Int16, Int32 (quantized storage)
//   - Float16 (interchange only; widened to Float32 on construction)
//
// # Basic Usage
//
//	w, err := tensor.FromFloat32(tensor.Shape{2, 3}, values)
//	if err != nil {
//	    return err
//	}
//	vals := w.AsFloat32() // zero-copy view, panics on dtype mismatch
//
// # Float16 Ingestion
//
// Models trained in half precision arrive with float16 weights. The enum
// defines no half-precision arithmetic, so FromFloat16Bits and
// FromFloat16Bytes widen each element to float32 during construction:
//
//	t, err := tensor.FromFloat16Bits(tensor.Shape{4}, bits)
//	// t.DType() == tensor.Float32
package tensor
