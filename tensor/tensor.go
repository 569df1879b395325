// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public API for ember's weight and
// activation tensors.
//
// Tensors are dense, contiguous, row-major containers with a fixed
// element type. The compiler uses them for model weights, calibration
// samples, and folded constants; they carry no gradient or device
// machinery.
//
// Example:
//
//	w, err := tensor.FromFloat32(tensor.Shape{2, 3},
//	    []float32{1, 2, 3, 4, 5, 6})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(w.Shape(), w.DType())  // (2, 3) float32
package tensor

import "github.com/born-ml/ember/internal/tensor"

// Type aliases for public API

// DataType identifies the element type of a tensor.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Int8    DataType = tensor.Int8
	UInt8   DataType = tensor.UInt8
	Int16   DataType = tensor.Int16
	Int32   DataType = tensor.Int32
	Float16 DataType = tensor.Float16
)

// Shape represents the dimensions of a tensor.
// Example: Shape{1, 3, 224, 224} is a batch of one RGB image.
type Shape = tensor.Shape

// Tensor is a dense, contiguous, row-major tensor.
type Tensor = tensor.Tensor

// ParseDataType maps a type name ("float32", "int8", ...) to its
// DataType constant.
func ParseDataType(s string) (DataType, error) {
	return tensor.ParseDataType(s)
}

// Creation functions

// New creates a zero-filled tensor with the given type and shape.
func New(dtype DataType, shape Shape) (*Tensor, error) {
	return tensor.New(dtype, shape)
}

// Splat creates a float32 tensor with every element set to value.
func Splat(shape Shape, value float32) (*Tensor, error) {
	return tensor.Splat(shape, value)
}

// FromFloat32 creates a float32 tensor from a value slice. The slice
// length must match the shape's element count.
func FromFloat32(shape Shape, values []float32) (*Tensor, error) {
	return tensor.FromFloat32(shape, values)
}

// FromInt8 creates an int8 tensor from a value slice.
func FromInt8(shape Shape, values []int8) (*Tensor, error) {
	return tensor.FromInt8(shape, values)
}

// FromUint8 creates a uint8 tensor from a value slice.
func FromUint8(shape Shape, values []uint8) (*Tensor, error) {
	return tensor.FromUint8(shape, values)
}

// FromInt16 creates an int16 tensor from a value slice.
func FromInt16(shape Shape, values []int16) (*Tensor, error) {
	return tensor.FromInt16(shape, values)
}

// FromInt32 creates an int32 tensor from a value slice.
func FromInt32(shape Shape, values []int32) (*Tensor, error) {
	return tensor.FromInt32(shape, values)
}

// FromBytes creates a tensor over a copy of raw little-endian data.
func FromBytes(dtype DataType, shape Shape, data []byte) (*Tensor, error) {
	return tensor.FromBytes(dtype, shape, data)
}

// FromFloat16Bits widens IEEE 754 half-precision bit patterns into a
// float32 tensor.
func FromFloat16Bits(shape Shape, bits []uint16) (*Tensor, error) {
	return tensor.FromFloat16Bits(shape, bits)
}

// FromFloat16Bytes widens raw little-endian half-precision data into a
// float32 tensor.
func FromFloat16Bytes(shape Shape, data []byte) (*Tensor, error) {
	return tensor.FromFloat16Bytes(shape, data)
}
