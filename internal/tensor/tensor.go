package tensor

import (
	"fmt"
	"math"
	"unsafe"
)

// Tensor is a contiguous, typed, shaped numeric buffer.
//
// Unlike a runtime tensor there is no device, no strided views, and no
// buffer sharing: a compilation pipeline owns every tensor it holds
// exclusively, so Clone always deep-copies.
type Tensor struct {
	dtype DataType
	shape Shape
	data  []byte
}

// New creates a zero-filled tensor with the given type and shape.
func New(dtype DataType, shape Shape) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	return &Tensor{
		dtype: dtype,
		shape: shape.Clone(),
		data:  make([]byte, shape.NumElements()*dtype.Size()),
	}, nil
}

// FromFloat32 creates a Float32 tensor from a value slice.
// The slice length must match the shape's element count.
func FromFloat32(shape Shape, values []float32) (*Tensor, error) {
	t, err := New(Float32, shape)
	if err != nil {
		return nil, err
	}
	if len(values) != t.NumElements() {
		return nil, fmt.Errorf("value count %d does not match shape %v (%d elements)",
			len(values), shape, t.NumElements())
	}
	copy(t.AsFloat32(), values)
	return t, nil
}

// FromInt8 creates an Int8 tensor from a value slice.
func FromInt8(shape Shape, values []int8) (*Tensor, error) {
	t, err := New(Int8, shape)
	if err != nil {
		return nil, err
	}
	if len(values) != t.NumElements() {
		return nil, fmt.Errorf("value count %d does not match shape %v (%d elements)",
			len(values), shape, t.NumElements())
	}
	copy(t.AsInt8(), values)
	return t, nil
}

// FromUint8 creates a UInt8 tensor from a value slice.
func FromUint8(shape Shape, values []uint8) (*Tensor, error) {
	t, err := New(UInt8, shape)
	if err != nil {
		return nil, err
	}
	if len(values) != t.NumElements() {
		return nil, fmt.Errorf("value count %d does not match shape %v (%d elements)",
			len(values), shape, t.NumElements())
	}
	copy(t.AsUint8(), values)
	return t, nil
}

// FromInt16 creates an Int16 tensor from a value slice.
func FromInt16(shape Shape, values []int16) (*Tensor, error) {
	t, err := New(Int16, shape)
	if err != nil {
		return nil, err
	}
	if len(values) != t.NumElements() {
		return nil, fmt.Errorf("value count %d does not match shape %v (%d elements)",
			len(values), shape, t.NumElements())
	}
	copy(t.AsInt16(), values)
	return t, nil
}

// FromInt32 creates an Int32 tensor from a value slice.
func FromInt32(shape Shape, values []int32) (*Tensor, error) {
	t, err := New(Int32, shape)
	if err != nil {
		return nil, err
	}
	if len(values) != t.NumElements() {
		return nil, fmt.Errorf("value count %d does not match shape %v (%d elements)",
			len(values), shape, t.NumElements())
	}
	copy(t.AsInt32(), values)
	return t, nil
}

// FromBytes creates a tensor that adopts raw little-endian element data.
// The byte length must match the shape and dtype exactly.
func FromBytes(dtype DataType, shape Shape, data []byte) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	want := shape.NumElements() * dtype.Size()
	if len(data) != want {
		return nil, fmt.Errorf("data length %d does not match %s shape %v (%d bytes)",
			len(data), dtype, shape, want)
	}
	buf := make([]byte, want)
	copy(buf, data)
	return &Tensor{dtype: dtype, shape: shape.Clone(), data: buf}, nil
}

// Splat creates a Float32 tensor with every element set to value.
// Constant folding uses this to materialize folded results.
func Splat(shape Shape, value float32) (*Tensor, error) {
	t, err := New(Float32, shape)
	if err != nil {
		return nil, err
	}
	vals := t.AsFloat32()
	for i := range vals {
		vals[i] = value
	}
	return t, nil
}

// DType returns the tensor's data type.
func (t *Tensor) DType() DataType {
	return t.dtype
}

// Shape returns the tensor's shape.
func (t *Tensor) Shape() Shape {
	return t.shape
}

// NumElements returns the total number of elements.
func (t *Tensor) NumElements() int {
	return t.shape.NumElements()
}

// ByteSize returns the total memory size in bytes.
func (t *Tensor) ByteSize() int {
	return len(t.data)
}

// Data returns the raw byte slice.
// WARNING: Direct access to underlying memory. Use with caution.
func (t *Tensor) Data() []byte {
	return t.data
}

// AsFloat32 interprets the data as []float32.
// Panics if the tensor's dtype is not Float32.
func (t *Tensor) AsFloat32() []float32 {
	if t.dtype != Float32 {
		panic(fmt.Sprintf("tensor dtype is %s, not float32", t.dtype))
	}
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds checked by NumElements()
	return unsafe.Slice((*float32)(unsafe.Pointer(&t.data[0])), t.NumElements())
}

// AsInt8 interprets the data as []int8.
// Panics if the tensor's dtype is not Int8.
func (t *Tensor) AsInt8() []int8 {
	if t.dtype != Int8 {
		panic(fmt.Sprintf("tensor dtype is %s, not int8", t.dtype))
	}
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds checked by NumElements()
	return unsafe.Slice((*int8)(unsafe.Pointer(&t.data[0])), t.NumElements())
}

// AsUint8 interprets the data as []uint8.
// Panics if the tensor's dtype is not UInt8.
func (t *Tensor) AsUint8() []uint8 {
	if t.dtype != UInt8 {
		panic(fmt.Sprintf("tensor dtype is %s, not uint8", t.dtype))
	}
	return t.data // Already []byte = []uint8
}

// AsInt16 interprets the data as []int16.
// Panics if the tensor's dtype is not Int16.
func (t *Tensor) AsInt16() []int16 {
	if t.dtype != Int16 {
		panic(fmt.Sprintf("tensor dtype is %s, not int16", t.dtype))
	}
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds checked by NumElements()
	return unsafe.Slice((*int16)(unsafe.Pointer(&t.data[0])), t.NumElements())
}

// AsInt32 interprets the data as []int32.
// Panics if the tensor's dtype is not Int32.
func (t *Tensor) AsInt32() []int32 {
	if t.dtype != Int32 {
		panic(fmt.Sprintf("tensor dtype is %s, not int32", t.dtype))
	}
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds checked by NumElements()
	return unsafe.Slice((*int32)(unsafe.Pointer(&t.data[0])), t.NumElements())
}

// Clone returns a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	data := make([]byte, len(t.data))
	copy(data, t.data)
	return &Tensor{
		dtype: t.dtype,
		shape: t.shape.Clone(),
		data:  data,
	}
}

// HasNonFinite reports whether a Float32 tensor contains NaN or Inf values.
// Returns false for integer tensors, which cannot hold non-finite values.
func (t *Tensor) HasNonFinite() bool {
	if t.dtype != Float32 {
		return false
	}
	for _, v := range t.AsFloat32() {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return true
		}
	}
	return false
}

// String returns a short human-readable description.
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(%s, %v)", t.dtype, t.shape)
}
