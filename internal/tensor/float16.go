package tensor

import (
	"encoding/binary"
	"fmt"

	"github.com/x448/float16"
)

// FromFloat16Bits creates a Float32 tensor from raw IEEE 754 half-precision
// bit patterns. Exporters frequently ship weights as float16 to halve file
// size; the compiler widens them immediately because no pipeline stage
// computes in half precision.
func FromFloat16Bits(shape Shape, bits []uint16) (*Tensor, error) {
	t, err := New(Float32, shape)
	if err != nil {
		return nil, err
	}
	if len(bits) != t.NumElements() {
		return nil, fmt.Errorf("value count %d does not match shape %v (%d elements)",
			len(bits), shape, t.NumElements())
	}
	vals := t.AsFloat32()
	for i, b := range bits {
		vals[i] = float16.Frombits(b).Float32()
	}
	return t, nil
}

// FromFloat16Bytes creates a Float32 tensor from a little-endian float16
// byte buffer, as stored in the model container's data section.
func FromFloat16Bytes(shape Shape, data []byte) (*Tensor, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("float16 data length %d is not a multiple of 2", len(data))
	}
	bits := make([]uint16, len(data)/2)
	for i := range bits {
		bits[i] = binary.LittleEndian.Uint16(data[i*2:])
	}
	return FromFloat16Bits(shape, bits)
}
