// Package tensor provides the value types shared by every stage of the
// Ember compilation pipeline: a closed element-type enum, shapes, and a
// contiguous typed buffer for weight and constant data.
package tensor

import "fmt"

// DataType represents runtime type information for tensors.
//
// The set is closed: these are the only element types the compiler stores.
// Float16 is an interchange type only; weights arriving as float16 are
// widened to Float32 at construction and never computed on directly.
type DataType int

// Supported data types for tensors.
const (
	Float32 DataType = iota
	Int8
	UInt8
	Int16
	Int32
	Float16
)

// Size returns the byte size of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float32, Int32:
		return 4
	case Int16, Float16:
		return 2
	case Int8, UInt8:
		return 1
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Int8:
		return "int8"
	case UInt8:
		return "uint8"
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case Float16:
		return "float16"
	default:
		return "unknown"
	}
}

// IsInteger reports whether the data type is one of the fixed-point
// integer types produced by quantization.
func (dt DataType) IsInteger() bool {
	switch dt {
	case Int8, UInt8, Int16, Int32:
		return true
	default:
		return false
	}
}

// ParseDataType converts a textual type name to a DataType.
// Names match String(); "float" is accepted as an alias for float32.
func ParseDataType(s string) (DataType, error) {
	switch s {
	case "float32", "float":
		return Float32, nil
	case "int8":
		return Int8, nil
	case "uint8":
		return UInt8, nil
	case "int16":
		return Int16, nil
	case "int32":
		return Int32, nil
	case "float16":
		return Float16, nil
	default:
		return 0, fmt.Errorf("unknown data type %q", s)
	}
}
