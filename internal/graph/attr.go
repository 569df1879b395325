package graph

import (
	"github.com/born-ml/ember/internal/tensor"
)

// AttrKind identifies which field of an Attribute carries the value.
type AttrKind uint8

// Attribute value kinds. The set is closed; booleans are stored as ints
// (0/1), following the ONNX attribute convention.
const (
	AttrInvalid AttrKind = iota
	AttrInt
	AttrFloat
	AttrString
	AttrIntList
	AttrFloatList
	AttrTensor
)

// String returns the kind's wire name, used by the model container.
func (k AttrKind) String() string {
	switch k {
	case AttrInt:
		return "int"
	case AttrFloat:
		return "float"
	case AttrString:
		return "string"
	case AttrIntList:
		return "ints"
	case AttrFloatList:
		return "floats"
	case AttrTensor:
		return "tensor"
	default:
		return "invalid"
	}
}

// ParseAttrKind converts a wire name back to an AttrKind.
func ParseAttrKind(s string) AttrKind {
	switch s {
	case "int":
		return AttrInt
	case "float":
		return AttrFloat
	case "string":
		return AttrString
	case "ints":
		return AttrIntList
	case "floats":
		return AttrFloatList
	case "tensor":
		return AttrTensor
	default:
		return AttrInvalid
	}
}

// Attribute is one tagged operation parameter. Exactly one value field is
// meaningful, selected by Kind; the constructors below are the only
// sanctioned way to build one.
type Attribute struct {
	Name   string
	Kind   AttrKind
	I      int64
	F      float64
	S      string
	Ints   []int64
	Floats []float64
	T      *tensor.Tensor
}

// IntAttr builds an integer attribute.
func IntAttr(name string, v int64) Attribute {
	return Attribute{Name: name, Kind: AttrInt, I: v}
}

// BoolAttr builds a boolean attribute, stored as int 0/1.
func BoolAttr(name string, v bool) Attribute {
	var i int64
	if v {
		i = 1
	}
	return Attribute{Name: name, Kind: AttrInt, I: i}
}

// FloatAttr builds a float attribute.
func FloatAttr(name string, v float64) Attribute {
	return Attribute{Name: name, Kind: AttrFloat, F: v}
}

// StringAttr builds a string attribute.
func StringAttr(name, v string) Attribute {
	return Attribute{Name: name, Kind: AttrString, S: v}
}

// IntsAttr builds an integer-list attribute.
func IntsAttr(name string, v []int64) Attribute {
	return Attribute{Name: name, Kind: AttrIntList, Ints: v}
}

// FloatsAttr builds a float-list attribute.
func FloatsAttr(name string, v []float64) Attribute {
	return Attribute{Name: name, Kind: AttrFloatList, Floats: v}
}

// TensorAttr builds a tensor-valued attribute.
func TensorAttr(name string, t *tensor.Tensor) Attribute {
	return Attribute{Name: name, Kind: AttrTensor, T: t}
}

// Clone returns a deep copy of the attribute.
func (a Attribute) Clone() Attribute {
	out := a
	if a.Ints != nil {
		out.Ints = append([]int64(nil), a.Ints...)
	}
	if a.Floats != nil {
		out.Floats = append([]float64(nil), a.Floats...)
	}
	if a.T != nil {
		out.T = a.T.Clone()
	}
	return out
}
