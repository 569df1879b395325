package model

import (
	"fmt"
	"time"

	"github.com/born-ml/ember/internal/graph"
	"github.com/born-ml/ember/internal/tensor"
)

// Format constants.
const (
	MagicBytes      = "EMBR"
	FormatVersion   = 1
	HeaderAlignment = 64 // Tensor data alignment
	FixedHeaderSize = 64 // Fixed preamble size (0x40 bytes)
	ChecksumSize    = 32 // SHA-256
	ChecksumOffset  = 0x20
)

// Flags in the fixed preamble.
const (
	FlagQuantized uint32 = 1 << 0 // weights carry quantization state
	FlagHasPools  uint32 = 1 << 1 // memory pools assigned
)

// Data type string constants for serialization.
const (
	DTypeFloat32 = "float32"
	DTypeFloat16 = "float16"
	DTypeInt8    = "int8"
	DTypeUInt8   = "uint8"
	DTypeInt16   = "int16"
	DTypeInt32   = "int32"
)

// Attribute kind strings for serialization.
const (
	attrKindInt    = "int"
	attrKindFloat  = "float"
	attrKindString = "string"
	attrKindInts   = "ints"
	attrKindFloats = "floats"
	attrKindTensor = "tensor"
)

// Header is the JSON graph description in an .embr file.
type Header struct {
	FormatVersion int            `json:"format_version"`
	EmberVersion  string         `json:"ember_version"`
	Name          string         `json:"name"`
	CreatedAt     time.Time      `json:"created_at"`
	Inputs        []ValueRecord  `json:"inputs,omitempty"`
	Outputs       []ValueRecord  `json:"outputs,omitempty"`
	Nodes         []NodeRecord   `json:"nodes,omitempty"`
	Metadata      graph.Metadata `json:"metadata"`
	Tensors       []TensorMeta   `json:"tensors"`

	// headerLen is the encoded JSON size, recorded while reading so the
	// loader can locate the aligned data section.
	headerLen uint64
}

// ValueRecord serializes one boundary declaration.
type ValueRecord struct {
	Name  string `json:"name"`
	DType string `json:"dtype"`
	Shape []int  `json:"shape,omitempty"`
}

// NodeRecord serializes one operation.
type NodeRecord struct {
	Name    string       `json:"name"`
	OpType  string       `json:"op_type"`
	Inputs  []string     `json:"inputs,omitempty"`
	Outputs []string     `json:"outputs,omitempty"`
	Attrs   []AttrRecord `json:"attrs,omitempty"`
}

// AttrRecord serializes one node attribute. Kind selects the payload
// field; tensor payloads are inlined with base64 data.
type AttrRecord struct {
	Name        string    `json:"name"`
	Kind        string    `json:"kind"`
	I           int64     `json:"i,omitempty"`
	F           float64   `json:"f,omitempty"`
	S           string    `json:"s,omitempty"`
	Ints        []int64   `json:"ints,omitempty"`
	Floats      []float64 `json:"floats,omitempty"`
	TensorDType string    `json:"tensor_dtype,omitempty"`
	TensorShape []int     `json:"tensor_shape,omitempty"`
	TensorData  []byte    `json:"tensor_data,omitempty"`
}

// TensorMeta describes one weight tensor in the data section.
type TensorMeta struct {
	Name   string `json:"name"`
	DType  string `json:"dtype"`
	Shape  []int  `json:"shape"`
	Offset int64  `json:"offset"`
	Size   int64  `json:"size"`
}

func dtypeToString(dt tensor.DataType) (string, error) {
	switch dt {
	case tensor.Float32:
		return DTypeFloat32, nil
	case tensor.Float16:
		return DTypeFloat16, nil
	case tensor.Int8:
		return DTypeInt8, nil
	case tensor.UInt8:
		return DTypeUInt8, nil
	case tensor.Int16:
		return DTypeInt16, nil
	case tensor.Int32:
		return DTypeInt32, nil
	default:
		return "", fmt.Errorf("unsupported dtype %d", int(dt))
	}
}

func stringToDtype(s string) (tensor.DataType, bool) {
	switch s {
	case DTypeFloat32:
		return tensor.Float32, true
	case DTypeFloat16:
		return tensor.Float16, true
	case DTypeInt8:
		return tensor.Int8, true
	case DTypeUInt8:
		return tensor.UInt8, true
	case DTypeInt16:
		return tensor.Int16, true
	case DTypeInt32:
		return tensor.Int32, true
	default:
		return 0, false
	}
}

func attrToRecord(a graph.Attribute) (AttrRecord, error) {
	rec := AttrRecord{Name: a.Name}
	switch a.Kind {
	case graph.AttrInt:
		rec.Kind = attrKindInt
		rec.I = a.I
	case graph.AttrFloat:
		rec.Kind = attrKindFloat
		rec.F = a.F
	case graph.AttrString:
		rec.Kind = attrKindString
		rec.S = a.S
	case graph.AttrIntList:
		rec.Kind = attrKindInts
		rec.Ints = a.Ints
	case graph.AttrFloatList:
		rec.Kind = attrKindFloats
		rec.Floats = a.Floats
	case graph.AttrTensor:
		if a.T == nil {
			return rec, fmt.Errorf("attribute %q: nil tensor", a.Name)
		}
		dt, err := dtypeToString(a.T.DType())
		if err != nil {
			return rec, fmt.Errorf("attribute %q: %w", a.Name, err)
		}
		rec.Kind = attrKindTensor
		rec.TensorDType = dt
		rec.TensorShape = []int(a.T.Shape())
		rec.TensorData = append([]byte(nil), a.T.Data()...)
	default:
		return rec, fmt.Errorf("attribute %q: unknown kind %d", a.Name, int(a.Kind))
	}
	return rec, nil
}

func attrFromRecord(rec AttrRecord) (graph.Attribute, error) {
	switch rec.Kind {
	case attrKindInt:
		return graph.IntAttr(rec.Name, rec.I), nil
	case attrKindFloat:
		return graph.FloatAttr(rec.Name, rec.F), nil
	case attrKindString:
		return graph.StringAttr(rec.Name, rec.S), nil
	case attrKindInts:
		return graph.IntsAttr(rec.Name, rec.Ints), nil
	case attrKindFloats:
		return graph.FloatsAttr(rec.Name, rec.Floats), nil
	case attrKindTensor:
		t, err := decodeTensor(rec.TensorDType, rec.TensorShape, rec.TensorData)
		if err != nil {
			return graph.Attribute{}, fmt.Errorf("attribute %q: %w", rec.Name, err)
		}
		return graph.TensorAttr(rec.Name, t), nil
	default:
		return graph.Attribute{}, fmt.Errorf("attribute %q: unknown kind %q", rec.Name, rec.Kind)
	}
}

// decodeTensor materializes tensor bytes, widening float16 to float32.
func decodeTensor(dtypeName string, shape []int, data []byte) (*tensor.Tensor, error) {
	dtype, ok := stringToDtype(dtypeName)
	if !ok {
		return nil, fmt.Errorf("unsupported dtype %q", dtypeName)
	}
	if dtype == tensor.Float16 {
		return tensor.FromFloat16Bytes(tensor.Shape(shape), data)
	}
	return tensor.FromBytes(dtype, tensor.Shape(shape), data)
}
