// Package quant implements post-training quantization: weight tensors are
// rewritten into fixed-point form, and activation quantization parameters
// are computed from calibration data for the runtime to apply.
//
// Two schemes are supported. Symmetric quantization fixes the zero point
// at 0 and maps the largest magnitude to qmax, so the quantized band is
// [-qmax, qmax]. Asymmetric quantization spends the full integer range on
// the observed [min, max] interval.
package quant

import (
	"errors"
	"fmt"
	"math"

	"github.com/born-ml/ember/internal/graph"
	"github.com/born-ml/ember/internal/tensor"
)

// Sentinel errors for quantization failures.
var (
	ErrUnknownMode = errors.New("unknown quantization mode")
	ErrNotFloat32  = errors.New("tensor is not float32")
	ErrNotInteger  = errors.New("tensor is not an integer type")
)

// Mode names a target integer representation.
type Mode string

// Supported quantization modes. The tensor element enum is closed, so
// unsigned 16- and 32-bit variants are not offered.
const (
	ModeInt8  Mode = "int8"
	ModeUInt8 Mode = "uint8"
	ModeInt16 Mode = "int16"
	ModeInt32 Mode = "int32"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeInt8, ModeUInt8, ModeInt16, ModeInt32:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q (want int8, uint8, int16 or int32)", ErrUnknownMode, s)
	}
}

// Bits returns the mode's storage width.
func (m Mode) Bits() int {
	switch m {
	case ModeInt8, ModeUInt8:
		return 8
	case ModeInt16:
		return 16
	case ModeInt32:
		return 32
	default:
		return 0
	}
}

// Signed reports whether the mode stores signed integers.
func (m Mode) Signed() bool { return m != ModeUInt8 }

// DType returns the tensor element type backing the mode.
func (m Mode) DType() tensor.DataType {
	switch m {
	case ModeInt8:
		return tensor.Int8
	case ModeUInt8:
		return tensor.UInt8
	case ModeInt16:
		return tensor.Int16
	case ModeInt32:
		return tensor.Int32
	default:
		panic(fmt.Sprintf("quant: no dtype for mode %q", string(m)))
	}
}

// Range returns the mode's representable integer interval.
func (m Mode) Range() Range { return RangeFor(m.Bits(), m.Signed()) }

// Range is an inclusive integer interval [QMin, QMax].
type Range struct {
	QMin int64
	QMax int64
}

// RangeFor computes the representable interval for a bit width and
// signedness: signed widths cover [-2^(b-1), 2^(b-1)-1], unsigned widths
// [0, 2^b-1].
func RangeFor(bits int, signed bool) Range {
	if signed {
		return Range{QMin: -(1 << (bits - 1)), QMax: 1<<(bits-1) - 1}
	}
	return Range{QMin: 0, QMax: 1<<bits - 1}
}

// Quantizer computes (scale, zero point) parameters for a value set under
// one scheme and target mode.
type Quantizer interface {
	Name() string
	Range() Range
	DType() tensor.DataType
	Params(values []float32) graph.QuantParams
}

// New returns the quantizer for a mode and scheme selection.
func New(mode Mode, symmetric bool) Quantizer {
	if symmetric {
		return NewSymmetric(mode)
	}
	return NewAsymmetric(mode)
}

// Symmetric quantization: zero point 0, scale maps max|x| to qmax.
type Symmetric struct {
	mode Mode
	rng  Range
}

// NewSymmetric builds a symmetric quantizer for a mode.
func NewSymmetric(mode Mode) Symmetric {
	return Symmetric{mode: mode, rng: mode.Range()}
}

// Name implements Quantizer.
func (Symmetric) Name() string { return "symmetric" }

// Range implements Quantizer.
func (s Symmetric) Range() Range { return s.rng }

// DType implements Quantizer.
func (s Symmetric) DType() tensor.DataType { return s.mode.DType() }

// Params implements Quantizer. An all-zero value set gets scale 1.0, so
// the quantized tensor is entirely zero-valued rather than dividing by
// zero.
func (s Symmetric) Params(values []float32) graph.QuantParams {
	var maxAbs float64
	for _, v := range values {
		if a := math.Abs(float64(v)); a > maxAbs {
			maxAbs = a
		}
	}
	if maxAbs == 0 {
		return graph.QuantParams{Scale: 1.0, ZeroPoint: 0}
	}
	return graph.QuantParams{Scale: maxAbs / float64(s.rng.QMax), ZeroPoint: 0}
}

// Asymmetric quantization: the integer range is stretched over the
// observed [min, max].
type Asymmetric struct {
	mode Mode
	rng  Range
}

// NewAsymmetric builds an asymmetric quantizer for a mode.
func NewAsymmetric(mode Mode) Asymmetric {
	return Asymmetric{mode: mode, rng: mode.Range()}
}

// Name implements Quantizer.
func (Asymmetric) Name() string { return "asymmetric" }

// Range implements Quantizer.
func (a Asymmetric) Range() Range { return a.rng }

// DType implements Quantizer.
func (a Asymmetric) DType() tensor.DataType { return a.mode.DType() }

// Params implements Quantizer. A constant value set (max == min) gets
// scale 1.0 and zero point qmin.
func (a Asymmetric) Params(values []float32) graph.QuantParams {
	if len(values) == 0 {
		return graph.QuantParams{Scale: 1.0, ZeroPoint: int(a.rng.QMin)}
	}
	lo, hi := float64(values[0]), float64(values[0])
	for _, v := range values[1:] {
		f := float64(v)
		if f < lo {
			lo = f
		}
		if f > hi {
			hi = f
		}
	}
	if lo == hi {
		return graph.QuantParams{Scale: 1.0, ZeroPoint: int(a.rng.QMin)}
	}
	qmin, qmax := float64(a.rng.QMin), float64(a.rng.QMax)
	scale := (hi - lo) / (qmax - qmin)
	zp := math.Round(clampFloat(qmin-lo/scale, qmin, qmax))
	return graph.QuantParams{Scale: scale, ZeroPoint: int(zp)}
}

// QuantizeTensor converts a float32 tensor into the quantizer's integer
// representation: q = clamp(round(x/scale + zero_point)).
func QuantizeTensor(t *tensor.Tensor, p graph.QuantParams, q Quantizer) (*tensor.Tensor, error) {
	if t.DType() != tensor.Float32 {
		return nil, fmt.Errorf("%w: got %s", ErrNotFloat32, t.DType())
	}
	out, err := tensor.New(q.DType(), t.Shape().Clone())
	if err != nil {
		return nil, err
	}
	write := intWriter(out)
	for i, v := range t.AsFloat32() {
		write(i, quantizeValue(float64(v), p, q.Range()))
	}
	return out, nil
}

// Dequantize reconstructs float values from a quantized tensor:
// x = scale * (q - zero_point). Used for validation and simulation only.
func Dequantize(t *tensor.Tensor, p graph.QuantParams) ([]float32, error) {
	read, err := intReader(t)
	if err != nil {
		return nil, err
	}
	out := make([]float32, t.NumElements())
	for i := range out {
		out[i] = float32(p.Scale * float64(read(i)-int64(p.ZeroPoint)))
	}
	return out, nil
}

func quantizeValue(x float64, p graph.QuantParams, r Range) int64 {
	q := math.Round(x/p.Scale + float64(p.ZeroPoint))
	q = clampFloat(q, float64(r.QMin), float64(r.QMax))
	return int64(q)
}

func clampFloat(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func intWriter(t *tensor.Tensor) func(i int, v int64) {
	switch t.DType() {
	case tensor.Int8:
		s := t.AsInt8()
		return func(i int, v int64) { s[i] = int8(v) }
	case tensor.UInt8:
		s := t.AsUint8()
		return func(i int, v int64) { s[i] = uint8(v) }
	case tensor.Int16:
		s := t.AsInt16()
		return func(i int, v int64) { s[i] = int16(v) }
	case tensor.Int32:
		s := t.AsInt32()
		return func(i int, v int64) { s[i] = int32(v) }
	default:
		panic(fmt.Sprintf("quant: cannot write integers into %s tensor", t.DType()))
	}
}

func intReader(t *tensor.Tensor) (func(i int) int64, error) {
	switch t.DType() {
	case tensor.Int8:
		s := t.AsInt8()
		return func(i int) int64 { return int64(s[i]) }, nil
	case tensor.UInt8:
		s := t.AsUint8()
		return func(i int) int64 { return int64(s[i]) }, nil
	case tensor.Int16:
		s := t.AsInt16()
		return func(i int) int64 { return int64(s[i]) }, nil
	case tensor.Int32:
		s := t.AsInt32()
		return func(i int) int64 { return int64(s[i]) }, nil
	default:
		return nil, fmt.Errorf("%w: got %s", ErrNotInteger, t.DType())
	}
}
