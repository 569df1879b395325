package quant

import (
	"fmt"

	"github.com/born-ml/ember/internal/graph"
	"github.com/born-ml/ember/internal/tensor"
)

// QuantizePerChannel quantizes a float32 weight tensor independently
// along axis 0, the output-channel axis by convention. Each channel slice
// gets its own (scale, zero point) pair and the returned arrays are
// indexed by channel.
//
// Axis-0 slices of a row-major tensor are contiguous, so the slicing is
// plain block arithmetic.
func QuantizePerChannel(w *tensor.Tensor, q Quantizer) (*tensor.Tensor, []float64, []int64, error) {
	if w.DType() != tensor.Float32 {
		return nil, nil, nil, fmt.Errorf("%w: got %s", ErrNotFloat32, w.DType())
	}

	shape := w.Shape()
	channels := 1
	if len(shape) > 0 {
		channels = shape[0]
	}
	chanSize := w.NumElements() / channels

	out, err := tensor.New(q.DType(), shape.Clone())
	if err != nil {
		return nil, nil, nil, err
	}

	values := w.AsFloat32()
	write := intWriter(out)
	scales := make([]float64, channels)
	zeroPoints := make([]int64, channels)
	for c := 0; c < channels; c++ {
		slice := values[c*chanSize : (c+1)*chanSize]
		p := q.Params(slice)
		scales[c] = p.Scale
		zeroPoints[c] = int64(p.ZeroPoint)
		for i, v := range slice {
			write(c*chanSize+i, quantizeValue(float64(v), p, q.Range()))
		}
	}
	return out, scales, zeroPoints, nil
}

// QuantizeBias quantizes a bias tensor at fixed 32-bit width using the
// asymmetric scheme regardless of the run's global mode. Bias values are
// accumulated against many products at inference time and need the wider
// dynamic range to avoid saturation.
func QuantizeBias(b *tensor.Tensor) (*tensor.Tensor, graph.QuantParams, error) {
	q := NewAsymmetric(ModeInt32)
	if b.DType() != tensor.Float32 {
		return nil, graph.QuantParams{}, fmt.Errorf("%w: got %s", ErrNotFloat32, b.DType())
	}
	p := q.Params(b.AsFloat32())
	out, err := QuantizeTensor(b, p, q)
	if err != nil {
		return nil, graph.QuantParams{}, err
	}
	return out, p, nil
}
