package quant

import (
	"math"

	"go.uber.org/zap"

	"github.com/born-ml/ember/internal/graph"
	"github.com/born-ml/ember/internal/parallel"
	"github.com/born-ml/ember/internal/tensor"
)

// interval is an observed activation value range.
type interval struct {
	lo float64
	hi float64
}

func (iv interval) union(other interval) interval {
	return interval{lo: math.Min(iv.lo, other.lo), hi: math.Max(iv.hi, other.hi)}
}

// Calibrator derives per-layer activation quantization parameters.
//
// With samples, each sample's value interval is propagated through the
// node sequence and the observed interval at every layer of interest
// (conv2d, dense, linear, relu) is recorded; intervals are merged across
// samples by min/max union, which is associative and commutative, so the
// per-sample loop runs under the parallel config. Without samples, fixed
// per-op default ranges are substituted; this keeps the pipeline usable
// but the resulting accuracy is not a guarantee, and callers are warned.
type Calibrator struct {
	quantizer Quantizer
	cfg       parallel.Config
	logger    *zap.Logger
}

// NewCalibrator builds a calibrator over a scheme quantizer.
func NewCalibrator(q Quantizer, cfg parallel.Config, logger *zap.Logger) *Calibrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Calibrator{quantizer: q, cfg: cfg, logger: logger}
}

// Calibrate computes activation parameters for every layer of interest.
// The final (scale, zero point) per layer comes from feeding the merged
// [min, max] two-point interval through the active scheme.
func (c *Calibrator) Calibrate(g *graph.Graph, samples []*tensor.Tensor) map[string]graph.QuantParams {
	if len(samples) == 0 {
		c.logger.Warn("no calibration samples provided, substituting default activation ranges")
		return c.defaultParams(g)
	}

	c.logger.Info("calibrating activations", zap.Int("samples", len(samples)))
	merged := c.observe(g, samples)
	params := make(map[string]graph.QuantParams, len(merged))
	for name, iv := range merged {
		params[name] = c.quantizer.Params([]float32{float32(iv.lo), float32(iv.hi)})
	}
	return params
}

// defaultParams substitutes fixed ranges per op type: [-6, 6] for
// weighted layers, [0, 6] for relu (non-negative by construction),
// [-1, 1] for everything else.
func (c *Calibrator) defaultParams(g *graph.Graph) map[string]graph.QuantParams {
	params := make(map[string]graph.QuantParams, len(g.Nodes))
	for _, n := range g.Nodes {
		var iv interval
		switch n.OpType {
		case "conv2d", "dense", "linear":
			iv = interval{-6, 6}
		case "relu":
			iv = interval{0, 6}
		default:
			iv = interval{-1, 1}
		}
		params[n.Name] = c.quantizer.Params([]float32{float32(iv.lo), float32(iv.hi)})
	}
	return params
}

func (c *Calibrator) observe(g *graph.Graph, samples []*tensor.Tensor) map[string]interval {
	partials := make([]map[string]interval, parallel.Chunks(len(samples), c.cfg))
	parallel.ForChunks(len(samples), c.cfg, func(chunk, start, end int) {
		local := make(map[string]interval)
		for i := start; i < end; i++ {
			observeSample(g, samples[i], local)
		}
		partials[chunk] = local
	})

	merged := make(map[string]interval)
	for _, local := range partials {
		for name, iv := range local {
			if cur, ok := merged[name]; ok {
				merged[name] = cur.union(iv)
			} else {
				merged[name] = iv
			}
		}
	}
	return merged
}

// observeSample propagates one sample's interval through the node
// sequence, recording the post-layer interval at layers of interest.
func observeSample(g *graph.Graph, sample *tensor.Tensor, stats map[string]interval) {
	cur := sampleInterval(sample)
	for _, n := range g.Nodes {
		switch n.OpType {
		case "conv2d", "dense", "linear":
			cur = affineInterval(g, n, cur)
		case "relu":
			cur = interval{lo: math.Max(0, cur.lo), hi: math.Max(0, cur.hi)}
		default:
			continue // interval passes through unchanged
		}
		if prev, ok := stats[n.Name]; ok {
			stats[n.Name] = prev.union(cur)
		} else {
			stats[n.Name] = cur
		}
	}
}

func sampleInterval(t *tensor.Tensor) interval {
	if t == nil || t.DType() != tensor.Float32 || t.NumElements() == 0 {
		return interval{-1, 1}
	}
	values := t.AsFloat32()
	iv := interval{lo: float64(values[0]), hi: float64(values[0])}
	for _, v := range values[1:] {
		f := float64(v)
		if f < iv.lo {
			iv.lo = f
		}
		if f > iv.hi {
			iv.hi = f
		}
	}
	return iv
}

// affineInterval bounds a weighted layer's output: the largest
// per-output-channel L1 norm of the weights times the largest input
// magnitude, plus the largest bias magnitude. The bound is symmetric.
func affineInterval(g *graph.Graph, n *graph.Node, in interval) interval {
	bound := math.Max(math.Abs(in.lo), math.Abs(in.hi))
	if len(n.Inputs) > 1 {
		if w, ok := g.Weights[n.Inputs[1]]; ok && w.DType() == tensor.Float32 {
			bound *= maxChannelL1(w)
		}
	}
	if len(n.Inputs) > 2 {
		if b, ok := g.Weights[n.Inputs[2]]; ok && b.DType() == tensor.Float32 {
			bound += maxAbs(b.AsFloat32())
		}
	}
	return interval{lo: -bound, hi: bound}
}

func maxChannelL1(w *tensor.Tensor) float64 {
	shape := w.Shape()
	channels := 1
	if len(shape) > 0 {
		channels = shape[0]
	}
	chanSize := w.NumElements() / channels

	values := w.AsFloat32()
	var largest float64
	for c := 0; c < channels; c++ {
		var sum float64
		for _, v := range values[c*chanSize : (c+1)*chanSize] {
			sum += math.Abs(float64(v))
		}
		if sum > largest {
			largest = sum
		}
	}
	return largest
}

func maxAbs(values []float32) float64 {
	var largest float64
	for _, v := range values {
		if a := math.Abs(float64(v)); a > largest {
			largest = a
		}
	}
	return largest
}
