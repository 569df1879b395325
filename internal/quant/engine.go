package quant

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/born-ml/ember/internal/graph"
	"github.com/born-ml/ember/internal/parallel"
	"github.com/born-ml/ember/internal/tensor"
)

// EngineVersion is recorded into quantized graph metadata so downstream
// tooling can tell which parameter conventions were in effect.
const EngineVersion = "1.0.0"

// State tracks a quantization run through its fixed call sequence.
type State int

// Engine states, in order.
const (
	StateUnquantized State = iota
	StateWeightsQuantized
	StateActivationsCalibrated
	StateValidated
)

func (s State) String() string {
	switch s {
	case StateUnquantized:
		return "unquantized"
	case StateWeightsQuantized:
		return "weights_quantized"
	case StateActivationsCalibrated:
		return "activations_calibrated"
	case StateValidated:
		return "validated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Engine drives weight quantization, activation calibration, and
// validation for one graph at a time.
type Engine struct {
	mode        Mode
	symmetric   bool
	weights     Quantizer
	activations Quantizer
	parallel    parallel.Config
	logger      *zap.Logger
	state       State
}

// NewEngine builds an engine for a mode and scheme. The same scheme is
// used for weights and activations; bias handling is fixed at 32-bit
// asymmetric independent of it.
func NewEngine(mode Mode, symmetric bool, cfg parallel.Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	q := New(mode, symmetric)
	return &Engine{
		mode:        mode,
		symmetric:   symmetric,
		weights:     q,
		activations: q,
		parallel:    cfg,
		logger:      logger,
	}
}

// State returns how far the last Quantize call progressed.
func (e *Engine) State() State { return e.state }

// Quantize produces a quantized copy of g. The input graph is never
// modified: on error the caller still holds the pre-quantization state.
// Numeric degeneracies (all-zero or constant tensors) are handled by the
// schemes and are never errors; only an uncoercible weight tensor aborts.
func (e *Engine) Quantize(g *graph.Graph, samples []*tensor.Tensor) (*graph.Graph, error) {
	e.state = StateUnquantized
	e.logger.Info("starting quantization",
		zap.String("mode", string(e.mode)),
		zap.Bool("symmetric", e.symmetric),
		zap.Int("calibration_samples", len(samples)))

	out := g.Clone()
	if err := e.quantizeWeights(out); err != nil {
		return nil, err
	}
	e.state = StateWeightsQuantized

	// Activation ranges describe the floating-point network, so
	// calibration reads the pre-quantization weights.
	calibrator := NewCalibrator(e.activations, e.parallel, e.logger)
	out.Metadata.ActivationQuant = calibrator.Calibrate(g, samples)
	e.state = StateActivationsCalibrated

	out.Metadata.Quantization = &graph.QuantRecord{
		Mode:               string(e.mode),
		Symmetric:          e.symmetric,
		CalibrationSamples: len(samples),
		EngineVersion:      EngineVersion,
	}

	for _, issue := range Check(out) {
		e.logger.Warn("quantization validation issue",
			zap.String("layer", issue.Layer),
			zap.String("detail", issue.Detail))
	}
	e.state = StateValidated
	return out, nil
}

// quantizeWeights rewrites the weight and bias tensors of every weighted
// layer in place. Input convention: inputs[0] is data, inputs[1] the
// weight, inputs[2] the optional bias.
func (e *Engine) quantizeWeights(g *graph.Graph) error {
	layers := 0
	for _, n := range g.Nodes {
		if !weightBearing(n.OpType) {
			continue
		}
		if len(n.Inputs) > 1 {
			name := n.Inputs[1]
			if w, ok := g.Weights[name]; ok {
				qw, scales, zeroPoints, err := QuantizePerChannel(w, e.weights)
				if err != nil {
					return fmt.Errorf("quantize weight %q of layer %q: %w", name, n.Name, err)
				}
				g.Weights[name] = qw
				n.SetAttr(graph.FloatsAttr("weight_scales", scales))
				n.SetAttr(graph.IntsAttr("weight_zero_points", zeroPoints))
				n.SetAttr(graph.BoolAttr("weight_quantized", true))
				layers++
			}
		}
		if len(n.Inputs) > 2 {
			name := n.Inputs[2]
			if b, ok := g.Weights[name]; ok {
				qb, p, err := QuantizeBias(b)
				if err != nil {
					return fmt.Errorf("quantize bias %q of layer %q: %w", name, n.Name, err)
				}
				g.Weights[name] = qb
				n.SetAttr(graph.FloatAttr("bias_scale", p.Scale))
				n.SetAttr(graph.IntAttr("bias_zero_point", int64(p.ZeroPoint)))
				n.SetAttr(graph.BoolAttr("bias_quantized", true))
			}
		}
	}
	e.logger.Info("weights quantized", zap.Int("layers", layers))
	return nil
}

// Quantize is the package-level one-shot form of an engine run.
func Quantize(g *graph.Graph, mode Mode, samples []*tensor.Tensor, symmetric bool) (*graph.Graph, error) {
	return NewEngine(mode, symmetric, parallel.DefaultConfig(), nil).Quantize(g, samples)
}

// Stats summarizes the effect of a quantization run.
type Stats struct {
	WeightLayers     int     `json:"weight_layers"`
	QuantizedLayers  int     `json:"quantized_layers"`
	CompressionRatio float64 `json:"compression_ratio"`
}

// CollectStats counts quantized layers and estimates the weight storage
// reduction relative to float32.
func CollectStats(quantized *graph.Graph) Stats {
	s := Stats{}
	if quantized == nil {
		return s
	}
	for _, n := range quantized.Nodes {
		if !weightBearing(n.OpType) {
			continue
		}
		s.WeightLayers++
		if n.AttrBool("weight_quantized", false) {
			s.QuantizedLayers++
		}
	}
	mode := ModeInt8
	if q := quantized.Metadata.Quantization; q != nil {
		if m, err := ParseMode(q.Mode); err == nil {
			mode = m
		}
	}
	s.CompressionRatio = 32.0 / float64(mode.Bits())
	return s
}
