// Package compile wires the pipeline end to end: structural validation,
// graph optimization, post-training quantization, and C++ code
// generation, in that order. Every stage consumes the previous stage's
// output and never mutates its input, so a failed run leaves the
// caller's graph untouched.
package compile

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/born-ml/ember/internal/codegen"
	"github.com/born-ml/ember/internal/graph"
	"github.com/born-ml/ember/internal/parallel"
	"github.com/born-ml/ember/internal/passes"
	"github.com/born-ml/ember/internal/quant"
	"github.com/born-ml/ember/internal/target"
	"github.com/born-ml/ember/internal/tensor"
	"github.com/born-ml/ember/internal/validate"
)

// Compilation errors.
var (
	ErrNilGraph      = errors.New("nil graph")
	ErrInvalidConfig = errors.New("invalid compile configuration")
	ErrInvalidGraph  = errors.New("graph failed validation")
)

// Config selects the target, optimization level, and quantization scheme
// for one compilation.
type Config struct {
	// Target names a registered target profile ("cortex-m", "riscv",
	// "xtensa", "generic").
	Target string

	// OptimizationLevel selects the pass pipeline, 0 through
	// passes.MaxLevel.
	OptimizationLevel int

	// Quantize enables post-training quantization of the optimized
	// graph. QuantizationMode and Symmetric are only consulted when set.
	Quantize         bool
	QuantizationMode string
	Symmetric        bool

	// ModelName overrides the graph name as the C identifier prefix.
	ModelName string

	// Parallel configures worker fan-out during calibration.
	Parallel parallel.Config

	// Logger receives per-stage progress. Nil means silent.
	Logger *zap.Logger
}

// DefaultConfig is the generic-target, level-2, symmetric-int8 setup.
func DefaultConfig() Config {
	return Config{
		Target:            "generic",
		OptimizationLevel: 2,
		Quantize:          true,
		QuantizationMode:  "int8",
		Symmetric:         true,
		Parallel:          parallel.DefaultConfig(),
	}
}

// Validate rejects configurations the pipeline cannot honor. It fails on
// the first problem found; compilation never starts with a bad config.
func (c Config) Validate() error {
	if _, ok := target.Lookup(c.Target); !ok {
		return fmt.Errorf("%w: unknown target %q (available: %s)",
			ErrInvalidConfig, c.Target, strings.Join(target.Names(), ", "))
	}
	if c.OptimizationLevel < 0 || c.OptimizationLevel > passes.MaxLevel {
		return fmt.Errorf("%w: optimization level %d (want 0..%d)",
			ErrInvalidConfig, c.OptimizationLevel, passes.MaxLevel)
	}
	if c.Quantize {
		if _, err := quant.ParseMode(c.QuantizationMode); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	return nil
}

// Result is the output of one compilation.
type Result struct {
	// Graph is the optimized (and, when enabled, quantized) graph that
	// the sources were generated from.
	Graph *graph.Graph

	// Source and Header are the generated .cpp and .h contents.
	Source []byte
	Header []byte

	// Stats summarizes what the optimization passes did.
	Stats passes.Stats
}

// Compile runs the full pipeline over g. Validation findings with error
// severity abort the run before any transformation; warnings are logged
// and compilation proceeds. The calibration samples feed activation
// range estimation and may be nil, in which case ranges fall back to the
// weight-derived defaults.
func Compile(g *graph.Graph, cfg Config, calibration []*tensor.Tensor) (*Result, error) {
	if g == nil {
		return nil, ErrNilGraph
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tcfg, _ := target.Lookup(cfg.Target)

	res := validate.Validate(g)
	for _, w := range res.Warnings {
		logger.Warn("model validation warning", zap.String("detail", w))
	}
	if !res.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidGraph, strings.Join(res.Errors, "; "))
	}

	optimized, err := passes.Run(g, cfg.OptimizationLevel, logger)
	if err != nil {
		return nil, err
	}
	stats := passes.CollectStats(g, optimized)

	final := optimized
	if cfg.Quantize {
		mode, err := quant.ParseMode(cfg.QuantizationMode)
		if err != nil {
			return nil, err
		}
		engine := quant.NewEngine(mode, cfg.Symmetric, cfg.Parallel, logger)
		final, err = engine.Quantize(optimized, calibration)
		if err != nil {
			return nil, fmt.Errorf("quantization failed: %w", err)
		}
	}

	name := cfg.ModelName
	if name == "" {
		name = g.Name
	}
	out, err := codegen.New(tcfg).Generate(final, name)
	if err != nil {
		return nil, fmt.Errorf("code generation failed: %w", err)
	}

	logger.Info("compilation complete",
		zap.String("model", name),
		zap.String("target", tcfg.Name),
		zap.Int("nodes_before", stats.NodesBefore),
		zap.Int("nodes_after", stats.NodesAfter),
		zap.Int("pools", stats.PoolCount),
		zap.Bool("quantized", cfg.Quantize))

	return &Result{
		Graph:  final,
		Source: out.Source,
		Header: out.Header,
		Stats:  stats,
	}, nil
}
