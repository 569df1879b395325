// Package ops defines the operation vocabulary the compiler accepts: each
// op type's input arity, output arity, and attribute requirements. The
// structural validator checks graphs against these schemas before the
// pipeline runs.
package ops

import (
	"fmt"
	"sort"
	"sync"
)

// Schema describes the requirements of one operation type.
type Schema struct {
	OpType        string
	MinInputs     int
	MaxInputs     int
	Outputs       int
	RequiredAttrs []string
	OptionalAttrs []string
}

// GeneratedAttrs names the attributes the compiler itself records on nodes
// during folding, fusion, and quantization. Validation skips these when
// warning about unknown attributes, since no importer declares them.
var GeneratedAttrs = map[string]bool{
	"activation":         true,
	"fused":              true,
	"batch_norm_folded":  true,
	"bn_scale":           true,
	"bn_bias":            true,
	"bn_mean":            true,
	"bn_var":             true,
	"weight_scales":      true,
	"weight_zero_points": true,
	"weight_quantized":   true,
	"bias_scale":         true,
	"bias_zero_point":    true,
	"bias_quantized":     true,
	"output_shape":       true,
	"constant_value":     true,
}

var (
	mu      sync.RWMutex
	schemas = builtinSchemas()
)

func builtinSchemas() map[string]Schema {
	linear := Schema{
		OpType:        "linear",
		MinInputs:     2,
		MaxInputs:     3,
		Outputs:       1,
		OptionalAttrs: []string{"bias"},
	}
	dense := linear
	dense.OpType = "dense"

	table := []Schema{
		{
			OpType:        "conv2d",
			MinInputs:     2, // input, weight
			MaxInputs:     3, // input, weight, bias
			Outputs:       1,
			RequiredAttrs: []string{"kernel_size", "strides"},
			OptionalAttrs: []string{"padding", "dilation", "groups"},
		},
		{
			OpType:        "conv1d",
			MinInputs:     2,
			MaxInputs:     3,
			Outputs:       1,
			RequiredAttrs: []string{"kernel_size", "strides"},
			OptionalAttrs: []string{"padding", "dilation", "groups"},
		},
		linear,
		dense,
		{
			OpType:        "matmul",
			MinInputs:     2,
			MaxInputs:     2,
			Outputs:       1,
			OptionalAttrs: []string{"transpose_a", "transpose_b"},
		},
		{OpType: "relu", MinInputs: 1, MaxInputs: 1, Outputs: 1},
		{
			OpType:        "leaky_relu",
			MinInputs:     1,
			MaxInputs:     1,
			Outputs:       1,
			RequiredAttrs: []string{"alpha"},
		},
		{OpType: "sigmoid", MinInputs: 1, MaxInputs: 1, Outputs: 1},
		{OpType: "tanh", MinInputs: 1, MaxInputs: 1, Outputs: 1},
		{OpType: "softmax", MinInputs: 1, MaxInputs: 1, Outputs: 1, OptionalAttrs: []string{"axis"}},
		{
			OpType:        "max_pool2d",
			MinInputs:     1,
			MaxInputs:     1,
			Outputs:       1,
			RequiredAttrs: []string{"kernel_size"},
			OptionalAttrs: []string{"strides", "padding"},
		},
		{
			OpType:        "avg_pool2d",
			MinInputs:     1,
			MaxInputs:     1,
			Outputs:       1,
			RequiredAttrs: []string{"kernel_size"},
			OptionalAttrs: []string{"strides", "padding"},
		},
		{OpType: "global_avg_pool2d", MinInputs: 1, MaxInputs: 1, Outputs: 1},
		{
			OpType:    "batch_norm",
			MinInputs: 3, // input, scale, bias
			MaxInputs: 5, // input, scale, bias, mean, variance
			Outputs:   1,
			// scale/bias/mean/var also appear as scalar attributes when an
			// importer flattens the statistics; fusion reads those.
			OptionalAttrs: []string{"epsilon", "momentum", "scale", "bias", "mean", "var"},
		},
		{
			OpType:        "layer_norm",
			MinInputs:     1,
			MaxInputs:     3,
			Outputs:       1,
			OptionalAttrs: []string{"epsilon", "axis"},
		},
		{
			OpType:        "dropout",
			MinInputs:     1,
			MaxInputs:     1,
			Outputs:       1,
			OptionalAttrs: []string{"rate", "training"},
		},
		{OpType: "add", MinInputs: 2, MaxInputs: 10, Outputs: 1, OptionalAttrs: []string{"broadcast"}},
		{OpType: "mul", MinInputs: 2, MaxInputs: 2, Outputs: 1, OptionalAttrs: []string{"broadcast"}},
		{OpType: "sub", MinInputs: 2, MaxInputs: 2, Outputs: 1, OptionalAttrs: []string{"broadcast"}},
		{OpType: "div", MinInputs: 2, MaxInputs: 2, Outputs: 1, OptionalAttrs: []string{"broadcast"}},
		{OpType: "concat", MinInputs: 2, MaxInputs: 20, Outputs: 1, RequiredAttrs: []string{"axis"}},
		{OpType: "reshape", MinInputs: 1, MaxInputs: 1, Outputs: 1, RequiredAttrs: []string{"shape"}},
		{OpType: "transpose", MinInputs: 1, MaxInputs: 1, Outputs: 1, OptionalAttrs: []string{"perm"}},
		{OpType: "flatten", MinInputs: 1, MaxInputs: 1, Outputs: 1, OptionalAttrs: []string{"axis"}},
		{
			// Produced by constant folding; carries its value inline.
			OpType:        "constant",
			MinInputs:     0,
			MaxInputs:     0,
			Outputs:       1,
			RequiredAttrs: []string{"value"},
		},
	}

	m := make(map[string]Schema, len(table))
	for _, s := range table {
		m[s.OpType] = s
	}
	return m
}

// Lookup returns the schema for an operation type.
func Lookup(opType string) (Schema, bool) {
	mu.RLock()
	defer mu.RUnlock()
	s, ok := schemas[opType]
	return s, ok
}

// Supported reports whether the operation type is known.
func Supported(opType string) bool {
	_, ok := Lookup(opType)
	return ok
}

// Register adds a custom operation schema. Registering an already-known
// op type is an error; the built-in vocabulary is fixed.
func Register(s Schema) error {
	if s.OpType == "" {
		return fmt.Errorf("schema has empty op type")
	}
	if s.MinInputs < 0 || s.MaxInputs < s.MinInputs {
		return fmt.Errorf("schema %q has invalid input bounds [%d, %d]", s.OpType, s.MinInputs, s.MaxInputs)
	}
	mu.Lock()
	defer mu.Unlock()
	if _, exists := schemas[s.OpType]; exists {
		return fmt.Errorf("operation %q is already registered", s.OpType)
	}
	schemas[s.OpType] = s
	return nil
}

// Types returns all registered operation types, sorted.
func Types() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(schemas))
	for op := range schemas {
		out = append(out, op)
	}
	sort.Strings(out)
	return out
}
