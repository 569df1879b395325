package codegen_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/ember/internal/codegen"
	"github.com/born-ml/ember/internal/graph"
	"github.com/born-ml/ember/internal/target"
	"github.com/born-ml/ember/internal/tensor"
)

// quantizedCNN models a graph as it leaves the full pipeline: the conv
// carries int8 weights, per-channel quantization attributes, and a fused
// relu; activations are assigned to two memory pools.
func quantizedCNN(t *testing.T) *graph.Graph {
	t.Helper()

	g := graph.New("demo")
	g.Inputs = []graph.ValueInfo{{Name: "input", DType: tensor.Float32, Shape: tensor.Shape{1, 3, 8, 8}}}
	g.Outputs = []graph.ValueInfo{{Name: "fc_out", DType: tensor.Float32, Shape: tensor.Shape{1, 10}}}

	convW := make([]int8, 216)
	for i := range convW {
		convW[i] = int8(i%7 - 3)
	}
	g.Weights["conv.weight"] = int8Tensor(t, tensor.Shape{8, 3, 3, 3}, convW)
	g.Weights["conv.bias"] = int32Tensor(t, tensor.Shape{8}, []int32{100, 200, 300, 400, 500, 600, 700, 800})
	g.Weights["fc.weight"] = splat(t, tensor.Shape{10, 128}, 0.5)
	g.Weights["fc.bias"] = splat(t, tensor.Shape{10}, 0.25)

	scales := make([]float64, 8)
	zps := make([]int64, 8)
	for i := range scales {
		scales[i] = 0.5
	}

	g.Nodes = []*graph.Node{
		graph.NewNode("conv", "conv2d",
			[]string{"input", "conv.weight", "conv.bias"}, []string{"conv_out"},
			graph.IntsAttr("kernel_size", []int64{3, 3}),
			graph.IntsAttr("strides", []int64{1, 1}),
			graph.IntsAttr("output_shape", []int64{1, 8, 4, 4}),
			graph.BoolAttr("fused", true),
			graph.StringAttr("activation", "relu"),
			graph.BoolAttr("weight_quantized", true),
			graph.FloatsAttr("weight_scales", scales),
			graph.IntsAttr("weight_zero_points", zps),
			graph.BoolAttr("bias_quantized", true),
			graph.FloatAttr("bias_scale", 0.25),
			graph.IntAttr("bias_zero_point", 0),
		),
		graph.NewNode("flat", "flatten",
			[]string{"conv_out"}, []string{"flat_out"},
			graph.IntsAttr("output_shape", []int64{1, 128}),
		),
		graph.NewNode("fc", "dense",
			[]string{"flat_out", "fc.weight", "fc.bias"}, []string{"fc_out"},
			graph.IntsAttr("output_shape", []int64{1, 10}),
		),
	}

	g.Metadata.MemoryPools = map[string]int{"conv_out": 0, "flat_out": 1}
	g.Metadata.PoolCount = 2
	g.Metadata.ActivationQuant = map[string]graph.QuantParams{
		"conv": {Scale: 0.05, ZeroPoint: 0},
	}
	g.Metadata.Quantization = &graph.QuantRecord{
		Mode: "int8", Symmetric: true, CalibrationSamples: 4, EngineVersion: "1.0.0",
	}
	return g
}

func generate(t *testing.T, targetName string, g *graph.Graph, model string) *codegen.Output {
	t.Helper()
	cfg, ok := target.Lookup(targetName)
	require.True(t, ok)
	out, err := codegen.New(cfg).Generate(g, model)
	require.NoError(t, err)
	return out
}

func splat(t *testing.T, shape tensor.Shape, v float32) *tensor.Tensor {
	t.Helper()
	w, err := tensor.Splat(shape, v)
	require.NoError(t, err)
	return w
}

func int8Tensor(t *testing.T, shape tensor.Shape, vals []int8) *tensor.Tensor {
	t.Helper()
	w, err := tensor.FromInt8(shape, vals)
	require.NoError(t, err)
	return w
}

func int32Tensor(t *testing.T, shape tensor.Shape, vals []int32) *tensor.Tensor {
	t.Helper()
	w, err := tensor.FromInt32(shape, vals)
	require.NoError(t, err)
	return w
}

func floatTensor(t *testing.T, shape tensor.Shape, vals []float32) *tensor.Tensor {
	t.Helper()
	w, err := tensor.FromFloat32(shape, vals)
	require.NoError(t, err)
	return w
}

func TestGenerateBanner(t *testing.T) {
	src := string(generate(t, "cortex-m", quantizedCNN(t), "demo").Source)

	assert.Contains(t, src, "// Generated by the ember compiler v1.0.0. Do not edit.")
	assert.Contains(t, src, "// Model: demo")
	assert.Contains(t, src, "// Target: cortex-m (arm)")
}

func TestGenerateIncludes(t *testing.T) {
	src := string(generate(t, "cortex-m", quantizedCNN(t), "demo").Source)

	assert.Contains(t, src, "#include <stdint.h>")
	assert.Contains(t, src, "#include \"arm_math.h\"")
	assert.Contains(t, src, "#include \"cmsis_os.h\"")
	assert.Contains(t, src, "#include \"ember_runtime.h\"")

	// Headers without a .h suffix are bracketed as system headers.
	generic := string(generate(t, "generic", quantizedCNN(t), "demo").Source)
	assert.Contains(t, generic, "#include <iostream>")
	assert.Contains(t, generic, "#include <cstdint>")
}

func TestGenerateDefines(t *testing.T) {
	src := string(generate(t, "cortex-m", quantizedCNN(t), "demo").Source)

	assert.Contains(t, src, "#define ARM_MATH_CM4")
	assert.Contains(t, src, "#define CORTEX_M")
	assert.Contains(t, src, "#define STACK_SIZE 8192")
	assert.Contains(t, src, "#define HEAP_SIZE 16384")
	assert.Contains(t, src, "#define ALIGNMENT 4")
}

func TestGenerateWeightArrays(t *testing.T) {
	src := string(generate(t, "cortex-m", quantizedCNN(t), "demo").Source)

	assert.Contains(t, src, "alignas(4) static const int8_t w_conv_weight[216] = {")
	assert.Contains(t, src, "alignas(4) static const int32_t w_conv_bias[8] = {")
	assert.Contains(t, src, "alignas(4) static const float w_fc_weight[1280] = {")
	assert.Contains(t, src, "alignas(4) static const float w_fc_bias[10] = {")

	// Initializer data is real, not a placeholder.
	assert.Contains(t, src, "    100, 200, 300, 400, 500, 600, 700, 800")
	assert.Contains(t, src, "    -3, -2, -1, 0, 1, 2, 3, -3,")
	assert.Contains(t, src, "0.25f")

	// Weight arrays come out in sorted name order.
	assert.Less(t, strings.Index(src, "w_conv_bias"), strings.Index(src, "w_conv_weight"))
	assert.Less(t, strings.Index(src, "w_fc_bias"), strings.Index(src, "w_fc_weight"))
}

func TestGenerateQuantParams(t *testing.T) {
	src := string(generate(t, "cortex-m", quantizedCNN(t), "demo").Source)

	assert.Contains(t, src, "static const float q_conv_weight_scales[8] = {")
	assert.Contains(t, src, "    0.5f, 0.5f, 0.5f, 0.5f, 0.5f, 0.5f, 0.5f, 0.5f")
	assert.Contains(t, src, "static const int32_t q_conv_weight_zero_points[8] = {")
	assert.Contains(t, src, "static const float q_conv_bias_scale = 0.25f;")
	assert.Contains(t, src, "static const int32_t q_conv_bias_zero_point = 0;")
	assert.Contains(t, src, "static const float act_scale_conv = 0.05f;")
	assert.Contains(t, src, "static const int32_t act_zp_conv = 0;")
}

func TestGenerateQuantSectionAbsentForFloatGraph(t *testing.T) {
	g := quantizedCNN(t)
	for _, name := range []string{"weight_quantized", "weight_scales", "weight_zero_points", "bias_quantized", "bias_scale", "bias_zero_point"} {
		for _, n := range g.Nodes {
			deleteAttr(n, name)
		}
	}
	g.Metadata.ActivationQuant = nil
	g.Metadata.Quantization = nil

	src := string(generate(t, "cortex-m", g, "demo").Source)
	assert.NotContains(t, src, "Quantization parameters")
	assert.NotContains(t, src, "weight_scales")
}

func deleteAttr(n *graph.Node, name string) {
	kept := n.Attributes[:0]
	for _, a := range n.Attributes {
		if a.Name != name {
			kept = append(kept, a)
		}
	}
	n.Attributes = kept
}

func TestGeneratePoolBuffers(t *testing.T) {
	src := string(generate(t, "cortex-m", quantizedCNN(t), "demo").Source)

	assert.Contains(t, src, "// ---- Activation buffers ----")
	assert.Contains(t, src, "alignas(4) static float pool_0[128];")
	assert.Contains(t, src, "alignas(4) static float pool_1[128];")
	assert.NotContains(t, src, "buf_conv_out")
}

func TestGenerateDedicatedBuffersWithoutPools(t *testing.T) {
	g := quantizedCNN(t)
	g.Metadata.MemoryPools = nil
	g.Metadata.PoolCount = 0

	src := string(generate(t, "cortex-m", g, "demo").Source)
	assert.Contains(t, src, "alignas(4) static float buf_conv_out[128];")
	assert.Contains(t, src, "alignas(4) static float buf_flat_out[128];")
	assert.Contains(t, src, "layer_0_conv2d(input, buf_conv_out);")
}

func TestGenerateLayerFunctions(t *testing.T) {
	src := string(generate(t, "cortex-m", quantizedCNN(t), "demo").Source)

	assert.Contains(t, src, "// conv: conv2d")
	assert.Contains(t, src, "static void layer_0_conv2d(const float* input, float* output) {")
	assert.Contains(t, src,
		"ember_conv2d_int8(input, output, w_conv_weight, q_conv_weight_scales, q_conv_weight_zero_points, w_conv_bias, q_conv_bias_scale, 3, 8, 3, 1);")
	assert.Contains(t, src, "ember_relu(output, output, 128);")

	assert.Contains(t, src, "static void layer_1_flatten(const float* input, float* output) {")
	assert.Contains(t, src, "ember_copy(input, output, 128);")

	assert.Contains(t, src, "static void layer_2_dense(const float* input, float* output) {")
	assert.Contains(t, src, "ember_dense(input, output, w_fc_weight, w_fc_bias, 128, 10);")
}

func TestGenerateInferenceSequence(t *testing.T) {
	src := string(generate(t, "cortex-m", quantizedCNN(t), "demo").Source)

	assert.Contains(t, src, "int demo_inference(const float* input, float* output) {")
	assert.Contains(t, src, "    layer_0_conv2d(input, pool_0);")
	assert.Contains(t, src, "    layer_1_flatten(pool_0, pool_1);")
	assert.Contains(t, src, "    layer_2_dense(pool_1, output);")

	first := strings.Index(src, "layer_0_conv2d(input, pool_0);")
	second := strings.Index(src, "layer_1_flatten(pool_0, pool_1);")
	third := strings.Index(src, "layer_2_dense(pool_1, output);")
	assert.Less(t, first, second)
	assert.Less(t, second, third)
}

func TestGenerateModelAPI(t *testing.T) {
	src := string(generate(t, "cortex-m", quantizedCNN(t), "demo").Source)

	assert.Contains(t, src, "int demo_init(void) {")
	assert.Contains(t, src, "void demo_cleanup(void) {")
	assert.Contains(t, src, "const char* demo_get_version(void) {")
	assert.Contains(t, src, "return \"1.0.0\";")
	assert.Contains(t, src, "int demo_get_input_size(void) {\n    return 192;")
	assert.Contains(t, src, "int demo_get_output_size(void) {\n    return 10;")
}

func TestGenerateHeader(t *testing.T) {
	hdr := string(generate(t, "cortex-m", quantizedCNN(t), "demo").Header)

	assert.Contains(t, hdr, "#ifndef DEMO_CORTEX_M_H")
	assert.Contains(t, hdr, "#define DEMO_CORTEX_M_H")
	assert.Contains(t, hdr, "extern \"C\" {")
	assert.Contains(t, hdr, "int demo_inference(const float* input, float* output);")
	assert.Contains(t, hdr, "int demo_init(void);")
	assert.Contains(t, hdr, "void demo_cleanup(void);")
	assert.Contains(t, hdr, "const char* demo_get_version(void);")
	assert.Contains(t, hdr, "int demo_get_input_size(void);")
	assert.Contains(t, hdr, "int demo_get_output_size(void);")
	assert.Contains(t, hdr, "#endif // DEMO_CORTEX_M_H")
}

func TestGenerateSanitizesIdentifiers(t *testing.T) {
	g := quantizedCNN(t)
	out := generate(t, "generic", g, "mobile-net v2")

	src := string(out.Source)
	assert.Contains(t, src, "int mobile_net_v2_inference(const float* input, float* output) {")
	assert.Contains(t, string(out.Header), "#ifndef MOBILE_NET_V2_GENERIC_H")
	assert.NotContains(t, src, "mobile-net")
}

func TestGenerateFloatConvWithoutBias(t *testing.T) {
	g := graph.New("tiny")
	g.Inputs = []graph.ValueInfo{{Name: "input", DType: tensor.Float32, Shape: tensor.Shape{1, 3, 8, 8}}}
	g.Outputs = []graph.ValueInfo{{Name: "conv_out", DType: tensor.Float32, Shape: tensor.Shape{1, 8, 8, 8}}}
	g.Weights["conv_w"] = splat(t, tensor.Shape{8, 3, 3, 3}, 0.5)
	g.Nodes = []*graph.Node{
		graph.NewNode("conv", "conv2d",
			[]string{"input", "conv_w"}, []string{"conv_out"},
			graph.IntsAttr("kernel_size", []int64{3, 3}),
			graph.IntsAttr("strides", []int64{1, 1}),
		),
	}

	src := string(generate(t, "generic", g, "tiny").Source)
	assert.Contains(t, src, "alignas(8) static const float w_conv_w[216] = {")
	assert.Contains(t, src, "ember_conv2d(input, output, w_conv_w, nullptr, 3, 8, 3, 1);")
	assert.NotContains(t, src, "ember_conv2d_int8")
}

func TestGenerateVariadicAdd(t *testing.T) {
	g := graph.New("sum")
	g.Inputs = []graph.ValueInfo{{Name: "a", DType: tensor.Float32, Shape: tensor.Shape{1, 16}}}
	g.Outputs = []graph.ValueInfo{{Name: "out", DType: tensor.Float32, Shape: tensor.Shape{1, 16}}}
	g.Weights["b"] = splat(t, tensor.Shape{1, 16}, 1.0)
	g.Weights["c"] = splat(t, tensor.Shape{1, 16}, 2.0)
	g.Nodes = []*graph.Node{
		graph.NewNode("sum", "add", []string{"a", "b", "c"}, []string{"out"}),
	}

	src := string(generate(t, "generic", g, "sum").Source)
	assert.Contains(t, src, "static void layer_0_add(const float* in0, const float* in1, const float* in2, float* output) {")
	assert.Contains(t, src, "ember_add(in0, in1, output, 16);")
	assert.Contains(t, src, "ember_add(output, in2, output, 16);")
	assert.Contains(t, src, "layer_0_add(input, w_b, w_c, output);")
}

func TestGenerateConstantNode(t *testing.T) {
	g := graph.New("folded")
	g.Outputs = []graph.ValueInfo{{Name: "c_out", DType: tensor.Float32, Shape: tensor.Shape{4}}}
	g.Nodes = []*graph.Node{
		graph.NewNode("fold", "constant", nil, []string{"c_out"},
			graph.TensorAttr("value", floatTensor(t, tensor.Shape{4}, []float32{1, 2, 3, 4})),
		),
	}

	src := string(generate(t, "generic", g, "folded").Source)
	assert.Contains(t, src, "alignas(8) static const float c_fold[4] = {")
	assert.Contains(t, src, "    1.0f, 2.0f, 3.0f, 4.0f")
	assert.Contains(t, src, "static void layer_0_constant(float* output) {")
	assert.Contains(t, src, "ember_copy(c_fold, output, 4);")
	assert.Contains(t, src, "layer_0_constant(output);")
}

func TestGenerateBatchNorm(t *testing.T) {
	g := graph.New("bn")
	g.Inputs = []graph.ValueInfo{{Name: "input", DType: tensor.Float32, Shape: tensor.Shape{1, 8}}}
	g.Outputs = []graph.ValueInfo{{Name: "bn_out", DType: tensor.Float32, Shape: tensor.Shape{1, 8}}}
	g.Weights["gamma"] = splat(t, tensor.Shape{8}, 1.0)
	g.Weights["beta"] = splat(t, tensor.Shape{8}, 0.0)
	g.Nodes = []*graph.Node{
		graph.NewNode("norm", "batch_norm", []string{"input", "gamma", "beta"}, []string{"bn_out"}),
	}

	src := string(generate(t, "generic", g, "bn").Source)
	assert.Contains(t, src, "ember_batch_norm(input, output, 8, w_gamma, w_beta, nullptr, nullptr, 1e-05f);")
}

func TestGenerateFusedBatchNormFold(t *testing.T) {
	g := quantizedCNN(t)
	g.Nodes[0].SetAttr(graph.BoolAttr("batch_norm_folded", true))
	g.Nodes[0].SetAttr(graph.FloatAttr("bn_scale", 0.5))
	g.Nodes[0].SetAttr(graph.FloatAttr("bn_mean", 0.1))

	src := string(generate(t, "cortex-m", g, "demo").Source)
	assert.Contains(t, src, "ember_batch_norm_fold(output, 128, 0.5f, 0.0f, 0.1f, 1.0f);")

	// The folded norm applies before the fused activation.
	fold := strings.Index(src, "ember_batch_norm_fold(output")
	act := strings.Index(src, "ember_relu(output, output, 128);")
	assert.Less(t, fold, act)
}

func TestGenerateDeterministic(t *testing.T) {
	g := quantizedCNN(t)
	first := generate(t, "cortex-m", g, "demo")
	second := generate(t, "cortex-m", g, "demo")

	assert.Equal(t, string(first.Source), string(second.Source))
	assert.Equal(t, string(first.Header), string(second.Header))
}

func TestGenerateDoesNotMutateGraph(t *testing.T) {
	g := quantizedCNN(t)
	snapshot := g.Clone()

	generate(t, "cortex-m", g, "demo")
	assert.Equal(t, snapshot, g)
}

func TestGenerateNilGraph(t *testing.T) {
	cfg := target.Default()
	_, err := codegen.New(cfg).Generate(nil, "demo")
	assert.Error(t, err)
}

func TestGenerateModelNameDefaultsToGraphName(t *testing.T) {
	g := quantizedCNN(t)
	out := generate(t, "generic", g, "")
	assert.Contains(t, string(out.Source), "int demo_inference(")
}
