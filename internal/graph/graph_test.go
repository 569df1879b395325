package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/ember/internal/tensor"
)

func linearChain(t *testing.T) *Graph {
	t.Helper()
	g := New("test_model")
	w, err := tensor.FromFloat32(tensor.Shape{2, 2}, []float32{1, 2, 3, 4})
	require.NoError(t, err)
	g.Weights["c1_weight"] = w
	g.Inputs = []ValueInfo{{Name: "input", DType: tensor.Float32, Shape: tensor.Shape{1, 2}}}
	g.Outputs = []ValueInfo{{Name: "r1_out", DType: tensor.Float32, Shape: tensor.Shape{1, 2}}}
	g.Nodes = []*Node{
		NewNode("c1", "dense", []string{"input", "c1_weight"}, []string{"c1_out"}),
		NewNode("r1", "relu", []string{"c1_out"}, []string{"r1_out"}),
	}
	return g
}

func TestCloneIsDeep(t *testing.T) {
	g := linearChain(t)
	c := g.Clone()

	c.Nodes[0].OpType = "conv2d"
	c.Nodes[0].SetAttr(IntAttr("fused", 1))
	c.Weights["c1_weight"].AsFloat32()[0] = 99
	c.Inputs[0].Shape[0] = 7
	c.Metadata.Props = map[string]string{"k": "v"}

	assert.Equal(t, "dense", g.Nodes[0].OpType)
	assert.False(t, g.Nodes[0].HasAttr("fused"))
	assert.Equal(t, float32(1), g.Weights["c1_weight"].AsFloat32()[0])
	assert.Equal(t, 1, g.Inputs[0].Shape[0])
	assert.Nil(t, g.Metadata.Props)
}

func TestCloneCopiesMetadata(t *testing.T) {
	g := linearChain(t)
	g.Metadata.Quantization = &QuantRecord{Mode: "int8", Symmetric: true}
	g.Metadata.ActivationQuant = map[string]QuantParams{"c1": {Scale: 0.5, ZeroPoint: 0}}
	g.Metadata.MemoryPools = map[string]int{"c1_out": 0}
	g.Metadata.PoolCount = 1

	c := g.Clone()
	c.Metadata.Quantization.Mode = "int16"
	c.Metadata.ActivationQuant["c1"] = QuantParams{Scale: 1}
	c.Metadata.MemoryPools["c1_out"] = 5

	assert.Equal(t, "int8", g.Metadata.Quantization.Mode)
	assert.Equal(t, 0.5, g.Metadata.ActivationQuant["c1"].Scale)
	assert.Equal(t, 0, g.Metadata.MemoryPools["c1_out"])
}

func TestProducers(t *testing.T) {
	g := linearChain(t)
	producers := g.Producers()

	require.Contains(t, producers, "c1_out")
	require.Contains(t, producers, "r1_out")
	assert.Equal(t, "c1", producers["c1_out"].Name)
	assert.Equal(t, "r1", producers["r1_out"].Name)
}

func TestResolvable(t *testing.T) {
	g := linearChain(t)

	assert.True(t, g.Resolvable("input"), "graph input")
	assert.True(t, g.Resolvable("c1_weight"), "weight")
	assert.True(t, g.Resolvable("c1_out"), "node output")
	assert.False(t, g.Resolvable("ghost"), "undeclared name")
}

func TestOutputNamesDeclared(t *testing.T) {
	g := linearChain(t)
	assert.Equal(t, []string{"r1_out"}, g.OutputNames())
}

func TestOutputNamesLastNodeFallback(t *testing.T) {
	g := linearChain(t)
	g.Outputs = nil
	assert.Equal(t, []string{"r1_out"}, g.OutputNames(), "falls back to last node")

	g.Nodes = nil
	assert.Nil(t, g.OutputNames())
}

func TestNodeByName(t *testing.T) {
	g := linearChain(t)
	require.NotNil(t, g.NodeByName("r1"))
	assert.Equal(t, "relu", g.NodeByName("r1").OpType)
	assert.Nil(t, g.NodeByName("missing"))
}

func TestNumParamsAndWeightBytes(t *testing.T) {
	g := linearChain(t)
	assert.Equal(t, int64(4), g.NumParams())
	assert.Equal(t, int64(16), g.WeightBytes())
}

func TestAttrGettersWithDefaults(t *testing.T) {
	n := NewNode("c1", "conv2d", nil, []string{"out"},
		IntAttr("groups", 2),
		FloatAttr("epsilon", 1e-5),
		StringAttr("activation", "relu"),
		IntsAttr("kernel_size", []int64{3, 3}),
		FloatsAttr("weight_scales", []float64{0.1, 0.2}),
	)

	assert.Equal(t, int64(2), n.AttrInt("groups", 1))
	assert.Equal(t, int64(1), n.AttrInt("missing", 1))
	assert.InDelta(t, 1e-5, n.AttrFloat("epsilon", 0), 1e-12)
	assert.Equal(t, "relu", n.AttrString("activation", ""))
	assert.Equal(t, "none", n.AttrString("missing", "none"))
	assert.Equal(t, []int64{3, 3}, n.AttrInts("kernel_size"))
	assert.Nil(t, n.AttrInts("missing"))
	assert.Equal(t, []float64{0.1, 0.2}, n.AttrFloats("weight_scales"))
}

func TestBoolAttrStoredAsInt(t *testing.T) {
	n := NewNode("c1", "conv2d", nil, []string{"out"}, BoolAttr("fused", true))

	a, ok := n.Attr("fused")
	require.True(t, ok)
	assert.Equal(t, AttrInt, a.Kind)
	assert.Equal(t, int64(1), a.I)
	assert.True(t, n.AttrBool("fused", false))
	assert.False(t, n.AttrBool("missing", false))
}

func TestTensorAttr(t *testing.T) {
	val, err := tensor.Splat(tensor.Shape{4}, 5)
	require.NoError(t, err)
	n := NewNode("k", "constant", nil, []string{"out"}, TensorAttr("value", val))

	got := n.AttrTensor("value")
	require.NotNil(t, got)
	assert.Equal(t, tensor.Shape{4}, got.Shape())
	assert.Nil(t, n.AttrTensor("missing"))
}

func TestSetAttrReplacesByName(t *testing.T) {
	n := NewNode("c1", "conv2d", nil, []string{"out"}, IntAttr("groups", 1))
	n.SetAttr(IntAttr("groups", 4))
	n.SetAttr(StringAttr("activation", "relu"))

	assert.Len(t, n.Attributes, 2)
	assert.Equal(t, int64(4), n.AttrInt("groups", 0))
}

func TestNodeCloneIsDeep(t *testing.T) {
	val, err := tensor.Splat(tensor.Shape{2}, 1)
	require.NoError(t, err)
	n := NewNode("c1", "conv2d", []string{"in"}, []string{"out"},
		IntsAttr("kernel_size", []int64{3, 3}),
		TensorAttr("value", val),
	)

	c := n.Clone()
	c.Inputs[0] = "other"
	c.AttrInts("kernel_size")[0] = 9
	c.AttrTensor("value").AsFloat32()[0] = 42

	assert.Equal(t, "in", n.Inputs[0])
	assert.Equal(t, int64(3), n.AttrInts("kernel_size")[0])
	assert.Equal(t, float32(1), n.AttrTensor("value").AsFloat32()[0])
}

func TestOutputShapeHint(t *testing.T) {
	n := NewNode("a1", "add", []string{"x"}, []string{"y"},
		IntsAttr("output_shape", []int64{1, 4}))
	assert.Equal(t, tensor.Shape{1, 4}, n.OutputShape())

	bare := NewNode("a2", "add", []string{"x"}, []string{"z"})
	assert.Nil(t, bare.OutputShape())
}

func TestAttrKindWireNames(t *testing.T) {
	kinds := []AttrKind{AttrInt, AttrFloat, AttrString, AttrIntList, AttrFloatList, AttrTensor}
	for _, k := range kinds {
		assert.Equal(t, k, ParseAttrKind(k.String()), k.String())
	}
	assert.Equal(t, AttrInvalid, ParseAttrKind("bogus"))
}
