package passes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/ember/internal/graph"
	"github.com/born-ml/ember/internal/tensor"
)

func convNode(t *testing.T, name, in, weight, out string) *graph.Node {
	t.Helper()
	return graph.NewNode(name, "conv2d",
		[]string{in, weight},
		[]string{out},
		graph.IntsAttr("kernel_size", []int64{3, 3}),
		graph.IntsAttr("strides", []int64{1, 1}),
	)
}

func weightTensor(t *testing.T, shape tensor.Shape) *tensor.Tensor {
	t.Helper()
	values := make([]float32, shape.NumElements())
	for i := range values {
		values[i] = float32(i%7) - 3
	}
	w, err := tensor.FromFloat32(shape, values)
	require.NoError(t, err)
	return w
}

// convReluConv builds conv2d(c1) -> relu(r1) -> conv2d(c2) with a declared
// input and output boundary.
func convReluConv(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New("conv_relu_conv")
	g.Inputs = []graph.ValueInfo{{Name: "input", DType: tensor.Float32, Shape: tensor.Shape{1, 3, 8, 8}}}
	g.Outputs = []graph.ValueInfo{{Name: "c2_out", DType: tensor.Float32, Shape: tensor.Shape{1, 8, 4, 4}}}
	g.Weights["c1_w"] = weightTensor(t, tensor.Shape{8, 3, 3, 3})
	g.Weights["c2_w"] = weightTensor(t, tensor.Shape{8, 8, 3, 3})
	g.Nodes = []*graph.Node{
		convNode(t, "c1", "input", "c1_w", "c1_out"),
		graph.NewNode("r1", "relu", []string{"c1_out"}, []string{"r1_out"}),
		convNode(t, "c2", "r1_out", "c2_w", "c2_out"),
	}
	return g
}

func TestForLevelCounts(t *testing.T) {
	for level, want := range map[int]int{0: 0, 1: 1, 2: 3, 3: 4} {
		got, err := ForLevel(level)
		require.NoError(t, err)
		assert.Len(t, got, want, "level %d", level)
	}
}

func TestForLevelStrictPrefix(t *testing.T) {
	for level := 0; level < MaxLevel; level++ {
		lower, err := ForLevel(level)
		require.NoError(t, err)
		higher, err := ForLevel(level + 1)
		require.NoError(t, err)

		require.Less(t, len(lower), len(higher))
		for i, p := range lower {
			assert.Equal(t, p.Name(), higher[i].Name(),
				"level %d must be a prefix of level %d", level, level+1)
		}
	}
}

func TestForLevelRejectsOutOfRange(t *testing.T) {
	for _, level := range []int{-1, 4, 100} {
		_, err := ForLevel(level)
		assert.ErrorIs(t, err, ErrInvalidLevel, "level %d", level)
	}
}

func TestRunLevelZeroIsIdentity(t *testing.T) {
	g := convReluConv(t)
	got, err := Run(g, 0, nil)
	require.NoError(t, err)
	assert.Same(t, g, got)
}

func TestRunLevelTwoFusesAndCleans(t *testing.T) {
	g := convReluConv(t)
	got, err := Run(g, 2, nil)
	require.NoError(t, err)

	require.Len(t, got.Nodes, 2, "exactly one node removed")
	c1 := got.Nodes[0]
	assert.Equal(t, "c1", c1.Name)
	assert.Equal(t, "relu", c1.AttrString("activation", ""))
	assert.Equal(t, []string{"c1_out"}, c1.Outputs, "fused conv keeps its output name")
	assert.Equal(t, "c1_out", got.Nodes[1].Inputs[0], "consumer rewired to the fused output")

	// Input graph untouched.
	assert.Len(t, g.Nodes, 3)
	assert.Equal(t, "r1_out", g.Nodes[2].Inputs[0])
}

func TestRunSkipsInapplicablePasses(t *testing.T) {
	g := graph.New("single")
	g.Nodes = []*graph.Node{graph.NewNode("r", "relu", []string{"input"}, []string{"out"})}
	g.Inputs = []graph.ValueInfo{{Name: "input", DType: tensor.Float32, Shape: tensor.Shape{4}}}
	g.Outputs = []graph.ValueInfo{{Name: "out", DType: tensor.Float32, Shape: tensor.Shape{4}}}

	got, err := Run(g, 2, nil) // fusion needs two nodes and is skipped
	require.NoError(t, err)
	assert.Len(t, got.Nodes, 1)
}

// renameOutput breaks the declared boundary on purpose.
type renameOutput struct{}

func (renameOutput) Name() string               { return "rename_output" }
func (renameOutput) CanApply(*graph.Graph) bool { return true }
func (renameOutput) Apply(g *graph.Graph) *graph.Graph {
	out := g.Clone()
	last := out.Nodes[len(out.Nodes)-1]
	last.Outputs = []string{"renamed"}
	return out
}

// dangleInput points a node input at a name nothing produces.
type dangleInput struct{}

func (dangleInput) Name() string               { return "dangle_input" }
func (dangleInput) CanApply(*graph.Graph) bool { return true }
func (dangleInput) Apply(g *graph.Graph) *graph.Graph {
	out := g.Clone()
	out.Nodes[0].Inputs[0] = "missing"
	return out
}

func TestRunPassesDiscardsIntegrityViolations(t *testing.T) {
	g := convReluConv(t)

	got := RunPasses(g, []Pass{renameOutput{}}, nil)
	assert.Same(t, g, got, "boundary-breaking pass result is discarded")

	got = RunPasses(g, []Pass{dangleInput{}}, nil)
	assert.Same(t, g, got, "dangling-input pass result is discarded")

	// A bad pass in the middle of a pipeline does not poison later passes.
	got = RunPasses(g, []Pass{renameOutput{}, LayerFusion{}, DeadCodeElimination{}}, nil)
	assert.Len(t, got.Nodes, 2)
}

func TestCollectStats(t *testing.T) {
	before := convReluConv(t)
	after, err := Run(before, 3, nil)
	require.NoError(t, err)

	stats := CollectStats(before, after)
	assert.Equal(t, 3, stats.NodesBefore)
	assert.Equal(t, 2, stats.NodesAfter)
	assert.Equal(t, 1, stats.NodesRemoved)
	assert.Equal(t, after.Metadata.PoolCount, stats.PoolCount)
	assert.Positive(t, stats.PoolCount)
}

func TestCollectStatsNilGraphs(t *testing.T) {
	assert.Equal(t, Stats{}, CollectStats(nil, nil))
}
