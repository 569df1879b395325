package passes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/ember/internal/graph"
	"github.com/born-ml/ember/internal/tensor"
)

// deadBranch builds a graph where n_dead consumes a live tensor but feeds
// nothing reachable from the declared output.
func deadBranch(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New("dead_branch")
	g.Inputs = []graph.ValueInfo{{Name: "input", DType: tensor.Float32, Shape: tensor.Shape{1, 4}}}
	g.Outputs = []graph.ValueInfo{{Name: "act", DType: tensor.Float32, Shape: tensor.Shape{1, 2}}}
	g.Weights["w1"] = weightTensor(t, tensor.Shape{2, 4})
	g.Weights["w2"] = weightTensor(t, tensor.Shape{2, 2})
	g.Nodes = []*graph.Node{
		graph.NewNode("fc1", "dense", []string{"input", "w1"}, []string{"hidden"}),
		graph.NewNode("act1", "relu", []string{"hidden"}, []string{"act"}),
		graph.NewNode("fc_dead", "dense", []string{"hidden", "w2"}, []string{"unused"}),
	}
	return g
}

func TestDeadCodeEliminationRemovesUnreachable(t *testing.T) {
	g := deadBranch(t)
	got := DeadCodeElimination{}.Apply(g)

	require.Len(t, got.Nodes, 2)
	assert.Equal(t, "fc1", got.Nodes[0].Name)
	assert.Equal(t, "act1", got.Nodes[1].Name)

	// Weights stay, even the one only the dead node referenced.
	assert.Len(t, got.Weights, 2)

	// Purity.
	assert.Len(t, g.Nodes, 3)
}

func TestDeadCodeEliminationIdempotent(t *testing.T) {
	g := deadBranch(t)
	once := DeadCodeElimination{}.Apply(g)
	twice := DeadCodeElimination{}.Apply(once)

	require.Equal(t, len(once.Nodes), len(twice.Nodes))
	for i := range once.Nodes {
		assert.Equal(t, once.Nodes[i].Name, twice.Nodes[i].Name)
	}
}

func TestDeadCodeEliminationLastNodeFallback(t *testing.T) {
	g := deadBranch(t)
	g.Outputs = nil // no declared outputs: the last node is the root

	got := DeadCodeElimination{}.Apply(g)
	require.Len(t, got.Nodes, 2)
	assert.Equal(t, "fc1", got.Nodes[0].Name)
	assert.Equal(t, "fc_dead", got.Nodes[1].Name, "walk starts from the last node")
}

func TestDeadCodeEliminationKeepsAllWhenLive(t *testing.T) {
	g := convReluConv(t)
	got := DeadCodeElimination{}.Apply(g)
	assert.Len(t, got.Nodes, 3)
}

func TestDeadCodeEliminationMultipleOutputs(t *testing.T) {
	g := deadBranch(t)
	g.Outputs = append(g.Outputs, graph.ValueInfo{Name: "unused", DType: tensor.Float32, Shape: tensor.Shape{1, 2}})

	got := DeadCodeElimination{}.Apply(g)
	assert.Len(t, got.Nodes, 3, "a node feeding any declared output is live")
}
