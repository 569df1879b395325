package quant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/ember/internal/graph"
	"github.com/born-ml/ember/internal/parallel"
	"github.com/born-ml/ember/internal/tensor"
)

// fcGraph is a dense+relu chain. The dense layer's per-channel L1 norms
// are 10 and 26, its largest bias magnitude 0.5, so an input interval
// [-1, 1] propagates to [-26.5, 26.5] at the dense output.
func fcGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New("fc")
	g.Inputs = []graph.ValueInfo{{Name: "input", DType: tensor.Float32, Shape: tensor.Shape{1, 4}}}
	g.Outputs = []graph.ValueInfo{{Name: "out", DType: tensor.Float32, Shape: tensor.Shape{1, 2}}}

	w, err := tensor.FromFloat32(tensor.Shape{2, 4}, []float32{1, -2, 3, -4, 5, -6, 7, -8})
	require.NoError(t, err)
	b, err := tensor.FromFloat32(tensor.Shape{2}, []float32{0.5, -0.5})
	require.NoError(t, err)
	g.Weights["fc_w"] = w
	g.Weights["fc_b"] = b

	g.Nodes = []*graph.Node{
		graph.NewNode("fc", "dense", []string{"input", "fc_w", "fc_b"}, []string{"fc_out"}),
		graph.NewNode("act", "relu", []string{"fc_out"}, []string{"out"}),
	}
	return g
}

func sample(t *testing.T, values ...float32) *tensor.Tensor {
	t.Helper()
	s, err := tensor.FromFloat32(tensor.Shape{len(values)}, values)
	require.NoError(t, err)
	return s
}

func TestCalibrateDefaultsWithoutSamples(t *testing.T) {
	g := graph.New("mixed")
	g.Nodes = []*graph.Node{
		graph.NewNode("c", "conv2d", []string{"input", "w"}, []string{"c_out"}),
		graph.NewNode("r", "relu", []string{"c_out"}, []string{"r_out"}),
		graph.NewNode("s", "sigmoid", []string{"r_out"}, []string{"s_out"}),
	}

	c := NewCalibrator(NewSymmetric(ModeInt8), parallel.DefaultConfig(), nil)
	params := c.Calibrate(g, nil)

	require.Len(t, params, 3, "every node gets a default range")
	assert.InDelta(t, 6.0/127.0, params["c"].Scale, 1e-12, "weighted layers default to [-6, 6]")
	assert.InDelta(t, 6.0/127.0, params["r"].Scale, 1e-12, "relu defaults to [0, 6]")
	assert.InDelta(t, 1.0/127.0, params["s"].Scale, 1e-12, "others default to [-1, 1]")
	for name, p := range params {
		assert.Equal(t, 0, p.ZeroPoint, "symmetric zero point for %s", name)
	}
}

func TestCalibrateWithSamplesPropagatesIntervals(t *testing.T) {
	g := fcGraph(t)
	c := NewCalibrator(NewSymmetric(ModeInt8), parallel.DefaultConfig(), nil)

	params := c.Calibrate(g, []*tensor.Tensor{sample(t, 1, -1, 0.5, -0.5)})

	require.Len(t, params, 2, "only layers of interest are recorded")
	assert.InDelta(t, 26.5/127.0, params["fc"].Scale, 1e-12)
	assert.InDelta(t, 26.5/127.0, params["act"].Scale, 1e-12)
}

func TestCalibrateAsymmetricReluKeepsNonNegativity(t *testing.T) {
	g := fcGraph(t)
	c := NewCalibrator(NewAsymmetric(ModeInt8), parallel.DefaultConfig(), nil)

	params := c.Calibrate(g, []*tensor.Tensor{sample(t, 1, -1, 0.5, -0.5)})

	act := params["act"]
	assert.InDelta(t, 26.5/255.0, act.Scale, 1e-12, "relu interval is [0, 26.5]")
	assert.Equal(t, -128, act.ZeroPoint, "zero maps to qmin for a non-negative range")
}

func TestCalibrateMergesAcrossSamples(t *testing.T) {
	g := fcGraph(t)
	c := NewCalibrator(NewSymmetric(ModeInt8), parallel.DefaultConfig(), nil)

	params := c.Calibrate(g, []*tensor.Tensor{
		sample(t, 1, -1, 0.5, -0.5),
		sample(t, 2, -2, 1, -1),
	})

	// The second sample's interval [-2, 2] dominates: 26*2 + 0.5 = 52.5.
	assert.InDelta(t, 52.5/127.0, params["fc"].Scale, 1e-12)
}

func TestCalibrateParallelMatchesSequential(t *testing.T) {
	g := fcGraph(t)
	samples := make([]*tensor.Tensor, 8)
	for i := range samples {
		v := float32(i+1) / 4
		samples[i] = sample(t, v, -v, v/2, -v/2)
	}

	seq := NewCalibrator(NewSymmetric(ModeInt8), parallel.Config{Enabled: false}, nil)
	par := NewCalibrator(NewSymmetric(ModeInt8), parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1}, nil)

	assert.Equal(t, seq.Calibrate(g, samples), par.Calibrate(g, samples),
		"min/max merging is order independent")
}

func TestCalibrateUnweightedOpsPassThrough(t *testing.T) {
	g := graph.New("acts")
	g.Nodes = []*graph.Node{
		graph.NewNode("r", "relu", []string{"input"}, []string{"r_out"}),
		graph.NewNode("s", "softmax", []string{"r_out"}, []string{"s_out"}),
	}
	c := NewCalibrator(NewSymmetric(ModeInt8), parallel.DefaultConfig(), nil)

	params := c.Calibrate(g, []*tensor.Tensor{sample(t, -3, 2)})

	require.Len(t, params, 1)
	assert.Contains(t, params, "r")
	assert.InDelta(t, 2.0/127.0, params["r"].Scale, 1e-12, "relu clamps [-3, 2] to [0, 2]")
}
