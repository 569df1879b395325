// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package graph provides the public API for ember's computation graph.
//
// A Graph is the compiler's intermediate representation: an ordered node
// list in execution order, a weight table, and a declared input/output
// boundary. Optimization passes, quantization, and code generation all
// consume and produce this one structure.
//
// Example:
//
//	g := graph.New("mlp")
//	g.Inputs = []graph.ValueInfo{{Name: "input", DType: tensor.Float32, Shape: tensor.Shape{1, 4}}}
//	g.Outputs = []graph.ValueInfo{{Name: "out", DType: tensor.Float32, Shape: tensor.Shape{1, 2}}}
//	g.Nodes = append(g.Nodes, graph.NewNode("fc", "dense",
//	    []string{"input", "fc.weight", "fc.bias"}, []string{"out"}))
package graph

import (
	"github.com/born-ml/ember/internal/graph"
	"github.com/born-ml/ember/internal/tensor"
)

// Type aliases for public API

// Graph is a neural network as an ordered node list with weights and a
// declared boundary.
type Graph = graph.Graph

// Node is one operation in a graph.
type Node = graph.Node

// ValueInfo describes one graph input or output.
type ValueInfo = graph.ValueInfo

// Attribute is one named node parameter.
type Attribute = graph.Attribute

// Metadata carries provenance and tool-recorded results.
type Metadata = graph.Metadata

// QuantParams is a scale and zero point for one tensor.
type QuantParams = graph.QuantParams

// QuantRecord describes how a graph was quantized.
type QuantRecord = graph.QuantRecord

// New creates an empty named graph.
func New(name string) *Graph {
	return graph.New(name)
}

// NewNode creates a node with copies of the input and output name lists.
func NewNode(name, opType string, inputs, outputs []string, attrs ...Attribute) *Node {
	return graph.NewNode(name, opType, inputs, outputs, attrs...)
}

// Attribute constructors

// IntAttr builds an integer attribute.
func IntAttr(name string, v int64) Attribute { return graph.IntAttr(name, v) }

// BoolAttr builds a boolean attribute, stored as int 0/1.
func BoolAttr(name string, v bool) Attribute { return graph.BoolAttr(name, v) }

// FloatAttr builds a float attribute.
func FloatAttr(name string, v float64) Attribute { return graph.FloatAttr(name, v) }

// StringAttr builds a string attribute.
func StringAttr(name, v string) Attribute { return graph.StringAttr(name, v) }

// IntsAttr builds an integer list attribute.
func IntsAttr(name string, v []int64) Attribute { return graph.IntsAttr(name, v) }

// FloatsAttr builds a float list attribute.
func FloatsAttr(name string, v []float64) Attribute { return graph.FloatsAttr(name, v) }

// TensorAttr builds a tensor attribute, used for folded constants.
func TensorAttr(name string, t *tensor.Tensor) Attribute { return graph.TensorAttr(name, t) }
