package graph

import (
	"github.com/born-ml/ember/internal/tensor"
)

// Node represents one computation step.
type Node struct {
	Name       string      // Node name, unique within the graph
	OpType     string      // Operation type (e.g. "conv2d", "relu", "dense")
	Inputs     []string    // Input tensor names
	Outputs    []string    // Produced tensor names, globally unique
	Attributes []Attribute // Operation-specific parameters
}

// NewNode creates a node with the given identity and connectivity.
func NewNode(name, opType string, inputs, outputs []string, attrs ...Attribute) *Node {
	return &Node{
		Name:       name,
		OpType:     opType,
		Inputs:     append([]string(nil), inputs...),
		Outputs:    append([]string(nil), outputs...),
		Attributes: attrs,
	}
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	out := &Node{
		Name:    n.Name,
		OpType:  n.OpType,
		Inputs:  append([]string(nil), n.Inputs...),
		Outputs: append([]string(nil), n.Outputs...),
	}
	if n.Attributes != nil {
		out.Attributes = make([]Attribute, len(n.Attributes))
		for i, a := range n.Attributes {
			out.Attributes[i] = a.Clone()
		}
	}
	return out
}

// Attr returns the named attribute and whether it exists.
func (n *Node) Attr(name string) (Attribute, bool) {
	for i := range n.Attributes {
		if n.Attributes[i].Name == name {
			return n.Attributes[i], true
		}
	}
	return Attribute{}, false
}

// HasAttr reports whether the named attribute exists.
func (n *Node) HasAttr(name string) bool {
	_, ok := n.Attr(name)
	return ok
}

// SetAttr replaces the attribute with the same name, or appends it.
func (n *Node) SetAttr(a Attribute) {
	for i := range n.Attributes {
		if n.Attributes[i].Name == a.Name {
			n.Attributes[i] = a
			return
		}
	}
	n.Attributes = append(n.Attributes, a)
}

// AttrInt returns an integer attribute or the default value.
func (n *Node) AttrInt(name string, defaultVal int64) int64 {
	if a, ok := n.Attr(name); ok && a.Kind == AttrInt {
		return a.I
	}
	return defaultVal
}

// AttrBool returns a boolean attribute (stored as int 0/1) or the default.
func (n *Node) AttrBool(name string, defaultVal bool) bool {
	if a, ok := n.Attr(name); ok && a.Kind == AttrInt {
		return a.I != 0
	}
	return defaultVal
}

// AttrFloat returns a float attribute or the default value.
func (n *Node) AttrFloat(name string, defaultVal float64) float64 {
	if a, ok := n.Attr(name); ok && a.Kind == AttrFloat {
		return a.F
	}
	return defaultVal
}

// AttrString returns a string attribute or the default value.
func (n *Node) AttrString(name, defaultVal string) string {
	if a, ok := n.Attr(name); ok && a.Kind == AttrString {
		return a.S
	}
	return defaultVal
}

// AttrInts returns an integer-list attribute, or nil.
func (n *Node) AttrInts(name string) []int64 {
	if a, ok := n.Attr(name); ok && a.Kind == AttrIntList {
		return a.Ints
	}
	return nil
}

// AttrFloats returns a float-list attribute, or nil.
func (n *Node) AttrFloats(name string) []float64 {
	if a, ok := n.Attr(name); ok && a.Kind == AttrFloatList {
		return a.Floats
	}
	return nil
}

// AttrTensor returns a tensor-valued attribute, or nil.
func (n *Node) AttrTensor(name string) *tensor.Tensor {
	if a, ok := n.Attr(name); ok && a.Kind == AttrTensor {
		return a.T
	}
	return nil
}

// OutputShape returns the node's declared output shape hint, or nil when
// the importer did not record one.
func (n *Node) OutputShape() tensor.Shape {
	ints := n.AttrInts("output_shape")
	if ints == nil {
		return nil
	}
	shape := make(tensor.Shape, len(ints))
	for i, d := range ints {
		shape[i] = int(d)
	}
	return shape
}
