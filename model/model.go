// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package model provides the public API for the .embr model container.
//
// The format stores a complete graph: a JSON header describing nodes,
// boundary, and metadata, followed by an aligned, checksummed tensor
// data section.
//
// Example:
//
//	if err := model.SaveFile("net.embr", g); err != nil {
//	    log.Fatal(err)
//	}
//	g2, err := model.LoadFile("net.embr")
package model

import (
	"io"

	"github.com/born-ml/ember/internal/graph"
	"github.com/born-ml/ember/internal/model"
)

// Type aliases for public API

// Header is the parsed JSON header of an .embr file.
type Header = model.Header

// TensorMeta locates one tensor inside the data section.
type TensorMeta = model.TensorMeta

// Mapped is a memory-mapped .embr file with per-tensor access.
type Mapped = model.Mapped

// Save writes g to w in .embr format.
func Save(w io.Writer, g *graph.Graph) error {
	return model.Save(w, g)
}

// SaveFile writes g to an .embr file at path.
func SaveFile(path string, g *graph.Graph) error {
	return model.SaveFile(path, g)
}

// Load reads a graph from r, verifying the data checksum.
func Load(r io.Reader) (*graph.Graph, error) {
	return model.Load(r)
}

// LoadFile reads a graph from an .embr file at path.
func LoadFile(path string) (*graph.Graph, error) {
	return model.LoadFile(path)
}

// ReadHeader reads only the file preamble and JSON header, without
// touching tensor data.
func ReadHeader(r io.Reader) (*Header, error) {
	return model.ReadHeader(r)
}

// OpenMapped memory-maps an .embr file for per-tensor reads without
// loading the whole data section. The caller must Close the handle.
func OpenMapped(path string) (*Mapped, error) {
	return model.OpenMapped(path)
}
