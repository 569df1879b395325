// Package model provides the native .embr container for compiled graphs.
//
// An .embr file stores a complete graph: nodes with attributes, boundary
// declarations, pipeline metadata, and weight tensors.
//
//	Format Structure:
//	  [4 bytes:  Magic "EMBR"]
//	  [4 bytes:  Version (uint32 LE)]
//	  [4 bytes:  Flags (uint32 LE)]
//	  [4 bytes:  Reserved]
//	  [8 bytes:  Header Size (uint64 LE)]
//	  [8 bytes:  Data Size (uint64 LE)]
//	  [32 bytes: SHA-256 of the data section]
//	  [Header: JSON graph description]
//	  [Tensor data: raw bytes, each tensor 64-byte aligned]
//
// Loading verifies the checksum and every tensor's bounds before any data
// reaches the graph. Float16 tensors are widened to float32 on load; the
// pipeline operates on float32 and the quantized integer types only.
package model
