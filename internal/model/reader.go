package model

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/born-ml/ember/internal/graph"
	"github.com/born-ml/ember/internal/tensor"
)

// Load reads a graph from r. The data-section checksum and every tensor
// region are verified before any tensor is materialized.
func Load(r io.Reader) (*graph.Graph, error) {
	h, dataSize, stored, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	if padding := pad(int64(FixedHeaderSize) + int64(h.headerLen)); padding > 0 {
		if _, err := io.CopyN(io.Discard, r, padding); err != nil {
			return nil, fmt.Errorf("failed to skip padding: %w", err)
		}
	}

	data := make([]byte, dataSize)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("failed to read tensor data: %w", err)
	}
	if err := ValidateChecksum(ComputeChecksum(data), stored); err != nil {
		return nil, err
	}

	return decode(h, data)
}

// LoadFile reads a graph from an .embr file at path.
func LoadFile(path string) (*graph.Graph, error) {
	//nolint:gosec // G304: path comes from the caller, which is expected for model loading
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

// ReadHeader reads only the file preamble and JSON header, without
// touching tensor data. Inspection tooling uses this to describe a model
// cheaply.
func ReadHeader(r io.Reader) (*Header, error) {
	h, _, _, err := readHeader(r)
	return h, err
}

func readHeader(r io.Reader) (*Header, uint64, [32]byte, error) {
	var stored [32]byte

	fixed := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return nil, 0, stored, fmt.Errorf("failed to read fixed header: %w", err)
	}
	if string(fixed[0:4]) != MagicBytes {
		return nil, 0, stored, fmt.Errorf("%w: got %q, expected %q", ErrInvalidMagic, string(fixed[0:4]), MagicBytes)
	}
	version := binary.LittleEndian.Uint32(fixed[4:8])
	if version != FormatVersion {
		return nil, 0, stored, fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, version, FormatVersion)
	}
	headerSize := binary.LittleEndian.Uint64(fixed[16:24])
	if headerSize > MaxHeaderSize {
		return nil, 0, stored, fmt.Errorf("%w: %d bytes, max %d", ErrHeaderTooLarge, headerSize, MaxHeaderSize)
	}
	dataSize := binary.LittleEndian.Uint64(fixed[24:32])
	copy(stored[:], fixed[ChecksumOffset:ChecksumOffset+ChecksumSize])

	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return nil, 0, stored, fmt.Errorf("failed to read header: %w", err)
	}
	var h Header
	if err := json.Unmarshal(headerBytes, &h); err != nil {
		return nil, 0, stored, fmt.Errorf("failed to parse header JSON: %w", err)
	}
	if err := validateHeader(&h, int64(dataSize)); err != nil {
		return nil, 0, stored, err
	}
	h.headerLen = headerSize
	return &h, dataSize, stored, nil
}

// decode rebuilds the graph from the parsed header and data section.
func decode(h *Header, data []byte) (*graph.Graph, error) {
	g := graph.New(h.Name)

	var err error
	if g.Inputs, err = valueInfos(h.Inputs); err != nil {
		return nil, fmt.Errorf("input: %w", err)
	}
	if g.Outputs, err = valueInfos(h.Outputs); err != nil {
		return nil, fmt.Errorf("output: %w", err)
	}

	for _, rec := range h.Nodes {
		node := graph.NewNode(rec.Name, rec.OpType, rec.Inputs, rec.Outputs)
		for _, ar := range rec.Attrs {
			a, err := attrFromRecord(ar)
			if err != nil {
				return nil, fmt.Errorf("node %q: %w", rec.Name, err)
			}
			node.Attributes = append(node.Attributes, a)
		}
		g.Nodes = append(g.Nodes, node)
	}

	for _, meta := range h.Tensors {
		w, err := decodeTensor(meta.DType, meta.Shape, data[meta.Offset:meta.Offset+meta.Size])
		if err != nil {
			return nil, fmt.Errorf("tensor %q: %w", meta.Name, err)
		}
		g.Weights[meta.Name] = w
	}

	g.Metadata = h.Metadata
	return g, nil
}

func valueInfos(recs []ValueRecord) ([]graph.ValueInfo, error) {
	if len(recs) == 0 {
		return nil, nil
	}
	vals := make([]graph.ValueInfo, len(recs))
	for i, rec := range recs {
		dt, ok := stringToDtype(rec.DType)
		if !ok {
			return nil, fmt.Errorf("%q: unsupported dtype %q", rec.Name, rec.DType)
		}
		vals[i] = graph.ValueInfo{Name: rec.Name, DType: dt, Shape: tensor.Shape(rec.Shape)}
	}
	return vals, nil
}
