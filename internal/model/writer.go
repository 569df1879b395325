package model

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/born-ml/ember/internal/graph"
)

const emberVersion = "0.1.0"

// Save writes g to w in .embr format. Tensors are laid out in sorted
// name order, each aligned to a 64-byte boundary, so identical graphs
// always produce identical layouts.
func Save(w io.Writer, g *graph.Graph) error {
	if g == nil {
		return fmt.Errorf("cannot save nil graph")
	}

	header, data, err := encode(g)
	if err != nil {
		return err
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if len(headerJSON) > MaxHeaderSize {
		return fmt.Errorf("%w: %d bytes, max %d", ErrHeaderTooLarge, len(headerJSON), MaxHeaderSize)
	}

	checksum := ComputeChecksum(data)

	fixed := make([]byte, FixedHeaderSize)
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], uint32(FormatVersion))
	binary.LittleEndian.PutUint32(fixed[8:12], flagsFor(g))
	// 0x0C-0x0F reserved, zero
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[24:32], uint64(len(data)))
	copy(fixed[ChecksumOffset:ChecksumOffset+ChecksumSize], checksum[:])

	if _, err := w.Write(fixed); err != nil {
		return fmt.Errorf("failed to write fixed header: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if padding := pad(int64(FixedHeaderSize) + int64(len(headerJSON))); padding > 0 {
		if _, err := w.Write(make([]byte, padding)); err != nil {
			return fmt.Errorf("failed to write padding: %w", err)
		}
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write tensor data: %w", err)
	}
	return nil
}

// SaveFile writes g to a new .embr file at path.
func SaveFile(path string, g *graph.Graph) error {
	//nolint:gosec // G304: path comes from the caller, which is expected for model saving
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := Save(f, g); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// encode builds the JSON header and the packed data section.
func encode(g *graph.Graph) (Header, []byte, error) {
	h := Header{
		FormatVersion: FormatVersion,
		EmberVersion:  emberVersion,
		Name:          g.Name,
		CreatedAt:     time.Now().UTC(),
		Metadata:      g.Metadata,
	}

	var err error
	if h.Inputs, err = valueRecords(g.Inputs); err != nil {
		return h, nil, fmt.Errorf("input: %w", err)
	}
	if h.Outputs, err = valueRecords(g.Outputs); err != nil {
		return h, nil, fmt.Errorf("output: %w", err)
	}

	for _, n := range g.Nodes {
		rec := NodeRecord{Name: n.Name, OpType: n.OpType, Inputs: n.Inputs, Outputs: n.Outputs}
		for _, a := range n.Attributes {
			ar, err := attrToRecord(a)
			if err != nil {
				return h, nil, fmt.Errorf("node %q: %w", n.Name, err)
			}
			rec.Attrs = append(rec.Attrs, ar)
		}
		h.Nodes = append(h.Nodes, rec)
	}

	names := make([]string, 0, len(g.Weights))
	for name := range g.Weights {
		names = append(names, name)
	}
	sort.Strings(names)

	var offset int64
	h.Tensors = make([]TensorMeta, 0, len(names))
	for _, name := range names {
		w := g.Weights[name]
		if w == nil {
			return h, nil, fmt.Errorf("weight %q: nil tensor", name)
		}
		dt, err := dtypeToString(w.DType())
		if err != nil {
			return h, nil, fmt.Errorf("weight %q: %w", name, err)
		}
		offset += pad(offset)
		h.Tensors = append(h.Tensors, TensorMeta{
			Name:   name,
			DType:  dt,
			Shape:  []int(w.Shape()),
			Offset: offset,
			Size:   int64(w.ByteSize()),
		})
		offset += int64(w.ByteSize())
	}

	data := make([]byte, offset)
	for _, meta := range h.Tensors {
		copy(data[meta.Offset:], g.Weights[meta.Name].Data())
	}
	return h, data, nil
}

func valueRecords(vals []graph.ValueInfo) ([]ValueRecord, error) {
	if len(vals) == 0 {
		return nil, nil
	}
	recs := make([]ValueRecord, len(vals))
	for i, v := range vals {
		dt, err := dtypeToString(v.DType)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", v.Name, err)
		}
		recs[i] = ValueRecord{Name: v.Name, DType: dt, Shape: []int(v.Shape)}
	}
	return recs, nil
}

func flagsFor(g *graph.Graph) uint32 {
	var flags uint32
	if g.Metadata.Quantization != nil {
		flags |= FlagQuantized
	}
	if g.Metadata.PoolCount > 0 {
		flags |= FlagHasPools
	}
	return flags
}

// pad returns the bytes needed to advance pos to the next alignment
// boundary.
func pad(pos int64) int64 {
	return (HeaderAlignment - pos%HeaderAlignment) % HeaderAlignment
}
