package model

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/born-ml/ember/internal/graph"
	"github.com/born-ml/ember/internal/tensor"
)

// Mapped is a memory-mapped .embr file. Only the header is parsed up
// front; tensor data stays in the OS page cache and is materialized one
// tensor at a time.
type Mapped struct {
	file      *os.File
	data      []byte
	header    *Header
	stored    [32]byte
	dataStart int64
	dataSize  int64
	byName    map[string]int
	closed    bool
}

// OpenMapped memory-maps the .embr file at path and parses its header.
// The caller owns the returned handle and must Close it.
func OpenMapped(path string) (*Mapped, error) {
	//nolint:gosec // G304: path comes from the caller, which is expected for model loading
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	stat, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	data, err := mmapFile(f, stat.Size())
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("mmap failed: %w", err)
	}

	m := &Mapped{file: f, data: data}
	if err := m.parse(stat.Size()); err != nil {
		_ = m.Close()
		return nil, err
	}
	return m, nil
}

func (m *Mapped) parse(size int64) error {
	h, dataSize, stored, err := readHeader(bytes.NewReader(m.data))
	if err != nil {
		return err
	}
	start := int64(FixedHeaderSize) + int64(h.headerLen)
	start += pad(start)
	if start+int64(dataSize) > size {
		return fmt.Errorf("%w: data section [%d, %d) exceeds file size %d",
			ErrOutOfBounds, start, start+int64(dataSize), size)
	}

	m.byName = make(map[string]int, len(h.Tensors))
	for i, meta := range h.Tensors {
		m.byName[meta.Name] = i
	}
	m.header = h
	m.stored = stored
	m.dataStart = start
	m.dataSize = int64(dataSize)
	return nil
}

// Header returns the parsed file header.
func (m *Mapped) Header() *Header { return m.header }

// Tensor materializes one tensor by name, copying only its region out of
// the mapping. The data-section checksum is not verified on this path;
// use Verify or Graph for that.
func (m *Mapped) Tensor(name string) (*tensor.Tensor, error) {
	if m.closed {
		return nil, errors.New("mapped model is closed")
	}
	i, ok := m.byName[name]
	if !ok {
		return nil, fmt.Errorf("no tensor %q in mapped model", name)
	}
	meta := m.header.Tensors[i]
	region := m.data[m.dataStart+meta.Offset : m.dataStart+meta.Offset+meta.Size]
	return decodeTensor(meta.DType, meta.Shape, region)
}

// Verify checks the whole data section against the stored checksum.
func (m *Mapped) Verify() error {
	if m.closed {
		return errors.New("mapped model is closed")
	}
	region := m.data[m.dataStart : m.dataStart+m.dataSize]
	return ValidateChecksum(ComputeChecksum(region), m.stored)
}

// Graph verifies the checksum and decodes the complete model, exactly as
// Load would.
func (m *Mapped) Graph() (*graph.Graph, error) {
	if err := m.Verify(); err != nil {
		return nil, err
	}
	return decode(m.header, m.data[m.dataStart:m.dataStart+m.dataSize])
}

// Close unmaps and closes the file. Calling it twice is safe.
func (m *Mapped) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true

	var unmapErr error
	if len(m.data) > 0 {
		unmapErr = munmapFile(m.data)
		m.data = nil
	}
	closeErr := m.file.Close()
	if unmapErr != nil {
		return fmt.Errorf("munmap failed: %w", unmapErr)
	}
	return closeErr
}
