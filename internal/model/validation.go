package model

import (
	"fmt"
	"sort"
	"strings"
)

// Limits protecting the loader from malformed or hostile files.
const (
	MaxHeaderSize    = 100 * 1024 * 1024
	MaxTensorCount   = 100_000
	MaxTensorNameLen = 256
)

// ValidateTensorName rejects names that cannot be trusted from an
// untrusted file. Dots and slashes are legal inside names ("layers.0/w")
// but ".." is not, in case a caller ever derives paths from them.
func ValidateTensorName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidTensorName)
	}
	if len(name) > MaxTensorNameLen {
		return fmt.Errorf("%w: %q is %d bytes, max %d", ErrTensorNameTooLong, name, len(name), MaxTensorNameLen)
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q contains %q", ErrInvalidTensorName, name, "..")
	}
	if strings.Contains(name, "\x00") {
		return fmt.Errorf("%w: %q contains a null byte", ErrInvalidTensorName, name)
	}
	return nil
}

// ValidateTensorOffsets checks every tensor region for negative extents,
// out-of-bounds reads, and overlap with its neighbors.
func ValidateTensorOffsets(tensors []TensorMeta, dataSize int64) error {
	if len(tensors) > MaxTensorCount {
		return fmt.Errorf("%w: got %d, max %d", ErrTooManyTensors, len(tensors), MaxTensorCount)
	}

	sorted := make([]TensorMeta, len(tensors))
	copy(sorted, tensors)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})

	for i, t := range sorted {
		if t.Offset < 0 || t.Size < 0 {
			return fmt.Errorf("%w: tensor %q has offset %d, size %d", ErrNegativeOffset, t.Name, t.Offset, t.Size)
		}
		if t.Offset+t.Size > dataSize {
			return fmt.Errorf("%w: tensor %q needs [%d, %d) of %d data bytes",
				ErrOutOfBounds, t.Name, t.Offset, t.Offset+t.Size, dataSize)
		}
		if i < len(sorted)-1 {
			next := sorted[i+1]
			if t.Offset+t.Size > next.Offset {
				return fmt.Errorf("%w: tensors %q and %q share [%d, %d)",
					ErrOffsetOverlap, t.Name, next.Name, next.Offset, t.Offset+t.Size)
			}
		}
	}
	return nil
}

func validateHeader(h *Header, dataSize int64) error {
	for _, t := range h.Tensors {
		if err := ValidateTensorName(t.Name); err != nil {
			return err
		}
	}
	return ValidateTensorOffsets(h.Tensors, dataSize)
}
