package memhost

import (
	"fmt"
	"slices"
	"sync/atomic"

	"strbackend/internal/backend"
	"strbackend/internal/framing"
)

// Tensor is a written output tensor.
type Tensor struct {
	Name       string
	DataType   backend.DataType
	Shape      []int64
	Data       []byte
	MemoryType backend.MemoryType
}

// Strings decodes the framed elements of a BYTES tensor.
func (t *Tensor) Strings() ([]string, error) {
	spans, err := framing.DecodeAll(t.Data)
	if err != nil {
		return nil, fmt.Errorf("tensor %s: %w", t.Name, err)
	}
	return framing.Strings(spans), nil
}

// Input is a request input held in one or more host buffers.
type Input struct {
	dt      backend.DataType
	shape   []int64
	buffers [][]byte
	memType backend.MemoryType
}

// NewInput wraps raw buffers as an input tensor.
func NewInput(dt backend.DataType, shape []int64, buffers ...[]byte) *Input {
	return &Input{dt: dt, shape: slices.Clone(shape), buffers: buffers, memType: backend.MemoryCPU}
}

// NewStringInput frames elems into a single BYTES buffer of the given shape.
func NewStringInput(shape []int64, elems ...string) (*Input, error) {
	n, err := backend.ElementCount(shape)
	if err != nil {
		return nil, err
	}
	if n != len(elems) {
		return nil, fmt.Errorf("shape %v holds %d elements, got %d", shape, n, len(elems))
	}
	buf, _, err := framing.Encode(elems)
	if err != nil {
		return nil, err
	}
	return NewInput(backend.TypeBytes, shape, buf), nil
}

// InMemory returns a copy of the input reporting the given memory class.
func (in *Input) InMemory(mt backend.MemoryType) *Input {
	cp := *in
	cp.memType = mt
	return &cp
}

func (in *Input) DataType() backend.DataType { return in.dt }
func (in *Input) Shape() []int64             { return slices.Clone(in.shape) }
func (in *Input) BufferCount() int           { return len(in.buffers) }

func (in *Input) Buffer(i int) ([]byte, backend.MemoryType, error) {
	if i < 0 || i >= len(in.buffers) {
		return nil, in.memType, fmt.Errorf("buffer index %d out of range [0,%d)", i, len(in.buffers))
	}
	return in.buffers[i], in.memType, nil
}

// Allocator hands out host buffers. Pinned memory is granted only when
// PinnedEnabled is set; DeviceOutputs places every buffer in accelerator
// memory, which requires a Stream synchronization before responses are final.
type Allocator struct {
	PinnedEnabled bool
	DeviceOutputs bool
	// FailAbove makes allocations larger than this many bytes fail; 0 disables it.
	FailAbove int
}

func (a *Allocator) Allocate(size int, preferred backend.MemoryType) ([]byte, backend.MemoryType, error) {
	if a == nil {
		return make([]byte, size), backend.MemoryCPU, nil
	}
	if a.FailAbove > 0 && size > a.FailAbove {
		return nil, preferred, fmt.Errorf("allocate %d bytes: exceeds limit %d", size, a.FailAbove)
	}
	mt := backend.MemoryCPU
	switch {
	case a.DeviceOutputs:
		mt = backend.MemoryGPU
	case preferred == backend.MemoryCPUPinned && a.PinnedEnabled:
		mt = backend.MemoryCPUPinned
	}
	return make([]byte, size), mt, nil
}

// Stream stands in for an accelerator stream; it counts synchronizations.
type Stream struct {
	syncs atomic.Int64
	Err   error
}

func (s *Stream) Synchronize() error {
	s.syncs.Add(1)
	return s.Err
}

// Syncs returns how often Synchronize was called.
func (s *Stream) Syncs() int64 { return s.syncs.Load() }
