package backend

import (
	"fmt"
	"math"
)

// DataType is the wire datatype of a tensor.
type DataType string

const (
	TypeBytes DataType = "BYTES"
	TypeBool  DataType = "BOOL"
	TypeInt32 DataType = "INT32"
	TypeInt64 DataType = "INT64"
	TypeFP32  DataType = "FP32"
	TypeFP64  DataType = "FP64"
)

// MemoryType identifies where a buffer lives.
type MemoryType int

const (
	MemoryCPU MemoryType = iota
	MemoryCPUPinned
	MemoryGPU
)

func (m MemoryType) String() string {
	switch m {
	case MemoryCPU:
		return "CPU"
	case MemoryCPUPinned:
		return "CPU_PINNED"
	case MemoryGPU:
		return "GPU"
	default:
		return fmt.Sprintf("MemoryType(%d)", int(m))
	}
}

// TensorDescriptor describes the input or output tensor of a model. It is
// validated at model load and never mutated afterwards.
type TensorDescriptor struct {
	Name     string
	DataType DataType
	// NonBatchShape excludes the batch dimension. -1 marks a variable dimension.
	NonBatchShape []int64
	// FirstDimBatching reports whether requests carry a leading batch dimension.
	FirstDimBatching bool
}

// Shape returns the full tensor shape: NonBatchShape prefixed with -1 when the
// model batches along the first dimension.
func (d TensorDescriptor) Shape() []int64 {
	shape := make([]int64, 0, len(d.NonBatchShape)+1)
	if d.FirstDimBatching {
		shape = append(shape, -1)
	}
	return append(shape, d.NonBatchShape...)
}

// ElementCount returns the number of elements in a fully specified shape.
func ElementCount(shape []int64) (int, error) {
	n := int64(1)
	for _, d := range shape {
		if d < 0 {
			return 0, fmt.Errorf("shape %v has unresolved dimension", shape)
		}
		if d != 0 && n > math.MaxInt64/d {
			return 0, fmt.Errorf("shape %v overflows the element count", shape)
		}
		n *= d
	}
	if n > math.MaxInt {
		return 0, fmt.Errorf("shape %v overflows the element count", shape)
	}
	return int(n), nil
}

// Model is the black-box inference capability: one ordered list of request
// strings in, one ordered list of response strings of the same length out.
type Model interface {
	RunInference(requests []string) ([]string, error)
}

// Request is one inference request handed over by the host.
type Request interface {
	// ID identifies the request in logs.
	ID() string
	// Input returns the named input tensor.
	Input(name string) (Input, error)
	// RequestedOutputs lists the output names the caller asked for.
	RequestedOutputs() ([]string, error)
	// NewResponse creates the single response object for this request.
	NewResponse() (Response, error)
	// NewState creates a sequence state tensor to be persisted for the
	// request's sequence.
	NewState(name string, dt DataType, shape []int64) (State, error)
	// Release hands the request back to the host once its response is final.
	Release() error
}

// Input is a request input tensor, possibly split over several buffers.
type Input interface {
	DataType() DataType
	Shape() []int64
	BufferCount() int
	Buffer(i int) ([]byte, MemoryType, error)
}

// Response is the terminal response for one request.
type Response interface {
	// Output creates an output tensor on the response.
	Output(name string, dt DataType, shape []int64) (Output, error)
	// Send completes the response. A nil error sends the outputs written so
	// far; a non-nil error sends an error response. Send is called at most once.
	Send(err error) error
}

// Output is a destination tensor that can hand out a buffer.
type Output interface {
	// Buffer returns a buffer of exactly size bytes, preferably in the
	// requested memory class, along with the class actually used.
	Buffer(size int, preferred MemoryType) ([]byte, MemoryType, error)
}

// State is a sequence state tensor. Commit makes the written buffer visible to
// the next execution of the same sequence.
type State interface {
	Output
	Commit() error
}

// Allocator provides scratch buffers for collecting inputs.
type Allocator interface {
	Allocate(size int, preferred MemoryType) ([]byte, MemoryType, error)
}

// Synchronizer waits for pending accelerator copies to complete.
type Synchronizer interface {
	Synchronize() error
}

type heapAllocator struct{}

func (heapAllocator) Allocate(size int, _ MemoryType) ([]byte, MemoryType, error) {
	return make([]byte, size), MemoryCPU, nil
}
