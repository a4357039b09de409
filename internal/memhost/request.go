package memhost

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"strbackend/internal/backend"
)

var (
	// ErrAlreadySent is returned by a second Send on the same response.
	ErrAlreadySent = errors.New("response already sent")
	// ErrReleased is returned when a released request is used again.
	ErrReleased = errors.New("request already released")
	// ErrNoStateStore is returned by NewState when the request has no store.
	ErrNoStateStore = errors.New("no state store configured")
)

// Faults injects failures into a request's host operations.
type Faults struct {
	NewResponse  error
	InputBuffer  error
	OutputBuffer error
	NewState     error
	Commit       error
}

// RequestConfig describes a request to build.
type RequestConfig struct {
	ID         string
	SequenceID uint64
	// Inputs maps input names to tensors.
	Inputs    map[string]*Input
	Requested []string
	Allocator *Allocator
	States    *StateStore
	Faults    Faults
}

// Request implements backend.Request over host memory.
type Request struct {
	cfg RequestConfig

	mu       sync.Mutex
	resp     *Response
	released bool
}

// NewRequest builds a request from cfg.
func NewRequest(cfg RequestConfig) *Request {
	return &Request{cfg: cfg}
}

// NewStringRequest builds a request carrying elems in the named input. With
// batching the shape is [len(elems), 1], otherwise [len(elems)].
func NewStringRequest(id, input string, batching bool, elems ...string) (*Request, error) {
	shape := []int64{int64(len(elems))}
	if batching {
		shape = append(shape, 1)
	}
	in, err := NewStringInput(shape, elems...)
	if err != nil {
		return nil, err
	}
	return NewRequest(RequestConfig{ID: id, Inputs: map[string]*Input{input: in}}), nil
}

// Configure applies fn to the request config before execution.
func (r *Request) Configure(fn func(*RequestConfig)) *Request {
	fn(&r.cfg)
	return r
}

func (r *Request) ID() string { return r.cfg.ID }

// SequenceID returns the sequence the request belongs to.
func (r *Request) SequenceID() uint64 { return r.cfg.SequenceID }

func (r *Request) Input(name string) (backend.Input, error) {
	if r.isReleased() {
		return nil, ErrReleased
	}
	in, ok := r.cfg.Inputs[name]
	if !ok {
		return nil, fmt.Errorf("request %s has no input %q", r.cfg.ID, name)
	}
	if r.cfg.Faults.InputBuffer != nil {
		return faultyInput{in, r.cfg.Faults.InputBuffer}, nil
	}
	return in, nil
}

func (r *Request) RequestedOutputs() ([]string, error) {
	if r.isReleased() {
		return nil, ErrReleased
	}
	return slices.Clone(r.cfg.Requested), nil
}

func (r *Request) NewResponse() (backend.Response, error) {
	if r.cfg.Faults.NewResponse != nil {
		return nil, r.cfg.Faults.NewResponse
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return nil, ErrReleased
	}
	if r.resp == nil {
		r.resp = newResponse(r.cfg.Allocator, r.cfg.Faults.OutputBuffer)
	}
	return r.resp, nil
}

func (r *Request) NewState(name string, dt backend.DataType, shape []int64) (backend.State, error) {
	if r.cfg.Faults.NewState != nil {
		return nil, r.cfg.Faults.NewState
	}
	if r.cfg.States == nil {
		return nil, ErrNoStateStore
	}
	return &stateTensor{
		output: output{
			t:     &Tensor{Name: name, DataType: dt, Shape: slices.Clone(shape)},
			alloc: r.cfg.Allocator,
			fault: r.cfg.Faults.OutputBuffer,
		},
		store:  r.cfg.States,
		seq:    r.cfg.SequenceID,
		commit: r.cfg.Faults.Commit,
	}, nil
}

func (r *Request) Release() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return ErrReleased
	}
	r.released = true
	return nil
}

// Released reports whether the backend handed the request back.
func (r *Request) Released() bool { return r.isReleased() }

// Response returns the response created for the request, if any.
func (r *Request) Response() *Response {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resp
}

func (r *Request) isReleased() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.released
}

type faultyInput struct {
	*Input
	err error
}

func (in faultyInput) Buffer(int) ([]byte, backend.MemoryType, error) {
	return nil, backend.MemoryCPU, in.err
}

// Requests converts host requests for backend execution.
func Requests(rs ...*Request) []backend.Request {
	out := make([]backend.Request, len(rs))
	for i, r := range rs {
		out[i] = r
	}
	return out
}
