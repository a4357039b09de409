package memhost

import (
	"fmt"
	"slices"
	"sync"

	"strbackend/internal/backend"
)

// Response collects the outputs of one request until it is sent.
type Response struct {
	alloc *Allocator
	fault error

	mu      sync.Mutex
	outputs map[string]*Tensor
	order   []string
	sends   int
	sent    bool
	err     error
	done    chan struct{}
}

func newResponse(alloc *Allocator, fault error) *Response {
	return &Response{
		alloc:   alloc,
		fault:   fault,
		outputs: make(map[string]*Tensor),
		done:    make(chan struct{}),
	}
}

func (r *Response) Output(name string, dt backend.DataType, shape []int64) (backend.Output, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sent {
		return nil, ErrAlreadySent
	}
	if _, ok := r.outputs[name]; ok {
		return nil, fmt.Errorf("output %q already created", name)
	}
	t := &Tensor{Name: name, DataType: dt, Shape: slices.Clone(shape)}
	r.outputs[name] = t
	r.order = append(r.order, name)
	return &output{t: t, alloc: r.alloc, fault: r.fault}, nil
}

func (r *Response) Send(err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sends++
	if r.sent {
		return ErrAlreadySent
	}
	r.sent = true
	r.err = err
	close(r.done)
	return nil
}

// Done is closed once the response is sent.
func (r *Response) Done() <-chan struct{} { return r.done }

// Sent reports whether the response was sent.
func (r *Response) Sent() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sent
}

// Sends returns how often Send was called.
func (r *Response) Sends() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sends
}

// Err returns the error the response was sent with.
func (r *Response) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Tensor returns a written output tensor.
func (r *Response) Tensor(name string) (*Tensor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.outputs[name]
	return t, ok
}

// Tensors returns the outputs in creation order.
func (r *Response) Tensors() []*Tensor {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Tensor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.outputs[name])
	}
	return out
}

type output struct {
	t     *Tensor
	alloc *Allocator
	fault error
}

func (o *output) Buffer(size int, preferred backend.MemoryType) ([]byte, backend.MemoryType, error) {
	if o.fault != nil {
		return nil, preferred, o.fault
	}
	buf, mt, err := o.alloc.Allocate(size, preferred)
	if err != nil {
		return nil, mt, err
	}
	o.t.Data = buf
	o.t.MemoryType = mt
	return buf, mt, nil
}

type stateTensor struct {
	output
	store  *StateStore
	seq    uint64
	commit error
}

func (s *stateTensor) Commit() error {
	if s.commit != nil {
		return s.commit
	}
	if s.t.Data == nil {
		return fmt.Errorf("state %s committed before its buffer was written", s.t.Name)
	}
	return s.store.Put(s.seq, s.t.Name, s.t.Data)
}
