package backend

import (
	"errors"
	"fmt"
	"slices"
	"testing"

	"strbackend/internal/framing"
)

// fakeTensor is a written output or state tensor.
type fakeTensor struct {
	name     string
	shape    []int64
	data     []byte
	memType  MemoryType
	bufErr   error
	commits  int
	commitFn func() error
}

func (t *fakeTensor) Buffer(size int, preferred MemoryType) ([]byte, MemoryType, error) {
	if t.bufErr != nil {
		return nil, preferred, t.bufErr
	}
	t.data = make([]byte, size)
	mt := preferred
	if t.memType != 0 {
		mt = t.memType
	}
	return t.data, mt, nil
}

func (t *fakeTensor) Commit() error {
	t.commits++
	if t.commitFn != nil {
		return t.commitFn()
	}
	return nil
}

type fakeResponse struct {
	outputs map[string]*fakeTensor
	sends   int
	err     error
	bufErr  error
	memType MemoryType
}

func (r *fakeResponse) Output(name string, _ DataType, shape []int64) (Output, error) {
	t := &fakeTensor{name: name, shape: slices.Clone(shape), bufErr: r.bufErr, memType: r.memType}
	r.outputs[name] = t
	return t, nil
}

func (r *fakeResponse) Send(err error) error {
	r.sends++
	r.err = err
	return nil
}

type fakeInput struct {
	dt      DataType
	shape   []int64
	buffers [][]byte
	memType MemoryType
}

func (in *fakeInput) DataType() DataType { return in.dt }
func (in *fakeInput) Shape() []int64     { return in.shape }
func (in *fakeInput) BufferCount() int   { return len(in.buffers) }
func (in *fakeInput) Buffer(i int) ([]byte, MemoryType, error) {
	return in.buffers[i], in.memType, nil
}

type fakeRequest struct {
	id        string
	input     *fakeInput
	requested []string
	resp      *fakeResponse
	states    map[string]*fakeTensor
	stateErr  error
	released  bool
	respErr   error
}

func (r *fakeRequest) ID() string { return r.id }

func (r *fakeRequest) Input(name string) (Input, error) {
	if r.input == nil {
		return nil, fmt.Errorf("no input %q", name)
	}
	return r.input, nil
}

func (r *fakeRequest) RequestedOutputs() ([]string, error) { return r.requested, nil }

func (r *fakeRequest) NewResponse() (Response, error) {
	if r.respErr != nil {
		return nil, r.respErr
	}
	return r.resp, nil
}

func (r *fakeRequest) NewState(name string, _ DataType, shape []int64) (State, error) {
	if r.stateErr != nil {
		return nil, r.stateErr
	}
	t := &fakeTensor{name: name, shape: slices.Clone(shape)}
	r.states[name] = t
	return t, nil
}

func (r *fakeRequest) Release() error {
	r.released = true
	return nil
}

// newFakeRequest frames elems into a single input buffer of the given shape.
func newFakeRequest(t *testing.T, id string, shape []int64, elems ...string) *fakeRequest {
	t.Helper()
	buf, _, err := framing.Encode(elems)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return &fakeRequest{
		id:        id,
		input:     &fakeInput{dt: TypeBytes, shape: shape, buffers: [][]byte{buf}},
		requested: []string{"OUTPUT"},
		resp:      &fakeResponse{outputs: map[string]*fakeTensor{}},
		states:    map[string]*fakeTensor{},
	}
}

func asRequests(rs ...*fakeRequest) []Request {
	out := make([]Request, len(rs))
	for i, r := range rs {
		out[i] = r
	}
	return out
}

type modelFunc func([]string) ([]string, error)

func (f modelFunc) RunInference(reqs []string) ([]string, error) { return f(reqs) }

func reverseModel() modelFunc {
	return func(reqs []string) ([]string, error) {
		out := make([]string, len(reqs))
		for i, s := range reqs {
			b := []byte(s)
			slices.Reverse(b)
			out[i] = string(b)
		}
		return out, nil
	}
}

type recordingStats struct {
	requests  []bool
	batchSize int
	batches   int
}

func (s *recordingStats) ReportRequest(_ Request, success bool, _ BatchTimes) {
	s.requests = append(s.requests, success)
}

func (s *recordingStats) ReportBatch(n int, _ BatchTimes) {
	s.batchSize = n
	s.batches++
}

func newTestInstance(t *testing.T, batching bool, m Model, states ...string) (*Instance, *recordingStats) {
	t.Helper()
	stats := &recordingStats{}
	desc := TensorDescriptor{DataType: TypeBytes, NonBatchShape: []int64{1}, FirstDimBatching: batching}
	in, out := desc, desc
	in.Name, out.Name = "INPUT", "OUTPUT"
	inst, err := NewInstance(InstanceConfig{
		ModelName:    "test",
		InstanceName: "test_0",
		Input:        in,
		Output:       out,
		States:       states,
		Model:        m,
		Stats:        stats,
	})
	if err != nil {
		t.Fatalf("new instance: %v", err)
	}
	return inst, stats
}

// decodeOutput returns the strings framed in a written tensor.
func decodeOutput(t *testing.T, tn *fakeTensor) []string {
	t.Helper()
	spans, err := framing.DecodeAll(tn.data)
	if err != nil {
		t.Fatalf("decode %s: %v", tn.name, err)
	}
	return framing.Strings(spans)
}

var errBoom = errors.New("boom")
