package backend

import (
	"bytes"
	"errors"
	"slices"
	"testing"
)

func TestExecuteReverseBatch(t *testing.T) {
	inst, stats := newTestInstance(t, false, reverseModel())
	a := newFakeRequest(t, "a", []int64{1}, "a")
	b := newFakeRequest(t, "b", []int64{1}, "bb")
	c := newFakeRequest(t, "c", []int64{1}, "abc")
	if err := inst.Execute(asRequests(a, b, c)); err != nil {
		t.Fatalf("execute: %v", err)
	}
	want := map[*fakeRequest][]byte{
		a: {1, 0, 0, 0, 'a'},
		b: {2, 0, 0, 0, 'b', 'b'},
		c: {3, 0, 0, 0, 'c', 'b', 'a'},
	}
	for r, frame := range want {
		if r.resp.sends != 1 || r.resp.err != nil {
			t.Fatalf("request %s: sends=%d err=%v", r.id, r.resp.sends, r.resp.err)
		}
		out := r.resp.outputs["OUTPUT"]
		if out == nil {
			t.Fatalf("request %s: no output", r.id)
		}
		if !bytes.Equal(out.data, frame) {
			t.Fatalf("request %s: output %v, want %v", r.id, out.data, frame)
		}
		if !slices.Equal(out.shape, []int64{1}) {
			t.Fatalf("request %s: shape %v", r.id, out.shape)
		}
		if !r.released {
			t.Fatalf("request %s not released", r.id)
		}
	}
	if stats.batchSize != 3 || stats.batches != 1 {
		t.Fatalf("batch stats: size=%d batches=%d", stats.batchSize, stats.batches)
	}
	for i, ok := range stats.requests {
		if !ok {
			t.Fatalf("request %d reported as failed", i)
		}
	}
}

func TestExecuteCallsModelOnce(t *testing.T) {
	calls := 0
	var seen []string
	m := modelFunc(func(reqs []string) ([]string, error) {
		calls++
		seen = slices.Clone(reqs)
		return reqs, nil
	})
	inst, _ := newTestInstance(t, true, m)
	r1 := newFakeRequest(t, "r1", []int64{2, 1}, "x", "")
	r2 := newFakeRequest(t, "r2", []int64{1, 1}, "yz")
	if err := inst.Execute(asRequests(r1, r2)); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if calls != 1 {
		t.Fatalf("model called %d times", calls)
	}
	if !slices.Equal(seen, []string{"x", "", "yz"}) {
		t.Fatalf("model saw %q", seen)
	}
	out1 := r1.resp.outputs["OUTPUT"]
	if got := decodeOutput(t, out1); !slices.Equal(got, []string{"x", ""}) {
		t.Fatalf("r1 output %q", got)
	}
	if !slices.Equal(out1.shape, []int64{2, 1}) {
		t.Fatalf("r1 shape %v, want per-request batch dimension", out1.shape)
	}
	out2 := r2.resp.outputs["OUTPUT"]
	if !bytes.Equal(out2.data, []byte{2, 0, 0, 0, 'y', 'z'}) {
		t.Fatalf("r2 output %v", out2.data)
	}
	if !slices.Equal(out2.shape, []int64{1, 1}) {
		t.Fatalf("r2 shape %v", out2.shape)
	}
}

func TestExecuteBatchStatsSumSubSizes(t *testing.T) {
	inst, stats := newTestInstance(t, true, reverseModel())
	r1 := newFakeRequest(t, "r1", []int64{3, 1}, "a", "b", "c")
	r2 := newFakeRequest(t, "r2", []int64{2, 1}, "d", "e")
	if err := inst.Execute(asRequests(r1, r2)); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if stats.batchSize != 5 {
		t.Fatalf("batch size %d, want 5", stats.batchSize)
	}
}

func TestExecuteCardinalityMismatchFailsBatch(t *testing.T) {
	m := modelFunc(func(reqs []string) ([]string, error) { return reqs[:1], nil })
	inst, stats := newTestInstance(t, false, m)
	a := newFakeRequest(t, "a", []int64{1}, "a")
	b := newFakeRequest(t, "b", []int64{1}, "b")
	if err := inst.Execute(asRequests(a, b)); err != nil {
		t.Fatalf("execute: %v", err)
	}
	for _, r := range []*fakeRequest{a, b} {
		if r.resp.sends != 1 {
			t.Fatalf("request %s: %d sends", r.id, r.resp.sends)
		}
		if !IsCardinalityMismatch(r.resp.err) || !IsBatchError(r.resp.err) {
			t.Fatalf("request %s: err %v", r.id, r.resp.err)
		}
		if len(r.resp.outputs) != 0 {
			t.Fatalf("request %s: outputs written on failed batch", r.id)
		}
	}
	for i, ok := range stats.requests {
		if ok {
			t.Fatalf("request %d reported success", i)
		}
	}
}

func TestExecuteModelErrorAndPanic(t *testing.T) {
	tests := []struct {
		name  string
		model modelFunc
	}{
		{"error", func([]string) ([]string, error) { return nil, errBoom }},
		{"panic", func([]string) ([]string, error) { panic("model crashed") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, _ := newTestInstance(t, false, tt.model)
			a := newFakeRequest(t, "a", []int64{1}, "a")
			b := newFakeRequest(t, "b", []int64{1}, "b")
			if err := inst.Execute(asRequests(a, b)); err != nil {
				t.Fatalf("execute: %v", err)
			}
			for _, r := range []*fakeRequest{a, b} {
				if r.resp.sends != 1 || !IsBatchError(r.resp.err) {
					t.Fatalf("request %s: sends=%d err=%v", r.id, r.resp.sends, r.resp.err)
				}
			}
		})
	}
}

func TestExecuteAdversarialSubSize(t *testing.T) {
	calls := 0
	m := modelFunc(func(reqs []string) ([]string, error) { calls++; return reqs, nil })
	inst, _ := newTestInstance(t, true, m)
	// Claims two elements but frames one.
	r1 := newFakeRequest(t, "r1", []int64{2, 1}, "only")
	r2 := newFakeRequest(t, "r2", []int64{1, 1}, "ok")
	if err := inst.Execute(asRequests(r1, r2)); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if calls != 0 {
		t.Fatalf("model called on broken framing")
	}
	for _, r := range []*fakeRequest{r1, r2} {
		if !IsBatchError(r.resp.err) || r.resp.sends != 1 {
			t.Fatalf("request %s: sends=%d err=%v", r.id, r.resp.sends, r.resp.err)
		}
	}
}

func TestExecuteOversizedSubSize(t *testing.T) {
	tests := []struct {
		name   string
		shapes [][]int64
	}{
		{"count beyond buffer", [][]int64{{1 << 50, 1}}},
		{"count wraps to framed total", [][]int64{{1 << 62, 1}, {1 << 62, 1}, {1 << 62, 1}, {1<<62 + 4, 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			m := modelFunc(func(reqs []string) ([]string, error) { calls++; return reqs, nil })
			inst, _ := newTestInstance(t, true, m)
			var reqs []*fakeRequest
			for i, shape := range tt.shapes {
				reqs = append(reqs, newFakeRequest(t, string(rune('a'+i)), shape, "x"))
			}
			if err := inst.Execute(asRequests(reqs...)); err != nil {
				t.Fatalf("execute: %v", err)
			}
			if calls != 0 {
				t.Fatalf("model called for an oversized batch")
			}
			for _, r := range reqs {
				if r.resp.sends != 1 || !IsBatchError(r.resp.err) || !errors.Is(r.resp.err, ErrInvalidInput) {
					t.Fatalf("request %s: sends=%d err=%v", r.id, r.resp.sends, r.resp.err)
				}
				if !r.released {
					t.Fatalf("request %s not released", r.id)
				}
			}
		})
	}
}

func TestElementCountOverflow(t *testing.T) {
	if _, err := ElementCount([]int64{1 << 32, 1 << 32}); err == nil {
		t.Fatal("expected overflow error")
	}
	if n, err := ElementCount([]int64{3, 0, 1 << 62}); err != nil || n != 0 {
		t.Fatalf("zero dim: n=%d err=%v", n, err)
	}
	if n, err := ElementCount([]int64{2, 3}); err != nil || n != 6 {
		t.Fatalf("n=%d err=%v", n, err)
	}
}

func TestExecuteCollectFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *fakeRequest)
		want   error
	}{
		{"gpu input", func(r *fakeRequest) { r.input.memType = MemoryGPU }, ErrMemoryClass},
		{"wrong datatype", func(r *fakeRequest) { r.input.dt = TypeInt32 }, ErrInvalidInput},
		{"wrong shape", func(r *fakeRequest) { r.input.shape = []int64{1, 2} }, ErrInvalidInput},
		{"missing input", func(r *fakeRequest) { r.input = nil }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, _ := newTestInstance(t, false, reverseModel())
			a := newFakeRequest(t, "a", []int64{1}, "a")
			b := newFakeRequest(t, "b", []int64{1}, "b")
			tt.mutate(b)
			if err := inst.Execute(asRequests(a, b)); err != nil {
				t.Fatalf("execute: %v", err)
			}
			for _, r := range []*fakeRequest{a, b} {
				if r.resp.sends != 1 || !IsBatchError(r.resp.err) {
					t.Fatalf("request %s: sends=%d err=%v", r.id, r.resp.sends, r.resp.err)
				}
				if tt.want != nil && !errors.Is(r.resp.err, tt.want) {
					t.Fatalf("request %s: err %v, want %v", r.id, r.resp.err, tt.want)
				}
			}
		})
	}
}

func TestExecuteIsolatesWriteFailure(t *testing.T) {
	inst, stats := newTestInstance(t, false, reverseModel())
	reqs := []*fakeRequest{
		newFakeRequest(t, "r0", []int64{1}, "ab"),
		newFakeRequest(t, "r1", []int64{1}, "cd"),
		newFakeRequest(t, "r2", []int64{1}, "ef"),
	}
	reqs[1].resp.bufErr = errBoom
	if err := inst.Execute(asRequests(reqs...)); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !IsRequestError(reqs[1].resp.err) || !errors.Is(reqs[1].resp.err, errBoom) || reqs[1].resp.sends != 1 {
		t.Fatalf("r1: sends=%d err=%v", reqs[1].resp.sends, reqs[1].resp.err)
	}
	for _, i := range []int{0, 2} {
		r := reqs[i]
		if r.resp.err != nil || r.resp.sends != 1 {
			t.Fatalf("%s: sends=%d err=%v", r.id, r.resp.sends, r.resp.err)
		}
	}
	if got := decodeOutput(t, reqs[2].resp.outputs["OUTPUT"]); !slices.Equal(got, []string{"fe"}) {
		t.Fatalf("r2 output %q", got)
	}
	if !slices.Equal(stats.requests, []bool{true, false, true}) {
		t.Fatalf("request stats %v", stats.requests)
	}
}

func TestExecuteSkipsUnrequestedOutput(t *testing.T) {
	inst, _ := newTestInstance(t, false, reverseModel())
	a := newFakeRequest(t, "a", []int64{1}, "a")
	a.requested = nil
	if err := inst.Execute(asRequests(a)); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(a.resp.outputs) != 0 {
		t.Fatalf("unrequested output written")
	}
	if a.resp.sends != 1 || a.resp.err != nil {
		t.Fatalf("sends=%d err=%v", a.resp.sends, a.resp.err)
	}
}

func TestExecuteAlwaysWritesState(t *testing.T) {
	inst, _ := newTestInstance(t, false, reverseModel(), "STATE")
	a := newFakeRequest(t, "a", []int64{1}, "abc")
	a.requested = nil
	b := newFakeRequest(t, "b", []int64{1}, "xy")
	if err := inst.Execute(asRequests(a, b)); err != nil {
		t.Fatalf("execute: %v", err)
	}
	for r, want := range map[*fakeRequest]string{a: "cba", b: "yx"} {
		st := r.states["STATE"]
		if st == nil {
			t.Fatalf("request %s: state not written", r.id)
		}
		if st.commits != 1 {
			t.Fatalf("request %s: %d commits", r.id, st.commits)
		}
		if got := decodeOutput(t, st); !slices.Equal(got, []string{want}) {
			t.Fatalf("request %s: state %q", r.id, got)
		}
	}
	if len(a.resp.outputs) != 0 || b.resp.outputs["OUTPUT"] == nil {
		t.Fatalf("output filtering wrong: a=%d b=%v", len(a.resp.outputs), b.resp.outputs)
	}
}

func TestExecuteStateFailureIsolated(t *testing.T) {
	inst, _ := newTestInstance(t, false, reverseModel(), "STATE")
	a := newFakeRequest(t, "a", []int64{1}, "a")
	b := newFakeRequest(t, "b", []int64{1}, "b")
	a.stateErr = errBoom
	if err := inst.Execute(asRequests(a, b)); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !errors.Is(a.resp.err, errBoom) || a.resp.sends != 1 {
		t.Fatalf("a: sends=%d err=%v", a.resp.sends, a.resp.err)
	}
	if b.resp.err != nil || b.resp.sends != 1 || b.states["STATE"].commits != 1 {
		t.Fatalf("b: sends=%d err=%v", b.resp.sends, b.resp.err)
	}
}

func TestExecuteResponseCreationFailure(t *testing.T) {
	inst, stats := newTestInstance(t, false, reverseModel())
	a := newFakeRequest(t, "a", []int64{1}, "a")
	a.respErr = errBoom
	if err := inst.Execute(asRequests(a)); !errors.Is(err, errBoom) {
		t.Fatalf("execute err %v", err)
	}
	if stats.batches != 0 || a.released {
		t.Fatalf("requests handled after failing to take ownership")
	}
}

type countingSync struct{ calls int }

func (s *countingSync) Synchronize() error { s.calls++; return nil }

func TestExecuteSynchronizesAcceleratorCopies(t *testing.T) {
	inst, _ := newTestInstance(t, false, reverseModel())
	sync := &countingSync{}
	inst.sync = sync
	a := newFakeRequest(t, "a", []int64{1}, "a")
	if err := inst.Execute(asRequests(a)); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if sync.calls != 0 {
		t.Fatalf("synchronized without accelerator copies")
	}
	b := newFakeRequest(t, "b", []int64{1}, "b")
	b.resp.memType = MemoryGPU
	if err := inst.Execute(asRequests(b)); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if sync.calls != 1 {
		t.Fatalf("synchronize calls = %d", sync.calls)
	}
}

func TestExecuteEmptyBatch(t *testing.T) {
	inst, stats := newTestInstance(t, false, reverseModel())
	if err := inst.Execute(nil); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if stats.batches != 1 || stats.batchSize != 0 {
		t.Fatalf("stats %+v", stats)
	}
}
