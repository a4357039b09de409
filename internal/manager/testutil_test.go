package manager

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"strbackend/internal/backend"
	"strbackend/internal/memhost"
	"strbackend/internal/model"
	"strbackend/internal/registry"
	"strbackend/pkg/types"
)

// modelYAML renders a model configuration using the given implementation.
func modelYAML(lib string, maxBatch, instances int) string {
	return fmt.Sprintf(`max_batch_size: %d
instance_count: %d
input:
  - name: INPUT
    data_type: TYPE_STRING
    dims: [1]
output:
  - name: OUTPUT
    data_type: TYPE_STRING
    dims: [1]
parameters:
  model_lib_path: %s
`, maxBatch, instances, lib)
}

// writeModel creates <root>/<id>/config.yaml.
func writeModel(t *testing.T, root, id, content string) {
	t.Helper()
	dir := filepath.Join(root, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// scanRepo returns the registry of a test repository.
func scanRepo(t *testing.T, root string) []types.Model {
	t.Helper()
	reg, err := registry.LoadDir(root)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	return reg
}

// gateModel blocks every call until release is closed. It records calls
// made after Close.
type gateModel struct {
	entered    chan struct{}
	release    chan struct{}
	closes     atomic.Int32
	usedClosed atomic.Bool
}

func newGate() *gateModel {
	return &gateModel{entered: make(chan struct{}, 16), release: make(chan struct{})}
}

func (g *gateModel) Initialize(map[string]string) error { return nil }

func (g *gateModel) RunInference(reqs []string) ([]string, error) {
	if g.closes.Load() > 0 {
		g.usedClosed.Store(true)
	}
	g.entered <- struct{}{}
	<-g.release
	if g.closes.Load() > 0 {
		g.usedClosed.Store(true)
	}
	return reqs, nil
}

func (g *gateModel) Close() error {
	g.closes.Add(1)
	return nil
}

// waitEntered waits for n model calls to be in flight.
func (g *gateModel) waitEntered(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-g.entered:
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d of %d model calls started", i, n)
		}
	}
}

func gateRegistry(g *gateModel) *model.Registry {
	r := model.NewRegistry()
	r.Register("gate", func() model.Model { return g })
	return r
}

// stringBatch builds one request per element list.
func stringBatch(t *testing.T, elems ...[]string) ([]*memhost.Request, []backend.Request) {
	t.Helper()
	reqs := make([]*memhost.Request, len(elems))
	for i, e := range elems {
		r, err := memhost.NewStringRequest(fmt.Sprintf("r%d", i), "INPUT", true, e...)
		if err != nil {
			t.Fatalf("new request: %v", err)
		}
		reqs[i] = r.Configure(func(c *memhost.RequestConfig) { c.Requested = []string{"OUTPUT"} })
	}
	return reqs, memhost.Requests(reqs...)
}

func outputOf(t *testing.T, r *memhost.Request) []string {
	t.Helper()
	resp := r.Response()
	if resp == nil || !resp.Sent() {
		t.Fatalf("request %s has no sent response", r.ID())
	}
	if err := resp.Err(); err != nil {
		t.Fatalf("request %s failed: %v", r.ID(), err)
	}
	tn, ok := resp.Tensor("OUTPUT")
	if !ok {
		t.Fatalf("request %s has no OUTPUT", r.ID())
	}
	got, err := tn.Strings()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return got
}

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return c
}
