package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"strbackend/internal/httpapi"
	"strbackend/internal/manager"
	"strbackend/internal/memhost"
	"strbackend/internal/registry"
	"strbackend/pkg/types"
)

func modelConfig(lib string, maxBatch, instances int) string {
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
  model_lib_path:
    string_value: %s
`, maxBatch, instances, lib)
}

// createRepo writes one model directory per entry of models.
func createRepo(t *testing.T, models map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for id, cfg := range models {
		dir := filepath.Join(root, id)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
		if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(cfg), 0o644); err != nil {
			t.Fatalf("write config %s: %v", id, err)
		}
	}
	return root
}

func newServerForRepo(t *testing.T, root string, cfg manager.ManagerConfig) (*httptest.Server, *manager.Manager) {
	t.Helper()
	reg, err := registry.LoadDir(root)
	if err != nil {
		t.Fatalf("scan repository: %v", err)
	}
	cfg.Registry = reg
	if cfg.Allocator == nil {
		cfg.Allocator = &memhost.Allocator{}
	}
	mgr := manager.New(cfg)
	srv := httptest.NewServer(httpapi.NewMux(mgr, httpapi.Options{}))
	t.Cleanup(func() {
		srv.Close()
		_ = mgr.Close()
	})
	return srv, mgr
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	return do(t, http.MethodGet, url, nil)
}

func httpPost(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	return do(t, http.MethodPost, url, nil)
}

func do(t *testing.T, method, url string, body []byte) (*http.Response, []byte) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, b
}

func getStatus(t *testing.T, base string) types.StatusResponse {
	t.Helper()
	resp, body := httpGet(t, base+"/status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/status: %d %s", resp.StatusCode, body)
	}
	var st types.StatusResponse
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	return st
}
